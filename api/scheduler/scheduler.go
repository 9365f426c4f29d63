package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/models"
	"github.com/minhng-dev/social-moderation-api/moderation"
)

// Scheduler handles periodic background moderation jobs
type Scheduler struct {
	cron       *cron.Cron
	UDB        databases.UserDatabase
	LogDB      databases.ModerationLogDatabase
	LockDB     databases.SchedulerLockDatabase
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	uDB databases.UserDatabase,
	logDB databases.ModerationLogDatabase,
	lockDB databases.SchedulerLockDatabase,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		UDB:        uDB,
		LogDB:      logDB,
		LockDB:     lockDB,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Lift expired temporary bans hourly
	_, err := s.cron.AddFunc("0 * * * *", s.liftExpiredBans)
	if err != nil {
		zap.S().Errorw("failed to register ban expiry job", "error", err)
	}

	// Recover trust for users with a clean 30-day record, daily at 4 AM UTC
	_, err = s.cron.AddFunc("0 4 * * *", s.recoverTrust)
	if err != nil {
		zap.S().Errorw("failed to register trust recovery job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Moderation scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Moderation scheduler stopped")
}

// liftExpiredBans unbans users whose temporary ban has run out
func (s *Scheduler) liftExpiredBans() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "ban_expiry_job", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for ban expiry job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Ban expiry job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "ban_expiry_job", s.instanceID)

	zap.S().Infow("Running ban expiry job", "instance", s.instanceID)

	now := primitive.NewDateTimeFromTime(time.Now())
	expired, err := s.UDB.Find(ctx, bson.M{
		"isBanned":    true,
		"bannedUntil": bson.M{"$lt": now},
	})
	if err != nil {
		zap.S().Errorw("failed to find expired bans", "error", err)
		return
	}

	lifted := 0
	for _, user := range expired {
		if _, err := s.UDB.Unban(ctx, user.ID); err != nil {
			zap.S().Errorw("failed to lift expired ban", "error", err, "userId", user.ID.Hex())
			continue
		}
		if _, err := s.LogDB.InsertOne(ctx, models.ModerationLogEntry{
			UserID:      user.ID,
			ContentKind: models.KindAccount,
			ContentID:   user.ID,
			Action:      models.ActionUnbanned,
			Reason:      "ban expired",
		}); err != nil {
			zap.S().Errorw("failed to append moderation log", "error", err, "userId", user.ID.Hex())
		}
		lifted++
	}

	zap.S().Infow("Ban expiry job complete", "expiredFound", len(expired), "lifted", lifted)
}

// recoverTrust grants a small trust bump to users with no violations in the
// last 30 days
func (s *Scheduler) recoverTrust() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "trust_recovery_job", s.instanceID, 15*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for trust recovery job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Trust recovery job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "trust_recovery_job", s.instanceID)

	zap.S().Infow("Running trust recovery job", "instance", s.instanceID)

	since := time.Now().Add(-30 * 24 * time.Hour)
	violatorIDs, err := s.LogDB.ViolatorIDsSince(ctx, since)
	if err != nil {
		zap.S().Errorw("failed to collect recent violators", "error", err)
		return
	}

	// bump everyone else who is active, unbanned and not already at the cap
	filter := bson.M{
		"isActive":   true,
		"isBanned":   bson.M{"$ne": true},
		"role":       models.RoleUser,
		"trustScore": bson.M{"$lt": models.TrustScoreMax},
	}
	if len(violatorIDs) > 0 {
		filter["_id"] = bson.M{"$nin": violatorIDs}
	}

	result, err := s.UDB.UpdateMany(ctx, filter, bson.A{bson.M{"$set": bson.M{
		"trustScore": bson.M{"$min": bson.A{
			models.TrustScoreMax,
			bson.M{"$add": bson.A{"$trustScore", moderation.TrustDeltaCleanRecovery}},
		}},
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}}})
	if err != nil {
		zap.S().Errorw("failed to apply trust recovery", "error", err)
		return
	}

	zap.S().Infow("Trust recovery job complete",
		"recentViolators", len(violatorIDs),
		"usersRecovered", result.ModifiedCount,
	)
}
