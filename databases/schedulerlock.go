package databases

// go generate: mockery --name SchedulerLockDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const schedulerLockCollection = "scheduler_locks"

// SchedulerLockDatabase provides a TTL'd distributed lock so cron jobs run
// on a single instance
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name, instanceID string) error
}

type schedulerLockDatabase struct {
	db DatabaseHelper
}

// NewSchedulerLockDatabase initializes a new instance of scheduler lock
// database with the provided db connection
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{db: db}
}

func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, name, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now()
	filter := bson.M{
		"_id": name,
		"$or": []bson.M{
			{"expiresAt": bson.M{"$lt": primitive.NewDateTimeFromTime(now)}},
			{"holder": instanceID},
		},
	}
	update := bson.M{"$set": bson.M{
		"holder":    instanceID,
		"expiresAt": primitive.NewDateTimeFromTime(now.Add(ttl)),
	}}
	opts := options.Update().SetUpsert(true)

	res, err := s.db.Collection(schedulerLockCollection).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		// a duplicate-key race means another instance holds the lock
		return false, nil
	}
	return res.ModifiedCount > 0 || res.UpsertedCount > 0, nil
}

func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, name, instanceID string) error {
	_, err := s.db.Collection(schedulerLockCollection).DeleteOne(ctx, bson.M{
		"_id":    name,
		"holder": instanceID,
	})
	return err
}
