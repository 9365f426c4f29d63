package moderation

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/models"
)

// Gate screening failures, mapped to HTTP codes by the content handlers
var (
	ErrAuthorBanned     = errors.New("author is banned")
	ErrRateLimited      = errors.New("submission rate limit exceeded")
	ErrImagesNotAllowed = errors.New("author may not attach images yet")
	ErrTooManyImages    = errors.New("author may attach a single image only")
)

// Decision reasons recorded on content and in the log
const (
	ReasonSevereContent     = "severe_content"
	ReasonHighRisk          = "high_risk_score"
	ReasonRequiresReview    = "requires_review"
	ReasonScorerUnavailable = "scorer_unavailable"
)

// Decision is the gate's verdict on one submission
type Decision struct {
	Status       string
	Reason       string
	Score        *models.ModerationScore
	AutoApproved bool
	Action       string
	TrustDelta   int
	Violation    bool
}

// Gate runs the submission pipeline: ban check, attachment policy, rate
// limit, risk scoring, trust-tiered routing.
type Gate struct {
	Scorer         Scorer
	Logs           databases.ModerationLogDatabase
	Trust          *TrustManager
	PostLimiter    *Limiter
	CommentLimiter *Limiter

	// RejectThreshold is the score at or above which content is rejected
	// outright for every trust tier.
	RejectThreshold int
}

// NewGate wires a gate with daily submission windows. The per-author budget
// inside each window comes from the policy tier.
func NewGate(scorer Scorer, logs databases.ModerationLogDatabase, trust *TrustManager, rejectThreshold int) *Gate {
	return &Gate{
		Scorer:          scorer,
		Logs:            logs,
		Trust:           trust,
		PostLimiter:     NewLimiter(24*time.Hour, 1),
		CommentLimiter:  NewLimiter(24*time.Hour, 1),
		RejectThreshold: rejectThreshold,
	}
}

// Banned reports whether the user is currently banned. A temporary ban past
// its end date no longer blocks even before the scheduler lifts it.
func Banned(user *models.User, now time.Time) bool {
	if !user.IsBanned {
		return false
	}
	if user.BannedUntil == nil {
		return true
	}
	return user.BannedUntil.Time().After(now)
}

// Screen runs the pipeline for one submission and returns the routing
// decision. The caller persists the content with the decided status and then
// calls Record.
func (g *Gate) Screen(ctx context.Context, author *models.User, kind, content string, images []models.ContentImage) (*Decision, error) {
	now := time.Now()
	if Banned(author, now) {
		return nil, ErrAuthorBanned
	}

	policy := PolicyFor(author, now)

	if len(images) > 0 {
		if !policy.CanUploadImages {
			return nil, ErrImagesNotAllowed
		}
		if len(images) > 1 && !policy.CanUploadMultipleImages {
			return nil, ErrTooManyImages
		}
	}

	if !g.allow(author.ID.Hex(), kind, policy) {
		return nil, ErrRateLimited
	}

	urls := make([]string, 0, len(images))
	for _, img := range images {
		urls = append(urls, img.URL)
	}

	score, err := g.Scorer.Score(ctx, content, urls)
	if err != nil {
		// Fail open: the scorer being down must never block authors, the
		// item just waits for a human.
		zap.S().Warnw("scoring failed, routing to review", "kind", kind, "error", err)
		return &Decision{
			Status: models.StatusPending,
			Reason: ReasonScorerUnavailable,
			Action: models.ActionPendingReview,
		}, nil
	}

	max := score.Max()
	switch {
	case max >= SevereScore:
		return &Decision{
			Status:     models.StatusRejected,
			Reason:     ReasonSevereContent,
			Score:      score,
			Action:     models.ActionAutoRejected,
			TrustDelta: TrustDeltaSevereViolation,
			Violation:  true,
		}, nil
	case max >= g.RejectThreshold:
		return &Decision{
			Status:     models.StatusRejected,
			Reason:     ReasonHighRisk,
			Score:      score,
			Action:     models.ActionAutoRejected,
			TrustDelta: TrustDeltaModerateViolation,
			Violation:  true,
		}, nil
	case max < policy.AutoApproveThreshold:
		return &Decision{
			Status:       models.StatusApproved,
			Score:        score,
			AutoApproved: true,
			Action:       models.ActionAutoApproved,
		}, nil
	default:
		return &Decision{
			Status: models.StatusPending,
			Reason: ReasonRequiresReview,
			Score:  score,
			Action: models.ActionPendingReview,
		}, nil
	}
}

// Record appends the single log entry for a screened submission and applies
// any trust penalty the decision carries. Log failures are logged, never
// surfaced: the content decision already stands.
func (g *Gate) Record(ctx context.Context, author *models.User, kind string, contentID primitive.ObjectID, d *Decision) {
	entry := models.ModerationLogEntry{
		UserID:      author.ID,
		ContentKind: kind,
		ContentID:   contentID,
		Action:      d.Action,
		Reason:      d.Reason,
		Scores:      d.Score,
	}
	if d.TrustDelta != 0 {
		entry.TrustScoreChange = d.TrustDelta
	}
	if _, err := g.Logs.InsertOne(ctx, entry); err != nil {
		zap.S().Errorw("failed to log gate decision", "contentId", contentID.Hex(), "error", err)
	}

	if d.TrustDelta != 0 {
		violationDelta := 0
		if d.Violation {
			violationDelta = 1
		}
		if _, err := g.Trust.Adjust(ctx, author.ID, d.TrustDelta, violationDelta); err != nil {
			zap.S().Errorw("failed to apply gate trust penalty", "userId", author.ID.Hex(), "error", err)
		}
	}
}

func (g *Gate) allow(authorKey, kind string, policy Policy) bool {
	// keyed by tier: a trust change starts a fresh window with the new
	// budget instead of keeping the first-seen limit forever
	key := authorKey + ":" + policy.Level
	if kind == models.KindComment {
		return g.CommentLimiter.AllowN(key, int64(policy.MaxCommentsPerDay))
	}
	return g.PostLimiter.AllowN(key, int64(policy.MaxPostsPerDay))
}
