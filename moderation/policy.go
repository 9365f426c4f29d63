package moderation

import (
	"time"

	"github.com/minhng-dev/social-moderation-api/models"
)

// Trust tier boundaries
const (
	trustLow  = 50
	trustHigh = 85

	// NewAccountAge is how long an account counts as new regardless of score
	NewAccountAge = 7 * 24 * time.Hour
)

// Trust score deltas applied by moderation outcomes
const (
	TrustDeltaSevereViolation   = -15
	TrustDeltaModerateViolation = -10
	TrustDeltaMinorViolation    = -5
	TrustDeltaReported          = -8
	TrustDeltaAppealApproved    = 5
	TrustDeltaCleanRecovery     = 5
)

// Auto-ban triggers checked after every trust adjustment
const (
	AutoBanTrustFloor     = 20
	AutoBanViolationCount = 5
	AutoBanDuration       = 7 * 24 * time.Hour
)

// Policy is the per-author moderation policy derived from trust score and
// account age
type Policy struct {
	Level                   string
	NeedsReview             bool
	MaxPostsPerDay          int
	MaxCommentsPerDay       int
	CanUploadImages         bool
	CanUploadMultipleImages bool
	// AutoApproveThreshold: content scoring below it is approved without
	// human review.
	AutoApproveThreshold int
}

// PolicyFor returns the moderation policy for an author. New accounts are
// throttled hardest, high-trust accounts mostly bypass review.
func PolicyFor(user *models.User, now time.Time) Policy {
	age := now.Sub(user.CreatedAt.Time())
	score := user.TrustScore

	if age < NewAccountAge {
		return Policy{
			Level:                "new_user",
			NeedsReview:          score < models.TrustScoreDefault,
			MaxPostsPerDay:       5,
			MaxCommentsPerDay:    20,
			CanUploadImages:      score > 60,
			AutoApproveThreshold: 20,
		}
	}
	if score < trustLow {
		return Policy{
			Level:                "low_trust",
			NeedsReview:          true,
			MaxPostsPerDay:       3,
			MaxCommentsPerDay:    10,
			CanUploadImages:      score > 30,
			AutoApproveThreshold: 10,
		}
	}
	if score < trustHigh {
		return Policy{
			Level:                   "medium_trust",
			MaxPostsPerDay:          10,
			MaxCommentsPerDay:       50,
			CanUploadImages:         true,
			CanUploadMultipleImages: true,
			AutoApproveThreshold:    60,
		}
	}
	return Policy{
		Level:                   "high_trust",
		MaxPostsPerDay:          20,
		MaxCommentsPerDay:       100,
		CanUploadImages:         true,
		CanUploadMultipleImages: true,
		AutoApproveThreshold:    80,
	}
}

// reasonSeverity maps report reasons to their base priority
var reasonSeverity = map[string]int{
	"violence":       4,
	"hate_speech":    4,
	"harassment":     3,
	"nsfw":           3,
	"scam":           3,
	"misinformation": 2,
	"copyright":      2,
	"spam":           1,
	"other":          1,
}

// ReportPriority computes the triage priority for a new report: the reason's
// base severity bumped by how many open reports the target already has,
// capped at 5.
func ReportPriority(reason string, openReports int64) int {
	p := reasonSeverity[reason]
	if p == 0 {
		p = 1
	}
	p += int(openReports)
	if p > 5 {
		p = 5
	}
	return p
}

// ReportEscalationCount is the open-report count at which every pending
// report on the target is flipped to reviewing
const ReportEscalationCount = 3

// WarnBanDuration returns the escalating ban duration for a user warned at
// the given violation count. Zero duration with ok=false means no ban yet;
// zero with ok=true means permanent.
func WarnBanDuration(violations int) (time.Duration, bool) {
	switch {
	case violations < AutoBanViolationCount:
		return 0, false
	case violations == AutoBanViolationCount:
		return 24 * time.Hour, true
	case violations == AutoBanViolationCount+1:
		return 7 * 24 * time.Hour, true
	case violations == AutoBanViolationCount+2:
		return 30 * 24 * time.Hour, true
	default:
		return 0, true
	}
}

// TrustLevelLabel maps a trust score to the label shown in the moderator
// trust detail view
func TrustLevelLabel(score int) string {
	switch {
	case score < AutoBanTrustFloor:
		return "at_risk"
	case score < trustLow:
		return "low_trust"
	case score < trustHigh:
		return "medium_trust"
	default:
		return "high_trust"
	}
}
