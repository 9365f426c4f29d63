package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Moderation log actions. The log is append-only; entries are never updated
// or deleted.
const (
	ActionAutoApproved      = "auto_approved"
	ActionAutoRejected      = "auto_rejected"
	ActionPendingReview     = "pending_review"
	ActionModeratorApproved = "moderator_approved"
	ActionModeratorRejected = "moderator_rejected"
	ActionDeletedByReport   = "deleted_by_report"
	ActionAppealSubmitted   = "appeal_submitted"
	ActionAppealApproved    = "appeal_approved"
	ActionAppealRejected    = "appeal_rejected"
	ActionReportDismissed   = "report_dismissed"
	ActionWarned            = "warned"
	ActionBanned            = "banned"
	ActionUnbanned          = "unbanned"
)

// ModerationLogEntry holds the structure for the moderation_logs collection
type ModerationLogEntry struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID           primitive.ObjectID  `bson:"userId" json:"userId"`
	ContentKind      string              `bson:"contentKind" json:"contentKind"`
	ContentID        primitive.ObjectID  `bson:"contentId" json:"contentId"`
	Action           string              `bson:"action" json:"action"`
	Reason           string              `bson:"reason" json:"reason"`
	Scores           *ModerationScore    `bson:"scores,omitempty" json:"scores,omitempty"`
	ReviewedBy       *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewNotes      string              `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
	TrustScoreChange int                 `bson:"trustScoreChange,omitempty" json:"trustScoreChange,omitempty"`
	CreatedAt        primitive.DateTime  `bson:"createdAt" json:"createdAt"`
}

// TopViolator is one row of the stats top-violators aggregation
type TopViolator struct {
	UserID        primitive.ObjectID `bson:"_id" json:"userId"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	TrustScore    int                `bson:"trustScore" json:"trustScore"`
	Violations    int64              `bson:"violations" json:"violations"`
	LastViolation primitive.DateTime `bson:"lastViolation" json:"lastViolation"`
}

// ModerationStats is the dashboard stats payload
type ModerationStats struct {
	Period         string           `json:"period"`
	Actions        map[string]int64 `json:"actions"`
	PendingPosts   int64            `json:"pendingPosts"`
	PendingComment int64            `json:"pendingComments"`
	OpenReports    int64            `json:"openReports"`
	OpenAppeals    int64            `json:"openAppeals"`
	BannedUsers    int64            `json:"bannedUsers"`
	TopViolators   []TopViolator    `json:"topViolators"`
}
