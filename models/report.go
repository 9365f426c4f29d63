package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Report status lifecycle
const (
	ReportStatusPending   = "pending"
	ReportStatusReviewing = "reviewing"
	ReportStatusResolved  = "resolved"
	ReportStatusDismissed = "dismissed"
)

// Actions recorded on a resolved report
const (
	ReportActionNone           = "none"
	ReportActionContentRemoved = "content_removed"
	ReportActionUserBanned     = "user_banned"
	ReportActionDismissed      = "dismissed"
)

// ReportReasons are the accepted reasons for filing a report
var ReportReasons = []string{
	"spam",
	"harassment",
	"hate_speech",
	"violence",
	"nsfw",
	"misinformation",
	"scam",
	"copyright",
	"other",
}

// ValidReportReason reports whether reason is one of the accepted values
func ValidReportReason(reason string) bool {
	for _, r := range ReportReasons {
		if r == reason {
			return true
		}
	}
	return false
}

// Report holds the structure for the reports collection
type Report struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ReporterID     primitive.ObjectID  `bson:"reporterId" json:"reporterId"`
	ContentKind    string              `bson:"contentKind" json:"contentKind"`
	ContentID      primitive.ObjectID  `bson:"contentId" json:"contentId"`
	ReportedUserID primitive.ObjectID  `bson:"reportedUserId" json:"reportedUserId"`
	Reason         string              `bson:"reason" json:"reason"`
	Description    string              `bson:"description,omitempty" json:"description,omitempty"`
	Priority       int                 `bson:"priority" json:"priority"`
	Status         string              `bson:"status" json:"status"`
	Action         string              `bson:"action" json:"action"`
	ReviewerID     *primitive.ObjectID `bson:"reviewerId,omitempty" json:"reviewerId,omitempty"`
	ReviewNote     string              `bson:"reviewNote,omitempty" json:"reviewNote,omitempty"`
	ReviewedAt     *primitive.DateTime `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	CreatedAt      primitive.DateTime  `bson:"createdAt" json:"createdAt"`
	UpdatedAt      primitive.DateTime  `bson:"updatedAt" json:"updatedAt"`
}

// FileReportRequest is the reporter-facing payload
type FileReportRequest struct {
	Reason      string `json:"reason"`
	Description string `json:"description,omitempty"`
}

// ResolveReportRequest carries the moderator resolution parameters. For
// reports against a user, Reason and DurationDays feed the ban.
type ResolveReportRequest struct {
	Note         string `json:"note,omitempty"`
	Reason       string `json:"reason,omitempty"`
	DurationDays int    `json:"durationDays,omitempty"`
}
