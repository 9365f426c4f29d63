package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Appeal status lifecycle
const (
	AppealStatusOpen     = "open"
	AppealStatusApproved = "approved"
	AppealStatusRejected = "rejected"
)

// Appeal decisions accepted at resolution time
const (
	AppealDecisionApprove = "approve"
	AppealDecisionReject  = "reject"
)

// MinAppealReasonLength is the minimum free-text reason length
const MinAppealReasonLength = 10

// Appeal holds the structure for the appeals collection. TargetKind is set
// once at creation and is the only input to resolution dispatch.
type Appeal struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	TargetKind      string              `bson:"targetKind" json:"targetKind"`
	TargetID        primitive.ObjectID  `bson:"targetId" json:"targetId"`
	AppellantID     primitive.ObjectID  `bson:"appellantId" json:"appellantId"`
	Reason          string              `bson:"reason" json:"reason"`
	Status          string              `bson:"status" json:"status"`
	ResolutionNotes string              `bson:"resolutionNotes,omitempty" json:"resolutionNotes,omitempty"`
	ResolvedBy      *primitive.ObjectID `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	ResolvedAt      *primitive.DateTime `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	CreatedAt       primitive.DateTime  `bson:"createdAt" json:"createdAt"`
}

// FileAppealRequest is the appellant-facing payload
type FileAppealRequest struct {
	Reason string `json:"reason"`
}

// ResolveAppealRequest is the moderator-facing resolution payload
type ResolveAppealRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes,omitempty"`
}
