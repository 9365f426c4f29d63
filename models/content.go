package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Moderation status lifecycle shared by posts and comments
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Content kinds accepted in URL paths and stored on reports and log entries
const (
	KindPost    = "post"
	KindComment = "comment"
	KindUser    = "user"
	KindAccount = "account"
)

// ContentImage is one attached image on a post
type ContentImage struct {
	URL      string `bson:"url" json:"url"`
	PublicID string `bson:"publicId,omitempty" json:"publicId,omitempty"`
}

// ModerationScore holds the per-category risk scores returned by the scorer,
// each 0-100
type ModerationScore struct {
	Profanity int `bson:"profanity" json:"profanity"`
	NSFW      int `bson:"nsfw" json:"nsfw"`
}

// Max returns the highest category score
func (s ModerationScore) Max() int {
	if s.NSFW > s.Profanity {
		return s.NSFW
	}
	return s.Profanity
}

// ContentItem holds the structure for the posts and comments collections.
// PostID is set on comments only.
type ContentItem struct {
	ID       primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID   primitive.ObjectID  `bson:"userId" json:"userId"`
	PostID   *primitive.ObjectID `bson:"postId,omitempty" json:"postId,omitempty"`
	Content  string              `bson:"content" json:"content"`
	Images   []ContentImage      `bson:"images,omitempty" json:"images,omitempty"`
	Hashtags []string            `bson:"hashtags,omitempty" json:"hashtags,omitempty"`

	ModerationStatus string              `bson:"moderationStatus" json:"moderationStatus"`
	ModerationReason string              `bson:"moderationReason,omitempty" json:"moderationReason,omitempty"`
	ModerationScore  *ModerationScore    `bson:"moderationScore,omitempty" json:"moderationScore,omitempty"`
	AutoApproved     bool                `bson:"autoApproved" json:"autoApproved"`
	WasPublished     bool                `bson:"wasPublished" json:"wasPublished"`
	IsActive         bool                `bson:"isActive" json:"isActive"`
	ReviewedBy       *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt       *primitive.DateTime `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`

	CreatedAt primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt primitive.DateTime `bson:"updatedAt" json:"updatedAt"`
}

// ContentStatusResponse is the author-facing moderation status payload
type ContentStatusResponse struct {
	ID               string           `json:"id"`
	Kind             string           `json:"kind"`
	ModerationStatus string           `json:"moderationStatus"`
	ModerationReason string           `json:"moderationReason,omitempty"`
	ModerationScore  *ModerationScore `json:"moderationScore,omitempty"`
	AutoApproved     bool             `json:"autoApproved"`
	CanAppeal        bool             `json:"canAppeal"`
}

// CreateContentRequest is the author-facing submission payload. PostID is
// required for comments and ignored for posts.
type CreateContentRequest struct {
	Content  string         `json:"content"`
	Images   []ContentImage `json:"images,omitempty"`
	Hashtags []string       `json:"hashtags,omitempty"`
	PostID   string         `json:"postId,omitempty"`
}

// Pagination is the shared list-envelope metadata
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}
