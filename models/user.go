package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Roles understood by the authorization gate
const (
	RoleUser      = "user"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Trust score bounds and default for new accounts
const (
	TrustScoreMin     = 0
	TrustScoreMax     = 100
	TrustScoreDefault = 70
)

// User holds the structure for the users collection, including the
// moderation profile mutated by the trust & ban manager.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Password  string             `bson:"password" json:"-"`
	Avatar    string             `bson:"avatar,omitempty" json:"avatar,omitempty"`
	Role      string             `bson:"role" json:"role"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt primitive.DateTime `bson:"createdAt" json:"createdAt"`
	UpdatedAt primitive.DateTime `bson:"updatedAt" json:"updatedAt"`

	// Moderation profile
	TrustScore   int                 `bson:"trustScore" json:"trustScore"`
	Violations   int                 `bson:"violations" json:"violations"`
	ReportCount  int                 `bson:"reportCount" json:"reportCount"`
	IsBanned     bool                `bson:"isBanned" json:"isBanned"`
	BannedReason string              `bson:"bannedReason,omitempty" json:"bannedReason,omitempty"`
	BannedUntil  *primitive.DateTime `bson:"bannedUntil,omitempty" json:"bannedUntil,omitempty"`
	BannedAt     *primitive.DateTime `bson:"bannedAt,omitempty" json:"bannedAt,omitempty"`
}

// AuthorSummary is the slice of a user shown alongside queued content
type AuthorSummary struct {
	ID         primitive.ObjectID `json:"id"`
	Name       string             `json:"name"`
	Email      string             `json:"email"`
	Avatar     string             `json:"avatar,omitempty"`
	TrustScore int                `json:"trustScore"`
	Violations int                `json:"violations"`
	IsBanned   bool               `json:"isBanned"`
}

// Summary converts a full user document to its queue-facing summary
func (u *User) Summary() AuthorSummary {
	return AuthorSummary{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Avatar:     u.Avatar,
		TrustScore: u.TrustScore,
		Violations: u.Violations,
		IsBanned:   u.IsBanned,
	}
}

// BanRequest is the moderator-facing ban payload. DurationDays zero means
// permanent.
type BanRequest struct {
	Reason       string `json:"reason"`
	DurationDays int    `json:"durationDays"`
}

// WarnRequest is the moderator-facing warning payload
type WarnRequest struct {
	Reason  string `json:"reason"`
	Message string `json:"message,omitempty"`
}

// CreateUserRequest registers a new account
type CreateUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest authenticates an account and mints a bearer token
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token and the caller identity
type LoginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Role  string `json:"role"`
	} `json:"user"`
}
