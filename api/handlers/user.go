package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/gorilla/mux"

	"github.com/minhng-dev/social-moderation-api/api"
	"github.com/minhng-dev/social-moderation-api/config"
	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/models"
	"github.com/minhng-dev/social-moderation-api/moderation"
)

// User exported for testing purposes
type User struct {
	DB        databases.UserDatabase
	LogDB     databases.ModerationLogDatabase
	PostDB    databases.ContentDatabase
	CommentDB databases.ContentDatabase
	ReportDB  databases.ReportDatabase
	Auth      api.Auth
}

// UserCreateHandler registers a new account with the default moderation
// profile
func (u User) UserCreateHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if req.Name == "" || email == "" || req.Password == "" {
		config.ErrorStatus("name, email and password are required", http.StatusBadRequest, w, errors.New("missing required field"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if _, err := u.DB.FindOne(ctx, bson.M{"email": email}); err == nil {
		config.ErrorStatus("email already registered", http.StatusConflict, w, errors.New("duplicate email"))
		return
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("failed to check existing users", http.StatusInternalServerError, w, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		config.ErrorStatus("failed to hash password", http.StatusInternalServerError, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	user := models.User{
		Name:       req.Name,
		Email:      email,
		Password:   string(hashed),
		Role:       models.RoleUser,
		IsActive:   true,
		TrustScore: models.TrustScoreDefault,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	insertedID, err := u.DB.InsertOne(ctx, user)
	if err != nil {
		config.ErrorStatus("failed to insert user", http.StatusInternalServerError, w, err)
		return
	}
	if oid, ok := insertedID.(primitive.ObjectID); ok {
		user.ID = oid
	}

	b, err := json.Marshal(user)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// LoginHandler verifies credentials and mints a bearer token. Banned users
// may still log in so they can appeal.
func (u User) LoginHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "invalid request", Code: "BAD_REQUEST"})
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "email and password required", Code: "BAD_REQUEST"})
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.DB.FindOne(ctx, bson.M{"email": email, "isActive": true})
	if err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "invalid credentials", Code: "INVALID_CREDENTIALS"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "invalid credentials", Code: "INVALID_CREDENTIALS"})
		return
	}

	token, err := u.Auth.IssueToken(user)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(models.ErrorResponse{Error: "token generation failed", Code: "INTERNAL"})
		return
	}

	var resp models.LoginResponse
	resp.Token = token
	resp.User.ID = user.ID.Hex()
	resp.User.Email = user.Email
	resp.User.Name = user.Name
	resp.User.Role = user.Role

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// BanHandler bans a user. Re-banning updates the reason and duration.
func (u User) BanHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	reviewerID, ok := objectID(w, p.UserID)
	if !ok {
		return
	}
	userID, ok := objectID(w, mux.Vars(r)["userId"])
	if !ok {
		return
	}

	var req models.BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Reason == "" {
		config.ErrorStatus("reason is required", http.StatusBadRequest, w, errors.New("empty reason"))
		return
	}
	if req.DurationDays < 0 {
		config.ErrorStatus("durationDays must not be negative", http.StatusBadRequest, w, errors.New("negative duration"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	target, err := u.DB.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		config.ErrorStatus("failed to get user", http.StatusNotFound, w, err)
		return
	}
	if target.Role != models.RoleUser {
		config.ErrorStatus("cannot ban a moderator", http.StatusForbidden, w, errors.New(target.Role))
		return
	}

	var until *time.Time
	if req.DurationDays > 0 {
		t := time.Now().Add(time.Duration(req.DurationDays) * 24 * time.Hour)
		until = &t
	}
	banned, err := u.DB.Ban(ctx, userID, req.Reason, until)
	if err != nil {
		config.ErrorStatus("failed to ban user", http.StatusInternalServerError, w, err)
		return
	}

	u.log(ctx, models.ModerationLogEntry{
		UserID:      userID,
		ContentKind: models.KindAccount,
		ContentID:   userID,
		Action:      models.ActionBanned,
		Reason:      req.Reason,
		ReviewedBy:  &reviewerID,
	})
	api.ObserveModeratorAction(models.ActionBanned)

	writeJSON(w, banned)
}

// UnbanHandler lifts a ban, clearing all ban state together
func (u User) UnbanHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	reviewerID, ok := objectID(w, p.UserID)
	if !ok {
		return
	}
	userID, ok := objectID(w, mux.Vars(r)["userId"])
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.DB.Unban(ctx, userID)
	if err != nil {
		config.ErrorStatus("failed to unban user", http.StatusNotFound, w, err)
		return
	}

	u.log(ctx, models.ModerationLogEntry{
		UserID:      userID,
		ContentKind: models.KindAccount,
		ContentID:   userID,
		Action:      models.ActionUnbanned,
		ReviewedBy:  &reviewerID,
	})
	api.ObserveModeratorAction(models.ActionUnbanned)

	writeJSON(w, user)
}

// WarnHandler records a formal warning: one violation, a trust penalty and
// the escalating ban ladder for repeat offenders
func (u User) WarnHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	reviewerID, ok := objectID(w, p.UserID)
	if !ok {
		return
	}
	userID, ok := objectID(w, mux.Vars(r)["userId"])
	if !ok {
		return
	}

	var req models.WarnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Reason == "" {
		config.ErrorStatus("reason is required", http.StatusBadRequest, w, errors.New("empty reason"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	target, err := u.DB.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		config.ErrorStatus("failed to get user", http.StatusNotFound, w, err)
		return
	}
	if target.Role != models.RoleUser {
		config.ErrorStatus("cannot warn a moderator", http.StatusForbidden, w, errors.New(target.Role))
		return
	}

	user, err := u.DB.AdjustTrust(ctx, userID, moderation.TrustDeltaModerateViolation, 1)
	if err != nil {
		config.ErrorStatus("failed to apply warning", http.StatusInternalServerError, w, err)
		return
	}

	u.log(ctx, models.ModerationLogEntry{
		UserID:           userID,
		ContentKind:      models.KindAccount,
		ContentID:        userID,
		Action:           models.ActionWarned,
		Reason:           req.Reason,
		ReviewedBy:       &reviewerID,
		ReviewNotes:      req.Message,
		TrustScoreChange: moderation.TrustDeltaModerateViolation,
	})
	api.ObserveModeratorAction(models.ActionWarned)

	// repeat offenders climb the ban ladder
	if duration, ban := moderation.WarnBanDuration(user.Violations); ban && !user.IsBanned {
		var until *time.Time
		if duration > 0 {
			t := time.Now().Add(duration)
			until = &t
		}
		user, err = u.DB.Ban(ctx, userID, "repeated warnings", until)
		if err != nil {
			config.ErrorStatus("failed to apply escalation ban", http.StatusInternalServerError, w, err)
			return
		}
		u.log(ctx, models.ModerationLogEntry{
			UserID:      userID,
			ContentKind: models.KindAccount,
			ContentID:   userID,
			Action:      models.ActionBanned,
			Reason:      "repeated warnings",
			ReviewedBy:  &reviewerID,
		})
		zap.S().Infow("warning escalated to ban",
			"userId", userID.Hex(),
			"violations", user.Violations,
			"permanent", until == nil,
		)
	}

	writeJSON(w, user)
}

type trustFactors struct {
	AccountAgeDays   int   `json:"accountAgeDays"`
	ApprovedPosts    int64 `json:"approvedPosts"`
	ApprovedComments int64 `json:"approvedComments"`
	Violations       int   `json:"violations"`
	ReportsReceived  int   `json:"reportsReceived"`
	ReportsDismissed int64 `json:"reportsDismissed"`
}

type trustDetailResponse struct {
	UserID  string                      `json:"userId"`
	Score   int                         `json:"score"`
	Level   string                      `json:"level"`
	Banned  bool                        `json:"banned"`
	Factors trustFactors                `json:"factors"`
	History []models.ModerationLogEntry `json:"history"`
}

// TrustDetailHandler explains a user's trust score to a moderator
func (u User) TrustDetailHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := objectID(w, mux.Vars(r)["userId"])
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.DB.FindOne(ctx, bson.M{"_id": userID})
	if err != nil {
		config.ErrorStatus("failed to get user", http.StatusNotFound, w, err)
		return
	}

	approvedPosts, err := u.PostDB.CountDocuments(ctx, bson.M{"userId": userID, "moderationStatus": models.StatusApproved})
	if err != nil {
		config.ErrorStatus("failed to count approved posts", http.StatusInternalServerError, w, err)
		return
	}
	approvedComments, err := u.CommentDB.CountDocuments(ctx, bson.M{"userId": userID, "moderationStatus": models.StatusApproved})
	if err != nil {
		config.ErrorStatus("failed to count approved comments", http.StatusInternalServerError, w, err)
		return
	}
	dismissed, err := u.ReportDB.CountDocuments(ctx, bson.M{"reportedUserId": userID, "status": models.ReportStatusDismissed})
	if err != nil {
		config.ErrorStatus("failed to count dismissed reports", http.StatusInternalServerError, w, err)
		return
	}
	history, err := u.LogDB.FindByUser(ctx, userID, 10)
	if err != nil {
		config.ErrorStatus("failed to get trust history", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, trustDetailResponse{
		UserID: user.ID.Hex(),
		Score:  user.TrustScore,
		Level:  moderation.TrustLevelLabel(user.TrustScore),
		Banned: user.IsBanned,
		Factors: trustFactors{
			AccountAgeDays:   int(time.Since(user.CreatedAt.Time()).Hours() / 24),
			ApprovedPosts:    approvedPosts,
			ApprovedComments: approvedComments,
			Violations:       user.Violations,
			ReportsReceived:  user.ReportCount,
			ReportsDismissed: dismissed,
		},
		History: history,
	})
}

func (u User) log(ctx context.Context, entry models.ModerationLogEntry) {
	if _, err := u.LogDB.InsertOne(ctx, entry); err != nil {
		zap.S().Errorw("failed to append moderation log", "action", entry.Action, "error", err)
	}
}
