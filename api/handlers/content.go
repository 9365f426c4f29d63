package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/gorilla/mux"

	"github.com/minhng-dev/social-moderation-api/api"
	"github.com/minhng-dev/social-moderation-api/config"
	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/models"
	"github.com/minhng-dev/social-moderation-api/moderation"
)

// MaxContentLength bounds post and comment bodies
const MaxContentLength = 5000

// Content exported for testing purposes
type Content struct {
	PostDB    databases.ContentDatabase
	CommentDB databases.ContentDatabase
	UserDB    databases.UserDatabase
	Gate      *moderation.Gate
	Poller    *moderation.StatusPoller
}

// CreatePostHandler screens and stores a new post
func (c Content) CreatePostHandler(w http.ResponseWriter, r *http.Request) {
	c.create(w, r, models.KindPost, nil)
}

// CreateCommentHandler screens and stores a new comment under a post
func (c Content) CreateCommentHandler(w http.ResponseWriter, r *http.Request) {
	postID, ok := objectID(w, mux.Vars(r)["postId"])
	if !ok {
		return
	}
	c.create(w, r, models.KindComment, &postID)
}

func (c Content) create(w http.ResponseWriter, r *http.Request, kind string, postID *primitive.ObjectID) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	authorID, ok := objectID(w, p.UserID)
	if !ok {
		return
	}

	var req models.CreateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Content == "" {
		config.ErrorStatus("content is required", http.StatusBadRequest, w, errors.New("empty content"))
		return
	}
	if len(req.Content) > MaxContentLength {
		config.ErrorStatus("content too long", http.StatusBadRequest, w, errors.New("content exceeds max length"))
		return
	}
	if kind == models.KindComment {
		// comments are text only
		req.Images = nil
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	author, err := c.UserDB.FindOne(ctx, bson.M{"_id": authorID})
	if err != nil {
		config.ErrorStatus("failed to get author", http.StatusUnauthorized, w, err)
		return
	}

	db := c.PostDB
	if kind == models.KindComment {
		db = c.CommentDB
		// the parent must exist and be visible
		if _, err := c.PostDB.FindOne(ctx, bson.M{"_id": *postID, "isActive": true}); err != nil {
			config.ErrorStatus("failed to get parent post", http.StatusNotFound, w, err)
			return
		}
	}

	decision, err := c.Gate.Screen(ctx, author, kind, req.Content, req.Images)
	if err != nil {
		switch {
		case errors.Is(err, moderation.ErrAuthorBanned):
			config.ErrorStatus("account is banned", http.StatusForbidden, w, err)
		case errors.Is(err, moderation.ErrRateLimited):
			config.ErrorStatus("submission rate limit exceeded", http.StatusTooManyRequests, w, err)
		case errors.Is(err, moderation.ErrImagesNotAllowed), errors.Is(err, moderation.ErrTooManyImages):
			config.ErrorStatus("image attachment not allowed", http.StatusForbidden, w, err)
		default:
			config.ErrorStatus("failed to screen content", http.StatusInternalServerError, w, err)
		}
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	item := models.ContentItem{
		UserID:           authorID,
		PostID:           postID,
		Content:          req.Content,
		Images:           req.Images,
		Hashtags:         req.Hashtags,
		ModerationStatus: decision.Status,
		ModerationReason: decision.Reason,
		ModerationScore:  decision.Score,
		AutoApproved:     decision.AutoApproved,
		WasPublished:     decision.Status == models.StatusApproved,
		IsActive:         decision.Status != models.StatusRejected,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	insertedID, err := db.InsertOne(ctx, item)
	if err != nil {
		config.ErrorStatus("failed to insert content", http.StatusInternalServerError, w, err)
		return
	}
	if oid, ok := insertedID.(primitive.ObjectID); ok {
		item.ID = oid
	}

	c.Gate.Record(ctx, author, kind, item.ID, decision)
	api.ObserveGateDecision(kind, decision.Action)
	zap.S().Infow("content screened",
		"kind", kind,
		"contentId", item.ID.Hex(),
		"status", decision.Status,
		"reason", decision.Reason,
	)

	b, err := json.Marshal(item)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

// ContentStatusHandler returns the moderation status of one item to its
// author or a moderator. With wait=true a pending item is re-read on the
// poll budget until it leaves pending or the budget runs out.
func (c Content) ContentStatusHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	db, kind, ok := contentDBFor(vars["kind"], c.PostDB, c.CommentDB)
	if !ok {
		config.ErrorStatus("unknown content kind", http.StatusBadRequest, w, errors.New(vars["kind"]))
		return
	}
	id, ok := objectID(w, vars["id"])
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	item, err := db.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get content", http.StatusNotFound, w, err)
		return
	}
	if item.UserID.Hex() != p.UserID && !p.IsModerator() {
		config.ErrorStatus("not the content owner", http.StatusForbidden, w, errors.New("owner or moderator only"))
		return
	}

	if c.Poller != nil && r.URL.Query().Get("wait") == "true" && item.ModerationStatus == models.StatusPending {
		if _, err := c.Poller.Wait(ctx, func(pctx context.Context) (string, error) {
			latest, err := db.FindOne(pctx, bson.M{"_id": id})
			if err != nil {
				return "", err
			}
			item = latest
			return latest.ModerationStatus, nil
		}); err != nil && !errors.Is(err, moderation.ErrPollBudgetExhausted) {
			// running out of budget just reports pending, anything else is
			// worth a line in the log
			zap.S().Warnw("status wait ended early", "contentId", id.Hex(), "error", err)
		}
	}

	resp := models.ContentStatusResponse{
		ID:               item.ID.Hex(),
		Kind:             kind,
		ModerationStatus: item.ModerationStatus,
		ModerationReason: item.ModerationReason,
		ModerationScore:  item.ModerationScore,
		AutoApproved:     item.AutoApproved,
		CanAppeal:        item.ModerationStatus == models.StatusRejected,
	}
	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
