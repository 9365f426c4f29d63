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

// Moderation exported for testing purposes
type Moderation struct {
	PostDB    databases.ContentDatabase
	CommentDB databases.ContentDatabase
	UserDB    databases.UserDatabase
	ReportDB  databases.ReportDatabase
	AppealDB  databases.AppealDatabase
	LogDB     databases.ModerationLogDatabase
	Trust     *moderation.TrustManager
}

type queuedItem struct {
	models.ContentItem
	Author *models.AuthorSummary `json:"author,omitempty"`
}

type queueResponse struct {
	Items      []queuedItem      `json:"items"`
	Pagination models.Pagination `json:"pagination"`
}

// PendingContentHandler returns the review queue for one content kind,
// newest first
func (m Moderation) PendingContentHandler(w http.ResponseWriter, r *http.Request) {
	db, _, ok := contentDBFor(mux.Vars(r)["kind"], m.PostDB, m.CommentDB)
	if !ok {
		config.ErrorStatus("unknown content kind", http.StatusBadRequest, w, errors.New(mux.Vars(r)["kind"]))
		return
	}
	page := getPage(r)
	limit := getLimit(r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	filter := bson.M{"moderationStatus": models.StatusPending}
	sort := bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	if r.URL.Query().Get("sort") == "oldest" {
		sort = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	}

	items, err := db.FindPage(ctx, filter, page, limit, sort)
	if err != nil {
		config.ErrorStatus("failed to get pending content", http.StatusInternalServerError, w, err)
		return
	}
	total, err := db.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count pending content", http.StatusInternalServerError, w, err)
		return
	}
	authors, err := authorSummaries(ctx, m.UserDB, items)
	if err != nil {
		config.ErrorStatus("failed to get content authors", http.StatusInternalServerError, w, err)
		return
	}

	resp := queueResponse{Items: make([]queuedItem, 0, len(items)), Pagination: paginationFor(page, limit, total)}
	for _, item := range items {
		q := queuedItem{ContentItem: item}
		if a, ok := authors[item.UserID]; ok {
			q.Author = &a
		}
		resp.Items = append(resp.Items, q)
	}

	b, err := json.Marshal(resp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

type reviewDetail struct {
	Content        *models.ContentItem         `json:"content,omitempty"`
	Author         *models.AuthorSummary       `json:"author,omitempty"`
	History        []models.ModerationLogEntry `json:"history"`
	UserViolations []models.ModerationLogEntry `json:"userViolations,omitempty"`
}

// ReviewDetailHandler returns everything a moderator needs to judge one
// item: the content, its author profile and the recent log history
func (m Moderation) ReviewDetailHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := objectID(w, vars["id"])
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	if vars["kind"] == models.KindUser {
		user, err := m.UserDB.FindOne(ctx, bson.M{"_id": id})
		if err != nil {
			config.ErrorStatus("failed to get user", http.StatusNotFound, w, err)
			return
		}
		history, err := m.LogDB.FindByUser(ctx, id, 10)
		if err != nil {
			config.ErrorStatus("failed to get moderation history", http.StatusInternalServerError, w, err)
			return
		}
		summary := user.Summary()
		writeJSON(w, reviewDetail{Author: &summary, History: history})
		return
	}

	db, kind, ok := contentDBFor(vars["kind"], m.PostDB, m.CommentDB)
	if !ok {
		config.ErrorStatus("unknown review kind", http.StatusBadRequest, w, errors.New(vars["kind"]))
		return
	}
	item, err := db.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get content", http.StatusNotFound, w, err)
		return
	}
	user, err := m.UserDB.FindOne(ctx, bson.M{"_id": item.UserID})
	if err != nil {
		config.ErrorStatus("failed to get content author", http.StatusInternalServerError, w, err)
		return
	}
	history, err := m.LogDB.FindByContent(ctx, kind, id, 10)
	if err != nil {
		config.ErrorStatus("failed to get moderation history", http.StatusInternalServerError, w, err)
		return
	}
	violations, err := m.LogDB.FindUserViolations(ctx, item.UserID, 5)
	if err != nil {
		config.ErrorStatus("failed to get author violations", http.StatusInternalServerError, w, err)
		return
	}

	summary := user.Summary()
	writeJSON(w, reviewDetail{Content: item, Author: &summary, History: history, UserViolations: violations})
}

// ApproveHandler approves one pending item
func (m Moderation) ApproveHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	db, kind, ok := contentDBFor(vars["kind"], m.PostDB, m.CommentDB)
	if !ok {
		config.ErrorStatus("unknown content kind", http.StatusBadRequest, w, errors.New(vars["kind"]))
		return
	}
	id, ok := objectID(w, vars["id"])
	if !ok {
		return
	}
	reviewerID, ok := objectID(w, p.UserID)
	if !ok {
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	now := primitive.NewDateTimeFromTime(time.Now())
	item, err := db.Transition(ctx, id, []string{models.StatusPending}, bson.M{
		"moderationStatus": models.StatusApproved,
		"moderationReason": "",
		"wasPublished":     true,
		"isActive":         true,
		"reviewedBy":       reviewerID,
		"reviewedAt":       now,
	})
	if err != nil {
		transitionError("failed to approve content", w, err)
		return
	}

	m.log(ctx, models.ModerationLogEntry{
		UserID:      item.UserID,
		ContentKind: kind,
		ContentID:   id,
		Action:      models.ActionModeratorApproved,
		ReviewedBy:  &reviewerID,
	})
	api.ObserveModeratorAction(models.ActionModeratorApproved)

	writeJSON(w, item)
}

type rejectRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes,omitempty"`
}

// RejectHandler rejects one pending item and penalizes the author
func (m Moderation) RejectHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	db, kind, ok := contentDBFor(vars["kind"], m.PostDB, m.CommentDB)
	if !ok {
		config.ErrorStatus("unknown content kind", http.StatusBadRequest, w, errors.New(vars["kind"]))
		return
	}
	id, ok := objectID(w, vars["id"])
	if !ok {
		return
	}
	reviewerID, ok := objectID(w, p.UserID)
	if !ok {
		return
	}

	var req rejectRequest
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

	now := primitive.NewDateTimeFromTime(time.Now())
	item, err := db.Transition(ctx, id, []string{models.StatusPending}, bson.M{
		"moderationStatus": models.StatusRejected,
		"moderationReason": req.Reason,
		"isActive":         false,
		"reviewedBy":       reviewerID,
		"reviewedAt":       now,
	})
	if err != nil {
		transitionError("failed to reject content", w, err)
		return
	}

	if _, err := m.Trust.Adjust(ctx, item.UserID, moderation.TrustDeltaModerateViolation, 1); err != nil {
		zap.S().Errorw("failed to penalize author", "userId", item.UserID.Hex(), "error", err)
	}
	m.log(ctx, models.ModerationLogEntry{
		UserID:           item.UserID,
		ContentKind:      kind,
		ContentID:        id,
		Action:           models.ActionModeratorRejected,
		Reason:           req.Reason,
		ReviewedBy:       &reviewerID,
		ReviewNotes:      req.Notes,
		TrustScoreChange: moderation.TrustDeltaModerateViolation,
	})
	api.ObserveModeratorAction(models.ActionModeratorRejected)

	writeJSON(w, item)
}

// StatsHandler returns the moderation dashboard stats for a period
func (m Moderation) StatsHandler(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	var window time.Duration
	switch period {
	case "1d":
		window = 24 * time.Hour
	case "30d":
		window = 30 * 24 * time.Hour
	case "", "7d":
		period = "7d"
		window = 7 * 24 * time.Hour
	default:
		config.ErrorStatus("unknown period", http.StatusBadRequest, w, errors.New(period))
		return
	}
	since := time.Now().Add(-window)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	actions, err := m.LogDB.StatsByAction(ctx, since)
	if err != nil {
		config.ErrorStatus("failed to aggregate actions", http.StatusInternalServerError, w, err)
		return
	}
	violators, err := m.LogDB.TopViolators(ctx, since, 10)
	if err != nil {
		config.ErrorStatus("failed to aggregate top violators", http.StatusInternalServerError, w, err)
		return
	}
	pendingPosts, err := m.PostDB.CountDocuments(ctx, bson.M{"moderationStatus": models.StatusPending})
	if err != nil {
		config.ErrorStatus("failed to count pending posts", http.StatusInternalServerError, w, err)
		return
	}
	pendingComments, err := m.CommentDB.CountDocuments(ctx, bson.M{"moderationStatus": models.StatusPending})
	if err != nil {
		config.ErrorStatus("failed to count pending comments", http.StatusInternalServerError, w, err)
		return
	}
	openReports, err := m.ReportDB.CountDocuments(ctx, bson.M{"status": bson.M{"$in": []string{models.ReportStatusPending, models.ReportStatusReviewing}}})
	if err != nil {
		config.ErrorStatus("failed to count open reports", http.StatusInternalServerError, w, err)
		return
	}
	openAppeals, err := m.AppealDB.CountDocuments(ctx, bson.M{"status": models.AppealStatusOpen})
	if err != nil {
		config.ErrorStatus("failed to count open appeals", http.StatusInternalServerError, w, err)
		return
	}
	bannedUsers, err := m.UserDB.CountDocuments(ctx, bson.M{"isBanned": true})
	if err != nil {
		config.ErrorStatus("failed to count banned users", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, models.ModerationStats{
		Period:         period,
		Actions:        actions,
		PendingPosts:   pendingPosts,
		PendingComment: pendingComments,
		OpenReports:    openReports,
		OpenAppeals:    openAppeals,
		BannedUsers:    bannedUsers,
		TopViolators:   violators,
	})
}

func (m Moderation) log(ctx context.Context, entry models.ModerationLogEntry) {
	if _, err := m.LogDB.InsertOne(ctx, entry); err != nil {
		zap.S().Errorw("failed to append moderation log", "action", entry.Action, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
