package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/gorilla/mux"

	"github.com/minhng-dev/social-moderation-api/api"
	"github.com/minhng-dev/social-moderation-api/config"
	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/models"
	"github.com/minhng-dev/social-moderation-api/moderation"
)

// Appeal exported for testing purposes
type Appeal struct {
	PostDB    databases.ContentDatabase
	CommentDB databases.ContentDatabase
	UserDB    databases.UserDatabase
	AppealDB  databases.AppealDatabase
	LogDB     databases.ModerationLogDatabase
	Trust     *moderation.TrustManager
}

// FileAppealHandler opens an appeal against rejected content or a ban. The
// target keeps its current status; the appeal waits in its own queue.
func (h Appeal) FileAppealHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	appellantID, ok := objectID(w, p.UserID)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	targetID, ok := objectID(w, vars["id"])
	if !ok {
		return
	}

	var req models.FileAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if len(req.Reason) < models.MinAppealReasonLength {
		config.ErrorStatus("appeal reason too short", http.StatusBadRequest, w, errors.New("reason below minimum length"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	kind := vars["kind"]
	switch kind {
	case models.KindPost, models.KindComment:
		db := h.PostDB
		if kind == models.KindComment {
			db = h.CommentDB
		}
		item, err := db.FindOne(ctx, bson.M{"_id": targetID})
		if err != nil {
			config.ErrorStatus("failed to get appeal target", http.StatusNotFound, w, err)
			return
		}
		if item.UserID != appellantID {
			config.ErrorStatus("not the content owner", http.StatusForbidden, w, errors.New("owner only"))
			return
		}
		if item.ModerationStatus != models.StatusRejected {
			config.ErrorStatus("only rejected content can be appealed", http.StatusBadRequest, w, errors.New(item.ModerationStatus))
			return
		}
	case models.KindAccount:
		if targetID != appellantID {
			config.ErrorStatus("not the banned account", http.StatusForbidden, w, errors.New("owner only"))
			return
		}
		user, err := h.UserDB.FindOne(ctx, bson.M{"_id": targetID})
		if err != nil {
			config.ErrorStatus("failed to get account", http.StatusNotFound, w, err)
			return
		}
		if !user.IsBanned {
			config.ErrorStatus("account is not banned", http.StatusBadRequest, w, errors.New("no ban to appeal"))
			return
		}
	default:
		config.ErrorStatus("unknown appeal kind", http.StatusBadRequest, w, errors.New(kind))
		return
	}

	if _, err := h.AppealDB.FindOpenByTarget(ctx, kind, targetID); err == nil {
		config.ErrorStatus("appeal already open for this target", http.StatusConflict, w, errors.New("duplicate appeal"))
		return
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("failed to check existing appeals", http.StatusInternalServerError, w, err)
		return
	}

	appeal := models.Appeal{
		TargetKind:  kind,
		TargetID:    targetID,
		AppellantID: appellantID,
		Reason:      req.Reason,
		Status:      models.AppealStatusOpen,
		CreatedAt:   primitive.NewDateTimeFromTime(time.Now()),
	}
	insertedID, err := h.AppealDB.InsertOne(ctx, appeal)
	if err != nil {
		config.ErrorStatus("failed to insert appeal", http.StatusInternalServerError, w, err)
		return
	}
	if oid, ok := insertedID.(primitive.ObjectID); ok {
		appeal.ID = oid
	}

	h.log(ctx, models.ModerationLogEntry{
		UserID:      appellantID,
		ContentKind: kind,
		ContentID:   targetID,
		Action:      models.ActionAppealSubmitted,
		Reason:      req.Reason,
	})

	b, err := json.Marshal(appeal)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

type appealListResponse struct {
	Appeals    []models.Appeal   `json:"appeals"`
	Pagination models.Pagination `json:"pagination"`
}

// ListAppealsHandler returns open appeals, newest first
func (h Appeal) ListAppealsHandler(w http.ResponseWriter, r *http.Request) {
	page := getPage(r)
	limit := getLimit(r)

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	filter := bson.M{"status": models.AppealStatusOpen}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	}

	appeals, err := h.AppealDB.FindPage(ctx, filter, page, limit, bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if err != nil {
		config.ErrorStatus("failed to get appeals", http.StatusInternalServerError, w, err)
		return
	}
	if len(appeals) == 0 {
		appeals = []models.Appeal{}
	}
	total, err := h.AppealDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count appeals", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, appealListResponse{Appeals: appeals, Pagination: paginationFor(page, limit, total)})
}

// ResolveAppealHandler closes an open appeal. The stored target kind alone
// decides what an approval restores.
func (h Appeal) ResolveAppealHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	reviewerID, ok := objectID(w, p.UserID)
	if !ok {
		return
	}
	id, ok := objectID(w, mux.Vars(r)["id"])
	if !ok {
		return
	}

	var req models.ResolveAppealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Decision != models.AppealDecisionApprove && req.Decision != models.AppealDecisionReject {
		config.ErrorStatus("unknown appeal decision", http.StatusBadRequest, w, errors.New(req.Decision))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	appeal, err := h.AppealDB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get appeal", http.StatusNotFound, w, err)
		return
	}
	if appeal.Status != models.AppealStatusOpen {
		transitionError("appeal already resolved", w, databases.ErrStateConflict)
		return
	}

	status := models.AppealStatusRejected
	action := models.ActionAppealRejected
	if req.Decision == models.AppealDecisionApprove {
		status = models.AppealStatusApproved
		action = models.ActionAppealApproved
		// restore the target first; if it fails the appeal stays open
		if err := h.restore(ctx, appeal, reviewerID); err != nil {
			transitionError("failed to restore appeal target", w, err)
			return
		}
	}

	appeal, err = h.AppealDB.Resolve(ctx, id, bson.M{
		"status":          status,
		"resolutionNotes": req.Notes,
		"resolvedBy":      reviewerID,
	})
	if err != nil {
		transitionError("failed to resolve appeal", w, err)
		return
	}

	entry := models.ModerationLogEntry{
		UserID:      appeal.AppellantID,
		ContentKind: appeal.TargetKind,
		ContentID:   appeal.TargetID,
		Action:      action,
		ReviewedBy:  &reviewerID,
		ReviewNotes: req.Notes,
	}
	if action == models.ActionAppealApproved && appeal.TargetKind != models.KindAccount {
		entry.TrustScoreChange = moderation.TrustDeltaAppealApproved
	}
	h.log(ctx, entry)
	api.ObserveModeratorAction(action)

	writeJSON(w, appeal)
}

// restore undoes the decision the approved appeal was against
func (h Appeal) restore(ctx context.Context, appeal *models.Appeal, reviewerID primitive.ObjectID) error {
	switch appeal.TargetKind {
	case models.KindAccount:
		if _, err := h.UserDB.Unban(ctx, appeal.TargetID); err != nil {
			return err
		}
		h.log(ctx, models.ModerationLogEntry{
			UserID:      appeal.TargetID,
			ContentKind: models.KindAccount,
			ContentID:   appeal.TargetID,
			Action:      models.ActionUnbanned,
			ReviewedBy:  &reviewerID,
		})
		return nil
	default:
		db := h.PostDB
		if appeal.TargetKind == models.KindComment {
			db = h.CommentDB
		}
		_, err := db.Transition(ctx, appeal.TargetID, []string{models.StatusRejected}, bson.M{
			"moderationStatus": models.StatusApproved,
			"moderationReason": "",
			"wasPublished":     true,
			"isActive":         true,
			"reviewedBy":       reviewerID,
			"reviewedAt":       primitive.NewDateTimeFromTime(time.Now()),
		})
		if err != nil {
			return err
		}
		// the AI was wrong, give the points back
		if _, err := h.Trust.Adjust(ctx, appeal.AppellantID, moderation.TrustDeltaAppealApproved, -1); err != nil {
			return err
		}
		return nil
	}
}

func (h Appeal) log(ctx context.Context, entry models.ModerationLogEntry) {
	if _, err := h.LogDB.InsertOne(ctx, entry); err != nil {
		zap.S().Errorw("failed to append moderation log", "action", entry.Action, "error", err)
	}
}
