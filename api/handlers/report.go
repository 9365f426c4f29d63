package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
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

// MaxReportDescriptionLength bounds the free-text description
const MaxReportDescriptionLength = 500

// Report exported for testing purposes
type Report struct {
	PostDB    databases.ContentDatabase
	CommentDB databases.ContentDatabase
	UserDB    databases.UserDatabase
	ReportDB  databases.ReportDatabase
	LogDB     databases.ModerationLogDatabase
	Trust     *moderation.TrustManager
	Limiter   *moderation.Limiter
}

// FileReportHandler files a report against a post, comment or user
func (h Report) FileReportHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	reporterID, ok := objectID(w, p.UserID)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	targetID, ok := objectID(w, vars["id"])
	if !ok {
		return
	}

	var req models.FileReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if !models.ValidReportReason(req.Reason) {
		config.ErrorStatus("unknown report reason", http.StatusBadRequest, w, errors.New(req.Reason))
		return
	}
	if len(req.Description) > MaxReportDescriptionLength {
		config.ErrorStatus("description too long", http.StatusBadRequest, w, errors.New("description exceeds max length"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// resolve the reported owner
	var reportedUserID primitive.ObjectID
	kind := vars["kind"]
	switch kind {
	case models.KindUser:
		target, err := h.UserDB.FindOne(ctx, bson.M{"_id": targetID})
		if err != nil {
			config.ErrorStatus("failed to get reported user", http.StatusNotFound, w, err)
			return
		}
		reportedUserID = target.ID
	case models.KindPost, models.KindComment:
		db := h.PostDB
		if kind == models.KindComment {
			db = h.CommentDB
		}
		item, err := db.FindOne(ctx, bson.M{"_id": targetID})
		if err != nil {
			config.ErrorStatus("failed to get reported content", http.StatusNotFound, w, err)
			return
		}
		reportedUserID = item.UserID
	default:
		config.ErrorStatus("unknown report kind", http.StatusBadRequest, w, errors.New(kind))
		return
	}

	if reportedUserID == reporterID {
		config.ErrorStatus("cannot report yourself", http.StatusBadRequest, w, errors.New("self report"))
		return
	}

	openFilter := bson.M{"status": bson.M{"$in": []string{models.ReportStatusPending, models.ReportStatusReviewing}}}
	dupFilter := bson.M{
		"reporterId":  reporterID,
		"contentKind": kind,
		"contentId":   targetID,
	}
	for k, v := range openFilter {
		dupFilter[k] = v
	}
	if _, err := h.ReportDB.FindOne(ctx, dupFilter); err == nil {
		config.ErrorStatus("report already open for this target", http.StatusConflict, w, errors.New("duplicate report"))
		return
	} else if !errors.Is(err, mongo.ErrNoDocuments) {
		config.ErrorStatus("failed to check existing reports", http.StatusInternalServerError, w, err)
		return
	}

	if !h.Limiter.Allow(reporterID.Hex()) {
		config.ErrorStatus("report rate limit exceeded", http.StatusTooManyRequests, w, errors.New("too many reports"))
		return
	}

	targetFilter := bson.M{"contentKind": kind, "contentId": targetID}
	for k, v := range openFilter {
		targetFilter[k] = v
	}
	openCount, err := h.ReportDB.CountDocuments(ctx, targetFilter)
	if err != nil {
		config.ErrorStatus("failed to count open reports", http.StatusInternalServerError, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	report := models.Report{
		ReporterID:     reporterID,
		ContentKind:    kind,
		ContentID:      targetID,
		ReportedUserID: reportedUserID,
		Reason:         req.Reason,
		Description:    req.Description,
		Priority:       moderation.ReportPriority(req.Reason, openCount),
		Status:         models.ReportStatusPending,
		Action:         models.ReportActionNone,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	insertedID, err := h.ReportDB.InsertOne(ctx, report)
	if err != nil {
		config.ErrorStatus("failed to insert report", http.StatusInternalServerError, w, err)
		return
	}
	if oid, ok := insertedID.(primitive.ObjectID); ok {
		report.ID = oid
	}

	if _, err := h.UserDB.UpdateOne(ctx, bson.M{"_id": reportedUserID}, bson.M{"$inc": bson.M{"reportCount": 1}}); err != nil {
		zap.S().Errorw("failed to bump report count", "userId", reportedUserID.Hex(), "error", err)
	}

	// enough independent reports pull the whole target into review
	if openCount+1 >= moderation.ReportEscalationCount {
		if _, err := h.ReportDB.UpdateMany(ctx,
			bson.M{"contentKind": kind, "contentId": targetID, "status": models.ReportStatusPending},
			bson.M{"$set": bson.M{"status": models.ReportStatusReviewing, "updatedAt": now}},
		); err != nil {
			zap.S().Errorw("failed to escalate reports", "contentId", targetID.Hex(), "error", err)
		}
	}

	b, err := json.Marshal(report)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(b)
}

type reportListResponse struct {
	Reports    []models.Report   `json:"reports"`
	Counts     map[string]int64  `json:"counts"`
	Pagination models.Pagination `json:"pagination"`
}

// ListReportsHandler returns the triage queue, highest priority first
func (h Report) ListReportsHandler(w http.ResponseWriter, r *http.Request) {
	page := getPage(r)
	limit := getLimit(r)

	filter := bson.M{}
	if kind := r.URL.Query().Get("type"); kind != "" {
		filter["contentKind"] = kind
	}
	if status := r.URL.Query().Get("status"); status != "" {
		filter["status"] = status
	} else {
		filter["status"] = bson.M{"$in": []string{models.ReportStatusPending, models.ReportStatusReviewing}}
	}
	if rawPriority := r.URL.Query().Get("priority"); rawPriority != "" {
		priority, err := strconv.Atoi(rawPriority)
		if err != nil {
			config.ErrorStatus("failed to parse priority", http.StatusBadRequest, w, err)
			return
		}
		filter["priority"] = priority
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	sort := bson.D{{Key: "priority", Value: -1}, {Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	reports, err := h.ReportDB.FindPage(ctx, filter, page, limit, sort)
	if err != nil {
		config.ErrorStatus("failed to get reports", http.StatusInternalServerError, w, err)
		return
	}
	if len(reports) == 0 {
		reports = []models.Report{}
	}
	total, err := h.ReportDB.CountDocuments(ctx, filter)
	if err != nil {
		config.ErrorStatus("failed to count reports", http.StatusInternalServerError, w, err)
		return
	}
	counts, err := h.ReportDB.CountByStatus(ctx, bson.M{})
	if err != nil {
		config.ErrorStatus("failed to aggregate report counts", http.StatusInternalServerError, w, err)
		return
	}

	writeJSON(w, reportListResponse{
		Reports:    reports,
		Counts:     counts,
		Pagination: paginationFor(page, limit, total),
	})
}

// DismissReportHandler closes a report with no action against the target
func (h Report) DismissReportHandler(w http.ResponseWriter, r *http.Request) {
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

	var req models.ResolveReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Note == "" {
		config.ErrorStatus("note is required", http.StatusBadRequest, w, errors.New("empty note"))
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	report, err := h.ReportDB.Resolve(ctx, id, bson.M{
		"status":     models.ReportStatusDismissed,
		"action":     models.ReportActionDismissed,
		"reviewerId": reviewerID,
		"reviewNote": req.Note,
		"reviewedAt": primitive.NewDateTimeFromTime(time.Now()),
	})
	if err != nil {
		transitionError("failed to dismiss report", w, err)
		return
	}

	h.log(ctx, models.ModerationLogEntry{
		UserID:      report.ReportedUserID,
		ContentKind: report.ContentKind,
		ContentID:   report.ContentID,
		Action:      models.ActionReportDismissed,
		Reason:      report.Reason,
		ReviewedBy:  &reviewerID,
		ReviewNotes: req.Note,
	})
	api.ObserveModeratorAction(models.ActionReportDismissed)

	writeJSON(w, report)
}

// ResolveReportHandler upholds a report: reported content is removed,
// reported users are banned
func (h Report) ResolveReportHandler(w http.ResponseWriter, r *http.Request) {
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

	var req models.ResolveReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	report, err := h.ReportDB.FindOne(ctx, bson.M{"_id": id})
	if err != nil {
		config.ErrorStatus("failed to get report", http.StatusNotFound, w, err)
		return
	}
	// the ban and removal below are irreversible, a terminal report must
	// conflict before any of them run
	if report.Status != models.ReportStatusPending && report.Status != models.ReportStatusReviewing {
		transitionError("report already resolved", w, databases.ErrStateConflict)
		return
	}

	action := models.ReportActionContentRemoved
	switch report.ContentKind {
	case models.KindPost, models.KindComment:
		if err := h.removeContent(ctx, report, reviewerID); err != nil {
			config.ErrorStatus("failed to remove reported content", http.StatusInternalServerError, w, err)
			return
		}
	case models.KindUser:
		if req.Reason == "" {
			config.ErrorStatus("reason is required to ban a user", http.StatusBadRequest, w, errors.New("empty reason"))
			return
		}
		if err := h.banReported(ctx, report, reviewerID, req.Reason, req.DurationDays); err != nil {
			config.ErrorStatus("failed to ban reported user", http.StatusInternalServerError, w, err)
			return
		}
		action = models.ReportActionUserBanned
	default:
		config.ErrorStatus("unknown report kind", http.StatusBadRequest, w, errors.New(report.ContentKind))
		return
	}

	resolved, err := h.ReportDB.Resolve(ctx, id, bson.M{
		"status":     models.ReportStatusResolved,
		"action":     action,
		"reviewerId": reviewerID,
		"reviewNote": req.Note,
		"reviewedAt": primitive.NewDateTimeFromTime(time.Now()),
	})
	if err != nil {
		transitionError("failed to resolve report", w, err)
		return
	}
	api.ObserveModeratorAction(models.ActionDeletedByReport)

	writeJSON(w, resolved)
}

// removeContent rejects the reported item. Published content is allowed to
// leave the approved status here, this is the one path that may do so.
func (h Report) removeContent(ctx context.Context, report *models.Report, reviewerID primitive.ObjectID) error {
	db := h.PostDB
	if report.ContentKind == models.KindComment {
		db = h.CommentDB
	}

	_, err := db.Transition(ctx, report.ContentID,
		[]string{models.StatusPending, models.StatusApproved},
		bson.M{
			"moderationStatus": models.StatusRejected,
			"moderationReason": models.ActionDeletedByReport,
			"isActive":         false,
			"reviewedBy":       reviewerID,
			"reviewedAt":       primitive.NewDateTimeFromTime(time.Now()),
		})
	if errors.Is(err, databases.ErrStateConflict) {
		// already rejected, the report outcome is the same
		zap.S().Infow("reported content already removed", "contentId", report.ContentID.Hex())
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := h.Trust.Adjust(ctx, report.ReportedUserID, moderation.TrustDeltaModerateViolation, 1); err != nil {
		zap.S().Errorw("failed to penalize reported author", "userId", report.ReportedUserID.Hex(), "error", err)
	}
	h.log(ctx, models.ModerationLogEntry{
		UserID:           report.ReportedUserID,
		ContentKind:      report.ContentKind,
		ContentID:        report.ContentID,
		Action:           models.ActionDeletedByReport,
		Reason:           report.Reason,
		ReviewedBy:       &reviewerID,
		TrustScoreChange: moderation.TrustDeltaModerateViolation,
	})
	return nil
}

func (h Report) banReported(ctx context.Context, report *models.Report, reviewerID primitive.ObjectID, reason string, durationDays int) error {
	var until *time.Time
	if durationDays > 0 {
		t := time.Now().Add(time.Duration(durationDays) * 24 * time.Hour)
		until = &t
	}
	if _, err := h.UserDB.Ban(ctx, report.ReportedUserID, reason, until); err != nil {
		return err
	}
	h.log(ctx, models.ModerationLogEntry{
		UserID:      report.ReportedUserID,
		ContentKind: models.KindAccount,
		ContentID:   report.ReportedUserID,
		Action:      models.ActionBanned,
		Reason:      reason,
		ReviewedBy:  &reviewerID,
	})
	return nil
}

func (h Report) log(ctx context.Context, entry models.ModerationLogEntry) {
	if _, err := h.LogDB.InsertOne(ctx, entry); err != nil {
		zap.S().Errorw("failed to append moderation log", "action", entry.Action, "error", err)
	}
}
