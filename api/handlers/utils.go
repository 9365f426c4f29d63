package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/minhng-dev/social-moderation-api/api"
	"github.com/minhng-dev/social-moderation-api/config"
	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/models"
)

// getPage parses the page query param, defaulting to 1
func getPage(r *http.Request) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		zap.S().Warnf("cannot parse page number %q, using 1", raw)
		return 1
	}
	return page
}

// getLimit parses the limit query param, defaulting to 20 and capping at 100
func getLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 20
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		zap.S().Warnf("cannot parse limit %q, using 20", raw)
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

func paginationFor(page, limit int, total int64) models.Pagination {
	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return models.Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// principal pulls the authenticated caller or writes 401
func principal(w http.ResponseWriter, r *http.Request) (api.Principal, bool) {
	p, ok := api.PrincipalFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated caller", http.StatusUnauthorized, w, errors.New("no principal in context"))
	}
	return p, ok
}

// objectID parses a hex path var or writes 400
func objectID(w http.ResponseWriter, raw string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

// transitionError maps the optimistic-update failures onto 404 vs 409
func transitionError(message string, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, databases.ErrStateConflict):
		config.ErrorStatus(message, http.StatusConflict, w, err)
	case errors.Is(err, mongo.ErrNoDocuments):
		config.ErrorStatus(message, http.StatusNotFound, w, err)
	default:
		config.ErrorStatus(message, http.StatusInternalServerError, w, err)
	}
}

// contentDBFor picks the posts or comments database from a path kind. It
// accepts both the singular stored kind and the plural queue form.
func contentDBFor(kind string, postDB, commentDB databases.ContentDatabase) (databases.ContentDatabase, string, bool) {
	switch kind {
	case models.KindPost, "posts":
		return postDB, models.KindPost, true
	case models.KindComment, "comments":
		return commentDB, models.KindComment, true
	default:
		return nil, "", false
	}
}

// authorSummaries loads the queue-facing author summaries for a batch of
// content items
func authorSummaries(ctx context.Context, userDB databases.UserDatabase, items []models.ContentItem) (map[primitive.ObjectID]models.AuthorSummary, error) {
	ids := make([]primitive.ObjectID, 0, len(items))
	seen := make(map[primitive.ObjectID]bool, len(items))
	for _, item := range items {
		if !seen[item.UserID] {
			seen[item.UserID] = true
			ids = append(ids, item.UserID)
		}
	}
	if len(ids) == 0 {
		return map[primitive.ObjectID]models.AuthorSummary{}, nil
	}

	users, err := userDB.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	summaries := make(map[primitive.ObjectID]models.AuthorSummary, len(users))
	for i := range users {
		summaries[users[i].ID] = users[i].Summary()
	}
	return summaries, nil
}
