package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/minhng-dev/social-moderation-api/api/handlers"
	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/models"
	"github.com/minhng-dev/social-moderation-api/moderation"
)

func newAppealHandler(postDB fakeContentDB, userDB fakeUserDB, appealDB fakeAppealDB, logDB fakeLogDB) handlers.Appeal {
	return handlers.Appeal{
		PostDB:    postDB,
		CommentDB: fakeContentDB{},
		UserDB:    userDB,
		AppealDB:  appealDB,
		LogDB:     logDB,
		Trust:     &moderation.TrustManager{Users: userDB, Logs: logDB},
	}
}

func TestFileAppeal_ReasonTooShort(t *testing.T) {
	h := newAppealHandler(fakeContentDB{}, fakeUserDB{}, fakeAppealDB{}, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/appeal/post/x",
		jsonBody(`{"reason":"unfair"}`),
		asUser(primitive.NewObjectID()), map[string]string{"kind": "post", "id": primitive.NewObjectID().Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.FileAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFileAppeal_NotOwner(t *testing.T) {
	itemID := primitive.NewObjectID()
	postDB := fakeContentDB{findOne: func(ctx context.Context, filter interface{}) (*models.ContentItem, error) {
		return &models.ContentItem{ID: itemID, UserID: primitive.NewObjectID(), ModerationStatus: models.StatusRejected}, nil
	}}
	h := newAppealHandler(postDB, fakeUserDB{}, fakeAppealDB{}, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/appeal/post/x",
		jsonBody(`{"reason":"this decision was wrong"}`),
		asUser(primitive.NewObjectID()), map[string]string{"kind": "post", "id": itemID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.FileAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestFileAppeal_OnlyRejectedContent(t *testing.T) {
	appellantID := primitive.NewObjectID()
	itemID := primitive.NewObjectID()
	postDB := fakeContentDB{findOne: func(ctx context.Context, filter interface{}) (*models.ContentItem, error) {
		return &models.ContentItem{ID: itemID, UserID: appellantID, ModerationStatus: models.StatusApproved}, nil
	}}
	h := newAppealHandler(postDB, fakeUserDB{}, fakeAppealDB{}, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/appeal/post/x",
		jsonBody(`{"reason":"this decision was wrong"}`),
		asUser(appellantID), map[string]string{"kind": "post", "id": itemID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.FileAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFileAppeal_DuplicateOpen(t *testing.T) {
	appellantID := primitive.NewObjectID()
	itemID := primitive.NewObjectID()
	postDB := fakeContentDB{findOne: func(ctx context.Context, filter interface{}) (*models.ContentItem, error) {
		return &models.ContentItem{ID: itemID, UserID: appellantID, ModerationStatus: models.StatusRejected}, nil
	}}
	appealDB := fakeAppealDB{findOpenByTarget: func(ctx context.Context, targetKind string, targetID primitive.ObjectID) (*models.Appeal, error) {
		return &models.Appeal{TargetKind: targetKind, TargetID: targetID, Status: models.AppealStatusOpen}, nil
	}}
	h := newAppealHandler(postDB, fakeUserDB{}, appealDB, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/appeal/post/x",
		jsonBody(`{"reason":"this decision was wrong"}`),
		asUser(appellantID), map[string]string{"kind": "post", "id": itemID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.FileAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestFileAppeal_BanAppealByOwner(t *testing.T) {
	appellantID := primitive.NewObjectID()
	userDB := fakeUserDB{findOne: func(ctx context.Context, filter interface{}) (*models.User, error) {
		return &models.User{ID: appellantID, IsBanned: true, BannedReason: "repeated_violations"}, nil
	}}
	var inserted models.Appeal
	appealDB := fakeAppealDB{insertOne: func(ctx context.Context, appeal models.Appeal) (interface{}, error) {
		inserted = appeal
		return primitive.NewObjectID(), nil
	}}
	h := newAppealHandler(fakeContentDB{}, userDB, appealDB, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/appeal/account/x",
		jsonBody(`{"reason":"the ban was a mistake, my account was hijacked"}`),
		asUser(appellantID), map[string]string{"kind": "account", "id": appellantID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.FileAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, models.KindAccount, inserted.TargetKind)
	assert.Equal(t, appellantID, inserted.TargetID)
	assert.Equal(t, models.AppealStatusOpen, inserted.Status)
}

func TestFileAppeal_BanAppealForOtherAccount(t *testing.T) {
	h := newAppealHandler(fakeContentDB{}, fakeUserDB{}, fakeAppealDB{}, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/appeal/account/x",
		jsonBody(`{"reason":"unban my friend please"}`),
		asUser(primitive.NewObjectID()), map[string]string{"kind": "account", "id": primitive.NewObjectID().Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.FileAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestResolveAppeal_UnknownDecision(t *testing.T) {
	h := newAppealHandler(fakeContentDB{}, fakeUserDB{}, fakeAppealDB{}, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/moderation/resolve-appeal/x",
		jsonBody(`{"decision":"maybe"}`),
		asModerator(primitive.NewObjectID()), map[string]string{"id": primitive.NewObjectID().Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ResolveAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResolveAppeal_ApproveRestoresContent(t *testing.T) {
	appellantID := primitive.NewObjectID()
	targetID := primitive.NewObjectID()
	appealID := primitive.NewObjectID()

	appealDB := fakeAppealDB{
		findOne: func(ctx context.Context, filter interface{}) (*models.Appeal, error) {
			return &models.Appeal{
				ID:          appealID,
				TargetKind:  models.KindPost,
				TargetID:    targetID,
				AppellantID: appellantID,
				Status:      models.AppealStatusOpen,
			}, nil
		},
		resolve: func(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Appeal, error) {
			return &models.Appeal{
				ID:          id,
				TargetKind:  models.KindPost,
				TargetID:    targetID,
				AppellantID: appellantID,
				Status:      set["status"].(string),
			}, nil
		},
	}
	var restoredFrom []string
	var restoredSet bson.M
	postDB := fakeContentDB{transition: func(ctx context.Context, id primitive.ObjectID, fromStatuses []string, set bson.M) (*models.ContentItem, error) {
		restoredFrom = fromStatuses
		restoredSet = set
		return &models.ContentItem{ID: id, UserID: appellantID, ModerationStatus: models.StatusApproved}, nil
	}}
	var trustDelta, violationDelta int
	userDB := fakeUserDB{adjustTrust: func(ctx context.Context, id primitive.ObjectID, scoreDelta, vDelta int) (*models.User, error) {
		trustDelta = scoreDelta
		violationDelta = vDelta
		return &models.User{ID: id, Role: models.RoleUser, TrustScore: 65}, nil
	}}
	h := newAppealHandler(postDB, userDB, appealDB, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/moderation/resolve-appeal/x",
		jsonBody(`{"decision":"approve","notes":"score was a false positive"}`),
		asModerator(primitive.NewObjectID()), map[string]string{"id": appealID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ResolveAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{models.StatusRejected}, restoredFrom)
	assert.Equal(t, models.StatusApproved, restoredSet["moderationStatus"])
	assert.Equal(t, true, restoredSet["isActive"])
	assert.Equal(t, moderation.TrustDeltaAppealApproved, trustDelta)
	assert.Equal(t, -1, violationDelta)
}

func TestResolveAppeal_ApproveLiftsBan(t *testing.T) {
	appellantID := primitive.NewObjectID()
	appealID := primitive.NewObjectID()

	appealDB := fakeAppealDB{
		findOne: func(ctx context.Context, filter interface{}) (*models.Appeal, error) {
			return &models.Appeal{
				ID:          appealID,
				TargetKind:  models.KindAccount,
				TargetID:    appellantID,
				AppellantID: appellantID,
				Status:      models.AppealStatusOpen,
			}, nil
		},
		resolve: func(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Appeal, error) {
			return &models.Appeal{
				ID:          id,
				TargetKind:  models.KindAccount,
				TargetID:    appellantID,
				AppellantID: appellantID,
				Status:      set["status"].(string),
			}, nil
		},
	}
	var unbanned bool
	userDB := fakeUserDB{unban: func(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
		unbanned = true
		return &models.User{ID: id}, nil
	}}
	h := newAppealHandler(fakeContentDB{}, userDB, appealDB, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/moderation/resolve-appeal/x",
		jsonBody(`{"decision":"approve"}`),
		asModerator(primitive.NewObjectID()), map[string]string{"id": appealID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ResolveAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, unbanned)
}

func TestResolveAppeal_RejectLeavesTargetAlone(t *testing.T) {
	appealID := primitive.NewObjectID()
	appealDB := fakeAppealDB{
		findOne: func(ctx context.Context, filter interface{}) (*models.Appeal, error) {
			return &models.Appeal{ID: appealID, TargetKind: models.KindPost, TargetID: primitive.NewObjectID(), Status: models.AppealStatusOpen}, nil
		},
		resolve: func(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Appeal, error) {
			return &models.Appeal{ID: id, TargetKind: models.KindPost, TargetID: primitive.NewObjectID(), Status: set["status"].(string)}, nil
		},
	}
	var touched bool
	postDB := fakeContentDB{transition: func(ctx context.Context, id primitive.ObjectID, fromStatuses []string, set bson.M) (*models.ContentItem, error) {
		touched = true
		return nil, nil
	}}
	var logged models.ModerationLogEntry
	logDB := fakeLogDB{insertOne: func(ctx context.Context, entry models.ModerationLogEntry) (interface{}, error) {
		logged = entry
		return primitive.NewObjectID(), nil
	}}
	h := newAppealHandler(postDB, fakeUserDB{}, appealDB, logDB)

	req := authedRequest(http.MethodPost, "/api/v1/moderation/resolve-appeal/x",
		jsonBody(`{"decision":"reject","notes":"decision stands"}`),
		asModerator(primitive.NewObjectID()), map[string]string{"id": appealID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ResolveAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, touched)
	assert.Equal(t, models.ActionAppealRejected, logged.Action)

	var resp models.Appeal
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.Equal(t, models.AppealStatusRejected, resp.Status)
}

func TestResolveAppeal_RestoreFailureLeavesAppealOpen(t *testing.T) {
	appellantID := primitive.NewObjectID()
	appealID := primitive.NewObjectID()

	var resolved bool
	appealDB := fakeAppealDB{
		findOne: func(ctx context.Context, filter interface{}) (*models.Appeal, error) {
			return &models.Appeal{
				ID:          appealID,
				TargetKind:  models.KindPost,
				TargetID:    primitive.NewObjectID(),
				AppellantID: appellantID,
				Status:      models.AppealStatusOpen,
			}, nil
		},
		resolve: func(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Appeal, error) {
			resolved = true
			return &models.Appeal{ID: id, Status: set["status"].(string)}, nil
		},
	}
	postDB := fakeContentDB{transition: func(ctx context.Context, id primitive.ObjectID, fromStatuses []string, set bson.M) (*models.ContentItem, error) {
		return nil, databases.ErrStateConflict
	}}
	h := newAppealHandler(postDB, fakeUserDB{}, appealDB, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/moderation/resolve-appeal/x",
		jsonBody(`{"decision":"approve"}`),
		asModerator(primitive.NewObjectID()), map[string]string{"id": appealID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ResolveAppealHandler).ServeHTTP(rr, req)

	// the content could not be restored, so the appeal must not read approved
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.False(t, resolved)
}

func TestResolveAppeal_AlreadyResolvedConflicts(t *testing.T) {
	appealID := primitive.NewObjectID()
	appealDB := fakeAppealDB{findOne: func(ctx context.Context, filter interface{}) (*models.Appeal, error) {
		return &models.Appeal{ID: appealID, TargetKind: models.KindAccount, TargetID: primitive.NewObjectID(), Status: models.AppealStatusApproved}, nil
	}}
	var unbanned bool
	userDB := fakeUserDB{unban: func(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
		unbanned = true
		return &models.User{ID: id}, nil
	}}
	h := newAppealHandler(fakeContentDB{}, userDB, appealDB, fakeLogDB{})

	req := authedRequest(http.MethodPost, "/api/v1/moderation/resolve-appeal/x",
		jsonBody(`{"decision":"approve"}`),
		asModerator(primitive.NewObjectID()), map[string]string{"id": appealID.Hex()})
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ResolveAppealHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.False(t, unbanned)
}

func TestListAppeals_DefaultsToOpen(t *testing.T) {
	var gotFilter bson.M
	appealDB := fakeAppealDB{
		findPage: func(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.Appeal, error) {
			gotFilter = filter.(bson.M)
			return []models.Appeal{{Status: models.AppealStatusOpen}}, nil
		},
		count: func(ctx context.Context, filter interface{}) (int64, error) { return 1, nil },
	}
	h := newAppealHandler(fakeContentDB{}, fakeUserDB{}, appealDB, fakeLogDB{})

	req := authedRequest(http.MethodGet, "/api/v1/moderation/appeals", nil,
		asModerator(primitive.NewObjectID()), nil)
	rr := httptest.NewRecorder()
	http.HandlerFunc(h.ListAppealsHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, models.AppealStatusOpen, gotFilter["status"])
}
