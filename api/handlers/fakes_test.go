package handlers_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/minhng-dev/social-moderation-api/api"
	"github.com/minhng-dev/social-moderation-api/models"
)

// Function-field fakes over the typed database interfaces. Unset fields fall
// back to empty results so each test only wires what it asserts on.

type fakeContentDB struct {
	findOne    func(ctx context.Context, filter interface{}) (*models.ContentItem, error)
	find       func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ContentItem, error)
	findPage   func(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.ContentItem, error)
	count      func(ctx context.Context, filter interface{}) (int64, error)
	insertOne  func(ctx context.Context, item models.ContentItem) (interface{}, error)
	transition func(ctx context.Context, id primitive.ObjectID, fromStatuses []string, set bson.M) (*models.ContentItem, error)
}

func (f fakeContentDB) FindOne(ctx context.Context, filter interface{}) (*models.ContentItem, error) {
	if f.findOne == nil {
		return nil, mongo.ErrNoDocuments
	}
	return f.findOne(ctx, filter)
}

func (f fakeContentDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ContentItem, error) {
	if f.find == nil {
		return nil, nil
	}
	return f.find(ctx, filter, opts...)
}

func (f fakeContentDB) FindPage(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.ContentItem, error) {
	if f.findPage == nil {
		return nil, nil
	}
	return f.findPage(ctx, filter, page, limit, sort)
}

func (f fakeContentDB) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	if f.count == nil {
		return 0, nil
	}
	return f.count(ctx, filter)
}

func (f fakeContentDB) InsertOne(ctx context.Context, item models.ContentItem) (interface{}, error) {
	if f.insertOne == nil {
		return primitive.NewObjectID(), nil
	}
	return f.insertOne(ctx, item)
}

func (f fakeContentDB) Transition(ctx context.Context, id primitive.ObjectID, fromStatuses []string, set bson.M) (*models.ContentItem, error) {
	if f.transition == nil {
		return nil, mongo.ErrNoDocuments
	}
	return f.transition(ctx, id, fromStatuses, set)
}

type fakeUserDB struct {
	findOne     func(ctx context.Context, filter interface{}) (*models.User, error)
	find        func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error)
	count       func(ctx context.Context, filter interface{}) (int64, error)
	insertOne   func(ctx context.Context, user models.User) (interface{}, error)
	updateOne   func(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	updateMany  func(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	ban         func(ctx context.Context, id primitive.ObjectID, reason string, until *time.Time) (*models.User, error)
	unban       func(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	adjustTrust func(ctx context.Context, id primitive.ObjectID, scoreDelta, violationDelta int) (*models.User, error)
}

func (f fakeUserDB) FindOne(ctx context.Context, filter interface{}) (*models.User, error) {
	if f.findOne == nil {
		return nil, mongo.ErrNoDocuments
	}
	return f.findOne(ctx, filter)
}

func (f fakeUserDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error) {
	if f.find == nil {
		return nil, nil
	}
	return f.find(ctx, filter, opts...)
}

func (f fakeUserDB) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	if f.count == nil {
		return 0, nil
	}
	return f.count(ctx, filter)
}

func (f fakeUserDB) InsertOne(ctx context.Context, user models.User) (interface{}, error) {
	if f.insertOne == nil {
		return primitive.NewObjectID(), nil
	}
	return f.insertOne(ctx, user)
}

func (f fakeUserDB) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	if f.updateOne == nil {
		return &mongo.UpdateResult{ModifiedCount: 1}, nil
	}
	return f.updateOne(ctx, filter, update)
}

func (f fakeUserDB) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	if f.updateMany == nil {
		return &mongo.UpdateResult{}, nil
	}
	return f.updateMany(ctx, filter, update)
}

func (f fakeUserDB) Ban(ctx context.Context, id primitive.ObjectID, reason string, until *time.Time) (*models.User, error) {
	if f.ban == nil {
		return &models.User{ID: id, IsBanned: true, BannedReason: reason}, nil
	}
	return f.ban(ctx, id, reason, until)
}

func (f fakeUserDB) Unban(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if f.unban == nil {
		return &models.User{ID: id}, nil
	}
	return f.unban(ctx, id)
}

func (f fakeUserDB) AdjustTrust(ctx context.Context, id primitive.ObjectID, scoreDelta, violationDelta int) (*models.User, error) {
	if f.adjustTrust == nil {
		return &models.User{ID: id, Role: models.RoleUser, TrustScore: models.TrustScoreDefault + scoreDelta, Violations: violationDelta}, nil
	}
	return f.adjustTrust(ctx, id, scoreDelta, violationDelta)
}

type fakeReportDB struct {
	findOne       func(ctx context.Context, filter interface{}) (*models.Report, error)
	find          func(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Report, error)
	findPage      func(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.Report, error)
	count         func(ctx context.Context, filter interface{}) (int64, error)
	countByStatus func(ctx context.Context, filter interface{}) (map[string]int64, error)
	insertOne     func(ctx context.Context, report models.Report) (interface{}, error)
	updateMany    func(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	resolve       func(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Report, error)
}

func (f fakeReportDB) FindOne(ctx context.Context, filter interface{}) (*models.Report, error) {
	if f.findOne == nil {
		return nil, mongo.ErrNoDocuments
	}
	return f.findOne(ctx, filter)
}

func (f fakeReportDB) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Report, error) {
	if f.find == nil {
		return nil, nil
	}
	return f.find(ctx, filter, opts...)
}

func (f fakeReportDB) FindPage(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.Report, error) {
	if f.findPage == nil {
		return nil, nil
	}
	return f.findPage(ctx, filter, page, limit, sort)
}

func (f fakeReportDB) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	if f.count == nil {
		return 0, nil
	}
	return f.count(ctx, filter)
}

func (f fakeReportDB) CountByStatus(ctx context.Context, filter interface{}) (map[string]int64, error) {
	if f.countByStatus == nil {
		return map[string]int64{}, nil
	}
	return f.countByStatus(ctx, filter)
}

func (f fakeReportDB) InsertOne(ctx context.Context, report models.Report) (interface{}, error) {
	if f.insertOne == nil {
		return primitive.NewObjectID(), nil
	}
	return f.insertOne(ctx, report)
}

func (f fakeReportDB) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	if f.updateMany == nil {
		return &mongo.UpdateResult{}, nil
	}
	return f.updateMany(ctx, filter, update)
}

func (f fakeReportDB) Resolve(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Report, error) {
	if f.resolve == nil {
		return nil, mongo.ErrNoDocuments
	}
	return f.resolve(ctx, id, set)
}

type fakeAppealDB struct {
	findOne          func(ctx context.Context, filter interface{}) (*models.Appeal, error)
	findOpenByTarget func(ctx context.Context, targetKind string, targetID primitive.ObjectID) (*models.Appeal, error)
	findPage         func(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.Appeal, error)
	count            func(ctx context.Context, filter interface{}) (int64, error)
	insertOne        func(ctx context.Context, appeal models.Appeal) (interface{}, error)
	resolve          func(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Appeal, error)
}

func (f fakeAppealDB) FindOne(ctx context.Context, filter interface{}) (*models.Appeal, error) {
	if f.findOne == nil {
		return nil, mongo.ErrNoDocuments
	}
	return f.findOne(ctx, filter)
}

func (f fakeAppealDB) FindOpenByTarget(ctx context.Context, targetKind string, targetID primitive.ObjectID) (*models.Appeal, error) {
	if f.findOpenByTarget == nil {
		return nil, mongo.ErrNoDocuments
	}
	return f.findOpenByTarget(ctx, targetKind, targetID)
}

func (f fakeAppealDB) FindPage(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.Appeal, error) {
	if f.findPage == nil {
		return nil, nil
	}
	return f.findPage(ctx, filter, page, limit, sort)
}

func (f fakeAppealDB) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	if f.count == nil {
		return 0, nil
	}
	return f.count(ctx, filter)
}

func (f fakeAppealDB) InsertOne(ctx context.Context, appeal models.Appeal) (interface{}, error) {
	if f.insertOne == nil {
		return primitive.NewObjectID(), nil
	}
	return f.insertOne(ctx, appeal)
}

func (f fakeAppealDB) Resolve(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Appeal, error) {
	if f.resolve == nil {
		return nil, mongo.ErrNoDocuments
	}
	return f.resolve(ctx, id, set)
}

type fakeLogDB struct {
	insertOne        func(ctx context.Context, entry models.ModerationLogEntry) (interface{}, error)
	findByContent    func(ctx context.Context, contentKind string, contentID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error)
	findByUser       func(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error)
	violations       func(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error)
	count            func(ctx context.Context, filter interface{}) (int64, error)
	statsByAction    func(ctx context.Context, since time.Time) (map[string]int64, error)
	topViolators     func(ctx context.Context, since time.Time, limit int) ([]models.TopViolator, error)
	violatorIDsSince func(ctx context.Context, since time.Time) ([]primitive.ObjectID, error)
}

func (f fakeLogDB) InsertOne(ctx context.Context, entry models.ModerationLogEntry) (interface{}, error) {
	if f.insertOne == nil {
		return primitive.NewObjectID(), nil
	}
	return f.insertOne(ctx, entry)
}

func (f fakeLogDB) FindByContent(ctx context.Context, contentKind string, contentID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error) {
	if f.findByContent == nil {
		return nil, nil
	}
	return f.findByContent(ctx, contentKind, contentID, limit)
}

func (f fakeLogDB) FindByUser(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error) {
	if f.findByUser == nil {
		return nil, nil
	}
	return f.findByUser(ctx, userID, limit)
}

func (f fakeLogDB) FindUserViolations(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error) {
	if f.violations == nil {
		return nil, nil
	}
	return f.violations(ctx, userID, limit)
}

func (f fakeLogDB) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	if f.count == nil {
		return 0, nil
	}
	return f.count(ctx, filter)
}

func (f fakeLogDB) StatsByAction(ctx context.Context, since time.Time) (map[string]int64, error) {
	if f.statsByAction == nil {
		return map[string]int64{}, nil
	}
	return f.statsByAction(ctx, since)
}

func (f fakeLogDB) TopViolators(ctx context.Context, since time.Time, limit int) ([]models.TopViolator, error) {
	if f.topViolators == nil {
		return nil, nil
	}
	return f.topViolators(ctx, since, limit)
}

func (f fakeLogDB) ViolatorIDsSince(ctx context.Context, since time.Time) ([]primitive.ObjectID, error) {
	if f.violatorIDsSince == nil {
		return nil, nil
	}
	return f.violatorIDsSince(ctx, since)
}

// stubScorer returns the same scores for every call
type stubScorer struct {
	score *models.ModerationScore
	err   error
}

func (s stubScorer) Score(ctx context.Context, text string, imageURLs []string) (*models.ModerationScore, error) {
	return s.score, s.err
}

// authedRequest builds a request carrying the caller identity and the mux
// path vars, the way Middleware and the router would
func authedRequest(method, target string, body io.Reader, p api.Principal, vars map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(api.WithPrincipal(req.Context(), p))
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func asUser(id primitive.ObjectID) api.Principal {
	return api.Principal{UserID: id.Hex(), Email: "user@example.com", Role: models.RoleUser}
}

func asModerator(id primitive.ObjectID) api.Principal {
	return api.Principal{UserID: id.Hex(), Email: "mod@example.com", Role: models.RoleModerator}
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}
