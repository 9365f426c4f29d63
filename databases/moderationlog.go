package databases

// go generate: mockery --name ModerationLogDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/minhng-dev/social-moderation-api/models"
)

const moderationLogCollection = "moderation_logs"

// violationActions are the log actions counted as author violations
var violationActions = []string{models.ActionAutoRejected, models.ActionModeratorRejected, models.ActionDeletedByReport}

// ModerationLogDatabase contains the methods to use with the append-only
// moderation_logs collection. There are deliberately no update or delete
// methods.
type ModerationLogDatabase interface {
	InsertOne(ctx context.Context, entry models.ModerationLogEntry) (interface{}, error)
	FindByContent(ctx context.Context, contentKind string, contentID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error)
	FindUserViolations(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	StatsByAction(ctx context.Context, since time.Time) (map[string]int64, error)
	TopViolators(ctx context.Context, since time.Time, limit int) ([]models.TopViolator, error)
	// ViolatorIDsSince returns the distinct users with a violation entry in
	// the window; used by the trust recovery job.
	ViolatorIDsSince(ctx context.Context, since time.Time) ([]primitive.ObjectID, error)
}

type moderationLogDatabase struct {
	db DatabaseHelper
}

// NewModerationLogDatabase initializes a new instance of moderation log
// database with the provided db connection
func NewModerationLogDatabase(db DatabaseHelper) ModerationLogDatabase {
	return &moderationLogDatabase{db: db}
}

func (m *moderationLogDatabase) InsertOne(ctx context.Context, entry models.ModerationLogEntry) (interface{}, error) {
	if entry.CreatedAt == 0 {
		entry.CreatedAt = primitive.NewDateTimeFromTime(time.Now())
	}
	return m.db.Collection(moderationLogCollection).InsertOne(ctx, entry)
}

func (m *moderationLogDatabase) find(ctx context.Context, filter interface{}, limit int) ([]models.ModerationLogEntry, error) {
	l := int64(limit)
	opts := &options.FindOptions{Limit: &l}
	opts.SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := m.db.Collection(moderationLogCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var entries []models.ModerationLogEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (m *moderationLogDatabase) FindByContent(ctx context.Context, contentKind string, contentID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error) {
	return m.find(ctx, bson.M{"contentKind": contentKind, "contentId": contentID}, limit)
}

func (m *moderationLogDatabase) FindByUser(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error) {
	return m.find(ctx, bson.M{"userId": userID}, limit)
}

func (m *moderationLogDatabase) FindUserViolations(ctx context.Context, userID primitive.ObjectID, limit int) ([]models.ModerationLogEntry, error) {
	return m.find(ctx, bson.M{
		"userId": userID,
		"action": bson.M{"$in": violationActions},
	}, limit)
}

func (m *moderationLogDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return m.db.Collection(moderationLogCollection).CountDocuments(ctx, filter)
}

func (m *moderationLogDatabase) StatsByAction(ctx context.Context, since time.Time) (map[string]int64, error) {
	pipeline := []bson.M{
		{"$match": bson.M{"createdAt": bson.M{"$gte": primitive.NewDateTimeFromTime(since)}}},
		{"$group": bson.M{"_id": "$action", "count": bson.M{"$sum": 1}}},
	}
	cursor, err := m.db.Collection(moderationLogCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Action string `bson:"_id"`
		Count  int64  `bson:"count"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	stats := make(map[string]int64, len(rows))
	for _, row := range rows {
		stats[row.Action] = row.Count
	}
	return stats, nil
}

func (m *moderationLogDatabase) TopViolators(ctx context.Context, since time.Time, limit int) ([]models.TopViolator, error) {
	pipeline := []bson.M{
		{"$match": bson.M{
			"action":    bson.M{"$in": violationActions},
			"createdAt": bson.M{"$gte": primitive.NewDateTimeFromTime(since)},
		}},
		{"$group": bson.M{
			"_id":           "$userId",
			"violations":    bson.M{"$sum": 1},
			"lastViolation": bson.M{"$max": "$createdAt"},
		}},
		{"$sort": bson.M{"violations": -1}},
		{"$limit": limit},
		{"$lookup": bson.M{
			"from":         userCollection,
			"localField":   "_id",
			"foreignField": "_id",
			"as":           "user",
		}},
		{"$unwind": "$user"},
		{"$project": bson.M{
			"violations":    1,
			"lastViolation": 1,
			"name":          "$user.name",
			"email":         "$user.email",
			"trustScore":    "$user.trustScore",
		}},
	}
	cursor, err := m.db.Collection(moderationLogCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var violators []models.TopViolator
	if err := cursor.All(ctx, &violators); err != nil {
		return nil, err
	}
	return violators, nil
}

func (m *moderationLogDatabase) ViolatorIDsSince(ctx context.Context, since time.Time) ([]primitive.ObjectID, error) {
	pipeline := []bson.M{
		{"$match": bson.M{
			"action":    bson.M{"$in": violationActions},
			"createdAt": bson.M{"$gte": primitive.NewDateTimeFromTime(since)},
		}},
		{"$group": bson.M{"_id": "$userId"}},
	}
	cursor, err := m.db.Collection(moderationLogCollection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
