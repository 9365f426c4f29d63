package databases

// go generate: mockery --name AppealDatabase

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/minhng-dev/social-moderation-api/models"
)

const appealCollection = "appeals"

// AppealDatabase contains the methods to use with the appeals collection
type AppealDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Appeal, error)
	FindOpenByTarget(ctx context.Context, targetKind string, targetID primitive.ObjectID) (*models.Appeal, error)
	FindPage(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.Appeal, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	InsertOne(ctx context.Context, appeal models.Appeal) (interface{}, error)
	// Resolve closes an open appeal exactly once. ErrStateConflict when the
	// appeal exists but is already closed.
	Resolve(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Appeal, error)
}

type appealDatabase struct {
	db DatabaseHelper
}

// NewAppealDatabase initializes a new instance of appeal database with the
// provided db connection
func NewAppealDatabase(db DatabaseHelper) AppealDatabase {
	return &appealDatabase{db: db}
}

func (c *appealDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Appeal, error) {
	appeal := &models.Appeal{}
	err := c.db.Collection(appealCollection).FindOne(ctx, filter).Decode(appeal)
	if err != nil {
		return nil, err
	}
	return appeal, nil
}

func (c *appealDatabase) FindOpenByTarget(ctx context.Context, targetKind string, targetID primitive.ObjectID) (*models.Appeal, error) {
	return c.FindOne(ctx, bson.M{
		"targetKind": targetKind,
		"targetId":   targetID,
		"status":     models.AppealStatusOpen,
	})
}

func (c *appealDatabase) FindPage(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.Appeal, error) {
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	if sort != nil {
		opts.SetSort(sort)
	}
	cursor, err := c.db.Collection(appealCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var appeals []models.Appeal
	if err := cursor.All(ctx, &appeals); err != nil {
		return nil, err
	}
	return appeals, nil
}

func (c *appealDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(appealCollection).CountDocuments(ctx, filter)
}

func (c *appealDatabase) InsertOne(ctx context.Context, appeal models.Appeal) (interface{}, error) {
	return c.db.Collection(appealCollection).InsertOne(ctx, appeal)
}

func (c *appealDatabase) Resolve(ctx context.Context, id primitive.ObjectID, set bson.M) (*models.Appeal, error) {
	set["resolvedAt"] = primitive.NewDateTimeFromTime(time.Now())
	filter := bson.M{"_id": id, "status": models.AppealStatusOpen}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	appeal := &models.Appeal{}
	err := c.db.Collection(appealCollection).
		FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).
		Decode(appeal)
	if err == nil {
		return appeal, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}
	if _, findErr := c.FindOne(ctx, bson.M{"_id": id}); findErr == nil {
		return nil, ErrStateConflict
	}
	return nil, mongo.ErrNoDocuments
}
