package databases

// go generate: mockery --name ContentDatabase

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

// Collection names for the two content kinds
const (
	postCollection    = "posts"
	commentCollection = "comments"
)

// ContentDatabase contains the methods to use with one content collection
// (posts or comments). The moderation status transitions are conditional
// single-document updates so two moderators racing on the same item cannot
// both win.
type ContentDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.ContentItem, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ContentItem, error)
	FindPage(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.ContentItem, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	InsertOne(ctx context.Context, item models.ContentItem) (interface{}, error)
	// Transition moves an item from one of the expected statuses to the
	// state described by set. It returns ErrStateConflict when the item
	// exists outside the expected statuses and mongo.ErrNoDocuments when it
	// does not exist at all.
	Transition(ctx context.Context, id primitive.ObjectID, fromStatuses []string, set bson.M) (*models.ContentItem, error)
}

type contentDatabase struct {
	db   DatabaseHelper
	name string
}

// NewPostDatabase initializes a content database over the posts collection
func NewPostDatabase(db DatabaseHelper) ContentDatabase {
	return &contentDatabase{db: db, name: postCollection}
}

// NewCommentDatabase initializes a content database over the comments
// collection
func NewCommentDatabase(db DatabaseHelper) ContentDatabase {
	return &contentDatabase{db: db, name: commentCollection}
}

func (c *contentDatabase) FindOne(ctx context.Context, filter interface{}) (*models.ContentItem, error) {
	item := &models.ContentItem{}
	err := c.db.Collection(c.name).FindOne(ctx, filter).Decode(item)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (c *contentDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.ContentItem, error) {
	cursor, err := c.db.Collection(c.name).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var items []models.ContentItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *contentDatabase) FindPage(ctx context.Context, filter interface{}, page, limit int, sort interface{}) ([]models.ContentItem, error) {
	opts := newMongoPaginate(limit, page).getPaginatedOpts()
	if sort != nil {
		opts.SetSort(sort)
	}
	return c.Find(ctx, filter, opts)
}

func (c *contentDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return c.db.Collection(c.name).CountDocuments(ctx, filter)
}

func (c *contentDatabase) InsertOne(ctx context.Context, item models.ContentItem) (interface{}, error) {
	return c.db.Collection(c.name).InsertOne(ctx, item)
}

func (c *contentDatabase) Transition(ctx context.Context, id primitive.ObjectID, fromStatuses []string, set bson.M) (*models.ContentItem, error) {
	set["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())
	filter := bson.M{
		"_id":              id,
		"moderationStatus": bson.M{"$in": fromStatuses},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	item := &models.ContentItem{}
	err := c.db.Collection(c.name).
		FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).
		Decode(item)
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	// Distinguish "gone" from "already resolved by someone else"
	if _, findErr := c.FindOne(ctx, bson.M{"_id": id}); findErr == nil {
		return nil, ErrStateConflict
	}
	return nil, mongo.ErrNoDocuments
}
