package databases

// go generate: mockery --name UserDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/minhng-dev/social-moderation-api/models"
)

const userCollection = "users"

// UserDatabase contains the methods to use with the users collection. Ban,
// Unban and AdjustTrust are the only writers of the moderation profile.
type UserDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.User, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error)
	CountDocuments(ctx context.Context, filter interface{}) (int64, error)
	InsertOne(ctx context.Context, user models.User) (interface{}, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error)
	Ban(ctx context.Context, id primitive.ObjectID, reason string, until *time.Time) (*models.User, error)
	Unban(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	// AdjustTrust applies a clamped trust-score delta and a floored
	// violations delta in a single pipeline update and returns the user
	// after the change.
	AdjustTrust(ctx context.Context, id primitive.ObjectID, scoreDelta, violationDelta int) (*models.User, error)
}

type userDatabase struct {
	db DatabaseHelper
}

// NewUserDatabase initializes a new instance of user database with the
// provided db connection
func NewUserDatabase(db DatabaseHelper) UserDatabase {
	return &userDatabase{db: db}
}

func (u *userDatabase) FindOne(ctx context.Context, filter interface{}) (*models.User, error) {
	user := &models.User{}
	err := u.db.Collection(userCollection).FindOne(ctx, filter).Decode(user)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (u *userDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.User, error) {
	cursor, err := u.db.Collection(userCollection).Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (u *userDatabase) CountDocuments(ctx context.Context, filter interface{}) (int64, error) {
	return u.db.Collection(userCollection).CountDocuments(ctx, filter)
}

func (u *userDatabase) InsertOne(ctx context.Context, user models.User) (interface{}, error) {
	return u.db.Collection(userCollection).InsertOne(ctx, user)
}

func (u *userDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return u.db.Collection(userCollection).UpdateOne(ctx, filter, update)
}

func (u *userDatabase) UpdateMany(ctx context.Context, filter interface{}, update interface{}) (*mongo.UpdateResult, error) {
	return u.db.Collection(userCollection).UpdateMany(ctx, filter, update)
}

func (u *userDatabase) Ban(ctx context.Context, id primitive.ObjectID, reason string, until *time.Time) (*models.User, error) {
	now := primitive.NewDateTimeFromTime(time.Now())
	set := bson.M{
		"isBanned":     true,
		"bannedReason": reason,
		"bannedAt":     now,
		"updatedAt":    now,
	}
	// nil bannedUntil marks a permanent ban
	if until != nil {
		set["bannedUntil"] = primitive.NewDateTimeFromTime(*until)
	}
	update := bson.M{"$set": set}
	if until == nil {
		update["$unset"] = bson.M{"bannedUntil": ""}
	}
	return u.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

func (u *userDatabase) Unban(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	// the three ban fields always clear together
	update := bson.M{
		"$set": bson.M{
			"isBanned":  false,
			"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
		},
		"$unset": bson.M{
			"bannedReason": "",
			"bannedUntil":  "",
			"bannedAt":     "",
		},
	}
	return u.findOneAndUpdate(ctx, bson.M{"_id": id}, update)
}

func (u *userDatabase) AdjustTrust(ctx context.Context, id primitive.ObjectID, scoreDelta, violationDelta int) (*models.User, error) {
	pipeline := bson.A{bson.M{"$set": bson.M{
		"trustScore": bson.M{"$min": bson.A{
			models.TrustScoreMax,
			bson.M{"$max": bson.A{
				models.TrustScoreMin,
				bson.M{"$add": bson.A{"$trustScore", scoreDelta}},
			}},
		}},
		"violations": bson.M{"$max": bson.A{
			0,
			bson.M{"$add": bson.A{"$violations", violationDelta}},
		}},
		"updatedAt": primitive.NewDateTimeFromTime(time.Now()),
	}}}
	return u.findOneAndUpdate(ctx, bson.M{"_id": id}, pipeline)
}

func (u *userDatabase) findOneAndUpdate(ctx context.Context, filter interface{}, update interface{}) (*models.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	user := &models.User{}
	err := u.db.Collection(userCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(user)
	if err != nil {
		return nil, err
	}
	return user, nil
}
