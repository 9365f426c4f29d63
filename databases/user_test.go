package databases_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/minhng-dev/social-moderation-api/config"
	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/databases/mocks"
	"github.com/minhng-dev/social-moderation-api/models"
)

func TestNewUserDatabase(t *testing.T) {
	os.Setenv("DB_URI", "mongodb://127.0.0.1:27017")
	os.Setenv("DB_NAME", "test")
	conf := config.New()

	dbClient, err := databases.NewClient(conf)
	assert.NoError(t, err)

	db := databases.NewDatabase(conf, dbClient)

	userDB := databases.NewUserDatabase(db)

	assert.NotEmpty(t, userDB)
}

func TestUserDatabase_FindOne(t *testing.T) {

	// define variables for interfaces
	var dbHelper databases.DatabaseHelper
	var collectionHelper databases.CollectionHelper
	var srHelperErr databases.SingleResultHelper
	var srHelperCorrect databases.SingleResultHelper

	// set interfaces implementation to mocked structures
	dbHelper = &mocks.DatabaseHelper{}
	collectionHelper = &mocks.CollectionHelper{}
	srHelperErr = &mocks.SingleResultHelper{}
	srHelperCorrect = &mocks.SingleResultHelper{}

	mockedID := primitive.NewObjectID()

	srHelperErr.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(errors.New("mocked-error"))

	srHelperCorrect.(*mocks.SingleResultHelper).
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.User)
		arg.ID = mockedID
	})

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": true}).
		Return(srHelperErr)

	collectionHelper.(*mocks.CollectionHelper).
		On("FindOne", context.Background(), bson.M{"error": false}).
		Return(srHelperCorrect)

	dbHelper.(*mocks.DatabaseHelper).
		On("Collection", "users").Return(collectionHelper)

	// Create new database with mocked Database interface
	userDba := databases.NewUserDatabase(dbHelper)

	// Call method with defined filter, that in our mocked function returns
	// mocked-error
	user, err := userDba.FindOne(context.Background(), bson.M{"error": true})

	assert.Empty(t, user)
	assert.EqualError(t, err, "mocked-error")

	// Now call the same function with different filter for correct result
	user, err = userDba.FindOne(context.Background(), bson.M{"error": false})

	assert.Equal(t, mockedID, user.ID)
	assert.NoError(t, err)
}

func TestUserDatabase_Ban(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelper := &mocks.SingleResultHelper{}

	userID := primitive.NewObjectID()

	var gotUpdate bson.M
	collectionHelper.
		On("FindOneAndUpdate", context.Background(), bson.M{"_id": userID}, mock.Anything, mock.Anything).
		Return(srHelper).
		Run(func(args mock.Arguments) {
			gotUpdate = args.Get(2).(bson.M)
		})
	srHelper.
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.User)
		arg.ID = userID
		arg.IsBanned = true
	})
	dbHelper.On("Collection", "users").Return(collectionHelper)

	userDba := databases.NewUserDatabase(dbHelper)

	// temporary ban carries bannedUntil
	until := time.Now().Add(7 * 24 * time.Hour)
	user, err := userDba.Ban(context.Background(), userID, "spam", &until)
	assert.NoError(t, err)
	assert.True(t, user.IsBanned)

	set := gotUpdate["$set"].(bson.M)
	assert.Equal(t, true, set["isBanned"])
	assert.Equal(t, "spam", set["bannedReason"])
	assert.Contains(t, set, "bannedUntil")
	assert.NotContains(t, gotUpdate, "$unset")

	// permanent ban clears bannedUntil instead
	_, err = userDba.Ban(context.Background(), userID, "spam", nil)
	assert.NoError(t, err)

	set = gotUpdate["$set"].(bson.M)
	assert.NotContains(t, set, "bannedUntil")
	assert.Contains(t, gotUpdate, "$unset")
}

func TestUserDatabase_Unban(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelper := &mocks.SingleResultHelper{}

	userID := primitive.NewObjectID()

	var gotUpdate bson.M
	collectionHelper.
		On("FindOneAndUpdate", context.Background(), bson.M{"_id": userID}, mock.Anything, mock.Anything).
		Return(srHelper).
		Run(func(args mock.Arguments) {
			gotUpdate = args.Get(2).(bson.M)
		})
	srHelper.On("Decode", mock.Anything).Return(nil)
	dbHelper.On("Collection", "users").Return(collectionHelper)

	userDba := databases.NewUserDatabase(dbHelper)

	_, err := userDba.Unban(context.Background(), userID)
	assert.NoError(t, err)

	set := gotUpdate["$set"].(bson.M)
	assert.Equal(t, false, set["isBanned"])
	unset := gotUpdate["$unset"].(bson.M)
	assert.Contains(t, unset, "bannedReason")
	assert.Contains(t, unset, "bannedUntil")
	assert.Contains(t, unset, "bannedAt")
}

func TestUserDatabase_AdjustTrust(t *testing.T) {
	dbHelper := &mocks.DatabaseHelper{}
	collectionHelper := &mocks.CollectionHelper{}
	srHelper := &mocks.SingleResultHelper{}

	userID := primitive.NewObjectID()

	var gotUpdate interface{}
	collectionHelper.
		On("FindOneAndUpdate", context.Background(), bson.M{"_id": userID}, mock.Anything, mock.Anything).
		Return(srHelper).
		Run(func(args mock.Arguments) {
			gotUpdate = args.Get(2)
		})
	srHelper.
		On("Decode", mock.Anything).
		Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.User)
		arg.ID = userID
		arg.TrustScore = 60
		arg.Violations = 1
	})
	dbHelper.On("Collection", "users").Return(collectionHelper)

	userDba := databases.NewUserDatabase(dbHelper)

	user, err := userDba.AdjustTrust(context.Background(), userID, -10, 1)
	assert.NoError(t, err)
	assert.Equal(t, 60, user.TrustScore)
	assert.Equal(t, 1, user.Violations)

	// the update must be a pipeline so the clamp happens server side
	pipeline, ok := gotUpdate.(bson.A)
	assert.True(t, ok)
	assert.Len(t, pipeline, 1)
}
