package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/models"
)

type fakeUserStore struct {
	databases.UserDatabase
	user      *models.User
	banCalls  int
	banReason string
	banUntil  *time.Time
}

func (f *fakeUserStore) AdjustTrust(ctx context.Context, id primitive.ObjectID, scoreDelta, violationDelta int) (*models.User, error) {
	f.user.TrustScore += scoreDelta
	if f.user.TrustScore < models.TrustScoreMin {
		f.user.TrustScore = models.TrustScoreMin
	}
	if f.user.TrustScore > models.TrustScoreMax {
		f.user.TrustScore = models.TrustScoreMax
	}
	f.user.Violations += violationDelta
	if f.user.Violations < 0 {
		f.user.Violations = 0
	}
	return f.user, nil
}

func (f *fakeUserStore) Ban(ctx context.Context, id primitive.ObjectID, reason string, until *time.Time) (*models.User, error) {
	f.banCalls++
	f.banReason = reason
	f.banUntil = until
	f.user.IsBanned = true
	f.user.BannedReason = reason
	return f.user, nil
}

type fakeLogStore struct {
	databases.ModerationLogDatabase
	entries []models.ModerationLogEntry
}

func (f *fakeLogStore) InsertOne(ctx context.Context, entry models.ModerationLogEntry) (interface{}, error) {
	f.entries = append(f.entries, entry)
	return entry.ID, nil
}

func TestTrustManagerAdjustNoBan(t *testing.T) {
	store := &fakeUserStore{user: &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser, TrustScore: 70, Violations: 1}}
	logs := &fakeLogStore{}
	tm := &TrustManager{Users: store, Logs: logs}

	user, err := tm.Adjust(context.Background(), store.user.ID, TrustDeltaModerateViolation, 1)

	assert.NoError(t, err)
	assert.Equal(t, 60, user.TrustScore)
	assert.Equal(t, 2, user.Violations)
	assert.Zero(t, store.banCalls)
	assert.Empty(t, logs.entries)
}

func TestTrustManagerAutoBansOnLowTrust(t *testing.T) {
	store := &fakeUserStore{user: &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser, TrustScore: 25, Violations: 2}}
	logs := &fakeLogStore{}
	tm := &TrustManager{Users: store, Logs: logs}

	user, err := tm.Adjust(context.Background(), store.user.ID, TrustDeltaSevereViolation, 1)

	assert.NoError(t, err)
	assert.True(t, user.IsBanned)
	assert.Equal(t, 1, store.banCalls)
	assert.Equal(t, AutoBanReason, store.banReason)
	assert.NotNil(t, store.banUntil) // 7 days, never permanent
	if assert.Len(t, logs.entries, 1) {
		assert.Equal(t, models.ActionBanned, logs.entries[0].Action)
	}
}

func TestTrustManagerAutoBansOnViolationCount(t *testing.T) {
	store := &fakeUserStore{user: &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser, TrustScore: 60, Violations: 4}}
	tm := &TrustManager{Users: store, Logs: &fakeLogStore{}}

	user, err := tm.Adjust(context.Background(), store.user.ID, TrustDeltaModerateViolation, 1)

	assert.NoError(t, err)
	assert.True(t, user.IsBanned)
	assert.Equal(t, 1, store.banCalls)
}

func TestTrustManagerNeverAutoBansModerators(t *testing.T) {
	store := &fakeUserStore{user: &models.User{ID: primitive.NewObjectID(), Role: models.RoleModerator, TrustScore: 10, Violations: 9}}
	tm := &TrustManager{Users: store, Logs: &fakeLogStore{}}

	user, err := tm.Adjust(context.Background(), store.user.ID, TrustDeltaModerateViolation, 1)

	assert.NoError(t, err)
	assert.False(t, user.IsBanned)
	assert.Zero(t, store.banCalls)
}

func TestTrustManagerSkipsBanWhenAlreadyBanned(t *testing.T) {
	store := &fakeUserStore{user: &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser, TrustScore: 10, Violations: 8, IsBanned: true}}
	tm := &TrustManager{Users: store, Logs: &fakeLogStore{}}

	_, err := tm.Adjust(context.Background(), store.user.ID, TrustDeltaMinorViolation, 0)

	assert.NoError(t, err)
	assert.Zero(t, store.banCalls)
}

func TestTrustManagerRecoveryRaisesScore(t *testing.T) {
	store := &fakeUserStore{user: &models.User{ID: primitive.NewObjectID(), Role: models.RoleUser, TrustScore: 98}}
	tm := &TrustManager{Users: store, Logs: &fakeLogStore{}}

	user, err := tm.Adjust(context.Background(), store.user.ID, TrustDeltaCleanRecovery, 0)

	assert.NoError(t, err)
	assert.Equal(t, models.TrustScoreMax, user.TrustScore) // clamped
}
