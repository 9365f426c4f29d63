package moderation

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/minhng-dev/social-moderation-api/databases"
	"github.com/minhng-dev/social-moderation-api/models"
)

// AutoBanReason marks bans issued by the trust manager rather than a
// moderator
const AutoBanReason = "repeated_violations"

// TrustManager owns every trust-score mutation. Adjust is the single path,
// so the auto-ban check cannot be skipped.
type TrustManager struct {
	Users databases.UserDatabase
	Logs  databases.ModerationLogDatabase
}

// Adjust applies a trust delta and violation delta to a user and auto-bans
// when the updated profile crosses the ban triggers. The returned user
// reflects both changes.
func (t *TrustManager) Adjust(ctx context.Context, userID primitive.ObjectID, scoreDelta, violationDelta int) (*models.User, error) {
	user, err := t.Users.AdjustTrust(ctx, userID, scoreDelta, violationDelta)
	if err != nil {
		return nil, err
	}

	if user.IsBanned || user.Role != models.RoleUser {
		return user, nil
	}
	if user.TrustScore >= AutoBanTrustFloor && user.Violations < AutoBanViolationCount {
		return user, nil
	}

	until := time.Now().Add(AutoBanDuration)
	banned, err := t.Users.Ban(ctx, userID, AutoBanReason, &until)
	if err != nil {
		return nil, err
	}
	if _, err := t.Logs.InsertOne(ctx, models.ModerationLogEntry{
		UserID:      userID,
		ContentKind: models.KindAccount,
		ContentID:   userID,
		Action:      models.ActionBanned,
		Reason:      AutoBanReason,
	}); err != nil {
		zap.S().Errorw("failed to log auto-ban", "userId", userID.Hex(), "error", err)
	}
	zap.S().Infow("user auto-banned",
		"userId", userID.Hex(),
		"trustScore", banned.TrustScore,
		"violations", banned.Violations,
	)
	return banned, nil
}
