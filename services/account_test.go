package services

import (
	"context"
	"testing"

	"points-ledger-system/models"
	"points-ledger-system/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvisionUser_CreatesBalanceCodeAndHistory(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db)

	user, err := svc.ProvisionUser(context.Background(), "user-1", "alice@example.com", "Alice")
	require.NoError(t, err)

	assert.Equal(t, int64(InitialBonusPoints), user.Point)
	assert.Equal(t, int64(InitialBonusPoints), user.FreePoint)
	assert.Equal(t, int64(0), user.PaidPoint)
	assert.Nil(t, user.ReferredBy)
	assert.Equal(t, int64(0), user.ReferralCount)
	assert.True(t, utils.ValidateReferralCode(user.ReferralCode))
	requireBalanceInvariant(t, user)

	stored := reloadUser(t, db, "user-1")
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, "Alice", stored.DisplayName)
	assert.False(t, stored.LastResetDate.IsZero())

	// Reverse-lookup record exists, active, owned by the new user.
	var code models.ReferralCode
	require.NoError(t, db.Where("code = ?", user.ReferralCode).First(&code).Error)
	assert.Equal(t, "user-1", code.UserID)
	assert.True(t, code.IsActive)
	assert.True(t, code.ExpiryDate.After(stored.CreatedAt))

	// Exactly one history entry: the initial bonus, with expiry.
	history := historyFor(t, db, "user-1")
	require.Len(t, history, 1)
	assert.Equal(t, models.HistoryTypeRegisterBonus, history[0].Type)
	assert.Equal(t, int64(InitialBonusPoints), history[0].Amount)
	require.NotNil(t, history[0].ExpiryDate)
}

func TestProvisionUser_DuplicateUID(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db)
	ctx := context.Background()

	_, err := svc.ProvisionUser(ctx, "user-1", "", "")
	require.NoError(t, err)

	_, err = svc.ProvisionUser(ctx, "user-1", "", "")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	// The failed second attempt must leave no partial state behind.
	var codeCount int64
	require.NoError(t, db.Model(&models.ReferralCode{}).Count(&codeCount).Error)
	assert.Equal(t, int64(1), codeCount)
	assert.Len(t, historyFor(t, db, "user-1"), 1)
}

func TestProvisionUser_UniqueCodesAcrossUsers(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db)
	ctx := context.Background()

	codes := map[string]bool{}
	for _, uid := range []string{"a", "b", "c", "d", "e"} {
		user, err := svc.ProvisionUser(ctx, uid, "", "")
		require.NoError(t, err)
		assert.False(t, codes[user.ReferralCode], "referral code %s issued twice", user.ReferralCode)
		codes[user.ReferralCode] = true
	}
}

func TestProvisionUser_EmptyUID(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db)

	_, err := svc.ProvisionUser(context.Background(), "", "", "")
	assert.Error(t, err)
}

func TestProvisionUser_CompetingProvisionMapsToAlreadyExists(t *testing.T) {
	db := newTestDB(t)
	svc := NewAccountService(db)

	// A competing provision for the same uid commits between this
	// transaction's duplicate check and its insert, so the insert hits the
	// primary key instead of the read check.
	interleaveAfterRead(t, db, "point_users",
		"INSERT INTO point_users (uid, point, free_point, paid_point, referral_code) VALUES (?, ?, ?, ?, ?)",
		"dupe", 1000, 1000, 0, "ZZZZ9999")

	_, err := svc.ProvisionUser(context.Background(), "dupe", "", "")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
	assert.Empty(t, historyFor(t, db, "dupe"))
}
