package services

import (
	"path/filepath"
	"testing"
	"time"

	"points-ledger-system/models"
	"points-ledger-system/utils"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a throwaway SQLite database with the full schema migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger_test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.PointUser{},
		&models.ReferralCode{},
		&models.PointHistory{},
	))
	return db
}

// seedUser inserts a balance record plus its referral-code record directly,
// bypassing the provisioner, so tests control the starting balances.
func seedUser(t *testing.T, db *gorm.DB, uid, code string, point, free, paid int64) *models.PointUser {
	t.Helper()

	now := time.Now().UTC()
	user := &models.PointUser{
		UID:            uid,
		Point:          point,
		FreePoint:      free,
		PaidPoint:      paid,
		ReferralCode:   code,
		ReferralExpiry: utils.CalculateExpiryDate(utils.DefaultExpiryMonths),
		LastResetDate:  now,
	}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&models.ReferralCode{
		Code:       code,
		UserID:     uid,
		ExpiryDate: utils.CalculateExpiryDate(utils.DefaultExpiryMonths),
		IsActive:   true,
	}).Error)
	return user
}

func reloadUser(t *testing.T, db *gorm.DB, uid string) *models.PointUser {
	t.Helper()

	var user models.PointUser
	require.NoError(t, db.Where("uid = ?", uid).First(&user).Error)
	return &user
}

func historyFor(t *testing.T, db *gorm.DB, uid string) []models.PointHistory {
	t.Helper()

	var history []models.PointHistory
	require.NoError(t, db.Where("user_id = ?", uid).Order("timestamp DESC").Find(&history).Error)
	return history
}

// interleaveAfterRead runs stmt once, immediately after the next read of the
// given table, on the same connection that performed the read. It simulates a
// competing writer landing between a transaction's read and its update, which
// is the window the guarded updates have to survive.
func interleaveAfterRead(t *testing.T, db *gorm.DB, table, stmt string, args ...interface{}) {
	t.Helper()

	fired := false
	require.NoError(t, db.Callback().Query().After("gorm:query").Register("ledger_test_interleave", func(op *gorm.DB) {
		if fired || op.Statement.Table != table {
			return
		}
		fired = true
		if _, err := op.Statement.ConnPool.ExecContext(op.Statement.Context, stmt, args...); err != nil {
			t.Errorf("interleaved statement failed: %v", err)
		}
	}))
	t.Cleanup(func() {
		require.NoError(t, db.Callback().Query().Remove("ledger_test_interleave"))
	})
}

// requireBalanceInvariant asserts point == free + paid, which must hold after
// every mutation.
func requireBalanceInvariant(t *testing.T, user *models.PointUser) {
	t.Helper()
	require.Equal(t, user.Point, user.FreePoint+user.PaidPoint,
		"balance invariant violated for %s: point=%d free=%d paid=%d",
		user.UID, user.Point, user.FreePoint, user.PaidPoint)
}
