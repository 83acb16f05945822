package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"points-ledger-system/models"
	"points-ledger-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// InitialBonusPoints is the free-point grant every new account starts with.
const InitialBonusPoints = 1000

const registerBonusDescription = "Initial registration bonus"

type AccountService struct {
	DB *gorm.DB
}

func NewAccountService(db *gorm.DB) *AccountService {
	return &AccountService{DB: db}
}

// ProvisionUser creates the balance record, referral-code record and initial
// bonus history entry for a newly signed-up user, all in one transaction.
// A duplicate uid returns ErrUserAlreadyExists so redelivered signup events
// stay harmless.
func (s *AccountService) ProvisionUser(ctx context.Context, uid, email, displayName string) (*models.PointUser, error) {
	if uid == "" {
		return nil, fmt.Errorf("uid is required")
	}

	referralCode, err := utils.GenerateUniqueReferralCode(func(code string) (bool, error) {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&models.ReferralCode{}).
			Where("code = ?", code).Count(&count).Error; err != nil {
			return false, err
		}
		return count > 0, nil
	}, utils.ReferralCodeLength, utils.DefaultMaxAttempts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate referral code: %w", err)
	}

	now := time.Now().UTC()
	expiry := utils.CalculateExpiryDate(utils.DefaultExpiryMonths)

	user := &models.PointUser{
		UID:            uid,
		Email:          email,
		DisplayName:    displayName,
		Point:          InitialBonusPoints,
		FreePoint:      InitialBonusPoints,
		PaidPoint:      0,
		ReferralCode:   referralCode,
		ReferredBy:     nil,
		ReferralCount:  0,
		ReferralExpiry: expiry,
		LastResetDate:  now,
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.PointUser
		if err := tx.Where("uid = ?", uid).First(&existing).Error; err == nil {
			return ErrUserAlreadyExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(user).Error; err != nil {
			// A concurrent provision for the same uid can land between the
			// read above and this insert.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUserAlreadyExists
			}
			return err
		}

		// Reverse-lookup record; the unique primary key re-detects a code
		// collision that slipped past the generator's read check.
		codeRecord := &models.ReferralCode{
			Code:       referralCode,
			UserID:     uid,
			ExpiryDate: expiry,
			IsActive:   true,
		}
		if err := tx.Create(codeRecord).Error; err != nil {
			return err
		}

		history := &models.PointHistory{
			ID:          uuid.NewString(),
			UserID:      uid,
			Type:        models.HistoryTypeRegisterBonus,
			Amount:      InitialBonusPoints,
			Description: registerBonusDescription,
			Timestamp:   now,
			ExpiryDate:  &expiry,
		}
		return tx.Create(history).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[ACCOUNT] User %s provisioned with referral code %s (%s)",
		uid, referralCode, utils.FormatPoints(InitialBonusPoints))
	return user, nil
}
