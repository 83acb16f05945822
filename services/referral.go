package services

import (
	"context"
	"errors"
	"log"
	"time"

	"points-ledger-system/models"
	"points-ledger-system/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	// ReferredUserBonus is credited to the account redeeming a code.
	ReferredUserBonus = 500
	// ReferrerBonus is credited to the account that owns the code.
	ReferrerBonus = 1500
)

const (
	referralUsedDescription  = "Referral code bonus"
	referralBonusDescription = "Referral bonus"
)

type ReferralService struct {
	DB *gorm.DB
}

func NewReferralService(db *gorm.DB) *ReferralService {
	return &ReferralService{DB: db}
}

// ApplyReferralBonus redeems a referral code for userID. Preconditions are
// checked inside the transaction, and the credit itself is a guarded update
// keyed on referred_by still being NULL, so a concurrent duplicate attempt
// affects zero rows instead of double-crediting.
func (s *ReferralService) ApplyReferralBonus(ctx context.Context, userID, code string) error {
	if !utils.ValidateReferralCode(code) {
		return ErrInvalidCode
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.PointUser
		if err := tx.Where("uid = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if user.ReferredBy != nil {
			return ErrAlreadyReferred
		}

		var codeRecord models.ReferralCode
		if err := tx.Where("code = ?", code).First(&codeRecord).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCodeNotFound
			}
			return err
		}

		if !codeRecord.IsActive {
			return ErrCodeInactive
		}
		if utils.IsExpired(&codeRecord.ExpiryDate) {
			return ErrCodeExpired
		}
		if codeRecord.UserID == userID {
			return ErrSelfReferral
		}

		var referrer models.PointUser
		if err := tx.Where("uid = ?", codeRecord.UserID).First(&referrer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		now := time.Now().UTC()
		expiry := utils.CalculateExpiryDate(utils.DefaultExpiryMonths)

		// Credit the redeeming user and mark the code as used. The
		// referred_by guard keeps a concurrent redemption from applying
		// the bonus twice.
		res := tx.Model(&models.PointUser{}).
			Where("uid = ? AND referred_by IS NULL", userID).
			Updates(map[string]interface{}{
				"point":       gorm.Expr("point + ?", ReferredUserBonus),
				"free_point":  gorm.Expr("free_point + ?", ReferredUserBonus),
				"referred_by": code,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyReferred
		}

		if err := tx.Create(&models.PointHistory{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        models.HistoryTypeReferralUsed,
			Amount:      ReferredUserBonus,
			Description: referralUsedDescription,
			Timestamp:   now,
			ExpiryDate:  &expiry,
		}).Error; err != nil {
			return err
		}

		// Credit the referrer.
		res = tx.Model(&models.PointUser{}).
			Where("uid = ?", codeRecord.UserID).
			Updates(map[string]interface{}{
				"point":          gorm.Expr("point + ?", ReferrerBonus),
				"free_point":     gorm.Expr("free_point + ?", ReferrerBonus),
				"referral_count": gorm.Expr("referral_count + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}

		return tx.Create(&models.PointHistory{
			ID:          uuid.NewString(),
			UserID:      codeRecord.UserID,
			Type:        models.HistoryTypeReferralBonus,
			Amount:      ReferrerBonus,
			Description: referralBonusDescription,
			Timestamp:   now,
			ExpiryDate:  &expiry,
		}).Error
	})
	if err != nil {
		return err
	}

	log.Printf("[REFERRAL] Code %s applied by user %s (%s redeemer, %s referrer)",
		code, userID, utils.FormatPoints(ReferredUserBonus), utils.FormatPoints(ReferrerBonus))
	return nil
}
