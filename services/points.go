package services

import (
	"context"
	"errors"
	"log"
	"time"

	"points-ledger-system/models"
	"points-ledger-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const defaultConsumptionDescription = "Point consumption"

// DefaultHistoryLimit caps history queries when the caller does not ask for a
// specific page size.
const DefaultHistoryLimit = 50

type PointService struct {
	DB *gorm.DB
}

func NewPointService(db *gorm.DB) *PointService {
	return &PointService{DB: db}
}

// ConsumeResult reports how a consumption was split across the two
// sub-balances. FreePointsUsed + PaidPointsUsed always equals the requested
// amount.
type ConsumeResult struct {
	FreePointsUsed int64 `json:"free_points_used"`
	PaidPointsUsed int64 `json:"paid_points_used"`
}

// PointSnapshot is the balance view returned to clients.
type PointSnapshot struct {
	Point         int64     `json:"point"`
	FreePoint     int64     `json:"free_point"`
	PaidPoint     int64     `json:"paid_point"`
	ReferralCode  string    `json:"referral_code"`
	ReferredBy    *string   `json:"referred_by"`
	ReferralCount int64     `json:"referral_count"`
	LastResetDate time.Time `json:"last_reset_date"`
}

// ConsumePoints debits amount from the caller's balance, draining free points
// before paid points. Free points reset monthly, so they go first; paid points
// persist and should be spent last.
func (s *PointService) ConsumePoints(ctx context.Context, userID string, amount int64, purpose string) (*ConsumeResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result ConsumeResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.PointUser
		if err := tx.Where("uid = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		if user.Point < amount {
			return ErrInsufficientPoints
		}

		freeUsed := min(user.FreePoint, amount)
		paidUsed := amount - freeUsed
		result = ConsumeResult{FreePointsUsed: freeUsed, PaidPointsUsed: paidUsed}

		// The WHERE guard re-checks the balance at update time, so a
		// concurrent debit cannot drive any of the three columns negative.
		res := tx.Model(&models.PointUser{}).
			Where("uid = ? AND point >= ? AND free_point >= ? AND paid_point >= ?",
				userID, amount, freeUsed, paidUsed).
			Updates(map[string]interface{}{
				"point":      gorm.Expr("point - ?", amount),
				"free_point": gorm.Expr("free_point - ?", freeUsed),
				"paid_point": gorm.Expr("paid_point - ?", paidUsed),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientPoints
		}

		description := purpose
		if description == "" {
			description = defaultConsumptionDescription
		}

		// Consumption entries carry no expiry; the slugged purpose key keeps
		// free-form purposes queryable.
		return tx.Create(&models.PointHistory{
			ID:          uuid.NewString(),
			UserID:      userID,
			Type:        models.HistoryTypeConsumption,
			Amount:      -amount,
			Description: description,
			PurposeKey:  slug.Make(description),
			Timestamp:   time.Now().UTC(),
			ExpiryDate:  nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[POINTS] User %s consumed %s (%d free, %d paid)",
		userID, utils.FormatPoints(-amount), result.FreePointsUsed, result.PaidPointsUsed)
	return &result, nil
}

// GetUserPoint returns the caller's current balance snapshot.
func (s *PointService) GetUserPoint(ctx context.Context, userID string) (*PointSnapshot, error) {
	var user models.PointUser
	if err := s.DB.WithContext(ctx).Where("uid = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &PointSnapshot{
		Point:         user.Point,
		FreePoint:     user.FreePoint,
		PaidPoint:     user.PaidPoint,
		ReferralCode:  user.ReferralCode,
		ReferredBy:    user.ReferredBy,
		ReferralCount: user.ReferralCount,
		LastResetDate: user.LastResetDate,
	}, nil
}

// GetPointHistory returns the caller's history entries, newest first.
// typeFilter narrows to a single entry type when non-empty.
func (s *PointService) GetPointHistory(ctx context.Context, userID string, limit int, typeFilter models.HistoryType) ([]models.PointHistory, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit)

	if typeFilter != "" {
		query = query.Where("type = ?", typeFilter)
	}

	var history []models.PointHistory
	if err := query.Find(&history).Error; err != nil {
		return nil, err
	}
	return history, nil
}
