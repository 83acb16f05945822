package models

import "time"

// PointUser is the per-account balance record. It is created exactly once when
// the auth service reports a new signup and is never deleted by this service.
// The invariant Point == FreePoint + PaidPoint must hold after every mutation.
type PointUser struct {
	UID         string `gorm:"primaryKey" json:"uid"` // auth service user ID
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	Point     int64 `gorm:"not null;default:0" json:"point"`
	FreePoint int64 `gorm:"not null;default:0" json:"free_point"` // resets monthly
	PaidPoint int64 `gorm:"not null;default:0" json:"paid_point"` // survives resets

	ReferralCode   string    `gorm:"uniqueIndex;size:8;not null" json:"referral_code"`
	ReferredBy     *string   `gorm:"size:8" json:"referred_by,omitempty"` // set at most once
	ReferralCount  int64     `gorm:"not null;default:0" json:"referral_count"`
	ReferralExpiry time.Time `json:"referral_expiry"`

	LastResetDate time.Time `json:"last_reset_date"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PointUser) TableName() string {
	return "point_users"
}
