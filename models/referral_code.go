package models

import "time"

// ReferralCode is the reverse-lookup record mapping a code string to its
// owning user. Created alongside the PointUser; never deleted. Expiry and the
// active flag are advisory — they are checked at redemption time only.
type ReferralCode struct {
	Code       string    `gorm:"primaryKey;size:8" json:"code"`
	UserID     string    `gorm:"index;not null" json:"user_id"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
	ExpiryDate time.Time `json:"expiry_date"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
}

func (ReferralCode) TableName() string {
	return "referral_codes"
}
