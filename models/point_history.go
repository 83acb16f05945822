package models

import "time"

// HistoryType tags the kind of balance-affecting event a history entry records
type HistoryType string

const (
	HistoryTypeRegisterBonus HistoryType = "register_bonus"
	HistoryTypeReferralUsed  HistoryType = "referral_used"
	HistoryTypeReferralBonus HistoryType = "referral_bonus"
	HistoryTypeConsumption   HistoryType = "point_consumption"
	HistoryTypeMonthlyReset  HistoryType = "monthly_reset"
)

// ValidHistoryTypes is the closed set of recognized history type tags.
// Boundary code validates filter input against this map instead of letting
// unknown tags fall through to the query.
var ValidHistoryTypes = map[HistoryType]bool{
	HistoryTypeRegisterBonus: true,
	HistoryTypeReferralUsed:  true,
	HistoryTypeReferralBonus: true,
	HistoryTypeConsumption:   true,
	HistoryTypeMonthlyReset:  true,
}

// PointHistory is an append-only audit record of a single balance-affecting
// event. Entries are never updated or deleted; expired entries are kept
// (ExpiryDate is informational only).
type PointHistory struct {
	ID          string      `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string      `gorm:"index;not null" json:"user_id"`
	Type        HistoryType `gorm:"index;not null" json:"type"`
	Amount      int64       `gorm:"not null" json:"amount"` // signed: credits positive, debits negative
	Description string      `json:"description"`
	PurposeKey  string      `gorm:"index" json:"purpose_key,omitempty"` // slug of the consumption purpose
	Timestamp   time.Time   `gorm:"index;not null" json:"timestamp"`
	ExpiryDate  *time.Time  `json:"expiry_date,omitempty"` // nil for consumption entries
}

func (PointHistory) TableName() string {
	return "point_histories"
}
