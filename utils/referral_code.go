// utils/referral_code.go
package utils

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const referralCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	// ReferralCodeLength is the fixed length of issued referral codes.
	ReferralCodeLength = 8
	// DefaultMaxAttempts bounds the random draw loop before falling back to a
	// time-derived code.
	DefaultMaxAttempts = 10
	// DefaultExpiryMonths is how long referral codes and bonus points stay valid.
	DefaultExpiryMonths = 3
)

var referralCodePattern = regexp.MustCompile(`^[A-Z0-9]{8}$`)

// GenerateUniqueReferralCode draws random candidate codes and returns the
// first one the exists check does not know. It does not reserve the code —
// reservation happens in the caller's transaction, where the unique index on
// referral_codes catches a concurrent duplicate.
//
// After maxAttempts collisions it falls back to a code built from the current
// time in base-36, left-padded with random characters to the requested length.
func GenerateUniqueReferralCode(exists func(code string) (bool, error), length, maxAttempts int) (string, error) {
	if length <= 0 {
		length = ReferralCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		code := randomCode(length)
		taken, err := exists(code)
		if err != nil {
			return "", fmt.Errorf("failed to check referral code existence: %w", err)
		}
		if !taken {
			return code, nil
		}
	}

	return fallbackCode(length), nil
}

func randomCode(length int) string {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(referralCodeChars[rand.IntN(len(referralCodeChars))])
	}
	return b.String()
}

// fallbackCode encodes the current Unix millisecond time in base-36 and pads
// it with random characters. Collisions are only possible within the same
// millisecond, which the caller's unique index still guards against.
func fallbackCode(length int) string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	if len(ts) >= length {
		return ts[len(ts)-length:]
	}
	return randomCode(length-len(ts)) + ts
}

// ValidateReferralCode reports whether code is exactly 8 uppercase
// letters/digits.
func ValidateReferralCode(code string) bool {
	return referralCodePattern.MatchString(code)
}

// CalculateExpiryDate returns the expiry timestamp the given number of months
// from now.
func CalculateExpiryDate(months int) time.Time {
	if months <= 0 {
		months = DefaultExpiryMonths
	}
	return time.Now().UTC().AddDate(0, months, 0)
}

// IsExpired reports whether t is in the past. A nil t never expires.
func IsExpired(t *time.Time) bool {
	if t == nil {
		return false
	}
	return t.Before(time.Now())
}

// FormatPoints renders a signed point amount for display, e.g. "+500 P".
func FormatPoints(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%d P", amount)
	}
	return fmt.Sprintf("%d P", amount)
}
