package services

import "errors"

// Sentinel errors returned by the point/referral services. Handlers map these
// to HTTP statuses; anything else is treated as an internal store failure.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrCodeNotFound      = errors.New("referral code not found")
	ErrCodeInactive      = errors.New("referral code is inactive")
	ErrCodeExpired       = errors.New("referral code has expired")
	ErrSelfReferral      = errors.New("cannot use your own referral code")
	ErrAlreadyReferred   = errors.New("user has already used a referral code")
	ErrInvalidCode       = errors.New("invalid referral code format")
	ErrInvalidAmount     = errors.New("amount must be a positive number")
	ErrInsufficientPoints = errors.New("not enough points")
)
