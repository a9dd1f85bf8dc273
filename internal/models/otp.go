package models

import "time"

// DefaultOTPMaxAttempts bounds how many verification attempts a single code allows.
const DefaultOTPMaxAttempts = 3

// OTP is a short-lived numeric code proving control of an email address.
// At most one unused OTP exists per user; issuing a new one supersedes the rest.
type OTP struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Code        string    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	IsUsed      bool      `json:"is_used"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
}

// IsExpired checks whether the code has passed its expiry window.
func (o OTP) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}

// IsValid reports whether the code can still succeed a verification.
func (o OTP) IsValid(now time.Time) bool {
	return !o.IsUsed && !o.IsExpired(now) && o.Attempts < o.MaxAttempts
}

// RemainingAttempts returns how many verification attempts are left.
func (o OTP) RemainingAttempts() int {
	remaining := o.MaxAttempts - o.Attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TimeRemaining returns the seconds until expiry, zero once expired.
func (o OTP) TimeRemaining(now time.Time) int {
	if o.IsExpired(now) {
		return 0
	}
	return int(o.ExpiresAt.Sub(now).Seconds())
}
