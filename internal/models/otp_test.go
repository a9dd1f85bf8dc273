package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOTPIsValid(t *testing.T) {
	now := time.Now()
	base := OTP{ExpiresAt: now.Add(10 * time.Minute), MaxAttempts: DefaultOTPMaxAttempts}

	t.Run("fresh code is valid", func(t *testing.T) {
		assert.True(t, base.IsValid(now))
	})

	t.Run("used code is invalid", func(t *testing.T) {
		otp := base
		otp.IsUsed = true
		assert.False(t, otp.IsValid(now))
	})

	t.Run("expired code is invalid", func(t *testing.T) {
		otp := base
		otp.ExpiresAt = now.Add(-time.Second)
		assert.False(t, otp.IsValid(now))
	})

	t.Run("exhausted attempts invalidate the code", func(t *testing.T) {
		otp := base
		otp.Attempts = otp.MaxAttempts
		assert.False(t, otp.IsValid(now))
	})
}

func TestOTPRemainingAttempts(t *testing.T) {
	otp := OTP{MaxAttempts: 3}
	assert.Equal(t, 3, otp.RemainingAttempts())

	otp.Attempts = 2
	assert.Equal(t, 1, otp.RemainingAttempts())

	otp.Attempts = 5
	assert.Equal(t, 0, otp.RemainingAttempts())
}

func TestOTPTimeRemaining(t *testing.T) {
	now := time.Now()
	otp := OTP{ExpiresAt: now.Add(90 * time.Second)}
	assert.Equal(t, 90, otp.TimeRemaining(now))

	otp.ExpiresAt = now.Add(-time.Minute)
	assert.Equal(t, 0, otp.TimeRemaining(now))
}

func TestInviteValidity(t *testing.T) {
	now := time.Now()
	invite := Invite{ExpiresAt: now.Add(24 * time.Hour)}

	assert.True(t, invite.IsValid(now))
	assert.False(t, invite.IsExpired(now))

	used := invite
	used.Used = true
	assert.False(t, used.IsValid(now))

	expired := invite
	expired.ExpiresAt = now.Add(-time.Hour)
	assert.True(t, expired.IsExpired(now))
	assert.False(t, expired.IsValid(now))
}
