package otp

import (
	"testing"
	"time"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/repository/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore()
	return NewService(store, zerolog.Nop()), store
}

func TestGenerateProducesSixDigitCode(t *testing.T) {
	svc, _ := newService(t)

	otp, err := svc.Generate("user-1")
	require.NoError(t, err)
	assert.Len(t, otp.Code, 6)
	assert.True(t, isSixDigits(otp.Code))
	assert.Equal(t, models.DefaultOTPMaxAttempts, otp.MaxAttempts)
	assert.False(t, otp.IsUsed)
}

func TestGenerateSupersedesPreviousCode(t *testing.T) {
	svc, store := newService(t)

	first, err := svc.Generate("user-1")
	require.NoError(t, err)
	second, err := svc.Generate("user-1")
	require.NoError(t, err)

	// The first code is dead even within its expiry window.
	_, err = svc.Verify("user-1", first.Code)
	if first.Code == second.Code {
		t.Skip("codes collided, supersession indistinguishable")
	}
	assert.ErrorIs(t, err, ErrInvalidCode)

	// The replacement still works.
	verified, err := svc.Verify("user-1", second.Code)
	require.NoError(t, err)
	assert.True(t, verified.IsUsed)

	// Nothing active remains.
	_, err = store.GetLatestUnusedByUser("user-1")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	t.Run("malformed codes are rejected before any lookup", func(t *testing.T) {
		svc, _ := newService(t)
		for _, code := range []string{"", "12345", "1234567", "12a456"} {
			_, err := svc.Verify("user-1", code)
			assert.ErrorIs(t, err, ErrMalformedCode, "code %q", code)
		}
	})

	t.Run("no active code", func(t *testing.T) {
		svc, _ := newService(t)
		_, err := svc.Verify("user-1", "123456")
		assert.ErrorIs(t, err, ErrNoActiveOTP)
	})

	t.Run("success consumes the code", func(t *testing.T) {
		svc, _ := newService(t)
		otp, err := svc.Generate("user-1")
		require.NoError(t, err)

		verified, err := svc.Verify("user-1", otp.Code)
		require.NoError(t, err)
		assert.True(t, verified.IsUsed)

		_, err = svc.Verify("user-1", otp.Code)
		assert.ErrorIs(t, err, ErrNoActiveOTP)
	})

	t.Run("wrong code consumes an attempt", func(t *testing.T) {
		svc, store := newService(t)
		otp, err := svc.Generate("user-1")
		require.NoError(t, err)

		wrong := "000000"
		if wrong == otp.Code {
			wrong = "000001"
		}
		_, err = svc.Verify("user-1", wrong)
		assert.ErrorIs(t, err, ErrInvalidCode)

		stored, err := store.GetLatestUnusedByUser("user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Attempts)
	})

	t.Run("correct code after exhausted attempts still fails", func(t *testing.T) {
		svc, _ := newService(t)
		otp, err := svc.Generate("user-1")
		require.NoError(t, err)

		wrong := "000000"
		if wrong == otp.Code {
			wrong = "000001"
		}
		for i := 0; i < models.DefaultOTPMaxAttempts; i++ {
			_, err = svc.Verify("user-1", wrong)
			assert.ErrorIs(t, err, ErrInvalidCode)
		}

		_, err = svc.Verify("user-1", otp.Code)
		assert.ErrorIs(t, err, ErrMaxAttemptsExceeded)
	})

	t.Run("expired code fails and still consumes the attempt", func(t *testing.T) {
		svc, store := newService(t)
		otp, err := svc.Generate("user-1")
		require.NoError(t, err)
		store.ExpireOTP(otp.ID)

		_, err = svc.Verify("user-1", otp.Code)
		assert.ErrorIs(t, err, ErrExpired)

		stored, err := store.GetLatestUnusedByUser("user-1")
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Attempts)
	})

	t.Run("expiry outlasts a fixed clock", func(t *testing.T) {
		svc, _ := newService(t)
		otp, err := svc.Generate("user-1")
		require.NoError(t, err)

		svc.now = func() time.Time { return otp.ExpiresAt.Add(time.Second) }
		_, err = svc.Verify("user-1", otp.Code)
		assert.ErrorIs(t, err, ErrExpired)
	})
}

func TestVerifyPreservesLeadingZeros(t *testing.T) {
	svc, store := newService(t)

	_, err := store.SupersedeAndCreate("user-1", "004217", time.Now().Add(10*time.Minute), models.DefaultOTPMaxAttempts)
	require.NoError(t, err)

	// The five-digit reading of the same number is malformed, not merely wrong.
	_, err = svc.Verify("user-1", "4217")
	assert.ErrorIs(t, err, ErrMalformedCode)

	verified, err := svc.Verify("user-1", "004217")
	require.NoError(t, err)
	assert.True(t, verified.IsUsed)
}

func TestStatusDoesNotMutate(t *testing.T) {
	svc, store := newService(t)

	otp, err := svc.Generate("user-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := svc.Status("user-1")
		require.NoError(t, err)
	}

	stored, err := store.GetLatestUnusedByUser("user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Attempts)
	assert.Equal(t, otp.ID, stored.ID)
}

func TestRandomCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := randomCode()
		require.NoError(t, err)
		assert.True(t, isSixDigits(code), "code %q", code)
	}
}
