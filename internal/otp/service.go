package otp

import (
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/rs/zerolog"
)

const defaultTTL = 10 * time.Minute

var (
	// ErrMalformedCode rejects anything that is not exactly six digits.
	ErrMalformedCode = errors.New("code must be exactly 6 digits")
	// ErrNoActiveOTP means the user has no unused code on file.
	ErrNoActiveOTP = errors.New("no active otp found for this user")
	// ErrAlreadyUsed means the code was consumed, by verification or supersession.
	ErrAlreadyUsed = errors.New("this otp has already been used")
	// ErrExpired means the code passed its validity window.
	ErrExpired = errors.New("this otp has expired, please request a new one")
	// ErrMaxAttemptsExceeded means the attempt budget is exhausted.
	ErrMaxAttemptsExceeded = errors.New("maximum verification attempts exceeded, please request a new otp")
	// ErrInvalidCode means the code did not match; the attempt is consumed.
	ErrInvalidCode = errors.New("invalid otp code")
)

// Service is the OTP state machine. Every failure here is recoverable by
// generating a fresh code; nothing is fatal to the account.
type Service struct {
	otpRepo     repository.OTPRepository
	ttl         time.Duration
	maxAttempts int
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(otpRepo repository.OTPRepository, logger zerolog.Logger) *Service {
	return &Service{
		otpRepo:     otpRepo,
		ttl:         defaultTTL,
		maxAttempts: models.DefaultOTPMaxAttempts,
		logger:      logger.With().Str("component", "otp").Logger(),
		now:         time.Now,
	}
}

// Generate supersedes every unused code for the user and issues a fresh
// 6-digit code, so at most one valid OTP exists per user at any time.
func (s *Service) Generate(userID string) (models.OTP, error) {
	code, err := randomCode()
	if err != nil {
		return models.OTP{}, err
	}

	otp, err := s.otpRepo.SupersedeAndCreate(userID, code, s.now().Add(s.ttl), s.maxAttempts)
	if err != nil {
		return models.OTP{}, err
	}

	s.logger.Info().Str("user_id", userID).Time("expires_at", otp.ExpiresAt).Msg("otp generated")
	return otp, nil
}

// Verify checks the provided code against the user's active OTP. The attempt
// counter is persisted before the outcome is evaluated, so a failed attempt
// always counts, even one that simultaneously discovers expiry. Consuming the
// code on success is a conditional write; a lost race reports already-used.
func (s *Service) Verify(userID, code string) (models.OTP, error) {
	if !isSixDigits(code) {
		return models.OTP{}, ErrMalformedCode
	}

	otp, err := s.otpRepo.GetLatestUnusedByUser(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OTP{}, ErrNoActiveOTP
		}
		return models.OTP{}, err
	}

	otp, err = s.otpRepo.IncrementAttempts(otp.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OTP{}, ErrNoActiveOTP
		}
		return models.OTP{}, err
	}

	switch {
	case otp.IsUsed:
		return models.OTP{}, ErrAlreadyUsed
	case otp.IsExpired(s.now()):
		return models.OTP{}, ErrExpired
	case otp.Attempts > otp.MaxAttempts:
		return models.OTP{}, ErrMaxAttemptsExceeded
	case otp.Code != code:
		return models.OTP{}, ErrInvalidCode
	}

	verified, err := s.otpRepo.MarkUsed(otp.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OTP{}, ErrAlreadyUsed
		}
		return models.OTP{}, err
	}

	s.logger.Info().Str("user_id", userID).Msg("otp verified")
	return verified, nil
}

// Status returns the user's active OTP for display queries; it never mutates.
func (s *Service) Status(userID string) (models.OTP, error) {
	otp, err := s.otpRepo.GetLatestUnusedByUser(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.OTP{}, ErrNoActiveOTP
		}
		return models.OTP{}, err
	}
	return otp, nil
}

// TimeRemaining reports seconds until the OTP expires.
func (s *Service) TimeRemaining(otp models.OTP) int {
	return otp.TimeRemaining(s.now())
}

// randomCode draws a uniform 6-digit code, preserving leading zeros.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func isSixDigits(code string) bool {
	if len(code) != 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
