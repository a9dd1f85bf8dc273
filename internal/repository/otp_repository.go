package repository

import (
	"database/sql"
	"time"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/pkg/errors"
)

type OTPRepository interface {
	// SupersedeAndCreate marks every unused OTP for the user as used and
	// inserts the new one, inside a single transaction so at most one valid
	// OTP exists per user at any time.
	SupersedeAndCreate(userID, code string, expiresAt time.Time, maxAttempts int) (models.OTP, error)
	GetLatestUnusedByUser(userID string) (models.OTP, error)
	// IncrementAttempts persists the attempt count before the outcome is
	// known, so a failed verification always consumes an attempt.
	IncrementAttempts(otpID string) (models.OTP, error)
	// MarkUsed is conditional on is_used = FALSE; a lost race returns
	// sql.ErrNoRows.
	MarkUsed(otpID string) (models.OTP, error)
}

type otpRepository struct {
	db *sql.DB
}

func NewOTPRepository(db *sql.DB) OTPRepository {
	return &otpRepository{db: db}
}

const otpColumns = `id, user_id, code, created_at, expires_at, is_used, attempts, max_attempts`

func (r *otpRepository) SupersedeAndCreate(userID, code string, expiresAt time.Time, maxAttempts int) (models.OTP, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return models.OTP{}, errors.Wrap(err, "begin otp transaction")
	}
	defer tx.Rollback()

	const supersede = `
		UPDATE linknest.otps
		SET is_used = TRUE
		WHERE user_id = $1 AND is_used = FALSE;
	`
	if _, err := tx.Exec(supersede, userID); err != nil {
		return models.OTP{}, errors.Wrap(err, "supersede previous otps")
	}

	const insert = `
		INSERT INTO linknest.otps (user_id, code, expires_at, max_attempts)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + otpColumns + `;
	`
	otp, err := scanOTP(tx.QueryRow(insert, userID, code, expiresAt, maxAttempts))
	if err != nil {
		return models.OTP{}, errors.Wrap(err, "insert otp")
	}

	if err := tx.Commit(); err != nil {
		return models.OTP{}, errors.Wrap(err, "commit otp transaction")
	}
	return otp, nil
}

func (r *otpRepository) GetLatestUnusedByUser(userID string) (models.OTP, error) {
	const query = `
		SELECT ` + otpColumns + `
		FROM linknest.otps
		WHERE user_id = $1 AND is_used = FALSE
		ORDER BY created_at DESC
		LIMIT 1;
	`
	return scanOTP(r.db.QueryRow(query, userID))
}

func (r *otpRepository) IncrementAttempts(otpID string) (models.OTP, error) {
	const query = `
		UPDATE linknest.otps
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING ` + otpColumns + `;
	`
	return scanOTP(r.db.QueryRow(query, otpID))
}

func (r *otpRepository) MarkUsed(otpID string) (models.OTP, error) {
	const query = `
		UPDATE linknest.otps
		SET is_used = TRUE
		WHERE id = $1 AND is_used = FALSE
		RETURNING ` + otpColumns + `;
	`
	return scanOTP(r.db.QueryRow(query, otpID))
}

func scanOTP(row *sql.Row) (models.OTP, error) {
	var otp models.OTP
	err := row.Scan(
		&otp.ID,
		&otp.UserID,
		&otp.Code,
		&otp.CreatedAt,
		&otp.ExpiresAt,
		&otp.IsUsed,
		&otp.Attempts,
		&otp.MaxAttempts,
	)
	if err != nil {
		return models.OTP{}, err
	}
	return otp, nil
}
