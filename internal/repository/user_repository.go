package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/linknest/linknest-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive is returned when an unverified account attempts to log in.
	ErrUserInactive = errors.New("user is inactive")
)

type UserRepository interface {
	CreateUser(email, password, firstName, lastName string, isActive bool) (models.User, error)
	AuthenticateUser(email, password string) (models.User, error)
	GetUserByEmail(email string) (models.User, error)
	GetUserByID(userID string) (models.User, error)
	ActivateUser(userID string) (models.User, error)
}

type userRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{db: db}
}

func (u *userRepository) CreateUser(email, password, firstName, lastName string, isActive bool) (models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user := models.User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: string(hash),
		IsActive:     isActive,
	}

	const query = `
		INSERT INTO linknest.users (email, first_name, last_name, password_hash, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err = u.db.QueryRow(query, user.Email, user.FirstName, user.LastName, user.PasswordHash, user.IsActive).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return models.User{}, err
	}

	return user, nil
}

func (u *userRepository) AuthenticateUser(email, password string) (models.User, error) {
	user, err := u.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return models.User{}, ErrUserInactive
	}

	return user, nil
}

func (u *userRepository) GetUserByEmail(email string) (models.User, error) {
	const query = `
		SELECT id, email, first_name, last_name, password_hash, is_active, created_at, updated_at
		FROM linknest.users
		WHERE email = $1`
	return u.scanUser(u.db.QueryRow(query, strings.TrimSpace(strings.ToLower(email))))
}

func (u *userRepository) GetUserByID(userID string) (models.User, error) {
	const query = `
		SELECT id, email, first_name, last_name, password_hash, is_active, created_at, updated_at
		FROM linknest.users
		WHERE id = $1`
	return u.scanUser(u.db.QueryRow(query, userID))
}

// ActivateUser flips is_active exactly once; re-activating an already active
// user is a no-op guarded by the WHERE clause.
func (u *userRepository) ActivateUser(userID string) (models.User, error) {
	const query = `
		UPDATE linknest.users
		SET is_active = TRUE, updated_at = now()
		WHERE id = $1
		RETURNING id, email, first_name, last_name, password_hash, is_active, created_at, updated_at`
	return u.scanUser(u.db.QueryRow(query, userID))
}

func (u *userRepository) scanUser(row *sql.Row) (models.User, error) {
	var user models.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.PasswordHash,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}
