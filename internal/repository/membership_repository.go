package repository

import (
	"database/sql"

	"github.com/linknest/linknest-api/internal/models"
)

type MembershipRepository interface {
	CreateMembership(organizationID, userID string, role models.Role) (models.Membership, error)
	GetMembership(organizationID, userID string) (models.Membership, error)
	GetMembershipByEmail(organizationID, email string) (models.Membership, error)
	ListMembers(organizationID string) ([]models.Membership, error)
	UpdateRole(organizationID, userID string, role models.Role) (models.Membership, error)
	DeleteMembership(organizationID, userID string) error
}

type membershipRepository struct {
	db *sql.DB
}

func NewMembershipRepository(db *sql.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) CreateMembership(organizationID, userID string, role models.Role) (models.Membership, error) {
	const query = `
		INSERT INTO linknest.memberships (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, user_id, role, created_at, updated_at;
	`
	return r.scanMembership(r.db.QueryRow(query, organizationID, userID, string(role)))
}

func (r *membershipRepository) GetMembership(organizationID, userID string) (models.Membership, error) {
	const query = `
		SELECT id, organization_id, user_id, role, created_at, updated_at
		FROM linknest.memberships
		WHERE organization_id = $1 AND user_id = $2;
	`
	return r.scanMembership(r.db.QueryRow(query, organizationID, userID))
}

func (r *membershipRepository) GetMembershipByEmail(organizationID, email string) (models.Membership, error) {
	const query = `
		SELECT m.id, m.organization_id, m.user_id, m.role, m.created_at, m.updated_at
		FROM linknest.memberships m
		JOIN linknest.users u ON u.id = m.user_id
		WHERE m.organization_id = $1 AND u.email = $2;
	`
	return r.scanMembership(r.db.QueryRow(query, organizationID, email))
}

func (r *membershipRepository) ListMembers(organizationID string) ([]models.Membership, error) {
	const query = `
		SELECT id, organization_id, user_id, role, created_at, updated_at
		FROM linknest.memberships
		WHERE organization_id = $1
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.Membership
	for rows.Next() {
		var m models.Membership
		var role string
		if err := rows.Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Role = models.Role(role)
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *membershipRepository) UpdateRole(organizationID, userID string, role models.Role) (models.Membership, error) {
	const query = `
		UPDATE linknest.memberships
		SET role = $3, updated_at = now()
		WHERE organization_id = $1 AND user_id = $2
		RETURNING id, organization_id, user_id, role, created_at, updated_at;
	`
	return r.scanMembership(r.db.QueryRow(query, organizationID, userID, string(role)))
}

func (r *membershipRepository) DeleteMembership(organizationID, userID string) error {
	const query = `
		DELETE FROM linknest.memberships
		WHERE organization_id = $1 AND user_id = $2;
	`
	result, err := r.db.Exec(query, organizationID, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *membershipRepository) scanMembership(row *sql.Row) (models.Membership, error) {
	var m models.Membership
	var role string
	err := row.Scan(&m.ID, &m.OrganizationID, &m.UserID, &role, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return models.Membership{}, err
	}
	m.Role = models.Role(role)
	return m, nil
}
