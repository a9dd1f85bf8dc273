package repository

import (
	"database/sql"

	"github.com/linknest/linknest-api/internal/models"
)

type OrganizationRepository interface {
	CreateOrganization(name, ownerID string) (models.Organization, error)
	GetOrganizationByID(id string) (models.Organization, error)
	ListOrganizationsForUser(userID string) ([]models.Organization, error)
}

type organizationRepository struct {
	db *sql.DB
}

func NewOrganizationRepository(db *sql.DB) OrganizationRepository {
	return &organizationRepository{db: db}
}

func (r *organizationRepository) CreateOrganization(name, ownerID string) (models.Organization, error) {
	const query = `
		INSERT INTO linknest.organizations (name, owner_id)
		VALUES ($1, $2)
		RETURNING id, name, owner_id, created_at, updated_at;
	`
	var org models.Organization
	err := r.db.QueryRow(query, name, ownerID).
		Scan(&org.ID, &org.Name, &org.OwnerID, &org.CreatedAt, &org.UpdatedAt)
	return org, err
}

func (r *organizationRepository) GetOrganizationByID(id string) (models.Organization, error) {
	const query = `
		SELECT id, name, owner_id, created_at, updated_at
		FROM linknest.organizations
		WHERE id = $1;
	`
	var org models.Organization
	err := r.db.QueryRow(query, id).
		Scan(&org.ID, &org.Name, &org.OwnerID, &org.CreatedAt, &org.UpdatedAt)
	return org, err
}

func (r *organizationRepository) ListOrganizationsForUser(userID string) ([]models.Organization, error) {
	const query = `
		SELECT DISTINCT o.id, o.name, o.owner_id, o.created_at, o.updated_at
		FROM linknest.organizations o
		LEFT JOIN linknest.memberships m ON m.organization_id = o.id
		WHERE o.owner_id = $1 OR m.user_id = $1
		ORDER BY o.created_at DESC;
	`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []models.Organization
	for rows.Next() {
		var org models.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.OwnerID, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}
