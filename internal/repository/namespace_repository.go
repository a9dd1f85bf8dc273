package repository

import (
	"database/sql"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/pkg/errors"
)

// ErrDuplicateNamespace signals the global unique constraint on namespace names.
var ErrDuplicateNamespace = errors.New("namespace name already exists")

type NamespaceRepository interface {
	CreateNamespace(organizationID, name, description string) (models.Namespace, error)
	GetNamespaceByID(id string) (models.Namespace, error)
	GetNamespaceByName(name string) (models.Namespace, error)
	ListNamespacesByOrganization(organizationID string) ([]models.Namespace, error)
	DeleteNamespace(id string) error
}

type namespaceRepository struct {
	db *sql.DB
}

func NewNamespaceRepository(db *sql.DB) NamespaceRepository {
	return &namespaceRepository{db: db}
}

func (r *namespaceRepository) CreateNamespace(organizationID, name, description string) (models.Namespace, error) {
	const query = `
		INSERT INTO linknest.namespaces (organization_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, name, description, created_at, updated_at;
	`
	ns, err := scanNamespace(r.db.QueryRow(query, organizationID, name, description))
	if err != nil {
		if IsUniqueViolation(err) {
			return models.Namespace{}, ErrDuplicateNamespace
		}
		return models.Namespace{}, err
	}
	return ns, nil
}

func (r *namespaceRepository) GetNamespaceByID(id string) (models.Namespace, error) {
	const query = `
		SELECT id, organization_id, name, description, created_at, updated_at
		FROM linknest.namespaces
		WHERE id = $1;
	`
	return scanNamespace(r.db.QueryRow(query, id))
}

func (r *namespaceRepository) GetNamespaceByName(name string) (models.Namespace, error) {
	const query = `
		SELECT id, organization_id, name, description, created_at, updated_at
		FROM linknest.namespaces
		WHERE name = $1;
	`
	return scanNamespace(r.db.QueryRow(query, name))
}

func (r *namespaceRepository) ListNamespacesByOrganization(organizationID string) ([]models.Namespace, error) {
	const query = `
		SELECT id, organization_id, name, description, created_at, updated_at
		FROM linknest.namespaces
		WHERE organization_id = $1
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var namespaces []models.Namespace
	for rows.Next() {
		var ns models.Namespace
		if err := rows.Scan(&ns.ID, &ns.OrganizationID, &ns.Name, &ns.Description, &ns.CreatedAt, &ns.UpdatedAt); err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, rows.Err()
}

func (r *namespaceRepository) DeleteNamespace(id string) error {
	const query = `DELETE FROM linknest.namespaces WHERE id = $1;`
	result, err := r.db.Exec(query, id)
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

func scanNamespace(row *sql.Row) (models.Namespace, error) {
	var ns models.Namespace
	err := row.Scan(&ns.ID, &ns.OrganizationID, &ns.Name, &ns.Description, &ns.CreatedAt, &ns.UpdatedAt)
	if err != nil {
		return models.Namespace{}, err
	}
	return ns, nil
}
