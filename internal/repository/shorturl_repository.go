package repository

import (
	"database/sql"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/pkg/errors"
)

// ErrDuplicateShortCode signals the unique constraint on (namespace_id, short_code).
var ErrDuplicateShortCode = errors.New("short code already exists in this namespace")

type ShortURLRepository interface {
	CreateShortURL(link models.ShortURL) (models.ShortURL, error)
	GetShortURLByID(id string) (models.ShortURL, error)
	GetShortURLByCode(namespaceName, shortCode string) (models.ShortURL, error)
	ListShortURLsByNamespace(namespaceID string) ([]models.ShortURL, error)
	UpdateShortURL(link models.ShortURL) (models.ShortURL, error)
	DeleteShortURL(id string) error
	// IncrementClickCount bumps the counter in a single statement so
	// concurrent redirects never lose a click.
	IncrementClickCount(id string) error
}

type shortURLRepository struct {
	db *sql.DB
}

func NewShortURLRepository(db *sql.DB) ShortURLRepository {
	return &shortURLRepository{db: db}
}

const shortURLColumns = `id, namespace_id, original_url, short_code, created_by, title, description, is_active, click_count, created_at, updated_at`

func (r *shortURLRepository) CreateShortURL(link models.ShortURL) (models.ShortURL, error) {
	const query = `
		INSERT INTO linknest.short_urls (namespace_id, original_url, short_code, created_by, title, description, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + shortURLColumns + `;
	`
	created, err := scanShortURL(r.db.QueryRow(query,
		link.NamespaceID,
		link.OriginalURL,
		link.ShortCode,
		link.CreatedBy,
		link.Title,
		link.Description,
		link.IsActive,
	))
	if err != nil {
		if IsUniqueViolation(err) {
			return models.ShortURL{}, ErrDuplicateShortCode
		}
		return models.ShortURL{}, err
	}
	return created, nil
}

func (r *shortURLRepository) GetShortURLByID(id string) (models.ShortURL, error) {
	const query = `
		SELECT ` + shortURLColumns + `
		FROM linknest.short_urls
		WHERE id = $1;
	`
	return scanShortURL(r.db.QueryRow(query, id))
}

func (r *shortURLRepository) GetShortURLByCode(namespaceName, shortCode string) (models.ShortURL, error) {
	const query = `
		SELECT s.id, s.namespace_id, s.original_url, s.short_code, s.created_by, s.title, s.description, s.is_active, s.click_count, s.created_at, s.updated_at
		FROM linknest.short_urls s
		JOIN linknest.namespaces n ON n.id = s.namespace_id
		WHERE n.name = $1 AND s.short_code = $2;
	`
	return scanShortURL(r.db.QueryRow(query, namespaceName, shortCode))
}

func (r *shortURLRepository) ListShortURLsByNamespace(namespaceID string) ([]models.ShortURL, error) {
	const query = `
		SELECT ` + shortURLColumns + `
		FROM linknest.short_urls
		WHERE namespace_id = $1
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(query, namespaceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.ShortURL
	for rows.Next() {
		var link models.ShortURL
		if err := rows.Scan(
			&link.ID,
			&link.NamespaceID,
			&link.OriginalURL,
			&link.ShortCode,
			&link.CreatedBy,
			&link.Title,
			&link.Description,
			&link.IsActive,
			&link.ClickCount,
			&link.CreatedAt,
			&link.UpdatedAt,
		); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (r *shortURLRepository) UpdateShortURL(link models.ShortURL) (models.ShortURL, error) {
	const query = `
		UPDATE linknest.short_urls
		SET original_url = $2, title = $3, description = $4, is_active = $5, updated_at = now()
		WHERE id = $1
		RETURNING ` + shortURLColumns + `;
	`
	return scanShortURL(r.db.QueryRow(query, link.ID, link.OriginalURL, link.Title, link.Description, link.IsActive))
}

func (r *shortURLRepository) DeleteShortURL(id string) error {
	const query = `DELETE FROM linknest.short_urls WHERE id = $1;`
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

func (r *shortURLRepository) IncrementClickCount(id string) error {
	const query = `
		UPDATE linknest.short_urls
		SET click_count = click_count + 1
		WHERE id = $1;
	`
	_, err := r.db.Exec(query, id)
	return errors.Wrap(err, "increment click count")
}

func scanShortURL(row *sql.Row) (models.ShortURL, error) {
	var link models.ShortURL
	err := row.Scan(
		&link.ID,
		&link.NamespaceID,
		&link.OriginalURL,
		&link.ShortCode,
		&link.CreatedBy,
		&link.Title,
		&link.Description,
		&link.IsActive,
		&link.ClickCount,
		&link.CreatedAt,
		&link.UpdatedAt,
	)
	if err != nil {
		return models.ShortURL{}, err
	}
	return link, nil
}
