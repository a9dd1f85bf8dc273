package repository

import (
	"database/sql"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/pkg/errors"
)

// ErrDuplicatePendingInvite signals the partial unique index on
// (organization_id, email) WHERE used = FALSE rejected the insert.
var ErrDuplicatePendingInvite = errors.New("a pending invite already exists for this email")

type InviteRepository interface {
	CreateInvite(invite models.Invite) (models.Invite, error)
	GetInviteByTokenHash(tokenHash string) (models.Invite, error)
	GetInviteByID(inviteID string) (models.Invite, error)
	// MarkInviteUsed flips the invite to its terminal state. The update is
	// conditional on used = FALSE; a concurrent winner leaves the loser with
	// sql.ErrNoRows.
	MarkInviteUsed(inviteID string, accepted bool) (models.Invite, error)
	// AcceptInvite consumes the invite and inserts the membership in one
	// transaction. The flip carries MarkInviteUsed's conditional semantics,
	// and a failed membership insert rolls the flip back, so the invite is
	// never stranded used without a membership.
	AcceptInvite(inviteID, userID string) (models.Invite, models.Membership, error)
	ListInvitesByOrganization(organizationID string) ([]models.Invite, error)
	DeleteInvite(inviteID, organizationID string) error
}

type inviteRepository struct {
	db *sql.DB
}

func NewInviteRepository(db *sql.DB) InviteRepository {
	return &inviteRepository{db: db}
}

const inviteColumns = `id, organization_id, email, role, token_hash, invited_by, used, accepted, created_at, expires_at, updated_at`

func (r *inviteRepository) CreateInvite(invite models.Invite) (models.Invite, error) {
	const query = `
		INSERT INTO linknest.invites (organization_id, email, role, token_hash, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + inviteColumns + `;
	`
	row := r.db.QueryRow(query,
		invite.OrganizationID,
		invite.Email,
		string(invite.Role),
		invite.TokenHash,
		nullString(invite.InvitedBy),
		invite.ExpiresAt,
	)
	created, err := scanInvite(row)
	if err != nil {
		if IsUniqueViolation(err) {
			return models.Invite{}, ErrDuplicatePendingInvite
		}
		return models.Invite{}, errors.Wrap(err, "insert invite")
	}
	return created, nil
}

func (r *inviteRepository) GetInviteByTokenHash(tokenHash string) (models.Invite, error) {
	const query = `
		SELECT ` + inviteColumns + `
		FROM linknest.invites
		WHERE token_hash = $1;
	`
	return scanInvite(r.db.QueryRow(query, tokenHash))
}

func (r *inviteRepository) GetInviteByID(inviteID string) (models.Invite, error) {
	const query = `
		SELECT ` + inviteColumns + `
		FROM linknest.invites
		WHERE id = $1;
	`
	return scanInvite(r.db.QueryRow(query, inviteID))
}

func (r *inviteRepository) MarkInviteUsed(inviteID string, accepted bool) (models.Invite, error) {
	const query = `
		UPDATE linknest.invites
		SET used = TRUE, accepted = $2, updated_at = now()
		WHERE id = $1 AND used = FALSE
		RETURNING ` + inviteColumns + `;
	`
	return scanInvite(r.db.QueryRow(query, inviteID, accepted))
}

func (r *inviteRepository) AcceptInvite(inviteID, userID string) (models.Invite, models.Membership, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return models.Invite{}, models.Membership{}, errors.Wrap(err, "begin accept transaction")
	}
	defer tx.Rollback()

	const flip = `
		UPDATE linknest.invites
		SET used = TRUE, accepted = TRUE, updated_at = now()
		WHERE id = $1 AND used = FALSE
		RETURNING ` + inviteColumns + `;
	`
	invite, err := scanInviteFrom(tx.QueryRow(flip, inviteID))
	if err != nil {
		return models.Invite{}, models.Membership{}, err
	}

	const insert = `
		INSERT INTO linknest.memberships (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, user_id, role, created_at, updated_at;
	`
	var (
		m    models.Membership
		role string
	)
	if err := tx.QueryRow(insert, invite.OrganizationID, userID, string(invite.Role)).Scan(
		&m.ID, &m.OrganizationID, &m.UserID, &role, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return models.Invite{}, models.Membership{}, err
	}
	m.Role = models.Role(role)

	if err := tx.Commit(); err != nil {
		return models.Invite{}, models.Membership{}, errors.Wrap(err, "commit accept transaction")
	}
	return invite, m, nil
}

func (r *inviteRepository) ListInvitesByOrganization(organizationID string) ([]models.Invite, error) {
	const query = `
		SELECT ` + inviteColumns + `
		FROM linknest.invites
		WHERE organization_id = $1
		ORDER BY created_at DESC;
	`
	rows, err := r.db.Query(query, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invites []models.Invite
	for rows.Next() {
		invite, err := scanInviteRows(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

func (r *inviteRepository) DeleteInvite(inviteID, organizationID string) error {
	const query = `
		DELETE FROM linknest.invites
		WHERE id = $1 AND organization_id = $2 AND used = FALSE;
	`
	result, err := r.db.Exec(query, inviteID, organizationID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvite(row *sql.Row) (models.Invite, error) {
	return scanInviteFrom(row)
}

func scanInviteRows(rows *sql.Rows) (models.Invite, error) {
	return scanInviteFrom(rows)
}

func scanInviteFrom(s rowScanner) (models.Invite, error) {
	var (
		invite    models.Invite
		role      string
		invitedBy sql.NullString
	)
	err := s.Scan(
		&invite.ID,
		&invite.OrganizationID,
		&invite.Email,
		&role,
		&invite.TokenHash,
		&invitedBy,
		&invite.Used,
		&invite.Accepted,
		&invite.CreatedAt,
		&invite.ExpiresAt,
		&invite.UpdatedAt,
	)
	if err != nil {
		return models.Invite{}, err
	}
	invite.Role = models.Role(role)
	invite.InvitedBy = fromNullString(invitedBy)
	return invite, nil
}
