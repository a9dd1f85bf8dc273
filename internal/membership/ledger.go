package membership

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/rs/zerolog"
)

var (
	// ErrOwnerMustBeAdmin rejects any role mutation that would demote the owner.
	ErrOwnerMustBeAdmin = errors.New("organization owner must be an admin")
	// ErrCannotRemoveOwner rejects removing the owner's membership.
	ErrCannotRemoveOwner = errors.New("organization owner cannot be removed")
	// ErrAlreadyMember signals a second membership for the same (user, organization) pair.
	ErrAlreadyMember = errors.New("user is already a member of this organization")
	// ErrMembershipNotFound is returned when no membership exists for the pair.
	ErrMembershipNotFound = errors.New("membership not found")
	// ErrOrganizationNotFound is returned for unknown organization ids.
	ErrOrganizationNotFound = errors.New("organization not found")
)

// Ledger owns the role truth for direct membership changes and enforces the
// owner-is-always-admin invariant. Invite acceptance writes its membership
// inside the invite repository's transaction.
type Ledger struct {
	orgRepo    repository.OrganizationRepository
	memberRepo repository.MembershipRepository
	logger     zerolog.Logger
}

func NewLedger(orgRepo repository.OrganizationRepository, memberRepo repository.MembershipRepository, logger zerolog.Logger) *Ledger {
	return &Ledger{
		orgRepo:    orgRepo,
		memberRepo: memberRepo,
		logger:     logger.With().Str("component", "membership").Logger(),
	}
}

// CreateOrganization provisions an organization together with the owner's
// admin membership. The membership row always exists; the evaluator's owner
// bypass never has to stand in for it.
func (l *Ledger) CreateOrganization(name, ownerID string) (models.Organization, error) {
	org, err := l.orgRepo.CreateOrganization(name, ownerID)
	if err != nil {
		return models.Organization{}, err
	}
	if _, err := l.memberRepo.CreateMembership(org.ID, ownerID, models.RoleAdmin); err != nil {
		return models.Organization{}, err
	}
	l.logger.Info().Str("organization_id", org.ID).Str("owner_id", ownerID).Msg("organization created")
	return org, nil
}

// ProvisionDefaultOrganization creates the personal organization every new
// user starts with. This is an explicit registration step, not a reactive
// hook on user creation.
func (l *Ledger) ProvisionDefaultOrganization(user models.User) (models.Organization, error) {
	name := user.FirstName
	if name == "" {
		name = strings.SplitN(user.Email, "@", 2)[0]
	}
	return l.CreateOrganization(fmt.Sprintf("%s's Organization", name), user.ID)
}

// AddMember creates a membership for an existing user.
func (l *Ledger) AddMember(organizationID, userID string, role models.Role) (models.Membership, error) {
	org, err := l.getOrganization(organizationID)
	if err != nil {
		return models.Membership{}, err
	}
	if org.OwnerID == userID && role != models.RoleAdmin {
		return models.Membership{}, ErrOwnerMustBeAdmin
	}

	m, err := l.memberRepo.CreateMembership(organizationID, userID, role)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return models.Membership{}, ErrAlreadyMember
		}
		return models.Membership{}, err
	}
	return m, nil
}

// SetRole changes an existing member's role. Demoting the owner fails.
func (l *Ledger) SetRole(organizationID, userID string, role models.Role) (models.Membership, error) {
	org, err := l.getOrganization(organizationID)
	if err != nil {
		return models.Membership{}, err
	}
	if org.OwnerID == userID && role != models.RoleAdmin {
		return models.Membership{}, ErrOwnerMustBeAdmin
	}

	m, err := l.memberRepo.UpdateRole(organizationID, userID, role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Membership{}, ErrMembershipNotFound
		}
		return models.Membership{}, err
	}
	return m, nil
}

// RemoveMember deletes a non-owner membership.
func (l *Ledger) RemoveMember(organizationID, userID string) error {
	org, err := l.getOrganization(organizationID)
	if err != nil {
		return err
	}
	if org.OwnerID == userID {
		return ErrCannotRemoveOwner
	}

	if err := l.memberRepo.DeleteMembership(organizationID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMembershipNotFound
		}
		return err
	}
	return nil
}

// IsMember reports whether the user belongs to the organization. The owner is
// implicitly a member even without a stored membership row.
func (l *Ledger) IsMember(organizationID, userID string) (bool, error) {
	return l.holdsAtLeast(organizationID, userID, models.RoleViewer)
}

// IsEditorOrAdmin reports whether the user may mutate content in the organization.
func (l *Ledger) IsEditorOrAdmin(organizationID, userID string) (bool, error) {
	return l.holdsAtLeast(organizationID, userID, models.RoleEditor)
}

// IsAdmin reports whether the user administers the organization.
func (l *Ledger) IsAdmin(organizationID, userID string) (bool, error) {
	return l.holdsAtLeast(organizationID, userID, models.RoleAdmin)
}

func (l *Ledger) holdsAtLeast(organizationID, userID string, required models.Role) (bool, error) {
	org, err := l.getOrganization(organizationID)
	if err != nil {
		return false, err
	}
	if org.OwnerID == userID {
		return true, nil
	}

	m, err := l.memberRepo.GetMembership(organizationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return m.Role.AtLeast(required), nil
}

// GetMembership returns the stored membership for the pair.
func (l *Ledger) GetMembership(organizationID, userID string) (models.Membership, error) {
	m, err := l.memberRepo.GetMembership(organizationID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Membership{}, ErrMembershipNotFound
		}
		return models.Membership{}, err
	}
	return m, nil
}

// ListMembers returns all memberships in the organization.
func (l *Ledger) ListMembers(organizationID string) ([]models.Membership, error) {
	if _, err := l.getOrganization(organizationID); err != nil {
		return nil, err
	}
	return l.memberRepo.ListMembers(organizationID)
}

func (l *Ledger) getOrganization(organizationID string) (models.Organization, error) {
	org, err := l.orgRepo.GetOrganizationByID(organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Organization{}, ErrOrganizationNotFound
		}
		return models.Organization{}, err
	}
	return org, nil
}
