package invitation

import (
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/membership"
	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/notification"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/rs/zerolog"
)

const defaultInviteTTL = 7 * 24 * time.Hour

var (
	// ErrInvalidToken is returned when no invite matches the token.
	ErrInvalidToken = errors.New("invalid invite token")
	// ErrDuplicateMember rejects inviting an email already bound to a membership.
	ErrDuplicateMember = errors.New("user is already a member of this organization")
	// ErrDuplicatePendingInvite rejects a second outstanding invite for the same email.
	ErrDuplicatePendingInvite = errors.New("a pending invite already exists for this email")
	// ErrAlreadyUsed rejects declining an invite that has already been resolved.
	ErrAlreadyUsed = errors.New("invite has already been used")
	// ErrInviteAlreadyResolved rejects revoking an accepted or declined invite.
	ErrInviteAlreadyResolved = errors.New("invite has already been resolved")
)

// Invalidity sub-reasons, surfaced so callers can phrase the rejection.
const (
	ReasonExpired  = "expired"
	ReasonUsed     = "used"
	ReasonAccepted = "accepted"
)

// NotValidError reports why an invite can no longer be accepted.
type NotValidError struct {
	Reason string
}

func (e *NotValidError) Error() string {
	return "invite is not valid: " + e.Reason
}

// CreateResult carries the freshly created invite together with the one-time
// token (only the hash is stored) and whether the email went out.
type CreateResult struct {
	Invite    models.Invite
	Token     string
	EmailSent bool
}

// Preview describes an invite to an unauthenticated caller so the surrounding
// flow can route to registration or login. UserExists is the one intentional
// disclosure of whether the email is already registered.
type Preview struct {
	Email            string      `json:"email"`
	OrganizationID   string      `json:"organization_id"`
	OrganizationName string      `json:"organization_name"`
	Role             models.Role `json:"role"`
	ExpiresAt        time.Time   `json:"expires_at"`
	UserExists       bool        `json:"user_exists"`
	RequiresAuth     bool        `json:"requires_auth"`
}

// Service is the invitation state machine: pending invites transition exactly
// once to accepted or declined, or lapse by expiry.
type Service struct {
	inviteRepo repository.InviteRepository
	userRepo   repository.UserRepository
	orgRepo    repository.OrganizationRepository
	memberRepo repository.MembershipRepository
	evaluator  *authz.Evaluator
	notifier   *notification.Service
	tokenTTL   time.Duration
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(
	inviteRepo repository.InviteRepository,
	userRepo repository.UserRepository,
	orgRepo repository.OrganizationRepository,
	memberRepo repository.MembershipRepository,
	evaluator *authz.Evaluator,
	notifier *notification.Service,
	logger zerolog.Logger,
) *Service {
	return &Service{
		inviteRepo: inviteRepo,
		userRepo:   userRepo,
		orgRepo:    orgRepo,
		memberRepo: memberRepo,
		evaluator:  evaluator,
		notifier:   notifier,
		tokenTTL:   defaultInviteTTL,
		logger:     logger.With().Str("component", "invitation").Logger(),
		now:        time.Now,
	}
}

// Create issues a pending invite and emails the acceptance link. The inviter
// must hold the invite capability on the organization. An email-send failure
// is reported through EmailSent but never rolls the invite back; the record
// is re-sendable.
func (s *Service) Create(organizationID, email string, role models.Role, inviterID string) (CreateResult, error) {
	allowed, err := s.evaluator.Can(inviterID, authz.InviteResource(organizationID), authz.CapabilityInvite)
	if err != nil {
		return CreateResult{}, err
	}
	if !allowed {
		return CreateResult{}, authz.ErrUnauthorized
	}

	org, err := s.orgRepo.GetOrganizationByID(organizationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CreateResult{}, membership.ErrOrganizationNotFound
		}
		return CreateResult{}, err
	}

	email = strings.TrimSpace(strings.ToLower(email))
	if _, err := s.memberRepo.GetMembershipByEmail(organizationID, email); err == nil {
		return CreateResult{}, ErrDuplicateMember
	} else if !errors.Is(err, sql.ErrNoRows) {
		return CreateResult{}, err
	}

	token, err := generateToken()
	if err != nil {
		return CreateResult{}, err
	}

	invite, err := s.inviteRepo.CreateInvite(models.Invite{
		OrganizationID: organizationID,
		Email:          email,
		Role:           role,
		TokenHash:      hashToken(token),
		InvitedBy:      &inviterID,
		ExpiresAt:      s.now().Add(s.tokenTTL),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePendingInvite) {
			return CreateResult{}, ErrDuplicatePendingInvite
		}
		return CreateResult{}, err
	}

	emailSent := s.notifier.SendInviteEmail(invite, org.Name, token) == nil
	return CreateResult{Invite: invite, Token: token, EmailSent: emailSent}, nil
}

// Lookup validates a token and returns the invite if it is still pending.
func (s *Service) Lookup(token string) (models.Invite, error) {
	invite, err := s.inviteRepo.GetInviteByTokenHash(hashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Invite{}, ErrInvalidToken
		}
		return models.Invite{}, err
	}
	if reason, ok := invalidity(invite, s.now()); !ok {
		return models.Invite{}, &NotValidError{Reason: reason}
	}
	return invite, nil
}

// PreviewForGuest describes a pending invite to an unauthenticated caller.
func (s *Service) PreviewForGuest(token string) (Preview, error) {
	invite, err := s.Lookup(token)
	if err != nil {
		return Preview{}, err
	}

	org, err := s.orgRepo.GetOrganizationByID(invite.OrganizationID)
	if err != nil {
		return Preview{}, err
	}

	userExists := true
	if _, err := s.userRepo.GetUserByEmail(invite.Email); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return Preview{}, err
		}
		userExists = false
	}

	return Preview{
		Email:            invite.Email,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Role:             invite.Role,
		ExpiresAt:        invite.ExpiresAt,
		UserExists:       userExists,
		RequiresAuth:     true,
	}, nil
}

// Accept consumes the invite and creates the membership in one transaction.
// The flip is a conditional write keyed on used = FALSE, so of N concurrent
// accepts exactly one creates a membership; the rest observe the invite as
// already used. A failed membership insert rolls the flip back, leaving the
// invite pending.
func (s *Service) Accept(token, userID string) (models.Membership, error) {
	invite, err := s.Lookup(token)
	if err != nil {
		return models.Membership{}, err
	}

	if _, err := s.memberRepo.GetMembership(invite.OrganizationID, userID); err == nil {
		return models.Membership{}, membership.ErrAlreadyMember
	} else if !errors.Is(err, sql.ErrNoRows) {
		return models.Membership{}, err
	}

	consumed, m, err := s.inviteRepo.AcceptInvite(invite.ID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Membership{}, &NotValidError{Reason: ReasonUsed}
		}
		if repository.IsUniqueViolation(err) {
			return models.Membership{}, membership.ErrAlreadyMember
		}
		return models.Membership{}, err
	}

	s.logger.Info().
		Str("invite_id", consumed.ID).
		Str("organization_id", consumed.OrganizationID).
		Str("user_id", userID).
		Msg("invite accepted")
	return m, nil
}

// Decline resolves the invite without creating a membership.
func (s *Service) Decline(token string) error {
	invite, err := s.inviteRepo.GetInviteByTokenHash(hashToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		return err
	}
	if invite.Used {
		return ErrAlreadyUsed
	}

	if _, err := s.inviteRepo.MarkInviteUsed(invite.ID, false); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrAlreadyUsed
		}
		return err
	}
	return nil
}

// Revoke deletes a still-pending invite. Requires the manage-members
// capability on the invite's organization.
func (s *Service) Revoke(inviteID, adminID string) error {
	invite, err := s.inviteRepo.GetInviteByID(inviteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		return err
	}

	allowed, err := s.evaluator.Can(adminID, authz.InviteResource(invite.OrganizationID), authz.CapabilityManageMembers)
	if err != nil {
		return err
	}
	if !allowed {
		return authz.ErrUnauthorized
	}

	if invite.Used || invite.Accepted {
		return ErrInviteAlreadyResolved
	}

	if err := s.inviteRepo.DeleteInvite(inviteID, invite.OrganizationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInviteAlreadyResolved
		}
		return err
	}
	return nil
}

// List returns the organization's invites to a member holding manage-members.
func (s *Service) List(organizationID, actorID string) ([]models.Invite, error) {
	allowed, err := s.evaluator.Can(actorID, authz.InviteResource(organizationID), authz.CapabilityManageMembers)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, authz.ErrUnauthorized
	}
	return s.inviteRepo.ListInvitesByOrganization(organizationID)
}

func invalidity(invite models.Invite, now time.Time) (string, bool) {
	switch {
	case invite.Accepted:
		return ReasonAccepted, false
	case invite.Used:
		return ReasonUsed, false
	case invite.IsExpired(now):
		return ReasonExpired, false
	}
	return "", true
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
