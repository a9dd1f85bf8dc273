package registration

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/linknest/linknest-api/internal/invitation"
	"github.com/linknest/linknest-api/internal/membership"
	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/notification"
	"github.com/linknest/linknest-api/internal/otp"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/linknest/linknest-api/internal/token"
	"github.com/rs/zerolog"
)

var (
	// ErrEmailTaken rejects registration with an email that already has an account.
	ErrEmailTaken = errors.New("a user with this email already exists")
	// ErrUserNotFound means no account exists for the email.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordRequired rejects registration without a password.
	ErrPasswordRequired = errors.New("password is required")
)

// Result describes a registration that is awaiting email verification.
type Result struct {
	User      models.User
	OTP       models.OTP
	EmailSent bool
}

// AuthResult is the outcome of a successful verification: an activated user
// with freshly minted session tokens.
type AuthResult struct {
	User       models.User
	Tokens     token.Pair
	Membership *models.Membership
}

// Service orchestrates registration: user creation, default organization
// provisioning, OTP issuance, and for invitees the coordinated
// verify-activate-accept step. Every stage failure leaves the account
// inactive and the invite unconsumed, so the flow is retryable.
type Service struct {
	userRepo repository.UserRepository
	ledger   *membership.Ledger
	invites  *invitation.Service
	otps     *otp.Service
	notifier *notification.Service
	issuer   token.Issuer
	logger   zerolog.Logger
}

func NewService(
	userRepo repository.UserRepository,
	ledger *membership.Ledger,
	invites *invitation.Service,
	otps *otp.Service,
	notifier *notification.Service,
	issuer token.Issuer,
	logger zerolog.Logger,
) *Service {
	return &Service{
		userRepo: userRepo,
		ledger:   ledger,
		invites:  invites,
		otps:     otps,
		notifier: notifier,
		issuer:   issuer,
		logger:   logger.With().Str("component", "registration").Logger(),
	}
}

// Register creates an inactive account, provisions the user's default
// organization as an explicit step, and issues the verification code.
func (s *Service) Register(email, password, firstName, lastName string) (Result, error) {
	if strings.TrimSpace(password) == "" {
		return Result{}, ErrPasswordRequired
	}
	if err := s.ensureEmailFree(email); err != nil {
		return Result{}, err
	}

	user, err := s.userRepo.CreateUser(email, password, firstName, lastName, false)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return Result{}, ErrEmailTaken
		}
		return Result{}, err
	}

	if _, err := s.ledger.ProvisionDefaultOrganization(user); err != nil {
		return Result{}, err
	}

	code, err := s.otps.Generate(user.ID)
	if err != nil {
		return Result{}, err
	}

	emailSent := s.notifier.SendOTPEmail(user, code, false) == nil
	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("user registered, awaiting verification")
	return Result{User: user, OTP: code, EmailSent: emailSent}, nil
}

// VerifyEmail completes a plain registration: a successful OTP verification
// activates the account and mints session tokens.
func (s *Service) VerifyEmail(email, code string) (AuthResult, error) {
	user, err := s.getUserByEmail(email)
	if err != nil {
		return AuthResult{}, err
	}

	if _, err := s.otps.Verify(user.ID, code); err != nil {
		return AuthResult{}, err
	}

	user, err = s.userRepo.ActivateUser(user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	tokens, err := s.issuer.Issue(user)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.Info().Str("user_id", user.ID).Msg("email verified, account activated")
	return AuthResult{User: user, Tokens: tokens}, nil
}

// ResendOTP issues a fresh code for a not-yet-activated account.
func (s *Service) ResendOTP(email string) (Result, error) {
	user, err := s.getUserByEmail(email)
	if err != nil {
		return Result{}, err
	}

	code, err := s.otps.Generate(user.ID)
	if err != nil {
		return Result{}, err
	}

	emailSent := s.notifier.SendOTPEmail(user, code, true) == nil
	return Result{User: user, OTP: code, EmailSent: emailSent}, nil
}

// OTPStatus describes the active verification code for client display.
type OTPStatus struct {
	Email             string      `json:"email"`
	OTP               models.OTP  `json:"otp"`
	TimeRemaining     int         `json:"time_remaining"`
	RemainingAttempts int         `json:"remaining_attempts"`
}

// OTPStatus reports the user's active code without mutating any state.
func (s *Service) OTPStatus(email string) (OTPStatus, error) {
	user, err := s.getUserByEmail(email)
	if err != nil {
		return OTPStatus{}, err
	}

	active, err := s.otps.Status(user.ID)
	if err != nil {
		return OTPStatus{}, err
	}

	return OTPStatus{
		Email:             user.Email,
		OTP:               active,
		TimeRemaining:     s.otps.TimeRemaining(active),
		RemainingAttempts: active.RemainingAttempts(),
	}, nil
}

// RegisterFromInvite starts the unauthenticated-invitee path: the invite must
// be pending, the email must not belong to an existing account (those are
// directed to log in and accept instead), and the account stays inactive
// until the invitee verifies the emailed code.
func (s *Service) RegisterFromInvite(inviteToken, password, firstName, lastName string) (Result, error) {
	if strings.TrimSpace(password) == "" {
		return Result{}, ErrPasswordRequired
	}

	preview, err := s.invites.PreviewForGuest(inviteToken)
	if err != nil {
		return Result{}, err
	}
	if preview.UserExists {
		return Result{}, ErrEmailTaken
	}

	user, err := s.userRepo.CreateUser(preview.Email, password, firstName, lastName, false)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return Result{}, ErrEmailTaken
		}
		return Result{}, err
	}

	if _, err := s.ledger.ProvisionDefaultOrganization(user); err != nil {
		return Result{}, err
	}

	code, err := s.otps.Generate(user.ID)
	if err != nil {
		return Result{}, err
	}

	emailSent := s.notifier.SendInviteVerificationEmail(user, code, preview.OrganizationName, preview.Role) == nil
	s.logger.Info().
		Str("user_id", user.ID).
		Str("organization_id", preview.OrganizationID).
		Msg("invitee registered, awaiting verification")
	return Result{User: user, OTP: code, EmailSent: emailSent}, nil
}

// CompleteFromInvite finishes the invitee path in one coordinated step:
// re-validate the invite, verify the code, and only then activate the
// account, consume the invite into a membership, and mint tokens. Every
// failure, an invalid invite, an OTP failure, or an already-existing
// membership, leaves the account inactive and the invite unconsumed.
func (s *Service) CompleteFromInvite(inviteToken, code string) (AuthResult, error) {
	invite, err := s.invites.Lookup(inviteToken)
	if err != nil {
		return AuthResult{}, err
	}

	user, err := s.getUserByEmail(invite.Email)
	if err != nil {
		return AuthResult{}, err
	}

	// The membership check runs before the code is consumed, so a user added
	// to the organization out of band fails here with the account and OTP
	// untouched.
	if _, err := s.ledger.GetMembership(invite.OrganizationID, user.ID); err == nil {
		return AuthResult{}, membership.ErrAlreadyMember
	} else if !errors.Is(err, membership.ErrMembershipNotFound) {
		return AuthResult{}, err
	}

	if _, err := s.otps.Verify(user.ID, code); err != nil {
		return AuthResult{}, err
	}

	user, err = s.userRepo.ActivateUser(user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	m, err := s.invites.Accept(inviteToken, user.ID)
	if err != nil {
		return AuthResult{}, err
	}

	tokens, err := s.issuer.Issue(user)
	if err != nil {
		return AuthResult{}, err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Str("organization_id", m.OrganizationID).
		Msg("invitee verified and joined organization")
	return AuthResult{User: user, Tokens: tokens, Membership: &m}, nil
}

func (s *Service) ensureEmailFree(email string) error {
	_, err := s.userRepo.GetUserByEmail(email)
	if err == nil {
		return ErrEmailTaken
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	return err
}

func (s *Service) getUserByEmail(email string) (models.User, error) {
	user, err := s.userRepo.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}
