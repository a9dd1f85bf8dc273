package notification

import (
	"fmt"
	"strings"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/rs/zerolog"
)

// Service composes and dispatches the product emails. Send failures are
// logged and returned to the caller; the records that triggered them are
// already committed and re-sendable, so nothing is rolled back.
type Service struct {
	mailer       Mailer
	inviteURLTpl string
	logger       zerolog.Logger
}

func NewService(mailer Mailer, inviteURLTemplate string, logger zerolog.Logger) *Service {
	if inviteURLTemplate == "" {
		inviteURLTemplate = "https://app.linknest.dev/invite/accept?token=%s"
	}
	return &Service{
		mailer:       mailer,
		inviteURLTpl: inviteURLTemplate,
		logger:       logger.With().Str("component", "notification").Logger(),
	}
}

// SendInviteEmail delivers the invitation link to the prospective member.
func (s *Service) SendInviteEmail(invite models.Invite, orgName, token string) error {
	inviteURL := fmt.Sprintf(s.inviteURLTpl, token)
	subject := fmt.Sprintf("You have been invited to join %s on LinkNest", orgName)

	body := strings.Builder{}
	body.WriteString(fmt.Sprintf("Hi %s,\n\n", invite.Email))
	body.WriteString(fmt.Sprintf("You have been invited to join %s as %s.\n\n", orgName, invite.Role))
	body.WriteString("Click the link below to accept:\n")
	body.WriteString(inviteURL + "\n\n")
	body.WriteString("This invitation will expire in 7 days.\n\n")
	body.WriteString("Best regards,\nThe LinkNest Team\n")

	if err := s.mailer.Send(invite.Email, subject, body.String()); err != nil {
		s.logger.Warn().Err(err).Str("email", invite.Email).Str("invite_id", invite.ID).Msg("failed to send invite email")
		return err
	}
	return nil
}

// SendInviteVerificationEmail delivers a verification code to an invitee,
// with the invitation context embedded so the recipient knows why.
func (s *Service) SendInviteVerificationEmail(user models.User, otp models.OTP, orgName string, role models.Role) error {
	subject := "Verify Your Email - LinkNest"

	name := user.FirstName
	if name == "" {
		name = "User"
	}

	body := strings.Builder{}
	body.WriteString(fmt.Sprintf("Hello %s,\n\n", name))
	body.WriteString(fmt.Sprintf("You are joining %s as %s. Please use the following code to verify your email address:\n\n", orgName, role))
	body.WriteString(fmt.Sprintf("Verification Code: %s\n\n", otp.Code))
	body.WriteString("This code will expire in 10 minutes.\n\n")
	body.WriteString("Best regards,\nThe LinkNest Team\n")

	if err := s.mailer.Send(user.Email, subject, body.String()); err != nil {
		s.logger.Warn().Err(err).Str("email", user.Email).Msg("failed to send invite verification email")
		return err
	}
	return nil
}

// SendOTPEmail delivers a verification code; resend switches the subject line.
func (s *Service) SendOTPEmail(user models.User, otp models.OTP, resend bool) error {
	subject := "Verify Your Email - LinkNest"
	if resend {
		subject = "New Verification Code - LinkNest"
	}

	name := user.FirstName
	if name == "" {
		name = "User"
	}

	body := strings.Builder{}
	body.WriteString(fmt.Sprintf("Hello %s,\n\n", name))
	body.WriteString("Please use the following code to verify your email address:\n\n")
	body.WriteString(fmt.Sprintf("Verification Code: %s\n\n", otp.Code))
	body.WriteString("This code will expire in 10 minutes.\n\n")
	body.WriteString("If you didn't request this verification, please ignore this email.\n\n")
	body.WriteString("Best regards,\nThe LinkNest Team\n")

	if err := s.mailer.Send(user.Email, subject, body.String()); err != nil {
		s.logger.Warn().Err(err).Str("email", user.Email).Msg("failed to send otp email")
		return err
	}
	return nil
}
