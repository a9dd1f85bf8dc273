package notification

import (
	"errors"
	"testing"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMailer struct {
	to      string
	subject string
	body    string
	fail    bool
}

func (m *recordingMailer) Send(to, subject, body string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.to, m.subject, m.body = to, subject, body
	return nil
}

func TestSendInviteEmail(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewService(mailer, "https://links.test/join?token=%s", zerolog.Nop())

	invite := models.Invite{Email: "bob@example.com", Role: models.RoleEditor}
	require.NoError(t, svc.SendInviteEmail(invite, "Acme", "tok-123"))

	assert.Equal(t, "bob@example.com", mailer.to)
	assert.Contains(t, mailer.subject, "Acme")
	assert.Contains(t, mailer.body, "https://links.test/join?token=tok-123")
	assert.Contains(t, mailer.body, "editor")
}

func TestSendOTPEmail(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewService(mailer, "", zerolog.Nop())

	user := models.User{Email: "alice@example.com", FirstName: "Alice"}
	otp := models.OTP{Code: "004217"}

	require.NoError(t, svc.SendOTPEmail(user, otp, false))
	assert.Equal(t, "Verify Your Email - LinkNest", mailer.subject)
	assert.Contains(t, mailer.body, "004217")
	assert.Contains(t, mailer.body, "Alice")

	require.NoError(t, svc.SendOTPEmail(user, otp, true))
	assert.Equal(t, "New Verification Code - LinkNest", mailer.subject)
}

func TestSendInviteVerificationEmail(t *testing.T) {
	mailer := &recordingMailer{}
	svc := NewService(mailer, "", zerolog.Nop())

	user := models.User{Email: "bob@example.com"}
	otp := models.OTP{Code: "123456"}

	require.NoError(t, svc.SendInviteVerificationEmail(user, otp, "Acme", models.RoleViewer))
	assert.Contains(t, mailer.body, "Acme")
	assert.Contains(t, mailer.body, "123456")
	assert.Contains(t, mailer.body, "Hello User") // no first name on file
}

func TestSendFailureIsReturned(t *testing.T) {
	mailer := &recordingMailer{fail: true}
	svc := NewService(mailer, "", zerolog.Nop())

	err := svc.SendOTPEmail(models.User{Email: "alice@example.com"}, models.OTP{Code: "123456"}, false)
	assert.Error(t, err)
}
