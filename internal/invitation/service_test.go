package invitation

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/membership"
	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/notification"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/linknest/linknest-api/internal/repository/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []string
	fail bool
}

func (m *captureMailer) Send(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, to)
	return nil
}

type inviteFixture struct {
	store   *memory.Store
	svc     *Service
	ledger  *membership.Ledger
	mailer  *captureMailer
	org     models.Organization
	adminID string
}

func newInviteFixture(t *testing.T) *inviteFixture {
	t.Helper()
	store := memory.NewStore()
	mailer := &captureMailer{}

	ledger := membership.NewLedger(store, store, zerolog.Nop())
	evaluator := authz.NewEvaluator(store, store, store, store)
	notifier := notification.NewService(mailer, "", zerolog.Nop())
	svc := NewService(store, store, store, store, evaluator, notifier, zerolog.Nop())

	admin, err := store.CreateUser("admin@example.com", "secret", "", "", true)
	require.NoError(t, err)
	org, err := ledger.CreateOrganization("Acme", admin.ID)
	require.NoError(t, err)

	return &inviteFixture{store: store, svc: svc, ledger: ledger, mailer: mailer, org: org, adminID: admin.ID}
}

func (f *inviteFixture) newMember(t *testing.T, email string, role models.Role) string {
	t.Helper()
	u, err := f.store.CreateUser(email, "secret", "", "", true)
	require.NoError(t, err)
	_, err = f.ledger.AddMember(f.org.ID, u.ID, role)
	require.NoError(t, err)
	return u.ID
}

func TestCreateInvite(t *testing.T) {
	f := newInviteFixture(t)

	result, err := f.svc.Create(f.org.ID, "Bob@Example.com", models.RoleEditor, f.adminID)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "bob@example.com", result.Invite.Email)
	assert.Equal(t, models.RoleEditor, result.Invite.Role)
	assert.NotEqual(t, result.Token, result.Invite.TokenHash)
	assert.True(t, result.EmailSent)
	assert.Equal(t, []string{"bob@example.com"}, f.mailer.sent)

	// The stored hash round-trips through Lookup.
	invite, err := f.svc.Lookup(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.Invite.ID, invite.ID)
}

func TestCreateInviteAuthorization(t *testing.T) {
	f := newInviteFixture(t)
	editorID := f.newMember(t, "editor@example.com", models.RoleEditor)

	_, err := f.svc.Create(f.org.ID, "new@example.com", models.RoleViewer, editorID)
	assert.ErrorIs(t, err, authz.ErrUnauthorized)
}

func TestCreateInviteRejectsExistingMember(t *testing.T) {
	f := newInviteFixture(t)
	f.newMember(t, "member@example.com", models.RoleViewer)

	_, err := f.svc.Create(f.org.ID, "member@example.com", models.RoleViewer, f.adminID)
	assert.ErrorIs(t, err, ErrDuplicateMember)
}

func TestCreateInviteRejectsDuplicatePending(t *testing.T) {
	f := newInviteFixture(t)

	_, err := f.svc.Create(f.org.ID, "bob@example.com", models.RoleViewer, f.adminID)
	require.NoError(t, err)

	_, err = f.svc.Create(f.org.ID, "bob@example.com", models.RoleEditor, f.adminID)
	assert.ErrorIs(t, err, ErrDuplicatePendingInvite)
}

func TestCreateInviteSurvivesEmailFailure(t *testing.T) {
	f := newInviteFixture(t)
	f.mailer.fail = true

	result, err := f.svc.Create(f.org.ID, "bob@example.com", models.RoleViewer, f.adminID)
	require.NoError(t, err)
	assert.False(t, result.EmailSent)

	// The invite exists despite the failed send.
	_, err = f.svc.Lookup(result.Token)
	assert.NoError(t, err)
}

func TestLookup(t *testing.T) {
	f := newInviteFixture(t)

	t.Run("unknown token", func(t *testing.T) {
		_, err := f.svc.Lookup("no-such-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired invite reports the reason", func(t *testing.T) {
		result, err := f.svc.Create(f.org.ID, "late@example.com", models.RoleViewer, f.adminID)
		require.NoError(t, err)

		f.svc.now = func() time.Time { return result.Invite.ExpiresAt.Add(time.Second) }
		defer func() { f.svc.now = time.Now }()

		_, err = f.svc.Lookup(result.Token)
		var notValid *NotValidError
		require.ErrorAs(t, err, &notValid)
		assert.Equal(t, ReasonExpired, notValid.Reason)
	})
}

func TestAccept(t *testing.T) {
	f := newInviteFixture(t)
	invitee, err := f.store.CreateUser("bob@example.com", "secret", "", "", true)
	require.NoError(t, err)

	result, err := f.svc.Create(f.org.ID, "bob@example.com", models.RoleEditor, f.adminID)
	require.NoError(t, err)

	m, err := f.svc.Accept(result.Token, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, f.org.ID, m.OrganizationID)
	assert.Equal(t, invitee.ID, m.UserID)
	assert.Equal(t, models.RoleEditor, m.Role)

	// A second accept sees the terminal state, not a fresh membership.
	_, err = f.svc.Accept(result.Token, invitee.ID)
	var notValid *NotValidError
	require.ErrorAs(t, err, &notValid)
	assert.Equal(t, ReasonAccepted, notValid.Reason)
}

func TestAcceptIsAtMostOnce(t *testing.T) {
	f := newInviteFixture(t)

	result, err := f.svc.Create(f.org.ID, "bob@example.com", models.RoleViewer, f.adminID)
	require.NoError(t, err)

	// Two different users racing on the same token: exactly one membership.
	first, err := f.store.CreateUser("bob@example.com", "secret", "", "", true)
	require.NoError(t, err)
	second, err := f.store.CreateUser("mallory@example.com", "secret", "", "", true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, userID := range []string{first.ID, second.ID} {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			_, errs[i] = f.svc.Accept(result.Token, userID)
		}(i, userID)
	}
	wg.Wait()

	var succeeded, lost int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		// The loser observes the consumed invite either at lookup or at
		// the conditional write.
		var notValid *NotValidError
		if errors.As(err, &notValid) {
			lost++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, lost)

	members, err := f.ledger.ListMembers(f.org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2) // owner plus the winner
}

func TestAcceptRejectsExistingMember(t *testing.T) {
	f := newInviteFixture(t)
	memberID := f.newMember(t, "member@example.com", models.RoleViewer)

	// Invite created before the user joined through another path.
	result, err := f.svc.Create(f.org.ID, "other@example.com", models.RoleViewer, f.adminID)
	require.NoError(t, err)

	_, err = f.svc.Accept(result.Token, memberID)
	assert.ErrorIs(t, err, membership.ErrAlreadyMember)

	// The invite stays pending for its addressee.
	_, err = f.svc.Lookup(result.Token)
	assert.NoError(t, err)
}

// A membership insert failure during accept must leave the invite pending
// instead of stranding it used without a membership.
func TestAcceptRollsBackWhenMembershipInsertFails(t *testing.T) {
	f := newInviteFixture(t)

	result, err := f.svc.Create(f.org.ID, "bob@example.com", models.RoleEditor, f.adminID)
	require.NoError(t, err)

	bob, err := f.store.CreateUser("bob@example.com", "secret", "", "", true)
	require.NoError(t, err)

	// A membership created between the pending check and the flip makes the
	// insert collide inside the accept transaction.
	_, err = f.store.CreateMembership(f.org.ID, bob.ID, models.RoleViewer)
	require.NoError(t, err)

	_, _, err = f.store.AcceptInvite(result.Invite.ID, bob.ID)
	require.Error(t, err)
	assert.True(t, repository.IsUniqueViolation(err))

	// The invite survived and is consumable once the collision is gone.
	require.NoError(t, f.store.DeleteMembership(f.org.ID, bob.ID))
	m, err := f.svc.Accept(result.Token, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, m.Role)
}

func TestDecline(t *testing.T) {
	f := newInviteFixture(t)

	result, err := f.svc.Create(f.org.ID, "bob@example.com", models.RoleViewer, f.adminID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Decline(result.Token))

	// Declined invites are used but not accepted.
	invite, err := f.store.GetInviteByID(result.Invite.ID)
	require.NoError(t, err)
	assert.True(t, invite.Used)
	assert.False(t, invite.Accepted)

	assert.ErrorIs(t, f.svc.Decline(result.Token), ErrAlreadyUsed)

	// A declined invite can no longer be accepted.
	user, err := f.store.CreateUser("bob@example.com", "secret", "", "", true)
	require.NoError(t, err)
	_, err = f.svc.Accept(result.Token, user.ID)
	var notValid *NotValidError
	require.ErrorAs(t, err, &notValid)
	assert.Equal(t, ReasonUsed, notValid.Reason)
}

func TestRevoke(t *testing.T) {
	f := newInviteFixture(t)
	editorID := f.newMember(t, "editor@example.com", models.RoleEditor)

	result, err := f.svc.Create(f.org.ID, "bob@example.com", models.RoleViewer, f.adminID)
	require.NoError(t, err)

	t.Run("requires manage-members", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.Revoke(result.Invite.ID, editorID), authz.ErrUnauthorized)
	})

	t.Run("admin revokes a pending invite", func(t *testing.T) {
		require.NoError(t, f.svc.Revoke(result.Invite.ID, f.adminID))
		_, err := f.svc.Lookup(result.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("resolved invites cannot be revoked", func(t *testing.T) {
		res, err := f.svc.Create(f.org.ID, "carol@example.com", models.RoleViewer, f.adminID)
		require.NoError(t, err)
		require.NoError(t, f.svc.Decline(res.Token))

		assert.ErrorIs(t, f.svc.Revoke(res.Invite.ID, f.adminID), ErrInviteAlreadyResolved)
	})
}

func TestPreviewForGuest(t *testing.T) {
	f := newInviteFixture(t)

	result, err := f.svc.Create(f.org.ID, "bob@example.com", models.RoleEditor, f.adminID)
	require.NoError(t, err)

	preview, err := f.svc.PreviewForGuest(result.Token)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", preview.Email)
	assert.Equal(t, "Acme", preview.OrganizationName)
	assert.Equal(t, models.RoleEditor, preview.Role)
	assert.False(t, preview.UserExists)
	assert.True(t, preview.RequiresAuth)

	_, err = f.store.CreateUser("bob@example.com", "secret", "", "", true)
	require.NoError(t, err)

	preview, err = f.svc.PreviewForGuest(result.Token)
	require.NoError(t, err)
	assert.True(t, preview.UserExists)
}

func TestList(t *testing.T) {
	f := newInviteFixture(t)
	viewerID := f.newMember(t, "viewer@example.com", models.RoleViewer)

	_, err := f.svc.Create(f.org.ID, "a@example.com", models.RoleViewer, f.adminID)
	require.NoError(t, err)
	_, err = f.svc.Create(f.org.ID, "b@example.com", models.RoleViewer, f.adminID)
	require.NoError(t, err)

	invites, err := f.svc.List(f.org.ID, f.adminID)
	require.NoError(t, err)
	assert.Len(t, invites, 2)

	_, err = f.svc.List(f.org.ID, viewerID)
	assert.ErrorIs(t, err, authz.ErrUnauthorized)
}
