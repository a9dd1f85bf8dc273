package authz

import (
	"testing"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store     *memory.Store
	evaluator *Evaluator

	org        models.Organization
	ownerID    string
	adminID    string
	editorID   string
	viewerID   string
	outsiderID string

	namespace  models.Namespace
	editorLink models.ShortURL
	adminLink  models.ShortURL
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()

	newUser := func(email string) string {
		u, err := store.CreateUser(email, "secret", "", "", true)
		require.NoError(t, err)
		return u.ID
	}

	f := &fixture{
		store:      store,
		evaluator:  NewEvaluator(store, store, store, store),
		ownerID:    newUser("owner@example.com"),
		adminID:    newUser("admin@example.com"),
		editorID:   newUser("editor@example.com"),
		viewerID:   newUser("viewer@example.com"),
		outsiderID: newUser("outsider@example.com"),
	}

	org, err := store.CreateOrganization("Acme", f.ownerID)
	require.NoError(t, err)
	f.org = org

	for userID, role := range map[string]models.Role{
		f.ownerID:  models.RoleAdmin,
		f.adminID:  models.RoleAdmin,
		f.editorID: models.RoleEditor,
		f.viewerID: models.RoleViewer,
	} {
		_, err := store.CreateMembership(org.ID, userID, role)
		require.NoError(t, err)
	}

	ns, err := store.CreateNamespace(org.ID, "acme", "")
	require.NoError(t, err)
	f.namespace = ns

	editorLink, err := store.CreateShortURL(models.ShortURL{NamespaceID: ns.ID, OriginalURL: "https://example.com", ShortCode: "e1", CreatedBy: f.editorID, IsActive: true})
	require.NoError(t, err)
	f.editorLink = editorLink

	adminLink, err := store.CreateShortURL(models.ShortURL{NamespaceID: ns.ID, OriginalURL: "https://example.org", ShortCode: "a1", CreatedBy: f.adminID, IsActive: true})
	require.NoError(t, err)
	f.adminLink = adminLink

	return f
}

func TestCapabilityTable(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		actorID    string
		resource   Resource
		capability Capability
		want       bool
	}{
		{"viewer can view", f.viewerID, OrganizationResource(f.org.ID), CapabilityView, true},
		{"viewer cannot create", f.viewerID, NamespaceResource(f.namespace.ID), CapabilityCreate, false},
		{"viewer cannot edit", f.viewerID, ShortURLResource(f.editorLink.ID), CapabilityEdit, false},
		{"viewer cannot invite", f.viewerID, InviteResource(f.org.ID), CapabilityInvite, false},

		{"editor can create", f.editorID, NamespaceResource(f.namespace.ID), CapabilityCreate, true},
		{"editor can edit own link", f.editorID, ShortURLResource(f.editorLink.ID), CapabilityEdit, true},
		{"editor can delete own link", f.editorID, ShortURLResource(f.editorLink.ID), CapabilityDelete, true},
		{"editor cannot edit another's link", f.editorID, ShortURLResource(f.adminLink.ID), CapabilityEdit, false},
		{"editor cannot delete namespace", f.editorID, NamespaceResource(f.namespace.ID), CapabilityDelete, false},
		{"editor cannot manage members", f.editorID, MembershipResource(f.org.ID), CapabilityManageMembers, false},
		{"editor cannot invite", f.editorID, InviteResource(f.org.ID), CapabilityInvite, false},
		{"editor cannot create namespaces", f.editorID, OrganizationResource(f.org.ID), CapabilityCreateNamespace, false},

		{"admin can edit any link", f.adminID, ShortURLResource(f.editorLink.ID), CapabilityEdit, true},
		{"admin can delete namespace", f.adminID, NamespaceResource(f.namespace.ID), CapabilityDelete, true},
		{"admin can manage members", f.adminID, MembershipResource(f.org.ID), CapabilityManageMembers, true},
		{"admin can invite", f.adminID, InviteResource(f.org.ID), CapabilityInvite, true},
		{"admin can create namespaces", f.adminID, OrganizationResource(f.org.ID), CapabilityCreateNamespace, true},

		{"outsider denied everything", f.outsiderID, OrganizationResource(f.org.ID), CapabilityView, false},
		{"outsider denied link view", f.outsiderID, ShortURLResource(f.editorLink.ID), CapabilityView, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.evaluator.Can(tt.actorID, tt.resource, tt.capability)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOwnerBypass(t *testing.T) {
	f := newFixture(t)

	// The owner holds every capability even on resources others created.
	for _, capability := range []Capability{CapabilityView, CapabilityCreate, CapabilityEdit, CapabilityDelete, CapabilityManageMembers, CapabilityInvite, CapabilityCreateNamespace} {
		got, err := f.evaluator.Can(f.ownerID, ShortURLResource(f.editorLink.ID), capability)
		require.NoError(t, err)
		assert.True(t, got, "owner denied %s", capability)
	}
}

func TestUnknownResourceDenies(t *testing.T) {
	f := newFixture(t)

	got, err := f.evaluator.Can(f.adminID, NamespaceResource("missing"), CapabilityView)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = f.evaluator.Can(f.adminID, OrganizationResource("missing"), CapabilityView)
	require.NoError(t, err)
	assert.False(t, got)
}
