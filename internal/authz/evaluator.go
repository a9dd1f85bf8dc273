package authz

import (
	"database/sql"
	"errors"

	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/repository"
)

// ErrUnauthorized is returned to callers lacking a capability. The message is
// deliberately generic so it never leaks whether the resource exists.
var ErrUnauthorized = errors.New("not permitted")

// Capability is a named permitted action evaluated against a membership role.
type Capability string

const (
	CapabilityView            Capability = "view"
	CapabilityCreate          Capability = "create"
	CapabilityEdit            Capability = "edit"
	CapabilityDelete          Capability = "delete"
	CapabilityManageMembers   Capability = "manage-members"
	CapabilityInvite          Capability = "invite"
	CapabilityCreateNamespace Capability = "create-namespace"
)

type resourceKind string

const (
	kindOrganization resourceKind = "organization"
	kindNamespace    resourceKind = "namespace"
	kindShortURL     resourceKind = "short_url"
	kindMembership   resourceKind = "membership"
	kindInvite       resourceKind = "invite"
)

// Resource identifies what a capability is evaluated against. Namespaces and
// short URLs resolve transitively to their owning organization.
type Resource struct {
	kind resourceKind
	id   string
}

func OrganizationResource(organizationID string) Resource {
	return Resource{kind: kindOrganization, id: organizationID}
}

func NamespaceResource(namespaceID string) Resource {
	return Resource{kind: kindNamespace, id: namespaceID}
}

func ShortURLResource(shortURLID string) Resource {
	return Resource{kind: kindShortURL, id: shortURLID}
}

// MembershipResource and InviteResource are owned directly by an organization.
func MembershipResource(organizationID string) Resource {
	return Resource{kind: kindMembership, id: organizationID}
}

func InviteResource(organizationID string) Resource {
	return Resource{kind: kindInvite, id: organizationID}
}

// Evaluator answers capability questions. It holds no state of its own and
// only reads through the repositories, so it is safe for concurrent use.
type Evaluator struct {
	orgRepo       repository.OrganizationRepository
	memberRepo    repository.MembershipRepository
	namespaceRepo repository.NamespaceRepository
	shortURLRepo  repository.ShortURLRepository
}

func NewEvaluator(
	orgRepo repository.OrganizationRepository,
	memberRepo repository.MembershipRepository,
	namespaceRepo repository.NamespaceRepository,
	shortURLRepo repository.ShortURLRepository,
) *Evaluator {
	return &Evaluator{
		orgRepo:       orgRepo,
		memberRepo:    memberRepo,
		namespaceRepo: namespaceRepo,
		shortURLRepo:  shortURLRepo,
	}
}

// Can reports whether the actor holds the capability on the resource.
// The organization owner is allowed everything without consulting the
// membership row. A missing membership denies all capabilities.
func (e *Evaluator) Can(actorID string, res Resource, capability Capability) (bool, error) {
	orgID, createdBy, err := e.resolve(res)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	org, err := e.orgRepo.GetOrganizationByID(orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if org.OwnerID == actorID {
		return true, nil
	}

	membership, err := e.memberRepo.GetMembership(orgID, actorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	ownsResource := createdBy != "" && createdBy == actorID
	return roleAllows(membership.Role, capability, ownsResource), nil
}

// resolve walks the resource up to its owning organization. For short URLs it
// also reports the creating user so own-resource checks can apply.
func (e *Evaluator) resolve(res Resource) (orgID, createdBy string, err error) {
	switch res.kind {
	case kindOrganization, kindMembership, kindInvite:
		return res.id, "", nil
	case kindNamespace:
		ns, err := e.namespaceRepo.GetNamespaceByID(res.id)
		if err != nil {
			return "", "", err
		}
		return ns.OrganizationID, "", nil
	case kindShortURL:
		link, err := e.shortURLRepo.GetShortURLByID(res.id)
		if err != nil {
			return "", "", err
		}
		ns, err := e.namespaceRepo.GetNamespaceByID(link.NamespaceID)
		if err != nil {
			return "", "", err
		}
		return ns.OrganizationID, link.CreatedBy, nil
	default:
		return "", "", sql.ErrNoRows
	}
}

// roleAllows is the single capability table every permission check goes
// through. Editors may mutate resources they created; only admins may mutate
// anyone's, manage members, invite, or create namespaces.
func roleAllows(role models.Role, capability Capability, ownsResource bool) bool {
	switch capability {
	case CapabilityView:
		return true
	case CapabilityCreate:
		return role.AtLeast(models.RoleEditor)
	case CapabilityEdit, CapabilityDelete:
		if role == models.RoleAdmin {
			return true
		}
		return role == models.RoleEditor && ownsResource
	case CapabilityManageMembers, CapabilityInvite, CapabilityCreateNamespace:
		return role == models.RoleAdmin
	default:
		return false
	}
}
