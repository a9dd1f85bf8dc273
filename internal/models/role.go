package models

// Role is the membership role a user holds within an organization.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// roleRank orders roles by capability; higher rank grants more.
var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// IsValidRole reports whether the role is one of the three known tiers.
func IsValidRole(role Role) bool {
	_, ok := roleRank[role]
	return ok
}

// ParseRole normalizes a raw string into a Role, defaulting to viewer when empty.
func ParseRole(raw string) (Role, bool) {
	if raw == "" {
		return RoleViewer, true
	}
	role := Role(raw)
	if !IsValidRole(role) {
		return "", false
	}
	return role, true
}

// AtLeast reports whether the role grants the capabilities of the required tier.
func (r Role) AtLeast(required Role) bool {
	return roleRank[r] >= roleRank[required]
}
