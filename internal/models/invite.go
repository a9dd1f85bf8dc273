package models

import "time"

// Invite represents a pending invitation to join an organization.
type Invite struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	TokenHash      string    `json:"-"`
	InvitedBy      *string   `json:"invited_by,omitempty"`
	Used           bool      `json:"used"`
	Accepted       bool      `json:"accepted"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsExpired determines whether the invite has expired.
func (i Invite) IsExpired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// IsValid reports whether the invite can still be accepted or declined.
func (i Invite) IsValid(now time.Time) bool {
	return !i.Used && !i.Accepted && !i.IsExpired(now)
}
