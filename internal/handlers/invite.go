package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/invitation"
	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/registration"
	"github.com/rs/zerolog"
)

type InviteHandler struct {
	invites      *invitation.Service
	registration *registration.Service
	logger       zerolog.Logger
}

func NewInviteHandler(invites *invitation.Service, registrationService *registration.Service, logger zerolog.Logger) *InviteHandler {
	return &InviteHandler{
		invites:      invites,
		registration: registrationService,
		logger:       logger,
	}
}

// Create issues an invite into the organization named in the route.
func (h *InviteHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	organizationID := mux.Vars(r)["organizationID"]
	if organizationID == "" {
		http.Error(w, "organization id is required", http.StatusBadRequest)
		return
	}

	var payload struct {
		Email string `json:"email"`
		Role  string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Email) == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}
	role, ok := models.ParseRole(strings.ToLower(strings.TrimSpace(payload.Role)))
	if !ok {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	result, err := h.invites.Create(organizationID, payload.Email, role, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"invite":     result.Invite,
		"token":      result.Token,
		"email_sent": result.EmailSent,
	})
}

// List returns the organization's invites to an admin.
func (h *InviteHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	organizationID := mux.Vars(r)["organizationID"]
	invites, err := h.invites.List(organizationID, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, invites)
}

// Preview describes a pending invite to an unauthenticated caller so the
// client can route to registration or login.
func (h *InviteHandler) Preview(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	preview, err := h.invites.PreviewForGuest(token)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// Accept consumes the invite for the authenticated user.
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		// The guest path gets the invite context instead of a bare 401.
		preview, err := h.invites.PreviewForGuest(token)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusUnauthorized, preview)
		return
	}

	m, err := h.invites.Accept(token, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Decline resolves the invite without membership.
func (h *InviteHandler) Decline(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	if err := h.invites.Decline(token); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Revoke deletes a still-pending invite.
func (h *InviteHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	inviteID := mux.Vars(r)["inviteID"]
	if err := h.invites.Revoke(inviteID, actorID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterFromInvite creates an inactive account for an invitee and sends
// the verification code.
func (h *InviteHandler) RegisterFromInvite(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	var payload struct {
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	result, err := h.registration.RegisterFromInvite(token, payload.Password, payload.FirstName, payload.LastName)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":        "Registration successful! Please check your email for verification code.",
		"user":           result.User,
		"otp_expires_at": result.OTP.ExpiresAt,
		"email_sent":     result.EmailSent,
	})
}

// CompleteFromInvite verifies the code, activates the invitee, and joins
// them to the organization in one coordinated step.
func (h *InviteHandler) CompleteFromInvite(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(mux.Vars(r)["token"])
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	result, err := h.registration.CompleteFromInvite(token, payload.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":    "Email verified successfully! You have joined the organization.",
		"user":       result.User,
		"membership": result.Membership,
		"tokens":     result.Tokens,
	})
}
