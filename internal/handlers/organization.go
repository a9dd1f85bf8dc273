package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/membership"
	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/rs/zerolog"
)

type OrganizationHandler struct {
	ledger    *membership.Ledger
	orgRepo   repository.OrganizationRepository
	userRepo  repository.UserRepository
	evaluator *authz.Evaluator
	logger    zerolog.Logger
}

func NewOrganizationHandler(
	ledger *membership.Ledger,
	orgRepo repository.OrganizationRepository,
	userRepo repository.UserRepository,
	evaluator *authz.Evaluator,
	logger zerolog.Logger,
) *OrganizationHandler {
	return &OrganizationHandler{
		ledger:    ledger,
		orgRepo:   orgRepo,
		userRepo:  userRepo,
		evaluator: evaluator,
		logger:    logger,
	}
}

// Create provisions an organization owned by the caller, admin membership included.
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	payload.Name = strings.TrimSpace(payload.Name)
	if payload.Name == "" {
		http.Error(w, "organization name is required", http.StatusBadRequest)
		return
	}

	org, err := h.ledger.CreateOrganization(payload.Name, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

// List returns the organizations the caller belongs to.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	orgs, err := h.orgRepo.ListOrganizationsForUser(actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

// Members lists the organization's memberships to any member.
func (h *OrganizationHandler) Members(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	organizationID := mux.Vars(r)["organizationID"]

	isMember, err := h.ledger.IsMember(organizationID, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !isMember {
		http.Error(w, "not permitted", http.StatusForbidden)
		return
	}

	members, err := h.ledger.ListMembers(organizationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

// AddMember directly adds an existing user, admin action only.
func (h *OrganizationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	organizationID := mux.Vars(r)["organizationID"]

	var payload struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	role, ok := models.ParseRole(strings.ToLower(strings.TrimSpace(payload.Role)))
	if !ok {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	if !h.requireCapability(w, actorID, organizationID) {
		return
	}

	if _, err := h.userRepo.GetUserByID(payload.UserID); err != nil {
		writeDomainError(w, err)
		return
	}

	m, err := h.ledger.AddMember(organizationID, payload.UserID, role)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// SetRole mutates another member's role, admin action only.
func (h *OrganizationHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)
	organizationID := vars["organizationID"]
	userID := vars["userID"]

	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	role, ok := models.ParseRole(strings.ToLower(strings.TrimSpace(payload.Role)))
	if !ok {
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	if !h.requireCapability(w, actorID, organizationID) {
		return
	}

	m, err := h.ledger.SetRole(organizationID, userID, role)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// RemoveMember deletes a non-owner membership, admin action only.
func (h *OrganizationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	vars := mux.Vars(r)
	organizationID := vars["organizationID"]
	userID := vars["userID"]

	if !h.requireCapability(w, actorID, organizationID) {
		return
	}

	if err := h.ledger.RemoveMember(organizationID, userID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrganizationHandler) requireCapability(w http.ResponseWriter, actorID, organizationID string) bool {
	allowed, err := h.evaluator.Can(actorID, authz.MembershipResource(organizationID), authz.CapabilityManageMembers)
	if err != nil {
		writeDomainError(w, err)
		return false
	}
	if !allowed {
		http.Error(w, "not permitted", http.StatusForbidden)
		return false
	}
	return true
}
