package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/models"
	"github.com/linknest/linknest-api/internal/shortener"
	"github.com/rs/zerolog"
)

type LinkHandler struct {
	shortener *shortener.Service
	logger    zerolog.Logger
}

func NewLinkHandler(shortenerService *shortener.Service, logger zerolog.Logger) *LinkHandler {
	return &LinkHandler{
		shortener: shortenerService,
		logger:    logger,
	}
}

// CreateNamespace provisions a namespace in the organization named in the route.
func (h *LinkHandler) CreateNamespace(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	organizationID := mux.Vars(r)["organizationID"]

	var payload struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		http.Error(w, "namespace name is required", http.StatusBadRequest)
		return
	}

	ns, err := h.shortener.CreateNamespace(actorID, organizationID, payload.Name, payload.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ns)
}

// ListNamespaces returns the organization's namespaces.
func (h *LinkHandler) ListNamespaces(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	organizationID := mux.Vars(r)["organizationID"]

	namespaces, err := h.shortener.ListNamespaces(actorID, organizationID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, namespaces)
}

// DeleteNamespace removes a namespace and its links.
func (h *LinkHandler) DeleteNamespace(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	namespaceID := mux.Vars(r)["namespaceID"]

	if err := h.shortener.DeleteNamespace(actorID, namespaceID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateShortURL creates a link; an omitted short code is generated.
func (h *LinkHandler) CreateShortURL(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	namespaceID := mux.Vars(r)["namespaceID"]

	var payload struct {
		OriginalURL string `json:"original_url"`
		ShortCode   string `json:"short_code"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	link, err := h.shortener.CreateShortURL(actorID, models.ShortURL{
		NamespaceID: namespaceID,
		OriginalURL: payload.OriginalURL,
		ShortCode:   payload.ShortCode,
		Title:       payload.Title,
		Description: payload.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// ListShortURLs returns the namespace's links.
func (h *LinkHandler) ListShortURLs(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	namespaceID := mux.Vars(r)["namespaceID"]

	links, err := h.shortener.ListShortURLs(actorID, namespaceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// UpdateShortURL edits a link's destination or metadata.
func (h *LinkHandler) UpdateShortURL(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	linkID := mux.Vars(r)["linkID"]

	var payload struct {
		OriginalURL string `json:"original_url"`
		Title       string `json:"title"`
		Description string `json:"description"`
		IsActive    *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	isActive := true
	if payload.IsActive != nil {
		isActive = *payload.IsActive
	}

	link, err := h.shortener.UpdateShortURL(actorID, models.ShortURL{
		ID:          linkID,
		OriginalURL: payload.OriginalURL,
		Title:       payload.Title,
		Description: payload.Description,
		IsActive:    isActive,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// DeleteShortURL removes a link.
func (h *LinkHandler) DeleteShortURL(w http.ResponseWriter, r *http.Request) {
	actorID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	linkID := mux.Vars(r)["linkID"]

	if err := h.shortener.DeleteShortURL(actorID, linkID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Redirect is the public lookup-and-count path.
func (h *LinkHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	namespaceName := vars["namespace"]
	shortCode := vars["code"]

	link, err := h.shortener.Resolve(namespaceName, shortCode)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	http.Redirect(w, r, link.OriginalURL, http.StatusFound)
}
