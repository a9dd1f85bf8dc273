package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/invitation"
	"github.com/linknest/linknest-api/internal/membership"
	"github.com/linknest/linknest-api/internal/otp"
	"github.com/linknest/linknest-api/internal/registration"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/linknest/linknest-api/internal/shortener"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeDomainError maps domain sentinels onto HTTP statuses. Authorization
// failures stay generic so callers cannot probe for resource existence.
func writeDomainError(w http.ResponseWriter, err error) {
	var notValid *invitation.NotValidError

	switch {
	case errors.Is(err, authz.ErrUnauthorized),
		errors.Is(err, membership.ErrCannotRemoveOwner):
		http.Error(w, "not permitted", http.StatusForbidden)

	case errors.Is(err, sql.ErrNoRows),
		errors.Is(err, invitation.ErrInvalidToken),
		errors.Is(err, membership.ErrOrganizationNotFound),
		errors.Is(err, membership.ErrMembershipNotFound),
		errors.Is(err, registration.ErrUserNotFound),
		errors.Is(err, shortener.ErrNamespaceNotFound),
		errors.Is(err, shortener.ErrLinkNotFound),
		errors.Is(err, otp.ErrNoActiveOTP):
		http.Error(w, err.Error(), http.StatusNotFound)

	case errors.As(err, &notValid):
		http.Error(w, err.Error(), http.StatusGone)

	case errors.Is(err, otp.ErrExpired),
		errors.Is(err, otp.ErrMaxAttemptsExceeded),
		errors.Is(err, shortener.ErrLinkInactive):
		http.Error(w, err.Error(), http.StatusGone)

	case errors.Is(err, invitation.ErrDuplicateMember),
		errors.Is(err, invitation.ErrDuplicatePendingInvite),
		errors.Is(err, invitation.ErrAlreadyUsed),
		errors.Is(err, invitation.ErrInviteAlreadyResolved),
		errors.Is(err, membership.ErrAlreadyMember),
		errors.Is(err, registration.ErrEmailTaken),
		errors.Is(err, shortener.ErrDuplicateShortCode),
		errors.Is(err, shortener.ErrDuplicateNamespace),
		errors.Is(err, otp.ErrAlreadyUsed):
		http.Error(w, err.Error(), http.StatusConflict)

	case errors.Is(err, otp.ErrMalformedCode),
		errors.Is(err, otp.ErrInvalidCode),
		errors.Is(err, registration.ErrPasswordRequired),
		errors.Is(err, membership.ErrOwnerMustBeAdmin),
		errors.Is(err, shortener.ErrOriginalURLRequired):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)

	case errors.Is(err, repository.ErrInvalidCredentials),
		errors.Is(err, repository.ErrUserInactive):
		http.Error(w, err.Error(), http.StatusUnauthorized)

	case errors.Is(err, shortener.ErrCodeGeneration):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)

	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
