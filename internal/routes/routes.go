package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/linknest/linknest-api/internal/handlers"
)

// NewRouter sets up the API routes
func NewRouter(
	auth *handlers.AuthHandler,
	otp *handlers.OTPHandler,
	invite *handlers.InviteHandler,
	org *handlers.OrganizationHandler,
	link *handlers.LinkHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/register", auth.Register).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)
	router.HandleFunc("/api/token/refresh", auth.Refresh).Methods(http.MethodPost)

	// Email verification endpoints, reachable before the account is active
	router.HandleFunc("/api/otp/verify", auth.VerifyEmail).Methods(http.MethodPost)
	router.HandleFunc("/api/otp/resend", otp.Resend).Methods(http.MethodPost)
	router.HandleFunc("/api/otp/status", otp.Status).Methods(http.MethodGet)

	// Invite token endpoints. Accept attaches the identity when a bearer
	// token is present; guests get the invite context back instead.
	router.HandleFunc("/api/invites/{token}/preview", invite.Preview).Methods(http.MethodGet)
	router.Handle("/api/invites/{token}/accept", auth.OptionalJWTMiddleware(http.HandlerFunc(invite.Accept))).Methods(http.MethodPost)
	router.HandleFunc("/api/invites/{token}/decline", invite.Decline).Methods(http.MethodPost)
	router.HandleFunc("/api/invites/{token}/register", invite.RegisterFromInvite).Methods(http.MethodPost)
	router.HandleFunc("/api/invites/{token}/complete", invite.CompleteFromInvite).Methods(http.MethodPost)

	// Authenticated API
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	api.HandleFunc("/profile", auth.Profile).Methods(http.MethodGet)

	api.HandleFunc("/organizations", org.Create).Methods(http.MethodPost)
	api.HandleFunc("/organizations", org.List).Methods(http.MethodGet)
	api.HandleFunc("/organizations/{organizationID}/members", org.Members).Methods(http.MethodGet)
	api.HandleFunc("/organizations/{organizationID}/members", org.AddMember).Methods(http.MethodPost)
	api.HandleFunc("/organizations/{organizationID}/members/{userID}", org.SetRole).Methods(http.MethodPut)
	api.HandleFunc("/organizations/{organizationID}/members/{userID}", org.RemoveMember).Methods(http.MethodDelete)

	api.HandleFunc("/organizations/{organizationID}/invites", invite.Create).Methods(http.MethodPost)
	api.HandleFunc("/organizations/{organizationID}/invites", invite.List).Methods(http.MethodGet)
	api.HandleFunc("/invites/{inviteID}", invite.Revoke).Methods(http.MethodDelete)

	api.HandleFunc("/organizations/{organizationID}/namespaces", link.CreateNamespace).Methods(http.MethodPost)
	api.HandleFunc("/organizations/{organizationID}/namespaces", link.ListNamespaces).Methods(http.MethodGet)
	api.HandleFunc("/namespaces/{namespaceID}", link.DeleteNamespace).Methods(http.MethodDelete)
	api.HandleFunc("/namespaces/{namespaceID}/links", link.CreateShortURL).Methods(http.MethodPost)
	api.HandleFunc("/namespaces/{namespaceID}/links", link.ListShortURLs).Methods(http.MethodGet)
	api.HandleFunc("/links/{linkID}", link.UpdateShortURL).Methods(http.MethodPut)
	api.HandleFunc("/links/{linkID}", link.DeleteShortURL).Methods(http.MethodDelete)

	// Public redirect, registered last so API paths win.
	router.HandleFunc("/{namespace}/{code}", link.Redirect).Methods(http.MethodGet)

	return router
}
