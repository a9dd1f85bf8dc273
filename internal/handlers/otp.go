package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/linknest/linknest-api/internal/otp"
	"github.com/linknest/linknest-api/internal/registration"
	"github.com/rs/zerolog"
)

type OTPHandler struct {
	registration *registration.Service
	otps         *otp.Service
	logger       zerolog.Logger
}

func NewOTPHandler(registrationService *registration.Service, otps *otp.Service, logger zerolog.Logger) *OTPHandler {
	return &OTPHandler{
		registration: registrationService,
		otps:         otps,
		logger:       logger,
	}
}

// Resend issues a fresh verification code for an unverified account.
func (h *OTPHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	result, err := h.registration.ResendOTP(req.Email)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":        "New OTP sent successfully to your email address.",
		"email":          result.User.Email,
		"expires_at":     result.OTP.ExpiresAt,
		"time_remaining": h.otps.TimeRemaining(result.OTP),
		"email_sent":     result.EmailSent,
	})
}

// Status reports the active code's remaining time and attempts for display.
func (h *OTPHandler) Status(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		http.Error(w, "email parameter is required", http.StatusBadRequest)
		return
	}

	status, err := h.registration.OTPStatus(email)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}
