package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/otp"
	"github.com/linknest/linknest-api/internal/registration"
	"github.com/linknest/linknest-api/internal/repository"
	"github.com/linknest/linknest-api/internal/token"
	"github.com/rs/zerolog"
)

type AuthHandler struct {
	userRepo     repository.UserRepository
	registration *registration.Service
	issuer       *token.JWTIssuer
	otps         *otp.Service
	jwtSecret    string
	logger       zerolog.Logger
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewAuthHandler(
	userRepo repository.UserRepository,
	registrationService *registration.Service,
	issuer *token.JWTIssuer,
	otps *otp.Service,
	jwtSecret string,
	logger zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userRepo:     userRepo,
		registration: registrationService,
		issuer:       issuer,
		otps:         otps,
		jwtSecret:    jwtSecret,
		logger:       logger,
	}
}

// Register creates an inactive account and emails a verification code.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		http.Error(w, "email is required", http.StatusBadRequest)
		return
	}

	result, err := h.registration.Register(req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":        "Registration successful! Please check your email for verification code.",
		"user":           result.User,
		"otp_expires_at": result.OTP.ExpiresAt,
		"time_remaining": h.otps.TimeRemaining(result.OTP),
		"email_sent":     result.EmailSent,
	})
}

// VerifyEmail activates the account on a successful OTP verification.
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	result, err := h.registration.VerifyEmail(req.Email, req.Code)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Email verified successfully! Your account is now active.",
		"user":    result.User,
		"tokens":  result.Tokens,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	user, err := h.userRepo.AuthenticateUser(req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tokens, err := h.issuer.Issue(user)
	if err != nil {
		http.Error(w, "failed to generate tokens", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":   user,
		"tokens": tokens,
	})
}

// Refresh exchanges a valid refresh token for a new pair.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}

	userID, err := h.issuer.ParseRefresh(req.Refresh)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !user.IsActive {
		http.Error(w, "user is inactive", http.StatusUnauthorized)
		return
	}

	tokens, err := h.issuer.Issue(user)
	if err != nil {
		http.Error(w, "failed to generate tokens", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tokens": tokens})
}

// Profile returns the authenticated user.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	user, err := h.userRepo.GetUserByID(userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// JWTMiddleware authenticates requests and stores the identity on the context.
func (h *AuthHandler) JWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization format", http.StatusUnauthorized)
			return
		}

		tokenString := parts[1]
		parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !parsed.Valid {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
			http.Error(w, "Token expired", http.StatusUnauthorized)
			return
		}
		if typ, _ := claims["typ"].(string); typ == "refresh" {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		userID, _ := claims["sub"].(string)
		if userID == "" {
			http.Error(w, "Missing token claim", http.StatusUnauthorized)
			return
		}
		email, _ := claims["email"].(string)

		ctx := authz.WithIdentity(r.Context(), userID, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalJWTMiddleware attaches the identity when a valid bearer token is
// present but lets the request through either way. Used on the invite accept
// route, where guests get the invite context instead of a bare rejection.
func (h *AuthHandler) OptionalJWTMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			next.ServeHTTP(w, r)
			return
		}

		parsed, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(h.jwtSecret), nil
		})
		if err != nil || !parsed.Valid {
			next.ServeHTTP(w, r)
			return
		}

		claims, ok := parsed.Claims.(jwt.MapClaims)
		if !ok || !claims.VerifyExpiresAt(time.Now().Unix(), true) {
			next.ServeHTTP(w, r)
			return
		}
		if typ, _ := claims["typ"].(string); typ == "refresh" {
			next.ServeHTTP(w, r)
			return
		}

		userID, _ := claims["sub"].(string)
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		email, _ := claims["email"].(string)

		ctx := authz.WithIdentity(r.Context(), userID, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
