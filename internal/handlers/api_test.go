package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linknest/linknest-api/internal/authz"
	"github.com/linknest/linknest-api/internal/handlers"
	"github.com/linknest/linknest-api/internal/invitation"
	"github.com/linknest/linknest-api/internal/membership"
	"github.com/linknest/linknest-api/internal/notification"
	"github.com/linknest/linknest-api/internal/otp"
	"github.com/linknest/linknest-api/internal/registration"
	"github.com/linknest/linknest-api/internal/repository/memory"
	"github.com/linknest/linknest-api/internal/routes"
	"github.com/linknest/linknest-api/internal/shortener"
	"github.com/linknest/linknest-api/internal/token"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMailer struct{}

func (nopMailer) Send(to, subject, body string) error { return nil }

type api struct {
	router http.Handler
	store  *memory.Store
}

func newAPI(t *testing.T) *api {
	t.Helper()
	store := memory.NewStore()
	logger := zerolog.Nop()

	ledger := membership.NewLedger(store, store, logger)
	evaluator := authz.NewEvaluator(store, store, store, store)
	notifier := notification.NewService(nopMailer{}, "", logger)
	issuer := token.NewJWTIssuer("test-secret")
	otpService := otp.NewService(store, logger)
	inviteService := invitation.NewService(store, store, store, store, evaluator, notifier, logger)
	registrationService := registration.NewService(store, ledger, inviteService, otpService, notifier, issuer, logger)
	shortenerService, err := shortener.NewService(store, store, evaluator, logger)
	require.NoError(t, err)

	authHandler := handlers.NewAuthHandler(store, registrationService, issuer, otpService, "test-secret", logger)
	otpHandler := handlers.NewOTPHandler(registrationService, otpService, logger)
	inviteHandler := handlers.NewInviteHandler(inviteService, registrationService, logger)
	orgHandler := handlers.NewOrganizationHandler(ledger, store, store, evaluator, logger)
	linkHandler := handlers.NewLinkHandler(shortenerService, logger)

	return &api{
		router: routes.NewRouter(authHandler, otpHandler, inviteHandler, orgHandler, linkHandler),
		store:  store,
	}
}

func (a *api) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

// registerAndVerify walks a user through registration and email verification
// and returns their access token.
func (a *api) registerAndVerify(t *testing.T, email string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email":      email,
		"password":   "secret",
		"first_name": "Test",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	user, err := a.store.GetUserByEmail(email)
	require.NoError(t, err)

	rec = a.do(t, http.MethodPost, "/api/otp/verify", "", map[string]string{
		"email": email,
		"code":  a.store.ActiveCode(user.ID),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	tokens := decode(t, rec)["tokens"].(map[string]interface{})
	return tokens["access"].(string)
}

func TestHealthCheck(t *testing.T) {
	a := newAPI(t)
	rec := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestRegisterVerifyLogin(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodPost, "/api/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Login is rejected while the account is inactive.
	rec = a.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	user, err := a.store.GetUserByEmail("alice@example.com")
	require.NoError(t, err)

	// Wrong code is a 422; the account stays inactive.
	rec = a.do(t, http.MethodPost, "/api/otp/verify", "", map[string]string{
		"email": "alice@example.com",
		"code":  "bad",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/otp/verify", "", map[string]string{
		"email": "alice@example.com",
		"code":  a.store.ActiveCode(user.ID),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProfileRequiresAuth(t *testing.T) {
	a := newAPI(t)

	rec := a.do(t, http.MethodGet, "/api/profile", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	access := a.registerAndVerify(t, "alice@example.com")
	rec = a.do(t, http.MethodGet, "/api/profile", access, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", decode(t, rec)["email"])
}

func TestRefreshTokenIsNotAnAccessToken(t *testing.T) {
	a := newAPI(t)
	a.registerAndVerify(t, "alice@example.com")

	rec := a.do(t, http.MethodPost, "/api/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	tokens := decode(t, rec)["tokens"].(map[string]interface{})
	refresh := tokens["refresh"].(string)

	// The refresh token cannot be used as a bearer token.
	rec = a.do(t, http.MethodGet, "/api/profile", refresh, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// But it exchanges for a fresh pair.
	rec = a.do(t, http.MethodPost, "/api/token/refresh", "", map[string]string{"refresh": refresh})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInviteOverHTTP(t *testing.T) {
	a := newAPI(t)
	access := a.registerAndVerify(t, "alice@example.com")

	rec := a.do(t, http.MethodGet, "/api/organizations", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orgs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orgs))
	require.Len(t, orgs, 1)
	orgID := orgs[0]["id"].(string)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/organizations/%s/invites", orgID), access, map[string]string{
		"email": "bob@example.com",
		"role":  "editor",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inviteToken := decode(t, rec)["token"].(string)

	// A guest hitting accept gets the invite context with a 401.
	rec = a.do(t, http.MethodPost, "/api/invites/"+inviteToken+"/accept", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	preview := decode(t, rec)
	assert.Equal(t, "bob@example.com", preview["email"])
	assert.Equal(t, false, preview["user_exists"])

	// Bob registers against the token and completes in one step.
	rec = a.do(t, http.MethodPost, "/api/invites/"+inviteToken+"/register", "", map[string]string{
		"password":   "hunter2",
		"first_name": "Bob",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	bob, err := a.store.GetUserByEmail("bob@example.com")
	require.NoError(t, err)
	rec = a.do(t, http.MethodPost, "/api/invites/"+inviteToken+"/complete", "", map[string]string{
		"code": a.store.ActiveCode(bob.ID),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Bob now appears among the members.
	rec = a.do(t, http.MethodGet, fmt.Sprintf("/api/organizations/%s/members", orgID), access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var members []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	assert.Len(t, members, 2)

	// Replaying the completion is gone.
	rec = a.do(t, http.MethodPost, "/api/invites/"+inviteToken+"/complete", "", map[string]string{
		"code": "123456",
	})
	assert.Equal(t, http.StatusGone, rec.Code)
}

func TestRedirect(t *testing.T) {
	a := newAPI(t)
	access := a.registerAndVerify(t, "alice@example.com")

	rec := a.do(t, http.MethodGet, "/api/organizations", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var orgs []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orgs))
	orgID := orgs[0]["id"].(string)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/organizations/%s/namespaces", orgID), access, map[string]string{
		"name": "acme",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	nsID := decode(t, rec)["id"].(string)

	rec = a.do(t, http.MethodPost, fmt.Sprintf("/api/namespaces/%s/links", nsID), access, map[string]string{
		"original_url": "https://example.com/launch",
		"short_code":   "launch",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	linkID := decode(t, rec)["id"].(string)

	rec = a.do(t, http.MethodGet, "/acme/launch", "", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/launch", rec.Header().Get("Location"))

	link, err := a.store.GetShortURLByID(linkID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, link.ClickCount)

	rec = a.do(t, http.MethodGet, "/acme/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
