package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/accounts"
	adminapi "github.com/tendant/simple-account/pkg/admin/api"
	"github.com/tendant/simple-account/pkg/client"
	"github.com/tendant/simple-account/pkg/login"
	"github.com/tendant/simple-account/pkg/notification"
	"github.com/tendant/simple-account/pkg/role"
	"github.com/tendant/simple-account/pkg/sessions"
	tg "github.com/tendant/simple-account/pkg/tokengenerator"
)

const cookieName = "session_id"

type fixture struct {
	router         chi.Router
	sessionService *sessions.Service
	notifier       *notification.MockNotifier
	roleRepo       *role.InMemoryRepository
	generator      *tg.JwtTokenGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	loginRepo := login.NewInMemoryLoginRepository()
	roleRepo := role.NewInMemoryRepository()
	roleService := role.NewService(roleRepo)
	require.NoError(t, roleService.Seed(context.Background()))
	sessionService := sessions.NewService(sessions.NewInMemoryRepository())
	mock := &notification.MockNotifier{}
	manager := notification.NewManager("http://localhost:4000", mock)
	loginService := login.NewService(loginRepo, login.NewBcryptHasher(), roleService, sessionService, manager)

	generator := tg.NewJwtTokenGenerator("test-secret", "simple-account", "simple-account-api", time.Hour)
	handle := NewHandle(loginService, sessionService, generator, tg.NewCookieSetter(true, false), cookieName)

	accountService := accounts.NewService(accounts.NewInMemoryRepository(), login.NewBcryptHasher(), sessionService)
	adminHandle := adminapi.NewHandle(accountService, roleService)
	ja := jwtauth.New("HS256", []byte("test-secret"), nil)

	r := chi.NewRouter()
	r.Route("/auth", handle.Routes)
	r.Route("/admin", func(r chi.Router) {
		r.Use(client.Verifier(ja))
		r.Use(client.AuthUserMiddleware)
		r.Use(client.RequireRole(role.AdminRoleName))
		adminHandle.Routes(r)
	})
	return &fixture{
		router:         r,
		sessionService: sessionService,
		notifier:       mock,
		roleRepo:       roleRepo,
		generator:      generator,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) doBearer(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) register(t *testing.T, username, email, password string) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": username,
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "secret123")

	w := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, "alice", resp.Account.Username)
	assert.Equal(t, []string{"User"}, resp.Account.Roles)

	cookie := sessionCookie(t, w)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)
}

func TestRegisterWithoutEmail(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "bob",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// The account is usable without an email on file
	w = f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "bob",
		"password": "secret123",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterBounds(t *testing.T) {
	f := newFixture(t)

	longName := strings.Repeat("a", 60)
	f.register(t, longName, "long@example.com", "secret123")

	// 6 characters is the password floor
	w := f.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "carol",
		"password": "sixsix",
	})
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": strings.Repeat("b", 256),
		"password": "secret123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "al",
		"email":    "not-an-email",
		"password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "secret123")

	w := f.do(t, http.MethodPost, "/auth/register", map[string]string{
		"username": "alice",
		"email":    "else@example.com",
		"password": "secret456",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginBadCredentials(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "secret123")

	wrong := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	unknown := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "nobody",
		"password": "wrong",
	})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	// Same body for both, no account-existence signal
	assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "secret123")

	w := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "secret123",
	})
	cookie := sessionCookie(t, w)

	w = f.do(t, http.MethodPost, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)

	// Session is gone afterwards
	_, err := f.sessionService.GetValid(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, sessions.ErrSessionExpired)

	// And the same cookie no longer authenticates
	w = f.do(t, http.MethodPost, "/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoleChangeAppliesOnNextLogin(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "secret123")

	w := f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, []string{"User"}, first.Account.Roles)

	// Grant Admin through the admin API
	f.roleRepo.AddAccount(first.Account.ID)
	adminToken, _, err := f.generator.GenerateToken("99", "root", []string{"Admin"})
	require.NoError(t, err)
	w = f.doBearer(t, http.MethodPost, "/admin/assign-role", adminToken, map[string]any{
		"user_id":   first.Account.ID,
		"role_name": "Admin",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The earlier bearer still carries only the roles it was minted with
	w = f.doBearer(t, http.MethodGet, "/admin/roles", first.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// A fresh login picks up the grant
	w = f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var second LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.ElementsMatch(t, []string{"Admin", "User"}, second.Account.Roles)

	w = f.doBearer(t, http.MethodGet, "/admin/roles", second.AccessToken, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestForgotPasswordIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "secret123")

	known := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{
		"email": "alice@example.com",
	})
	unknown := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{
		"email": "nobody@example.com",
	})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.JSONEq(t, known.Body.String(), unknown.Body.String())
	// Only the registered address got a mail
	assert.Len(t, f.notifier.SentNotifications, 1)
}

func TestResetPasswordConfirmFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "secret123")

	w := f.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusOK, w.Code)

	link := f.notifier.SentNotifications[0].Data["Link"]
	u, err := url.Parse(link)
	require.NoError(t, err)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)

	w = f.do(t, http.MethodPost, "/auth/reset-password-confirm", map[string]string{
		"email":        "alice@example.com",
		"token":        token,
		"new_password": "brand-new-pass",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Redeeming again is a conflict
	w = f.do(t, http.MethodPost, "/auth/reset-password-confirm", map[string]string{
		"email":        "alice@example.com",
		"token":        token,
		"new_password": "yet-another-pass",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// New password works
	w = f.do(t, http.MethodPost, "/auth/login", map[string]string{
		"username": "alice",
		"password": "brand-new-pass",
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAccessDenied(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodGet, "/auth/accessdenied", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
