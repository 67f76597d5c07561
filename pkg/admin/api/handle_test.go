package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/accounts"
	"github.com/tendant/simple-account/pkg/client"
	"github.com/tendant/simple-account/pkg/login"
	"github.com/tendant/simple-account/pkg/role"
	"github.com/tendant/simple-account/pkg/sessions"
	tg "github.com/tendant/simple-account/pkg/tokengenerator"
)

const testSecret = "test-secret"

type fixture struct {
	router      chi.Router
	accountRepo *accounts.InMemoryRepository
	roleRepo    *role.InMemoryRepository
	roleService *role.Service
	generator   *tg.JwtTokenGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	accountRepo := accounts.NewInMemoryRepository()
	sessionService := sessions.NewService(sessions.NewInMemoryRepository())
	accountService := accounts.NewService(accountRepo, login.NewBcryptHasher(), sessionService)
	roleRepo := role.NewInMemoryRepository()
	roleService := role.NewService(roleRepo)
	require.NoError(t, roleService.Seed(context.Background()))

	handle := NewHandle(accountService, roleService)

	ja := jwtauth.New("HS256", []byte(testSecret), nil)
	r := chi.NewRouter()
	r.Route("/admin", func(r chi.Router) {
		r.Use(client.Verifier(ja))
		r.Use(client.AuthUserMiddleware)
		r.Use(client.RequireRole(role.AdminRoleName))
		handle.Routes(r)
	})

	return &fixture{
		router:      r,
		accountRepo: accountRepo,
		roleRepo:    roleRepo,
		roleService: roleService,
		generator:   tg.NewJwtTokenGenerator(testSecret, "simple-account", "simple-account-api", time.Hour),
	}
}

func (f *fixture) seedAccount(t *testing.T, id int64, username string) {
	t.Helper()
	hash, err := login.NewBcryptHasher().Hash("secret123")
	require.NoError(t, err)
	f.accountRepo.AddAccount(accounts.Account{
		ID:           id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	})
	f.roleRepo.AddAccount(id)
}

func (f *fixture) bearer(t *testing.T, accountID int64, username string, roles []string) string {
	t.Helper()
	token, _, err := f.generator.GenerateToken(strconv.FormatInt(accountID, 10), username, roles)
	require.NoError(t, err)
	return "Bearer " + token
}

func (f *fixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "bob")

	w := f.do(t, http.MethodGet, "/admin/roles", f.bearer(t, 1, "bob", []string{"User"}), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodGet, "/admin/roles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListRoles(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "root")

	w := f.do(t, http.MethodGet, "/admin/roles", f.bearer(t, 1, "root", []string{"Admin"}), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var roles []RoleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roles))
	require.Len(t, roles, 2)
	assert.Equal(t, "Admin", roles[0].Name)
	assert.Equal(t, "User", roles[1].Name)
}

func TestAssignAndRemoveRole(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "root")
	f.seedAccount(t, 2, "bob")
	admin := f.bearer(t, 1, "root", []string{"Admin"})

	w := f.do(t, http.MethodPost, "/admin/assign-role", admin, map[string]any{
		"user_id":   2,
		"role_name": "Admin",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Assigning a held role is a conflict
	w = f.do(t, http.MethodPost, "/admin/assign-role", admin, map[string]any{
		"user_id":   2,
		"role_name": "Admin",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, "/admin/remove-role", admin, map[string]any{
		"user_id":   2,
		"role_name": "Admin",
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Removing an unheld role is a 404
	w = f.do(t, http.MethodPost, "/admin/remove-role", admin, map[string]any{
		"user_id":   2,
		"role_name": "Admin",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignRoleUnknownTargets(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "root")
	admin := f.bearer(t, 1, "root", []string{"Admin"})

	w := f.do(t, http.MethodPost, "/admin/assign-role", admin, map[string]any{
		"user_id":   42,
		"role_name": "User",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/admin/assign-role", admin, map[string]any{
		"user_id":   1,
		"role_name": "Superuser",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAccountsWithRoles(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "root")
	f.seedAccount(t, 2, "bob")
	f.accountRepo.SetRoles(1, []string{"Admin"})
	f.accountRepo.SetRoles(2, []string{"User"})

	w := f.do(t, http.MethodGet, "/admin/users-with-roles", f.bearer(t, 1, "root", []string{"Admin"}), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp []AccountWithRolesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, []string{"Admin"}, resp[0].Roles)
	assert.Equal(t, []string{"User"}, resp[1].Roles)
}

func TestDisableAndEnableAccount(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "root")
	f.seedAccount(t, 2, "bob")
	admin := f.bearer(t, 1, "root", []string{"Admin"})

	w := f.do(t, http.MethodPost, "/admin/disable-user/2", admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	account, err := f.accountRepo.FindByID(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, account.IsActive)

	w = f.do(t, http.MethodPost, "/admin/enable-user/2", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	account, err = f.accountRepo.FindByID(context.Background(), 2)
	require.NoError(t, err)
	assert.True(t, account.IsActive)

	w = f.do(t, http.MethodPost, "/admin/disable-user/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminUpdateUser(t *testing.T) {
	f := newFixture(t)
	f.seedAccount(t, 1, "root")
	f.seedAccount(t, 2, "bob")
	admin := f.bearer(t, 1, "root", []string{"Admin"})

	w := f.do(t, http.MethodPut, "/admin/update-user", admin, map[string]any{
		"user_id":   2,
		"username":  "robert",
		"is_active": false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AccountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "robert", resp.Username)
	assert.False(t, resp.IsActive)
}
