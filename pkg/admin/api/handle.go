package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-account/pkg/accounts"
	"github.com/tendant/simple-account/pkg/role"
)

type Handle struct {
	accountService *accounts.Service
	roleService    *role.Service
	validate       *validator.Validate
}

func NewHandle(accountService *accounts.Service, roleService *role.Service) Handle {
	return Handle{
		accountService: accountService,
		roleService:    roleService,
		validate:       validator.New(),
	}
}

func (h Handle) Routes(r chi.Router) {
	r.Get("/users-with-roles", h.ListAccountsWithRoles)
	r.Post("/assign-role", h.AssignRole)
	r.Post("/remove-role", h.RemoveRole)
	r.Get("/roles", h.ListRoles)
	r.Post("/disable-user/{id}", h.DisableAccount)
	r.Post("/enable-user/{id}", h.EnableAccount)
	r.Put("/update-user", h.UpdateAccount)
}

type AccountWithRolesResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	Roles     []string  `json:"roles"`
}

// ListAccountsWithRoles returns every account with its role names
// (GET /admin/users-with-roles)
func (h Handle) ListAccountsWithRoles(w http.ResponseWriter, r *http.Request) {
	list, err := h.accountService.FindAccountsWithRoles(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}

	out := make([]AccountWithRolesResponse, 0, len(list))
	for _, account := range list {
		roles := account.Roles
		if roles == nil {
			roles = []string{}
		}
		out = append(out, AccountWithRolesResponse{
			ID:        account.ID,
			Username:  account.Username,
			Email:     account.Email,
			IsActive:  account.IsActive,
			CreatedAt: account.CreatedAt,
			Roles:     roles,
		})
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, out)
}

type RoleAssignmentRequest struct {
	UserID   int64  `json:"user_id" validate:"required"`
	RoleName string `json:"role_name" validate:"required"`
}

// AssignRole grants a role to an account
// (POST /admin/assign-role)
func (h Handle) AssignRole(w http.ResponseWriter, r *http.Request) {
	var data RoleAssignmentRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		badRequest(w, r, validationMessage(err))
		return
	}

	if err := h.roleService.AssignRole(r.Context(), data.UserID, data.RoleName); err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"message": "role assigned"})
}

// RemoveRole revokes a role from an account
// (POST /admin/remove-role)
func (h Handle) RemoveRole(w http.ResponseWriter, r *http.Request) {
	var data RoleAssignmentRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		badRequest(w, r, validationMessage(err))
		return
	}

	if err := h.roleService.UnassignRole(r.Context(), data.UserID, data.RoleName); err != nil {
		renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"message": "role removed"})
}

type RoleResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ListRoles returns the role catalog
// (GET /admin/roles)
func (h Handle) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roleService.FindRoles(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}

	out := make([]RoleResponse, 0, len(roles))
	for _, item := range roles {
		out = append(out, RoleResponse{ID: item.ID, Name: item.Name})
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, out)
}

// DisableAccount blocks the account from logging in and revokes its
// open sessions
// (POST /admin/disable-user/{id})
func (h Handle) DisableAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// EnableAccount restores login for a disabled account
// (POST /admin/enable-user/{id})
func (h Handle) EnableAccount(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h Handle) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, r, "invalid account id")
		return
	}

	if err := h.accountService.SetActive(r.Context(), id, active); err != nil {
		renderError(w, r, err)
		return
	}

	message := "account disabled"
	if active {
		message = "account enabled"
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"message": message})
}

type UpdateAccountRequest struct {
	UserID   int64   `json:"user_id" validate:"required"`
	Username *string `json:"username" validate:"omitempty,min=3,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	IsActive *bool   `json:"is_active"`
}

// UpdateAccount applies an admin edit to any account
// (PUT /admin/update-user)
func (h Handle) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	var data UpdateAccountRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		badRequest(w, r, validationMessage(err))
		return
	}

	account, err := h.accountService.AdminUpdate(r.Context(), data.UserID, accounts.UpdateParams{
		Username: data.Username,
		Email:    data.Email,
		IsActive: data.IsActive,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, AccountResponse{
		ID:        account.ID,
		Username:  account.Username,
		Email:     account.Email,
		IsActive:  account.IsActive,
		CreatedAt: account.CreatedAt,
	})
}

type AccountResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
