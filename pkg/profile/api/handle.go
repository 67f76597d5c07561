package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/tendant/simple-account/pkg/accounts"
	"github.com/tendant/simple-account/pkg/client"
	tg "github.com/tendant/simple-account/pkg/tokengenerator"
)

type Handle struct {
	accountService *accounts.Service
	cookieSetter   tg.CookieSetter
	cookieName     string
	validate       *validator.Validate
}

func NewHandle(accountService *accounts.Service, cookieSetter tg.CookieSetter, cookieName string) Handle {
	return Handle{
		accountService: accountService,
		cookieSetter:   cookieSetter,
		cookieName:     cookieName,
		validate:       validator.New(),
	}
}

// MeRoutes registers the cookie-session profile endpoints under /me.
func (h Handle) MeRoutes(r chi.Router) {
	r.Get("/me", h.GetMe)
	r.Put("/me", h.UpdateMe)
	r.Post("/me/change-password", h.ChangePassword)
	r.Delete("/me", h.DeleteMe)
}

// QueryRoutes registers the bearer-token account lookup endpoints.
func (h Handle) QueryRoutes(r chi.Router) {
	r.Get("/", h.ListAccounts)
	r.Get("/{id}", h.GetAccount)
}

type AccountResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toAccountResponse(account accounts.Account) AccountResponse {
	return AccountResponse{
		ID:        account.ID,
		Username:  account.Username,
		Email:     account.Email,
		IsActive:  account.IsActive,
		CreatedAt: account.CreatedAt,
	}
}

// GetMe returns the caller's own account
// (GET /users/me)
func (h Handle) GetMe(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), authUser.AccountID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toAccountResponse(account))
}

type UpdateMeRequest struct {
	Username string `json:"username" validate:"omitempty,min=3,max=255"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
}

// UpdateMe changes the caller's username or email. A request that
// changes nothing still succeeds.
// (PUT /users/me)
func (h Handle) UpdateMe(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	var data UpdateMeRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		badRequest(w, r, validationMessage(err))
		return
	}

	account, changed, err := h.accountService.UpdateProfile(r.Context(), authUser.AccountID, data.Username, data.Email)
	if err != nil {
		renderError(w, r, err)
		return
	}

	if !changed {
		render.Status(r, http.StatusOK)
		render.JSON(w, r, map[string]string{"message": "nothing updated"})
		return
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, toAccountResponse(account))
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=255"`
}

// ChangePassword verifies the current password, sets the new one and
// signs all of the caller's sessions out
// (POST /users/me/change-password)
func (h Handle) ChangePassword(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	var data ChangePasswordRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		badRequest(w, r, validationMessage(err))
		return
	}

	if err := h.accountService.ChangePassword(r.Context(), authUser.AccountID, data.CurrentPassword, data.NewPassword); err != nil {
		renderError(w, r, err)
		return
	}
	_ = h.cookieSetter.ClearCookie(w, h.cookieName)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"message": "password updated"})
}

// DeleteMe removes the caller's account and signs the session out
// (DELETE /users/me)
func (h Handle) DeleteMe(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	if err := h.accountService.DeleteAccount(r.Context(), authUser.AccountID); err != nil {
		renderError(w, r, err)
		return
	}
	_ = h.cookieSetter.ClearCookie(w, h.cookieName)

	w.WriteHeader(http.StatusNoContent)
}

// GetAccount returns a single account by ID
// (GET /users/{id})
func (h Handle) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		badRequest(w, r, "invalid account id")
		return
	}

	account, err := h.accountService.GetAccount(r.Context(), id)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, toAccountResponse(account))
}

// ListAccounts returns all accounts. An empty store is a 404, matching
// the behavior clients already depend on.
// (GET /users)
func (h Handle) ListAccounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.accountService.FindAccounts(r.Context())
	if err != nil {
		renderError(w, r, err)
		return
	}

	out := make([]AccountResponse, 0, len(list))
	for _, account := range list {
		out = append(out, toAccountResponse(account))
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, out)
}
