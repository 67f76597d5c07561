package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"log/slog"

	"github.com/tendant/simple-account/pkg/client"
	apperrors "github.com/tendant/simple-account/pkg/errors"
	"github.com/tendant/simple-account/pkg/login"
	"github.com/tendant/simple-account/pkg/sessions"
	tg "github.com/tendant/simple-account/pkg/tokengenerator"
)

type Handle struct {
	loginService   *login.Service
	sessionService *sessions.Service
	tokenGenerator tg.TokenGenerator
	cookieSetter   tg.CookieSetter
	cookieName     string
	validate       *validator.Validate
}

func NewHandle(loginService *login.Service, sessionService *sessions.Service, tokenGenerator tg.TokenGenerator, cookieSetter tg.CookieSetter, cookieName string) Handle {
	return Handle{
		loginService:   loginService,
		sessionService: sessionService,
		tokenGenerator: tokenGenerator,
		cookieSetter:   cookieSetter,
		cookieName:     cookieName,
		validate:       validator.New(),
	}
}

func (h Handle) Routes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Post("/reset-password-confirm", h.ResetPasswordConfirm)
	r.Get("/accessdenied", h.AccessDenied)

	r.Group(func(r chi.Router) {
		r.Use(client.SessionAuthMiddleware(h.sessionService, h.cookieName))
		r.Post("/logout", h.Logout)
	})
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=255"`
	Email    string `json:"email" validate:"omitempty,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=255"`
}

type RegisterResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Register creates a new account with the default role
// (POST /auth/register)
func (h Handle) Register(w http.ResponseWriter, r *http.Request) {
	var data RegisterRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		badRequest(w, r, validationMessage(err))
		return
	}

	accountID, err := h.loginService.Register(r.Context(), login.RegisterParams{
		Username: data.Username,
		Password: data.Password,
		Email:    data.Email,
	})
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RegisterResponse{ID: accountID, Username: data.Username})
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   int64          `json:"expires_at"`
	Account     AccountSummary `json:"account"`
}

type AccountSummary struct {
	ID       int64    `json:"id"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Login authenticates a username/password pair and issues both a
// bearer token and a cookie session
// (POST /auth/login)
func (h Handle) Login(w http.ResponseWriter, r *http.Request) {
	var data LoginRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		badRequest(w, r, validationMessage(err))
		return
	}

	identity, err := h.loginService.Login(r.Context(), data.Username, data.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}

	subject := strconv.FormatInt(identity.AccountID, 10)
	token, expiresAt, err := h.tokenGenerator.GenerateToken(subject, identity.Username, identity.Roles)
	if err != nil {
		slog.Error("Failed to generate access token", "err", err)
		internalError(w, r)
		return
	}

	session, err := h.sessionService.Create(r.Context(), identity.AccountID)
	if err != nil {
		slog.Error("Failed to create session", "err", err)
		internalError(w, r)
		return
	}
	if err := h.cookieSetter.SetCookie(w, h.cookieName, session.ID, session.ExpiresAt); err != nil {
		slog.Error("Failed to set session cookie", "err", err)
		internalError(w, r)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.Unix(),
		Account: AccountSummary{
			ID:       identity.AccountID,
			Username: identity.Username,
			Roles:    identity.Roles,
		},
	})
}

// Logout revokes the cookie session and clears the cookie
// (POST /auth/logout)
func (h Handle) Logout(w http.ResponseWriter, r *http.Request) {
	authUser, ok := client.GetAuthUser(r)
	if !ok {
		unauthorized(w, r)
		return
	}

	if err := h.sessionService.Revoke(r.Context(), authUser.SessionID); err != nil {
		slog.Error("Failed to revoke session", "sessionId", authUser.SessionID, "err", err)
	}
	_ = h.cookieSetter.ClearCookie(w, h.cookieName)

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"message": "signed out"})
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPassword starts the reset flow. The response does not reveal
// whether the email is registered.
// (POST /auth/forgot-password)
func (h Handle) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var data ForgotPasswordRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		badRequest(w, r, validationMessage(err))
		return
	}

	if err := h.loginService.InitPasswordReset(r.Context(), data.Email); err != nil {
		// Keep the response generic either way
		slog.Error("Failed to init password reset", "code", apperrors.GetCode(err), "err", err)
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{
		"message": "If the email is registered, a password reset link has been sent.",
	})
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6,max=255"`
}

// ResetPasswordConfirm redeems a reset token and sets the new password
// (POST /auth/reset-password-confirm)
func (h Handle) ResetPasswordConfirm(w http.ResponseWriter, r *http.Request) {
	var data ResetPasswordRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		badRequest(w, r, "invalid request body")
		return
	}
	if err := h.validate.Struct(data); err != nil {
		badRequest(w, r, validationMessage(err))
		return
	}

	if err := h.loginService.ConfirmPasswordReset(r.Context(), data.Email, data.Token, data.NewPassword); err != nil {
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]string{"message": "password has been reset"})
}

// AccessDenied is the landing endpoint for rejected requests
// (GET /auth/accessdenied)
func (h Handle) AccessDenied(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusForbidden)
	render.JSON(w, r, map[string]string{"error": "access denied"})
}
