package client

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-account/pkg/sessions"
)

// SessionAuthMiddleware authenticates requests with a cookie session.
// The session expiry slides on every authenticated request. Requests
// without a live session get 401.
func SessionAuthMiddleware(sessionService *sessions.Service, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w, "missing session cookie")
				return
			}

			session, err := sessionService.GetValid(r.Context(), cookie.Value)
			if err != nil {
				unauthorized(w, "session expired or invalid")
				return
			}

			authUser := &AuthUser{
				AccountID: session.AccountID,
				SessionID: session.ID,
			}
			ctx := WithAuthUser(r.Context(), authUser)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole checks that the authenticated user holds any of the
// given roles. 401 when unauthenticated, 403 when the role is missing.
// Must run after AuthUserMiddleware.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetAuthUser(r)
			if !ok {
				unauthorized(w, "authentication required")
				return
			}

			for _, role := range roles {
				if user.HasRole(role) {
					next.ServeHTTP(w, r)
					return
				}
			}

			slog.Warn("User lacks required role",
				"accountId", user.AccountID,
				"userRoles", user.Roles,
				"requiredRoles", roles)
			render.Status(r, http.StatusForbidden)
			render.JSON(w, r, map[string]string{"error": "insufficient permissions"})
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `"}`))
}
