package client

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/jwtauth/v5"
)

// AuthUser is the authenticated caller attached to the request context
// by the auth middlewares.
type AuthUser struct {
	AccountID int64    `json:"account_id,omitempty"`
	Username  string   `json:"username,omitempty"`
	Roles     []string `json:"roles,omitempty"`

	// SessionID is set only when the request authenticated with a
	// cookie session.
	SessionID string `json:"-"`
}

func (u AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("accountId", u.AccountID),
		slog.String("username", u.Username),
	)
}

// HasRole reports whether the user holds the named role.
func (u AuthUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "simple-account context value " + k.name
}

var AuthUserKey = &contextKey{"AuthUser"}

// GetAuthUser returns the authenticated user from the request context.
func GetAuthUser(r *http.Request) (*AuthUser, bool) {
	user, ok := r.Context().Value(AuthUserKey).(*AuthUser)
	return user, ok
}

// WithAuthUser attaches the user to the context; exported for handler
// tests.
func WithAuthUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, user)
}

// Verifier verifies a bearer token from the Authorization header and
// stores the parse result in the context for AuthUserMiddleware.
func Verifier(ja *jwtauth.JWTAuth) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return jwtauth.Verify(ja, jwtauth.TokenFromHeader)(next)
	}
}

// AuthUserMiddleware turns verified bearer claims into an AuthUser.
// Must run after Verifier. Requests without a valid token get 401.
func AuthUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil || token == nil {
			unauthorized(w, "missing or invalid bearer token")
			return
		}

		subject, _ := claims["sub"].(string)
		accountID, err := strconv.ParseInt(subject, 10, 64)
		if err != nil {
			slog.Warn("Bearer token subject is not an account ID", "sub", subject)
			unauthorized(w, "invalid token subject")
			return
		}

		authUser := &AuthUser{AccountID: accountID}
		if username, ok := claims["username"].(string); ok {
			authUser.Username = username
		}
		if rawRoles, ok := claims["roles"].([]interface{}); ok {
			for _, raw := range rawRoles {
				if role, ok := raw.(string); ok {
					authUser.Roles = append(authUser.Roles, role)
				}
			}
		}

		ctx := WithAuthUser(r.Context(), authUser)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
