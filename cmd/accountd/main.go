package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/tendant/simple-account/pkg/accounts"
	adminapi "github.com/tendant/simple-account/pkg/admin/api"
	"github.com/tendant/simple-account/pkg/client"
	"github.com/tendant/simple-account/pkg/config"
	"github.com/tendant/simple-account/pkg/login"
	loginapi "github.com/tendant/simple-account/pkg/login/api"
	"github.com/tendant/simple-account/pkg/notification"
	profileapi "github.com/tendant/simple-account/pkg/profile/api"
	"github.com/tendant/simple-account/pkg/role"
	"github.com/tendant/simple-account/pkg/sessions"
	"github.com/tendant/simple-account/pkg/tokengenerator"
)

type Config struct {
	App      config.AppConfig
	Database config.DatabaseConfig
	JWT      config.JWTConfig
	Session  config.SessionConfig
	Email    config.EmailConfig
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	// Load .env if present, real environment wins
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded configuration from .env file")
	}

	cfg := Config{}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		slog.Error("Failed to read configuration", "err", err)
		os.Exit(-1)
	}

	accessTokenExpiry, err := cfg.JWT.ParseAccessTokenExpiry()
	if err != nil {
		slog.Error("Invalid ACCESS_TOKEN_EXPIRY", "value", cfg.JWT.AccessTokenExpiry, "err", err)
		os.Exit(-1)
	}
	idleTimeout, err := cfg.Session.ParseIdleTimeout()
	if err != nil {
		slog.Error("Invalid SESSION_IDLE_TIMEOUT", "value", cfg.Session.IdleTimeout, "err", err)
		os.Exit(-1)
	}

	pool, err := pgxpool.New(context.Background(), cfg.Database.ToDatabaseURL())
	if err != nil {
		slog.Error("Failed creating dbpool", "db", cfg.Database.Database, "host", cfg.Database.Host, "port", cfg.Database.Port, "err", err)
		os.Exit(-1)
	}
	defer pool.Close()

	// Repositories
	loginRepo := login.NewPostgresLoginRepository(pool)
	roleRepo := role.NewPostgresRepository(pool)
	sessionRepo := sessions.NewPostgresRepository(pool)
	accountRepo := accounts.NewPostgresRepository(pool)

	// Services
	roleService := role.NewService(roleRepo)
	if err := roleService.Seed(context.Background()); err != nil {
		slog.Error("Failed to seed roles", "err", err)
		os.Exit(-1)
	}

	sessionService := sessions.NewService(sessionRepo, sessions.WithIdleTimeout(idleTimeout))

	emailNotifier, err := notification.NewEmailNotifier(cfg.Email.ToSMTPConfig())
	if err != nil {
		slog.Error("Failed to create email notifier", "err", err)
		os.Exit(-1)
	}
	notificationManager := notification.NewManager(cfg.App.BaseURL, emailNotifier)

	hasher := login.NewBcryptHasher()
	loginService := login.NewService(loginRepo, hasher, roleService, sessionService, notificationManager)
	accountService := accounts.NewService(accountRepo, hasher, sessionService)

	// Token plumbing for the dual bearer/cookie issuance
	generator := tokengenerator.NewJwtTokenGenerator(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, accessTokenExpiry)
	cookieSetter := &tokengenerator.BaseCookieSetter{
		Path:     "/",
		HttpOnly: cfg.JWT.CookieHttpOnly,
		Secure:   cfg.JWT.CookieSecure,
		SameSite: cfg.JWT.CookieSameSite(),
	}
	jwtAuth := jwtauth.New("HS256", []byte(cfg.JWT.Secret), nil,
		jwt.WithIssuer(cfg.JWT.Issuer),
		jwt.WithAudience(cfg.JWT.Audience),
	)

	loginHandle := loginapi.NewHandle(loginService, sessionService, generator, cookieSetter, cfg.Session.CookieName)
	profileHandle := profileapi.NewHandle(accountService, cookieSetter, cfg.Session.CookieName)
	adminHandle := adminapi.NewHandle(accountService, roleService)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(recoverer(cfg.App.Debug))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/auth", loginHandle.Routes)

	r.Route("/users", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(client.SessionAuthMiddleware(sessionService, cfg.Session.CookieName))
			profileHandle.MeRoutes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(client.Verifier(jwtAuth))
			r.Use(client.AuthUserMiddleware)
			profileHandle.QueryRoutes(r)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(client.Verifier(jwtAuth))
		r.Use(client.AuthUserMiddleware)
		r.Use(client.RequireRole(role.AdminRoleName))
		adminHandle.Routes(r)
	})

	addr := fmt.Sprintf("%s:%d", cfg.App.Host, cfg.App.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting server", "addr", addr)
	if err := server.ListenAndServe(); err != nil {
		slog.Error("Server stopped", "err", err)
		os.Exit(-1)
	}
}

// requestLogger logs one line per request with status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"requestId", middleware.GetReqID(r.Context()),
		)
	})
}

// recoverer converts panics into a JSON 500. Stack detail goes to the
// log always, and to the response only when debug is on.
func recoverer(debugMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					stack := debug.Stack()
					slog.Error("Panic recovered", "panic", rec, "stack", string(stack))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					if debugMode {
						_, _ = fmt.Fprintf(w, `{"code":"INTERNAL_ERROR","message":"panic: %v"}`, rec)
						return
					}
					_, _ = w.Write([]byte(`{"code":"INTERNAL_ERROR","message":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
