// Package httpapi exposes the authcore Engine as a JSON API on a chi router.
//
// Every response is a JSON object with at least "success" and "message".
// Engine errors map onto status codes in one place, errorStatus.
package httpapi

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/middleware"
	"github.com/MrEthical07/authcore/oauth/google"
)

const maxBodyBytes = 64 << 10

// Options configures the router. Only Engine is required.
type Options struct {
	Engine *authcore.Engine
	// AdminKey guards POST /api/auth/confirm; empty disables the route.
	AdminKey string
	// Google enables the OAuth routes when set.
	Google *google.Provider
	// PostLoginRedirect is where the OAuth callback sends the browser. Empty
	// answers with JSON instead.
	PostLoginRedirect string
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// SecureCookies sets the Secure flag on session and OAuth cookies.
	SecureCookies bool
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP.
	TrustProxyHeaders bool
	Logger            *slog.Logger
}

type server struct {
	engine *authcore.Engine
	opts   Options
	logger *slog.Logger
}

// New returns the API handler.
func New(opts Options) http.Handler {
	s := &server{engine: opts.Engine, opts: opts, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(clientIP)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, response{Success: true, Message: "OK"})
	})
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", s.register)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
		r.With(middleware.GuardWith(s.engine, authcore.ModeStrict, s.guardError)).Get("/session", s.session)
		r.Post("/forgot-password", s.forgotPassword)
		r.Post("/reset-password", s.resetPassword)
		r.Get("/verify/{token}", s.verify)
		r.Post("/resend-verification", s.resendVerification)
		if opts.AdminKey != "" {
			r.With(s.requireAdminKey).Post("/confirm", s.confirm)
		}
		if opts.Google != nil {
			r.Get("/oauth/google/start", s.googleStart)
			r.Get("/oauth/google/callback", s.googleCallback)
		}
	})

	return r
}

// clientIP hands the caller's address to the engine for per-IP limits and
// audit events.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(authcore.WithClientIP(r.Context(), ip)))
	})
}
