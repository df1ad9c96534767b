/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request, logged
  2. RealIP:        Client IP from proxy headers, used by the rate limit
  3. RequestLogger: slog request logging
  4. Recoverer:     Panic recovery (500 instead of crash)
  5. CORS:          Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/lookup       Public, rate limited per IP
  /api/dashboard    Admin
  /api/admin/*      Admin
  /health           Public
  /metrics          Public, Prometheus

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Admin gate, rate limit, request logger
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions carries everything the router needs besides the handler.
type RouterOptions struct {
	AllowedOrigins []string
	Gate           AdminGate
	Limiter        *RateLimiter
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8000"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Admin-Key"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(opts.Limiter.Middleware)
			}
			r.Post("/lookup", h.Lookup)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin(opts.Gate))
			r.Get("/dashboard", h.Dashboard)

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Get("/overrides", h.ListOverrides)
				r.Post("/join-overrides", h.SetJoinOverride)
				r.Post("/join-overrides/clear", h.ClearJoinOverride)
				r.Post("/login-overrides", h.SetLoginOverride)
				r.Post("/login-overrides/clear", h.ClearLoginOverride)
				r.Get("/source-check", h.SourceCheck)
			})
		})
	})

	return r
}
