/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers (rate limiting key)
  3. Logger:     slog access log, request-scoped logger in context
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus counters per route pattern
  6. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/health, /api/login     Public
  /api/*                      Bearer token required
  /api/admin/*                Bearer token with admin role
  /api/admin/scenarios/*      Demo data loaders (dev mode only)
  /metrics                    Prometheus exposition

SEE ALSO:
  - handlers.go: User-facing handlers
  - admin.go: Admin handlers
  - middleware.go: Auth, logging, rate limiting
  - cmd/server/main.go: Server startup
*/
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/warp/slot-engine/metrics"
)

// RouterConfig carries the HTTP-only settings.
type RouterConfig struct {
	CORSOrigins    []string
	DevMode        bool
	LoginPerSecond float64
	LoginBurst     int
	Logger         *slog.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	loginLimit := cfg.LoginPerSecond
	if loginLimit <= 0 {
		loginLimit = 1
	}
	loginBurst := cfg.LoginBurst
	if loginBurst <= 0 {
		loginBurst = 5
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logRequests(logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.With(newRateLimiter(loginLimit, loginBurst).Handler).Post("/login", h.Login)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/me", h.Me)
			r.Get("/calendars", h.ListActiveCalendars)

			r.Route("/requests", func(r chi.Router) {
				r.Post("/", h.CreateSlotRequest)
				r.Get("/", h.ListMyRequests)
				r.Delete("/{id}", h.DeleteSlotRequest)
			})

			r.Route("/slots", func(r chi.Router) {
				r.Get("/", h.ListMySlots)
				r.Post("/check", h.CheckSlot)
			})

			// Admin routes
			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin)

				r.Route("/users", func(r chi.Router) {
					r.Post("/", h.CreateUser)
					r.Get("/", h.ListUsers)
					r.Get("/{id}", h.GetUser)
					r.Delete("/{id}", h.DeleteUser)
					r.Put("/{id}/tokens", h.RechargeUser)
				})

				r.Route("/resources", func(r chi.Router) {
					r.Post("/", h.CreateResource)
					r.Get("/", h.ListResources)
					r.Get("/{id}", h.GetResource)
					r.Put("/{id}", h.UpdateResource)
					r.Delete("/{id}", h.DeleteResource)
				})

				r.Route("/calendars", func(r chi.Router) {
					r.Post("/", h.CreateCalendar)
					r.Get("/", h.ListCalendars)
					r.Get("/{id}", h.GetCalendar)
					r.Put("/{id}", h.UpdateCalendar)
					r.Delete("/{id}", h.DeleteCalendar)
					r.Post("/{id}/archive", h.ArchiveCalendar)
					r.Get("/{id}/requests", h.ListCalendarRequests)
				})

				r.Route("/requests", func(r chi.Router) {
					r.Get("/", h.ListRequests)
					r.Put("/{id}/status", h.DecideRequest)
				})

				if cfg.DevMode {
					r.Route("/scenarios", func(r chi.Router) {
						r.Get("/", h.ListScenarios)
						r.Post("/load", h.LoadScenario)
					})
				}
			})
		})
	})

	return r
}
