package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	mw "github.com/lorrc/helpdesk-client/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// RouterConfig wires the dashboard routes. Assignees, Notices, Events,
// Metrics and RateLimiter are optional.
type RouterConfig struct {
	Store          ports.TicketStore
	Sessions       mw.SessionSource
	Assignees      ports.AssigneeService
	Notices        ports.NoticeLog
	Events         http.Handler
	Health         *HealthHandler
	Metrics        http.Handler
	RateLimiter    *mw.RateLimiter
	AllowedOrigins []string
	Logger         *slog.Logger
	// Now defaults to time.Now. It decides session expiry for the view gates.
	Now func() time.Time
}

// NewRouter builds the dashboard handler.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Health == nil {
		cfg.Health = NewHealthHandler(nil, "")
	}

	errorHandler := NewErrorHandler(logger)
	tickets := NewTicketHandler(cfg.Store, cfg.Sessions, errorHandler, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.RequestLogger(logger))
	r.Use(mw.RecoveryLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders:   []string{mw.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Middleware)
	}

	r.Get("/health", cfg.Health.HandleHealth)
	r.Get("/health/live", cfg.Health.HandleLiveness)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireSession(cfg.Sessions, cfg.Now))
			r.Route("/tickets", tickets.RegisterRoutes)
			r.Post("/reload", tickets.HandleReload)
			if cfg.Notices != nil {
				r.Get("/notices", NewNoticeHandler(cfg.Notices).HandleListNotices)
			}
			if cfg.Events != nil {
				r.Method(http.MethodGet, "/events", cfg.Events)
			}
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireView(cfg.Sessions, domain.ViewDashboard, cfg.Now))
			r.Get("/summary", tickets.HandleSummary)
		})

		if cfg.Assignees != nil {
			r.Group(func(r chi.Router) {
				r.Use(mw.RequireView(cfg.Sessions, domain.ViewAdmin, cfg.Now))
				r.Route("/assignees", NewAssigneeHandler(cfg.Assignees, errorHandler, logger).RegisterRoutes)
			})
		}
	})

	return r
}
