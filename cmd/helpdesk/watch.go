package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lorrc/helpdesk-client/internal/adapters/primary/cli"
	httpAdapter "github.com/lorrc/helpdesk-client/internal/adapters/primary/http"
	mw "github.com/lorrc/helpdesk-client/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-client/internal/adapters/primary/websocket"
	"github.com/lorrc/helpdesk-client/internal/adapters/secondary/notify"
	"github.com/lorrc/helpdesk-client/internal/adapters/secondary/sound"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
	"github.com/lorrc/helpdesk-client/internal/core/services"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

// homeView is where a role lands when no view is asked for.
func homeView(role domain.Role) domain.View {
	switch role {
	case domain.RoleAdmin:
		return domain.ViewDashboard
	case domain.RoleManager:
		return domain.ViewAdmin
	default:
		return domain.ViewBoard
	}
}

func parseView(s string, role domain.Role) (domain.View, error) {
	switch v := domain.View(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return homeView(role), nil
	case domain.ViewBoard, domain.ViewAdmin, domain.ViewDashboard:
		return v, nil
	}
	return "", cli.Usagef("unknown view %q (want board, admin or dashboard)", s)
}

// mount restores the session and mounts the requested view.
func (a *app) mount(ctx context.Context, view string, bell bool, onArrival func(domain.Ticket)) (*services.MountedView, *domain.Session, error) {
	session, err := a.requireSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	want, err := parseView(view, session.Identity.Role)
	if err != nil {
		return nil, nil, err
	}

	var cue ports.AudioCue = sound.Silent{}
	if bell {
		cue = sound.NewBell(a.stderr, sound.DefaultMinGap)
	}
	mounted, err := a.watcher(cue, onArrival).Mount(withIdentity(ctx, session), session, want)
	if err != nil {
		return nil, nil, err
	}
	return mounted, session, nil
}

func (e *env) watchCommand() *cli.Command {
	var view string
	var bell bool
	return &cli.Command{
		Name:    "watch",
		Summary: "Follow new tickets as they arrive",
		Flags: func() *pflag.FlagSet {
			fs := e.flags("watch")
			fs.StringVar(&view, "view", "", "board|admin|dashboard (defaults to your role's home)")
			fs.BoolVar(&bell, "bell", true, "ring the terminal bell on new tickets")
			return fs
		},
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			onArrival := func(t domain.Ticket) {
				_ = a.render.Line("new ticket #%s [%s] %s from %s", t.ID, t.Priority, t.Title, t.SubmittedBy)
			}
			mounted, _, err := a.mount(ctx, view, bell, onArrival)
			if err != nil {
				return err
			}

			if err := a.render.Tickets(domain.ApplyFilter(mounted.Store.Snapshot(), domain.Filter{})); err != nil {
				_ = mounted.Close()
				return err
			}
			fmt.Fprintf(a.stderr, "Watching %s view, Ctrl-C to stop.\n", mounted.View)

			<-ctx.Done()
			return mounted.Close()
		}),
	}
}

func (e *env) serveCommand() *cli.Command {
	var view string
	var bell bool
	return &cli.Command{
		Name:    "serve",
		Summary: "Serve the local dashboard API",
		Flags: func() *pflag.FlagSet {
			fs := e.flags("serve")
			fs.StringVar(&view, "view", "", "board|admin|dashboard (defaults to your role's home)")
			fs.BoolVar(&bell, "bell", false, "ring the terminal bell on new tickets")
			return fs
		},
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			hub := websocket.NewHub(a.logger)
			go hub.Run(ctx)
			a.notifier = notify.Multi{a.notifier, hub}

			mounted, _, err := a.mount(ctx, view, bell, hub.TicketArrived)
			if err != nil {
				return err
			}
			defer mounted.Close()

			return a.serve(ctx, mounted, hub)
		}),
	}
}

func (a *app) serve(ctx context.Context, mounted *services.MountedView, hub *websocket.Hub) error {
	cfg := a.cfg.Dashboard

	checks := map[string]httpAdapter.HealthChecker{}
	if pinger, ok := a.store.(httpAdapter.HealthChecker); ok {
		checks["session_store"] = pinger
	}

	var limiter *mw.RateLimiter
	if cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		limiterCfg := mw.DefaultRateLimiterConfig()
		limiterCfg.RequestsPerSecond = cfg.RateLimitRPS
		limiterCfg.BurstSize = cfg.RateLimitBurst
		limiter = mw.NewRateLimiter(ctx, limiterCfg)
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterConfig{
		Store:          mounted.Store,
		Sessions:       a.sessions,
		Assignees:      services.NewAssigneeService(a.api),
		Notices:        a.notices,
		Events:         websocket.NewHandler(hub, a.sessions, cfg.AllowedOrigins, a.logger),
		Health:         httpAdapter.NewHealthHandler(checks, a.cfg.App.Version),
		Metrics:        a.metrics.Handler(),
		RateLimiter:    limiter,
		AllowedOrigins: cfg.AllowedOrigins,
		Logger:         a.logger,
		Now:            a.clock.Now,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("dashboard starting", "addr", cfg.Addr, "view", mounted.View)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dashboard server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg.ShutdownTimeout))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard shutdown: %w", err)
		}
		a.logger.Info("dashboard shutdown complete")
		return nil
	})
	return g.Wait()
}

func shutdownTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	return d
}
