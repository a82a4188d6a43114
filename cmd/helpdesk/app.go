package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/lorrc/helpdesk-client/internal/adapters/primary/cli"
	"github.com/lorrc/helpdesk-client/internal/adapters/secondary/notify"
	"github.com/lorrc/helpdesk-client/internal/adapters/secondary/push"
	"github.com/lorrc/helpdesk-client/internal/adapters/secondary/restapi"
	"github.com/lorrc/helpdesk-client/internal/adapters/secondary/sessionstore"
	"github.com/jonboulle/clockwork"
	"github.com/lorrc/helpdesk-client/internal/config"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
	"github.com/lorrc/helpdesk-client/internal/core/services"
	"github.com/lorrc/helpdesk-client/internal/infrastructure/logging"
	"github.com/lorrc/helpdesk-client/internal/infrastructure/metrics"
	"github.com/redis/go-redis/v9"
)

// app is the wiring shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	clock    clockwork.Clock
	metrics  *metrics.Prometheus
	api      *restapi.Client
	store    ports.SessionStore
	sessions *services.SessionService
	notices  *notify.Recorder
	notifier ports.Notifier
	render   *cli.Renderer

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	closers []func() error
}

// tokenFunc adapts a function to ports.TokenSource.
type tokenFunc func() string

func (f tokenFunc) Token() string { return f() }

func newApp(cfg *config.Config, format cli.Format, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cli.Usagef("%v", err)
	}

	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      stderr,
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		Environment: cfg.App.Environment,
	})

	a := &app{
		cfg:     cfg,
		logger:  logger,
		clock:   clockwork.NewRealClock(),
		metrics: metrics.New(),
		notices: notify.NewRecorder(notify.DefaultCapacity),
		render:  cli.NewRenderer(stdout, format),
		stdin:   stdin,
		stdout:  stdout,
		stderr:  stderr,
	}
	a.notifier = notify.Multi{notify.NewConsole(stderr), a.notices}

	store, err := a.sessionStore()
	if err != nil {
		return nil, err
	}
	a.store = store

	// The client and the session service need each other: the client
	// reads the token the session service holds.
	var sessions *services.SessionService
	api, err := restapi.New(restapi.Config{
		BaseURL:           cfg.API.URL,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RateLimitRPS,
		Burst:             cfg.API.RateLimitBurst,
		Tokens:            tokenFunc(func() string { return sessions.Token() }),
		Logger:            logger,
	})
	if err != nil {
		return nil, err
	}
	sessions = services.NewSessionService(api, store, a.clock, logger)

	a.api = api
	a.sessions = sessions
	return a, nil
}

func (a *app) sessionStore() (ports.SessionStore, error) {
	switch a.cfg.Session.Store {
	case config.SessionStoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		return sessionstore.NewRedis(client, a.cfg.Session.Profile, a.clock), nil
	default:
		return sessionstore.NewFile(a.cfg.Session.File), nil
	}
}

// Close releases connections opened by newApp.
func (a *app) Close() {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

// requireSession restores the persisted session or fails.
func (a *app) requireSession(ctx context.Context) (*domain.Session, error) {
	session, err := a.sessions.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: run 'helpdesk login' first", apperrors.ErrNotAuthenticated)
	}
	return session, nil
}

func (a *app) storeOptions() services.StoreOptions {
	return services.StoreOptions{
		Debounce: a.cfg.Sync.ReloadDebounce,
		Clock:    a.clock,
		Logger:   a.logger,
		Metrics:  a.metrics,
		Notifier: a.notifier,
	}
}

// loadStore fetches the caller's tickets into a fresh store. Close it when
// done.
func (a *app) loadStore(ctx context.Context) (*services.TicketStore, *domain.Session, error) {
	session, err := a.requireSession(ctx)
	if err != nil {
		return nil, nil, err
	}
	store := services.NewTicketStore(a.api, a.storeOptions())
	if err := store.Load(withIdentity(ctx, session), session.Identity); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, session, nil
}

func (a *app) watcher(cue ports.AudioCue, onArrival func(domain.Ticket)) *services.Watcher {
	listener := push.New(push.Config{
		URL:               a.cfg.PushEndpoint(),
		Tokens:            a.sessions,
		ReconnectInterval: a.cfg.API.PushReconnectInterval,
		Clock:             a.clock,
		Logger:            a.logger,
	})
	return services.NewWatcher(a.api, listener, services.WatcherOptions{
		Store: a.storeOptions(),
		Poller: services.PollerOptions{
			Fallback:  a.cfg.Sync.PollFallbackInterval,
			Heartbeat: a.cfg.Sync.PollHeartbeatInterval,
		},
		Logger:    a.logger,
		Cue:       cue,
		OnArrival: onArrival,
	})
}

func withIdentity(ctx context.Context, s *domain.Session) context.Context {
	return logging.WithIdentity(ctx, s.Identity.Email, string(s.Identity.Role))
}
