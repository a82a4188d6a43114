package services

import (
	"context"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// WatcherOptions configures the views a Watcher mounts.
type WatcherOptions struct {
	Store  StoreOptions
	Poller PollerOptions
	Logger *slog.Logger
	// Cue plays when a pushed ticket is new to the view. Optional.
	Cue ports.AudioCue
	// OnArrival is called after a pushed ticket was inserted. Optional.
	OnArrival func(domain.Ticket)
}

// Watcher mounts ticket views. Each mounted view owns a ticket store, the
// push subscription and, for roles that monitor every ticket, a poller.
type Watcher struct {
	api    ports.TicketAPI
	push   ports.PushSource
	opts   WatcherOptions
	logger *slog.Logger
}

// NewWatcher returns a Watcher. push may be nil to rely on polling alone.
func NewWatcher(api ports.TicketAPI, push ports.PushSource, opts WatcherOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Store.Clock == nil {
		opts.Store.Clock = clockwork.NewRealClock()
	}
	if opts.Store.Logger == nil {
		opts.Store.Logger = opts.Logger
	}
	if opts.Poller.Logger == nil {
		opts.Poller.Logger = opts.Logger
	}
	if opts.Poller.Metrics == nil {
		opts.Poller.Metrics = opts.Store.Metrics
	}
	if opts.Poller.Clock == nil {
		opts.Poller.Clock = opts.Store.Clock
	}
	return &Watcher{
		api:    api,
		push:   push,
		opts:   opts,
		logger: opts.Logger.With("component", "watcher"),
	}
}

// MountedView is a live view. Close it on navigation away.
type MountedView struct {
	View   domain.View
	Store  *TicketStore
	Poller *Poller
	scope  *Scope
}

// Close stops every worker of the view and waits for them.
func (v *MountedView) Close() error {
	return v.scope.Close()
}

// Live reports how many workers and closers of the view are still alive.
func (v *MountedView) Live() int {
	return v.scope.Live()
}

// Mount resolves want against the session's role and starts the view's
// workers. The initial load failing does not prevent the mount; the
// workers will retry.
func (w *Watcher) Mount(ctx context.Context, session *domain.Session, want domain.View) (*MountedView, error) {
	view := domain.ResolveView(session, want, w.opts.Store.Clock.Now())
	if view == domain.ViewLogin {
		return nil, apperrors.ErrNotAuthenticated
	}
	if view != want {
		w.logger.InfoContext(ctx, "view not available for role, falling back",
			"requested", want,
			"view", view,
			"role", session.Identity.Role,
		)
	}

	scope := NewScope(ctx, w.logger)
	store := NewTicketStore(w.api, w.opts.Store)
	scope.AddCloser(func() error {
		store.Close()
		return nil
	})

	mounted := &MountedView{View: view, Store: store, scope: scope}

	if err := store.Load(scope.Context(), session.Identity); err != nil {
		w.logger.WarnContext(ctx, "initial ticket load failed", "error", err)
	}

	if session.Identity.Role.MonitorsAllTickets() {
		mounted.Poller = NewPoller(store.Poll, w.opts.Poller)
		scope.Go("poller", mounted.Poller.Run)
	}

	if w.push != nil {
		bridge := &pushBridge{
			store:     store,
			poller:    mounted.Poller,
			cue:       w.opts.Cue,
			onArrival: w.opts.OnArrival,
			metrics:   w.opts.Store.Metrics,
			logger:    w.logger,
		}
		scope.Go("push", func(ctx context.Context) error {
			return w.push.Run(ctx, bridge)
		})
	}

	w.logger.InfoContext(ctx, "view mounted",
		"view", view,
		"email", session.Identity.Email,
		"polling", mounted.Poller != nil,
		"push", w.push != nil,
	)
	return mounted, nil
}

type pushBridge struct {
	store     *TicketStore
	poller    *Poller
	cue       ports.AudioCue
	onArrival func(domain.Ticket)
	metrics   ports.Metrics
	logger    *slog.Logger
}

func (b *pushBridge) HandlePush(ctx context.Context, t domain.Ticket) {
	if !b.store.ApplyPushed(t) {
		return
	}
	b.logger.InfoContext(ctx, "new ticket arrived", "ticket_id", t.ID, "priority", t.Priority)
	if b.cue != nil {
		b.cue.Play()
	}
	if b.onArrival != nil {
		b.onArrival(t)
	}
}

func (b *pushBridge) ConnectionChanged(connected bool) {
	if b.metrics != nil {
		b.metrics.SetPushConnected(connected)
	}
	if b.poller != nil {
		b.poller.SetConnected(connected)
	}
}
