package services

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// Polling defaults. Push is the primary channel; the poller only
// backstops it.
const (
	DefaultPollFallbackInterval  = 15 * time.Second
	DefaultPollHeartbeatInterval = 60 * time.Second
)

// ReloadFunc refreshes the ticket store.
type ReloadFunc func(ctx context.Context) error

// PollerOptions configures a Poller. Zero values select defaults.
type PollerOptions struct {
	// Fallback is the interval while the push connection is down.
	Fallback time.Duration
	// Heartbeat is the interval while the push connection is up.
	Heartbeat time.Duration
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Metrics   ports.Metrics
}

// Poller reloads on a fixed interval. A tick that arrives while the
// previous reload is still running is skipped.
type Poller struct {
	reload    ReloadFunc
	fallback  time.Duration
	heartbeat time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   ports.Metrics

	inFlight atomic.Bool
	wg       sync.WaitGroup

	mu        sync.Mutex
	connected bool
	changes   chan struct{}
}

func NewPoller(reload ReloadFunc, opts PollerOptions) *Poller {
	if opts.Fallback <= 0 {
		opts.Fallback = DefaultPollFallbackInterval
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = DefaultPollHeartbeatInterval
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	return &Poller{
		reload:    reload,
		fallback:  opts.Fallback,
		heartbeat: opts.Heartbeat,
		clock:     opts.Clock,
		logger:    opts.Logger.With("component", "poller"),
		metrics:   opts.Metrics,
		changes:   make(chan struct{}, 1),
	}
}

// Interval returns the current polling interval.
func (p *Poller) Interval() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connected {
		return p.heartbeat
	}
	return p.fallback
}

// SetConnected switches between the fallback and heartbeat intervals.
func (p *Poller) SetConnected(connected bool) {
	p.mu.Lock()
	changed := p.connected != connected
	p.connected = connected
	p.mu.Unlock()

	if changed {
		select {
		case p.changes <- struct{}{}:
		default:
		}
	}
}

// Run ticks until ctx is done and returns once any reload it started has
// finished.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.Interval())
	defer p.wg.Wait()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.changes:
			interval := p.Interval()
			ticker.Reset(interval)
			p.logger.Debug("polling interval changed", "interval", interval)
		case <-ticker.Chan():
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		p.metrics.ObservePollSkipped()
		p.logger.Debug("previous reload still running, skipping tick")
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.inFlight.Store(false)

		if err := p.reload(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("polling reload failed", "error", err)
		}
	}()
}
