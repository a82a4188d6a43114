package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Scope ties goroutines and closers to the lifetime of a mounted view.
// Close cancels the scope's context, waits for every goroutine and then
// runs the closers in reverse order. Live reports what is still running.
type Scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger

	wg      sync.WaitGroup
	live    atomic.Int64
	mu      sync.Mutex
	closers []func() error
	closed  bool
	errs    []error
}

// NewScope derives a scope from parent.
func NewScope(parent context.Context, logger *slog.Logger) *Scope {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(parent)
	return &Scope{ctx: ctx, cancel: cancel, logger: logger}
}

// Context is canceled when the scope closes.
func (s *Scope) Context() context.Context {
	return s.ctx
}

// Go runs fn in a tracked goroutine. A non-nil error other than
// cancellation is kept and returned by Close.
func (s *Scope) Go(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.live.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.live.Add(-1)

		if err := fn(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("scoped task exited with error", "task", name, "error", err)
			s.mu.Lock()
			s.errs = append(s.errs, err)
			s.mu.Unlock()
		}
	}()
}

// AddCloser registers fn to run on Close. If the scope is already closed
// fn runs immediately.
func (s *Scope) AddCloser(fn func() error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if err := fn(); err != nil {
			s.logger.Warn("closer failed", "error", err)
		}
		return
	}
	s.closers = append(s.closers, fn)
	s.live.Add(1)
	s.mu.Unlock()
}

// Live counts running goroutines plus closers not yet run.
func (s *Scope) Live() int {
	return int(s.live.Load())
}

// Close tears the scope down. It is safe to call more than once.
func (s *Scope) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			s.errs = append(s.errs, err)
		}
		s.live.Add(-1)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}
