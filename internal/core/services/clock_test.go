package services_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// trackingClock is a fake clock that also counts the tickers and timers
// created through it that are still armed.
type trackingClock struct {
	*clockwork.FakeClock
	live atomic.Int64
}

func newTrackingClock() *trackingClock {
	return &trackingClock{FakeClock: clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))}
}

func (c *trackingClock) NewTicker(d time.Duration) clockwork.Ticker {
	c.live.Add(1)
	return &trackedTicker{Ticker: c.FakeClock.NewTicker(d), live: &c.live}
}

func (c *trackingClock) AfterFunc(d time.Duration, f func()) clockwork.Timer {
	c.live.Add(1)
	timer := &trackedTimer{live: &c.live}
	timer.Timer = c.FakeClock.AfterFunc(d, func() {
		timer.release()
		f()
	})
	return timer
}

// Live returns the number of armed tickers and timers.
func (c *trackingClock) Live() int {
	return int(c.live.Load())
}

// waitForTimers blocks until n tickers or timers are registered.
func (c *trackingClock) waitForTimers(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.BlockUntilContext(ctx, n))
}

type trackedTicker struct {
	clockwork.Ticker
	live *atomic.Int64
	once sync.Once
}

func (t *trackedTicker) Stop() {
	t.Ticker.Stop()
	t.once.Do(func() { t.live.Add(-1) })
}

type trackedTimer struct {
	clockwork.Timer
	live *atomic.Int64
	once sync.Once
}

func (t *trackedTimer) release() {
	t.once.Do(func() { t.live.Add(-1) })
}

func (t *trackedTimer) Stop() bool {
	stopped := t.Timer.Stop()
	if stopped {
		t.release()
	}
	return stopped
}
