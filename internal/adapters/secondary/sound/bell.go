package sound

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/lorrc/helpdesk-client/internal/core/ports"
	"golang.org/x/time/rate"
)

// DefaultMinGap keeps a burst of arrivals from ringing more than twice a
// second.
const DefaultMinGap = 500 * time.Millisecond

// Bell rings the terminal bell.
type Bell struct {
	mu      sync.Mutex
	out     io.Writer
	limiter *rate.Limiter
}

var _ ports.AudioCue = (*Bell)(nil)

// NewBell writes BEL to out, stderr when nil. A zero minGap uses
// DefaultMinGap.
func NewBell(out io.Writer, minGap time.Duration) *Bell {
	if out == nil {
		out = os.Stderr
	}
	if minGap <= 0 {
		minGap = DefaultMinGap
	}
	return &Bell{out: out, limiter: rate.NewLimiter(rate.Every(minGap), 1)}
}

// Play rings unless it rang less than minGap ago.
func (b *Bell) Play() {
	if !b.limiter.Allow() {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.out, "\a")
}

// Silent is an AudioCue that does nothing.
type Silent struct{}

func (Silent) Play() {}
