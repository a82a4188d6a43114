package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

var levelStyles = map[domain.NoticeLevel]lipgloss.Style{
	domain.NoticeInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true),
	domain.NoticeWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true),
	domain.NoticeError: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

var faint = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

// Console prints notices as one styled line each.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

var _ ports.Notifier = (*Console)(nil)

// NewConsole prints to out, stderr when nil.
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stderr
	}
	return &Console{out: out}
}

func (c *Console) Notify(_ context.Context, n domain.Notice) {
	style, ok := levelStyles[n.Level]
	if !ok {
		style = levelStyles[domain.NoticeInfo]
	}

	line := style.Render(fmt.Sprintf("[%s]", n.Level)) + " " + n.Message
	if n.TicketID != "" {
		line += " " + faint.Render("#"+string(n.TicketID))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, line)
}

// Recorder keeps the most recent notices in memory for the dashboard.
type Recorder struct {
	mu   sync.Mutex
	buf  []domain.Notice
	next int
	full bool
}

var (
	_ ports.Notifier  = (*Recorder)(nil)
	_ ports.NoticeLog = (*Recorder)(nil)
)

// DefaultCapacity is the number of notices a Recorder keeps.
const DefaultCapacity = 100

// NewRecorder keeps up to capacity notices.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{buf: make([]domain.Notice, capacity)}
}

func (r *Recorder) Notify(_ context.Context, n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = n
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns up to limit notices, newest first. limit <= 0 returns all.
func (r *Recorder) Recent(limit int) []domain.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.next
	if r.full {
		size = len(r.buf)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]domain.Notice, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Multi fans a notice out to several notifiers.
type Multi []ports.Notifier

func (m Multi) Notify(ctx context.Context, n domain.Notice) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
