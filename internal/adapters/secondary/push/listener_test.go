package push_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/lorrc/helpdesk-client/internal/adapters/secondary/push"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu          sync.Mutex
	tickets     []domain.Ticket
	transitions []bool
	arrived     chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{arrived: make(chan struct{}, 16)}
}

func (h *recordingHandler) HandlePush(_ context.Context, t domain.Ticket) {
	h.mu.Lock()
	h.tickets = append(h.tickets, t)
	h.mu.Unlock()
	h.arrived <- struct{}{}
}

func (h *recordingHandler) ConnectionChanged(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transitions = append(h.transitions, connected)
}

func (h *recordingHandler) snapshot() ([]domain.Ticket, []bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Ticket(nil), h.tickets...), append([]bool(nil), h.transitions...)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestListener_Run(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var connections atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok", r.URL.Query().Get("token"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		n := connections.Add(1)
		messages := []string{
			`{"event": "something_else", "data": {"id": 1}}`,
			`not json`,
			`{"event": "new_ticket", "data": {"id": 10, "title": "Printer jam", "status": "Open"}}`,
		}
		if n > 1 {
			messages = []string{`{"event": "new_ticket", "ticket": {"id": "11", "status": "Open"}}`}
		}
		for _, m := range messages {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(m)))
		}

		if n == 1 {
			// drop the first connection to force a reconnect
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	tokens := mocks.NewMockTokenSource()
	tokens.On("Token").Return("tok")

	listener := push.New(push.Config{
		URL:               wsURL(srv),
		Tokens:            tokens,
		ReconnectInterval: 10 * time.Millisecond,
	})
	handler := newRecordingHandler()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx, handler) }()

	for i := 0; i < 2; i++ {
		select {
		case <-handler.arrived:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for pushed tickets")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}

	tickets, transitions := handler.snapshot()
	require.Len(t, tickets, 2)
	assert.Equal(t, domain.TicketID("10"), tickets[0].ID)
	assert.Equal(t, "Printer jam", tickets[0].Title)
	assert.Equal(t, domain.TicketID("11"), tickets[1].ID)
	assert.Equal(t, []bool{true, false, true, false}, transitions)
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestListener_RetriesUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	listener := push.New(push.Config{URL: url, ReconnectInterval: 5 * time.Millisecond})
	handler := newRecordingHandler()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := listener.Run(ctx, handler)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, transitions := handler.snapshot()
	assert.Empty(t, transitions, "never connected")
}

func TestListener_KeepsRetryingPastTheDeadline(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	clk := clockwork.NewFakeClock()
	listener := push.New(push.Config{URL: wsURL(srv), ReconnectInterval: time.Hour, Clock: clk})

	// the next attempt is due long after the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- listener.Run(ctx, newRecordingHandler()) }()

	require.Eventually(t, func() bool { return attempts.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, clk.BlockUntilContext(ctx, 1))
	select {
	case err := <-done:
		t.Fatalf("listener stopped while its context was live: %v", err)
	default:
	}

	clk.Advance(time.Hour)
	require.Eventually(t, func() bool { return attempts.Load() == 2 }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
