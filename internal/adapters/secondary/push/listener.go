package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a control message to the server.
	writeWait = 10 * time.Second

	// Time allowed to read the next message or pong from the server.
	pongWait = 60 * time.Second

	// Send pings to the server with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size accepted from the server.
	maxMessageSize = 1 << 20

	// DefaultReconnectInterval paces reconnect attempts.
	DefaultReconnectInterval = 5 * time.Second
)

// Config configures a Listener.
type Config struct {
	// URL is the ws(s) endpoint of the push socket.
	URL string
	// Tokens supplies the bearer token, sent as a header and as ?token=.
	Tokens ports.TokenSource
	// ReconnectInterval is the minimum time between connection attempts.
	ReconnectInterval time.Duration
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Clock paces reconnects. Defaults to the real clock.
	Clock  clockwork.Clock
	Logger *slog.Logger
}

// Listener keeps a push socket open and hands new_ticket events to a
// ports.PushHandler. Connection failures are logged and retried until
// the context ends.
type Listener struct {
	url       string
	tokens    ports.TokenSource
	dialer    *websocket.Dialer
	reconnect time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
}

var _ ports.PushSource = (*Listener)(nil)

// New creates a Listener.
func New(cfg Config) *Listener {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	reconnect := cfg.ReconnectInterval
	if reconnect <= 0 {
		reconnect = DefaultReconnectInterval
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		url:       cfg.URL,
		tokens:    cfg.Tokens,
		dialer:    dialer,
		reconnect: reconnect,
		clock:     clk,
		logger:    logger.With("component", "push"),
	}
}

// Run connects, reads until the connection drops, and reconnects. It
// returns ctx.Err() once ctx is done.
func (l *Listener) Run(ctx context.Context, handler ports.PushHandler) error {
	limiter := rate.NewLimiter(rate.Every(l.reconnect), 1)
	attempt := 0

	for {
		if err := l.pace(ctx, limiter); err != nil {
			return err
		}
		attempt++

		err := l.session(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.logger.WarnContext(ctx, "push connection lost, will reconnect",
			"error", err,
			"attempt", attempt,
			"retry_in", l.reconnect,
		)
	}
}

// pace blocks until limiter grants the next attempt. It only fails once
// ctx is done, however close its deadline.
func (l *Listener) pace(ctx context.Context, limiter *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := l.clock.Now()
	delay := limiter.ReserveN(now, 1).DelayFrom(now)
	if delay <= 0 {
		return nil
	}

	timer := l.clock.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// session runs one connection to completion.
func (l *Listener) session(ctx context.Context, handler ports.PushHandler) error {
	endpoint, header, err := l.target()
	if err != nil {
		return err
	}

	conn, resp, err := l.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial push socket: %w (status %d)", err, resp.StatusCode)
		}
		return fmt.Errorf("dial push socket: %w", err)
	}

	l.logger.InfoContext(ctx, "push connected", "url", l.url)
	handler.ConnectionChanged(true)
	defer handler.ConnectionChanged(false)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(ctx, conn, done)
	}()

	err = l.readPump(ctx, conn, handler)
	close(done)
	_ = conn.Close()
	wg.Wait()
	return err
}

// keepAlive pings the server and closes the connection when ctx ends so
// that readPump unblocks.
func (l *Listener) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				l.logger.Debug("push ping failed", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (l *Listener) readPump(ctx context.Context, conn *websocket.Conn, handler ports.PushHandler) error {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		ticket, err := decodeNewTicket(message)
		if err != nil {
			if !errors.Is(err, errIgnored) {
				l.logger.WarnContext(ctx, "dropping malformed push message", "error", err)
			}
			continue
		}
		handler.HandlePush(ctx, ticket)
	}
}

var errIgnored = errors.New("event ignored")

// decodeNewTicket reads {"event": "new_ticket", "data": {...}}. The ticket
// may also arrive under "ticket".
func decodeNewTicket(message []byte) (domain.Ticket, error) {
	var envelope struct {
		domain.PushEvent
		Ticket json.RawMessage `json:"ticket"`
	}
	if err := json.Unmarshal(message, &envelope); err != nil {
		return domain.Ticket{}, err
	}
	if envelope.Event != domain.EventNewTicket {
		return domain.Ticket{}, errIgnored
	}

	raw := envelope.Data
	if len(raw) == 0 {
		raw = envelope.Ticket
	}
	if len(raw) == 0 {
		return domain.Ticket{}, errors.New("new_ticket event without a ticket")
	}

	var ticket domain.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return domain.Ticket{}, err
	}
	if ticket.ID == "" {
		return domain.Ticket{}, errors.New("pushed ticket has no id")
	}
	return ticket, nil
}

func (l *Listener) target() (string, http.Header, error) {
	u, err := url.Parse(l.url)
	if err != nil {
		return "", nil, fmt.Errorf("invalid push url: %w", err)
	}

	header := http.Header{}
	if l.tokens != nil {
		if token := l.tokens.Token(); token != "" {
			q := u.Query()
			q.Set("token", token)
			u.RawQuery = q.Encode()
			header.Set("Authorization", "Bearer "+token)
		}
	}
	return u.String(), header, nil
}
