package websocket

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
)

// SessionSource returns the session the dashboard is serving.
type SessionSource interface {
	Current() *domain.Session
}

// Handler upgrades dashboard requests to the feed socket.
type Handler struct {
	hub      *Hub
	sessions SessionSource
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler accepts upgrades from the allowed origins. A "*" entry allows
// any origin; a request without an Origin header is always allowed.
func NewHandler(hub *Hub, sessions SessionSource, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		hub:      hub,
		sessions: sessions,
		logger:   logger.With("component", "feed_handler"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return originAllowed(r.Header.Get("Origin"), r.Host, allowedOrigins)
		},
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.Current()
	if session == nil {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := NewClient(h.hub, conn, session.Identity.Email, h.logger)
	if !h.hub.register(client) {
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func originAllowed(origin, host string, allowed []string) bool {
	if origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, host)
}
