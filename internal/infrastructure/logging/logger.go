package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
	"time"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request IDs
	RequestIDKey contextKey = "request_id"
	// UserEmailKey is the context key for the signed-in email
	UserEmailKey contextKey = "user_email"
	// RoleKey is the context key for the signed-in role
	RoleKey contextKey = "role"
)

// Config holds logger configuration. Zero fields take the client defaults:
// info level, text lines on stderr, service "helpdesk".
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // text, json
	Output      io.Writer
	AddSource   bool
	ServiceName string
	Version     string
	Environment string
}

func (c Config) withDefaults() Config {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	if c.ServiceName == "" {
		c.ServiceName = "helpdesk"
	}
	return c
}

// ParseLevel maps a level name to its slog level. Unknown names are info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger creates the client logger. Text output is meant for a terminal
// and carries a short clock time; JSON output is for log shipping and is
// stamped with the service, version and environment.
func NewLogger(cfg Config) *slog.Logger {
	cfg = cfg.withDefaults()
	text := cfg.Format == "text"

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(cfg.Level),
		AddSource: cfg.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key != slog.TimeKey || len(groups) > 0 {
				return a
			}
			if text {
				return slog.String(a.Key, a.Value.Time().Format("15:04:05.000"))
			}
			return slog.String(a.Key, a.Value.Time().Format(time.RFC3339Nano))
		},
	}

	var handler slog.Handler
	if text {
		handler = slog.NewTextHandler(cfg.Output, opts)
	} else {
		attrs := []slog.Attr{slog.String("service", cfg.ServiceName)}
		if cfg.Version != "" {
			attrs = append(attrs, slog.String("version", cfg.Version))
		}
		if cfg.Environment != "" {
			attrs = append(attrs, slog.String("environment", cfg.Environment))
		}
		handler = slog.NewJSONHandler(cfg.Output, opts).WithAttrs(attrs)
	}

	return slog.New(&contextHandler{handler: handler})
}

// contextHandler copies the request id and signed-in identity from the
// context onto each record.
type contextHandler struct {
	handler slog.Handler
}

func (h *contextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(contextAttrs(ctx)...)
	return h.handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{handler: h.handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{handler: h.handler.WithGroup(name)}
}

func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, key := range []contextKey{RequestIDKey, UserEmailKey, RoleKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	return attrs
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithIdentity adds the signed-in email and role to the context
func WithIdentity(ctx context.Context, email, role string) context.Context {
	ctx = context.WithValue(ctx, UserEmailKey, email)
	return context.WithValue(ctx, RoleKey, role)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// LoggerFromContext returns logger with the context values attached. Loggers
// built by NewLogger already read them per record and come back unchanged.
func LoggerFromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if _, ok := logger.Handler().(*contextHandler); ok {
		return logger
	}
	attrs := contextAttrs(ctx)
	if len(attrs) == 0 {
		return logger
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return logger.With(args...)
}

// Recovered logs a panic caught by a dashboard handler, with the
// goroutine's stack.
func Recovered(ctx context.Context, logger *slog.Logger, value any) {
	logger.ErrorContext(ctx, "panic recovered",
		"panic", value,
		"stack", string(debug.Stack()),
	)
}

// RequestLog is one request served by the local dashboard API.
type RequestLog struct {
	Method    string
	Path      string
	Status    int
	Duration  time.Duration
	Bytes     int64
	ClientIP  string
	UserAgent string
}

// quietPaths are polled by the dashboard and scrapers.
var quietPaths = map[string]bool{
	"/health":      true,
	"/health/live": true,
	"/metrics":     true,
}

// LogRequest logs req at a level picked from its status. Successful polls of
// the health and metrics endpoints go to debug.
func LogRequest(ctx context.Context, logger *slog.Logger, req RequestLog) {
	level := slog.LevelInfo
	switch {
	case req.Status >= 500:
		level = slog.LevelError
	case req.Status >= 400:
		level = slog.LevelWarn
	case quietPaths[req.Path]:
		level = slog.LevelDebug
	}

	logger.Log(ctx, level, "dashboard request",
		"method", req.Method,
		"path", req.Path,
		"status_code", req.Status,
		"duration_ms", req.Duration.Milliseconds(),
		"bytes_written", req.Bytes,
		"client_ip", req.ClientIP,
		"user_agent", req.UserAgent,
	)
}
