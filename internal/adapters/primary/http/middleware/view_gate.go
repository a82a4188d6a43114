package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/infrastructure/logging"
)

// SessionSource reports the signed-in session, nil when signed out.
type SessionSource interface {
	Current() *domain.Session
}

// RequireSession lets a request through for any signed-in session. now
// defaults to time.Now.
func RequireSession(sessions SessionSource, now func() time.Time) func(http.Handler) http.Handler {
	return gate(sessions, now, func(*domain.Session, time.Time) bool { return true })
}

// RequireView lets a request through only when the current session would
// land on view. It mirrors client navigation; the helpdesk API enforces
// access on its own.
func RequireView(sessions SessionSource, view domain.View, now func() time.Time) func(http.Handler) http.Handler {
	return gate(sessions, now, func(s *domain.Session, at time.Time) bool {
		return domain.ResolveView(s, view, at) == view
	})
}

func gate(sessions SessionSource, now func() time.Time, allowed func(*domain.Session, time.Time) bool) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			at := now()
			session := sessions.Current()

			if !session.Authenticated(at) {
				writeGateError(w, http.StatusUnauthorized, "Sign in first", "NOT_AUTHENTICATED")
				return
			}
			if !allowed(session, at) {
				writeGateError(w, http.StatusForbidden, "This view is not available for your role", "FORBIDDEN")
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), session)))
		})
	}
}

func withIdentity(ctx context.Context, s *domain.Session) context.Context {
	return logging.WithIdentity(ctx, s.Identity.Email, string(s.Identity.Role))
}

func writeGateError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
