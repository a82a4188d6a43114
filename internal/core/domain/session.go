package domain

import (
	"strings"
	"time"
)

// Role is the authenticated user's role as reported by the login endpoint.
type Role string

const (
	RoleUser    Role = "user"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// ParseRole matches s case-insensitively; the server sends "Admin".
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, true
	case RoleManager:
		return RoleManager, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return "", false
}

// MonitorsAllTickets reports whether the role lists every ticket rather
// than only its own, and therefore needs the polling refresher.
func (r Role) MonitorsAllTickets() bool {
	return r == RoleAdmin || r == RoleManager
}

// View is a screen of the client.
type View string

const (
	ViewLogin     View = "login"
	ViewBoard     View = "board"
	ViewAdmin     View = "admin"
	ViewDashboard View = "dashboard"
)

var viewRoles = map[View][]Role{
	ViewBoard:     {RoleUser, RoleManager},
	ViewAdmin:     {RoleAdmin, RoleManager},
	ViewDashboard: {RoleAdmin},
}

var viewFallback = map[View]View{
	ViewBoard:     ViewLogin,
	ViewAdmin:     ViewBoard,
	ViewDashboard: ViewLogin,
}

// CanAccess reports whether role may open view. The login view is open to
// everyone. These checks shape navigation only; the API enforces access.
func (r Role) CanAccess(v View) bool {
	if v == ViewLogin {
		return true
	}
	for _, allowed := range viewRoles[v] {
		if r == allowed {
			return true
		}
	}
	return false
}

// Identity is who the client is acting for.
type Identity struct {
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Company   string `json:"company,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Session is a persisted login.
type Session struct {
	Identity  Identity  `json:"identity"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Authenticated reports whether the session carries a token that has not
// expired at now. A zero expiry never expires.
func (s *Session) Authenticated(now time.Time) bool {
	if s == nil || s.Token == "" {
		return false
	}
	return s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt)
}

// ResolveView returns the view to render when navigating to want. Denied
// access walks the fallback chain; an unauthenticated session always lands
// on login.
func ResolveView(s *Session, want View, now time.Time) View {
	if !s.Authenticated(now) {
		return ViewLogin
	}
	v := want
	for i := 0; i < len(viewFallback)+1; i++ {
		if s.Identity.Role.CanAccess(v) {
			return v
		}
		next, ok := viewFallback[v]
		if !ok {
			break
		}
		v = next
	}
	return ViewLogin
}
