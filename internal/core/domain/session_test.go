package domain_test

import (
	"testing"
	"time"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	role, ok := domain.ParseRole("Admin")
	assert.True(t, ok)
	assert.Equal(t, domain.RoleAdmin, role)

	_, ok = domain.ParseRole("superuser")
	assert.False(t, ok)
}

func TestRole_MonitorsAllTickets(t *testing.T) {
	assert.True(t, domain.RoleAdmin.MonitorsAllTickets())
	assert.True(t, domain.RoleManager.MonitorsAllTickets())
	assert.False(t, domain.RoleUser.MonitorsAllTickets())
}

func TestSession_Authenticated(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	var nilSession *domain.Session
	assert.False(t, nilSession.Authenticated(now))
	assert.False(t, (&domain.Session{}).Authenticated(now))
	assert.True(t, (&domain.Session{Token: "t"}).Authenticated(now))
	assert.True(t, (&domain.Session{Token: "t", ExpiresAt: now.Add(time.Minute)}).Authenticated(now))
	assert.False(t, (&domain.Session{Token: "t", ExpiresAt: now}).Authenticated(now))
}

func TestResolveView(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	session := func(role domain.Role) *domain.Session {
		return &domain.Session{Token: "token", Identity: domain.Identity{Email: "x@example.com", Role: role}}
	}

	tests := []struct {
		name    string
		session *domain.Session
		want    domain.View
		got     domain.View
	}{
		{"user on board", session(domain.RoleUser), domain.ViewBoard, domain.ViewBoard},
		{"user on admin falls back to board", session(domain.RoleUser), domain.ViewAdmin, domain.ViewBoard},
		{"user on dashboard falls back to login", session(domain.RoleUser), domain.ViewDashboard, domain.ViewLogin},
		{"manager on board", session(domain.RoleManager), domain.ViewBoard, domain.ViewBoard},
		{"manager on admin", session(domain.RoleManager), domain.ViewAdmin, domain.ViewAdmin},
		{"manager on dashboard falls back to login", session(domain.RoleManager), domain.ViewDashboard, domain.ViewLogin},
		{"admin on admin", session(domain.RoleAdmin), domain.ViewAdmin, domain.ViewAdmin},
		{"admin on dashboard", session(domain.RoleAdmin), domain.ViewDashboard, domain.ViewDashboard},
		{"admin on board falls back to login", session(domain.RoleAdmin), domain.ViewBoard, domain.ViewLogin},
		{"anonymous always lands on login", nil, domain.ViewAdmin, domain.ViewLogin},
		{"unknown role", session("guest"), domain.ViewAdmin, domain.ViewLogin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.got, domain.ResolveView(tt.session, tt.want, now))
		})
	}
}
