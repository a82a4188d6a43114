package ports

import (
	"context"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
)

// TicketStore is the local, status-grouped copy of the caller's tickets.
type TicketStore interface {
	Load(ctx context.Context, identity domain.Identity) error
	Reload(ctx context.Context) error
	Get(ctx context.Context, id domain.TicketID) (*domain.Ticket, error)
	Create(ctx context.Context, draft domain.TicketDraft) (*domain.Ticket, error)
	Update(ctx context.Context, id domain.TicketID, changes domain.Changes) (*domain.Ticket, error)
	Cancel(ctx context.Context, id domain.TicketID) error
	ApplyPushed(ticket domain.Ticket) bool
	Snapshot() domain.Collection
	Close()
}

// SessionService owns the authenticated session.
type SessionService interface {
	Init(ctx context.Context) (*domain.Session, error)
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Logout(ctx context.Context) error
	Current() *domain.Session
	Register(ctx context.Context, params domain.RegistrationParams) error
	SignUp(ctx context.Context, params domain.RegistrationParams) error
	ChangePassword(ctx context.Context, change domain.PasswordChange) error
	ForgotPassword(ctx context.Context, email string) error
}

// AssigneeService lists who tickets can be assigned to.
type AssigneeService interface {
	ListAssignees(ctx context.Context) ([]domain.Assignee, error)
}

// NoticeLog exposes recently shown notices.
type NoticeLog interface {
	Recent(limit int) []domain.Notice
}
