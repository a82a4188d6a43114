package ports

import (
	"context"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
)

// ListTicketsParams scopes GET /tickets. An empty UserEmail lists every
// ticket, which the API only allows for admins and managers.
type ListTicketsParams struct {
	UserEmail string
	Archived  bool
}

// TicketAPI is the remote ticket resource. UpdateTicket returns a nil
// ticket when the API acknowledges without echoing the record.
type TicketAPI interface {
	ListTickets(ctx context.Context, params ListTicketsParams) ([]domain.Ticket, error)
	GetTicket(ctx context.Context, id domain.TicketID) (*domain.Ticket, error)
	CreateTicket(ctx context.Context, draft domain.TicketDraft) (*domain.Ticket, error)
	UpdateTicket(ctx context.Context, id domain.TicketID, changes domain.Changes) (*domain.Ticket, error)
	CancelTicket(ctx context.Context, id domain.TicketID) error
	ListUsers(ctx context.Context, role string) ([]domain.Assignee, error)
}

// AccountAPI is the remote authentication and account resource.
type AccountAPI interface {
	Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	Register(ctx context.Context, params domain.RegistrationParams) error
	SignUp(ctx context.Context, params domain.RegistrationParams) error
	ChangePassword(ctx context.Context, change domain.PasswordChange) error
	ForgotPassword(ctx context.Context, email string) error
}

// TokenSource supplies the bearer token for outbound requests. An empty
// token sends no Authorization header.
type TokenSource interface {
	Token() string
}

// SessionStore persists the session between runs. Load returns
// errors.ErrNoSession when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Clear(ctx context.Context) error
}

// PushHandler receives what a PushSource delivers.
type PushHandler interface {
	HandlePush(ctx context.Context, ticket domain.Ticket)
	ConnectionChanged(connected bool)
}

// PushSource is a long-lived subscription to server-pushed tickets. Run
// blocks until ctx is done.
type PushSource interface {
	Run(ctx context.Context, handler PushHandler) error
}

// Notifier shows a notice to the user.
type Notifier interface {
	Notify(ctx context.Context, notice domain.Notice)
}

// AudioCue signals a newly arrived ticket.
type AudioCue interface {
	Play()
}

// Push results recorded by Metrics.ObservePush.
const (
	PushInserted  = "inserted"
	PushDuplicate = "duplicate"
	PushAdopted   = "adopted"
	PushIgnored   = "ignored"
)

// Metrics records store and worker activity.
type Metrics interface {
	ObserveReload(trigger string, err error)
	ObserveMutation(op string, err error)
	ObservePush(result string)
	ObservePollSkipped()
	SetPushConnected(connected bool)
}
