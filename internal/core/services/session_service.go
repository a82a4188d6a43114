package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// SessionService owns the authenticated session: restoring it at start,
// replacing it on login and clearing it on logout. Consumers receive the
// session explicitly through Current.
type SessionService struct {
	accounts ports.AccountAPI
	store    ports.SessionStore
	clock    clockwork.Clock
	logger   *slog.Logger

	mu      sync.RWMutex
	current *domain.Session
}

var (
	_ ports.SessionService = (*SessionService)(nil)
	_ ports.TokenSource    = (*SessionService)(nil)
)

// NewSessionService creates a session service with no session loaded.
func NewSessionService(accounts ports.AccountAPI, store ports.SessionStore, clk clockwork.Clock, logger *slog.Logger) *SessionService {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		accounts: accounts,
		store:    store,
		clock:    clk,
		logger:   logger.With("component", "session"),
	}
}

// Init restores the persisted session. It returns nil without error when
// there is none or it has expired; an expired session is cleared.
func (s *SessionService) Init(ctx context.Context) (*domain.Session, error) {
	session, err := s.store.Load(ctx)
	if errors.Is(err, apperrors.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !session.Authenticated(s.clock.Now()) {
		s.logger.InfoContext(ctx, "persisted session expired", "email", session.Identity.Email)
		if err := s.store.Clear(ctx); err != nil {
			s.logger.WarnContext(ctx, "failed to clear expired session", "error", err)
		}
		return nil, nil
	}

	s.set(session)
	return s.Current(), nil
}

// Login authenticates against the API and persists the new session.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	creds := domain.Credentials{Email: strings.TrimSpace(email), Password: password}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	session, err := s.accounts.Login(ctx, creds)
	if err != nil {
		if errors.Is(err, apperrors.ErrUnauthorized) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}
	if session.Identity.Email == "" {
		session.Identity.Email = creds.Email
	}

	if err := s.store.Save(ctx, session); err != nil {
		// the login itself worked; it just won't survive a restart
		s.logger.WarnContext(ctx, "failed to persist session", "error", err)
	}
	s.set(session)

	s.logger.InfoContext(ctx, "logged in",
		"email", session.Identity.Email,
		"role", session.Identity.Role,
	)
	return s.Current(), nil
}

// Logout forgets the session locally and in the store.
func (s *SessionService) Logout(ctx context.Context) error {
	s.set(nil)
	return s.store.Clear(ctx)
}

// Current returns a copy of the session, or nil.
func (s *SessionService) Current() *domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// Token returns the bearer token while the session is valid.
func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.current.Authenticated(s.clock.Now()) {
		return ""
	}
	return s.current.Token
}

// Register creates an account. Only admins may register users.
func (s *SessionService) Register(ctx context.Context, params domain.RegistrationParams) error {
	session, err := s.require()
	if err != nil {
		return err
	}
	if session.Identity.Role != domain.RoleAdmin {
		return apperrors.NewForbiddenError("Only admins can register users")
	}
	if params.Company == "" {
		params.Company = session.Identity.Company
	}
	if params.Role == "" {
		params.Role = domain.RoleUser
	}
	if err := params.Validate(); err != nil {
		return err
	}
	return s.accounts.Register(ctx, params)
}

// SignUp creates the caller's own account. It needs no session and never
// asks for a role.
func (s *SessionService) SignUp(ctx context.Context, params domain.RegistrationParams) error {
	params.FirstName = strings.TrimSpace(params.FirstName)
	params.LastName = strings.TrimSpace(params.LastName)
	params.Email = strings.TrimSpace(params.Email)
	params.Company = strings.TrimSpace(params.Company)
	params.Role = ""
	if err := params.Validate(); err != nil {
		return err
	}
	if err := s.accounts.SignUp(ctx, params); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account created", "email", params.Email)
	return nil
}

// ChangePassword checks the new password locally before sending it.
func (s *SessionService) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	if _, err := s.require(); err != nil {
		return err
	}
	if err := change.Validate(); err != nil {
		return err
	}
	return s.accounts.ChangePassword(ctx, change)
}

// ForgotPassword asks the API to mail a reset link. No session is needed.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.ErrEmailRequired
	}
	if !domain.IsValidEmail(email) {
		return apperrors.ErrEmailInvalid
	}
	return s.accounts.ForgotPassword(ctx, email)
}

func (s *SessionService) require() (*domain.Session, error) {
	session := s.Current()
	if session == nil {
		return nil, apperrors.ErrNotAuthenticated
	}
	if !session.Authenticated(s.clock.Now()) {
		return nil, apperrors.ErrSessionExpired
	}
	return session, nil
}

func (s *SessionService) set(session *domain.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = session
}
