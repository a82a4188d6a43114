package mocks

import (
	"context"
	"sync"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
	"github.com/stretchr/testify/mock"
)

// MockTicketAPI is a mock implementation of ports.TicketAPI
type MockTicketAPI struct {
	mock.Mock
}

func NewMockTicketAPI() *MockTicketAPI {
	return &MockTicketAPI{}
}

func (m *MockTicketAPI) ListTickets(ctx context.Context, params ports.ListTicketsParams) ([]domain.Ticket, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Ticket), args.Error(1)
}

func (m *MockTicketAPI) GetTicket(ctx context.Context, id domain.TicketID) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketAPI) CreateTicket(ctx context.Context, draft domain.TicketDraft) (*domain.Ticket, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketAPI) UpdateTicket(ctx context.Context, id domain.TicketID, changes domain.Changes) (*domain.Ticket, error) {
	args := m.Called(ctx, id, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketAPI) CancelTicket(ctx context.Context, id domain.TicketID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTicketAPI) ListUsers(ctx context.Context, role string) ([]domain.Assignee, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Assignee), args.Error(1)
}

// MockAccountAPI is a mock implementation of ports.AccountAPI
type MockAccountAPI struct {
	mock.Mock
}

func NewMockAccountAPI() *MockAccountAPI {
	return &MockAccountAPI{}
}

func (m *MockAccountAPI) Login(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockAccountAPI) Register(ctx context.Context, params domain.RegistrationParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockAccountAPI) SignUp(ctx context.Context, params domain.RegistrationParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockAccountAPI) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	args := m.Called(ctx, change)
	return args.Error(0)
}

func (m *MockAccountAPI) ForgotPassword(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

// MockSessionStore is a mock implementation of ports.SessionStore
type MockSessionStore struct {
	mock.Mock
}

func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{}
}

func (m *MockSessionStore) Load(ctx context.Context) (*domain.Session, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionStore) Save(ctx context.Context, session *domain.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStore) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockNotifier is a mock implementation of ports.Notifier
type MockNotifier struct {
	mock.Mock
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, notice domain.Notice) {
	m.Called(ctx, notice)
}

// MockAudioCue is a mock implementation of ports.AudioCue
type MockAudioCue struct {
	mock.Mock
}

func NewMockAudioCue() *MockAudioCue {
	return &MockAudioCue{}
}

func (m *MockAudioCue) Play() {
	m.Called()
}

// MockTokenSource is a mock implementation of ports.TokenSource
type MockTokenSource struct {
	mock.Mock
}

func NewMockTokenSource() *MockTokenSource {
	return &MockTokenSource{}
}

func (m *MockTokenSource) Token() string {
	args := m.Called()
	return args.String(0)
}

// MockTicketStore is a mock implementation of ports.TicketStore
type MockTicketStore struct {
	mock.Mock
}

func NewMockTicketStore() *MockTicketStore {
	return &MockTicketStore{}
}

func (m *MockTicketStore) Load(ctx context.Context, identity domain.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockTicketStore) Reload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTicketStore) Get(ctx context.Context, id domain.TicketID) (*domain.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketStore) Create(ctx context.Context, draft domain.TicketDraft) (*domain.Ticket, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketStore) Update(ctx context.Context, id domain.TicketID, changes domain.Changes) (*domain.Ticket, error) {
	args := m.Called(ctx, id, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ticket), args.Error(1)
}

func (m *MockTicketStore) Cancel(ctx context.Context, id domain.TicketID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTicketStore) ApplyPushed(ticket domain.Ticket) bool {
	args := m.Called(ticket)
	return args.Bool(0)
}

func (m *MockTicketStore) Snapshot() domain.Collection {
	args := m.Called()
	return args.Get(0).(domain.Collection)
}

func (m *MockTicketStore) Close() {
	m.Called()
}

// MockAssigneeService is a mock implementation of ports.AssigneeService
type MockAssigneeService struct {
	mock.Mock
}

func NewMockAssigneeService() *MockAssigneeService {
	return &MockAssigneeService{}
}

func (m *MockAssigneeService) ListAssignees(ctx context.Context) ([]domain.Assignee, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Assignee), args.Error(1)
}

// MetricsRecorder is a ports.Metrics that counts what it observes.
type MetricsRecorder struct {
	mu          sync.Mutex
	Reloads     map[string]int
	ReloadErrs  map[string]int
	Mutations   map[string]int
	Pushes      map[string]int
	PollSkipped int
	Connected   bool
}

func NewMetricsRecorder() *MetricsRecorder {
	return &MetricsRecorder{
		Reloads:    make(map[string]int),
		ReloadErrs: make(map[string]int),
		Mutations:  make(map[string]int),
		Pushes:     make(map[string]int),
	}
}

func (r *MetricsRecorder) ObserveReload(trigger string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reloads[trigger]++
	if err != nil {
		r.ReloadErrs[trigger]++
	}
}

func (r *MetricsRecorder) ObserveMutation(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		op += ":error"
	}
	r.Mutations[op]++
}

func (r *MetricsRecorder) ObservePush(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pushes[result]++
}

func (r *MetricsRecorder) ObservePollSkipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PollSkipped++
}

func (r *MetricsRecorder) SetPushConnected(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Connected = connected
}

// Reload returns the reload count for trigger.
func (r *MetricsRecorder) Reload(trigger string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Reloads[trigger]
}

// Skipped returns the number of skipped poll ticks.
func (r *MetricsRecorder) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.PollSkipped
}

// Push returns the count for a push result.
func (r *MetricsRecorder) Push(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Pushes[result]
}

// Mutation returns the count for op, or for its failures when op carries
// the ":error" suffix.
func (r *MetricsRecorder) Mutation(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Mutations[op]
}
