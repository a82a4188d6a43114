package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/mocks"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
	"github.com/lorrc/helpdesk-client/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	admin = domain.Identity{Email: "admin@example.com", Role: domain.RoleAdmin}
	user  = domain.Identity{Email: "ann@example.com", Role: domain.RoleUser}

	allActive   = ports.ListTicketsParams{Archived: false}
	allArchived = ports.ListTicketsParams{Archived: true}
)

type storeFixture struct {
	api      *mocks.MockTicketAPI
	clock    *trackingClock
	metrics  *mocks.MetricsRecorder
	notifier *mocks.MockNotifier
	store    *services.TicketStore
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	f := &storeFixture{
		api:      mocks.NewMockTicketAPI(),
		clock:    newTrackingClock(),
		metrics:  mocks.NewMetricsRecorder(),
		notifier: mocks.NewMockNotifier(),
	}
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return().Maybe()
	f.store = services.NewTicketStore(f.api, services.StoreOptions{
		Debounce: 500 * time.Millisecond,
		Clock:    f.clock,
		Metrics:  f.metrics,
		Notifier: f.notifier,
	})
	t.Cleanup(f.store.Close)
	return f
}

// reconcile advances past the debounce window and waits for the
// reconciling reload it fires to finish.
func (f *storeFixture) reconcile(t *testing.T, d time.Duration) {
	t.Helper()
	f.clock.Advance(d)
	require.Eventually(t, func() bool { return !f.store.PendingReconcile() }, 2*time.Second, time.Millisecond)
}

func (f *storeFixture) notices() []domain.Notice {
	var out []domain.Notice
	for _, call := range f.notifier.Calls {
		if call.Method == "Notify" {
			out = append(out, call.Arguments.Get(1).(domain.Notice))
		}
	}
	return out
}

func tk(id string, status domain.TicketStatus) domain.Ticket {
	return domain.Ticket{
		ID:          domain.TicketID(id),
		Title:       "ticket " + id,
		Description: "description " + id,
		Status:      status,
		Priority:    domain.PriorityMedium,
		SubmittedBy: "ann@example.com",
	}
}

func idsOf(tickets []domain.Ticket) []domain.TicketID {
	out := make([]domain.TicketID, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

func transportErr() error {
	return apperrors.NewTransportError(errors.New("connection refused"), "Request")
}

func TestTicketStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("partitions active and archived lists", func(t *testing.T) {
		f := newStoreFixture(t)
		archivedNoFlag := tk("9", domain.StatusClosed)

		f.api.On("ListTickets", mock.Anything, allActive).
			Return([]domain.Ticket{tk("1", "open"), tk("2", "In Progress"), tk("3", domain.StatusResolved), tk("4", "Escalated")}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).
			Return([]domain.Ticket{archivedNoFlag}, nil)

		require.NoError(t, f.store.Load(ctx, admin))

		snap := f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"1"}, idsOf(snap.Open))
		assert.Equal(t, []domain.TicketID{"2"}, idsOf(snap.InProgress))
		assert.Equal(t, []domain.TicketID{"3"}, idsOf(snap.Resolved))
		assert.Equal(t, []domain.TicketID{"4"}, idsOf(snap.Other))
		require.Equal(t, []domain.TicketID{"9"}, idsOf(snap.Archived))
		assert.True(t, snap.Archived[0].Archived)
		assert.NoError(t, snap.Validate())
		assert.Equal(t, 1, f.metrics.Reload(services.TriggerLoad))
		f.api.AssertExpectations(t)
	})

	t.Run("users are scoped to their own tickets", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, ports.ListTicketsParams{UserEmail: user.Email, Archived: false}).
			Return([]domain.Ticket{tk("1", domain.StatusOpen)}, nil)
		f.api.On("ListTickets", mock.Anything, ports.ListTicketsParams{UserEmail: user.Email, Archived: true}).
			Return([]domain.Ticket{}, nil)

		require.NoError(t, f.store.Load(ctx, user))

		assert.Equal(t, 1, f.store.Snapshot().Len())
		f.api.AssertExpectations(t)
	})

	t.Run("failure leaves local state untouched", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("1", domain.StatusOpen)}, nil).Once()
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil).Once()
		f.api.On("ListTickets", mock.Anything, mock.Anything).Return(nil, transportErr())

		require.NoError(t, f.store.Load(ctx, admin))
		before := f.store.Snapshot()

		err := f.store.Reload(ctx)

		require.Error(t, err)
		assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
		assert.Equal(t, before, f.store.Snapshot())
		notices := f.notices()
		require.Len(t, notices, 1)
		assert.Equal(t, domain.NoticeWarn, notices[0].Level)
		assert.Equal(t, "load", notices[0].Operation)
	})

	t.Run("reload without identity", func(t *testing.T) {
		f := newStoreFixture(t)
		assert.ErrorIs(t, f.store.Reload(ctx), apperrors.ErrNotAuthenticated)
	})
}

func TestTicketStore_Create(t *testing.T) {
	ctx := context.Background()
	draft := domain.TicketDraft{
		Title:       "VPN down",
		Description: "cannot connect",
		SubmittedBy: "ann@example.com",
		Priority:    domain.PriorityHigh,
	}
	server := domain.Ticket{
		ID:            "7",
		Title:         "VPN down",
		Description:   "cannot connect",
		Status:        domain.StatusOpen,
		Priority:      domain.PriorityHigh,
		SubmittedBy:   "ann@example.com",
		SubmitterName: "Ann Lee",
	}

	t.Run("create then reconcile leaves exactly one instance", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("1", domain.StatusOpen)}, nil).Once()
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{server, tk("1", domain.StatusOpen)}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("CreateTicket", mock.Anything, mock.AnythingOfType("domain.TicketDraft")).
			Run(func(args mock.Arguments) {
				snap := f.store.Snapshot()
				require.Len(t, snap.Open, 2)
				assert.True(t, snap.Open[0].Pending, "placeholder shown first while the request is in flight")
				assert.True(t, snap.Open[0].ID.IsLocal())
			}).
			Return(&server, nil)

		require.NoError(t, f.store.Load(ctx, admin))
		created, err := f.store.Create(ctx, draft)

		require.NoError(t, err)
		assert.Equal(t, domain.TicketID("7"), created.ID)
		snap := f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"7", "1"}, idsOf(snap.Open))
		assert.False(t, snap.Open[0].Pending)
		assert.True(t, f.store.PendingReconcile(), "reconcile scheduled, not awaited")

		f.reconcile(t, 500*time.Millisecond)

		snap = f.store.Snapshot()
		assert.Equal(t, 1, snap.Count("7"))
		assert.Equal(t, 2, snap.Len())
		assert.Equal(t, "Ann Lee", snap.Open[0].SubmitterName)
		assert.Equal(t, 1, f.metrics.Reload(services.TriggerReconcile))
		assert.NoError(t, snap.Validate())
	})

	t.Run("validation failure never reaches the API", func(t *testing.T) {
		f := newStoreFixture(t)

		_, err := f.store.Create(ctx, domain.TicketDraft{Title: "no description", SubmittedBy: "ann@example.com"})

		var validationErrs *apperrors.ValidationErrors
		require.ErrorAs(t, err, &validationErrs)
		assert.Contains(t, validationErrs.Errors, "description")
		f.api.AssertNotCalled(t, "CreateTicket", mock.Anything, mock.Anything)
		assert.Equal(t, 0, f.store.Snapshot().Len())
	})

	t.Run("failure removes the placeholder and notifies", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, mock.Anything).Return([]domain.Ticket{}, nil)
		f.api.On("CreateTicket", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewRejectedError(422, "VALIDATION", "title rejected"))

		require.NoError(t, f.store.Load(ctx, user))
		_, err := f.store.Create(ctx, draft)

		require.Error(t, err)
		assert.Equal(t, apperrors.KindRejected, apperrors.KindOf(err))
		assert.Equal(t, 0, f.store.Snapshot().Len())
		assert.False(t, f.store.PendingReconcile())
		notices := f.notices()
		require.Len(t, notices, 1)
		assert.Equal(t, "create", notices[0].Operation)
		assert.Equal(t, domain.NoticeError, notices[0].Level)
		assert.Equal(t, 1, f.metrics.Mutation("create:error"))
		assert.Equal(t, 1, f.metrics.Reload(services.TriggerRollback), "server truth reloaded")
	})

	t.Run("push of our own ticket before the POST answers", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, mock.Anything).Return([]domain.Ticket{}, nil)
		f.api.On("CreateTicket", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				assert.False(t, f.store.ApplyPushed(server), "adopted, not a new arrival")
			}).
			Return(&server, nil)

		require.NoError(t, f.store.Load(ctx, user))
		_, err := f.store.Create(ctx, draft)

		require.NoError(t, err)
		snap := f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"7"}, idsOf(snap.Open))
		assert.Equal(t, 1, f.metrics.Push(ports.PushAdopted))
	})
}

func TestTicketStore_Update(t *testing.T) {
	ctx := context.Background()
	resolved := domain.StatusResolved

	t.Run("status change migrates bucket without stale duplicate", func(t *testing.T) {
		f := newStoreFixture(t)
		serverResolved := tk("1", domain.StatusResolved)
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("1", domain.StatusOpen), tk("2", domain.StatusOpen)}, nil).Once()
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("2", domain.StatusOpen), serverResolved}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("UpdateTicket", mock.Anything, domain.TicketID("1"), domain.Changes{Status: &resolved}).
			Return(&serverResolved, nil)

		require.NoError(t, f.store.Load(ctx, admin))
		updated, err := f.store.Update(ctx, "1", domain.Changes{Status: &resolved})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusResolved, updated.Status)
		snap := f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"2"}, idsOf(snap.Open))
		assert.Equal(t, []domain.TicketID{"1"}, idsOf(snap.Resolved))

		f.reconcile(t, time.Second)

		snap = f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"2"}, idsOf(snap.Open))
		assert.Equal(t, []domain.TicketID{"1"}, idsOf(snap.Resolved))
		assert.Equal(t, 1, snap.Count("1"))
	})

	t.Run("same bucket keeps position", func(t *testing.T) {
		f := newStoreFixture(t)
		high := domain.PriorityHigh
		serverVersion := tk("2", domain.StatusOpen)
		serverVersion.Priority = domain.PriorityHigh
		f.api.On("ListTickets", mock.Anything, allActive).
			Return([]domain.Ticket{tk("1", domain.StatusOpen), tk("2", domain.StatusOpen), tk("3", domain.StatusOpen)}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("UpdateTicket", mock.Anything, domain.TicketID("2"), mock.Anything).Return(&serverVersion, nil)

		require.NoError(t, f.store.Load(ctx, admin))
		_, err := f.store.Update(ctx, "2", domain.Changes{Priority: &high})

		require.NoError(t, err)
		snap := f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"1", "2", "3"}, idsOf(snap.Open))
		assert.Equal(t, domain.PriorityHigh, snap.Open[1].Priority)
	})

	t.Run("echo of the changed fields keeps the rest", func(t *testing.T) {
		f := newStoreFixture(t)
		original := tk("1", domain.StatusOpen)
		original.Location = "HQ"
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{original}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("UpdateTicket", mock.Anything, domain.TicketID("1"), mock.Anything).
			Return(&domain.Ticket{ID: "1", Status: domain.StatusResolved}, nil)

		require.NoError(t, f.store.Load(ctx, admin))
		updated, err := f.store.Update(ctx, "1", domain.Changes{Status: &resolved})

		require.NoError(t, err)
		assert.Equal(t, "ticket 1", updated.Title)
		assert.Equal(t, "description 1", updated.Description)
		assert.Equal(t, domain.StatusResolved, updated.Status)
		snap := f.store.Snapshot()
		require.Len(t, snap.Resolved, 1)
		assert.Equal(t, "ticket 1", snap.Resolved[0].Title)
		assert.Equal(t, "HQ", snap.Resolved[0].Location)
		assert.Equal(t, domain.PriorityMedium, snap.Resolved[0].Priority)
	})

	t.Run("failure restores and reloads immediately", func(t *testing.T) {
		f := newStoreFixture(t)
		original := tk("1", domain.StatusOpen)
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{original}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("UpdateTicket", mock.Anything, domain.TicketID("1"), mock.Anything).
			Run(func(args mock.Arguments) {
				snap := f.store.Snapshot()
				assert.Equal(t, []domain.TicketID{"1"}, idsOf(snap.Resolved), "optimistic patch applied")
			}).
			Return(nil, transportErr())

		require.NoError(t, f.store.Load(ctx, admin))
		_, err := f.store.Update(ctx, "1", domain.Changes{Status: &resolved})

		require.Error(t, err)
		assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
		snap := f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"1"}, idsOf(snap.Open))
		assert.Empty(t, snap.Resolved)
		assert.Equal(t, 1, f.metrics.Reload(services.TriggerRollback))
		assert.False(t, f.store.PendingReconcile())
		notices := f.notices()
		require.Len(t, notices, 1)
		assert.Equal(t, domain.TicketID("1"), notices[0].TicketID)
		assert.Contains(t, notices[0].Message, "unreachable")
	})

	t.Run("rejections", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, mock.Anything).Return([]domain.Ticket{}, nil)
		f.api.On("CreateTicket", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				placeholder := f.store.Snapshot().Open[0]
				_, err := f.store.Update(ctx, placeholder.ID, domain.Changes{Status: &resolved})
				assert.ErrorIs(t, err, apperrors.ErrTicketPending)
				assert.ErrorIs(t, f.store.Cancel(ctx, placeholder.ID), apperrors.ErrTicketPending)
			}).
			Return(&domain.Ticket{ID: "5", Status: domain.StatusOpen}, nil)
		require.NoError(t, f.store.Load(ctx, admin))

		_, err := f.store.Update(ctx, "404", domain.Changes{Status: &resolved})
		assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)

		_, err = f.store.Update(ctx, "404", domain.Changes{})
		assert.ErrorIs(t, err, apperrors.ErrNoChanges)

		bogus := domain.TicketStatus("Waiting")
		_, err = f.store.Update(ctx, "404", domain.Changes{Status: &bogus})
		var validationErrs *apperrors.ValidationErrors
		assert.ErrorAs(t, err, &validationErrs)

		_, err = f.store.Create(ctx, domain.TicketDraft{Title: "t", Description: "d", SubmittedBy: "a@example.com"})
		require.NoError(t, err)
		f.api.AssertNotCalled(t, "UpdateTicket", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestTicketStore_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("fetched record replaces the local copy", func(t *testing.T) {
		f := newStoreFixture(t)
		fresh := tk("1", domain.StatusResolved)
		fresh.Response = "replaced the cable"
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("1", domain.StatusOpen), tk("2", domain.StatusOpen)}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("GetTicket", mock.Anything, domain.TicketID("1")).Return(&fresh, nil).Once()

		require.NoError(t, f.store.Load(ctx, admin))
		got, err := f.store.Get(ctx, "1")

		require.NoError(t, err)
		assert.Equal(t, "replaced the cable", got.Response)
		snap := f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"2"}, idsOf(snap.Open))
		assert.Equal(t, []domain.TicketID{"1"}, idsOf(snap.Resolved))
		assert.Equal(t, 1, snap.Count("1"))
		assert.Equal(t, 1, f.metrics.Reload(services.TriggerDetail))
	})

	t.Run("ticket gone on the server drops the local copy", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("1", domain.StatusOpen)}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("GetTicket", mock.Anything, domain.TicketID("1")).
			Return(nil, apperrors.NewRejectedError(404, "NOT_FOUND", "Ticket not found")).Once()

		require.NoError(t, f.store.Load(ctx, admin))
		_, err := f.store.Get(ctx, "1")

		assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
		assert.Equal(t, 0, f.store.Snapshot().Len())
	})

	t.Run("transport failure keeps the local copy", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("1", domain.StatusOpen)}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("GetTicket", mock.Anything, domain.TicketID("1")).Return(nil, transportErr()).Once()

		require.NoError(t, f.store.Load(ctx, admin))
		_, err := f.store.Get(ctx, "1")

		assert.Equal(t, apperrors.KindTransport, apperrors.KindOf(err))
		assert.Equal(t, 1, f.store.Snapshot().Count("1"))
		notices := f.notices()
		require.Len(t, notices, 1)
		assert.Equal(t, "load", notices[0].Operation)
	})

	t.Run("local placeholder is served without a request", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, mock.Anything).Return([]domain.Ticket{}, nil)
		f.api.On("CreateTicket", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				snap := f.store.Snapshot()
				require.Len(t, snap.Open, 1)
				local, err := f.store.Get(ctx, snap.Open[0].ID)
				require.NoError(t, err)
				assert.True(t, local.Pending)
				assert.Equal(t, "VPN down", local.Title)
			}).
			Return(&domain.Ticket{ID: "7", Title: "VPN down", Status: domain.StatusOpen}, nil)

		require.NoError(t, f.store.Load(ctx, user))
		_, err := f.store.Create(ctx, domain.TicketDraft{Title: "VPN down", Description: "cannot connect", SubmittedBy: user.Email})

		require.NoError(t, err)
		f.api.AssertNotCalled(t, "GetTicket", mock.Anything, mock.Anything)
	})

	t.Run("unknown local id", func(t *testing.T) {
		f := newStoreFixture(t)
		_, err := f.store.Get(ctx, "local-404")
		assert.ErrorIs(t, err, apperrors.ErrTicketNotFound)
	})
}

func TestTicketStore_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("moves ticket to archived exactly once", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("1", domain.StatusOpen), tk("2", domain.StatusOpen)}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("CancelTicket", mock.Anything, domain.TicketID("1")).
			Run(func(args mock.Arguments) {
				snap := f.store.Snapshot()
				assert.NoError(t, snap.Validate(), "removal and archive happen together")
				assert.Equal(t, 1, snap.Count("1"))
			}).
			Return(nil)

		require.NoError(t, f.store.Load(ctx, admin))
		require.NoError(t, f.store.Cancel(ctx, "1"))

		snap := f.store.Snapshot()
		for _, active := range snap.Active() {
			assert.NotEqual(t, domain.TicketID("1"), active.ID)
		}
		require.Equal(t, []domain.TicketID{"1"}, idsOf(snap.Archived))
		assert.True(t, snap.Archived[0].Archived)
		assert.Equal(t, domain.StatusCanceled, snap.Archived[0].Status)
		assert.True(t, f.store.PendingReconcile())
	})

	t.Run("failure restores server truth", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("1", domain.StatusOpen)}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		f.api.On("CancelTicket", mock.Anything, domain.TicketID("1")).
			Return(apperrors.NewRejectedError(403, "", ""))

		require.NoError(t, f.store.Load(ctx, admin))
		err := f.store.Cancel(ctx, "1")

		require.Error(t, err)
		assert.ErrorIs(t, err, apperrors.ErrForbidden)
		snap := f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"1"}, idsOf(snap.Open))
		assert.Empty(t, snap.Archived)
		assert.Equal(t, 1, f.metrics.Reload(services.TriggerRollback))
	})
}

func TestTicketStore_ReconcileIsDebounced(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	high := domain.PriorityHigh
	f.api.On("ListTickets", mock.Anything, allActive).
		Return([]domain.Ticket{tk("1", domain.StatusOpen), tk("2", domain.StatusOpen), tk("3", domain.StatusOpen)}, nil)
	f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
	for _, id := range []string{"1", "2", "3"} {
		updated := tk(id, domain.StatusOpen)
		updated.Priority = domain.PriorityHigh
		f.api.On("UpdateTicket", mock.Anything, domain.TicketID(id), mock.Anything).Return(&updated, nil)
	}

	require.NoError(t, f.store.Load(ctx, admin))
	for _, id := range []domain.TicketID{"1", "2", "3"} {
		_, err := f.store.Update(ctx, id, domain.Changes{Priority: &high})
		require.NoError(t, err)
		f.clock.Advance(100 * time.Millisecond)
	}
	assert.Equal(t, 0, f.metrics.Reload(services.TriggerReconcile))

	f.reconcile(t, time.Second)

	assert.Equal(t, 1, f.metrics.Reload(services.TriggerReconcile))
	assert.Equal(t, 2, f.metrics.Reload(services.TriggerLoad)+f.metrics.Reload(services.TriggerReconcile))
}

func TestTicketStore_StaleLoadKeepsNewerLocalWrites(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	started := make(chan struct{})
	release := make(chan struct{})

	f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{}, nil).Once()
	f.api.On("ListTickets", mock.Anything, allActive).
		Run(func(args mock.Arguments) {
			close(started)
			<-release
		}).
		Return([]domain.Ticket{tk("1", domain.StatusOpen)}, nil)
	f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)

	require.NoError(t, f.store.Load(ctx, admin))

	done := make(chan error, 1)
	go func() { done <- f.store.Reload(ctx) }()
	<-started

	pushed := tk("9", domain.StatusOpen)
	assert.True(t, f.store.ApplyPushed(pushed))
	close(release)
	require.NoError(t, <-done)

	snap := f.store.Snapshot()
	assert.ElementsMatch(t, []domain.TicketID{"9", "1"}, idsOf(snap.Open))
	assert.NoError(t, snap.Validate())
}

func TestTicketStore_ApplyPushed(t *testing.T) {
	ctx := context.Background()

	t.Run("dedupes by id", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, allActive).Return([]domain.Ticket{tk("1", domain.StatusOpen)}, nil)
		f.api.On("ListTickets", mock.Anything, allArchived).Return([]domain.Ticket{}, nil)
		require.NoError(t, f.store.Load(ctx, admin))

		assert.False(t, f.store.ApplyPushed(tk("1", domain.StatusOpen)))
		assert.True(t, f.store.ApplyPushed(tk("2", domain.StatusInProgress)))
		assert.False(t, f.store.ApplyPushed(tk("2", domain.StatusInProgress)))

		snap := f.store.Snapshot()
		assert.Equal(t, []domain.TicketID{"2"}, idsOf(snap.InProgress))
		assert.Equal(t, 2, f.metrics.Push(ports.PushDuplicate))
		assert.Equal(t, 1, f.metrics.Push(ports.PushInserted))
	})

	t.Run("users ignore other submitters", func(t *testing.T) {
		f := newStoreFixture(t)
		f.api.On("ListTickets", mock.Anything, mock.Anything).Return([]domain.Ticket{}, nil)
		require.NoError(t, f.store.Load(ctx, user))

		other := tk("3", domain.StatusOpen)
		other.SubmittedBy = "bob@example.com"

		assert.False(t, f.store.ApplyPushed(other))
		assert.Equal(t, 0, f.store.Snapshot().Len())
		assert.Equal(t, 1, f.metrics.Push(ports.PushIgnored))
	})

	t.Run("before load", func(t *testing.T) {
		f := newStoreFixture(t)
		assert.False(t, f.store.ApplyPushed(tk("1", domain.StatusOpen)))
	})
}

func TestTicketStore_Close(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t)
	f.api.On("ListTickets", mock.Anything, mock.Anything).Return([]domain.Ticket{}, nil)
	f.api.On("CreateTicket", mock.Anything, mock.Anything).Return(&domain.Ticket{ID: "1", Status: domain.StatusOpen}, nil)

	require.NoError(t, f.store.Load(ctx, admin))
	_, err := f.store.Create(ctx, domain.TicketDraft{Title: "t", Description: "d", SubmittedBy: "a@example.com"})
	require.NoError(t, err)
	require.Equal(t, 1, f.clock.Live())

	f.store.Close()

	assert.Equal(t, 0, f.clock.Live())
	assert.False(t, f.store.PendingReconcile())
	f.clock.Advance(time.Minute)
	assert.Equal(t, 0, f.metrics.Reload(services.TriggerReconcile))
}
