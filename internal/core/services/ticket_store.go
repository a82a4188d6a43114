package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// DefaultReconcileDebounce is how long mutations are coalesced before the
// reconciling reload runs.
const DefaultReconcileDebounce = 500 * time.Millisecond

// Reload triggers, used as the metrics label.
const (
	TriggerLoad      = "load"
	TriggerManual    = "manual"
	TriggerReconcile = "reconcile"
	TriggerPoll      = "poll"
	TriggerRollback  = "rollback"
	TriggerDetail    = "detail"
)

// StoreOptions configures a TicketStore. Zero values select defaults.
type StoreOptions struct {
	Debounce time.Duration
	Clock    clockwork.Clock
	Logger   *slog.Logger
	Metrics  ports.Metrics
	Notifier ports.Notifier
}

// TicketStore holds the caller's tickets grouped by status and mediates
// every mutation against the remote API. Mutations apply optimistically,
// are confirmed by the server response and are then reconciled by a
// debounced full reload.
//
// The collection is replaced, never edited, under mu; readers get an
// immutable snapshot.
type TicketStore struct {
	api      ports.TicketAPI
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  ports.Metrics
	notifier ports.Notifier
	debounce time.Duration

	mu         sync.Mutex
	collection domain.Collection
	identity   *domain.Identity
	// revision counts local writes. touched maps a ticket to the revision
	// of its latest local write so that a load which started earlier does
	// not overwrite it.
	revision   uint64
	touched    map[domain.TicketID]uint64
	loadSeq    uint64
	appliedSeq uint64
	reconcile  clockwork.Timer
	// reconciling counts reconciling reloads that have fired and not yet
	// returned.
	reconciling int
	closed      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ ports.TicketStore = (*TicketStore)(nil)

// NewTicketStore creates an empty store. Call Load before use.
func NewTicketStore(api ports.TicketAPI, opts StoreOptions) *TicketStore {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultReconcileDebounce
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopMetrics{}
	}
	if opts.Notifier == nil {
		opts.Notifier = NopNotifier{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &TicketStore{
		api:      api,
		clock:    opts.Clock,
		logger:   opts.Logger.With("component", "ticket_store"),
		metrics:  opts.Metrics,
		notifier: opts.Notifier,
		debounce: opts.Debounce,
		touched:  make(map[domain.TicketID]uint64),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Snapshot returns the current collection. It is safe to keep and read
// after later mutations.
func (s *TicketStore) Snapshot() domain.Collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collection
}

// Identity returns the identity of the last Load, if any.
func (s *TicketStore) Identity() (domain.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

// Load remembers identity and fetches its tickets. On failure the local
// state is left as it was.
func (s *TicketStore) Load(ctx context.Context, identity domain.Identity) error {
	s.mu.Lock()
	if s.identity != nil && !strings.EqualFold(s.identity.Email, identity.Email) {
		// a different user must never see the previous user's tickets
		s.collection = domain.Collection{}
		s.touched = make(map[domain.TicketID]uint64)
	}
	s.identity = &identity
	s.mu.Unlock()

	return s.load(ctx, TriggerLoad)
}

// Reload re-runs Load with the remembered identity.
func (s *TicketStore) Reload(ctx context.Context) error {
	return s.load(ctx, TriggerManual)
}

// Poll is Reload as issued by the polling refresher.
func (s *TicketStore) Poll(ctx context.Context) error {
	return s.load(ctx, TriggerPoll)
}

func (s *TicketStore) load(ctx context.Context, trigger string) error {
	s.mu.Lock()
	if s.identity == nil {
		s.mu.Unlock()
		return apperrors.ErrNotAuthenticated
	}
	identity := *s.identity
	s.loadSeq++
	seq := s.loadSeq
	startRevision := s.revision
	s.mu.Unlock()

	tickets, err := s.fetch(ctx, identity)
	s.metrics.ObserveReload(trigger, err)
	if err != nil && ctx.Err() != nil {
		s.logger.DebugContext(ctx, "ticket load canceled", "trigger", trigger)
		return fmt.Errorf("load tickets: %w", ctx.Err())
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load tickets",
			"trigger", trigger,
			"kind", apperrors.KindOf(err),
			"error", err,
		)
		if trigger != TriggerPoll && trigger != TriggerReconcile {
			s.notify(ctx, domain.NoticeWarn, "load", "", err)
		}
		return fmt.Errorf("load tickets: %w", err)
	}

	fresh, unknown := domain.NewCollection(tickets)
	for _, t := range unknown {
		s.logger.WarnContext(ctx, "ticket has unrecognized status, keeping it in the other bucket",
			"ticket_id", t.ID,
			"status", t.Status,
		)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq < s.appliedSeq {
		s.logger.DebugContext(ctx, "discarding stale ticket load", "trigger", trigger, "seq", seq)
		return nil
	}
	if s.identity == nil || !strings.EqualFold(s.identity.Email, identity.Email) {
		return nil
	}
	s.appliedSeq = seq

	merged := s.mergeLocked(fresh, startRevision)
	if err := s.commitLocked(merged, trigger); err != nil {
		return err
	}
	for id, rev := range s.touched {
		if rev <= startRevision {
			delete(s.touched, id)
		}
	}

	s.logger.DebugContext(ctx, "tickets loaded",
		"trigger", trigger,
		"active", len(merged.Active()),
		"archived", len(merged.Archived),
	)
	return nil
}

// fetch lists active and archived tickets concurrently.
func (s *TicketStore) fetch(ctx context.Context, identity domain.Identity) ([]domain.Ticket, error) {
	params := ports.ListTicketsParams{}
	if !identity.Role.MonitorsAllTickets() {
		params.UserEmail = identity.Email
	}

	var active, archived []domain.Ticket
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p := params
		p.Archived = false
		list, err := s.api.ListTickets(gctx, p)
		active = list
		return err
	})
	g.Go(func() error {
		p := params
		p.Archived = true
		list, err := s.api.ListTickets(gctx, p)
		archived = list
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Ticket, 0, len(active)+len(archived))
	out = append(out, active...)
	for _, t := range archived {
		t.Archived = true
		out = append(out, t)
	}
	return out, nil
}

// mergeLocked lays local writes made after startRevision, and pending
// placeholders, over a freshly loaded collection.
func (s *TicketStore) mergeLocked(fresh domain.Collection, startRevision uint64) domain.Collection {
	var recent []domain.TicketID
	for id, rev := range s.touched {
		if rev > startRevision {
			recent = append(recent, id)
		}
	}
	// oldest first, so the newest local arrival ends up on top
	sort.Slice(recent, func(i, j int) bool { return s.touched[recent[i]] < s.touched[recent[j]] })

	for _, id := range recent {
		if local, ok := s.collection.Find(id); ok {
			fresh = fresh.Upsert(local)
		} else {
			fresh = fresh.Remove(id)
		}
	}
	for _, t := range s.collection.Active() {
		if t.Pending && !fresh.Contains(t.ID) {
			fresh = fresh.Insert(t)
		}
	}
	return fresh
}

// commitLocked installs next if it satisfies the collection invariant.
func (s *TicketStore) commitLocked(next domain.Collection, op string) error {
	if err := next.Validate(); err != nil {
		s.logger.Error("refusing collection update", "operation", op, "error", err)
		return fmt.Errorf("%s: %w", op, apperrors.ErrInternal)
	}
	s.collection = next
	return nil
}

func (s *TicketStore) touchLocked(ids ...domain.TicketID) {
	s.revision++
	for _, id := range ids {
		s.touched[id] = s.revision
	}
}

// Get fetches one ticket and installs the server's copy in the place its
// status selects. A ticket the server no longer knows is dropped locally.
// Placeholders are answered from the local copy.
func (s *TicketStore) Get(ctx context.Context, id domain.TicketID) (*domain.Ticket, error) {
	notFound := apperrors.NewNotFoundError(apperrors.ErrTicketNotFound, fmt.Sprintf("Ticket %s not found", id))

	if id.IsLocal() {
		s.mu.Lock()
		local, ok := s.collection.Find(id)
		s.mu.Unlock()
		if !ok {
			return nil, notFound
		}
		return &local, nil
	}

	fetched, err := s.api.GetTicket(ctx, id)
	s.metrics.ObserveReload(TriggerDetail, err)
	if errors.Is(err, apperrors.ErrNotFound) {
		s.mu.Lock()
		if s.collection.Contains(id) {
			s.touchLocked(id)
			_ = s.commitLocked(s.collection.Remove(id), "get")
		}
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "ticket no longer exists, dropped local copy", "ticket_id", id)
		return nil, notFound
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch ticket",
			"ticket_id", id,
			"kind", apperrors.KindOf(err),
			"error", err,
		)
		s.notify(ctx, domain.NoticeWarn, "load", id, err)
		return nil, fmt.Errorf("get ticket %s: %w", id, err)
	}

	ticket := *fetched
	ticket.Pending = false
	if ticket.ID == "" {
		ticket.ID = id
	}

	s.mu.Lock()
	s.touchLocked(ticket.ID)
	err = s.commitLocked(s.collection.Upsert(ticket), "get")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Create validates draft, shows a pending placeholder at the top of its
// bucket and submits the ticket. The server's record replaces the
// placeholder; a reconciling reload is scheduled and not awaited.
func (s *TicketStore) Create(ctx context.Context, draft domain.TicketDraft) (*domain.Ticket, error) {
	// 1. Validate locally
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		s.metrics.ObserveMutation("create", err)
		return nil, err
	}

	// 2. Optimistic placeholder
	placeholderID := domain.TicketID(domain.LocalIDPrefix + uuid.NewString())
	placeholder := draft.Placeholder(placeholderID, domain.Timestamp{Time: s.clock.Now().UTC()})

	s.mu.Lock()
	s.touchLocked(placeholderID)
	err := s.commitLocked(s.collection.Insert(placeholder), "create")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// 3. Submit
	created, err := s.api.CreateTicket(ctx, draft)
	if err != nil {
		s.mu.Lock()
		s.touchLocked(placeholderID)
		_ = s.commitLocked(s.collection.Remove(placeholderID), "create")
		s.mu.Unlock()

		s.fail(ctx, "create", "", err)
		s.rollback(ctx)
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	// 4. Confirm and reconcile
	confirmed := *created
	confirmed.Pending = false

	s.mu.Lock()
	s.touchLocked(placeholderID, confirmed.ID)
	err = s.commitLocked(s.collection.ReplaceID(placeholderID, confirmed), "create")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveMutation("create", nil)
	s.logger.InfoContext(ctx, "ticket created", "ticket_id", confirmed.ID)
	s.scheduleReconcile()
	return &confirmed, nil
}

// Update patches the ticket locally, sends the changes and installs the
// server's representation in the bucket its status selects. A failure
// restores the previous copy and reloads immediately.
func (s *TicketStore) Update(ctx context.Context, id domain.TicketID, changes domain.Changes) (*domain.Ticket, error) {
	if err := validateChanges(changes); err != nil {
		s.metrics.ObserveMutation("update", err)
		return nil, err
	}

	s.mu.Lock()
	previous, err := s.editableLocked(id)
	if err != nil {
		s.mu.Unlock()
		s.metrics.ObserveMutation("update", err)
		return nil, err
	}
	s.touchLocked(id)
	err = s.commitLocked(s.collection.Upsert(changes.ApplyTo(previous)), "update")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	updated, err := s.api.UpdateTicket(ctx, id, changes)
	if err != nil {
		s.revert(ctx, previous, "update")
		s.fail(ctx, "update", id, err)
		s.rollback(ctx)
		return nil, fmt.Errorf("update ticket %s: %w", id, err)
	}

	confirmed := changes.ApplyTo(previous)
	if updated != nil {
		confirmed = updated.Complete(confirmed)
	}
	if confirmed.ID == "" {
		confirmed.ID = id
	}

	s.mu.Lock()
	s.touchLocked(id)
	if confirmed.ID != id {
		s.touchLocked(confirmed.ID)
	}
	err = s.commitLocked(s.collection.ReplaceID(id, confirmed), "update")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.metrics.ObserveMutation("update", nil)
	s.scheduleReconcile()
	return &confirmed, nil
}

// Cancel moves the ticket from its bucket to the archived list as Canceled
// in one step, then tells the server. A failure restores the ticket and
// reloads immediately.
func (s *TicketStore) Cancel(ctx context.Context, id domain.TicketID) error {
	s.mu.Lock()
	previous, err := s.editableLocked(id)
	if err != nil {
		s.mu.Unlock()
		s.metrics.ObserveMutation("cancel", err)
		return err
	}
	canceled := previous
	canceled.Status = domain.StatusCanceled
	canceled.Archived = true
	s.touchLocked(id)
	err = s.commitLocked(s.collection.Insert(canceled), "cancel")
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.api.CancelTicket(ctx, id); err != nil {
		s.revert(ctx, previous, "cancel")
		s.fail(ctx, "cancel", id, err)
		s.rollback(ctx)
		return fmt.Errorf("cancel ticket %s: %w", id, err)
	}

	s.mu.Lock()
	s.touchLocked(id)
	s.mu.Unlock()

	s.metrics.ObserveMutation("cancel", nil)
	s.logger.InfoContext(ctx, "ticket canceled", "ticket_id", id)
	s.scheduleReconcile()
	return nil
}

// ApplyPushed merges a ticket delivered by the push channel. It reports
// whether the ticket was new to the collection.
func (s *TicketStore) ApplyPushed(t domain.Ticket) bool {
	result, inserted := s.applyPushed(t)
	s.metrics.ObservePush(result)
	if result != ports.PushInserted {
		s.logger.Debug("pushed ticket not inserted", "ticket_id", t.ID, "result", result)
	}
	return inserted
}

func (s *TicketStore) applyPushed(t domain.Ticket) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" || s.identity == nil {
		return ports.PushIgnored, false
	}
	if !s.identity.Role.MonitorsAllTickets() && !strings.EqualFold(t.SubmittedBy, s.identity.Email) {
		return ports.PushIgnored, false
	}
	if s.collection.Contains(t.ID) {
		return ports.PushDuplicate, false
	}
	t.Pending = false

	// Our own creation can be pushed back before the POST answers.
	if placeholder, ok := s.matchingPlaceholderLocked(t); ok {
		s.touchLocked(placeholder, t.ID)
		if err := s.commitLocked(s.collection.ReplaceID(placeholder, t), "push"); err != nil {
			return ports.PushIgnored, false
		}
		return ports.PushAdopted, false
	}

	s.touchLocked(t.ID)
	if err := s.commitLocked(s.collection.Insert(t), "push"); err != nil {
		return ports.PushIgnored, false
	}
	return ports.PushInserted, true
}

func (s *TicketStore) matchingPlaceholderLocked(t domain.Ticket) (domain.TicketID, bool) {
	for _, local := range s.collection.Active() {
		if !local.Pending {
			continue
		}
		if strings.EqualFold(local.SubmittedBy, t.SubmittedBy) &&
			local.Title == t.Title &&
			local.Description == t.Description {
			return local.ID, true
		}
	}
	return "", false
}

// PendingReconcile reports whether a reconciling reload is scheduled or
// still running.
func (s *TicketStore) PendingReconcile() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcile != nil || s.reconciling > 0
}

// Close stops the reconcile timer and cancels in-flight reconciling
// reloads, waiting for them to return.
func (s *TicketStore) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if s.reconcile != nil {
		s.reconcile.Stop()
		s.reconcile = nil
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// scheduleReconcile arms the debounce timer unless it is already armed, so
// mutations inside one window share a reload.
func (s *TicketStore) scheduleReconcile() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.reconcile != nil {
		return
	}
	s.reconcile = s.clock.AfterFunc(s.debounce, s.runReconcile)
}

func (s *TicketStore) runReconcile() {
	s.mu.Lock()
	s.reconcile = nil
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.reconciling++
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	_ = s.load(s.ctx, TriggerReconcile)

	s.mu.Lock()
	s.reconciling--
	s.mu.Unlock()
}

// rollback reloads right away so that server truth replaces whatever the
// failed mutation left behind.
func (s *TicketStore) rollback(ctx context.Context) {
	if err := s.load(ctx, TriggerRollback); err != nil {
		s.logger.WarnContext(ctx, "rollback reload failed, keeping restored local copy", "error", err)
	}
}

func (s *TicketStore) revert(ctx context.Context, previous domain.Ticket, op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked(previous.ID)
	if err := s.commitLocked(s.collection.Upsert(previous), op); err != nil {
		s.logger.ErrorContext(ctx, "failed to restore ticket", "ticket_id", previous.ID, "error", err)
	}
}

func (s *TicketStore) editableLocked(id domain.TicketID) (domain.Ticket, error) {
	t, ok := s.collection.Find(id)
	if !ok {
		return domain.Ticket{}, apperrors.NewNotFoundError(apperrors.ErrTicketNotFound, fmt.Sprintf("Ticket %s not found", id))
	}
	if t.Pending {
		return domain.Ticket{}, apperrors.NewConflictError(apperrors.ErrTicketPending, fmt.Sprintf("Ticket %s is still being created", id))
	}
	return t, nil
}

func (s *TicketStore) fail(ctx context.Context, op string, id domain.TicketID, err error) {
	s.metrics.ObserveMutation(op, err)
	s.logger.ErrorContext(ctx, "ticket mutation failed",
		"operation", op,
		"ticket_id", id,
		"kind", apperrors.KindOf(err),
		"error", err,
	)
	s.notify(ctx, domain.NoticeError, op, id, err)
}

func (s *TicketStore) notify(ctx context.Context, level domain.NoticeLevel, op string, id domain.TicketID, err error) {
	s.notifier.Notify(ctx, domain.Notice{
		Level:     level,
		Operation: op,
		Message:   userMessage(op, err),
		TicketID:  id,
		At:        s.clock.Now(),
	})
}

func userMessage(op string, err error) string {
	switch apperrors.KindOf(err) {
	case apperrors.KindTransport:
		return fmt.Sprintf("Could not %s ticket: the helpdesk is unreachable", op)
	case apperrors.KindMalformed:
		return fmt.Sprintf("Could not %s ticket: unexpected response from the helpdesk", op)
	}
	return fmt.Sprintf("Could not %s ticket: %v", op, err)
}

func validateChanges(changes domain.Changes) error {
	if changes.IsEmpty() {
		return apperrors.NewBadRequestError(apperrors.ErrNoChanges, "No changes requested")
	}
	errs := apperrors.NewValidationErrors()
	if changes.Status != nil && !changes.Status.IsValid() {
		errs.Add("status", apperrors.ErrInvalidStatus.Error())
	}
	if changes.Priority != nil && !changes.Priority.IsValid() {
		errs.Add("priority", apperrors.ErrInvalidPriority.Error())
	}
	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			errs.Add("title", apperrors.ErrTitleRequired.Error())
		} else if len(title) > domain.MaxTitleLength {
			errs.Add("title", apperrors.ErrTitleTooLong.Error())
		}
	}
	if changes.Description != nil && len(*changes.Description) > domain.MaxDescriptionLength {
		errs.Add("description", apperrors.ErrDescriptionTooLong.Error())
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
