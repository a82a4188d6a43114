package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	mw "github.com/lorrc/helpdesk-client/internal/adapters/primary/http/middleware"
	"github.com/lorrc/helpdesk-client/internal/adapters/primary/validation"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// TicketHandler serves the mounted view's ticket store.
type TicketHandler struct {
	store        ports.TicketStore
	sessions     mw.SessionSource
	errorHandler *ErrorHandler
	logger       *slog.Logger
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(
	store ports.TicketStore,
	sessions mw.SessionSource,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *TicketHandler {
	return &TicketHandler{
		store:        store,
		sessions:     sessions,
		errorHandler: errorHandler,
		logger:       logger.With("handler", "tickets"),
	}
}

// RegisterRoutes registers the /tickets routes.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListTickets)
	r.Post("/", h.HandleCreateTicket)
	r.Get("/{id}", h.HandleGetTicket)
	r.Patch("/{id}", h.HandleUpdateTicket)
	r.Post("/{id}/cancel", h.HandleCancelTicket)
}

// HandleListTickets handles GET /tickets. The query selects the view.
func (h *TicketHandler) HandleListTickets(w http.ResponseWriter, r *http.Request) {
	filter, err := validation.ParseFilter(r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteList(w, domain.ApplyFilter(h.store.Snapshot(), filter))
}

// HandleSummary handles GET /summary.
func (h *TicketHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, domain.Summarize(h.store.Snapshot()))
}

// HandleReload handles POST /reload.
func (h *TicketHandler) HandleReload(w http.ResponseWriter, r *http.Request) {
	if HandleError(w, r, h.store.Reload(r.Context()), h.errorHandler) {
		return
	}
	WriteSuccess(w, domain.Summarize(h.store.Snapshot()))
}

// CreateTicketRequest is the body of POST /tickets.
type CreateTicketRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	SubmittedBy      string   `json:"submitted_by"`
	Status           string   `json:"status"`
	Priority         string   `json:"priority"`
	CC               []string `json:"cc"`
	Location         string   `json:"location"`
	CustomerImpacted *bool    `json:"customer_impacted"`
}

func (req CreateTicketRequest) validate() error {
	v := validation.NewValidator().
		Required("title", req.Title).
		MaxLength("title", req.Title, domain.MaxTitleLength).
		Required("description", req.Description).
		MaxLength("description", req.Description, domain.MaxDescriptionLength).
		Email("submitted_by", strings.TrimSpace(req.SubmittedBy))
	for _, addr := range req.CC {
		v.Email("cc", strings.TrimSpace(addr))
	}
	return v.Err()
}

// HandleCreateTicket handles POST /tickets. The submitter defaults to the
// signed-in user.
func (h *TicketHandler) HandleCreateTicket(w http.ResponseWriter, r *http.Request) {
	req, err := validation.DecodeAndValidate[CreateTicketRequest](r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.validate(), h.errorHandler) {
		return
	}

	draft := domain.TicketDraft{
		Title:            req.Title,
		Description:      req.Description,
		SubmittedBy:      req.SubmittedBy,
		CC:               req.CC,
		Location:         req.Location,
		CustomerImpacted: req.CustomerImpacted,
	}
	if strings.TrimSpace(draft.SubmittedBy) == "" {
		if session := h.sessions.Current(); session != nil {
			draft.SubmittedBy = session.Identity.Email
		}
	}
	if draft.Status, err = parseOptionalStatus(req.Status); HandleError(w, r, err, h.errorHandler) {
		return
	}
	if draft.Priority, err = parseOptionalPriority(req.Priority); HandleError(w, r, err, h.errorHandler) {
		return
	}

	created, err := h.store.Create(r.Context(), draft)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteCreated(w, created)
}

// UpdateTicketRequest is the body of PATCH /tickets/{id}. Omitted fields
// are left untouched.
type UpdateTicketRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	Priority    *string `json:"priority"`
	AssignedTo  *string `json:"assigned_to"`
	Location    *string `json:"location"`
	Response    *string `json:"response"`
	Archived    *bool   `json:"archived"`
}

func (req UpdateTicketRequest) validate() error {
	v := validation.NewValidator()
	if req.Title != nil {
		v.Required("title", *req.Title).MaxLength("title", *req.Title, domain.MaxTitleLength)
	}
	if req.Description != nil {
		v.MaxLength("description", *req.Description, domain.MaxDescriptionLength)
	}
	if req.AssignedTo != nil {
		v.Email("assigned_to", strings.TrimSpace(*req.AssignedTo))
	}
	return v.Err()
}

func (req UpdateTicketRequest) changes() (domain.Changes, error) {
	changes := domain.Changes{
		Title:       req.Title,
		Description: req.Description,
		AssignedTo:  req.AssignedTo,
		Location:    req.Location,
		Response:    req.Response,
		Archived:    req.Archived,
	}
	if req.Status != nil {
		status, ok := domain.ParseStatus(*req.Status)
		if !ok {
			return domain.Changes{}, apperrors.ErrInvalidStatus
		}
		changes.Status = &status
	}
	if req.Priority != nil {
		priority, ok := domain.ParsePriority(*req.Priority)
		if !ok {
			return domain.Changes{}, apperrors.ErrInvalidPriority
		}
		changes.Priority = &priority
	}
	return changes, nil
}

// HandleGetTicket handles GET /tickets/{id}. The fetched record replaces
// the local copy.
func (h *TicketHandler) HandleGetTicket(w http.ResponseWriter, r *http.Request) {
	id := domain.TicketID(chi.URLParam(r, "id"))

	ticket, err := h.store.Get(r.Context(), id)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteSuccess(w, ticket)
}

// HandleUpdateTicket handles PATCH /tickets/{id}.
func (h *TicketHandler) HandleUpdateTicket(w http.ResponseWriter, r *http.Request) {
	id := domain.TicketID(chi.URLParam(r, "id"))

	req, err := validation.DecodeAndValidate[UpdateTicketRequest](r)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}
	if HandleError(w, r, req.validate(), h.errorHandler) {
		return
	}
	changes, err := req.changes()
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	updated, err := h.store.Update(r.Context(), id, changes)
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteSuccess(w, updated)
}

// HandleCancelTicket handles POST /tickets/{id}/cancel.
func (h *TicketHandler) HandleCancelTicket(w http.ResponseWriter, r *http.Request) {
	id := domain.TicketID(chi.URLParam(r, "id"))

	if HandleError(w, r, h.store.Cancel(r.Context(), id), h.errorHandler) {
		return
	}

	WriteNoContent(w)
}

func parseOptionalStatus(raw string) (domain.TicketStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	status, ok := domain.ParseStatus(raw)
	if !ok {
		return "", apperrors.ErrInvalidStatus
	}
	return status, nil
}

func parseOptionalPriority(raw string) (domain.TicketPriority, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	priority, ok := domain.ParsePriority(raw)
	if !ok {
		return "", apperrors.ErrInvalidPriority
	}
	return priority, nil
}
