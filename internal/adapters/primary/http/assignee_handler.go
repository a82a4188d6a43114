package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// AssigneeDTO represents a user that can be assigned to tickets.
type AssigneeDTO struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role,omitempty"`
}

// AssigneeHandler handles HTTP requests for assignable users.
type AssigneeHandler struct {
	assigneeService ports.AssigneeService
	errorHandler    *ErrorHandler
	logger          *slog.Logger
}

// NewAssigneeHandler creates a new AssigneeHandler.
func NewAssigneeHandler(
	assigneeService ports.AssigneeService,
	errorHandler *ErrorHandler,
	logger *slog.Logger,
) *AssigneeHandler {
	return &AssigneeHandler{
		assigneeService: assigneeService,
		errorHandler:    errorHandler,
		logger:          logger.With("handler", "assignees"),
	}
}

// RegisterRoutes registers the /assignees routes.
func (h *AssigneeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleListAssignees)
}

// HandleListAssignees handles GET /assignees.
func (h *AssigneeHandler) HandleListAssignees(w http.ResponseWriter, r *http.Request) {
	users, err := h.assigneeService.ListAssignees(r.Context())
	if HandleError(w, r, err, h.errorHandler) {
		return
	}

	WriteList(w, mapAssignees(users))
}

func mapAssignees(users []domain.Assignee) []AssigneeDTO {
	assignees := make([]AssigneeDTO, 0, len(users))
	for _, user := range users {
		assignees = append(assignees, AssigneeDTO{
			Email:    user.Email,
			FullName: user.DisplayName(),
			Role:     user.Role,
		})
	}
	return assignees
}
