package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// AssigneeRole is the role whose members can own tickets.
const AssigneeRole = "Admin"

// AssigneeService lists the identities tickets can be assigned to.
type AssigneeService struct {
	api ports.TicketAPI
}

var _ ports.AssigneeService = (*AssigneeService)(nil)

// NewAssigneeService creates a new assignee service.
func NewAssigneeService(api ports.TicketAPI) *AssigneeService {
	return &AssigneeService{api: api}
}

// ListAssignees returns the assignable users without duplicates, in the
// order the API lists them.
func (s *AssigneeService) ListAssignees(ctx context.Context) ([]domain.Assignee, error) {
	users, err := s.api.ListUsers(ctx, AssigneeRole)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}

	seen := make(map[string]struct{}, len(users))
	out := make([]domain.Assignee, 0, len(users))
	for _, u := range users {
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}
