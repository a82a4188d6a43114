package services_test

import (
	"context"
	"testing"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/lorrc/helpdesk-client/internal/core/mocks"
	"github.com/lorrc/helpdesk-client/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssigneeService_ListAssignees(t *testing.T) {
	ctx := context.Background()

	t.Run("dedupes by email", func(t *testing.T) {
		api := mocks.NewMockTicketAPI()
		api.On("ListUsers", ctx, services.AssigneeRole).Return([]domain.Assignee{
			{Email: "ann@corp.io", FirstName: "Ann"},
			{Email: "ANN@corp.io"},
			{Email: ""},
			{Email: "bob@corp.io"},
		}, nil)

		got, err := services.NewAssigneeService(api).ListAssignees(ctx)

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Ann", got[0].DisplayName())
		assert.Equal(t, "bob@corp.io", got[1].DisplayName())
		api.AssertExpectations(t)
	})

	t.Run("error is wrapped", func(t *testing.T) {
		api := mocks.NewMockTicketAPI()
		api.On("ListUsers", ctx, services.AssigneeRole).Return(nil, transportErr())

		_, err := services.NewAssigneeService(api).ListAssignees(ctx)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "list assignees")
	})
}
