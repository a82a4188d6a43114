package domain_test

import (
	"testing"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticket(id string, status domain.TicketStatus) domain.Ticket {
	return domain.Ticket{ID: domain.TicketID(id), Title: "ticket " + id, Status: status, Priority: domain.PriorityMedium}
}

func archived(id string, status domain.TicketStatus) domain.Ticket {
	t := ticket(id, status)
	t.Archived = true
	return t
}

func ids(tickets []domain.Ticket) []domain.TicketID {
	out := make([]domain.TicketID, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, t.ID)
	}
	return out
}

func TestNewCollection(t *testing.T) {
	t.Run("partitions by status case-insensitively", func(t *testing.T) {
		c, unknown := domain.NewCollection([]domain.Ticket{
			ticket("1", "open"),
			ticket("2", "IN PROGRESS"),
			ticket("3", domain.StatusResolved),
			ticket("4", domain.StatusOpen),
			archived("5", domain.StatusClosed),
		})

		assert.Empty(t, unknown)
		assert.Equal(t, []domain.TicketID{"1", "4"}, ids(c.Open))
		assert.Equal(t, []domain.TicketID{"2"}, ids(c.InProgress))
		assert.Equal(t, []domain.TicketID{"3"}, ids(c.Resolved))
		assert.Equal(t, []domain.TicketID{"5"}, ids(c.Archived))
		assert.NoError(t, c.Validate())
	})

	t.Run("unknown status is kept in other and reported", func(t *testing.T) {
		c, unknown := domain.NewCollection([]domain.Ticket{
			ticket("1", "Escalated"),
			ticket("2", domain.StatusClosed),
		})

		assert.Equal(t, []domain.TicketID{"1", "2"}, ids(c.Other))
		assert.Equal(t, []domain.TicketID{"1"}, ids(unknown))
		assert.Equal(t, 2, c.Len())
	})

	t.Run("archived wins over active status", func(t *testing.T) {
		c, _ := domain.NewCollection([]domain.Ticket{archived("1", domain.StatusOpen)})
		assert.Empty(t, c.Open)
		assert.Equal(t, []domain.TicketID{"1"}, ids(c.Archived))
	})

	t.Run("duplicates keep the first occurrence", func(t *testing.T) {
		c, _ := domain.NewCollection([]domain.Ticket{
			ticket("1", domain.StatusOpen),
			archived("1", domain.StatusCanceled),
		})
		assert.Equal(t, 1, c.Len())
		assert.Equal(t, 1, c.Count("1"))
		assert.NoError(t, c.Validate())
	})
}

func TestCollection_Insert(t *testing.T) {
	c, _ := domain.NewCollection([]domain.Ticket{ticket("1", domain.StatusOpen), archived("9", domain.StatusClosed)})

	next := c.Insert(ticket("2", domain.StatusOpen))
	next = next.Insert(archived("3", domain.StatusCanceled))

	assert.Equal(t, []domain.TicketID{"2", "1"}, ids(next.Open))
	assert.Equal(t, []domain.TicketID{"9", "3"}, ids(next.Archived))
	assert.NoError(t, next.Validate())

	// receiver untouched
	assert.Equal(t, []domain.TicketID{"1"}, ids(c.Open))
	assert.Equal(t, []domain.TicketID{"9"}, ids(c.Archived))

	t.Run("re-inserting an existing id does not duplicate", func(t *testing.T) {
		again := next.Insert(ticket("1", domain.StatusInProgress))
		assert.Equal(t, 1, again.Count("1"))
		assert.Equal(t, []domain.TicketID{"2"}, ids(again.Open))
		assert.Equal(t, []domain.TicketID{"1"}, ids(again.InProgress))
		assert.NoError(t, again.Validate())
	})
}

func TestCollection_Upsert(t *testing.T) {
	c, _ := domain.NewCollection([]domain.Ticket{
		ticket("1", domain.StatusOpen),
		ticket("2", domain.StatusOpen),
		ticket("3", domain.StatusOpen),
		ticket("4", domain.StatusResolved),
	})

	t.Run("same bucket keeps position", func(t *testing.T) {
		changed := ticket("2", domain.StatusOpen)
		changed.Title = "renamed"
		next := c.Upsert(changed)

		require.Equal(t, []domain.TicketID{"1", "2", "3"}, ids(next.Open))
		assert.Equal(t, "renamed", next.Open[1].Title)
		assert.Equal(t, "ticket 2", c.Open[1].Title)
	})

	t.Run("status change migrates bucket", func(t *testing.T) {
		next := c.Upsert(ticket("2", domain.StatusResolved))

		assert.Equal(t, []domain.TicketID{"1", "3"}, ids(next.Open))
		assert.Equal(t, []domain.TicketID{"2", "4"}, ids(next.Resolved))
		assert.NoError(t, next.Validate())
	})

	t.Run("archiving moves to the archived list", func(t *testing.T) {
		next := c.Upsert(archived("3", domain.StatusClosed))

		assert.Equal(t, []domain.TicketID{"1", "2"}, ids(next.Open))
		assert.Equal(t, []domain.TicketID{"3"}, ids(next.Archived))
		assert.NoError(t, next.Validate())
	})

	t.Run("unknown id is inserted", func(t *testing.T) {
		next := c.Upsert(ticket("5", domain.StatusInProgress))
		assert.Equal(t, []domain.TicketID{"5"}, ids(next.InProgress))
	})
}

func TestCollection_ReplaceID(t *testing.T) {
	placeholder := ticket("local-1", domain.StatusOpen)
	placeholder.Pending = true
	c, _ := domain.NewCollection([]domain.Ticket{placeholder, ticket("1", domain.StatusOpen)})

	t.Run("placeholder swapped in place", func(t *testing.T) {
		next := c.ReplaceID("local-1", ticket("7", domain.StatusOpen))
		assert.Equal(t, []domain.TicketID{"7", "1"}, ids(next.Open))
		assert.False(t, next.Open[0].Pending)
	})

	t.Run("server id already present from a push", func(t *testing.T) {
		pushed := c.Insert(ticket("7", domain.StatusOpen))
		next := pushed.ReplaceID("local-1", ticket("7", domain.StatusOpen))

		assert.Equal(t, 1, next.Count("7"))
		assert.False(t, next.Contains("local-1"))
		assert.NoError(t, next.Validate())
	})

	t.Run("placeholder already gone", func(t *testing.T) {
		gone := c.Remove("local-1")
		next := gone.ReplaceID("local-1", ticket("7", domain.StatusOpen))
		assert.Equal(t, []domain.TicketID{"7", "1"}, ids(next.Open))
	})
}

func TestCollection_Remove(t *testing.T) {
	c, _ := domain.NewCollection([]domain.Ticket{ticket("1", domain.StatusOpen), archived("2", domain.StatusClosed)})

	next := c.Remove("1").Remove("2").Remove("missing")

	assert.Equal(t, 0, next.Len())
	assert.Equal(t, 2, c.Len())
}

func TestCollection_Find(t *testing.T) {
	c, _ := domain.NewCollection([]domain.Ticket{ticket("1", domain.StatusInProgress)})

	found, ok := c.Find("1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusInProgress, found.Status)

	place, idx := c.Locate("1")
	assert.Equal(t, domain.PlaceInProgress, place)
	assert.Equal(t, 0, idx)

	_, ok = c.Find("2")
	assert.False(t, ok)
}

func TestCollection_Active(t *testing.T) {
	c, _ := domain.NewCollection([]domain.Ticket{
		ticket("4", domain.StatusClosed),
		ticket("3", domain.StatusResolved),
		ticket("2", domain.StatusInProgress),
		ticket("1", domain.StatusOpen),
		archived("5", domain.StatusOpen),
	})

	assert.Equal(t, []domain.TicketID{"1", "2", "3", "4"}, ids(c.Active()))
}

func TestCollection_Validate(t *testing.T) {
	t.Run("duplicate across active and archived", func(t *testing.T) {
		c := domain.Collection{
			Open:     []domain.Ticket{ticket("1", domain.StatusOpen)},
			Archived: []domain.Ticket{archived("1", domain.StatusCanceled)},
		}
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ticket 1 in both open and archived")
	})

	t.Run("ticket in the wrong bucket", func(t *testing.T) {
		c := domain.Collection{Open: []domain.Ticket{ticket("1", domain.StatusResolved)}}
		err := c.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "belongs in resolved")
	})

	t.Run("empty collection is valid", func(t *testing.T) {
		assert.NoError(t, domain.Collection{}.Validate())
	})
}

func TestCollection_InvariantHoldsAcrossOperations(t *testing.T) {
	c, _ := domain.NewCollection(nil)
	statuses := []domain.TicketStatus{
		domain.StatusOpen, domain.StatusInProgress, domain.StatusResolved,
		domain.StatusClosed, domain.StatusCanceled, "Escalated",
	}

	for i := 0; i < 60; i++ {
		id := domain.TicketID(string(rune('a' + i%7)))
		tk := domain.Ticket{ID: id, Status: statuses[i%len(statuses)], Archived: i%5 == 0}
		switch i % 4 {
		case 0:
			c = c.Insert(tk)
		case 1:
			c = c.Upsert(tk)
		case 2:
			c = c.ReplaceID(id, tk)
		case 3:
			c = c.Remove(id)
		}
		require.NoError(t, c.Validate(), "step %d", i)
		for _, active := range c.Active() {
			assert.False(t, active.Archived)
		}
	}
}
