package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleTickets() []domain.Ticket {
	return []domain.Ticket{
		{ID: "17", Title: "Printer jammed", Status: domain.StatusOpen, Priority: domain.PriorityHigh, SubmittedBy: "ann@corp.example"},
		{ID: "local-abc", Title: "New laptop", Status: domain.StatusInProgress, Priority: domain.PriorityLow, SubmittedBy: "bob@corp.example", AssignedTo: "kim@corp.example", Pending: true},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "TABLE": FormatTable, "json": FormatJSON, " yaml ": FormatYAML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("xml")
	var usage *ErrUsage
	assert.ErrorAs(t, err, &usage)
}

func TestRenderer_TicketsTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, FormatTable).Tickets(sampleTickets()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	header := lines[0]
	assert.True(t, strings.HasPrefix(header, "ID"))
	statusCol := strings.Index(header, "STATUS")
	assignedCol := strings.Index(header, "ASSIGNED")

	assert.Equal(t, statusCol, strings.Index(lines[1], "Open"), "columns line up")
	assert.Equal(t, statusCol, strings.Index(lines[2], "In Progress"))
	assert.Equal(t, assignedCol, strings.Index(lines[2], "kim@corp.example"))
	assert.True(t, strings.HasPrefix(lines[2], "pending"), "placeholders show as pending")
	assert.NotContains(t, buf.String(), "\x1b[", "no escape codes off a terminal")
}

func TestRenderer_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, FormatTable).Tickets(nil))
	assert.Equal(t, "No tickets.\n", buf.String())
}

func TestRenderer_Structured(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewRenderer(&buf, FormatJSON).Tickets(sampleTickets()))

		var decoded []domain.Ticket
		require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, domain.TicketID("17"), decoded[0].ID)
	})

	t.Run("json nil list", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewRenderer(&buf, FormatJSON).Assignees(nil))
		assert.Equal(t, "[]\n", buf.String())
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewRenderer(&buf, FormatYAML).Summary(domain.Summary{Open: 5, Total: 8, OpenPercent: 62.5}))

		var decoded map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
		assert.Equal(t, 5, decoded["open"])
		assert.Equal(t, 62.5, decoded["open_percent"])
	})
}

func TestRenderer_Summary(t *testing.T) {
	var buf bytes.Buffer
	s := domain.Summary{Open: 1, InProgress: 1, Resolved: 2, Total: 4, OpenPercent: 25, InProgressPercent: 25, ResolvedPercent: 50, Archived: 3}
	require.NoError(t, NewRenderer(&buf, FormatTable).Summary(s))

	out := buf.String()
	assert.Contains(t, out, "50.0%")
	assert.Regexp(t, `Archived\s+3`, out)
	assert.Regexp(t, `Total\s+4`, out)
}

func TestRenderer_Identity(t *testing.T) {
	session := &domain.Session{
		Identity:  domain.Identity{Email: "ann@corp.example", Role: domain.RoleManager, Company: "Corp"},
		ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	var buf bytes.Buffer
	require.NoError(t, NewRenderer(&buf, FormatTable).Identity(session))
	assert.Contains(t, buf.String(), "ann@corp.example (manager) Corp")
	assert.Contains(t, buf.String(), "session expires")

	buf.Reset()
	require.NoError(t, NewRenderer(&buf, FormatJSON).Identity(session))
	assert.JSONEq(t, `{"email":"ann@corp.example","role":"manager","company":"Corp","expires_at":"2030-01-01T00:00:00Z"}`, buf.String())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}

func TestRenderer_TicketDetail(t *testing.T) {
	var buf bytes.Buffer
	tk := domain.Ticket{
		ID:            "17",
		Title:         "Printer jammed",
		Description:   "Paper stuck in tray 2",
		Status:        domain.StatusResolved,
		Priority:      domain.PriorityHigh,
		SubmittedBy:   "ann@corp.example",
		SubmitterName: "Ann Lee",
		Response:      "Cleared the tray",
		Attachments:   []domain.FileRef{{Name: "log.txt", URL: "https://files.corp.example/log.txt"}},
	}

	require.NoError(t, NewRenderer(&buf, FormatTable).Ticket(tk))

	out := buf.String()
	assert.Contains(t, out, "Ann Lee <ann@corp.example>")
	assert.Contains(t, out, "https://files.corp.example/log.txt")
	assert.Contains(t, out, "Paper stuck in tray 2")
	assert.Contains(t, out, "Cleared the tray")
	assert.NotContains(t, out, "Location:", "empty fields are left out")
}
