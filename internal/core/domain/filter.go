package domain

import (
	"sort"
	"strings"
)

// SortField selects the column a filtered view is ordered by.
type SortField string

const (
	SortNone     SortField = ""
	SortCreated  SortField = "created"
	SortUpdated  SortField = "updated"
	SortPriority SortField = "priority"
	SortStatus   SortField = "status"
	SortTitle    SortField = "title"
)

// SortFields lists the accepted sort fields.
var SortFields = []SortField{SortCreated, SortUpdated, SortPriority, SortStatus, SortTitle}

// IsValid reports whether the field is empty or one of SortFields.
func (f SortField) IsValid() bool {
	if f == SortNone {
		return true
	}
	for _, known := range SortFields {
		if f == known {
			return true
		}
	}
	return false
}

// Filter is the ephemeral view state of a ticket table. The zero value is
// the default view: outstanding tickets in source order.
type Filter struct {
	Status        TicketStatus   `json:"status,omitempty"`
	Priority      TicketPriority `json:"priority,omitempty"`
	Submitter     string         `json:"submitter,omitempty"`
	Location      string         `json:"location,omitempty"`
	ShowArchived  bool           `json:"show_archived,omitempty"`
	ShowCompleted bool           `json:"show_completed,omitempty"`
	Sort          SortField      `json:"sort,omitempty"`
	Descending    bool           `json:"descending,omitempty"`
}

// ApplyFilter returns the tickets of c visible under f. The archived view
// reads c.Archived; every other view reads the active lists in bucket
// order. All set criteria must match. The result is a fresh slice and the
// same inputs always produce the same output.
func ApplyFilter(c Collection, f Filter) []Ticket {
	source := c.Active()
	if f.ShowArchived {
		source = c.Archived
	}

	submitter := strings.ToLower(strings.TrimSpace(f.Submitter))
	location := strings.ToLower(strings.TrimSpace(f.Location))

	out := make([]Ticket, 0, len(source))
	for _, t := range source {
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if submitter != "" && !matchesSubmitter(t, submitter) {
			continue
		}
		if location != "" && !containsFold(t.Location, location) {
			continue
		}
		if !inViewMode(t, f) {
			continue
		}
		out = append(out, t)
	}

	if f.Sort != SortNone {
		sortTickets(out, f.Sort, f.Descending)
	}
	return out
}

func inViewMode(t Ticket, f Filter) bool {
	switch {
	case f.ShowArchived:
		return t.Archived
	case f.ShowCompleted:
		return t.Status.IsCompleted()
	default:
		return t.Status.IsOutstanding()
	}
}

func matchesSubmitter(t Ticket, needle string) bool {
	return containsFold(t.SubmittedBy, needle) || containsFold(t.SubmitterName, needle)
}

// containsFold expects needle already lower-cased and non-empty.
func containsFold(haystack, needle string) bool {
	if haystack == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), needle)
}

func sortTickets(tickets []Ticket, field SortField, descending bool) {
	less := func(a, b Ticket) bool {
		switch field {
		case SortCreated:
			return a.CreatedAt.Before(b.CreatedAt.Time)
		case SortUpdated:
			return a.UpdatedAt.Before(b.UpdatedAt.Time)
		case SortPriority:
			return a.Priority.Rank() < b.Priority.Rank()
		case SortStatus:
			return statusRank(a.Status) < statusRank(b.Status)
		case SortTitle:
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
		return false
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		if descending {
			return less(tickets[j], tickets[i])
		}
		return less(tickets[i], tickets[j])
	})
}

func statusRank(s TicketStatus) int {
	parsed, ok := ParseStatus(string(s))
	if !ok {
		return len(Statuses)
	}
	for i, known := range Statuses {
		if parsed == known {
			return i
		}
	}
	return len(Statuses)
}

// UniqueSubmitters returns the distinct submitter emails of tickets in
// first-seen order, for populating a submitter picker.
func UniqueSubmitters(tickets []Ticket) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range tickets {
		key := strings.ToLower(t.SubmittedBy)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t.SubmittedBy)
	}
	return out
}
