package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field limits enforced before a ticket is submitted.
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 10000
)

// TicketStatus represents the possible states of a ticket.
type TicketStatus string

const (
	StatusOpen       TicketStatus = "Open"
	StatusInProgress TicketStatus = "In Progress"
	StatusResolved   TicketStatus = "Resolved"
	StatusClosed     TicketStatus = "Closed"
	// StatusCanceled is the terminal state set by a submitter cancelling
	// their own ticket. It is distinct from Closed, which is an admin
	// decision.
	StatusCanceled TicketStatus = "Canceled"
)

// Statuses lists every known status in display order.
var Statuses = []TicketStatus{StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusCanceled}

// ParseStatus matches s case-insensitively against the known statuses.
// Common server spellings ("in_progress", "cancelled") are accepted.
func ParseStatus(s string) (TicketStatus, bool) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, "_", " ")
	switch normalized {
	case "open":
		return StatusOpen, true
	case "in progress", "inprogress":
		return StatusInProgress, true
	case "resolved":
		return StatusResolved, true
	case "closed":
		return StatusClosed, true
	case "canceled", "cancelled":
		return StatusCanceled, true
	}
	return "", false
}

// IsValid reports whether the status is one of the enumerated values.
func (s TicketStatus) IsValid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsCompleted reports whether the status belongs to the "completed" view.
func (s TicketStatus) IsCompleted() bool {
	status, ok := ParseStatus(string(s))
	return ok && (status == StatusResolved || status == StatusClosed)
}

// IsOutstanding reports whether the status belongs to the default view.
func (s TicketStatus) IsOutstanding() bool {
	status, ok := ParseStatus(string(s))
	return ok && (status == StatusOpen || status == StatusInProgress)
}

// TicketPriority represents the urgency of a ticket.
type TicketPriority string

const (
	PriorityLow    TicketPriority = "Low"
	PriorityMedium TicketPriority = "Medium"
	PriorityHigh   TicketPriority = "High"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []TicketPriority{PriorityLow, PriorityMedium, PriorityHigh}

// IsValid reports whether the priority is one of the enumerated values.
func (p TicketPriority) IsValid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePriority matches s case-insensitively against the known priorities.
func ParsePriority(s string) (TicketPriority, bool) {
	normalized := strings.TrimSpace(s)
	for _, known := range Priorities {
		if strings.EqualFold(normalized, string(known)) {
			return known, true
		}
	}
	return "", false
}

// Rank orders priorities; unknown values rank 0.
func (p TicketPriority) Rank() int {
	switch strings.ToLower(string(p)) {
	case "low":
		return 1
	case "medium":
		return 2
	case "high":
		return 3
	}
	return 0
}

// TicketID is the server-assigned identifier. The API has been seen to
// send it both as a JSON number and as a string.
type TicketID string

func (id *TicketID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TicketID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("ticket id: %w", err)
	}
	*id = TicketID(n.String())
	return nil
}

// IsLocal reports whether the ID is a client-side placeholder.
func (id TicketID) IsLocal() bool {
	return strings.HasPrefix(string(id), LocalIDPrefix)
}

// LocalIDPrefix marks placeholder IDs minted before the server confirms a
// creation.
const LocalIDPrefix = "local-"

// Timestamp decodes the handful of time layouts the API emits. Null and
// empty strings decode to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] != '"' {
		seconds, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		t.Time = time.Unix(0, int64(seconds*float64(time.Second))).UTC()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized layout %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t Timestamp) MarshalYAML() (interface{}, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.Time.Format(time.RFC3339), nil
}

// FileRef points at an uploaded screenshot or attachment.
type FileRef struct {
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	URL  string `json:"url" yaml:"url"`
}

func (f *FileRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &f.URL)
	}
	type plain FileRef
	return json.Unmarshal(data, (*plain)(f))
}

// Ticket is the client-side copy of a ticket record.
type Ticket struct {
	ID               TicketID       `json:"id" yaml:"id"`
	Title            string         `json:"title" yaml:"title"`
	Description      string         `json:"description" yaml:"description"`
	Status           TicketStatus   `json:"status" yaml:"status"`
	Priority         TicketPriority `json:"priority" yaml:"priority"`
	SubmittedBy      string         `json:"submitted_by" yaml:"submitted_by"`
	SubmitterName    string         `json:"submitted_by_name,omitempty" yaml:"submitted_by_name,omitempty"`
	AssignedTo       string         `json:"assigned_to,omitempty" yaml:"assigned_to,omitempty"`
	Location         string         `json:"location,omitempty" yaml:"location,omitempty"`
	CustomerImpacted *bool          `json:"customer_impacted,omitempty" yaml:"customer_impacted,omitempty"`
	Response         string         `json:"response,omitempty" yaml:"response,omitempty"`
	CC               []string       `json:"cc,omitempty" yaml:"cc,omitempty"`
	Archived         bool           `json:"archived" yaml:"archived"`
	CreatedAt        Timestamp      `json:"created_at" yaml:"created_at"`
	UpdatedAt        Timestamp      `json:"updated_at" yaml:"updated_at"`
	Screenshots      []FileRef      `json:"screenshots,omitempty" yaml:"screenshots,omitempty"`
	Attachments      []FileRef      `json:"attachments,omitempty" yaml:"attachments,omitempty"`

	// Pending marks a local placeholder awaiting server confirmation.
	Pending bool `json:"pending,omitempty" yaml:"pending,omitempty"`
}

// UnmarshalJSON also accepts the display name under submitter_name.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	type plain Ticket
	aux := struct {
		*plain
		AltSubmitterName string `json:"submitter_name"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if t.SubmitterName == "" {
		t.SubmitterName = aux.AltSubmitterName
	}
	return nil
}

// BucketKey is the lower-cased status used to group tickets.
type BucketKey string

const (
	BucketOpen       BucketKey = "open"
	BucketInProgress BucketKey = "in progress"
	BucketResolved   BucketKey = "resolved"
)

// ActiveBuckets lists the status buckets in display order.
var ActiveBuckets = []BucketKey{BucketOpen, BucketInProgress, BucketResolved}

// BucketKeyOf derives the grouping key from a raw status value.
func BucketKeyOf(status TicketStatus) BucketKey {
	if parsed, ok := ParseStatus(string(status)); ok {
		return BucketKey(strings.ToLower(string(parsed)))
	}
	return BucketKey(strings.ToLower(strings.TrimSpace(string(status))))
}

// IsActive reports whether the key names one of the three active buckets.
func (k BucketKey) IsActive() bool {
	return k == BucketOpen || k == BucketInProgress || k == BucketResolved
}

// Changes is a partial update. Nil fields are left untouched.
type Changes struct {
	Title       *string         `json:"title,omitempty"`
	Description *string         `json:"description,omitempty"`
	Status      *TicketStatus   `json:"status,omitempty"`
	Priority    *TicketPriority `json:"priority,omitempty"`
	AssignedTo  *string         `json:"assigned_to,omitempty"`
	Location    *string         `json:"location,omitempty"`
	Response    *string         `json:"response,omitempty"`
	Archived    *bool           `json:"archived,omitempty"`
}

// IsEmpty reports whether no field is set.
func (c Changes) IsEmpty() bool {
	return c.Title == nil && c.Description == nil && c.Status == nil &&
		c.Priority == nil && c.AssignedTo == nil && c.Location == nil &&
		c.Response == nil && c.Archived == nil
}

// ApplyTo returns a copy of t with the changes applied.
func (c Changes) ApplyTo(t Ticket) Ticket {
	if c.Title != nil {
		t.Title = *c.Title
	}
	if c.Description != nil {
		t.Description = *c.Description
	}
	if c.Status != nil {
		t.Status = *c.Status
	}
	if c.Priority != nil {
		t.Priority = *c.Priority
	}
	if c.AssignedTo != nil {
		t.AssignedTo = *c.AssignedTo
	}
	if c.Location != nil {
		t.Location = *c.Location
	}
	if c.Response != nil {
		t.Response = *c.Response
	}
	if c.Archived != nil {
		t.Archived = *c.Archived
	}
	return t
}

// Complete fills the fields a server record left out from base, the copy
// the client already holds. Required fields are filled whenever empty. A
// record without a title is an echo of the changed fields only, so its
// optional fields and archive flag are taken from base as well.
func (t Ticket) Complete(base Ticket) Ticket {
	partial := t.Title == ""

	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&t.Title, base.Title)
	fill(&t.Description, base.Description)
	fill((*string)(&t.Status), string(base.Status))
	fill((*string)(&t.Priority), string(base.Priority))
	fill(&t.SubmittedBy, base.SubmittedBy)
	fill(&t.SubmitterName, base.SubmitterName)
	if t.ID == "" {
		t.ID = base.ID
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = base.CreatedAt
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = base.UpdatedAt
	}
	if !partial {
		return t
	}

	fill(&t.AssignedTo, base.AssignedTo)
	fill(&t.Location, base.Location)
	fill(&t.Response, base.Response)
	if t.CustomerImpacted == nil {
		t.CustomerImpacted = base.CustomerImpacted
	}
	if t.CC == nil {
		t.CC = base.CC
	}
	if t.Screenshots == nil {
		t.Screenshots = base.Screenshots
	}
	if t.Attachments == nil {
		t.Attachments = base.Attachments
	}
	t.Archived = t.Archived || base.Archived
	return t
}

// Assignee is an identity tickets can be assigned to.
type Assignee struct {
	Email     string `json:"email" yaml:"email"`
	FirstName string `json:"first_name,omitempty" yaml:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Role      string `json:"role,omitempty" yaml:"role,omitempty"`
}

// DisplayName prefers the full name and falls back to the email.
func (a Assignee) DisplayName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Email
	}
	return name
}
