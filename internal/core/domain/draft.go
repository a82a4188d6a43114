package domain

import (
	"strings"

	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
)

// UploadKind tells the API which list an uploaded file belongs to.
type UploadKind string

const (
	UploadScreenshot UploadKind = "screenshots"
	UploadAttachment UploadKind = "attachments"
)

// Upload is a file sent with a new ticket.
type Upload struct {
	Kind        UploadKind
	Name        string
	ContentType string
	Content     []byte
}

// TicketDraft is what a submitter fills in to open a ticket.
type TicketDraft struct {
	Title            string
	Description      string
	SubmittedBy      string
	Status           TicketStatus
	Priority         TicketPriority
	CC               []string
	Location         string
	CustomerImpacted *bool
	Uploads          []Upload
}

// Normalize trims text fields and applies the Open/Medium defaults.
func (d TicketDraft) Normalize() TicketDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.SubmittedBy = strings.TrimSpace(d.SubmittedBy)
	d.Location = strings.TrimSpace(d.Location)
	if d.Status == "" {
		d.Status = StatusOpen
	}
	if d.Priority == "" {
		d.Priority = PriorityMedium
	}
	cc := make([]string, 0, len(d.CC))
	for _, addr := range d.CC {
		if addr = strings.TrimSpace(addr); addr != "" {
			cc = append(cc, addr)
		}
	}
	d.CC = cc
	return d
}

// Validate expects a normalized draft.
func (d TicketDraft) Validate() error {
	errs := apperrors.NewValidationErrors()

	if d.Title == "" {
		errs.Add("title", apperrors.ErrTitleRequired.Error())
	} else if len(d.Title) > MaxTitleLength {
		errs.Add("title", apperrors.ErrTitleTooLong.Error())
	}
	if d.Description == "" {
		errs.Add("description", "description is required")
	} else if len(d.Description) > MaxDescriptionLength {
		errs.Add("description", apperrors.ErrDescriptionTooLong.Error())
	}
	validateEmail(errs, "submitted_by", d.SubmittedBy)
	if !d.Priority.IsValid() {
		errs.Add("priority", apperrors.ErrInvalidPriority.Error())
	}
	if !d.Status.IsValid() {
		errs.Add("status", apperrors.ErrInvalidStatus.Error())
	}
	for _, addr := range d.CC {
		if !IsValidEmail(addr) {
			errs.Add("cc", "Invalid email format: "+addr)
		}
	}
	for _, u := range d.Uploads {
		if u.Name == "" {
			errs.Add(string(u.Kind), "file name is required")
		}
		if u.Kind != UploadScreenshot && u.Kind != UploadAttachment {
			errs.Add("uploads", "unknown upload kind "+string(u.Kind))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// HasUploads reports whether the draft must be sent as multipart.
func (d TicketDraft) HasUploads() bool {
	return len(d.Uploads) > 0
}

// Placeholder builds the pending ticket shown until the server confirms.
func (d TicketDraft) Placeholder(id TicketID, now Timestamp) Ticket {
	t := Ticket{
		ID:               id,
		Title:            d.Title,
		Description:      d.Description,
		Status:           d.Status,
		Priority:         d.Priority,
		SubmittedBy:      d.SubmittedBy,
		Location:         d.Location,
		CustomerImpacted: d.CustomerImpacted,
		CreatedAt:        now,
		UpdatedAt:        now,
		Pending:          true,
	}
	if len(d.CC) > 0 {
		t.CC = append([]string(nil), d.CC...)
	}
	return t
}
