package restapi

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
)

// ListTickets calls GET /tickets?user_email=&archived=.
func (c *Client) ListTickets(ctx context.Context, params ports.ListTicketsParams) ([]domain.Ticket, error) {
	query := url.Values{}
	if params.UserEmail != "" {
		query.Set("user_email", params.UserEmail)
	}
	query.Set("archived", strconv.FormatBool(params.Archived))

	body, err := c.do(ctx, request{
		op:     "list tickets",
		method: http.MethodGet,
		path:   "/tickets",
		query:  query,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.Ticket](body, "data", "tickets", "items")
}

// GetTicket calls GET /tickets/{id}.
func (c *Client) GetTicket(ctx context.Context, id domain.TicketID) (*domain.Ticket, error) {
	body, err := c.do(ctx, request{
		op:     "get ticket",
		method: http.MethodGet,
		path:   "/tickets/" + url.PathEscape(string(id)),
		auth:   true,
	})
	if err != nil {
		return nil, err
	}

	ticket, ok, err := decodeObject[domain.Ticket](body, "data", "ticket")
	if err != nil {
		return nil, err
	}
	if !ok || ticket.ID == "" {
		return nil, apperrors.NewMalformedError(fmt.Errorf("ticket %s response has no id", id))
	}
	return &ticket, nil
}

// CreateTicket calls POST /tickets, as multipart when the draft carries
// uploads.
func (c *Client) CreateTicket(ctx context.Context, draft domain.TicketDraft) (*domain.Ticket, error) {
	var (
		req request
		err error
	)
	if draft.HasUploads() {
		req, err = multipartRequest(draft)
	} else {
		req, err = jsonRequest("create ticket", http.MethodPost, "/tickets", draftPayload(draft), true)
	}
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	created, ok, err := decodeObject[domain.Ticket](body, "data", "ticket")
	if err != nil {
		return nil, err
	}
	if !ok || created.ID == "" {
		return nil, apperrors.NewMalformedError(fmt.Errorf("created ticket has no id"))
	}
	return &created, nil
}

// UpdateTicket calls PATCH /tickets/{id} with the changed fields only.
func (c *Client) UpdateTicket(ctx context.Context, id domain.TicketID, changes domain.Changes) (*domain.Ticket, error) {
	req, err := jsonRequest("update ticket", http.MethodPatch, "/tickets/"+url.PathEscape(string(id)), changes, true)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	updated, ok, err := decodeObject[domain.Ticket](body, "data", "ticket")
	if err != nil {
		return nil, err
	}
	if !ok || updated.ID == "" {
		// acknowledged without the record
		return nil, nil
	}
	return &updated, nil
}

// CancelTicket calls POST /tickets/{id}/cancel.
func (c *Client) CancelTicket(ctx context.Context, id domain.TicketID) error {
	_, err := c.do(ctx, request{
		op:     "cancel ticket",
		method: http.MethodPost,
		path:   "/tickets/" + url.PathEscape(string(id)) + "/cancel",
		auth:   true,
	})
	return err
}

// ListUsers calls GET /users?role=.
func (c *Client) ListUsers(ctx context.Context, role string) ([]domain.Assignee, error) {
	query := url.Values{}
	if role != "" {
		query.Set("role", role)
	}

	body, err := c.do(ctx, request{
		op:     "list users",
		method: http.MethodGet,
		path:   "/users",
		query:  query,
		auth:   true,
	})
	if err != nil {
		return nil, err
	}
	return decodeList[domain.Assignee](body, "data", "users", "items")
}

type ticketPayload struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	SubmittedBy      string   `json:"submitted_by"`
	Status           string   `json:"status"`
	Priority         string   `json:"priority"`
	CC               []string `json:"cc,omitempty"`
	Location         string   `json:"location,omitempty"`
	CustomerImpacted *bool    `json:"customer_impacted,omitempty"`
}

func draftPayload(d domain.TicketDraft) ticketPayload {
	return ticketPayload{
		Title:            d.Title,
		Description:      d.Description,
		SubmittedBy:      d.SubmittedBy,
		Status:           string(d.Status),
		Priority:         string(d.Priority),
		CC:               d.CC,
		Location:         d.Location,
		CustomerImpacted: d.CustomerImpacted,
	}
}

func multipartRequest(d domain.TicketDraft) (request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"title", d.Title},
		{"description", d.Description},
		{"submitted_by", d.SubmittedBy},
		{"status", string(d.Status)},
		{"priority", string(d.Priority)},
		{"location", d.Location},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return request{}, err
		}
	}
	for _, addr := range d.CC {
		if err := w.WriteField("cc", addr); err != nil {
			return request{}, err
		}
	}
	if d.CustomerImpacted != nil {
		if err := w.WriteField("customer_impacted", strconv.FormatBool(*d.CustomerImpacted)); err != nil {
			return request{}, err
		}
	}

	for _, up := range d.Uploads {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, string(up.Kind), up.Name))
		contentType := up.ContentType
		if contentType == "" {
			contentType = http.DetectContentType(up.Content)
		}
		header.Set("Content-Type", contentType)

		part, err := w.CreatePart(header)
		if err != nil {
			return request{}, err
		}
		if _, err := part.Write(up.Content); err != nil {
			return request{}, err
		}
	}

	if err := w.Close(); err != nil {
		return request{}, err
	}

	return request{
		op:          "create ticket",
		method:      http.MethodPost,
		path:        "/tickets",
		body:        &buf,
		contentType: w.FormDataContentType(),
		auth:        true,
	}, nil
}
