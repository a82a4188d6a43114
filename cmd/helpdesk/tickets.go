package main

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/lorrc/helpdesk-client/internal/adapters/primary/cli"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/services"
	"github.com/spf13/pflag"
)

func (e *env) listCommand() *cli.Command {
	var status, priority, sort string
	var filter domain.Filter
	return &cli.Command{
		Name:    "list",
		Summary: "List your tickets, or every ticket for managers and admins",
		Flags: func() *pflag.FlagSet {
			fs := e.flags("list")
			fs.StringVar(&status, "status", "", "only this status")
			fs.StringVar(&priority, "priority", "", "only this priority (Low|Medium|High)")
			fs.StringVar(&filter.Submitter, "submitter", "", "submitter email contains")
			fs.StringVar(&filter.Location, "location", "", "location contains")
			fs.BoolVar(&filter.ShowArchived, "archived", false, "show archived tickets instead")
			fs.BoolVar(&filter.ShowCompleted, "completed", false, "show resolved and closed tickets instead")
			fs.StringVar(&sort, "sort", "", "sort by created|updated|priority|status|title")
			fs.BoolVar(&filter.Descending, "desc", false, "sort descending")
			return fs
		},
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			if status != "" {
				s, ok := domain.ParseStatus(status)
				if !ok {
					return cli.Usagef("unknown status %q", status)
				}
				filter.Status = s
			}
			if priority != "" {
				p, ok := domain.ParsePriority(priority)
				if !ok {
					return cli.Usagef("unknown priority %q", priority)
				}
				filter.Priority = p
			}
			filter.Sort = domain.SortField(strings.ToLower(sort))
			if !filter.Sort.IsValid() {
				return cli.Usagef("unknown sort field %q", sort)
			}

			store, _, err := a.loadStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			return a.render.Tickets(domain.ApplyFilter(store.Snapshot(), filter))
		}),
	}
}

func (e *env) summaryCommand() *cli.Command {
	return &cli.Command{
		Name:    "summary",
		Summary: "Show dashboard counts (admins only)",
		Flags:   func() *pflag.FlagSet { return e.flags("summary") },
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			store, session, err := a.loadStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if domain.ResolveView(session, domain.ViewDashboard, a.clock.Now()) != domain.ViewDashboard {
				return apperrors.NewForbiddenError("The dashboard is for admins")
			}
			return a.render.Summary(domain.Summarize(store.Snapshot()))
		}),
	}
}

func (e *env) createCommand() *cli.Command {
	var draft domain.TicketDraft
	var priority, status string
	var impacted bool
	var screenshots, attachments []string
	var fs *pflag.FlagSet
	return &cli.Command{
		Name:    "create",
		Summary: "Open a ticket",
		Flags: func() *pflag.FlagSet {
			fs = e.flags("create")
			fs.StringVar(&draft.Title, "title", "", "ticket title")
			fs.StringVar(&draft.Description, "description", "", "what is wrong")
			fs.StringVar(&draft.SubmittedBy, "submitter", "", "submitter email (defaults to yours)")
			fs.StringVar(&priority, "priority", "", "Low|Medium|High (default Medium)")
			fs.StringVar(&status, "status", "", "initial status (default Open)")
			fs.StringSliceVar(&draft.CC, "cc", nil, "addresses to copy, comma separated")
			fs.StringVar(&draft.Location, "location", "", "where the problem is")
			fs.BoolVar(&impacted, "customer-impacted", false, "customers are affected")
			fs.StringArrayVar(&screenshots, "screenshot", nil, "screenshot file to upload (repeatable)")
			fs.StringArrayVar(&attachments, "attachment", nil, "file to attach (repeatable)")
			return fs
		},
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			if priority != "" {
				p, ok := domain.ParsePriority(priority)
				if !ok {
					return cli.Usagef("unknown priority %q", priority)
				}
				draft.Priority = p
			}
			if status != "" {
				s, ok := domain.ParseStatus(status)
				if !ok {
					return cli.Usagef("unknown status %q", status)
				}
				draft.Status = s
			}
			if fs.Changed("customer-impacted") {
				draft.CustomerImpacted = &impacted
			}

			for _, group := range []struct {
				kind  domain.UploadKind
				paths []string
			}{
				{domain.UploadScreenshot, screenshots},
				{domain.UploadAttachment, attachments},
			} {
				for _, path := range group.paths {
					upload, err := readUpload(group.kind, path)
					if err != nil {
						return err
					}
					draft.Uploads = append(draft.Uploads, upload)
				}
			}

			store, session, err := a.loadStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if draft.SubmittedBy == "" {
				draft.SubmittedBy = session.Identity.Email
			}
			ticket, err := store.Create(withIdentity(ctx, session), draft)
			if err != nil {
				return err
			}
			return a.render.Ticket(*ticket)
		}),
	}
}

func readUpload(kind domain.UploadKind, path string) (domain.Upload, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return domain.Upload{}, fmt.Errorf("read %s: %w", kind, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	return domain.Upload{
		Kind:        kind,
		Name:        filepath.Base(path),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func (e *env) updateCommand() *cli.Command {
	var title, description, status, priority, assign, location, response string
	var archived bool
	var fs *pflag.FlagSet
	checkArgs := exactArgs(1, "helpdesk update <id> [flags]")
	return &cli.Command{
		Name:    "update",
		Summary: "Change fields of a ticket",
		Usage:   "helpdesk update <id> [flags]",
		Flags: func() *pflag.FlagSet {
			fs = e.flags("update")
			fs.StringVar(&title, "title", "", "new title")
			fs.StringVar(&description, "description", "", "new description")
			fs.StringVar(&status, "status", "", "new status")
			fs.StringVar(&priority, "priority", "", "new priority")
			fs.StringVar(&assign, "assign", "", "assignee email (empty to unassign)")
			fs.StringVar(&location, "location", "", "new location")
			fs.StringVar(&response, "response", "", "response to the submitter")
			fs.BoolVar(&archived, "archived", false, "archive or unarchive")
			return fs
		},
		Run: e.withApp(func(ctx context.Context, a *app, args []string) error {
			if err := checkArgs(args); err != nil {
				return err
			}

			var changes domain.Changes
			if fs.Changed("title") {
				changes.Title = &title
			}
			if fs.Changed("description") {
				changes.Description = &description
			}
			if fs.Changed("status") {
				s, ok := domain.ParseStatus(status)
				if !ok {
					return cli.Usagef("unknown status %q", status)
				}
				changes.Status = &s
			}
			if fs.Changed("priority") {
				p, ok := domain.ParsePriority(priority)
				if !ok {
					return cli.Usagef("unknown priority %q", priority)
				}
				changes.Priority = &p
			}
			if fs.Changed("assign") {
				changes.AssignedTo = &assign
			}
			if fs.Changed("location") {
				changes.Location = &location
			}
			if fs.Changed("response") {
				changes.Response = &response
			}
			if fs.Changed("archived") {
				changes.Archived = &archived
			}
			if changes.IsEmpty() {
				return cli.Usagef("nothing to update")
			}

			store, session, err := a.loadStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			id := domain.TicketID(args[0])
			ticket, err := store.Update(withIdentity(ctx, session), id, changes)
			if err != nil {
				return err
			}
			return a.render.Ticket(current(store, id, ticket))
		}),
	}
}

// current prefers the server's copy and falls back to the store's.
func current(store *services.TicketStore, id domain.TicketID, fromServer *domain.Ticket) domain.Ticket {
	if fromServer != nil {
		return *fromServer
	}
	t, _ := store.Snapshot().Find(id)
	return t
}

func (e *env) showCommand() *cli.Command {
	checkArgs := exactArgs(1, "helpdesk show <id>")
	return &cli.Command{
		Name:    "show",
		Summary: "Show one ticket in full",
		Usage:   "helpdesk show <id> [flags]",
		Flags:   func() *pflag.FlagSet { return e.flags("show") },
		Run: e.withApp(func(ctx context.Context, a *app, args []string) error {
			if err := checkArgs(args); err != nil {
				return err
			}
			session, err := a.requireSession(ctx)
			if err != nil {
				return err
			}
			store := services.NewTicketStore(a.api, a.storeOptions())
			defer store.Close()

			ticket, err := store.Get(withIdentity(ctx, session), domain.TicketID(args[0]))
			if err != nil {
				return err
			}
			return a.render.Ticket(*ticket)
		}),
	}
}

func (e *env) cancelCommand() *cli.Command {
	checkArgs := exactArgs(1, "helpdesk cancel <id>")
	return &cli.Command{
		Name:    "cancel",
		Summary: "Cancel one of your tickets",
		Usage:   "helpdesk cancel <id> [flags]",
		Flags:   func() *pflag.FlagSet { return e.flags("cancel") },
		Run: e.withApp(func(ctx context.Context, a *app, args []string) error {
			if err := checkArgs(args); err != nil {
				return err
			}
			store, session, err := a.loadStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Cancel(withIdentity(ctx, session), domain.TicketID(args[0])); err != nil {
				return err
			}
			return a.render.Line("Ticket %s canceled.", args[0])
		}),
	}
}

func (e *env) assigneesCommand() *cli.Command {
	return &cli.Command{
		Name:    "assignees",
		Summary: "List who tickets can be assigned to",
		Flags:   func() *pflag.FlagSet { return e.flags("assignees") },
		Run: e.withApp(func(ctx context.Context, a *app, _ []string) error {
			session, err := a.requireSession(ctx)
			if err != nil {
				return err
			}
			assignees, err := services.NewAssigneeService(a.api).ListAssignees(withIdentity(ctx, session))
			if err != nil {
				return err
			}
			return a.render.Assignees(assignees)
		}),
	}
}
