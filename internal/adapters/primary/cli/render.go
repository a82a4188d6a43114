package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/lorrc/helpdesk-client/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Format selects how results are written.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json or yaml in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", Usagef("unknown output format %q (want table, json or yaml)", s)
}

// Renderer writes command results. Table output styles badges for the
// terminal behind out; a pipe or file gets plain text.
type Renderer struct {
	out    io.Writer
	format Format
	styles styles
}

type styles struct {
	header   lipgloss.Style
	faint    lipgloss.Style
	status   map[domain.BucketKey]lipgloss.Style
	other    lipgloss.Style
	priority map[domain.TicketPriority]lipgloss.Style
	pending  lipgloss.Style
}

// NewRenderer writes to out in format.
func NewRenderer(out io.Writer, format Format) *Renderer {
	r := lipgloss.NewRenderer(out)
	color := func(c string) lipgloss.Style { return r.NewStyle().Foreground(lipgloss.Color(c)) }

	return &Renderer{
		out:    out,
		format: format,
		styles: styles{
			header: r.NewStyle().Bold(true),
			faint:  color("245"),
			status: map[domain.BucketKey]lipgloss.Style{
				domain.BucketOpen:       color("75").Bold(true),
				domain.BucketInProgress: color("220").Bold(true),
				domain.BucketResolved:   color("78").Bold(true),
			},
			other: color("245"),
			priority: map[domain.TicketPriority]lipgloss.Style{
				domain.PriorityLow:    color("245"),
				domain.PriorityMedium: color("214"),
				domain.PriorityHigh:   color("196").Bold(true),
			},
			pending: color("245").Italic(true),
		},
	}
}

// Format reports the output format.
func (r *Renderer) Format() Format { return r.format }

// Tickets writes a ticket list.
func (r *Renderer) Tickets(tickets []domain.Ticket) error {
	if done, err := r.structured(tickets); done {
		return err
	}
	if len(tickets) == 0 {
		_, err := fmt.Fprintln(r.out, r.styles.faint.Render("No tickets."))
		return err
	}

	t := newTable("ID", "STATUS", "PRIORITY", "TITLE", "SUBMITTER", "ASSIGNED", "UPDATED")
	for _, tk := range tickets {
		id := plain(tk.ID)
		if tk.Pending {
			id = styled("pending", r.styles.pending)
		}
		t.row(
			id,
			styled(string(tk.Status), r.statusStyle(tk.Status)),
			styled(string(tk.Priority), r.priorityStyle(tk.Priority)),
			plain(truncate(tk.Title, 48)),
			plain(tk.SubmittedBy),
			plain(tk.AssignedTo),
			styled(formatTime(tk.UpdatedAt.Time), r.styles.faint),
		)
	}
	return t.write(r.out, r.styles.header)
}

// Ticket writes a single ticket.
func (r *Renderer) Ticket(tk domain.Ticket) error {
	if done, err := r.structured(tk); done {
		return err
	}

	lines := []struct{ label, value string }{
		{"ID", string(tk.ID)},
		{"Title", tk.Title},
		{"Status", r.statusStyle(tk.Status).Render(string(tk.Status))},
		{"Priority", r.priorityStyle(tk.Priority).Render(string(tk.Priority))},
		{"Submitted by", submitter(tk)},
		{"Assigned to", tk.AssignedTo},
		{"Location", tk.Location},
		{"CC", strings.Join(tk.CC, ", ")},
		{"Created", formatTime(tk.CreatedAt.Time)},
		{"Updated", formatTime(tk.UpdatedAt.Time)},
	}
	for _, f := range tk.Screenshots {
		lines = append(lines, struct{ label, value string }{"Screenshot", f.URL})
	}
	for _, f := range tk.Attachments {
		lines = append(lines, struct{ label, value string }{"Attachment", f.URL})
	}
	for _, l := range lines {
		if l.value == "" {
			continue
		}
		if _, err := fmt.Fprintf(r.out, "%s %s\n", r.styles.header.Render(padRight(l.label+":", 13)), l.value); err != nil {
			return err
		}
	}
	if tk.Description != "" {
		if _, err := fmt.Fprintf(r.out, "\n%s\n", tk.Description); err != nil {
			return err
		}
	}
	if tk.Response != "" {
		if _, err := fmt.Fprintf(r.out, "\n%s\n%s\n", r.styles.header.Render("Response:"), tk.Response); err != nil {
			return err
		}
	}
	return nil
}

func submitter(tk domain.Ticket) string {
	if tk.SubmitterName == "" {
		return tk.SubmittedBy
	}
	return fmt.Sprintf("%s <%s>", tk.SubmitterName, tk.SubmittedBy)
}

// Summary writes the dashboard counters.
func (r *Renderer) Summary(s domain.Summary) error {
	if done, err := r.structured(s); done {
		return err
	}

	t := newTable("STATUS", "COUNT", "SHARE")
	t.row(styled("Open", r.styles.status[domain.BucketOpen]), plain(s.Open), plainf("%.1f%%", s.OpenPercent))
	t.row(styled("In Progress", r.styles.status[domain.BucketInProgress]), plain(s.InProgress), plainf("%.1f%%", s.InProgressPercent))
	t.row(styled("Resolved", r.styles.status[domain.BucketResolved]), plain(s.Resolved), plainf("%.1f%%", s.ResolvedPercent))
	t.row(styled("Total", r.styles.header), plain(s.Total), plain(""))
	t.row(styled("Other", r.styles.other), plain(s.Other), plain(""))
	t.row(styled("Archived", r.styles.other), plain(s.Archived), plain(""))
	return t.write(r.out, r.styles.header)
}

// Assignees writes the assignable users.
func (r *Renderer) Assignees(assignees []domain.Assignee) error {
	if done, err := r.structured(assignees); done {
		return err
	}

	t := newTable("NAME", "EMAIL", "ROLE")
	for _, a := range assignees {
		t.row(plain(a.DisplayName()), plain(a.Email), styled(a.Role, r.styles.faint))
	}
	return t.write(r.out, r.styles.header)
}

// Identity writes who the session belongs to.
func (r *Renderer) Identity(s *domain.Session) error {
	type whoami struct {
		Email     string      `json:"email" yaml:"email"`
		Role      domain.Role `json:"role" yaml:"role"`
		Company   string      `json:"company,omitempty" yaml:"company,omitempty"`
		ExpiresAt *time.Time  `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
	}
	w := whoami{Email: s.Identity.Email, Role: s.Identity.Role, Company: s.Identity.Company}
	if !s.ExpiresAt.IsZero() {
		w.ExpiresAt = &s.ExpiresAt
	}
	if done, err := r.structured(w); done {
		return err
	}

	line := fmt.Sprintf("%s (%s)", r.styles.header.Render(w.Email), w.Role)
	if w.Company != "" {
		line += " " + w.Company
	}
	if w.ExpiresAt != nil {
		line += r.styles.faint.Render(", session expires " + formatTime(*w.ExpiresAt))
	}
	_, err := fmt.Fprintln(r.out, line)
	return err
}

// Line writes a plain message.
func (r *Renderer) Line(format string, args ...any) error {
	_, err := fmt.Fprintf(r.out, format+"\n", args...)
	return err
}

// structured writes v as JSON or YAML. Nil slices are written as empty
// lists.
func (r *Renderer) structured(v any) (bool, error) {
	switch r.format {
	case FormatJSON:
		encoder := json.NewEncoder(r.out)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(normalizeNilSlice(v))
	case FormatYAML:
		encoder := yaml.NewEncoder(r.out)
		encoder.SetIndent(2)
		if err := encoder.Encode(normalizeNilSlice(v)); err != nil {
			return true, err
		}
		return true, encoder.Close()
	}
	return false, nil
}

func (r *Renderer) statusStyle(status domain.TicketStatus) lipgloss.Style {
	if style, ok := r.styles.status[domain.BucketKeyOf(status)]; ok {
		return style
	}
	return r.styles.other
}

func (r *Renderer) priorityStyle(p domain.TicketPriority) lipgloss.Style {
	if style, ok := r.styles.priority[p]; ok {
		return style
	}
	return r.styles.other
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}

// cell is a table value; a nil style writes the raw text.
type cell struct {
	text  string
	style *lipgloss.Style
}

func plain(v any) cell { return cell{text: fmt.Sprint(v)} }

func plainf(format string, args ...any) cell { return cell{text: fmt.Sprintf(format, args...)} }

func styled(text string, style lipgloss.Style) cell { return cell{text: text, style: &style} }

// table pads on the raw text before styling so escape codes do not skew
// the columns.
type table struct {
	headers []string
	rows    [][]cell
	widths  []int
}

func newTable(headers ...string) *table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	return &table{headers: headers, widths: widths}
}

func (t *table) row(cells ...cell) {
	for i, c := range cells {
		if w := lipgloss.Width(c.text); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, cells)
}

func (t *table) write(out io.Writer, header lipgloss.Style) error {
	var b strings.Builder
	last := len(t.headers) - 1
	for i, h := range t.headers {
		b.WriteString(header.Render(t.pad(h, i, last)))
	}
	b.WriteString("\n")
	for _, row := range t.rows {
		for i, c := range row {
			text := t.pad(c.text, i, last)
			if c.style != nil {
				text = c.style.Render(text)
			}
			b.WriteString(text)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(out, trimLineEnds(b.String()))
	return err
}

func (t *table) pad(s string, col, last int) string {
	if col == last {
		return s
	}
	return padRight(s, t.widths[col]+3)
}

func padRight(s string, width int) string {
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}

func trimLineEnds(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04")
}
