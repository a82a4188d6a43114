package validation

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/lorrc/helpdesk-client/internal/core/domain"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
)

// maxBodyBytes caps decoded request bodies.
const maxBodyBytes = 1 << 20

// Validator validates request data
type Validator struct {
	errors *apperrors.ValidationErrors
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{
		errors: apperrors.NewValidationErrors(),
	}
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return v.errors.HasErrors()
}

// Errors returns the validation errors
func (v *Validator) Errors() *apperrors.ValidationErrors {
	return v.errors
}

// Err returns the validation errors, or nil when there are none
func (v *Validator) Err() error {
	if v.HasErrors() {
		return v.errors
	}
	return nil
}

// Required validates that a string is not empty
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errors.Add(field, "This field is required")
	}
	return v
}

// MaxLength validates maximum string length
func (v *Validator) MaxLength(field, value string, max int) *Validator {
	if len(value) > max {
		v.errors.Add(field, "Must be at most "+strconv.Itoa(max)+" characters")
	}
	return v
}

// Email validates email format
func (v *Validator) Email(field, value string) *Validator {
	if value != "" && !domain.IsValidEmail(value) {
		v.errors.Add(field, "Must be a valid email address")
	}
	return v
}

// OneOf validates value is one of the allowed values
func (v *Validator) OneOf(field, value string, allowed []string) *Validator {
	if value == "" {
		return v // Empty is handled by Required
	}

	for _, a := range allowed {
		if value == a {
			return v
		}
	}

	v.errors.Add(field, "Must be one of: "+strings.Join(allowed, ", "))
	return v
}

// Custom adds a custom validation
func (v *Validator) Custom(field string, valid bool, message string) *Validator {
	if !valid {
		v.errors.Add(field, message)
	}
	return v
}

// DecodeAndValidate decodes JSON request body and runs basic validation
func DecodeAndValidate[T any](r *http.Request) (*T, error) {
	var req T

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		return nil, apperrors.NewBadRequestError(err, "Invalid request body")
	}

	return &req, nil
}

// ParseFilter reads a ticket view filter from the query string. Unknown
// parameters are ignored; known ones with bad values are reported together.
//
//	status     Open | In Progress | Resolved | Closed | Canceled (any case)
//	priority   Low | Medium | High (any case)
//	submitter  substring of submitter email or name
//	location   substring of location
//	archived   bool, the archived view
//	completed  bool, the completed view
//	sort       created | updated | priority | status | title
//	order      asc | desc
func ParseFilter(r *http.Request) (domain.Filter, error) {
	q := r.URL.Query()
	v := NewValidator()
	var f domain.Filter

	if raw := q.Get("status"); raw != "" {
		status, ok := domain.ParseStatus(raw)
		v.Custom("status", ok, "Must be one of: "+joinStatuses())
		f.Status = status
	}
	if raw := q.Get("priority"); raw != "" {
		priority, ok := domain.ParsePriority(raw)
		v.Custom("priority", ok, "Must be one of: Low, Medium, High")
		f.Priority = priority
	}

	f.Submitter = strings.TrimSpace(q.Get("submitter"))
	f.Location = strings.TrimSpace(q.Get("location"))
	f.ShowArchived = parseBool(v, q.Get("archived"), "archived")
	f.ShowCompleted = parseBool(v, q.Get("completed"), "completed")

	f.Sort = domain.SortField(strings.ToLower(q.Get("sort")))
	v.Custom("sort", f.Sort.IsValid(), "Must be one of: "+joinSortFields())

	order := strings.ToLower(q.Get("order"))
	v.OneOf("order", order, []string{"asc", "desc"})
	f.Descending = order == "desc"

	if err := v.Err(); err != nil {
		return domain.Filter{}, err
	}
	return f, nil
}

func parseBool(v *Validator, raw, field string) bool {
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	v.Custom(field, err == nil, "Must be true or false")
	return value
}

func joinStatuses() string {
	names := make([]string, len(domain.Statuses))
	for i, s := range domain.Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

func joinSortFields() string {
	names := make([]string, len(domain.SortFields))
	for i, s := range domain.SortFields {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// ParseIntQueryParam safely parses an integer query parameter
func ParseIntQueryParam(r *http.Request, key string, defaultValue int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value < 0 {
		return defaultValue
	}

	return value
}
