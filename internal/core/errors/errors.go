package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors - these represent failures the client can act on
var (
	// Session & Authorization
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrNoSession          = errors.New("no persisted session")
	ErrForbidden          = errors.New("action forbidden")
	ErrUnauthorized       = errors.New("unauthorized")

	// Account validation
	ErrEmailRequired    = errors.New("email is required")
	ErrEmailInvalid     = errors.New("email format is invalid")
	ErrPasswordTooWeak  = errors.New("password does not meet security requirements")
	ErrPasswordRequired = errors.New("password is required")

	// Ticket validation
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrTicketPending      = errors.New("ticket has not been confirmed by the server yet")
	ErrTitleRequired      = errors.New("title is required")
	ErrTitleTooLong       = errors.New("title exceeds maximum length of 255 characters")
	ErrDescriptionTooLong = errors.New("description exceeds maximum length")
	ErrInvalidPriority    = errors.New("invalid ticket priority")
	ErrInvalidStatus      = errors.New("invalid ticket status")
	ErrNoChanges          = errors.New("no changes requested")

	// Remote API failures
	ErrTransport         = errors.New("helpdesk API unreachable")
	ErrRejected          = errors.New("request rejected by helpdesk API")
	ErrMalformedResponse = errors.New("malformed response from helpdesk API")

	// Generic
	ErrNotFound    = errors.New("resource not found")
	ErrInternal    = errors.New("internal error")
	ErrBadRequest  = errors.New("bad request")
	ErrConflict    = errors.New("resource conflict")
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Kind classifies an AppError by where it came from.
type Kind string

const (
	KindTransport  Kind = "transport"
	KindRejected   Kind = "rejected"
	KindMalformed  Kind = "malformed"
	KindValidation Kind = "validation"
	KindInternal   Kind = "internal"
)

// AppError wraps errors with additional context for the user-facing layers
type AppError struct {
	Err        error  // The underlying error
	Kind       Kind   // Transport, rejected, malformed, ...
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code (remote status for rejected requests)
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" && e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewTransportError wraps a network failure talking to the remote API.
func NewTransportError(err error, operation string) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %v", ErrTransport, err),
		Kind:       KindTransport,
		Message:    operation + " failed",
		Code:       "TRANSPORT_ERROR",
		StatusCode: http.StatusBadGateway,
	}
}

// NewRejectedError describes a non-2xx answer from the remote API.
func NewRejectedError(statusCode int, code, message string) *AppError {
	var cause error
	switch statusCode {
	case http.StatusUnauthorized:
		cause = ErrUnauthorized
	case http.StatusForbidden:
		cause = ErrForbidden
	case http.StatusNotFound:
		cause = ErrNotFound
	case http.StatusConflict:
		cause = ErrConflict
	case http.StatusTooManyRequests:
		cause = ErrRateLimited
	default:
		cause = ErrRejected
	}
	if code == "" {
		code = "REJECTED"
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &AppError{
		Err:        cause,
		Kind:       KindRejected,
		Message:    message,
		Code:       code,
		StatusCode: statusCode,
	}
}

// NewMalformedError wraps a response body that could not be decoded.
func NewMalformedError(err error) *AppError {
	return &AppError{
		Err:        fmt.Errorf("%w: %v", ErrMalformedResponse, err),
		Kind:       KindMalformed,
		Message:    "Unexpected response from helpdesk API",
		Code:       "MALFORMED_RESPONSE",
		StatusCode: http.StatusBadGateway,
	}
}

func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Kind:       KindValidation,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: http.StatusBadRequest,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Kind:       KindValidation,
		Message:    message,
		Code:       "FORBIDDEN",
		StatusCode: http.StatusForbidden,
	}
}

func NewNotFoundError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Kind:       KindValidation,
		Message:    message,
		Code:       "NOT_FOUND",
		StatusCode: http.StatusNotFound,
	}
}

func NewConflictError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Kind:       KindValidation,
		Message:    message,
		Code:       "CONFLICT",
		StatusCode: http.StatusConflict,
	}
}

// KindOf reports the Kind of the first AppError in err's chain.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	var validationErrs *ValidationErrors
	if errors.As(err, &validationErrs) {
		return KindValidation
	}
	return KindInternal
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}
