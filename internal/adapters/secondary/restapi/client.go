package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/lorrc/helpdesk-client/internal/core/errors"
	"github.com/lorrc/helpdesk-client/internal/core/ports"
	"github.com/lorrc/helpdesk-client/internal/infrastructure/logging"
	"golang.org/x/time/rate"
)

const (
	// RequestIDHeader carries the request ID to the API.
	RequestIDHeader = "X-Request-ID"

	maxResponseBytes = 8 << 20
)

// Config configures a Client.
type Config struct {
	// BaseURL is the helpdesk API root, e.g. "http://localhost:8000".
	BaseURL string
	// Timeout bounds one request. Zero keeps the HTTPClient's own timeout.
	Timeout time.Duration
	// RequestsPerSecond and Burst pace outbound requests. Zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	// Tokens supplies the bearer token. Optional.
	Tokens ports.TokenSource
	// HTTPClient is used for all requests. If nil, a client with Timeout is used.
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client talks to the helpdesk REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	tokens     ports.TokenSource
	logger     *slog.Logger
}

var (
	_ ports.TicketAPI  = (*Client)(nil)
	_ ports.AccountAPI = (*Client)(nil)
)

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("restapi: BaseURL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("restapi: invalid BaseURL %q: %w", cfg.BaseURL, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    limiter,
		tokens:     cfg.Tokens,
		logger:     logger.With("component", "restapi"),
	}, nil
}

// request describes one API call.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
	auth        bool
}

func jsonRequest(op, method, path string, payload any, auth bool) (request, error) {
	req := request{op: op, method: method, path: path, auth: auth}
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return req, fmt.Errorf("restapi: failed to encode %s body: %w", op, err)
		}
		req.body = bytes.NewReader(encoded)
		req.contentType = "application/json"
	}
	return req, nil
}

// do sends req and returns the body of a 2xx answer. Failures come back
// as *apperrors.AppError of kind transport or rejected.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, apperrors.NewTransportError(err, req.op)
	}

	requestURL := c.baseURL + req.path
	if len(req.query) > 0 {
		requestURL += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, requestURL, req.body)
	if err != nil {
		return nil, fmt.Errorf("restapi: failed to create request: %w", err)
	}

	requestID := logging.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set(RequestIDHeader, requestID)
	httpReq.Header.Set("Accept", "application/json")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}
	if req.auth && c.tokens != nil {
		if token := c.tokens.Token(); token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewTransportError(err, req.op)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewTransportError(err, req.op)
	}

	c.logger.DebugContext(ctx, "api request",
		"op", req.op,
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"request_id", requestID,
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	code, message := parseErrorBody(body)
	return nil, apperrors.NewRejectedError(resp.StatusCode, code, message)
}

// parseErrorBody reads {"error"|"detail"|"message": ..., "code": ...}.
// detail may also be a list of validation messages.
func parseErrorBody(body []byte) (code, message string) {
	var payload struct {
		Error   string          `json:"error"`
		Message string          `json:"message"`
		Detail  json.RawMessage `json:"detail"`
		Code    string          `json:"code"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", strings.TrimSpace(string(body))
	}

	message = payload.Error
	if message == "" && len(payload.Detail) > 0 {
		var detail string
		if err := json.Unmarshal(payload.Detail, &detail); err == nil {
			message = detail
		} else {
			message = detailList(payload.Detail)
		}
	}
	if message == "" {
		message = payload.Message
	}
	return payload.Code, message
}

func detailList(raw json.RawMessage) string {
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return string(raw)
	}
	msgs := make([]string, 0, len(items))
	for _, item := range items {
		if item.Msg != "" {
			msgs = append(msgs, item.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}

// decodeList accepts a bare array or an object wrapping the array under
// one of keys.
func decodeList[T any](body []byte, keys ...string) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	var items []T
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, apperrors.NewMalformedError(err)
		}
		return items, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, apperrors.NewMalformedError(err)
	}
	for _, key := range keys {
		raw, ok := envelope[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, apperrors.NewMalformedError(err)
		}
		if items == nil {
			items = []T{}
		}
		return items, nil
	}
	return nil, apperrors.NewMalformedError(fmt.Errorf("no list under %v", keys))
}

// decodeObject accepts the object itself or the object wrapped under one
// of keys. ok is false when the body holds nothing to decode.
func decodeObject[T any](body []byte, keys ...string) (value T, ok bool, err error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return value, false, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return value, false, apperrors.NewMalformedError(err)
	}
	for _, key := range keys {
		if raw, found := envelope[key]; found && len(raw) > 0 && raw[0] == '{' {
			trimmed = raw
			break
		}
	}

	if err := json.Unmarshal(trimmed, &value); err != nil {
		return value, false, apperrors.NewMalformedError(err)
	}
	return value, true, nil
}
