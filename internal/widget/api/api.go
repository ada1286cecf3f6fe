// Package api implements the HTTP client for the chat backend. Every call
// decodes a JSON response and normalizes failures into a small error
// taxonomy: StatusError for non-2xx responses, ErrTimeout for deadline
// aborts, and wrapped transport errors otherwise.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goamet/chat-widget/internal/platform/id"
	"github.com/goamet/chat-widget/internal/platform/timeouts"
)

// ErrTimeout reports a request aborted by its deadline.
var ErrTimeout = errors.New("api: request timed out")

// StatusError reports a non-2xx response from the chat backend.
type StatusError struct {
	// Status is the HTTP status code.
	Status int
	// Code carries the backend error detail when the error body could be
	// decoded, empty otherwise.
	Code string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api: status %d (%s)", e.Status, e.Code)
	}
	return fmt.Sprintf("api: status %d", e.Status)
}

// IsAuth reports whether the response indicates a lost or invalid session.
func (e *StatusError) IsAuth() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsConflict reports whether the response indicates a state conflict.
func (e *StatusError) IsConflict() bool {
	return e.Status == http.StatusConflict
}

// Client calls the chat backend over HTTP JSON.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	authHeader string

	// OnAuthFailure, when set, is invoked once per call that fails with an
	// auth status. Callers use it to schedule a login redirect; optimistic
	// state is not rolled back when it fires.
	OnAuthFailure func()
}

// Config holds client construction options.
type Config struct {
	// BaseURL is the backend origin, without a trailing slash.
	BaseURL string
	// HTTPClient overrides the transport. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	// Timeout bounds each request. Defaults to timeouts.HTTPRequest.
	Timeout time.Duration
	// AuthHeader is sent as the Authorization header when non-empty.
	AuthHeader string
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("api: base url is required")
	}
	base = strings.TrimRight(base, "/")
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.HTTPRequest
	}
	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		timeout:    timeout,
		authHeader: cfg.AuthHeader,
	}, nil
}

// errorBody is the best-effort shape of backend error responses.
type errorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

// do performs one JSON request. A nil body sends no payload; a nil out
// discards the response body after status checking.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("api: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if requestID, err := id.NewID(); err == nil {
		req.Header.Set("X-Request-Id", requestID)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s %s", ErrTimeout, method, path)
		}
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := &StatusError{Status: resp.StatusCode}
		var detail errorBody
		if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil {
			if detail.Code != "" {
				statusErr.Code = detail.Code
			} else {
				statusErr.Code = detail.Error
			}
		}
		if statusErr.IsAuth() && c.OnAuthFailure != nil {
			c.OnAuthFailure()
		}
		return statusErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}
