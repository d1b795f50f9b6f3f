package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNotFound is returned when the API answers 404.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized is returned when the API rejects the bearer token (401/403).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidResponse is returned when a response body cannot be decoded.
	ErrInvalidResponse = errors.New("invalid API response")

	// ErrInvalidInput is returned when a request body fails validation before
	// it is sent.
	ErrInvalidInput = errors.New("invalid request input")
)

// APIError describes a failed API call: the operation, the HTTP status and
// the response body text.
type APIError struct {
	Op     string
	Status int
	Body   string
	Err    error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(" failed")
	if e.Status != 0 {
		fmt.Fprintf(&b, ": %d", e.Status)
	}
	if body := strings.TrimSpace(e.Body); body != "" {
		b.WriteString(" ")
		b.WriteString(truncateBody(body))
	}
	if e.Err != nil && e.Status == 0 {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// newStatusError classifies an HTTP failure.
func newStatusError(op string, status int, body string) *APIError {
	var err error
	switch status {
	case http.StatusNotFound:
		err = ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		err = ErrUnauthorized
	}
	return &APIError{Op: op, Status: status, Body: body, Err: err}
}

func joinInvalid(err error) error {
	return errors.Join(ErrInvalidResponse, err)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func truncateBody(body string) string {
	const max = 300
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}
