package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Standard sentinel errors for the client.
var (
	// ErrInvalidCredentials means the login input was rejected. It is
	// user-correctable and should be shown inline.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRefreshDenied means the refresh credential was rejected by the
	// server. The session has been cleared; the user must log in again.
	ErrRefreshDenied = errors.New("refresh denied")

	// ErrSessionExpired means an authorized call could not be recovered by
	// the refresh protocol. The session has been cleared.
	ErrSessionExpired = errors.New("session expired")

	// ErrUnauthorized is a 401 that is not eligible for refresh-and-retry.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is a 403-style denial; never retried.
	ErrForbidden = errors.New("forbidden")

	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")

	// ErrTransport is a network-level failure of a one-shot request.
	ErrTransport = errors.New("transport error")

	// ErrMalformedEvent is an unparseable push message; dropped, never fatal.
	ErrMalformedEvent = errors.New("malformed event")
)

// APIError is a structured error decoded from a backend error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (status %d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("api error (status %d)", e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// SentinelFor maps an HTTP status code to the matching sentinel error.
func SentinelFor(status int) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrInvalidInput
	case http.StatusConflict:
		return ErrConflict
	default:
		return ErrTransport
	}
}

// FromResponse builds an APIError from a non-2xx response, consuming the
// body. The body is decoded as a {code, message} payload when possible.
func FromResponse(resp *http.Response) error {
	apiErr := &APIError{
		Status: resp.StatusCode,
		Err:    SentinelFor(resp.StatusCode),
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err == nil && len(body) > 0 {
		_ = json.Unmarshal(body, apiErr)
	}
	return apiErr
}
