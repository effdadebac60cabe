package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/jrsteele09/zhancare-client/internal/errors"
)

// ErrSessionExpired is returned when a 401 could not be recovered by refreshing.
// By the time the caller sees it the session has been force logged out, or it was
// already replaced by a logout or another login while the refresh was in flight.
var ErrSessionExpired = errors.ErrSessionExpired

type Kind string

const (
	KindNetwork        Kind = "network"         // transport failure, timeout or cancellation
	KindStatus         Kind = "status"          // non 2xx response
	KindSessionExpired Kind = "session_expired" // refresh failed or impossible
	KindEncoding       Kind = "encoding"        // request body could not be encoded
)

// Error is every rejection produced by the client.
type Error struct {
	Kind      Kind
	Method    string
	Path      string
	Status    int    // 0 when no response was received
	Payload   []byte // raw response body, if any
	RequestID string
	Err       error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
	default:
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the request failed because a deadline passed.
func (e *Error) Timeout() bool {
	if e.Kind != KindNetwork {
		return false
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// DecodePayload unmarshals the error body, e.g. into a field error map.
func (e *Error) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return errors.ErrNotFound
	}
	return json.Unmarshal(e.Payload, v)
}

// StatusCode returns the HTTP status of err, or 0 if err is not an *Error.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsSessionExpired reports whether err means the user must log in again.
func IsSessionExpired(err error) bool {
	return errors.Is(err, ErrSessionExpired)
}

func statusError(req Request, resp *Response) *Error {
	return &Error{
		Kind:      KindStatus,
		Method:    req.Method,
		Path:      req.Path,
		Status:    resp.Status,
		Payload:   resp.Body,
		RequestID: resp.RequestID,
		Err:       fmt.Errorf("unexpected status %d", resp.Status),
	}
}

func networkError(req Request, requestID string, err error) *Error {
	return &Error{
		Kind:      KindNetwork,
		Method:    req.Method,
		Path:      req.Path,
		RequestID: requestID,
		Err:       err,
	}
}

// sessionExpiredError keeps the status and body of the 401 that started the refresh.
func sessionExpiredError(req Request, unauthorized *Response, cause error) *Error {
	return &Error{
		Kind:      KindSessionExpired,
		Method:    req.Method,
		Path:      req.Path,
		Status:    unauthorized.Status,
		Payload:   unauthorized.Body,
		RequestID: unauthorized.RequestID,
		Err:       fmt.Errorf("%w: %w", ErrSessionExpired, cause),
	}
}
