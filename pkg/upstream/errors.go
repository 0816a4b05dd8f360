package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

var (
	// ErrNotFound indicates the upstream reported the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrTimeout indicates the call exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrMissingCredential indicates no API key was available for the call.
	ErrMissingCredential = errors.New("api key is required")

	// ErrEmptyResponse indicates the upstream answered without usable content.
	ErrEmptyResponse = errors.New("empty response")
)

const maxReasonLength = 200

// Error wraps an upstream failure with the provider and operation that produced it.
type Error struct {
	Provider   string // "twelvelabs", "sonar"
	Op         string // Operation being performed (e.g., "get_video", "research")
	StatusCode int    // HTTP status, zero for transport failures
	Reason     string // Human-readable reason
	Err        error  // Underlying error
}

func (e *Error) Error() string {
	reason := e.Reason
	if reason == "" && e.Err != nil {
		reason = e.Err.Error()
	}

	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s failed with status %d: %s", e.Provider, e.Op, e.StatusCode, reason)
	}

	return fmt.Sprintf("%s %s failed: %s", e.Provider, e.Op, reason)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// Message returns the reason without the provider prefix, suitable for
// end-user display. The HTTP status is appended unless the reason already
// names it.
func (e *Error) Message() string {
	reason := "unknown error"

	switch {
	case e.Reason != "":
		reason = e.Reason
	case e.Err != nil:
		reason = e.Err.Error()
	}

	if e.StatusCode == 0 {
		return reason
	}

	status := fmt.Sprintf("status %d", e.StatusCode)
	if strings.Contains(reason, status) {
		return reason
	}

	return reason + " (" + status + ")"
}

// IsNotFound reports whether err was caused by a missing upstream resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTimeout reports whether err was caused by a deadline.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Message extracts a display message from err, stripping the provider
// prefix when err is an *Error.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var upstreamErr *Error
	if errors.As(err, &upstreamErr) {
		return upstreamErr.Message()
	}

	return err.Error()
}

// TransportError classifies a failure from http.Client.Do. Deadline
// failures wrap ErrTimeout.
func TransportError(provider, op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Provider: provider, Op: op, Reason: "request timed out", Err: errors.Join(ErrTimeout, err)}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{Provider: provider, Op: op, Reason: "request timed out", Err: errors.Join(ErrTimeout, err)}
	}

	return &Error{Provider: provider, Op: op, Reason: "network error: " + err.Error(), Err: err}
}

// StatusError builds an error for a non-2xx response. A 404 wraps
// ErrNotFound and 408/504 wrap ErrTimeout.
func StatusError(provider, op string, status int, body []byte) *Error {
	var sentinel error

	switch status {
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		sentinel = ErrTimeout
	default:
		sentinel = fmt.Errorf("unexpected status %d", status)
	}

	reason := ReasonFromBody(body)
	if reason == "" {
		reason = fmt.Sprintf("API request failed with status %d", status)
	}

	return &Error{Provider: provider, Op: op, StatusCode: status, Reason: reason, Err: sentinel}
}

// ReasonFromBody pulls a message out of a JSON error body, falling back to
// the trimmed raw body.
func ReasonFromBody(body []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Detail  string          `json:"detail"`
		Error   json.RawMessage `json:"error"`
	}

	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return truncate(payload.Message)
		}

		if len(payload.Error) > 0 {
			var nested struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "" {
				return truncate(nested.Message)
			}

			var plain string
			if json.Unmarshal(payload.Error, &plain) == nil && plain != "" {
				return truncate(plain)
			}
		}

		if payload.Detail != "" {
			return truncate(payload.Detail)
		}
	}

	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= maxReasonLength {
		return s
	}

	return string(r[:maxReasonLength]) + "..."
}
