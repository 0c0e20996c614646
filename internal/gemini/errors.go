package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ErrorKind classifies an API failure for the retry policy. Classification
// happens once here, at the client boundary, instead of substring matching
// scattered through callers.
type ErrorKind int

const (
	// KindPermanent failures will not improve on retry (auth, bad request,
	// missing resource).
	KindPermanent ErrorKind = iota
	// KindRateLimited is an HTTP 429 / quota exhaustion signal.
	KindRateLimited
	// KindOverloaded is an HTTP 503 / model overloaded signal.
	KindOverloaded
	// KindTransient covers the remaining retryable failures: 5xx, timeouts,
	// connection errors.
	KindTransient
)

// APIError is a failure reported by the Gemini API or its transport.
type APIError struct {
	StatusCode int
	Kind       ErrorKind
	Message    string
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("gemini api status %d: %s", e.StatusCode, truncate(e.Message, 200))
	}
	return fmt.Sprintf("gemini api: %s", truncate(e.Message, 200))
}

// Retryable reports whether the failure is worth retrying at all.
func (e *APIError) Retryable() bool {
	return e.Kind != KindPermanent
}

// newAPIError builds an APIError from a non-2xx response, pulling the
// message out of the standard {"error":{...}} envelope when present.
func newAPIError(status int, body []byte) *APIError {
	msg := strings.TrimSpace(string(body))
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
		if envelope.Error.Status != "" {
			msg = envelope.Error.Status + ": " + msg
		}
	}
	return &APIError{
		StatusCode: status,
		Kind:       classifyStatus(status),
		Message:    msg,
	}
}

func classifyStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return KindRateLimited
	case status == 503:
		return KindOverloaded
	case status == 408 || status >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
