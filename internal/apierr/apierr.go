// Package apierr defines the cross-backend error taxonomy and the translator
// that maps raw HTTP failures onto it.
//
// The taxonomy is deliberately small: Authentication, NotFound, RateLimit,
// Validation, and a generic APIError catch-all. Adapters never invent their
// own error types; they reclassify a translated error when a backend abuses
// a status code (see Reclassify).
package apierr

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// FailureKind classifies a transport-level failure for retry decisions.
type FailureKind string

const (
	FailureTimeout           FailureKind = "timeout"
	FailureConnectionRefused FailureKind = "connection-refused"
	FailureTLS               FailureKind = "tls-failure"
	FailureOther             FailureKind = "other"
)

// AuthenticationError indicates the backend rejected our credentials (401/403).
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string { return "authentication failed: " + e.Message }

// NotFoundError indicates the requested resource does not exist (404).
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return "not found: " + e.Message }

// RateLimitError indicates the backend is throttling us (429).
// RetryAfter is zero when the backend gave no hint.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited: %s (retry after %s)", e.Message, e.RetryAfter)
	}
	return "rate limited: " + e.Message
}

// ValidationError indicates the request was rejected as malformed or
// semantically invalid (400/422). Carries the status and raw body so callers
// can inspect backend-specific detail.
type ValidationError struct {
	Message    string
	StatusCode int
	Body       []byte
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (status %d): %s", e.StatusCode, e.Message)
}

// APIError is the generic catch-all for failures that fit no other category.
// StatusCode is 0 for pure transport failures. Err holds the original
// failure, if any.
type APIError struct {
	Message    string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *APIError) Error() string {
	status := "N/A"
	if e.StatusCode != 0 {
		status = strconv.Itoa(e.StatusCode)
	}
	return fmt.Sprintf("api error (status %s): %s", status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// messageBody is the common shape of structured error bodies across trackers.
type messageBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// extractMessage pulls a human message out of a response body. JSON bodies
// commonly carry "message" or "error"; anything else is used verbatim.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "(empty response body)"
	}
	var mb messageBody
	if err := json.Unmarshal(body, &mb); err == nil {
		if mb.Message != "" {
			return mb.Message
		}
		if mb.Error != "" {
			return mb.Error
		}
	}
	return trimmed
}

// Translate maps a failed HTTP response to one error in the taxonomy.
// header may be nil; it is consulted only for the Retry-After hint on 429.
func Translate(statusCode int, body []byte, header http.Header) error {
	msg := extractMessage(body)

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{Message: msg}
	case http.StatusNotFound:
		return &NotFoundError{Message: msg}
	case http.StatusTooManyRequests:
		return &RateLimitError{Message: msg, RetryAfter: retryAfterHint(header)}
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return &ValidationError{Message: msg, StatusCode: statusCode, Body: body}
	default:
		return &APIError{Message: msg, StatusCode: statusCode, Body: body}
	}
}

// TranslateTransport wraps a transport-level failure (no HTTP response) as a
// generic APIError. The failure kind remains recoverable via ClassifyFailure.
func TranslateTransport(err error) error {
	return &APIError{Message: err.Error(), Err: err}
}

// retryAfterHint parses a Retry-After header given in seconds.
// HTTP-date values are ignored; trackers use the delta form.
func retryAfterHint(header http.Header) time.Duration {
	if header == nil {
		return 0
	}
	v := header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

// ClassifyFailure determines the transport failure kind of an error chain.
func ClassifyFailure(err error) FailureKind {
	if err == nil {
		return FailureOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return FailureConnectionRefused
	}

	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return FailureTLS
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return FailureTLS
	}
	// url.Error wraps the interesting error but some TLS failures only
	// surface as text (e.g. alert errors from the handshake).
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "tls:"), strings.Contains(msg, "x509:"):
		return FailureTLS
	case strings.Contains(msg, "connection refused"):
		return FailureConnectionRefused
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return FailureTimeout
	}
	return FailureOther
}

// ReclassifyFunc lets an adapter re-interpret a translated error for one
// backend's quirks (e.g. a 400 whose message matches "invalid id" is really
// a NotFound). It layers after Translate; the generic table never changes.
type ReclassifyFunc func(err error) error

// Reclassify applies fns in order to err, feeding each result forward.
// Nil funcs are skipped.
func Reclassify(err error, fns ...ReclassifyFunc) error {
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		err = fn(err)
	}
	return err
}
