package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/trackwire/trackwire/internal/apierr"
)

// AuthKind selects how credentials are attached to outgoing requests.
type AuthKind string

const (
	AuthNone   AuthKind = "none"
	AuthBearer AuthKind = "bearer"
	AuthBasic  AuthKind = "basic"
	AuthQuery  AuthKind = "query"
)

// Auth describes the credential attachment strategy for one backend.
//
// Bearer uses Token. Basic uses Username/Password. Query appends Params to
// every request URL (some legacy trackers authenticate this way). None sends
// requests unauthenticated.
type Auth struct {
	Kind     AuthKind
	Token    string
	Username string
	Password string
	Params   map[string]string
}

// apply attaches credentials to a request. Query credentials are handled
// during URL construction, not here.
func (a Auth) apply(req *http.Request) {
	switch a.Kind {
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+a.Token)
	case AuthBasic:
		req.SetBasicAuth(a.Username, a.Password)
	}
}

// RetryPolicy controls the executor's retry loop.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialInterval is the delay before the first retry. The delay before
	// retry n is InitialInterval * BackoffFactor^(n-1).
	InitialInterval time.Duration

	// BackoffFactor multiplies the delay after each retry.
	BackoffFactor float64

	// RetryableStatuses are HTTP statuses that trigger a retry.
	RetryableStatuses map[int]bool

	// RetryableFailures are transport failure kinds that trigger a retry.
	RetryableFailures map[apierr.FailureKind]bool

	// IdempotentOnly restricts automatic retry to GET/HEAD/PUT/DELETE.
	// The default retries every verb uniformly, which means a POST that
	// timed out after the server accepted it may be replayed. Callers that
	// cannot tolerate at-least-once semantics should set this (or supply
	// idempotency keys via default headers).
	IdempotentOnly bool
}

// DefaultRetryPolicy returns the standard policy: 3 attempts, 500ms initial
// interval, factor 2, statuses {429,500,502,503,504}, all transport failure
// kinds retryable.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		BackoffFactor:   2,
		RetryableStatuses: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
		RetryableFailures: map[apierr.FailureKind]bool{
			apierr.FailureTimeout:           true,
			apierr.FailureConnectionRefused: true,
			apierr.FailureTLS:               true,
		},
	}
}

// validate checks the policy invariants.
func (p RetryPolicy) validate() error {
	if p.MaxAttempts <= 0 {
		return fmt.Errorf("retry policy: max attempts must be positive, got %d", p.MaxAttempts)
	}
	if p.InitialInterval <= 0 {
		return fmt.Errorf("retry policy: initial interval must be positive, got %s", p.InitialInterval)
	}
	if p.BackoffFactor <= 0 {
		return fmt.Errorf("retry policy: backoff factor must be positive, got %g", p.BackoffFactor)
	}
	return nil
}

// Config describes one backend connection. Immutable after construction;
// build a new Config (and Executor) to change anything.
type Config struct {
	// BaseURL is the root of the backend API, e.g. "https://api.example.com/v2".
	BaseURL string

	// Auth is the credential attachment strategy.
	Auth Auth

	// DefaultHeaders are set on every request before per-request headers.
	DefaultHeaders map[string]string

	// Retry controls the retry loop. Zero value means DefaultRetryPolicy.
	Retry RetryPolicy
}

// validate checks the config and normalizes the retry policy.
func (c *Config) validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL %q: %w", c.BaseURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("base URL must be absolute with a host, got %q", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL scheme must be http or https, got %q", u.Scheme)
	}
	if c.Retry.MaxAttempts == 0 && c.Retry.InitialInterval == 0 && c.Retry.BackoffFactor == 0 {
		c.Retry = DefaultRetryPolicy()
	}
	return c.Retry.validate()
}

// Request is one API call, relative to the connection's base URL.
// Constructed and consumed per call.
type Request struct {
	Method string

	// Path is relative to the base URL. An absolute http(s) URL is used
	// verbatim (pagination next-links arrive absolute).
	Path string

	// Body is the request payload. []byte, string, and json.RawMessage pass
	// through unchanged; any other non-nil value is JSON-marshaled.
	Body any

	// Query parameters appended to the URL.
	Query url.Values

	// Header entries set after the connection's default headers.
	Header http.Header
}

// Result is one API response: status, headers, and raw body. Returning the
// headers with every call removes the need for shared "last response" state
// on the connection.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// NoContent is true for 204 responses and empty 2xx bodies.
	NoContent bool
}

// Decode unmarshals the response body into v.
func (r *Result) Decode(v any) error {
	if r.NoContent {
		return fmt.Errorf("decode: response has no content")
	}
	return json.Unmarshal(r.Body, v)
}
