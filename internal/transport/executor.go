// Package transport implements the shared HTTP machinery every backend
// adapter builds on: one executor that attaches auth, serializes bodies,
// retries transient failures with exponential backoff, and returns the
// parsed response together with its headers.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/trackwire/trackwire/internal/apierr"
)

const (
	// DefaultTimeout bounds a single HTTP attempt when no custom client is
	// supplied. Total latency across retries is the caller's job via ctx.
	DefaultTimeout = 30 * time.Second

	// maxResponseSize caps response bodies to keep a misbehaving backend
	// from exhausting memory.
	maxResponseSize = 50 * 1024 * 1024

	instrumentationScope = "github.com/trackwire/trackwire/internal/transport"
)

// Executor issues requests against one backend connection. It holds no
// per-call mutable state, so a single value may be shared across goroutines.
type Executor struct {
	cfg        Config
	client     *http.Client
	reclassify []apierr.ReclassifyFunc

	requests metric.Int64Counter
	retries  metric.Int64Counter
}

// NewExecutor validates cfg and returns an executor. httpClient selects the
// underlying transport explicitly; nil means a default client with
// DefaultTimeout (tests inject an httptest client here).
func NewExecutor(cfg Config, httpClient *http.Client) (*Executor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	meter := otel.Meter(instrumentationScope)
	requests, _ := meter.Int64Counter("trackwire.transport.requests",
		metric.WithDescription("HTTP requests issued, by method and outcome"))
	retries, _ := meter.Int64Counter("trackwire.transport.retries",
		metric.WithDescription("Retry attempts after a retryable failure"))

	return &Executor{
		cfg:      cfg,
		client:   httpClient,
		requests: requests,
		retries:  retries,
	}, nil
}

// WithReclassify returns a copy of the executor that applies fns to every
// translated error, letting an adapter re-interpret backend quirks without
// touching the generic translation table.
func (e *Executor) WithReclassify(fns ...apierr.ReclassifyFunc) *Executor {
	clone := *e
	clone.reclassify = append(append([]apierr.ReclassifyFunc{}, e.reclassify...), fns...)
	return &clone
}

// BaseURL returns the connection's base URL.
func (e *Executor) BaseURL() string { return e.cfg.BaseURL }

// Do executes one request with the connection's retry policy and returns the
// response. Non-2xx outcomes and transport failures come back as errors from
// the apierr taxonomy; 204 and empty bodies yield a Result with NoContent set.
func (e *Executor) Do(ctx context.Context, req Request) (*Result, error) {
	body, err := serializeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("serialize request body: %w", err)
	}

	urlStr, err := e.buildURL(req)
	if err != nil {
		return nil, err
	}

	policy := e.cfg.Retry
	retryable := !policy.IdempotentOnly || isIdempotent(req.Method)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialInterval
	bo.Multiplier = policy.BackoffFactor
	bo.RandomizationFactor = 0
	// No interval cap: the delay sequence is exactly initial * factor^(n-1).
	bo.MaxInterval = 365 * 24 * time.Hour
	bo.MaxElapsedTime = 0

	var res *Result
	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			e.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("method", req.Method)))
		}

		r, attemptErr := e.attempt(ctx, req, urlStr, body)
		if attemptErr != nil {
			kind := apierr.ClassifyFailure(attemptErr)
			translated := e.translateErr(apierr.TranslateTransport(attemptErr))
			if retryable && policy.RetryableFailures[kind] {
				return translated
			}
			return backoff.Permanent(translated)
		}

		if r.StatusCode == http.StatusNoContent || (r.StatusCode >= 200 && r.StatusCode < 300) {
			res = r
			return nil
		}

		translated := e.translateErr(apierr.Translate(r.StatusCode, r.Body, r.Header))
		if retryable && policy.RetryableStatuses[r.StatusCode] {
			return translated
		}
		return backoff.Permanent(translated)
	}

	limited := backoff.WithMaxRetries(bo, uint64(policy.MaxAttempts-1))
	if err := backoff.Retry(op, backoff.WithContext(limited, ctx)); err != nil {
		e.count(ctx, req.Method, "error")
		return nil, err
	}

	if err := validateBody(res, urlStr); err != nil {
		e.count(ctx, req.Method, "error")
		return nil, err
	}

	e.count(ctx, req.Method, "ok")
	return res, nil
}

// attempt performs a single HTTP round trip.
func (e *Executor) attempt(ctx context.Context, req Request, urlStr string, body []byte) (*Result, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, urlStr, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range e.cfg.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Set(k, v)
		}
	}
	e.cfg.Auth.apply(httpReq)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
		NoContent:  resp.StatusCode == http.StatusNoContent || len(respBody) == 0,
	}, nil
}

// buildURL resolves the request path against the base URL and appends query
// parameters. Absolute paths (pagination next-links) are used verbatim and
// keep only their embedded query.
func (e *Executor) buildURL(req Request) (string, error) {
	if isAbsolute(req.Path) {
		return req.Path, nil
	}

	urlStr := strings.TrimSuffix(e.cfg.BaseURL, "/")
	if req.Path != "" && !strings.HasPrefix(req.Path, "/") {
		urlStr += "/"
	}
	urlStr += req.Path

	query := req.Query
	if e.cfg.Auth.Kind == AuthQuery {
		merged := cloneValues(query)
		for k, v := range e.cfg.Auth.Params {
			merged.Set(k, v)
		}
		query = merged
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(urlStr, "?") {
			sep = "&"
		}
		urlStr += sep + query.Encode()
	}
	return urlStr, nil
}

// translateErr applies the adapter's reclassification layer, if any.
func (e *Executor) translateErr(err error) error {
	return apierr.Reclassify(err, e.reclassify...)
}

func (e *Executor) count(ctx context.Context, method, outcome string) {
	e.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	))
}

// validateBody rejects 2xx bodies that are not valid JSON. The path is named
// in the error so callers can tell which endpoint misbehaved.
func validateBody(res *Result, urlStr string) error {
	if res.NoContent {
		return nil
	}
	var probe any
	if err := json.Unmarshal(res.Body, &probe); err != nil {
		return &apierr.APIError{
			Message:    fmt.Sprintf("invalid JSON in response from %s: %v", urlStr, err),
			StatusCode: res.StatusCode,
			Body:       res.Body,
			Err:        err,
		}
	}
	return nil
}

// serializeBody converts a request body to wire bytes. Pre-serialized bodies
// pass through unchanged.
func serializeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return json.Marshal(b)
	}
}

func isIdempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func isAbsolute(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vs := range v {
		out[k] = append([]string{}, vs...)
	}
	return out
}
