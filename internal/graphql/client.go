// Package graphql implements the shared GraphQL client used by
// cursor-paginated backends (Linear-style APIs, GitHub's v4 API).
//
// GraphQL servers typically answer 200 regardless of outcome, so success is
// judged by the errors array in the response envelope, not the HTTP status.
package graphql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/trackwire/trackwire/internal/apierr"
	"github.com/trackwire/trackwire/internal/transport"
)

// DefaultCursorParam is the variable name the cursor is fed back under
// during Relay pagination.
const DefaultCursorParam = "after"

// Client posts queries to one GraphQL endpoint via the shared executor.
type Client struct {
	exec        *transport.Executor
	path        string
	cursorParam string
}

// Option configures a Client.
type Option func(*Client)

// WithPath sets the endpoint path relative to the connection base URL
// (default: the base URL itself).
func WithPath(path string) Option {
	return func(c *Client) { c.path = path }
}

// WithCursorParam overrides the pagination cursor variable name.
func WithCursorParam(name string) Option {
	return func(c *Client) { c.cursorParam = name }
}

// NewClient creates a GraphQL client on top of an executor.
func NewClient(exec *transport.Executor, opts ...Option) *Client {
	c := &Client{exec: exec, cursorParam: DefaultCursorParam}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request is the GraphQL wire envelope: {"query": ..., "variables": ...}.
type Request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Error is one entry of a GraphQL errors array.
type Error struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

// Response is the GraphQL response envelope.
type Response struct {
	Data   json.RawMessage `json:"data"`
	Errors []Error         `json:"errors,omitempty"`
}

// Execute posts query+variables and returns the data payload.
//
// Partial-success rule: when errors are present but data still contains at
// least one non-null top-level value, the errors are suppressed and data is
// returned. Queries that probe two alternative root fields (say, "as a
// user" and "as an organization") legitimately resolve one branch to null.
// Errors are fatal only when data is entirely null or absent.
func (c *Client) Execute(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	data, _, err := c.execute(ctx, query, vars)
	return data, err
}

// execute is Execute plus the raw transport result, for decorators that
// inspect response headers.
func (c *Client) execute(ctx context.Context, query string, vars map[string]any) (json.RawMessage, *transport.Result, error) {
	res, err := c.exec.Do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   c.path,
		Body:   Request{Query: query, Variables: vars},
	})
	if err != nil {
		return nil, nil, err
	}

	var envelope Response
	if err := res.Decode(&envelope); err != nil {
		return nil, res, &apierr.APIError{
			Message: fmt.Sprintf("malformed GraphQL response: %v", err),
			Body:    res.Body,
			Err:     err,
		}
	}

	if len(envelope.Errors) == 0 {
		return envelope.Data, res, nil
	}
	if hasUsableData(envelope.Data) {
		return envelope.Data, res, nil
	}
	return nil, res, classifyErrors(envelope.Errors)
}

// hasUsableData reports whether data contains at least one non-null value in
// its top-level mapping.
func hasUsableData(data json.RawMessage) bool {
	if len(data) == 0 || string(data) == "null" {
		return false
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		// Non-object data that isn't the literal null still counts.
		return true
	}
	for _, v := range top {
		if string(v) != "null" {
			return true
		}
	}
	return false
}

// classifyErrors maps fatal GraphQL errors onto the taxonomy by message
// content. Anything unrecognized becomes a ValidationError carrying the full
// raw error list.
func classifyErrors(errs []Error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	joined := strings.Join(msgs, "; ")

	for _, m := range msgs {
		lower := strings.ToLower(m)
		switch {
		case strings.Contains(lower, "unauth"):
			return &apierr.AuthenticationError{Message: joined}
		case strings.Contains(lower, "not found"),
			strings.Contains(lower, "unknown id"),
			strings.Contains(lower, "could not resolve"),
			strings.Contains(lower, "failed to resolve"):
			return &apierr.NotFoundError{Message: joined}
		}
	}

	raw, _ := json.Marshal(errs)
	return &apierr.ValidationError{Message: joined, Body: raw}
}
