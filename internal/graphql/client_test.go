package graphql

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/trackwire/trackwire/internal/apierr"
	"github.com/trackwire/trackwire/internal/transport"
)

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	policy := transport.DefaultRetryPolicy()
	policy.InitialInterval = time.Millisecond
	exec, err := transport.NewExecutor(transport.Config{BaseURL: server.URL, Retry: policy}, server.Client())
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return NewClient(exec, opts...)
}

func graphqlServer(t *testing.T, response string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		var req Request
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request envelope: %v", err)
		}
		if req.Query == "" {
			t.Error("empty query in request envelope")
		}
		_, _ = w.Write([]byte(response))
	}))
}

func TestExecuteSuccess(t *testing.T) {
	server := graphqlServer(t, `{"data": {"issue": {"id": "abc", "title": "hello"}}}`)
	defer server.Close()

	client := newTestClient(t, server)
	data, err := client.Execute(context.Background(), `query { issue { id title } }`, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var payload struct {
		Issue struct {
			ID string `json:"id"`
		} `json:"issue"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if payload.Issue.ID != "abc" {
		t.Errorf("issue id = %q", payload.Issue.ID)
	}
}

func TestExecutePartialSuccess(t *testing.T) {
	// One root field resolved, the other errored: the errors must be
	// suppressed and the data returned.
	server := graphqlServer(t, `{
		"data": {"asUser": null, "asOrganization": {"id": "org-1"}},
		"errors": [{"message": "Could not resolve to a User with the login of 'acme'."}]
	}`)
	defer server.Close()

	client := newTestClient(t, server)
	data, err := client.Execute(context.Background(), `query { asUser { id } asOrganization { id } }`, nil)
	if err != nil {
		t.Fatalf("partial success must not error: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected data")
	}
}

func TestExecuteFatalErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "all-null data with errors is fatal",
			response: `{"data": {"issue": null}, "errors": [{"message": "Something went wrong"}]}`,
			check: func(t *testing.T, err error) {
				var valErr *apierr.ValidationError
				if !errors.As(err, &valErr) {
					t.Fatalf("err = %T %v, want ValidationError", err, err)
				}
			},
		},
		{
			name:     "absent data with errors is fatal",
			response: `{"errors": [{"message": "Internal error"}]}`,
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Fatal("expected error")
				}
			},
		},
		{
			name:     "unauthorized message classifies as authentication",
			response: `{"data": null, "errors": [{"message": "Unauthorized: token expired"}]}`,
			check: func(t *testing.T, err error) {
				var authErr *apierr.AuthenticationError
				if !errors.As(err, &authErr) {
					t.Fatalf("err = %T %v, want AuthenticationError", err, err)
				}
			},
		},
		{
			name:     "not found message classifies as not found",
			response: `{"data": null, "errors": [{"message": "Entity not found: Issue abc"}]}`,
			check: func(t *testing.T, err error) {
				var nfErr *apierr.NotFoundError
				if !errors.As(err, &nfErr) {
					t.Fatalf("err = %T %v, want NotFoundError", err, err)
				}
			},
		},
		{
			name:     "unknown id classifies as not found",
			response: `{"data": null, "errors": [{"message": "unknown id: xyz"}]}`,
			check: func(t *testing.T, err error) {
				var nfErr *apierr.NotFoundError
				if !errors.As(err, &nfErr) {
					t.Fatalf("err = %T %v, want NotFoundError", err, err)
				}
			},
		},
		{
			name: "multiple messages joined",
			response: `{"data": null, "errors": [
				{"message": "first problem"},
				{"message": "second problem"}
			]}`,
			check: func(t *testing.T, err error) {
				var valErr *apierr.ValidationError
				if !errors.As(err, &valErr) {
					t.Fatalf("err = %T %v, want ValidationError", err, err)
				}
				if valErr.Message != "first problem; second problem" {
					t.Errorf("message = %q", valErr.Message)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := graphqlServer(t, tt.response)
			defer server.Close()

			client := newTestClient(t, server)
			_, err := client.Execute(context.Background(), `query { issue { id } }`, nil)
			tt.check(t, err)
		})
	}
}

func TestExecuteWithPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/graphql" {
			t.Errorf("path = %q, want /api/graphql", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data": {"ok": true}}`))
	}))
	defer server.Close()

	client := newTestClient(t, server, WithPath("/api/graphql"))
	if _, err := client.Execute(context.Background(), `query { ok }`, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestHasUsableData(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"empty", "", false},
		{"null literal", "null", false},
		{"all null fields", `{"a": null, "b": null}`, false},
		{"one non-null field", `{"a": null, "b": {"id": 1}}`, true},
		{"scalar field", `{"count": 0}`, true},
		{"array data", `[1, 2]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasUsableData(json.RawMessage(tt.data)); got != tt.want {
				t.Errorf("hasUsableData(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestDeprecationTracker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(DeprecationHeader, "old-1=new-1, old-2=new-2")
		_, _ = w.Write([]byte(`{"data": {"ok": true}}`))
	}))
	defer server.Close()

	tracker := NewDeprecationTracker(newTestClient(t, server))
	if _, err := tracker.Execute(context.Background(), `query { ok }`, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for old, want := range map[string]string{"old-1": "new-1", "old-2": "new-2"} {
		got, ok := tracker.UpgradedID(old)
		if !ok || got != want {
			t.Errorf("UpgradedID(%q) = (%q, %v), want (%q, true)", old, got, ok, want)
		}
	}
	if _, ok := tracker.UpgradedID("never-seen"); ok {
		t.Error("UpgradedID reported an id that was never announced")
	}
}
