package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func postDelivery(t *testing.T, handler http.Handler, path, body string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestReceiverAcceptsValidDelivery(t *testing.T) {
	secret := "hook-secret"
	var got *Event
	receiver := NewReceiver(ReceiverConfig{
		Secrets: map[string]string{"github": secret},
		Handler: func(ctx context.Context, backend string, event *Event) error {
			if backend != "github" {
				t.Errorf("backend = %q", backend)
			}
			got = event
			return nil
		},
	})

	body := `{"action": "opened", "issue": {"number": 1}}`
	header := githubHeader("issues")
	header.Set(SignatureHeader, NewVerifier([]byte(secret)).Sign([]byte(body)))

	rec := postDelivery(t, receiver.Handler(), "/hooks/github", body, header)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Accepted bool   `json:"accepted"`
		Kind     string `json:"kind"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response: %v", err)
	}
	if !resp.Accepted || resp.Kind != string(IssueCreated) {
		t.Errorf("response = %+v", resp)
	}
	if got == nil || got.Kind != IssueCreated {
		t.Errorf("handler event = %+v", got)
	}
}

func TestReceiverRejectsBadSignature(t *testing.T) {
	called := false
	receiver := NewReceiver(ReceiverConfig{
		Secrets: map[string]string{"github": "hook-secret"},
		Handler: func(ctx context.Context, backend string, event *Event) error {
			called = true
			return nil
		},
	})

	body := `{"action": "opened", "issue": {"number": 1}}`
	header := githubHeader("issues")
	header.Set(SignatureHeader, "sha256=deadbeef")

	rec := postDelivery(t, receiver.Handler(), "/hooks/github", body, header)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if called {
		t.Error("handler ran for an unverified delivery")
	}
}

func TestReceiverAcceptsUnsignedWhenNoSecret(t *testing.T) {
	receiver := NewReceiver(ReceiverConfig{
		Handler: func(ctx context.Context, backend string, event *Event) error { return nil },
	})

	body := `{"action": "opened", "issue": {"number": 1}}`
	rec := postDelivery(t, receiver.Handler(), "/hooks/github", body, githubHeader("issues"))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

func TestReceiverIgnoresUnrecognizedPayload(t *testing.T) {
	called := false
	receiver := NewReceiver(ReceiverConfig{
		Handler: func(ctx context.Context, backend string, event *Event) error {
			called = true
			return nil
		},
	})

	// Unknown event type: still 202 so the sender does not redeliver.
	rec := postDelivery(t, receiver.Handler(), "/hooks/github", `{}`, githubHeader("star"))
	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
	var resp struct {
		Accepted bool `json:"accepted"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Accepted {
		t.Error("accepted = true for an ignored payload")
	}
	if called {
		t.Error("handler ran for an ignored payload")
	}
}

func TestReceiverUnknownBackend(t *testing.T) {
	receiver := NewReceiver(ReceiverConfig{})
	rec := postDelivery(t, receiver.Handler(), "/hooks/bugzilla", `{}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestReceiverMethodNotAllowed(t *testing.T) {
	receiver := NewReceiver(ReceiverConfig{})
	req := httptest.NewRequest(http.MethodGet, "/hooks/github", nil)
	rec := httptest.NewRecorder()
	receiver.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestReceiverHandlerError(t *testing.T) {
	receiver := NewReceiver(ReceiverConfig{
		Handler: func(ctx context.Context, backend string, event *Event) error {
			return errors.New("downstream unavailable")
		},
	})

	body := `{"action": "opened", "issue": {"number": 1}}`
	rec := postDelivery(t, receiver.Handler(), "/hooks/github", body, githubHeader("issues"))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 so the sender redelivers", rec.Code)
	}
}

func TestReceiverHealth(t *testing.T) {
	receiver := NewReceiver(ReceiverConfig{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	receiver.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}
