package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// maxPayloadSize caps inbound webhook bodies.
const maxPayloadSize = 5 << 20

// EventHandler consumes one normalized event. Errors are reported to the
// sender as a 500 so it redelivers.
type EventHandler func(ctx context.Context, backend string, event *Event) error

// ReceiverConfig holds configuration for the webhook receiver.
type ReceiverConfig struct {
	// Secrets maps backend name -> shared HMAC secret. A backend with no
	// entry (or an empty one) accepts unsigned deliveries.
	Secrets map[string]string

	// Handler receives every normalized event.
	Handler EventHandler
}

// Receiver is the HTTP endpoint for inbound webhook deliveries. Routes are
// /hooks/{backend}; the backend segment selects the registered normalizer.
type Receiver struct {
	verifiers  map[string]*Verifier
	handler    EventHandler
	mux        *http.ServeMux
	httpServer *http.Server

	deliveries metric.Int64Counter
}

// NewReceiver creates a webhook receiver.
func NewReceiver(cfg ReceiverConfig) *Receiver {
	verifiers := make(map[string]*Verifier, len(cfg.Secrets))
	for backend, secret := range cfg.Secrets {
		verifiers[backend] = NewVerifier([]byte(secret))
	}

	meter := otel.Meter("github.com/trackwire/trackwire/internal/webhook")
	deliveries, _ := meter.Int64Counter("trackwire.webhook.deliveries",
		metric.WithDescription("Webhook deliveries received, by backend and outcome"))

	r := &Receiver{
		verifiers:  verifiers,
		handler:    cfg.Handler,
		mux:        http.NewServeMux(),
		deliveries: deliveries,
	}

	r.mux.HandleFunc("/hooks/", r.handleDelivery)
	r.mux.HandleFunc("/health", r.handleHealth)

	return r
}

// Start starts the HTTP server on the given address.
func (r *Receiver) Start(addr string) error {
	r.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return r.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (r *Receiver) Shutdown(ctx context.Context) error {
	if r.httpServer != nil {
		return r.httpServer.Shutdown(ctx)
	}
	return nil
}

// Handler returns the HTTP handler for use with custom servers and tests.
func (r *Receiver) Handler() http.Handler {
	return r.mux
}

// deliveryResponse is the JSON response body for webhook deliveries.
type deliveryResponse struct {
	Accepted bool   `json:"accepted"`
	Kind     string `json:"kind,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleDelivery handles POST /hooks/{backend}.
func (r *Receiver) handleDelivery(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if req.Method != http.MethodPost {
		r.writeError(w, http.StatusMethodNotAllowed, "method not allowed: use POST")
		return
	}

	backend := strings.Trim(strings.TrimPrefix(req.URL.Path, "/hooks/"), "/")
	if backend == "" || strings.Contains(backend, "/") {
		r.writeError(w, http.StatusNotFound, "not found: expected /hooks/{backend}")
		return
	}

	normalizer := Get(backend)
	if normalizer == nil {
		r.count(req.Context(), backend, "unknown_backend")
		r.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown backend %q (available: %v)", backend, List()))
		return
	}

	rawBody, err := io.ReadAll(io.LimitReader(req.Body, maxPayloadSize))
	if err != nil {
		r.writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer func() { _ = req.Body.Close() }()

	if verifier := r.verifiers[backend]; verifier != nil {
		if !verifier.Verify(rawBody, req.Header.Get(SignatureHeader)) {
			r.count(req.Context(), backend, "bad_signature")
			r.writeError(w, http.StatusUnauthorized, "signature verification failed")
			return
		}
	}

	// Normalization failures are "no event", not errors: a 202 tells the
	// sender not to redeliver a payload we will never understand.
	event, err := normalizer.Parse(rawBody, req.Header)
	if err != nil || event == nil {
		r.count(req.Context(), backend, "ignored")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(deliveryResponse{Accepted: false})
		return
	}

	if r.handler != nil {
		if err := r.handler(req.Context(), backend, event); err != nil {
			r.count(req.Context(), backend, "handler_error")
			r.writeError(w, http.StatusInternalServerError, fmt.Sprintf("event handler failed: %v", err))
			return
		}
	}

	r.count(req.Context(), backend, "accepted")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(deliveryResponse{Accepted: true, Kind: string(event.Kind)})
}

// handleHealth handles GET /health for load balancer checks.
func (r *Receiver) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeError writes a JSON error response.
func (r *Receiver) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(deliveryResponse{Accepted: false, Error: message})
}

func (r *Receiver) count(ctx context.Context, backend, outcome string) {
	r.deliveries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("outcome", outcome),
	))
}
