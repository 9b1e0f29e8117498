package webhook

import (
	"net/http"
	"sort"
	"sync"
)

// Normalizer turns a verified raw payload into one normalized event.
// Implementations are per-backend dispatch tables keyed by the backend's
// event discriminator (a header value or a payload field).
//
// Parse returns (nil, nil) for malformed JSON and unrecognized
// discriminators: webhook delivery must never be treated as fatal by the
// receiving endpoint, or the sender's redelivery logic turns one bad payload
// into a storm.
type Normalizer interface {
	// Name returns the lowercase backend identifier (e.g. "github").
	Name() string

	// Parse normalizes one delivery. A nil event with nil error means
	// "no event" — the payload was unrecognized or malformed.
	Parse(rawBody []byte, header http.Header) (*Event, error)
}

// NormalizerFactory creates a new Normalizer instance.
type NormalizerFactory func() Normalizer

// Registry manages registered webhook normalizers. Backend packages register
// themselves at init time.
type Registry struct {
	mu          sync.RWMutex
	normalizers map[string]NormalizerFactory
}

var globalRegistry = &Registry{
	normalizers: make(map[string]NormalizerFactory),
}

// Register adds a normalizer factory to the global registry. Typically
// called from backend init() functions.
func Register(name string, factory NormalizerFactory) {
	globalRegistry.Register(name, factory)
}

// Get retrieves a normalizer for the named backend, or nil when none is
// registered.
func Get(name string) Normalizer {
	return globalRegistry.Get(name)
}

// List returns the registered backend names.
func List() []string {
	return globalRegistry.List()
}

// Register adds a normalizer factory to this registry.
func (r *Registry) Register(name string, factory NormalizerFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.normalizers[name] = factory
}

// Get builds a normalizer for the named backend, or nil.
func (r *Registry) Get(name string) Normalizer {
	r.mu.RLock()
	factory := r.normalizers[name]
	r.mu.RUnlock()
	if factory == nil {
		return nil
	}
	return factory()
}

// List returns the registered backend names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.normalizers))
	for name := range r.normalizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
