package graphql

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// DeprecationHeader is the response header some backends use to announce
// that an object id has been migrated to a new format. The value is one or
// more comma-separated "old=new" pairs.
const DeprecationHeader = "X-Deprecation"

// DeprecationTracker wraps a Client and records id-deprecation warnings
// announced in response headers, exposing an upgraded-id lookup. This is a
// decorator: the underlying client is never mutated.
type DeprecationTracker struct {
	client *Client

	mu       sync.RWMutex
	upgrades map[string]string
}

// NewDeprecationTracker wraps client with deprecation-warning tracking.
func NewDeprecationTracker(client *Client) *DeprecationTracker {
	return &DeprecationTracker{
		client:   client,
		upgrades: make(map[string]string),
	}
}

// Execute behaves like Client.Execute and additionally records any
// deprecation mappings carried on the response.
func (t *DeprecationTracker) Execute(ctx context.Context, query string, vars map[string]any) (json.RawMessage, error) {
	data, res, err := t.client.execute(ctx, query, vars)
	if res != nil {
		t.record(res.Header.Values(DeprecationHeader))
	}
	return data, err
}

// UpgradedID returns the replacement id recorded for old, if any call so far
// announced one.
func (t *DeprecationTracker) UpgradedID(old string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	upgraded, ok := t.upgrades[old]
	return upgraded, ok
}

func (t *DeprecationTracker) record(values []string) {
	if len(values) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, value := range values {
		for _, pair := range strings.Split(value, ",") {
			old, upgraded, ok := strings.Cut(strings.TrimSpace(pair), "=")
			if !ok || old == "" || upgraded == "" {
				continue
			}
			t.upgrades[old] = upgraded
		}
	}
}
