package webhook

import (
	"encoding/json"
	"time"

	"github.com/trackwire/trackwire/internal/types"
)

// EventKind is the normalized webhook event type.
type EventKind string

const (
	IssueCreated   EventKind = "issue_created"
	IssueUpdated   EventKind = "issue_updated"
	IssueClosed    EventKind = "issue_closed"
	CommentAdded   EventKind = "comment_added"
	CommentUpdated EventKind = "comment_updated"
	CommentDeleted EventKind = "comment_deleted"
)

// ResourceKind identifies what the event is about.
type ResourceKind string

const (
	ResourceIssue   ResourceKind = "issue"
	ResourceComment ResourceKind = "comment"
)

// FieldChange is one changed field as an [old, new] pair.
type FieldChange struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Event is one normalized webhook delivery. Immutable value; created per
// inbound call with no further lifecycle.
type Event struct {
	Kind       EventKind    `json:"kind"`
	Resource   ResourceKind `json:"resource"`
	ResourceID string       `json:"resource_id"`
	ProjectID  string       `json:"project_id"`
	Actor      types.User   `json:"actor"`
	Timestamp  time.Time    `json:"timestamp,omitzero"`

	// Changes maps field name -> [old, new] when the backend delivered a
	// changelog/diff structure. Nil otherwise.
	Changes map[string]FieldChange `json:"changes,omitempty"`

	// Raw retains the original payload for debugging.
	Raw json.RawMessage `json:"-"`
}
