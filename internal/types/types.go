// Package types defines the canonical vocabulary shared by every backend
// integration: lifecycle statuses and the normalized user shape.
package types

// Status is the backend-agnostic issue lifecycle state.
//
// The canonical set is closed: normalization always resolves to one of the
// five constants below, or to a lossy backend-specific fallback that callers
// must treat as opaque (see status.Mapper).
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusOnHold     Status = "on_hold"
	StatusClosed     Status = "closed"
)

// CanonicalStatuses lists the closed canonical set in priority order.
func CanonicalStatuses() []Status {
	return []Status{StatusOpen, StatusInProgress, StatusBlocked, StatusOnHold, StatusClosed}
}

// IsCanonical reports whether s is one of the five canonical statuses.
func IsCanonical(s Status) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusBlocked, StatusOnHold, StatusClosed:
		return true
	}
	return false
}

// User is a normalized actor reference from any backend.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
}
