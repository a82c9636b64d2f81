package dispute

import "time"

// Status represents the lifecycle of a dispute record. Transitions past open
// are administrator-only.
type Status string

const (
	StatusOpen        Status = "open"
	StatusUnderReview Status = "under_review"
	StatusResolved    Status = "resolved"
	StatusClosed      Status = "closed"
)

// IsValid reports whether s is one of the known dispute states.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusUnderReview, StatusResolved, StatusClosed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s ends the dispute and should stamp resolved_at.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// Record mirrors the disputes table.
type Record struct {
	ID         string
	LoadID     string
	RaisedBy   string
	Reason     string
	Status     Status
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// RaiseParams carries a new grievance. Role is the caller's role claim as
// resolved by the identity layer; the engine uses it to pick which
// load-association rule applies.
type RaiseParams struct {
	UserID string
	Role   string
	LoadID string
	Reason string
}
