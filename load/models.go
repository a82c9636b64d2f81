package load

import "time"

// Status enumerates the load lifecycle states.
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsValid reports whether s is one of the known lifecycle states.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Load mirrors the loads table. PostedBy is immutable after creation and
// AssignedDriver is set exactly once, when a bid is accepted.
type Load struct {
	ID              string
	Description     string
	PickupLocation  string
	DropoffLocation string
	Weight          float64
	Status          Status
	PostedBy        string
	AssignedDriver  *string
	PostedAt        time.Time
	CompletedAt     *time.Time
}

// CreateParams contains the shipment details supplied by a goods owner.
type CreateParams struct {
	Description     string
	PickupLocation  string
	DropoffLocation string
	Weight          float64
}
