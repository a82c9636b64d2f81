package bid

import "time"

// Status enumerates the bid states. A bid leaves pending exactly once: to
// accepted by the load owner, or to rejected when a sibling bid wins.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Bid mirrors the bids table. Amount is the caller-supplied decimal, stored
// and returned verbatim. PlacedAt is server-assigned and immutable.
type Bid struct {
	ID       string
	LoadID   string
	DriverID string
	Amount   string
	Status   Status
	PlacedAt time.Time
}

// SubmitParams contains the fields required to place a bid.
type SubmitParams struct {
	DriverID string
	LoadID   string
	Amount   string
}

// LoadInfo is the slice of the load row the bidding engine needs for its
// authorization and precondition checks.
type LoadInfo struct {
	ID             string
	PostedBy       string
	Status         string
	AssignedDriver *string
}
