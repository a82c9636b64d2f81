package bid

import (
	"context"
	"errors"
	"fmt"

	"loadboard/load"

	"github.com/jackc/pgx/v5"
)

var (
	// ErrForbidden signals the caller does not own the bid's load.
	ErrForbidden = errors.New("bid: forbidden")
	// ErrLoadNotPending signals an acceptance attempt while the load is no
	// longer pending. Concurrent losers of an acceptance race surface this too.
	ErrLoadNotPending = errors.New("bid: load no longer pending")
	// ErrBidNotPending signals an acceptance attempt on a bid that already
	// reached accepted or rejected.
	ErrBidNotPending = errors.New("bid: bid no longer pending")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LoadAssigner is the slice of the load lifecycle engine the bidding engine
// drives: binding a driver inside the acceptance transaction.
type LoadAssigner interface {
	Assign(ctx context.Context, tx pgx.Tx, loadID, driverID string) (load.Load, error)
}

// Service exposes the bidding operations.
type Service struct {
	pool  TxBeginner
	repo  Repository
	loads LoadAssigner
}

// NewService builds a bidding Service over the repository and the load
// lifecycle engine used for driver assignment.
func NewService(pool TxBeginner, repo Repository, loads LoadAssigner) *Service {
	return &Service{pool: pool, repo: repo, loads: loads}
}

// Submit places a pending bid against an open load. The amount is accepted
// as given; pricing rules are out of scope.
func (s *Service) Submit(ctx context.Context, params SubmitParams) (Bid, error) {
	if params.DriverID == "" {
		return Bid{}, fmt.Errorf("bid: missing driver id")
	}
	if params.LoadID == "" {
		return Bid{}, fmt.Errorf("bid: missing load id")
	}
	if params.Amount == "" {
		return Bid{}, fmt.Errorf("bid: missing amount")
	}
	return s.repo.Submit(ctx, params)
}

// ListByDriver returns the driver's bid history.
func (s *Service) ListByDriver(ctx context.Context, driverID string) ([]Bid, error) {
	return s.repo.ListByDriver(ctx, driverID)
}

// ListForLoad returns the bids on a load, visible only to its owner.
func (s *Service) ListForLoad(ctx context.Context, ownerID, loadID string) ([]Bid, error) {
	owner, err := s.repo.GetLoadOwner(ctx, loadID)
	if err != nil {
		return nil, err
	}
	if owner != ownerID {
		return nil, ErrForbidden
	}
	return s.repo.ListForLoad(ctx, loadID)
}

// AcceptResult bundles the accepted bid, the updated load, and the number of
// sibling bids rejected by the cascade.
type AcceptResult struct {
	Bid      Bid
	Load     load.Load
	Rejected int64
}

// Accept marks the bid accepted, assigns its driver to the load, and rejects
// every other pending bid on the same load, all inside one transaction with
// the load row locked. At most one acceptance can win per load; a concurrent
// loser fails with ErrLoadNotPending once the winner commits.
func (s *Service) Accept(ctx context.Context, ownerID, bidID string) (AcceptResult, error) {
	if bidID == "" {
		return AcceptResult{}, fmt.Errorf("bid: missing bid id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return AcceptResult{}, fmt.Errorf("bid: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	b, li, err := s.repo.LockBidLoad(ctx, tx, bidID)
	if err != nil {
		return AcceptResult{}, err
	}

	if li.PostedBy != ownerID {
		return AcceptResult{}, ErrForbidden
	}
	if li.Status != string(load.StatusPending) || li.AssignedDriver != nil {
		return AcceptResult{}, ErrLoadNotPending
	}
	if b.Status != StatusPending {
		return AcceptResult{}, ErrBidNotPending
	}

	accepted, err := s.repo.MarkAccepted(ctx, tx, bidID)
	if err != nil {
		return AcceptResult{}, err
	}

	updated, err := s.loads.Assign(ctx, tx, b.LoadID, b.DriverID)
	if err != nil {
		return AcceptResult{}, err
	}

	rejected, err := s.repo.RejectSiblings(ctx, tx, b.LoadID, bidID)
	if err != nil {
		return AcceptResult{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return AcceptResult{}, fmt.Errorf("bid: commit acceptance: %w", err)
	}

	return AcceptResult{Bid: accepted, Load: updated, Rejected: rejected}, nil
}
