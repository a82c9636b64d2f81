package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"loadboard/admin"
	"loadboard/bid"
	"loadboard/dispute"
	"loadboard/load"
)

// Poster keeps putting fresh loads on the board for a goods owner.
func Poster(ctx context.Context, loads *load.Service, ownerID string, stop <-chan struct{}) error {
	cities := []string{"Chennai", "Pune", "Nagpur", "Surat", "Indore", "Kochi"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		from := cities[rand.Intn(len(cities))]
		to := cities[rand.Intn(len(cities))]
		_, err := loads.Post(ctx, ownerID, load.CreateParams{
			Description:     fmt.Sprintf("pallets %d", rand.Int63()),
			PickupLocation:  from,
			DropoffLocation: to,
			Weight:          float64(500 + rand.Intn(4500)),
		})
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("poster: %w", err)
		}
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// Bidder picks a random open load and throws a bid at it. Losing the race to
// a closing load or bidding twice are expected outcomes, not failures.
func Bidder(ctx context.Context, bids *bid.Service, pool *pgxpool.Pool, driverID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var loadID string
		err := pool.QueryRow(ctx, `SELECT id FROM loads WHERE status = 'pending' AND assigned_driver IS NULL ORDER BY random() LIMIT 1`).Scan(&loadID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
				return fmt.Errorf("bidder pick load: %w", err)
			}
			time.Sleep(20 * time.Millisecond)
			continue
		}
		_, err = bids.Submit(ctx, bid.SubmitParams{
			LoadID:   loadID,
			DriverID: driverID,
			Amount:   fmt.Sprintf("%d.00", 500+rand.Intn(1500)),
		})
		switch {
		case err == nil:
		case errors.Is(err, bid.ErrDuplicateBid),
			errors.Is(err, bid.ErrLoadNotOpen),
			errors.Is(err, bid.ErrLoadNotFound):
			// lost a race, fine
		default:
			if ctx.Err() == nil {
				return fmt.Errorf("bidder submit: %w", err)
			}
		}
		time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
	}
}

// Accepter hunts for pending bids on the owner's loads and accepts them.
// Concurrent accepters racing for the same load must leave exactly one winner.
func Accepter(ctx context.Context, bids *bid.Service, pool *pgxpool.Pool, ownerID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var bidID string
		err := pool.QueryRow(ctx, `
			SELECT b.id FROM bids b
			JOIN loads l ON l.id = b.load_id
			WHERE l.posted_by = $1 AND b.status = 'pending' AND l.status = 'pending'
			ORDER BY random() LIMIT 1`, ownerID).Scan(&bidID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
				return fmt.Errorf("accepter pick bid: %w", err)
			}
			time.Sleep(30 * time.Millisecond)
			continue
		}
		_, err = bids.Accept(ctx, ownerID, bidID)
		switch {
		case err == nil:
		case errors.Is(err, bid.ErrLoadNotPending),
			errors.Is(err, bid.ErrBidNotPending),
			errors.Is(err, bid.ErrNotFound):
			// another accepter got there first
		default:
			if ctx.Err() == nil {
				return fmt.Errorf("accepter accept: %w", err)
			}
		}
		time.Sleep(time.Duration(15+rand.Intn(35)) * time.Millisecond)
	}
}

// Completer plays the administrator closing out delivered loads.
func Completer(ctx context.Context, svc *admin.Service, pool *pgxpool.Pool, adminID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var loadID string
		err := pool.QueryRow(ctx, `SELECT id FROM loads WHERE status = 'active' ORDER BY random() LIMIT 1`).Scan(&loadID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
				return fmt.Errorf("completer pick load: %w", err)
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if _, err := svc.ForceLoadStatus(ctx, adminID, loadID, load.StatusCompleted); err != nil {
			if !errors.Is(err, load.ErrNotFound) && ctx.Err() == nil {
				return fmt.Errorf("completer force: %w", err)
			}
		}
		time.Sleep(time.Duration(80+rand.Intn(80)) * time.Millisecond)
	}
}

// Disputer raises disputes as the assigned driver of finished loads.
func Disputer(ctx context.Context, disputes *dispute.Service, pool *pgxpool.Pool, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var loadID, driverID string
		err := pool.QueryRow(ctx, `SELECT id, assigned_driver FROM loads WHERE assigned_driver IS NOT NULL ORDER BY random() LIMIT 1`).Scan(&loadID, &driverID)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
				return fmt.Errorf("disputer pick load: %w", err)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		_, err = disputes.Raise(ctx, dispute.RaiseParams{
			UserID: driverID,
			Role:   "driver",
			LoadID: loadID,
			Reason: "detention at unloading",
		})
		switch {
		case err == nil:
		case errors.Is(err, dispute.ErrForbidden), errors.Is(err, dispute.ErrLoadNotFound):
		default:
			if ctx.Err() == nil {
				return fmt.Errorf("disputer raise: %w", err)
			}
		}
		time.Sleep(time.Duration(150+rand.Intn(150)) * time.Millisecond)
	}
}

// Resolver plays the administrator working the dispute queue.
func Resolver(ctx context.Context, svc *admin.Service, pool *pgxpool.Pool, adminID string, stop <-chan struct{}) error {
	next := map[dispute.Status]dispute.Status{
		dispute.StatusOpen:        dispute.StatusUnderReview,
		dispute.StatusUnderReview: dispute.StatusResolved,
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var disputeID, status string
		err := pool.QueryRow(ctx, `SELECT id, status::text FROM disputes WHERE status IN ('open','under_review') ORDER BY random() LIMIT 1`).Scan(&disputeID, &status)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) && ctx.Err() == nil {
				return fmt.Errorf("resolver pick dispute: %w", err)
			}
			time.Sleep(100 * time.Millisecond)
			continue
		}
		target, ok := next[dispute.Status(status)]
		if !ok {
			continue
		}
		if _, err := svc.ForceDisputeStatus(ctx, adminID, disputeID, target); err != nil {
			if !errors.Is(err, dispute.ErrNotFound) && ctx.Err() == nil {
				return fmt.Errorf("resolver force: %w", err)
			}
		}
		time.Sleep(time.Duration(120+rand.Intn(120)) * time.Millisecond)
	}
}
