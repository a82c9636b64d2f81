package bid

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"loadboard/load"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// TestAccept_Integration connects to a real PostgreSQL via DATABASE_URL and
// races two acceptances on the same load: exactly one must win, the other must
// lose with ErrLoadNotPending, and the sibling bid must end up rejected.
func TestAccept_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"users", "loads", "bids"} {
		var exists bool
		if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists); err != nil {
			t.Fatalf("check table %s: %v", table, err)
		}
		if !exists {
			t.Skipf("table %s missing; apply migrations first", table)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("integration"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	seedUser := func(role string) string {
		var id string
		suffix := time.Now().UnixNano()
		err := pool.QueryRow(ctx, `
			INSERT INTO users (username, email, password_hash, role)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, fmt.Sprintf("%s-%d", role, suffix), fmt.Sprintf("%s+%d@example.com", role, suffix), string(hash), role).Scan(&id)
		if err != nil {
			t.Fatalf("seed %s: %v", role, err)
		}
		return id
	}

	ownerID := seedUser("goods_owner")
	driverA := seedUser("driver")
	driverB := seedUser("driver")

	var loadID string
	if err := pool.QueryRow(ctx, `
		INSERT INTO loads (description, pickup_location, dropoff_location, weight, status, posted_by)
		VALUES ('pallet of tiles', 'Chennai', 'Bengaluru', 500, 'pending', $1)
		RETURNING id
	`, ownerID).Scan(&loadID); err != nil {
		t.Fatalf("seed load: %v", err)
	}

	loads := load.NewRepository(pool)
	svc := NewService(pool, NewRepository(pool), loads)

	bidA, err := svc.Submit(ctx, SubmitParams{DriverID: driverA, LoadID: loadID, Amount: "100.00"})
	if err != nil {
		t.Fatalf("submit bid A: %v", err)
	}
	bidB, err := svc.Submit(ctx, SubmitParams{DriverID: driverB, LoadID: loadID, Amount: "90.00"})
	if err != nil {
		t.Fatalf("submit bid B: %v", err)
	}

	type outcome struct {
		res AcceptResult
		err error
	}
	results := make(chan outcome, 2)
	for _, id := range []string{bidA.ID, bidB.ID} {
		go func(bidID string) {
			res, err := svc.Accept(ctx, ownerID, bidID)
			results <- outcome{res: res, err: err}
		}(id)
	}

	var wins, losses int
	var winner AcceptResult
	for i := 0; i < 2; i++ {
		o := <-results
		switch {
		case o.err == nil:
			wins++
			winner = o.res
		case errors.Is(o.err, ErrLoadNotPending):
			losses++
		default:
			t.Fatalf("unexpected acceptance error: %v", o.err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected exactly one winner and one loser, got %d/%d", wins, losses)
	}

	if winner.Load.Status != load.StatusActive {
		t.Fatalf("expected active load, got %s", winner.Load.Status)
	}
	if winner.Load.AssignedDriver == nil || *winner.Load.AssignedDriver != winner.Bid.DriverID {
		t.Fatalf("load assigned to %v, winning bid driver %s", winner.Load.AssignedDriver, winner.Bid.DriverID)
	}

	var acceptedCount, rejectedCount int
	if err := pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'accepted'),
		       COUNT(*) FILTER (WHERE status = 'rejected')
		FROM bids WHERE load_id = $1
	`, loadID).Scan(&acceptedCount, &rejectedCount); err != nil {
		t.Fatalf("count bids: %v", err)
	}
	if acceptedCount != 1 || rejectedCount != 1 {
		t.Fatalf("expected 1 accepted / 1 rejected, got %d/%d", acceptedCount, rejectedCount)
	}

	// A second acceptance attempt on the loser must fail the same way and
	// leave the store untouched.
	loserID := bidA.ID
	if winner.Bid.ID == bidA.ID {
		loserID = bidB.ID
	}
	if _, err := svc.Accept(ctx, ownerID, loserID); !errors.Is(err, ErrLoadNotPending) {
		t.Fatalf("expected ErrLoadNotPending on retry, got %v", err)
	}
}
