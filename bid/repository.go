package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the bid does not exist.
	ErrNotFound = errors.New("bid: not found")
	// ErrUserNotFound signals the bidding driver does not exist.
	ErrUserNotFound = errors.New("bid: user not found")
	// ErrLoadNotFound signals the target load does not exist.
	ErrLoadNotFound = errors.New("bid: load not found")
	// ErrLoadNotOpen signals the load is not open for bidding.
	ErrLoadNotOpen = errors.New("bid: load not open for bidding")
	// ErrDuplicateBid signals the driver already bid on this load.
	ErrDuplicateBid = errors.New("bid: driver already bid on load")
)

// Repository handles data access for bids. Transaction-scoped methods take an
// explicit pgx.Tx so the acceptance sequence commits as one unit.
type Repository interface {
	Submit(ctx context.Context, params SubmitParams) (Bid, error)
	ListByDriver(ctx context.Context, driverID string) ([]Bid, error)
	ListForLoad(ctx context.Context, loadID string) ([]Bid, error)
	GetLoadOwner(ctx context.Context, loadID string) (string, error)
	LockBidLoad(ctx context.Context, tx pgx.Tx, bidID string) (Bid, LoadInfo, error)
	MarkAccepted(ctx context.Context, tx pgx.Tx, bidID string) (Bid, error)
	RejectSiblings(ctx context.Context, tx pgx.Tx, loadID, acceptedBidID string) (int64, error)
}

const bidColumns = `id, load_id, driver_id, amount::text, status::text, placed_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed bid repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Submit inserts a pending bid. The insert is guarded so it only lands while
// the load is still pending and unassigned; a no-row result is disambiguated
// afterwards into load-missing versus load-closed.
func (r *PGRepository) Submit(ctx context.Context, params SubmitParams) (Bid, error) {
	var driverExists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, params.DriverID).Scan(&driverExists); err != nil {
		return Bid{}, fmt.Errorf("bid: check driver: %w", err)
	}
	if !driverExists {
		return Bid{}, ErrUserNotFound
	}

	// FOR UPDATE blocks behind a concurrent acceptance; once that commits the
	// guard re-evaluates against the closed load and no row is inserted.
	const insertSQL = `
		INSERT INTO bids (load_id, driver_id, amount, status)
		SELECT l.id, $2, $3::numeric, 'pending'
		FROM loads l
		WHERE l.id = $1 AND l.status = 'pending' AND l.assigned_driver IS NULL
		FOR UPDATE OF l
		RETURNING ` + bidColumns

	b, err := scanBid(r.pool.QueryRow(ctx, insertSQL, params.LoadID, params.DriverID, params.Amount))
	if err == nil {
		return b, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Bid{}, ErrDuplicateBid
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Bid{}, fmt.Errorf("bid: submit: %w", err)
	}

	var loadExists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM loads WHERE id = $1)`, params.LoadID).Scan(&loadExists); err != nil {
		return Bid{}, fmt.Errorf("bid: check load: %w", err)
	}
	if !loadExists {
		return Bid{}, ErrLoadNotFound
	}
	return Bid{}, ErrLoadNotOpen
}

// ListByDriver returns the driver's bid history, newest first.
func (r *PGRepository) ListByDriver(ctx context.Context, driverID string) ([]Bid, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, driverID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("bid: check driver: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	const query = `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE driver_id = $1
		ORDER BY placed_at DESC
	`
	return r.list(ctx, query, driverID)
}

// ListForLoad returns all bids against a load, newest first.
func (r *PGRepository) ListForLoad(ctx context.Context, loadID string) ([]Bid, error) {
	const query = `
		SELECT ` + bidColumns + `
		FROM bids
		WHERE load_id = $1
		ORDER BY placed_at DESC
	`
	return r.list(ctx, query, loadID)
}

// GetLoadOwner fetches the posting owner of a load.
func (r *PGRepository) GetLoadOwner(ctx context.Context, loadID string) (string, error) {
	var owner string
	if err := r.pool.QueryRow(ctx, `SELECT posted_by FROM loads WHERE id = $1`, loadID).Scan(&owner); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrLoadNotFound
		}
		return "", fmt.Errorf("bid: get load owner: %w", err)
	}
	return owner, nil
}

// LockBidLoad fetches the bid and locks its load row FOR UPDATE. Holding the
// row lock until commit is what serializes competing acceptances: the loser
// blocks here until the winner commits, then sees a non-pending load.
func (r *PGRepository) LockBidLoad(ctx context.Context, tx pgx.Tx, bidID string) (Bid, LoadInfo, error) {
	const bidSQL = `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`

	b, err := scanBid(tx.QueryRow(ctx, bidSQL, bidID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bid{}, LoadInfo{}, ErrNotFound
		}
		return Bid{}, LoadInfo{}, fmt.Errorf("bid: fetch bid: %w", err)
	}

	const loadSQL = `
		SELECT id, posted_by, status::text, assigned_driver
		FROM loads
		WHERE id = $1
		FOR UPDATE
	`
	var info LoadInfo
	if err := tx.QueryRow(ctx, loadSQL, b.LoadID).Scan(&info.ID, &info.PostedBy, &info.Status, &info.AssignedDriver); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bid{}, LoadInfo{}, ErrLoadNotFound
		}
		return Bid{}, LoadInfo{}, fmt.Errorf("bid: lock load: %w", err)
	}

	return b, info, nil
}

// MarkAccepted flips the bid to accepted inside the caller's transaction.
func (r *PGRepository) MarkAccepted(ctx context.Context, tx pgx.Tx, bidID string) (Bid, error) {
	const updateSQL = `
		UPDATE bids
		SET status = 'accepted'
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + bidColumns

	b, err := scanBid(tx.QueryRow(ctx, updateSQL, bidID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bid{}, ErrNotFound
		}
		return Bid{}, fmt.Errorf("bid: mark accepted: %w", err)
	}
	return b, nil
}

// RejectSiblings rejects every other pending bid on the load as one bounded
// bulk update within the acceptance transaction. Bids already accepted or
// rejected are untouched.
func (r *PGRepository) RejectSiblings(ctx context.Context, tx pgx.Tx, loadID, acceptedBidID string) (int64, error) {
	tag, err := tx.Exec(ctx, `
		UPDATE bids
		SET status = 'rejected'
		WHERE load_id = $1 AND id <> $2 AND status = 'pending'
	`, loadID, acceptedBidID)
	if err != nil {
		return 0, fmt.Errorf("bid: reject siblings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Bid, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bid: list: %w", err)
	}
	defer rows.Close()

	out := make([]Bid, 0, 8)
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("bid: scan: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bid: iterate: %w", err)
	}
	return out, nil
}

func scanBid(row pgx.Row) (Bid, error) {
	var b Bid
	err := row.Scan(
		&b.ID,
		&b.LoadID,
		&b.DriverID,
		&b.Amount,
		&b.Status,
		&b.PlacedAt,
	)
	if err != nil {
		return Bid{}, err
	}
	return b, nil
}
