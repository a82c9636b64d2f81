package dispute

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the dispute does not exist.
	ErrNotFound = errors.New("dispute: not found")
	// ErrForbidden signals the caller is not associated with the load.
	ErrForbidden = errors.New("dispute: forbidden")
	// ErrUserNotFound signals the raising user does not exist.
	ErrUserNotFound = errors.New("dispute: user not found")
	// ErrLoadNotFound signals the referenced load does not exist.
	ErrLoadNotFound = errors.New("dispute: load not found")
)

// Repository handles data access for disputes.
type Repository interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	GetLoadParticipants(ctx context.Context, loadID string) (postedBy string, assignedDriver *string, err error)
	DriverHasBid(ctx context.Context, loadID, driverID string) (bool, error)
	Create(ctx context.Context, loadID, userID, reason string) (Record, error)
	ListByUser(ctx context.Context, userID string) ([]Record, error)
	Resolve(ctx context.Context, tx pgx.Tx, disputeID string, status Status) (Record, error)
}

const disputeColumns = `id, load_id, raised_by, reason, status::text, created_at, resolved_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed dispute repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// UserExists reports whether a user row with the given id exists.
func (r *PGRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("dispute: check user: %w", err)
	}
	return exists, nil
}

// GetLoadParticipants fetches the posting owner and assigned driver of a load.
func (r *PGRepository) GetLoadParticipants(ctx context.Context, loadID string) (string, *string, error) {
	var (
		postedBy       string
		assignedDriver *string
	)
	err := r.pool.QueryRow(ctx, `SELECT posted_by, assigned_driver FROM loads WHERE id = $1`, loadID).
		Scan(&postedBy, &assignedDriver)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrLoadNotFound
		}
		return "", nil, fmt.Errorf("dispute: get load participants: %w", err)
	}
	return postedBy, assignedDriver, nil
}

// DriverHasBid reports whether the driver ever bid on the load.
func (r *PGRepository) DriverHasBid(ctx context.Context, loadID, driverID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bids WHERE load_id = $1 AND driver_id = $2)`, loadID, driverID).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dispute: check driver bid: %w", err)
	}
	return exists, nil
}

// Create inserts an open dispute.
func (r *PGRepository) Create(ctx context.Context, loadID, userID, reason string) (Record, error) {
	const insertSQL = `
		INSERT INTO disputes (load_id, raised_by, reason, status)
		VALUES ($1, $2, $3, 'open')
		RETURNING ` + disputeColumns

	rec, err := scanRecord(r.pool.QueryRow(ctx, insertSQL, loadID, userID, reason))
	if err != nil {
		return Record{}, fmt.Errorf("dispute: create: %w", err)
	}
	return rec, nil
}

// ListByUser returns the disputes raised by the given user, newest first.
func (r *PGRepository) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	const query = `
		SELECT ` + disputeColumns + `
		FROM disputes
		WHERE raised_by = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0, 8)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("dispute: scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate: %w", err)
	}
	return out, nil
}

// Resolve overwrites the status unconditionally inside the caller's
// transaction. Entering resolved or closed stamps resolved_at; moving back out
// of a terminal state clears it.
func (r *PGRepository) Resolve(ctx context.Context, tx pgx.Tx, disputeID string, status Status) (Record, error) {
	const updateSQL = `
		UPDATE disputes
		SET status = $2::dispute_status,
		    resolved_at = CASE WHEN $3 THEN COALESCE(resolved_at, now()) ELSE NULL END
		WHERE id = $1
		RETURNING ` + disputeColumns

	rec, err := scanRecord(tx.QueryRow(ctx, updateSQL, disputeID, status, status.Terminal()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("dispute: resolve: %w", err)
	}
	return rec, nil
}

func scanRecord(row pgx.Row) (Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.LoadID,
		&rec.RaisedBy,
		&rec.Reason,
		&rec.Status,
		&rec.CreatedAt,
		&rec.ResolvedAt,
	)
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}
