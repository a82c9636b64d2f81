package load

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the load does not exist.
	ErrNotFound = errors.New("load: not found")
	// ErrUserNotFound signals the referenced owner or driver does not exist.
	ErrUserNotFound = errors.New("load: user not found")
	// ErrNotPending signals an assignment attempt against a load that is no
	// longer pending and unassigned. Callers are expected to have checked the
	// precondition under the same lock, so hitting this concurrently means the
	// acceptance race was lost.
	ErrNotPending = errors.New("load: not pending")
)

// Repository handles data access for loads.
type Repository interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	Create(ctx context.Context, ownerID string, params CreateParams) (Load, error)
	GetByID(ctx context.Context, loadID string) (Load, error)
	ListAvailable(ctx context.Context) ([]Load, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Load, error)
	ListByDriver(ctx context.Context, driverID string) ([]Load, error)
	Assign(ctx context.Context, tx pgx.Tx, loadID, driverID string) (Load, error)
	ForceStatus(ctx context.Context, tx pgx.Tx, loadID string, status Status) (Load, error)
}

const loadColumns = `id, description, pickup_location, dropoff_location, weight, status::text, posted_by, assigned_driver, posted_at, completed_at`

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed load repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// UserExists reports whether a user row with the given id exists.
func (r *PGRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("load: check user: %w", err)
	}
	return exists, nil
}

// Create inserts a pending load owned by ownerID.
func (r *PGRepository) Create(ctx context.Context, ownerID string, params CreateParams) (Load, error) {
	const insertSQL = `
		INSERT INTO loads (description, pickup_location, dropoff_location, weight, status, posted_by)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		RETURNING ` + loadColumns

	l, err := scanLoad(r.pool.QueryRow(ctx, insertSQL,
		params.Description,
		params.PickupLocation,
		params.DropoffLocation,
		params.Weight,
		ownerID,
	))
	if err != nil {
		return Load{}, fmt.Errorf("load: create: %w", err)
	}
	return l, nil
}

// GetByID fetches a load by its primary key.
func (r *PGRepository) GetByID(ctx context.Context, loadID string) (Load, error) {
	const selectSQL = `SELECT ` + loadColumns + ` FROM loads WHERE id = $1`

	l, err := scanLoad(r.pool.QueryRow(ctx, selectSQL, loadID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Load{}, ErrNotFound
		}
		return Load{}, fmt.Errorf("load: get by id: %w", err)
	}
	return l, nil
}

// ListAvailable returns loads open for bidding: pending and unassigned.
func (r *PGRepository) ListAvailable(ctx context.Context) ([]Load, error) {
	const query = `
		SELECT ` + loadColumns + `
		FROM loads
		WHERE status = 'pending' AND assigned_driver IS NULL
		ORDER BY posted_at DESC
	`
	return r.list(ctx, query)
}

// ListByOwner returns loads posted by the given goods owner.
func (r *PGRepository) ListByOwner(ctx context.Context, ownerID string) ([]Load, error) {
	const query = `
		SELECT ` + loadColumns + `
		FROM loads
		WHERE posted_by = $1
		ORDER BY posted_at DESC
	`
	return r.list(ctx, query, ownerID)
}

// ListByDriver returns loads assigned to the given driver.
func (r *PGRepository) ListByDriver(ctx context.Context, driverID string) ([]Load, error) {
	const query = `
		SELECT ` + loadColumns + `
		FROM loads
		WHERE assigned_driver = $1
		ORDER BY posted_at DESC
	`
	return r.list(ctx, query, driverID)
}

// Assign binds the driver and moves the load pending -> active. It runs inside
// the caller's transaction so the bidding engine can make the whole acceptance
// atomic. The WHERE clause re-checks the precondition under the caller's lock.
func (r *PGRepository) Assign(ctx context.Context, tx pgx.Tx, loadID, driverID string) (Load, error) {
	const updateSQL = `
		UPDATE loads
		SET status = 'active', assigned_driver = $2
		WHERE id = $1 AND status = 'pending' AND assigned_driver IS NULL
		RETURNING ` + loadColumns

	l, err := scanLoad(tx.QueryRow(ctx, updateSQL, loadID, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Load{}, ErrNotPending
		}
		return Load{}, fmt.Errorf("load: assign driver: %w", err)
	}
	return l, nil
}

// ForceStatus overwrites the status unconditionally. This is the
// administrative escalation path: no transition graph is enforced. Forcing
// completed stamps completed_at; forcing anything else clears it.
func (r *PGRepository) ForceStatus(ctx context.Context, tx pgx.Tx, loadID string, status Status) (Load, error) {
	const updateSQL = `
		UPDATE loads
		SET status = $2::load_status,
		    completed_at = CASE WHEN $2 = 'completed' THEN COALESCE(completed_at, now()) ELSE NULL END
		WHERE id = $1
		RETURNING ` + loadColumns

	l, err := scanLoad(tx.QueryRow(ctx, updateSQL, loadID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Load{}, ErrNotFound
		}
		return Load{}, fmt.Errorf("load: force status: %w", err)
	}
	return l, nil
}

func (r *PGRepository) list(ctx context.Context, query string, args ...any) ([]Load, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load: list: %w", err)
	}
	defer rows.Close()

	out := make([]Load, 0, 8)
	for rows.Next() {
		l, err := scanLoad(rows)
		if err != nil {
			return nil, fmt.Errorf("load: scan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load: iterate: %w", err)
	}
	return out, nil
}

func scanLoad(row pgx.Row) (Load, error) {
	var l Load
	err := row.Scan(
		&l.ID,
		&l.Description,
		&l.PickupLocation,
		&l.DropoffLocation,
		&l.Weight,
		&l.Status,
		&l.PostedBy,
		&l.AssignedDriver,
		&l.PostedAt,
		&l.CompletedAt,
	)
	if err != nil {
		return Load{}, err
	}
	return l, nil
}
