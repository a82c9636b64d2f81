package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"loadboard/auth"
	"loadboard/dispute"
	"loadboard/load"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound signals the target user does not exist.
var ErrUserNotFound = errors.New("admin: user not found")

// AuditEvent records one administrative override. Written in the same
// transaction as the override itself, so the trail cannot lag the data.
type AuditEvent struct {
	ActorID    string
	EntityKind string
	EntityID   string
	Action     string
	Payload    map[string]any
}

// Repository handles data access for the administration facade.
type Repository interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
	ListLoads(ctx context.Context) ([]load.Load, error)
	ListDisputes(ctx context.Context) ([]dispute.Record, error)
	SetUserEnabled(ctx context.Context, tx pgx.Tx, userID string, enabled bool) (auth.User, error)
	RecordAudit(ctx context.Context, tx pgx.Tx, event AuditEvent) error
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed admin repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListUsers returns every account.
func (r *PGRepository) ListUsers(ctx context.Context) ([]auth.User, error) {
	const query = `
		SELECT id, username, email, password_hash, role, enabled, created_at, updated_at
		FROM users
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("admin: list users: %w", err)
	}
	defer rows.Close()

	out := make([]auth.User, 0, 16)
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Enabled, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("admin: scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin: iterate users: %w", err)
	}
	return out, nil
}

// ListLoads returns every load.
func (r *PGRepository) ListLoads(ctx context.Context) ([]load.Load, error) {
	const query = `
		SELECT id, description, pickup_location, dropoff_location, weight, status::text, posted_by, assigned_driver, posted_at, completed_at
		FROM loads
		ORDER BY posted_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("admin: list loads: %w", err)
	}
	defer rows.Close()

	out := make([]load.Load, 0, 16)
	for rows.Next() {
		var l load.Load
		if err := rows.Scan(&l.ID, &l.Description, &l.PickupLocation, &l.DropoffLocation, &l.Weight, &l.Status, &l.PostedBy, &l.AssignedDriver, &l.PostedAt, &l.CompletedAt); err != nil {
			return nil, fmt.Errorf("admin: scan load: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin: iterate loads: %w", err)
	}
	return out, nil
}

// ListDisputes returns every dispute.
func (r *PGRepository) ListDisputes(ctx context.Context) ([]dispute.Record, error) {
	const query = `
		SELECT id, load_id, raised_by, reason, status::text, created_at, resolved_at
		FROM disputes
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("admin: list disputes: %w", err)
	}
	defer rows.Close()

	out := make([]dispute.Record, 0, 16)
	for rows.Next() {
		var rec dispute.Record
		if err := rows.Scan(&rec.ID, &rec.LoadID, &rec.RaisedBy, &rec.Reason, &rec.Status, &rec.CreatedAt, &rec.ResolvedAt); err != nil {
			return nil, fmt.Errorf("admin: scan dispute: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin: iterate disputes: %w", err)
	}
	return out, nil
}

// SetUserEnabled toggles the enabled flag inside the caller's transaction.
func (r *PGRepository) SetUserEnabled(ctx context.Context, tx pgx.Tx, userID string, enabled bool) (auth.User, error) {
	const updateSQL = `
		UPDATE users
		SET enabled = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, username, email, password_hash, role, enabled, created_at, updated_at
	`

	var u auth.User
	err := tx.QueryRow(ctx, updateSQL, userID, enabled).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.User{}, ErrUserNotFound
		}
		return auth.User{}, fmt.Errorf("admin: set user enabled: %w", err)
	}
	return u, nil
}

// RecordAudit appends an audit row inside the caller's transaction.
func (r *PGRepository) RecordAudit(ctx context.Context, tx pgx.Tx, event AuditEvent) error {
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("admin: marshal audit payload: %w", err)
	}

	const insertSQL = `
		INSERT INTO audit_events (actor_id, entity_kind, entity_id, action, payload)
		VALUES ($1, $2, $3, $4, $5::jsonb)
	`
	if _, err := tx.Exec(ctx, insertSQL, event.ActorID, event.EntityKind, event.EntityID, event.Action, body); err != nil {
		return fmt.Errorf("admin: insert audit event: %w", err)
	}
	return nil
}
