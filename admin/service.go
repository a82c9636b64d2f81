package admin

import (
	"context"
	"fmt"

	"loadboard/auth"
	"loadboard/dispute"
	"loadboard/load"

	"github.com/jackc/pgx/v5"
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LoadForcer is the administrative slice of the load lifecycle engine.
type LoadForcer interface {
	ForceStatus(ctx context.Context, tx pgx.Tx, loadID string, status load.Status) (load.Load, error)
}

// DisputeResolver is the administrative slice of the dispute engine.
type DisputeResolver interface {
	Resolve(ctx context.Context, tx pgx.Tx, disputeID string, status dispute.Status) (dispute.Record, error)
}

// Service is the privileged override surface. Its writes bypass the normal
// transition rules; every override commits together with an audit event.
type Service struct {
	pool     TxBeginner
	repo     Repository
	loads    LoadForcer
	disputes DisputeResolver
}

// NewService builds the administration facade.
func NewService(pool TxBeginner, repo Repository, loads LoadForcer, disputes DisputeResolver) *Service {
	return &Service{pool: pool, repo: repo, loads: loads, disputes: disputes}
}

// ListUsers returns every account.
func (s *Service) ListUsers(ctx context.Context) ([]auth.User, error) {
	return s.repo.ListUsers(ctx)
}

// ListLoads returns every load.
func (s *Service) ListLoads(ctx context.Context) ([]load.Load, error) {
	return s.repo.ListLoads(ctx)
}

// ListDisputes returns every dispute.
func (s *Service) ListDisputes(ctx context.Context) ([]dispute.Record, error) {
	return s.repo.ListDisputes(ctx)
}

// SetUserEnabled toggles an account's enabled flag.
func (s *Service) SetUserEnabled(ctx context.Context, adminID, userID string, enabled bool) (auth.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return auth.User{}, fmt.Errorf("admin: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	user, err := s.repo.SetUserEnabled(ctx, tx, userID, enabled)
	if err != nil {
		return auth.User{}, err
	}

	if err := s.repo.RecordAudit(ctx, tx, AuditEvent{
		ActorID:    adminID,
		EntityKind: "user",
		EntityID:   userID,
		Action:     "set_enabled",
		Payload:    map[string]any{"enabled": enabled},
	}); err != nil {
		return auth.User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return auth.User{}, fmt.Errorf("admin: commit: %w", err)
	}
	return user, nil
}

// ForceLoadStatus overwrites a load's status with no transition-graph checks.
func (s *Service) ForceLoadStatus(ctx context.Context, adminID, loadID string, status load.Status) (load.Load, error) {
	if !status.IsValid() {
		return load.Load{}, fmt.Errorf("admin: unknown load status %q", status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return load.Load{}, fmt.Errorf("admin: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.loads.ForceStatus(ctx, tx, loadID, status)
	if err != nil {
		return load.Load{}, err
	}

	if err := s.repo.RecordAudit(ctx, tx, AuditEvent{
		ActorID:    adminID,
		EntityKind: "load",
		EntityID:   loadID,
		Action:     "force_status",
		Payload:    map[string]any{"status": string(status)},
	}); err != nil {
		return load.Load{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return load.Load{}, fmt.Errorf("admin: commit: %w", err)
	}
	return updated, nil
}

// ForceDisputeStatus overwrites a dispute's status with no ordering checks.
func (s *Service) ForceDisputeStatus(ctx context.Context, adminID, disputeID string, status dispute.Status) (dispute.Record, error) {
	if !status.IsValid() {
		return dispute.Record{}, fmt.Errorf("admin: unknown dispute status %q", status)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return dispute.Record{}, fmt.Errorf("admin: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updated, err := s.disputes.Resolve(ctx, tx, disputeID, status)
	if err != nil {
		return dispute.Record{}, err
	}

	if err := s.repo.RecordAudit(ctx, tx, AuditEvent{
		ActorID:    adminID,
		EntityKind: "dispute",
		EntityID:   disputeID,
		Action:     "force_status",
		Payload:    map[string]any{"status": string(status)},
	}); err != nil {
		return dispute.Record{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return dispute.Record{}, fmt.Errorf("admin: commit: %w", err)
	}
	return updated, nil
}
