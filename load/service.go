package load

import (
	"context"
	"fmt"
)

// Service exposes the load lifecycle operations.
type Service struct {
	repo Repository
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Post creates a pending load owned by the goods owner.
func (s *Service) Post(ctx context.Context, ownerID string, params CreateParams) (Load, error) {
	if params.Description == "" {
		return Load{}, fmt.Errorf("load: description required")
	}
	if params.PickupLocation == "" || params.DropoffLocation == "" {
		return Load{}, fmt.Errorf("load: pickup and dropoff locations required")
	}

	exists, err := s.repo.UserExists(ctx, ownerID)
	if err != nil {
		return Load{}, err
	}
	if !exists {
		return Load{}, ErrUserNotFound
	}

	return s.repo.Create(ctx, ownerID, params)
}

// ListAvailable returns loads open for bidding. An active load always has an
// assigned driver, so "available" reduces to pending and unassigned.
func (s *Service) ListAvailable(ctx context.Context) ([]Load, error) {
	return s.repo.ListAvailable(ctx)
}

// ListForOwner returns loads posted by the given goods owner.
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]Load, error) {
	exists, err := s.repo.UserExists(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	return s.repo.ListByOwner(ctx, ownerID)
}

// ListForDriver returns loads assigned to the given driver.
func (s *Service) ListForDriver(ctx context.Context, driverID string) ([]Load, error) {
	exists, err := s.repo.UserExists(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	return s.repo.ListByDriver(ctx, driverID)
}

// Get fetches a single load by id.
func (s *Service) Get(ctx context.Context, loadID string) (Load, error) {
	return s.repo.GetByID(ctx, loadID)
}
