package dispute

import (
	"context"
	"fmt"
)

// Service exposes the dispute operations available to load participants.
// Administrative resolution lives behind the admin facade.
type Service struct {
	repo Repository
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Raise files an open dispute against a load. A goods owner must be the
// load's posting owner. A driver must be associated with the load: either
// assigned to it or holding a bid on it.
func (s *Service) Raise(ctx context.Context, params RaiseParams) (Record, error) {
	if params.UserID == "" {
		return Record{}, fmt.Errorf("dispute: missing user id")
	}
	if params.LoadID == "" {
		return Record{}, fmt.Errorf("dispute: missing load id")
	}

	exists, err := s.repo.UserExists(ctx, params.UserID)
	if err != nil {
		return Record{}, err
	}
	if !exists {
		return Record{}, ErrUserNotFound
	}

	postedBy, assignedDriver, err := s.repo.GetLoadParticipants(ctx, params.LoadID)
	if err != nil {
		return Record{}, err
	}

	switch params.Role {
	case "goods_owner":
		if postedBy != params.UserID {
			return Record{}, ErrForbidden
		}
	case "driver":
		if assignedDriver == nil || *assignedDriver != params.UserID {
			hasBid, err := s.repo.DriverHasBid(ctx, params.LoadID, params.UserID)
			if err != nil {
				return Record{}, err
			}
			if !hasBid {
				return Record{}, ErrForbidden
			}
		}
	default:
		return Record{}, ErrForbidden
	}

	return s.repo.Create(ctx, params.LoadID, params.UserID, params.Reason)
}

// ListForUser returns the disputes raised by the given user.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Record, error) {
	exists, err := s.repo.UserExists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}
	return s.repo.ListByUser(ctx, userID)
}
