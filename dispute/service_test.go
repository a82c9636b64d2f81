package dispute

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestRaise_OwnerMustOwnLoad(t *testing.T) {
	repo := &fakeRepo{
		users:    map[string]bool{"owner-1": true, "owner-2": true},
		postedBy: "owner-1",
	}
	svc := NewService(repo)

	rec, err := svc.Raise(context.Background(), RaiseParams{
		UserID: "owner-1",
		Role:   "goods_owner",
		LoadID: "load-1",
		Reason: "driver unreachable",
	})
	if err != nil {
		t.Fatalf("raise: %v", err)
	}
	if rec.Status != StatusOpen {
		t.Fatalf("expected open dispute, got %s", rec.Status)
	}

	_, err = svc.Raise(context.Background(), RaiseParams{
		UserID: "owner-2",
		Role:   "goods_owner",
		LoadID: "load-1",
		Reason: "not my load",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestRaise_DriverMustBeAssociated(t *testing.T) {
	assigned := "driver-assigned"
	repo := &fakeRepo{
		users:          map[string]bool{"driver-assigned": true, "driver-bidder": true, "driver-stranger": true},
		postedBy:       "owner-1",
		assignedDriver: &assigned,
		bidders:        map[string]bool{"driver-bidder": true},
	}
	svc := NewService(repo)

	if _, err := svc.Raise(context.Background(), RaiseParams{
		UserID: "driver-assigned", Role: "driver", LoadID: "load-1", Reason: "goods damaged at pickup",
	}); err != nil {
		t.Fatalf("assigned driver: %v", err)
	}

	if _, err := svc.Raise(context.Background(), RaiseParams{
		UserID: "driver-bidder", Role: "driver", LoadID: "load-1", Reason: "owner cancelled verbally",
	}); err != nil {
		t.Fatalf("bidding driver: %v", err)
	}

	if _, err := svc.Raise(context.Background(), RaiseParams{
		UserID: "driver-stranger", Role: "driver", LoadID: "load-1", Reason: "unrelated",
	}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unrelated driver, got %v", err)
	}
}

func TestRaise_NotFoundPaths(t *testing.T) {
	repo := &fakeRepo{
		users:    map[string]bool{"owner-1": true},
		postedBy: "owner-1",
	}
	svc := NewService(repo)

	if _, err := svc.Raise(context.Background(), RaiseParams{
		UserID: "ghost", Role: "goods_owner", LoadID: "load-1", Reason: "x",
	}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	repo.loadErr = ErrLoadNotFound
	if _, err := svc.Raise(context.Background(), RaiseParams{
		UserID: "owner-1", Role: "goods_owner", LoadID: "missing", Reason: "x",
	}); !errors.Is(err, ErrLoadNotFound) {
		t.Fatalf("expected ErrLoadNotFound, got %v", err)
	}
}

func TestListForUser_ExistenceChecked(t *testing.T) {
	repo := &fakeRepo{
		users:   map[string]bool{"owner-1": true},
		records: []Record{{ID: "d1", Status: StatusOpen}},
	}
	svc := NewService(repo)

	recs, err := svc.ListForUser(context.Background(), "owner-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 dispute, got %d", len(recs))
	}

	if _, err := svc.ListForUser(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

type fakeRepo struct {
	users          map[string]bool
	postedBy       string
	assignedDriver *string
	loadErr        error
	bidders        map[string]bool
	records        []Record
}

func (f *fakeRepo) UserExists(ctx context.Context, userID string) (bool, error) {
	return f.users[userID], nil
}

func (f *fakeRepo) GetLoadParticipants(ctx context.Context, loadID string) (string, *string, error) {
	if f.loadErr != nil {
		return "", nil, f.loadErr
	}
	return f.postedBy, f.assignedDriver, nil
}

func (f *fakeRepo) DriverHasBid(ctx context.Context, loadID, driverID string) (bool, error) {
	return f.bidders[driverID], nil
}

func (f *fakeRepo) Create(ctx context.Context, loadID, userID, reason string) (Record, error) {
	return Record{
		ID:        "dispute-1",
		LoadID:    loadID,
		RaisedBy:  userID,
		Reason:    reason,
		Status:    StatusOpen,
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeRepo) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	return f.records, nil
}

func (f *fakeRepo) Resolve(ctx context.Context, tx pgx.Tx, disputeID string, status Status) (Record, error) {
	return Record{ID: disputeID, Status: status}, nil
}
