package load

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestPost_CreatesPendingLoad(t *testing.T) {
	repo := newFakeRepo("owner-1")
	svc := NewService(repo)

	l, err := svc.Post(context.Background(), "owner-1", CreateParams{
		Description:     "pallet of tiles",
		PickupLocation:  "Chennai",
		DropoffLocation: "Bengaluru",
		Weight:          500,
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if l.Status != StatusPending {
		t.Fatalf("expected pending, got %s", l.Status)
	}
	if l.PostedBy != "owner-1" {
		t.Fatalf("expected owner-1, got %s", l.PostedBy)
	}
	if l.AssignedDriver != nil {
		t.Fatal("new load must be unassigned")
	}
}

func TestPost_Validation(t *testing.T) {
	repo := newFakeRepo("owner-1")
	svc := NewService(repo)

	if _, err := svc.Post(context.Background(), "owner-1", CreateParams{
		PickupLocation: "Chennai", DropoffLocation: "Bengaluru",
	}); err == nil {
		t.Fatal("expected error for missing description")
	}

	if _, err := svc.Post(context.Background(), "owner-1", CreateParams{
		Description: "tiles",
	}); err == nil {
		t.Fatal("expected error for missing locations")
	}
}

func TestPost_OwnerMustExist(t *testing.T) {
	repo := newFakeRepo("owner-1")
	svc := NewService(repo)

	_, err := svc.Post(context.Background(), "ghost", CreateParams{
		Description:     "tiles",
		PickupLocation:  "Chennai",
		DropoffLocation: "Bengaluru",
	})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestListAvailable_OnlyPendingUnassigned(t *testing.T) {
	repo := newFakeRepo("owner-1")
	svc := NewService(repo)

	for i := 0; i < 3; i++ {
		if _, err := svc.Post(context.Background(), "owner-1", CreateParams{
			Description:     fmt.Sprintf("load %d", i),
			PickupLocation:  "A",
			DropoffLocation: "B",
		}); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	driver := "driver-1"
	repo.loads["load-2"] = Load{
		ID: "load-2", Status: StatusActive, PostedBy: "owner-1", AssignedDriver: &driver,
	}

	available, err := svc.ListAvailable(context.Background())
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	for _, l := range available {
		if l.Status != StatusPending || l.AssignedDriver != nil {
			t.Fatalf("non-available load leaked: %+v", l)
		}
	}
	if len(available) != 2 {
		t.Fatalf("expected 2 available loads, got %d", len(available))
	}
}

func TestListForOwnerAndDriver_ExistenceChecked(t *testing.T) {
	repo := newFakeRepo("owner-1", "driver-1")
	svc := NewService(repo)

	if _, err := svc.ListForOwner(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.ListForDriver(context.Background(), "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.ListForDriver(context.Background(), "driver-1"); err != nil {
		t.Fatalf("list for driver: %v", err)
	}
}

type fakeRepo struct {
	users  map[string]bool
	loads  map[string]Load
	nextID int
}

func newFakeRepo(userIDs ...string) *fakeRepo {
	users := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		users[id] = true
	}
	return &fakeRepo{users: users, loads: make(map[string]Load), nextID: 1}
}

func (f *fakeRepo) UserExists(ctx context.Context, userID string) (bool, error) {
	return f.users[userID], nil
}

func (f *fakeRepo) Create(ctx context.Context, ownerID string, params CreateParams) (Load, error) {
	l := Load{
		ID:              fmt.Sprintf("load-%d", f.nextID),
		Description:     params.Description,
		PickupLocation:  params.PickupLocation,
		DropoffLocation: params.DropoffLocation,
		Weight:          params.Weight,
		Status:          StatusPending,
		PostedBy:        ownerID,
		PostedAt:        time.Now().UTC(),
	}
	f.nextID++
	f.loads[l.ID] = l
	return l, nil
}

func (f *fakeRepo) GetByID(ctx context.Context, loadID string) (Load, error) {
	l, ok := f.loads[loadID]
	if !ok {
		return Load{}, ErrNotFound
	}
	return l, nil
}

func (f *fakeRepo) ListAvailable(ctx context.Context) ([]Load, error) {
	var out []Load
	for _, l := range f.loads {
		if l.Status == StatusPending && l.AssignedDriver == nil {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByOwner(ctx context.Context, ownerID string) ([]Load, error) {
	var out []Load
	for _, l := range f.loads {
		if l.PostedBy == ownerID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListByDriver(ctx context.Context, driverID string) ([]Load, error) {
	var out []Load
	for _, l := range f.loads {
		if l.AssignedDriver != nil && *l.AssignedDriver == driverID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeRepo) Assign(ctx context.Context, tx pgx.Tx, loadID, driverID string) (Load, error) {
	l, ok := f.loads[loadID]
	if !ok || l.Status != StatusPending || l.AssignedDriver != nil {
		return Load{}, ErrNotPending
	}
	l.Status = StatusActive
	l.AssignedDriver = &driverID
	f.loads[loadID] = l
	return l, nil
}

func (f *fakeRepo) ForceStatus(ctx context.Context, tx pgx.Tx, loadID string, status Status) (Load, error) {
	l, ok := f.loads[loadID]
	if !ok {
		return Load{}, ErrNotFound
	}
	l.Status = status
	f.loads[loadID] = l
	return l, nil
}
