package test

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"loadboard/admin"
	"loadboard/auth"
	"loadboard/bid"
	"loadboard/dispute"
	"loadboard/load"
	"loadboard/test/actors"
	"loadboard/test/chaos"
	"loadboard/test/infra"
	"loadboard/test/oracles"
)

var (
	flDuration    = flag.Duration("duration", 90*time.Second, "how long to run stress")
	flConcurrency = flag.Int("concurrency", 8, "number of concurrent actors")
	flSeed        = flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flDSN         = flag.String("dsn", "", "existing Postgres DSN to reuse (avoids Docker)")
)

func seedRNG(seed int64) { rand.Seed(seed) }

func TestMarketplaceConcurrency(t *testing.T) {
	flag.Parse()
	seed := *flSeed
	seedRNG(seed)

	var (
		pgC        *infra.PGContainer
		dsn        string
		err        error
		usedShared bool
	)
	ctx, cancel := context.WithTimeout(context.Background(), *flDuration+60*time.Second)
	defer cancel()

	switch {
	case *flDSN != "":
		dsn = *flDSN
		usedShared = true
		pgC = &infra.PGContainer{}
	case os.Getenv("LOADBOARD_STRESS_DSN") != "":
		dsn = os.Getenv("LOADBOARD_STRESS_DSN")
		usedShared = true
		pgC = &infra.PGContainer{}
	default:
		if dockerAvailable(ctx) {
			pgC, dsn, err = infra.StartPostgres16(ctx, "")
			if err != nil {
				t.Fatalf("start postgres: %v", err)
			}
		} else {
			dsn, err = infra.InitLocalDatabase(ctx)
			if err != nil {
				t.Fatalf("init local database: %v", err)
			}
			pgC = &infra.PGContainer{}
		}
	}
	defer pgC.Terminate(context.Background())

	pool, teardown, err := infra.ApplyMigrations(ctx, dsn, usedShared)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	defer pool.Close()
	defer func() {
		if err := teardown(context.Background()); err != nil {
			t.Logf("teardown warning: %v", err)
		}
	}()

	svcs := buildServices(pool)
	seedData := mustSeed(t, ctx, svcs)

	g, ctx2 := errgroup.WithContext(ctx)
	stop := make(chan struct{})

	// owners post loads and race each other accepting bids on them
	for _, ownerID := range seedData.ownerIDs {
		ownerID := ownerID
		g.Go(func() error { return actors.Poster(ctx2, svcs.loads, ownerID, stop) })
		for i := 0; i < *flConcurrency/len(seedData.ownerIDs)+1; i++ {
			g.Go(func() error { return actors.Accepter(ctx2, svcs.bids, pool, ownerID, stop) })
		}
	}
	// drivers bid on whatever is open
	for _, driverID := range seedData.driverIDs {
		driverID := driverID
		g.Go(func() error { return actors.Bidder(ctx2, svcs.bids, pool, driverID, stop) })
	}
	// admin closes out active loads and works the dispute queue
	g.Go(func() error { return actors.Completer(ctx2, svcs.admin, pool, seedData.adminID, stop) })
	g.Go(func() error { return actors.Resolver(ctx2, svcs.admin, pool, seedData.adminID, stop) })
	// assigned drivers raise disputes
	g.Go(func() error { return actors.Disputer(ctx2, svcs.disputes, pool, stop) })
	// chaos: kill random backend
	go chaos.TerminateRandomBackend(ctx2, pool, stop)

	deadline := time.Now().Add(*flDuration)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var failed bool
loop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			name, row, err := oracles.Run(ctx2, pool)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					break loop
				}
				t.Fatalf("oracle error: %v", err)
			}
			if name != "" {
				failed = true
				dumpRecent(t, ctx2, pool)
				t.Fatalf("Oracle %s failed. First row: %s (seed=%d)", name, row, seed)
			}
		}
	}

	close(stop)
	if err := g.Wait(); err != nil && !failed {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("actors errored: %v", err)
		}
	}
}

func dockerAvailable(ctx context.Context) bool {
	if _, err := exec.LookPath("docker"); err != nil {
		return false
	}
	c := exec.CommandContext(ctx, "docker", "info")
	c.Stdout = io.Discard
	c.Stderr = io.Discard
	return c.Run() == nil
}

type services struct {
	auth     *auth.Service
	loads    *load.Service
	bids     *bid.Service
	disputes *dispute.Service
	admin    *admin.Service
}

func buildServices(pool *pgxpool.Pool) services {
	authRepo := auth.NewRepository(pool)
	loadRepo := load.NewRepository(pool)
	bidRepo := bid.NewRepository(pool)
	disputeRepo := dispute.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	return services{
		auth:     auth.NewService(authRepo, "stress-secret"),
		loads:    load.NewService(loadRepo),
		bids:     bid.NewService(pool, bidRepo, loadRepo),
		disputes: dispute.NewService(disputeRepo),
		admin:    admin.NewService(pool, adminRepo, loadRepo, disputeRepo),
	}
}

type seedIDs struct {
	adminID   string
	ownerIDs  []string
	driverIDs []string
}

func mustSeed(t *testing.T, ctx context.Context, svcs services) seedIDs {
	t.Helper()
	register := func(role auth.Role) string {
		tag := uuid.NewString()[:8]
		user, err := svcs.auth.Register(ctx, auth.RegisterRequest{
			Username: fmt.Sprintf("stress-%s-%s", role, tag),
			Email:    fmt.Sprintf("%s-%s@example.com", role, tag),
			Password: "stress-password",
			Role:     role,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", role, err)
		}
		return user.ID
	}

	s := seedIDs{adminID: register(auth.RoleAdmin)}
	for i := 0; i < 2; i++ {
		s.ownerIDs = append(s.ownerIDs, register(auth.RoleGoodsOwner))
	}
	for i := 0; i < 4; i++ {
		s.driverIDs = append(s.driverIDs, register(auth.RoleDriver))
	}
	return s
}

func dumpRecent(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	type dump struct {
		name string
		sql  string
	}
	dumps := []dump{
		{"loads", `SELECT id, status, posted_by, assigned_driver, posted_at FROM loads ORDER BY posted_at DESC LIMIT 50`},
		{"bids", `SELECT id, load_id, driver_id, status, placed_at FROM bids ORDER BY placed_at DESC LIMIT 50`},
		{"disputes", `SELECT id, load_id, raised_by, status, created_at FROM disputes ORDER BY created_at DESC LIMIT 50`},
		{"audit_events", `SELECT id, actor_id, entity_kind, entity_id, action, created_at FROM audit_events ORDER BY id DESC LIMIT 50`},
	}
	for _, d := range dumps {
		rows, err := pool.Query(ctx, d.sql)
		if err != nil {
			t.Logf("dump %s error: %v", d.name, err)
			continue
		}
		cols := rows.FieldDescriptions()
		t.Logf("-- %s --", d.name)
		for rows.Next() {
			vals, _ := rows.Values()
			buf := make([]any, 0, len(vals))
			for i := range vals {
				buf = append(buf, fmt.Sprintf("%s=%v", string(cols[i].Name), vals[i]))
			}
			t.Logf("%s", buf)
		}
		rows.Close()
	}
}
