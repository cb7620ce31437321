package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/planwright/planwright/internal/adapter/postgres"
	"github.com/planwright/planwright/internal/domain/plan"
	"github.com/planwright/planwright/internal/domain/task"
	"github.com/planwright/planwright/internal/port/snapshot"
)

// setupStore connects to the database named by DATABASE_URL, runs the
// migrations, and returns a store bound to a fresh handle. Skipped when no
// database is configured.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set; skipping postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	handle := "test-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(),
			`DELETE FROM workflow_snapshots WHERE handle = $1`, handle)
	})
	return postgres.NewStore(pool, handle)
}

func TestLoadMissingRowReturnsEmpty(t *testing.T) {
	s := setupStore(t)

	snap, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.CurrentPlan != nil || len(snap.History) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	want := &snapshot.Snapshot{
		CurrentPlan: &plan.Plan{
			ID:     uuid.NewString(),
			Name:   "pg plan",
			Status: plan.StatusActive,
			Tasks: []task.Task{
				{ID: uuid.NewString(), Title: "build", Status: task.StatusPending},
			},
		},
		History:  []plan.Plan{},
		Metadata: snapshot.Metadata{Version: snapshot.SchemaVersion, LastUpdated: time.Now().UTC()},
	}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.CurrentPlan == nil || got.CurrentPlan.ID != want.CurrentPlan.ID {
		t.Fatalf("round trip lost the plan: %+v", got.CurrentPlan)
	}
	if len(got.CurrentPlan.Tasks) != 1 || got.CurrentPlan.Tasks[0].Title != "build" {
		t.Fatalf("round trip lost tasks: %+v", got.CurrentPlan.Tasks)
	}
}

func TestSaveUpserts(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first := snapshot.Empty()
	first.CurrentPlan = &plan.Plan{ID: "v1", Status: plan.StatusActive}
	if err := s.Save(ctx, first); err != nil {
		t.Fatal(err)
	}

	second := snapshot.Empty()
	second.CurrentPlan = &plan.Plan{ID: "v2", Status: plan.StatusActive}
	if err := s.Save(ctx, second); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentPlan.ID != "v2" {
		t.Fatalf("expected the second save to win, got %s", got.CurrentPlan.ID)
	}
}
