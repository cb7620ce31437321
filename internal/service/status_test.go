package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/planwright/planwright/internal/domain"
)

// mockCache implements cache.Cache in memory for testing.
type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	gets    int
	hits    int
	deletes []string
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *mockCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	c.deletes = append(c.deletes, key)
	return nil
}

func TestStatusNoActivePlan(t *testing.T) {
	mgr, _, _ := newTestManager(t, Options{})
	if _, err := mgr.Status(context.Background()); !errors.Is(err, domain.ErrNoActivePlan) {
		t.Fatalf("expected ErrNoActivePlan, got %v", err)
	}
}

func TestStatusProgress(t *testing.T) {
	mgr, _, _ := newTestManager(t, Options{})
	ctx := context.Background()
	mgr.CreatePlan(ctx, "Release v1", "")
	a := addTask(t, mgr, "build")
	addTask(t, mgr, "test")
	addTask(t, mgr, "deploy")
	addTask(t, mgr, "announce")

	if err := mgr.StartTask(ctx, a.ID); err != nil {
		t.Fatal(err)
	}
	if err := mgr.CompleteTask(ctx, a.ID, "", nil); err != nil {
		t.Fatal(err)
	}

	st, err := mgr.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.TotalTasks != 4 || st.Completed != 1 {
		t.Fatalf("expected 1/4 completed, got %d/%d", st.Completed, st.TotalTasks)
	}
	if st.ProgressPercent != 25 {
		t.Fatalf("expected 25%%, got %v", st.ProgressPercent)
	}
	if st.PlanName != "Release v1" {
		t.Fatalf("expected plan name, got %q", st.PlanName)
	}
	if st.CurrentTask != "build" {
		t.Fatalf("expected current task 'build', got %q", st.CurrentTask)
	}
}

func TestStatusServedFromCache(t *testing.T) {
	c := newMockCache()
	mgr, _, _ := newTestManager(t, Options{Cache: c})
	ctx := context.Background()
	mgr.CreatePlan(ctx, "plan", "")
	addTask(t, mgr, "a")

	if _, err := mgr.Status(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.Status(ctx); err != nil {
		t.Fatal(err)
	}

	c.mu.Lock()
	hits := c.hits
	c.mu.Unlock()
	if hits != 1 {
		t.Fatalf("expected second Status call to hit the cache, hits=%d", hits)
	}
}

func TestMutationInvalidatesStatusCache(t *testing.T) {
	c := newMockCache()
	mgr, _, _ := newTestManager(t, Options{Cache: c})
	ctx := context.Background()
	p, err := mgr.CreatePlan(ctx, "plan", "")
	if err != nil {
		t.Fatal(err)
	}
	addTask(t, mgr, "a")

	st1, err := mgr.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	b := addTask(t, mgr, "b")
	_ = b

	st2, err := mgr.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st1.TotalTasks != 1 || st2.TotalTasks != 2 {
		t.Fatalf("stale status after mutation: %d then %d tasks", st1.TotalTasks, st2.TotalTasks)
	}

	c.mu.Lock()
	deletes := append([]string(nil), c.deletes...)
	c.mu.Unlock()
	key := "status:" + p.ID
	found := false
	for _, d := range deletes {
		if d == key {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected invalidation of %s, deletes were %v", key, deletes)
	}
}
