package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stride-ai/stride/internal/adapter/memory"
	"github.com/stride-ai/stride/internal/domain"
	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/service"
)

// memCache is a minimal cache.Cache for exercising the write-through path.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = append([]byte(nil), value...)
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) Close() error { return nil }

func ledgerPlan(requestID string) *plan.Plan {
	return &plan.Plan{
		ID:        "plan-1",
		RequestID: requestID,
		Goal:      "do the thing",
		Version:   1,
		Steps:     []plan.Step{{ID: "s1", Order: 1, Action: "do", Status: plan.StepStatusPending}},
	}
}

func TestLedger_VersionsAreMonotonic(t *testing.T) {
	ctx := context.Background()
	l := service.NewLedger(memory.NewStore(), nil, 0)

	for want := 1; want <= 3; want++ {
		v, err := l.SavePlan(ctx, ledgerPlan("req-1"))
		if err != nil {
			t.Fatalf("save %d: %v", want, err)
		}
		if v != want {
			t.Fatalf("version = %d, want %d", v, want)
		}
	}

	p, err := l.LatestPlan(ctx, "req-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if p.Version != 3 {
		t.Fatalf("latest version = %d, want 3", p.Version)
	}

	all, err := l.Plans(ctx, "req-1")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("stored %d versions, want 3", len(all))
	}
	for i, pv := range all {
		if pv.Version != i+1 {
			t.Fatalf("version at index %d = %d", i, pv.Version)
		}
	}
}

func TestLedger_KindsVersionIndependently(t *testing.T) {
	ctx := context.Background()
	l := service.NewLedger(memory.NewStore(), nil, 0)

	if _, err := l.SavePlan(ctx, ledgerPlan("req-1")); err != nil {
		t.Fatalf("save plan: %v", err)
	}
	if _, err := l.SavePlan(ctx, ledgerPlan("req-1")); err != nil {
		t.Fatalf("save plan: %v", err)
	}

	v, err := l.SaveExecution(ctx, &execution.PlanResult{RequestID: "req-1", PlanID: "plan-1", PlanVersion: 2})
	if err != nil {
		t.Fatalf("save execution: %v", err)
	}
	if v != 1 {
		t.Fatalf("first execution version = %d, want 1", v)
	}
}

func TestLedger_ConcurrentSavesAllLand(t *testing.T) {
	ctx := context.Background()
	l := service.NewLedger(memory.NewStore(), nil, 0)

	const writers = 4
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.SavePlan(ctx, ledgerPlan("req-1")); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent save: %v", err)
	}

	all, err := l.Plans(ctx, "req-1")
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != writers {
		t.Fatalf("stored %d versions, want %d", len(all), writers)
	}
}

func TestLedger_NotFound(t *testing.T) {
	l := service.NewLedger(memory.NewStore(), nil, 0)
	if _, err := l.LatestPlan(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedger_WriteThroughCache(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	l := service.NewLedger(memory.NewStore(), c, time.Minute)

	if _, err := l.SavePlan(ctx, ledgerPlan("req-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	c.mu.Lock()
	cached := len(c.entries)
	c.mu.Unlock()
	if cached != 1 {
		t.Fatalf("cache entries = %d, want 1 after save", cached)
	}

	if _, err := l.LatestPlan(ctx, "req-1"); err != nil {
		t.Fatalf("latest: %v", err)
	}
}

func TestLedger_CorruptCacheFallsThrough(t *testing.T) {
	ctx := context.Background()
	c := newMemCache()
	l := service.NewLedger(memory.NewStore(), c, time.Minute)

	if _, err := l.SavePlan(ctx, ledgerPlan("req-1")); err != nil {
		t.Fatalf("save: %v", err)
	}

	c.mu.Lock()
	for k := range c.entries {
		c.entries[k] = []byte("{not json")
	}
	c.mu.Unlock()

	p, err := l.LatestPlan(ctx, "req-1")
	if err != nil {
		t.Fatalf("latest after corruption: %v", err)
	}
	if p.Version != 1 {
		t.Fatalf("version = %d, want 1 from store", p.Version)
	}
}
