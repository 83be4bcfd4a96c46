package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stride-ai/stride/internal/domain"
	"github.com/stride-ai/stride/internal/domain/critique"
	"github.com/stride-ai/stride/internal/domain/execution"
	"github.com/stride-ai/stride/internal/domain/plan"
	"github.com/stride-ai/stride/internal/port/artifactstore"
	"github.com/stride-ai/stride/internal/port/cache"
)

// saveAttempts bounds the NextVersion/Save retry loop under write
// contention for the same request ID.
const saveAttempts = 5

// Ledger assigns versions to pipeline artifacts and serves reads,
// write-through caching the latest payload per (request, kind).
type Ledger struct {
	store artifactstore.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewLedger creates a Ledger. cache may be nil for uncached operation.
func NewLedger(store artifactstore.Store, c cache.Cache, ttl time.Duration) *Ledger {
	return &Ledger{store: store, cache: c, ttl: ttl}
}

// SavePlan appends the plan as the next version and returns the version
// assigned. The plan's Version field is stamped before marshaling.
func (l *Ledger) SavePlan(ctx context.Context, p *plan.Plan) (int, error) {
	return l.save(ctx, p.RequestID, artifactstore.KindPlan, func(version int) (any, error) {
		p.Version = version
		return p, nil
	})
}

// SaveCritique appends the critique under the next critique version.
func (l *Ledger) SaveCritique(ctx context.Context, c *critique.Critique) (int, error) {
	return l.save(ctx, c.RequestID, artifactstore.KindCritique, func(version int) (any, error) {
		c.Version = version
		return c, nil
	})
}

// SaveExecution appends the execution result under the next execution
// version.
func (l *Ledger) SaveExecution(ctx context.Context, r *execution.PlanResult) (int, error) {
	return l.save(ctx, r.RequestID, artifactstore.KindExecution, func(version int) (any, error) {
		r.ExecutionVersion = version
		return r, nil
	})
}

// save runs the assign-then-append loop: compute next version from the
// store, stamp it into the payload, attempt the append, and recompute on
// a version conflict. The version number is authoritative only once Save
// succeeds.
func (l *Ledger) save(ctx context.Context, requestID string, kind artifactstore.Kind, stamp func(version int) (any, error)) (int, error) {
	var lastErr error
	for attempt := 0; attempt < saveAttempts; attempt++ {
		version, err := l.store.NextVersion(ctx, requestID, kind)
		if err != nil {
			return 0, fmt.Errorf("next %s version for %s: %w", kind, requestID, err)
		}

		payload, err := stamp(version)
		if err != nil {
			return 0, err
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, fmt.Errorf("marshal %s v%d: %w", kind, version, err)
		}

		artifact := &artifactstore.Artifact{
			RequestID: requestID,
			Kind:      kind,
			Version:   version,
			Payload:   raw,
			CreatedAt: time.Now().UTC(),
		}
		if err := l.store.Save(ctx, artifact); err != nil {
			if errors.Is(err, domain.ErrVersionConflict) {
				lastErr = err
				slog.Debug("version slot taken, recomputing",
					"request_id", requestID, "kind", kind, "version", version)
				continue
			}
			return 0, fmt.Errorf("save %s v%d for %s: %w", kind, version, requestID, err)
		}

		l.cacheSet(ctx, latestKey(requestID, kind), raw)
		return version, nil
	}
	return 0, fmt.Errorf("save %s for %s: contention not resolved after %d attempts: %w",
		kind, requestID, saveAttempts, lastErr)
}

// LatestPlan returns the highest-versioned plan for the request.
func (l *Ledger) LatestPlan(ctx context.Context, requestID string) (*plan.Plan, error) {
	var p plan.Plan
	if err := l.latest(ctx, requestID, artifactstore.KindPlan, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PlanVersion returns one specific plan version.
func (l *Ledger) PlanVersion(ctx context.Context, requestID string, version int) (*plan.Plan, error) {
	a, err := l.store.GetVersion(ctx, requestID, artifactstore.KindPlan, version)
	if err != nil {
		return nil, err
	}
	var p plan.Plan
	if err := json.Unmarshal(a.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode plan v%d for %s: %w", version, requestID, err)
	}
	return &p, nil
}

// Plans returns every stored plan version ascending.
func (l *Ledger) Plans(ctx context.Context, requestID string) ([]plan.Plan, error) {
	return decodeAll[plan.Plan](ctx, l.store, requestID, artifactstore.KindPlan)
}

// LatestCritique returns the highest-versioned critique for the request.
func (l *Ledger) LatestCritique(ctx context.Context, requestID string) (*critique.Critique, error) {
	var c critique.Critique
	if err := l.latest(ctx, requestID, artifactstore.KindCritique, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Critiques returns every stored critique version ascending.
func (l *Ledger) Critiques(ctx context.Context, requestID string) ([]critique.Critique, error) {
	return decodeAll[critique.Critique](ctx, l.store, requestID, artifactstore.KindCritique)
}

// LatestExecution returns the highest-versioned execution result.
func (l *Ledger) LatestExecution(ctx context.Context, requestID string) (*execution.PlanResult, error) {
	var r execution.PlanResult
	if err := l.latest(ctx, requestID, artifactstore.KindExecution, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Executions returns every stored execution version ascending.
func (l *Ledger) Executions(ctx context.Context, requestID string) ([]execution.PlanResult, error) {
	return decodeAll[execution.PlanResult](ctx, l.store, requestID, artifactstore.KindExecution)
}

func (l *Ledger) latest(ctx context.Context, requestID string, kind artifactstore.Kind, out any) error {
	key := latestKey(requestID, kind)
	if raw, ok := l.cacheGet(ctx, key); ok {
		if err := json.Unmarshal(raw, out); err == nil {
			return nil
		}
		// A corrupt cache entry falls through to the store.
		l.cacheDelete(ctx, key)
	}

	a, err := l.store.GetLatest(ctx, requestID, kind)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(a.Payload, out); err != nil {
		return fmt.Errorf("decode latest %s for %s: %w", kind, requestID, err)
	}
	l.cacheSet(ctx, key, a.Payload)
	return nil
}

func decodeAll[T any](ctx context.Context, store artifactstore.Store, requestID string, kind artifactstore.Kind) ([]T, error) {
	artifacts, err := store.GetAllVersions(ctx, requestID, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(artifacts))
	for _, a := range artifacts {
		var v T
		if err := json.Unmarshal(a.Payload, &v); err != nil {
			return nil, fmt.Errorf("decode %s v%d for %s: %w", kind, a.Version, requestID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func latestKey(requestID string, kind artifactstore.Kind) string {
	return fmt.Sprintf("artifact:%s:%s:latest", requestID, kind)
}

func (l *Ledger) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if l.cache == nil {
		return nil, false
	}
	raw, ok, err := l.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	return raw, true
}

func (l *Ledger) cacheSet(ctx context.Context, key string, raw []byte) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Set(ctx, key, raw, l.ttl); err != nil {
		slog.Debug("cache set failed", "key", key, "error", err)
	}
}

func (l *Ledger) cacheDelete(ctx context.Context, key string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(ctx, key); err != nil {
		slog.Debug("cache delete failed", "key", key, "error", err)
	}
}
