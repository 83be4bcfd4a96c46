// Package memory provides an in-memory artifactstore.Store for tests and
// single-process development runs. Semantics match the PostgreSQL store,
// including version conflict behavior under concurrent writers.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/stride-ai/stride/internal/domain"
	"github.com/stride-ai/stride/internal/port/artifactstore"
)

type key struct {
	requestID string
	kind      artifactstore.Kind
}

// Store is an in-memory append-only artifact store. Safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	artifacts map[key]map[int]artifactstore.Artifact
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{artifacts: make(map[key]map[int]artifactstore.Artifact)}
}

// Save appends the artifact, or returns domain.ErrVersionConflict if the
// version slot is already taken.
func (s *Store) Save(_ context.Context, a *artifactstore.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{a.RequestID, a.Kind}
	versions, ok := s.artifacts[k]
	if !ok {
		versions = make(map[int]artifactstore.Artifact)
		s.artifacts[k] = versions
	}
	if _, taken := versions[a.Version]; taken {
		return fmt.Errorf("save %s v%d for %s: %w", a.Kind, a.Version, a.RequestID, domain.ErrVersionConflict)
	}

	cp := *a
	cp.Payload = append([]byte(nil), a.Payload...)
	versions[a.Version] = cp
	return nil
}

// NextVersion returns max(existing versions)+1, or 1 if none exist.
func (s *Store) NextVersion(_ context.Context, requestID string, kind artifactstore.Kind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for v := range s.artifacts[key{requestID, kind}] {
		if v > max {
			max = v
		}
	}
	return max + 1, nil
}

// GetLatest returns the highest-versioned artifact.
func (s *Store) GetLatest(_ context.Context, requestID string, kind artifactstore.Kind) (*artifactstore.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.artifacts[key{requestID, kind}]
	if len(versions) == 0 {
		return nil, fmt.Errorf("latest %s for %s: %w", kind, requestID, domain.ErrNotFound)
	}
	max := 0
	for v := range versions {
		if v > max {
			max = v
		}
	}
	a := versions[max]
	return &a, nil
}

// GetVersion returns one specific version.
func (s *Store) GetVersion(_ context.Context, requestID string, kind artifactstore.Kind, version int) (*artifactstore.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.artifacts[key{requestID, kind}][version]
	if !ok {
		return nil, fmt.Errorf("%s v%d for %s: %w", kind, version, requestID, domain.ErrNotFound)
	}
	return &a, nil
}

// GetAllVersions returns every version ascending.
func (s *Store) GetAllVersions(_ context.Context, requestID string, kind artifactstore.Kind) ([]artifactstore.Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.artifacts[key{requestID, kind}]
	out := make([]artifactstore.Artifact, 0, len(versions))
	for _, a := range versions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}
