// Package artifactstore defines the port for the append-only store of
// versioned pipeline artifacts keyed by (request ID, kind, version).
package artifactstore

import (
	"context"
	"encoding/json"
	"time"
)

// Kind discriminates the artifact families sharing one version sequence
// space per request.
type Kind string

const (
	KindPlan      Kind = "plan"
	KindCritique  Kind = "critique"
	KindExecution Kind = "execution"
)

// Artifact is one immutable versioned record.
type Artifact struct {
	RequestID string          `json:"request_id"`
	Kind      Kind            `json:"kind"`
	Version   int             `json:"version"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Store is append-only: versions are never updated or deleted.
//
// NextVersion must be computed from stored state, not cached, and its
// assignment must be atomic with respect to concurrent writers for the
// same request ID: Save with an already-taken version returns
// domain.ErrVersionConflict and the caller recomputes.
type Store interface {
	// Save appends the artifact. Returns domain.ErrVersionConflict if the
	// (requestID, kind, version) slot is already taken.
	Save(ctx context.Context, a *Artifact) error

	// NextVersion returns max(existing versions)+1, or 1 if none exist.
	NextVersion(ctx context.Context, requestID string, kind Kind) (int, error)

	// GetLatest returns the highest-versioned artifact, or domain.ErrNotFound.
	GetLatest(ctx context.Context, requestID string, kind Kind) (*Artifact, error)

	// GetVersion returns one specific version, or domain.ErrNotFound.
	GetVersion(ctx context.Context, requestID string, kind Kind, version int) (*Artifact, error)

	// GetAllVersions returns every version ascending.
	GetAllVersions(ctx context.Context, requestID string, kind Kind) ([]Artifact, error)
}
