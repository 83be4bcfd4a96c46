package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stride-ai/stride/internal/domain"
	"github.com/stride-ai/stride/internal/port/artifactstore"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint violations.
const uniqueViolation = "23505"

// Store implements artifactstore.Store using PostgreSQL. Versions are
// assigned via the unique (request_id, kind, version) constraint: two
// writers racing for the same slot lose deterministically, one of them
// gets ErrVersionConflict and recomputes.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Save appends the artifact. The unique constraint is the atomicity
// boundary; no advisory locks needed.
func (s *Store) Save(ctx context.Context, a *artifactstore.Artifact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO artifacts (request_id, kind, version, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.RequestID, string(a.Kind), a.Version, a.Payload, a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("save %s v%d for %s: %w", a.Kind, a.Version, a.RequestID, domain.ErrVersionConflict)
		}
		return fmt.Errorf("save %s v%d for %s: %w", a.Kind, a.Version, a.RequestID, err)
	}
	return nil
}

// NextVersion computes max(version)+1 from stored rows. Never cached.
func (s *Store) NextVersion(ctx context.Context, requestID string, kind artifactstore.Kind) (int, error) {
	var next int
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM artifacts WHERE request_id = $1 AND kind = $2`,
		requestID, string(kind)).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next %s version for %s: %w", kind, requestID, err)
	}
	return next, nil
}

const artifactColumns = `request_id, kind, version, payload, created_at`

func scanArtifact(scanner interface{ Scan(dest ...any) error }) (*artifactstore.Artifact, error) {
	var a artifactstore.Artifact
	if err := scanner.Scan(&a.RequestID, &a.Kind, &a.Version, &a.Payload, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetLatest returns the highest-versioned artifact for (requestID, kind).
func (s *Store) GetLatest(ctx context.Context, requestID string, kind artifactstore.Kind) (*artifactstore.Artifact, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM artifacts WHERE request_id = $1 AND kind = $2
		 ORDER BY version DESC LIMIT 1`, artifactColumns),
		requestID, string(kind))

	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("latest %s for %s: %w", kind, requestID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("latest %s for %s: %w", kind, requestID, err)
	}
	return a, nil
}

// GetVersion returns one specific version.
func (s *Store) GetVersion(ctx context.Context, requestID string, kind artifactstore.Kind, version int) (*artifactstore.Artifact, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM artifacts WHERE request_id = $1 AND kind = $2 AND version = $3`, artifactColumns),
		requestID, string(kind), version)

	a, err := scanArtifact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s v%d for %s: %w", kind, version, requestID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("%s v%d for %s: %w", kind, version, requestID, err)
	}
	return a, nil
}

// GetAllVersions returns every version ascending.
func (s *Store) GetAllVersions(ctx context.Context, requestID string, kind artifactstore.Kind) ([]artifactstore.Artifact, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM artifacts WHERE request_id = $1 AND kind = $2 ORDER BY version ASC`, artifactColumns),
		requestID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("all %s versions for %s: %w", kind, requestID, err)
	}
	defer rows.Close()

	var artifacts []artifactstore.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}
