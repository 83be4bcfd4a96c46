package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stride-ai/stride/internal/adapter/postgres"
	"github.com/stride-ai/stride/internal/domain"
	"github.com/stride-ai/stride/internal/port/artifactstore"
)

// testStore connects to the database named by DATABASE_URL, runs
// migrations, and returns a Store. Skips if DATABASE_URL is not set.
func testStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

func testArtifact(requestID string, kind artifactstore.Kind, version int) *artifactstore.Artifact {
	return &artifactstore.Artifact{
		RequestID: requestID,
		Kind:      kind,
		Version:   version,
		Payload:   []byte(fmt.Sprintf(`{"version":%d}`, version)),
	}
}

func TestStore_SaveAndReadBack(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	requestID := uuid.NewString()

	for v := 1; v <= 3; v++ {
		if err := s.Save(ctx, testArtifact(requestID, artifactstore.KindPlan, v)); err != nil {
			t.Fatalf("save v%d: %v", v, err)
		}
	}

	latest, err := s.GetLatest(ctx, requestID, artifactstore.KindPlan)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Version != 3 {
		t.Fatalf("latest version = %d, want 3", latest.Version)
	}

	v2, err := s.GetVersion(ctx, requestID, artifactstore.KindPlan, 2)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if v2.Version != 2 {
		t.Fatalf("version = %d, want 2", v2.Version)
	}

	all, err := s.GetAllVersions(ctx, requestID, artifactstore.KindPlan)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d versions, want 3", len(all))
	}
	for i, a := range all {
		if a.Version != i+1 {
			t.Fatalf("version at index %d = %d", i, a.Version)
		}
	}
}

func TestStore_VersionConflictMapsToDomainError(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	requestID := uuid.NewString()

	if err := s.Save(ctx, testArtifact(requestID, artifactstore.KindExecution, 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	err := s.Save(ctx, testArtifact(requestID, artifactstore.KindExecution, 1))
	if !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}

func TestStore_NextVersion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	requestID := uuid.NewString()

	v, err := s.NextVersion(ctx, requestID, artifactstore.KindPlan)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if v != 1 {
		t.Fatalf("first version = %d, want 1", v)
	}

	if err := s.Save(ctx, testArtifact(requestID, artifactstore.KindPlan, 1)); err != nil {
		t.Fatalf("save: %v", err)
	}
	v, err = s.NextVersion(ctx, requestID, artifactstore.KindPlan)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if v != 2 {
		t.Fatalf("next version = %d, want 2", v)
	}
}

func TestStore_NotFound(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.GetLatest(ctx, uuid.NewString(), artifactstore.KindPlan); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
