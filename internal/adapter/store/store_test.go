package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"prodvec/config"
	"prodvec/internal/adapter/storetest"
	"prodvec/internal/domain"
	"prodvec/internal/port"
)

func newTestStore(t *testing.T) *BoltVectorStore {
	t.Helper()
	st, err := NewBoltVectorStore(filepath.Join(t.TempDir(), "vectors.db"), time.Second)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	return st
}

func TestBoltVectorStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) port.VectorStore {
		return newTestStore(t)
	})
}

func TestBoltVectorStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	st, err := NewBoltVectorStore(path, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.CreateCollection(ctx, "products", domain.CollectionParams{VectorSize: 4, Distance: domain.DistanceCosine}); err != nil {
		t.Fatal(err)
	}
	if err := st.CreateFieldIndex(ctx, "products", domain.KeyEntityKey); err != nil {
		t.Fatal(err)
	}
	p := storetest.Point("022572-00", 1, "Heizsystem", []float32{0, 1, 0, 0}, map[string]any{"confidence": 0.9})
	if err := st.Upsert(ctx, "products", []domain.Point{p}); err != nil {
		t.Fatal(err)
	}
	st.Close()

	st, err = NewBoltVectorStore(path, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	points, err := st.Scroll(ctx, "products", domain.MatchField(domain.KeyEntityKey, "022572-00"), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 point after reopen, got %d", len(points))
	}
	got := points[0]
	if got.ID != domain.DerivePointID("022572-00", 1) {
		t.Errorf("expected id %d, got %d", domain.DerivePointID("022572-00", 1), got.ID)
	}
	if got.Payload.Content != "Heizsystem" {
		t.Errorf("expected content to survive, got %q", got.Payload.Content)
	}
	if got.Payload.Metadata.System == nil || got.Payload.Metadata.System.ChunkIndex != 1 {
		t.Errorf("expected chunk_index=1 in system fields, got %+v", got.Payload.Metadata.System)
	}
	if v, ok := got.Payload.Metadata.Extra["confidence"]; !ok || v != 0.9 {
		t.Errorf("expected business field to survive, got %v", v)
	}
}

func TestBoltVectorStoreErrorClasses(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	if err := st.CreateCollection(ctx, "products", domain.CollectionParams{VectorSize: 4, Distance: domain.DistanceCosine}); err != nil {
		t.Fatal(err)
	}

	wrong := storetest.Point("022572-00", 0, "x", []float32{1}, nil)
	if err := st.Upsert(ctx, "products", []domain.Point{wrong}); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := st.Search(ctx, "products", []float32{1}, domain.Filter{}, 1); !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for query, got %v", err)
	}
	if _, err := st.Count(ctx, "absent", domain.Filter{}); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := st.CollectionExists(cancelled, "products"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable for cancelled context, got %v", err)
	}

	st.Close()
	if _, err := st.CollectionExists(ctx, "products"); !errors.Is(err, domain.ErrStoreUnavailable) {
		t.Errorf("expected ErrStoreUnavailable on closed db, got %v", err)
	}
}

func TestEuclidScoresHigherForCloserPoints(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	if err := st.CreateCollection(ctx, "products", domain.CollectionParams{VectorSize: 2, Distance: domain.DistanceEuclid}); err != nil {
		t.Fatal(err)
	}
	points := []domain.Point{
		storetest.Point("near", 0, "near", []float32{1, 1}, nil),
		storetest.Point("far", 0, "far", []float32{5, 5}, nil),
	}
	if err := st.Upsert(ctx, "products", points); err != nil {
		t.Fatal(err)
	}

	results, err := st.Search(ctx, "products", []float32{0, 0}, domain.Filter{}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Payload.Content != "near" {
		t.Errorf("expected closer point first, got %+v", results)
	}
}

func TestMigrations(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()

	cfg := config.DefaultConfig()

	result, err := st.CheckMigration(cfg, "offline-sha256")
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsMigration || result.OldVersion != 0 {
		t.Errorf("expected fresh db to need migration, got %+v", result)
	}

	if err := st.Migrate(cfg, "offline-sha256"); err != nil {
		t.Fatal(err)
	}
	result, err = st.CheckMigration(cfg, "offline-sha256")
	if err != nil {
		t.Fatal(err)
	}
	if result.NeedsMigration || result.NeedsRebuild {
		t.Errorf("expected migrated db to be current, got %+v", result)
	}

	result, err = st.CheckMigration(cfg, "text-embedding-3-large")
	if err != nil {
		t.Fatal(err)
	}
	if !result.NeedsRebuild {
		t.Error("expected model change to require a rebuild")
	}
}

func TestClear(t *testing.T) {
	st := newTestStore(t)
	defer st.Close()
	ctx := context.Background()

	if err := st.CreateCollection(ctx, "products", domain.CollectionParams{VectorSize: 4, Distance: domain.DistanceCosine}); err != nil {
		t.Fatal(err)
	}
	if err := st.Clear(); err != nil {
		t.Fatal(err)
	}
	if exists, _ := st.CollectionExists(ctx, "products"); exists {
		t.Error("expected Clear to drop collections")
	}
}
