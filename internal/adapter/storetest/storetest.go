// Package storetest holds the behavioural tests every port.VectorStore
// backend must pass.
package storetest

import (
	"context"
	"errors"
	"testing"

	"prodvec/internal/domain"
	"prodvec/internal/port"
)

// Factory returns an empty store. The store is closed by the suite.
type Factory func(t *testing.T) port.VectorStore

const (
	testCollection = "products_test"
	testDimension  = 4
)

// Run exercises newStore against the VectorStore contract.
func Run(t *testing.T, newStore Factory) {
	t.Run("CollectionLifecycle", func(t *testing.T) { testCollectionLifecycle(t, newStore) })
	t.Run("UpsertCountScroll", func(t *testing.T) { testUpsertCountScroll(t, newStore) })
	t.Run("DeleteByFilter", func(t *testing.T) { testDeleteByFilter(t, newStore) })
	t.Run("OverwriteSameID", func(t *testing.T) { testOverwriteSameID(t, newStore) })
	t.Run("FieldIndex", func(t *testing.T) { testFieldIndex(t, newStore) })
	t.Run("Search", func(t *testing.T) { testSearch(t, newStore) })
	t.Run("Errors", func(t *testing.T) { testErrors(t, newStore) })
}

// Point builds a test point for entity at index with the given vector.
func Point(entity string, index int, content string, vector []float32, extra map[string]any) domain.Point {
	md := map[string]any{
		domain.KeyEntityKey:  entity,
		domain.KeyChunkIndex: index,
	}
	for k, v := range extra {
		md[k] = v
	}
	return domain.Point{
		ID:     domain.DerivePointID(entity, index),
		Vector: vector,
		Payload: domain.Payload{
			ChunkID:  entity + "_chunk",
			Content:  content,
			Metadata: domain.MetadataFromMap(md),
		},
	}
}

func setup(t *testing.T, newStore Factory) (port.VectorStore, context.Context) {
	t.Helper()
	st := newStore(t)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()
	err := st.CreateCollection(ctx, testCollection, domain.CollectionParams{
		VectorSize: testDimension,
		Distance:   domain.DistanceCosine,
	})
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	return st, ctx
}

func seed(t *testing.T, st port.VectorStore, ctx context.Context) {
	t.Helper()
	points := []domain.Point{
		Point("022572-00", 0, "overview", []float32{1, 0, 0, 0}, map[string]any{"chunk_type": "overview", "tags": []any{"winter", "heated"}}),
		Point("022572-00", 1, "heating", []float32{0, 1, 0, 0}, map[string]any{"chunk_type": "feature"}),
		Point("022572-00", 2, "materials", []float32{0, 0, 1, 0}, map[string]any{"chunk_type": "feature"}),
		Point("033100-10", 0, "other product", []float32{0.9, 0.1, 0, 0}, map[string]any{"chunk_type": "overview"}),
	}
	if err := st.Upsert(ctx, testCollection, points); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
}

func count(t *testing.T, st port.VectorStore, ctx context.Context, filter domain.Filter) int {
	t.Helper()
	n, err := st.Count(ctx, testCollection, filter)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return n
}

func testCollectionLifecycle(t *testing.T, newStore Factory) {
	st := newStore(t)
	defer st.Close()
	ctx := context.Background()

	exists, err := st.CollectionExists(ctx, testCollection)
	if err != nil {
		t.Fatal(err)
	}
	if exists {
		t.Fatal("expected collection to be absent")
	}

	params := domain.CollectionParams{VectorSize: testDimension, Distance: domain.DistanceDot}
	if err := st.CreateCollection(ctx, testCollection, params); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if exists, _ := st.CollectionExists(ctx, testCollection); !exists {
		t.Fatal("expected collection to exist after create")
	}
	if err := st.CreateCollection(ctx, testCollection, params); err == nil {
		t.Error("expected error creating an existing collection")
	}

	info, err := st.CollectionInfo(ctx, testCollection)
	if err != nil {
		t.Fatalf("CollectionInfo: %v", err)
	}
	if info.VectorSize != testDimension {
		t.Errorf("expected VectorSize=%d, got %d", testDimension, info.VectorSize)
	}
	if info.Distance != domain.DistanceDot {
		t.Errorf("expected Distance=Dot, got %s", info.Distance)
	}
	if info.PointsCount != 0 {
		t.Errorf("expected 0 points, got %d", info.PointsCount)
	}

	if err := st.DeleteCollection(ctx, testCollection); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if exists, _ := st.CollectionExists(ctx, testCollection); exists {
		t.Error("expected collection to be gone after delete")
	}
	if err := st.DeleteCollection(ctx, testCollection); err != nil {
		t.Errorf("expected deleting a missing collection to succeed, got %v", err)
	}

	_, err = st.CollectionInfo(ctx, testCollection)
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("expected ErrCollectionNotFound, got %v", err)
	}
}

func testUpsertCountScroll(t *testing.T, newStore Factory) {
	st, ctx := setup(t, newStore)
	seed(t, st, ctx)

	if n := count(t, st, ctx, domain.Filter{}); n != 4 {
		t.Errorf("expected 4 points, got %d", n)
	}
	if n := count(t, st, ctx, domain.MatchField(domain.KeyEntityKey, "022572-00")); n != 3 {
		t.Errorf("expected 3 points for 022572-00, got %d", n)
	}
	if n := count(t, st, ctx, domain.MatchField("tags", "heated")); n != 1 {
		t.Errorf("expected array match on tags, got %d", n)
	}
	both := domain.Filter{Must: []domain.FieldMatch{
		{Key: domain.KeyEntityKey, Value: "022572-00"},
		{Key: "chunk_type", Value: "feature"},
	}}
	if n := count(t, st, ctx, both); n != 2 {
		t.Errorf("expected conjunction to match 2, got %d", n)
	}
	if n := count(t, st, ctx, domain.MatchField(domain.KeyEntityKey, "missing")); n != 0 {
		t.Errorf("expected 0 for unknown entity, got %d", n)
	}

	info, err := st.CollectionInfo(ctx, testCollection)
	if err != nil {
		t.Fatal(err)
	}
	if info.PointsCount != 4 {
		t.Errorf("expected info to report 4 points, got %d", info.PointsCount)
	}

	points, err := st.Scroll(ctx, testCollection, domain.MatchField(domain.KeyEntityKey, "022572-00"), 2)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].ID >= points[1].ID {
		t.Errorf("expected ascending ids, got %d then %d", points[0].ID, points[1].ID)
	}
	for _, p := range points {
		if len(p.Vector) != 0 {
			t.Errorf("expected scroll without vectors, got %d values", len(p.Vector))
		}
		if got := p.Payload.Metadata.FieldValues(domain.KeyEntityKey); len(got) != 1 || got[0] != "022572-00" {
			t.Errorf("unexpected entity_key %v", got)
		}
	}
}

func testDeleteByFilter(t *testing.T, newStore Factory) {
	st, ctx := setup(t, newStore)
	seed(t, st, ctx)

	if err := st.DeleteByFilter(ctx, testCollection, domain.MatchField(domain.KeyEntityKey, "022572-00")); err != nil {
		t.Fatalf("DeleteByFilter: %v", err)
	}
	if n := count(t, st, ctx, domain.MatchField(domain.KeyEntityKey, "022572-00")); n != 0 {
		t.Errorf("expected entity to be emptied, got %d", n)
	}
	if n := count(t, st, ctx, domain.Filter{}); n != 1 {
		t.Errorf("expected other entity to survive, got %d points", n)
	}

	// Deleting nothing is not an error.
	if err := st.DeleteByFilter(ctx, testCollection, domain.MatchField(domain.KeyEntityKey, "022572-00")); err != nil {
		t.Errorf("expected no error deleting zero points, got %v", err)
	}
}

func testOverwriteSameID(t *testing.T, newStore Factory) {
	st, ctx := setup(t, newStore)
	seed(t, st, ctx)

	updated := Point("022572-00", 0, "overview [UPDATED]", []float32{0, 0, 0, 1}, map[string]any{"chunk_type": "summary"})
	if err := st.Upsert(ctx, testCollection, []domain.Point{updated}); err != nil {
		t.Fatal(err)
	}

	if n := count(t, st, ctx, domain.Filter{}); n != 4 {
		t.Errorf("expected overwrite to keep 4 points, got %d", n)
	}
	if n := count(t, st, ctx, domain.MatchField("chunk_type", "summary")); n != 1 {
		t.Errorf("expected new value to match, got %d", n)
	}
	overview := domain.Filter{Must: []domain.FieldMatch{
		{Key: domain.KeyEntityKey, Value: "022572-00"},
		{Key: "chunk_type", Value: "overview"},
	}}
	if n := count(t, st, ctx, overview); n != 0 {
		t.Errorf("expected old value to be gone, got %d", n)
	}
}

func testFieldIndex(t *testing.T, newStore Factory) {
	st, ctx := setup(t, newStore)

	if err := st.CreateFieldIndex(ctx, testCollection, domain.KeyEntityKey); err != nil {
		t.Fatalf("CreateFieldIndex before data: %v", err)
	}
	seed(t, st, ctx)
	if err := st.CreateFieldIndex(ctx, testCollection, "chunk_type"); err != nil {
		t.Fatalf("CreateFieldIndex after data: %v", err)
	}
	if err := st.CreateFieldIndex(ctx, testCollection, "chunk_type"); err != nil {
		t.Errorf("expected repeated index creation to succeed, got %v", err)
	}

	if n := count(t, st, ctx, domain.MatchField("chunk_type", "feature")); n != 2 {
		t.Errorf("expected backfilled index to find 2, got %d", n)
	}
	if err := st.DeleteByFilter(ctx, testCollection, domain.MatchField(domain.KeyEntityKey, "033100-10")); err != nil {
		t.Fatal(err)
	}
	if n := count(t, st, ctx, domain.MatchField("chunk_type", "overview")); n != 1 {
		t.Errorf("expected index to drop deleted points, got %d", n)
	}

	info, err := st.CollectionInfo(ctx, testCollection)
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, f := range info.IndexedFields {
		found[f] = true
	}
	if !found[domain.KeyEntityKey] || !found["chunk_type"] {
		t.Errorf("expected indexed fields to be reported, got %v", info.IndexedFields)
	}
}

func testSearch(t *testing.T, newStore Factory) {
	st, ctx := setup(t, newStore)
	seed(t, st, ctx)

	results, err := st.Search(ctx, testCollection, []float32{1, 0, 0, 0}, domain.Filter{}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Payload.Content != "overview" {
		t.Errorf("expected exact match first, got %q", results[0].Payload.Content)
	}
	if results[0].Score < results[1].Score {
		t.Errorf("expected descending scores, got %f then %f", results[0].Score, results[1].Score)
	}

	filtered, err := st.Search(ctx, testCollection, []float32{1, 0, 0, 0}, domain.MatchField(domain.KeyEntityKey, "033100-10"), 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].Payload.Content != "other product" {
		t.Errorf("expected filter to restrict search, got %+v", filtered)
	}
}

func testErrors(t *testing.T, newStore Factory) {
	st, ctx := setup(t, newStore)

	wrong := Point("022572-00", 0, "x", []float32{1, 2}, nil)
	if err := st.Upsert(ctx, testCollection, []domain.Point{wrong}); err == nil {
		t.Error("expected error for wrong vector size")
	}
	if n := count(t, st, ctx, domain.Filter{}); n != 0 {
		t.Errorf("expected rejected batch to store nothing, got %d", n)
	}

	good := Point("022572-00", 0, "x", []float32{1, 0, 0, 0}, nil)
	if err := st.Upsert(ctx, "missing_collection", []domain.Point{good}); err == nil {
		t.Error("expected error upserting into a missing collection")
	}
	if _, err := st.Count(ctx, "missing_collection", domain.Filter{}); err == nil {
		t.Error("expected error counting a missing collection")
	}
}
