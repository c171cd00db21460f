package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"prodvec/config"
	"prodvec/internal/adapter/embedding"
	"prodvec/internal/adapter/memstore"
	"prodvec/internal/domain"
	"prodvec/internal/logging"
)

const (
	testCollection = "held_products_test"
	testDimension  = 16
	inuitKey       = "022572-00"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func inuitChunks() []domain.Chunk {
	records := []struct {
		id, content, chunkType string
	}{
		{"inuit_001_overview", "Der HELD Inuit ist ein beheizbarer Touring-Handschuh.", "overview"},
		{"inuit_002_heating_system", "Der Akku hält zwei bis sechs Stunden.", "technical"},
		{"inuit_003_materials", "Känguruleder, wasserdicht dank Membrane.", "materials"},
	}
	chunks := make([]domain.Chunk, len(records))
	for i, r := range records {
		chunks[i] = domain.Chunk{
			ID:        r.id,
			Content:   r.content,
			EntityKey: inuitKey,
			Index:     i,
			Metadata: domain.MetadataFromMap(map[string]any{
				"chunk_type":       r.chunkType,
				"confidence_score": 0.9,
			}),
		}
	}
	return chunks
}

func inuitDataset() *domain.Dataset {
	ds := &domain.Dataset{
		Metadata: domain.DatasetMetadata{ProductID: inuitKey, ProductName: "HELD Inuit Heizhandschuh"},
	}
	for _, c := range inuitChunks() {
		ds.Records = append(ds.Records, domain.ChunkRecord{
			ChunkID:  c.ID,
			Content:  c.Content,
			Metadata: c.Metadata.Flatten(),
		})
	}
	return ds
}

// failingEmbedder wraps the offline embedder and fails for texts containing
// any of the configured substrings.
type failingEmbedder struct {
	*embedding.OfflineEmbedder
	failOn []string
	calls  int
}

func newFailingEmbedder(failOn ...string) *failingEmbedder {
	return &failingEmbedder{OfflineEmbedder: embedding.NewOfflineEmbedder(testDimension), failOn: failOn}
}

func (e *failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.calls++
	for _, s := range e.failOn {
		if strings.Contains(text, s) {
			return nil, fmt.Errorf("%w: quota exceeded", domain.ErrEmbedding)
		}
	}
	return e.OfflineEmbedder.Embed(ctx, text)
}

var errUnreachable = fmt.Errorf("%w: connection refused", domain.ErrStoreUnavailable)

// faultyStore wraps a MemoryStore, records mutating calls and fails the
// operations named in failOps.
type faultyStore struct {
	*memstore.MemoryStore
	mu      sync.Mutex
	failOps map[string]bool
	failIdx map[string]bool
	calls   []string
}

func newFaultyStore() *faultyStore {
	return &faultyStore{
		MemoryStore: memstore.NewMemoryStore(),
		failOps:     map[string]bool{},
		failIdx:     map[string]bool{},
	}
}

func (s *faultyStore) record(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
	if s.failOps[op] {
		return errUnreachable
	}
	return nil
}

func (s *faultyStore) mutations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		switch c {
		case "delete", "upsert", "create", "drop":
			out = append(out, c)
		}
	}
	return out
}

func (s *faultyStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := s.record("exists"); err != nil {
		return false, err
	}
	return s.MemoryStore.CollectionExists(ctx, name)
}

func (s *faultyStore) CreateCollection(ctx context.Context, name string, params domain.CollectionParams) error {
	if err := s.record("create"); err != nil {
		return err
	}
	return s.MemoryStore.CreateCollection(ctx, name, params)
}

func (s *faultyStore) DeleteCollection(ctx context.Context, name string) error {
	if err := s.record("drop"); err != nil {
		return err
	}
	return s.MemoryStore.DeleteCollection(ctx, name)
}

func (s *faultyStore) CreateFieldIndex(ctx context.Context, collection, field string) error {
	if s.failIdx[field] {
		return errors.New("unsupported field schema")
	}
	return s.MemoryStore.CreateFieldIndex(ctx, collection, field)
}

func (s *faultyStore) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if err := s.record("upsert"); err != nil {
		return err
	}
	return s.MemoryStore.Upsert(ctx, collection, points)
}

func (s *faultyStore) DeleteByFilter(ctx context.Context, collection string, filter domain.Filter) error {
	if err := s.record("delete"); err != nil {
		return err
	}
	return s.MemoryStore.DeleteByFilter(ctx, collection, filter)
}

func (s *faultyStore) Count(ctx context.Context, collection string, filter domain.Filter) (int, error) {
	if err := s.record("count"); err != nil {
		return 0, err
	}
	return s.MemoryStore.Count(ctx, collection, filter)
}

func (s *faultyStore) Scroll(ctx context.Context, collection string, filter domain.Filter, limit int) ([]domain.Point, error) {
	if err := s.record("scroll"); err != nil {
		return nil, err
	}
	return s.MemoryStore.Scroll(ctx, collection, filter, limit)
}

func (s *faultyStore) Search(ctx context.Context, collection string, vector []float32, filter domain.Filter, limit int) ([]domain.ScoredPoint, error) {
	if err := s.record("search"); err != nil {
		return nil, err
	}
	return s.MemoryStore.Search(ctx, collection, vector, filter, limit)
}

func testSpec() CollectionSpec {
	return CollectionSpec{
		Name:          testCollection,
		VectorSize:    testDimension,
		Distance:      domain.DistanceCosine,
		IndexedFields: config.DefaultConfig().Collection.IndexedFields,
	}
}

type harness struct {
	store    *faultyStore
	embedder *failingEmbedder
	engine   *UpsertEngine
	probe    *Probe
	manager  *CollectionManager
	pipeline *Pipeline
}

// newHarness wires the usecases over a faulty memory store with an existing
// test collection.
func newHarness(failOn ...string) *harness {
	logger := logging.Discard()
	h := &harness{
		store:    newFaultyStore(),
		embedder: newFailingEmbedder(failOn...),
	}
	enricher := NewEnricher(config.DefaultConfig().Enrichment, h.embedder.ModelName())
	h.engine = NewUpsertEngine(h.store, h.embedder, enricher, testCollection, logger)
	h.engine.now = func() time.Time { return fixedNow }
	h.probe = NewProbe(h.store, h.embedder, testCollection, 40, logger)
	h.manager = NewCollectionManager(h.store, logger)
	h.pipeline = NewPipeline(h.manager, h.engine, h.probe, testSpec(), logger)
	h.pipeline.now = func() time.Time { return fixedNow }
	h.pipeline.newRunID = func() string { return "run-1" }

	h.manager.EnsureCollection(context.Background(), testSpec(), ModeIdempotent)
	h.store.calls = nil
	return h
}
