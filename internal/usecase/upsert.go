package usecase

import (
	"context"
	"fmt"
	"time"

	"prodvec/internal/domain"
	"prodvec/internal/logging"
	"prodvec/internal/port"
)

// UpsertEngine replaces all points of one entity: it deletes every point
// carrying the entity key, then inserts the new chunk set in one batch.
//
// The delete and the insert are separate store calls. A crash between them
// leaves the entity without points; it never leaves duplicates. Concurrent
// upserts of the same entity are not safe.
type UpsertEngine struct {
	store      port.VectorStore
	embedder   port.Embedder
	enricher   *Enricher
	logger     *logging.Logger
	collection string
	now        func() time.Time
}

func NewUpsertEngine(
	store port.VectorStore,
	embedder port.Embedder,
	enricher *Enricher,
	collection string,
	logger *logging.Logger,
) *UpsertEngine {
	return &UpsertEngine{
		store:      store,
		embedder:   embedder,
		enricher:   enricher,
		logger:     logger,
		collection: collection,
		now:        time.Now,
	}
}

// WithEnricher returns a copy of the engine that enriches with e.
func (u *UpsertEngine) WithEnricher(e *Enricher) *UpsertEngine {
	out := *u
	out.enricher = e
	return &out
}

func (u *UpsertEngine) Enricher() *Enricher {
	return u.enricher
}

func (u *UpsertEngine) Collection() string {
	return u.collection
}

// UpsertEntity replaces the stored chunk set of entityKey with chunks.
//
// Input errors (empty set, mismatched keys, duplicates) and a set in which no
// chunk could be embedded fail before the store is touched. Chunks whose
// embedding fails are dropped and counted; the upsert still succeeds if at
// least one survives. Store failures are fatal and never retried.
//
// The returned result is always non-nil and describes how far the upsert got.
func (u *UpsertEngine) UpsertEntity(ctx context.Context, entityKey string, chunks []domain.Chunk) (*domain.UpsertResult, error) {
	result := &domain.UpsertResult{
		EntityKey:    entityKey,
		ChunksLoaded: len(chunks),
		Stage:        domain.StageLoaded,
	}
	fail := func(err error) (*domain.UpsertResult, error) {
		result.Error = err.Error()
		u.logger.Error("Upsert failed for %s at %s: %v", entityKey, result.Stage, err)
		return result, err
	}

	if err := validateChunks(entityKey, chunks); err != nil {
		return fail(err)
	}
	u.logger.Info("Starting upsert for entity %s (%d chunks)", entityKey, len(chunks))

	now := u.now()
	enriched := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.EntityKey = entityKey
		enriched[i] = u.enricher.EnrichChunk(c, now)
	}
	result.Stage = domain.StageEnriched
	u.logger.Debug("Enriched %d chunks for %s", len(enriched), entityKey)

	points := make([]domain.Point, 0, len(enriched))
	for i, c := range enriched {
		u.logger.Debug("Vectorizing chunk %d/%d: %s", i+1, len(enriched), c.ID)
		vector, err := u.embed(ctx, c.Content)
		if err != nil {
			u.logger.Warn("Failed to generate embedding for chunk %s: %v", c.ID, err)
			result.ChunksFailed++
			result.FailedChunkIDs = append(result.FailedChunkIDs, c.ID)
			continue
		}
		points = append(points, domain.Point{
			ID:     domain.DerivePointID(entityKey, c.Index),
			Vector: vector,
			Payload: domain.Payload{
				ChunkID:  c.ID,
				Content:  c.Content,
				Metadata: c.Metadata,
			},
		})
	}
	result.ChunksVectorized = len(points)
	if result.ChunksFailed > 0 {
		u.logger.Warn("Partial embedding failure for %s: %d of %d chunks failed", entityKey, result.ChunksFailed, len(chunks))
	}
	if len(points) == 0 {
		return fail(fmt.Errorf("%w: none of the %d chunks of %s could be embedded", domain.ErrEmbedding, len(chunks), entityKey))
	}
	result.Stage = domain.StageVectorized
	u.logger.Info("Successfully vectorized %d/%d chunks", len(points), len(chunks))

	u.logger.Info("Deleting existing points for entity %s", entityKey)
	if err := u.store.DeleteByFilter(ctx, u.collection, domain.MatchField(domain.KeyEntityKey, entityKey)); err != nil {
		return fail(fmt.Errorf("failed to delete existing points for %s: %w", entityKey, err))
	}
	result.Stage = domain.StageDeletedOld

	if err := u.store.Upsert(ctx, u.collection, points); err != nil {
		return fail(fmt.Errorf("failed to insert points for %s: %w", entityKey, err))
	}
	result.Stage = domain.StageInsertedNew
	result.PointsUpserted = len(points)
	result.Success = true

	u.logger.Info("Upserted %d points for entity %s", len(points), entityKey)
	return result, nil
}

func (u *UpsertEngine) embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := u.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) != u.embedder.Dimension() {
		return nil, fmt.Errorf("%w: expected %d values, got %d", domain.ErrEmbedding, u.embedder.Dimension(), len(vector))
	}
	return vector, nil
}

// validateChunks rejects chunk sets that would violate the one point per
// (entity, chunk index) rule.
func validateChunks(entityKey string, chunks []domain.Chunk) error {
	if entityKey == "" {
		return fmt.Errorf("%w: entity key is empty", domain.ErrInput)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks to upsert for entity %s", domain.ErrInput, entityKey)
	}

	ids := make(map[string]bool, len(chunks))
	indexes := make(map[int]bool, len(chunks))
	pointIDs := make(map[uint64]int, len(chunks))
	for _, c := range chunks {
		if c.EntityKey != "" && c.EntityKey != entityKey {
			return fmt.Errorf("%w: chunk %s belongs to entity %s, not %s", domain.ErrInput, c.ID, c.EntityKey, entityKey)
		}
		if c.ID == "" {
			return fmt.Errorf("%w: chunk at index %d has no chunk_id", domain.ErrInput, c.Index)
		}
		if c.Index < 0 {
			return fmt.Errorf("%w: chunk %s has negative index %d", domain.ErrInput, c.ID, c.Index)
		}
		if ids[c.ID] {
			return fmt.Errorf("%w: duplicate chunk_id %s", domain.ErrInput, c.ID)
		}
		if indexes[c.Index] {
			return fmt.Errorf("%w: duplicate chunk index %d", domain.ErrInput, c.Index)
		}
		pid := domain.DerivePointID(entityKey, c.Index)
		if other, ok := pointIDs[pid]; ok {
			return fmt.Errorf("%w: chunk indexes %d and %d of %s map to the same point id %d", domain.ErrInput, other, c.Index, entityKey, pid)
		}
		ids[c.ID] = true
		indexes[c.Index] = true
		pointIDs[pid] = c.Index
	}
	return nil
}
