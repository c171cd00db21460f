package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"prodvec/internal/adapter/dataset"
	"prodvec/internal/domain"
	"prodvec/internal/logging"
)

// RunOptions controls one pipeline run.
type RunOptions struct {
	Mode    CollectionMode
	Verify  bool
	Queries []string
	// QueryLimit caps the hits kept per verification query.
	QueryLimit int
}

// Pipeline runs load, ensure collection, upsert and verification for one
// dataset at a time.
type Pipeline struct {
	collections *CollectionManager
	engine      *UpsertEngine
	probe       *Probe
	spec        CollectionSpec
	logger      *logging.Logger
	newRunID    func() string
	now         func() time.Time
}

func NewPipeline(
	collections *CollectionManager,
	engine *UpsertEngine,
	probe *Probe,
	spec CollectionSpec,
	logger *logging.Logger,
) *Pipeline {
	return &Pipeline{
		collections: collections,
		engine:      engine,
		probe:       probe,
		spec:        spec,
		logger:      logger,
		newRunID:    uuid.NewString,
		now:         time.Now,
	}
}

// RunFile loads the dataset at path and runs it. A dataset that fails to
// load yields a failed result carrying domain.ErrInput.
func (p *Pipeline) RunFile(ctx context.Context, path string, opts RunOptions) (*domain.RunResult, error) {
	ds, err := dataset.Load(path)
	if err != nil {
		result := p.newResult()
		result.DatasetPath = path
		result.Stage = domain.StageLoaded
		result.Error = err.Error()
		result.CompletedAt = p.now().UTC()
		p.logger.Error("Failed to load dataset %s: %v", path, err)
		return result, err
	}
	return p.Run(ctx, ds, opts)
}

// Run upserts the dataset's chunks under its product id. The returned result
// is always non-nil; err is set when the run failed.
func (p *Pipeline) Run(ctx context.Context, ds *domain.Dataset, opts RunOptions) (*domain.RunResult, error) {
	result := p.newResult()
	result.DatasetPath = ds.Path
	result.EntityKey = ds.Metadata.ProductID
	result.ChunksLoaded = len(ds.Records)
	result.Stage = domain.StageLoaded

	p.logger.Info("Run %s: processing product %s from %s", result.RunID, ds.Metadata.ProductID, displayPath(ds.Path))

	// Reject bad input before a fresh run can drop the collection.
	chunks := ds.Chunks()
	if err := validateChunks(ds.Metadata.ProductID, chunks); err != nil {
		result.Error = err.Error()
		result.CompletedAt = p.now().UTC()
		p.logger.Error("Run %s: %v", result.RunID, err)
		return result, err
	}

	if _, err := p.collections.EnsureCollection(ctx, p.spec, opts.Mode); err != nil {
		result.Error = err.Error()
		result.CompletedAt = p.now().UTC()
		p.logger.Error("Run %s: %v", result.RunID, err)
		return result, err
	}

	engine := p.engine.WithEnricher(p.engine.Enricher().WithHierarchy(
		ds.Metadata.Brand, ds.Metadata.CategoryPath, ds.Metadata.ProductLine,
	))
	upsert, err := engine.UpsertEntity(ctx, ds.Metadata.ProductID, chunks)
	result.UpsertResult = *upsert
	if err != nil {
		result.CompletedAt = p.now().UTC()
		return result, err
	}

	if opts.Verify {
		v := p.probe.Verify(ctx, upsert.EntityKey, upsert.PointsUpserted, opts.Queries, opts.QueryLimit)
		result.Verification = v
		if v.CountMatches {
			result.Stage = domain.StageVerified
		}
	}

	if info, err := p.collections.Info(ctx, p.spec.Name); err == nil {
		result.CollectionInfo = info
	} else {
		p.logger.Warn("Run %s: %v", result.RunID, err)
	}

	result.CompletedAt = p.now().UTC()
	p.logger.Info("Run %s finished: %d/%d chunks upserted in %s",
		result.RunID, result.PointsUpserted, result.ChunksLoaded, result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond))
	return result, nil
}

func (p *Pipeline) newResult() *domain.RunResult {
	return &domain.RunResult{
		RunID:      p.newRunID(),
		Collection: p.spec.Name,
		StartedAt:  p.now().UTC(),
	}
}

func displayPath(path string) string {
	if path == "" {
		return "<memory>"
	}
	return path
}
