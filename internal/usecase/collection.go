package usecase

import (
	"context"
	"fmt"

	"prodvec/internal/domain"
	"prodvec/internal/logging"
	"prodvec/internal/port"
)

// CollectionMode selects what EnsureCollection does with an existing
// collection.
type CollectionMode int

const (
	// ModeIdempotent creates the collection only if it is absent.
	ModeIdempotent CollectionMode = iota
	// ModeFresh drops and recreates the collection unconditionally.
	ModeFresh
)

func (m CollectionMode) String() string {
	if m == ModeFresh {
		return "fresh"
	}
	return "idempotent"
}

type CollectionSpec struct {
	Name          string
	VectorSize    int
	Distance      domain.Distance
	IndexedFields []string
}

// EnsureResult reports what EnsureCollection changed.
type EnsureResult struct {
	Created       bool
	Recreated     bool
	IndexesAdded  []string
	IndexFailures []string
}

// CollectionManager owns the lifecycle of the target collection.
type CollectionManager struct {
	store  port.VectorStore
	logger *logging.Logger
}

func NewCollectionManager(store port.VectorStore, logger *logging.Logger) *CollectionManager {
	return &CollectionManager{
		store:  store,
		logger: logger,
	}
}

// EnsureCollection makes sure spec.Name exists with the requested vector
// size. Store failures are fatal. A failed index is logged and skipped.
//
// In idempotent mode an existing collection is kept, but must have the
// requested vector size, and any missing indexes are added.
func (m *CollectionManager) EnsureCollection(ctx context.Context, spec CollectionSpec, mode CollectionMode) (*EnsureResult, error) {
	result := &EnsureResult{}

	exists, err := m.store.CollectionExists(ctx, spec.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", spec.Name, err)
	}

	existingIndexes := map[string]bool{}
	switch {
	case exists && mode == ModeFresh:
		m.logger.Info("Deleting existing collection '%s' for fresh start", spec.Name)
		if err := m.store.DeleteCollection(ctx, spec.Name); err != nil {
			return nil, fmt.Errorf("failed to delete collection %s: %w", spec.Name, err)
		}
		result.Recreated = true
		exists = false
	case exists:
		info, err := m.store.CollectionInfo(ctx, spec.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect collection %s: %w", spec.Name, err)
		}
		if info.VectorSize != spec.VectorSize {
			return nil, fmt.Errorf("%w: collection %s has vector size %d, embedder produces %d (recreate it with --fresh)",
				domain.ErrDimensionMismatch, spec.Name, info.VectorSize, spec.VectorSize)
		}
		for _, f := range info.IndexedFields {
			existingIndexes[f] = true
		}
		m.logger.Debug("Collection '%s' exists with %d points", spec.Name, info.PointsCount)
	}

	if !exists {
		err := m.store.CreateCollection(ctx, spec.Name, domain.CollectionParams{
			VectorSize: spec.VectorSize,
			Distance:   spec.Distance,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create collection %s: %w", spec.Name, err)
		}
		result.Created = true
		m.logger.Info("Created collection '%s' (size=%d, distance=%s)", spec.Name, spec.VectorSize, spec.Distance)
	}

	for _, field := range spec.IndexedFields {
		if existingIndexes[field] {
			continue
		}
		if err := m.store.CreateFieldIndex(ctx, spec.Name, field); err != nil {
			err = fmt.Errorf("%w: %s: %v", domain.ErrIndexCreation, field, err)
			m.logger.Warn("Failed to create index for %s, filtering on it will be slower: %v", field, err)
			result.IndexFailures = append(result.IndexFailures, field)
			continue
		}
		m.logger.Debug("Created index for %s", field)
		result.IndexesAdded = append(result.IndexesAdded, field)
	}

	if len(result.IndexFailures) > 0 {
		m.logger.Warn("%d of %d indexes could not be created on '%s'", len(result.IndexFailures), len(spec.IndexedFields), spec.Name)
	}
	return result, nil
}

// Drop deletes the collection if it exists.
func (m *CollectionManager) Drop(ctx context.Context, name string) error {
	if err := m.store.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	m.logger.Info("Deleted collection '%s'", name)
	return nil
}

func (m *CollectionManager) Info(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	info, err := m.store.CollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection info for %s: %w", name, err)
	}
	return info, nil
}
