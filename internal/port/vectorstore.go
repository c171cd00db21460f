package port

import (
	"context"

	"prodvec/internal/domain"
)

// VectorStore is a collection-oriented vector database. Filters address
// metadata fields by their bare key (e.g. "entity_key").
type VectorStore interface {
	CollectionExists(ctx context.Context, name string) (bool, error)

	CreateCollection(ctx context.Context, name string, params domain.CollectionParams) error

	DeleteCollection(ctx context.Context, name string) error

	CollectionInfo(ctx context.Context, name string) (*domain.CollectionInfo, error)

	// CreateFieldIndex adds a keyword index on a metadata field.
	CreateFieldIndex(ctx context.Context, collection, field string) error

	// Upsert writes all points in one batch; existing ids are overwritten.
	Upsert(ctx context.Context, collection string, points []domain.Point) error

	// DeleteByFilter removes every point whose metadata matches filter.
	DeleteByFilter(ctx context.Context, collection string, filter domain.Filter) error

	Count(ctx context.Context, collection string, filter domain.Filter) (int, error)

	// Scroll returns up to limit matching points without vectors, ordered by id.
	Scroll(ctx context.Context, collection string, filter domain.Filter, limit int) ([]domain.Point, error)

	// Search returns up to limit matching points ordered by descending score.
	Search(ctx context.Context, collection string, vector []float32, filter domain.Filter, limit int) ([]domain.ScoredPoint, error)

	Close() error
}
