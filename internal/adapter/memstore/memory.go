package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"prodvec/internal/domain"
)

// MemoryStore is an in-process VectorStore. Nothing survives the process.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	params  domain.CollectionParams
	points  map[uint64]domain.Point
	indexed map[string]struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*collection),
	}
}

func (s *MemoryStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *MemoryStore) CreateCollection(ctx context.Context, name string, params domain.CollectionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; ok {
		return fmt.Errorf("collection already exists: %s", name)
	}
	if params.VectorSize <= 0 {
		return fmt.Errorf("vector size must be positive, got %d", params.VectorSize)
	}
	s.collections[name] = &collection{
		params:  params,
		points:  make(map[uint64]domain.Point),
		indexed: make(map[string]struct{}),
	}
	return nil
}

func (s *MemoryStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *MemoryStore) CollectionInfo(ctx context.Context, name string) (*domain.CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(name)
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(c.indexed))
	for f := range c.indexed {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return &domain.CollectionInfo{
		Name:          name,
		PointsCount:   len(c.points),
		VectorSize:    c.params.VectorSize,
		Distance:      c.params.Distance,
		Status:        "green",
		IndexedFields: fields,
	}, nil
}

// CreateFieldIndex only records the field; filters always scan.
func (s *MemoryStore) CreateFieldIndex(ctx context.Context, collection, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(collection)
	if err != nil {
		return err
	}
	c.indexed[field] = struct{}{}
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(collection)
	if err != nil {
		return err
	}
	for _, p := range points {
		if len(p.Vector) != c.params.VectorSize {
			return fmt.Errorf("%w: point %d has %d values, collection %s expects %d",
				domain.ErrDimensionMismatch, p.ID, len(p.Vector), collection, c.params.VectorSize)
		}
	}
	for _, p := range points {
		c.points[p.ID] = clonePoint(p)
	}
	return nil
}

func (s *MemoryStore) DeleteByFilter(ctx context.Context, collection string, filter domain.Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.get(collection)
	if err != nil {
		return err
	}
	for id, p := range c.points {
		if filter.Matches(p.Payload.Metadata) {
			delete(c.points, id)
		}
	}
	return nil
}

func (s *MemoryStore) Count(ctx context.Context, collection string, filter domain.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return 0, err
	}
	return len(c.matching(filter)), nil
}

func (s *MemoryStore) Scroll(ctx context.Context, collection string, filter domain.Filter, limit int) ([]domain.Point, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	matches := c.matching(filter)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	points := make([]domain.Point, 0, len(matches))
	for _, p := range matches {
		p = clonePoint(p)
		p.Vector = nil
		points = append(points, p)
	}
	return points, nil
}

func (s *MemoryStore) Search(ctx context.Context, collection string, vector []float32, filter domain.Filter, limit int) ([]domain.ScoredPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, err := s.get(collection)
	if err != nil {
		return nil, err
	}
	if len(vector) != c.params.VectorSize {
		return nil, fmt.Errorf("%w: query has %d values, collection %s expects %d",
			domain.ErrDimensionMismatch, len(vector), collection, c.params.VectorSize)
	}

	matches := c.matching(filter)
	results := make([]domain.ScoredPoint, 0, len(matches))
	for _, p := range matches {
		score := c.params.Distance.Score(vector, p.Vector)
		p = clonePoint(p)
		p.Vector = nil
		results = append(results, domain.ScoredPoint{Point: p, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) get(name string) (*collection, error) {
	c, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	return c, nil
}

// matching returns the points satisfying filter in ascending id order.
func (c *collection) matching(filter domain.Filter) []domain.Point {
	ids := make([]uint64, 0, len(c.points))
	for id, p := range c.points {
		if filter.Matches(p.Payload.Metadata) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]domain.Point, len(ids))
	for i, id := range ids {
		out[i] = c.points[id]
	}
	return out
}

// clonePoint detaches stored points from caller-owned slices and maps.
func clonePoint(p domain.Point) domain.Point {
	out := p
	if p.Vector != nil {
		out.Vector = make([]float32, len(p.Vector))
		copy(out.Vector, p.Vector)
	}
	out.Payload.Metadata = p.Payload.Metadata.Clone()
	return out
}
