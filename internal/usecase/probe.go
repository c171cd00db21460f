package usecase

import (
	"context"
	"strings"
	"unicode/utf8"

	"prodvec/internal/domain"
	"prodvec/internal/logging"
	"prodvec/internal/port"
)

// Probe runs read-only checks against the collection. Its methods never
// return errors: failures are logged and yield empty results.
type Probe struct {
	store         port.VectorStore
	embedder      port.Embedder
	collection    string
	snippetLength int
	logger        *logging.Logger
}

func NewProbe(store port.VectorStore, embedder port.Embedder, collection string, snippetLength int, logger *logging.Logger) *Probe {
	if snippetLength <= 0 {
		snippetLength = 100
	}
	return &Probe{
		store:         store,
		embedder:      embedder,
		collection:    collection,
		snippetLength: snippetLength,
		logger:        logger,
	}
}

func (p *Probe) CountForEntity(ctx context.Context, entityKey string) int {
	n, err := p.store.Count(ctx, p.collection, domain.MatchField(domain.KeyEntityKey, entityKey))
	if err != nil {
		p.logger.Error("Failed to count points for %s: %v", entityKey, err)
		return 0
	}
	return n
}

// SampleForEntity returns the entity's point with the lowest id, or nil.
func (p *Probe) SampleForEntity(ctx context.Context, entityKey string) *domain.Point {
	points, err := p.store.Scroll(ctx, p.collection, domain.MatchField(domain.KeyEntityKey, entityKey), 1)
	if err != nil {
		p.logger.Error("Failed to fetch sample point for %s: %v", entityKey, err)
		return nil
	}
	if len(points) == 0 {
		return nil
	}
	return &points[0]
}

// Search embeds query and returns at most limit hits, best first. A non-empty
// entityKey restricts the search to that entity.
func (p *Probe) Search(ctx context.Context, query, entityKey string, limit int) []domain.SearchHit {
	if limit <= 0 {
		limit = 5
	}
	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		p.logger.Error("Failed to embed query %q: %v", query, err)
		return nil
	}

	var filter domain.Filter
	if entityKey != "" {
		filter = domain.MatchField(domain.KeyEntityKey, entityKey)
	}
	results, err := p.store.Search(ctx, p.collection, vector, filter, limit)
	if err != nil {
		p.logger.Error("Search failed for %q: %v", query, err)
		return nil
	}

	hits := make([]domain.SearchHit, 0, len(results))
	for _, r := range results {
		hit := domain.SearchHit{
			Score:   r.Score,
			ChunkID: r.Payload.ChunkID,
			Snippet: snippet(r.Payload.Content, p.snippetLength),
		}
		if values := r.Payload.Metadata.FieldValues(domain.KeyEntityKey); len(values) > 0 {
			hit.EntityKey = values[0]
		}
		hits = append(hits, hit)
	}
	return hits
}

// Verify counts the entity's points against expected, fetches a sample and
// runs each query restricted to the entity.
func (p *Probe) Verify(ctx context.Context, entityKey string, expected int, queries []string, limit int) *domain.Verification {
	v := &domain.Verification{
		PointsCount: p.CountForEntity(ctx, entityKey),
	}
	v.CountMatches = v.PointsCount == expected
	if !v.CountMatches {
		p.logger.Warn("Entity %s has %d points, expected %d", entityKey, v.PointsCount, expected)
	}

	if sample := p.SampleForEntity(ctx, entityKey); sample != nil {
		v.SampleChunkID = sample.Payload.ChunkID
	}

	if len(queries) > 0 {
		v.Queries = make(map[string][]domain.SearchHit, len(queries))
		for _, q := range queries {
			v.Queries[q] = p.Search(ctx, q, entityKey, limit)
		}
	}
	return v
}

// snippet truncates s to at most n characters, marking the cut with "...".
func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
