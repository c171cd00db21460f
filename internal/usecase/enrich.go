package usecase

import (
	"fmt"
	"time"
	"unicode/utf8"

	"prodvec/config"
	"prodvec/internal/domain"
)

// Enricher stamps the system tracking fields onto chunk metadata.
type Enricher struct {
	cfg            config.EnrichmentConfig
	embeddingModel string
}

func NewEnricher(cfg config.EnrichmentConfig, embeddingModel string) *Enricher {
	return &Enricher{
		cfg:            cfg,
		embeddingModel: embeddingModel,
	}
}

// WithContentVersion returns a copy that writes version as content_version.
func (e *Enricher) WithContentVersion(version string) *Enricher {
	out := *e
	out.cfg.ContentVersion = version
	return &out
}

// WithHierarchy returns a copy using the given product hierarchy. Empty
// arguments keep the configured values.
func (e *Enricher) WithHierarchy(brand, categoryPath, productLine string) *Enricher {
	out := *e
	if brand != "" {
		out.cfg.Brand = brand
	}
	if categoryPath != "" {
		out.cfg.CategoryPath = categoryPath
	}
	if productLine != "" {
		out.cfg.ProductLine = productLine
	}
	return &out
}

// Enrich returns a copy of md with every system field overwritten from
// entityKey, chunkIndex and now. Business fields are carried over untouched
// and md itself is not modified.
func (e *Enricher) Enrich(md domain.Metadata, entityKey string, chunkIndex int, now time.Time) domain.Metadata {
	out := md.Clone()
	for k := range out.Extra {
		if domain.IsSystemKey(k) {
			delete(out.Extra, k)
		}
	}

	var contentLength int
	if md.System != nil {
		contentLength = md.System.ContentLength
	}

	now = now.UTC()
	out.System = &domain.SystemFields{
		EntityKey:       entityKey,
		ExternalID:      fmt.Sprintf("%s_%s", e.cfg.IDPrefix, entityKey),
		VariantID:       fmt.Sprintf("%s_var_%s_%03d", e.cfg.IDPrefix, entityKey, chunkIndex),
		LastUpdated:     now,
		ContentVersion:  e.cfg.ContentVersion,
		ChunkIndex:      chunkIndex,
		Brand:           e.cfg.Brand,
		CategoryPath:    e.cfg.CategoryPath,
		ProductLine:     e.cfg.ProductLine,
		SourceSystem:    e.cfg.SourceSystem,
		SyncStatus:      e.cfg.SyncStatus,
		PriceCurrency:   e.cfg.PriceCurrency,
		StockStatus:     e.cfg.StockStatus,
		ProcessedAt:     now,
		ContentLength:   contentLength,
		EmbeddingModel:  e.embeddingModel,
		WorkflowVersion: e.cfg.WorkflowVersion,
	}
	return out
}

// EnrichChunk enriches c's metadata and records its content length in
// characters.
func (e *Enricher) EnrichChunk(c domain.Chunk, now time.Time) domain.Chunk {
	c.Metadata = e.Enrich(c.Metadata, c.EntityKey, c.Index, now)
	c.Metadata.System.ContentLength = utf8.RuneCountInString(c.Content)
	return c
}
