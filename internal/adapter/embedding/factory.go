package embedding

import (
	"fmt"
	"os"

	"prodvec/config"
	"prodvec/internal/adapter/cache"
	"prodvec/internal/logging"
	"prodvec/internal/port"
)

// New builds the embedder selected by cfg.Provider.
//
// "auto" uses the remote model when its API key is present and the offline
// embedder otherwise. An explicit "openai" never falls back: a missing key is
// an error.
func New(cfg config.EmbeddingConfig, logger *logging.Logger) (port.Embedder, error) {
	provider := cfg.Provider
	if provider == "auto" {
		if os.Getenv(cfg.APIKeyEnv) != "" {
			provider = "openai"
		} else {
			logger.Warn("%s is not set, using offline deterministic embeddings (no semantic similarity)", cfg.APIKeyEnv)
			provider = "offline"
		}
	}

	switch provider {
	case "openai":
		embedder, err := NewOpenAIEmbedder(OpenAIOptions{
			APIKeyEnv:         cfg.APIKeyEnv,
			Model:             cfg.Model,
			BaseURL:           cfg.BaseURL,
			Dimension:         cfg.Dimension,
			Timeout:           cfg.Timeout,
			RequestsPerSecond: cfg.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		logger.Info("Embedding with %s (%d dimensions)", embedder.ModelName(), embedder.Dimension())
		if cfg.CacheSize > 0 {
			return cache.NewCachedEmbedder(embedder, cache.NewEmbeddingCache(cfg.CacheSize, cfg.CacheTTL)), nil
		}
		return embedder, nil
	case "offline":
		logger.Info("Embedding offline (%d dimensions)", cfg.Dimension)
		return NewOfflineEmbedder(cfg.Dimension), nil
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
}
