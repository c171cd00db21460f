package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the vectorization pipeline.
type Config struct {
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Store      StoreConfig      `yaml:"store"`
	Collection CollectionConfig `yaml:"collection"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Verify     VerifyConfig     `yaml:"verify"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider" env:"PRODVEC_EMBEDDING_PROVIDER"` // "auto", "openai", "offline"
	Model             string        `yaml:"model" env:"PRODVEC_EMBEDDING_MODEL"`
	APIKeyEnv         string        `yaml:"api_key_env"` // Environment variable for API key
	BaseURL           string        `yaml:"base_url" env:"PRODVEC_EMBEDDING_BASE_URL"`
	Dimension         int           `yaml:"dimension"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unthrottled
	CacheSize         int           `yaml:"cache_size"`          // 0 = no cache
	CacheTTL          time.Duration `yaml:"cache_ttl"`
}

// StoreConfig selects and addresses the vector store.
type StoreConfig struct {
	Backend   string        `yaml:"backend" env:"PRODVEC_STORE_BACKEND"` // "bolt", "qdrant", "memory"
	Path      string        `yaml:"path" env:"PRODVEC_STORE_PATH"`
	Host      string        `yaml:"host" env:"QDRANT_HOST"`
	Port      int           `yaml:"port" env:"QDRANT_PORT"`
	HTTPS     bool          `yaml:"https"`
	APIKeyEnv string        `yaml:"api_key_env"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CollectionConfig describes the target collection.
type CollectionConfig struct {
	Name          string   `yaml:"name" env:"PRODVEC_COLLECTION"`
	Distance      string   `yaml:"distance"`
	IndexedFields []string `yaml:"indexed_fields"`
}

// EnrichmentConfig holds the static values the enricher stamps on every chunk.
type EnrichmentConfig struct {
	IDPrefix        string `yaml:"id_prefix"`
	ContentVersion  string `yaml:"content_version"`
	WorkflowVersion string `yaml:"workflow_version"`
	SourceSystem    string `yaml:"source_system"`
	SyncStatus      string `yaml:"sync_status"`
	Brand           string `yaml:"brand"`
	CategoryPath    string `yaml:"category_path"`
	ProductLine     string `yaml:"product_line"`
	PriceCurrency   string `yaml:"price_currency"`
	StockStatus     string `yaml:"stock_status"`
}

// DatasetConfig controls dataset discovery when a directory is ingested.
type DatasetConfig struct {
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

// VerifyConfig holds post-upsert verification settings.
type VerifyConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Queries       []string `yaml:"queries"`
	Limit         int      `yaml:"limit"`
	SnippetLength int      `yaml:"snippet_length"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" env:"PRODVEC_LOG_LEVEL"`
	File  string `yaml:"file" env:"PRODVEC_LOG_FILE"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "auto",
			Model:     "text-embedding-3-large",
			APIKeyEnv: "OPENAI_API_KEY",
			BaseURL:   "https://api.openai.com/v1",
			Dimension: 3072,
			Timeout:   30 * time.Second,
			CacheSize: 256,
			CacheTTL:  10 * time.Minute,
		},
		Store: StoreConfig{
			Backend:   "bolt",
			Path:      filepath.Join(".prodvec", "vectors.db"),
			Host:      "localhost",
			Port:      6333,
			APIKeyEnv: "QDRANT_API_KEY",
			Timeout:   15 * time.Second,
		},
		Collection: CollectionConfig{
			Name:     "held_products_optimized",
			Distance: "Cosine",
			IndexedFields: []string{
				"entity_key",
				"external_product_id",
				"brand",
				"category_path",
				"last_updated",
				"chunk_type",
				"source_system",
				"sync_status",
			},
		},
		Enrichment: EnrichmentConfig{
			IDPrefix:        "sw",
			ContentVersion:  "2.0",
			WorkflowVersion: "2.0_shopware_optimized",
			SourceSystem:    "shopware",
			SyncStatus:      "active",
			Brand:           "HELD",
			CategoryPath:    "Handschuhe > Touring-Handschuhe > mit Membrane",
			ProductLine:     "Inuit",
			PriceCurrency:   "EUR",
			StockStatus:     "available",
		},
		Dataset: DatasetConfig{
			Includes: []string{"**/*.json"},
			Excludes: []string{"**/.prodvec/**", "**/node_modules/**", "**/.git/**"},
		},
		Verify: VerifyConfig{
			Enabled: true,
			Queries: []string{
				"Wie lange hält der Akku?",
				"Welche Größen gibt es?",
				"Ist der Handschuh wasserdicht?",
				"Preis des Handschuhs",
			},
			Limit:         2,
			SnippetLength: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for prodvec.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "prodvec.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".prodvec", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// ApplyEnv overlays environment variables (and an optional .env file in dir)
// onto cfg. Variables that are unset leave the loaded values alone.
func ApplyEnv(cfg *Config, dir string) error {
	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	return env.Parse(cfg)
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []error

	switch c.Embedding.Provider {
	case "auto", "openai", "offline":
	default:
		errs = append(errs, fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider))
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if c.Embedding.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("embedding timeout must be positive"))
	}

	switch c.Store.Backend {
	case "bolt", "qdrant", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported store backend: %s", c.Store.Backend))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be positive"))
	}

	if c.Collection.Name == "" {
		errs = append(errs, fmt.Errorf("collection name is empty"))
	}
	switch c.Collection.Distance {
	case "Cosine", "Dot", "Euclid":
	default:
		errs = append(errs, fmt.Errorf("unsupported distance: %s", c.Collection.Distance))
	}

	return errors.Join(errs...)
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// StoreDBPath returns the path of the local vector database, resolved
// against dir when relative.
func StoreDBPath(dir string, cfg *Config) string {
	if filepath.IsAbs(cfg.Store.Path) {
		return cfg.Store.Path
	}
	return filepath.Join(dir, cfg.Store.Path)
}

// EnsureDataDir ensures the directory holding the local database exists.
func EnsureDataDir(dbPath string) error {
	return os.MkdirAll(filepath.Dir(dbPath), 0755)
}
