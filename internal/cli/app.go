package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"prodvec/config"
	"prodvec/internal/adapter/embedding"
	"prodvec/internal/adapter/memstore"
	"prodvec/internal/adapter/qdrant"
	"prodvec/internal/adapter/store"
	"prodvec/internal/domain"
	"prodvec/internal/logging"
	"prodvec/internal/port"
	"prodvec/internal/usecase"
)

var (
	_ port.VectorStore = (*store.BoltVectorStore)(nil)
	_ port.VectorStore = (*qdrant.Client)(nil)
	_ port.VectorStore = (*memstore.MemoryStore)(nil)
)

// app holds the wired pipeline for one command invocation.
type app struct {
	cfg         *config.Config
	logger      *logging.Logger
	store       port.VectorStore
	embedder    port.Embedder
	spec        usecase.CollectionSpec
	collections *usecase.CollectionManager
	engine      *usecase.UpsertEngine
	probe       *usecase.Probe
	pipeline    *usecase.Pipeline
}

// openApp builds the logger, embedder and store from cfg. Commands that print
// JSON pass quiet so log lines go to stderr instead of stdout.
func openApp(cfg *config.Config, dir string, quiet bool) (*app, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	var console io.Writer = os.Stdout
	if quiet {
		console = os.Stderr
	}
	logger, err := logging.InitConsole(console, cfg.Logging.File, level)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	embedder, err := embedding.New(cfg.Embedding, logger)
	if err != nil {
		logger.Close()
		return nil, err
	}

	distance, err := domain.ParseDistance(cfg.Collection.Distance)
	if err != nil {
		logger.Close()
		return nil, err
	}

	st, err := openStore(cfg, dir, embedder.ModelName(), logger)
	if err != nil {
		logger.Close()
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		embedder: embedder,
		spec: usecase.CollectionSpec{
			Name:          cfg.Collection.Name,
			VectorSize:    embedder.Dimension(),
			Distance:      distance,
			IndexedFields: cfg.Collection.IndexedFields,
		},
	}
	enricher := usecase.NewEnricher(cfg.Enrichment, embedder.ModelName())
	a.collections = usecase.NewCollectionManager(st, logger)
	a.engine = usecase.NewUpsertEngine(st, embedder, enricher, cfg.Collection.Name, logger)
	a.probe = usecase.NewProbe(st, embedder, cfg.Collection.Name, cfg.Verify.SnippetLength, logger)
	a.pipeline = usecase.NewPipeline(a.collections, a.engine, a.probe, a.spec, logger)
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Failed to close vector store: %v", err)
	}
	a.logger.Close()
}

// requireCollection fails with a readable message when the target
// collection has not been created yet.
func (a *app) requireCollection(ctx context.Context) (*domain.CollectionInfo, error) {
	info, err := a.collections.Info(ctx, a.spec.Name)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'prodvec ingest' or 'prodvec collection create' first)", err)
	}
	return info, nil
}

func openStore(cfg *config.Config, dir, model string, logger *logging.Logger) (port.VectorStore, error) {
	switch cfg.Store.Backend {
	case "qdrant":
		client := qdrant.NewClient(qdrant.Options{
			Host:    cfg.Store.Host,
			Port:    cfg.Store.Port,
			HTTPS:   cfg.Store.HTTPS,
			APIKey:  os.Getenv(cfg.Store.APIKeyEnv),
			Timeout: cfg.Store.Timeout,
		})
		logger.Debug("Using Qdrant at %s", client.BaseURL())
		return client, nil
	case "memory":
		logger.Warn("Using in-memory vector store, nothing is persisted")
		return memstore.NewMemoryStore(), nil
	}

	dbPath := config.StoreDBPath(dir, cfg)
	if err := config.EnsureDataDir(dbPath); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.NewBoltVectorStore(dbPath, cfg.Store.Timeout)
	if err != nil {
		return nil, err
	}

	migration, err := st.CheckMigration(cfg, model)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.NeedsRebuild {
		logger.Warn("Vector store rebuild required: %s. Clearing existing collections", migration.Reason)
		if err := st.Clear(); err != nil {
			st.Close()
			return nil, fmt.Errorf("failed to clear vector store: %w", err)
		}
	} else if migration.NeedsMigration {
		logger.Info("Running schema migration: %s", migration.Reason)
	}
	if err := st.Migrate(cfg, model); err != nil {
		st.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	logger.Debug("Using local vector store at %s", st.Path())
	return st, nil
}
