package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-labs/sous/internal/adapters/driven/config/file"
	ollamaembed "github.com/custodia-labs/sous/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/sous/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/sous/internal/adapters/driven/generation"
	ollamallm "github.com/custodia-labs/sous/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/sous/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/sous/internal/adapters/driven/objectstore/filesystem"
	"github.com/custodia-labs/sous/internal/adapters/driven/objectstore/minio"
	"github.com/custodia-labs/sous/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sous/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sous/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/sous/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/sous/internal/adapters/driving/cli"
	"github.com/custodia-labs/sous/internal/core/ports/driven"
	"github.com/custodia-labs/sous/internal/core/services"
	"github.com/custodia-labs/sous/internal/logger"
	"github.com/custodia-labs/sous/internal/metadata"
	"github.com/custodia-labs/sous/internal/metrics"
	"github.com/custodia-labs/sous/internal/postprocessors"
)

// closers releases resources in reverse order of acquisition.
type closers []func()

func (c *closers) add(f func())           { *c = append(*c, f) }
func (c *closers) addCloser(cl io.Closer) { c.add(func() { _ = cl.Close() }) }

func (c closers) release() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// bootstrap loads the configuration at path and builds the application services.
func bootstrap(ctx context.Context, path string) (*cli.Services, func(), error) {
	cfg, err := file.Load(path)
	if err != nil {
		return nil, nil, err
	}
	return build(ctx, &cfg)
}

//nolint:gocyclo // Linear construction of every adapter
func build(ctx context.Context, cfg *file.Config) (*cli.Services, func(), error) {
	var cs closers
	fail := func(err error) (*cli.Services, func(), error) {
		cs.release()
		return nil, nil, err
	}

	m := metrics.New()

	docStore, err := newDocumentStore(ctx, cfg, &cs)
	if err != nil {
		return fail(err)
	}

	objects, err := newObjectStore(cfg, &cs)
	if err != nil {
		return fail(err)
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fail(err)
	}
	if embedder != nil {
		cs.addCloser(embedder)
	}

	index, err := newVectorIndex(cfg, embedder)
	if err != nil {
		return fail(err)
	}
	cs.addCloser(index)

	llm, err := newLLM(cfg)
	if err != nil {
		return fail(err)
	}
	if llm != nil {
		cs.addCloser(llm)
	}

	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	names, settings := cfg.PipelineSettings()
	pipeline, err := postprocessors.Build(registry, names, settings)
	if err != nil {
		return fail(fmt.Errorf("build pipeline: %w", err))
	}

	taxonomy := cfg.BuildTaxonomy()
	extractor := metadata.NewExtractor(taxonomy)

	versioner := services.NewVersioner(docStore, extractor, m)
	syncer := services.NewIndexSynchronizer(index,
		services.WithBatchSize(cfg.Sync.BatchSize),
		services.WithParallelism(cfg.Sync.Parallelism),
		services.WithSyncMetrics(m),
	)
	ingest := services.NewIngestService(objects, cfg.ObjectStore.Bucket, versioner, pipeline, syncer, m)

	prompts, err := file.NewPromptStore(cfg.PromptDir)
	if err != nil {
		return fail(err)
	}
	router := services.NewQueryRouter(llm, taxonomy)
	router.SetPromptStore(prompts)
	generator := generation.New(llm)
	generator.SetPromptStore(prompts)

	retrieval := services.NewRetrievalEngine(index, docStore, objects, extractor)
	chat := services.NewChatService(router, retrieval, generator, m)

	svc := &cli.Services{
		Ingest:      ingest,
		Chat:        chat,
		Document:    services.NewDocumentService(docStore, objects),
		Metrics:     m.Handler(),
		MetricsAddr: cfg.Metrics.Addr,
	}
	if w, ok := objects.(driven.ObjectWatcher); ok {
		svc.Watch = services.NewWatchService(w, cfg.ObjectStore.Bucket, ingest)
	}

	logger.Debug("services ready: storage=%s objects=%s vector=%s embedding=%s llm=%s",
		cfg.Storage.Type, cfg.ObjectStore.Type, cfg.Vector.Type, cfg.Embedding.Provider, cfg.LLM.Provider)
	return svc, cs.release, nil
}

func newDocumentStore(ctx context.Context, cfg *file.Config, cs *closers) (driven.DocumentStore, error) {
	switch cfg.Storage.Type {
	case file.StorageMemory:
		return memory.NewDocumentStore(), nil
	case file.StoragePostgres:
		pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		cs.add(pool.Close)
		store := postgres.New(pool)
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("init postgres: %w", err)
		}
		return store, nil
	default:
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		cs.addCloser(store)
		return store.DocumentStore(), nil
	}
}

func newObjectStore(cfg *file.Config, cs *closers) (driven.ObjectStore, error) {
	oc := cfg.ObjectStore
	switch oc.Type {
	case file.ObjectStoreMinio:
		return minio.New(minio.Config{
			Endpoint:  oc.Endpoint,
			AccessKey: oc.AccessKey,
			SecretKey: oc.SecretKey,
			UseSSL:    oc.UseSSL,
			Region:    oc.Region,
		})
	default:
		root := oc.Root
		if root == "" {
			root = cfg.DataDir
		}
		store := filesystem.New(root)
		cs.addCloser(store)
		return store, nil
	}
}

// newEmbedder returns nil when no embedding provider is configured.
func newEmbedder(cfg *file.Config) (driven.EmbeddingService, error) {
	ec := cfg.Embedding
	switch ec.Provider {
	case file.ProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     ec.APIKey,
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
		})
	case file.ProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    ec.BaseURL,
			Model:      ec.Model,
			Dimensions: ec.Dimensions,
		})
	default:
		return nil, nil
	}
}

func newVectorIndex(cfg *file.Config, embedder driven.EmbeddingService) (driven.VectorIndex, error) {
	if cfg.Vector.Type == file.VectorQdrant {
		return qdrant.New(qdrant.Config{
			URL:        cfg.Vector.URL,
			Collection: cfg.Vector.Collection,
			APIKey:     cfg.Vector.APIKey,
		}, embedder)
	}
	return memory.NewVectorIndex(embedder), nil
}

// newLLM returns nil when no language model is configured; the router and
// generator then fall back to their deterministic paths.
func newLLM(cfg *file.Config) (driven.LLMService, error) {
	lc := cfg.LLM
	switch lc.Provider {
	case file.ProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:            lc.APIKey,
			BaseURL:           lc.BaseURL,
			Model:             lc.Model,
			RequestsPerSecond: lc.RequestsPerSecond,
		})
	case file.ProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL:           lc.BaseURL,
			Model:             lc.Model,
			RequestsPerSecond: lc.RequestsPerSecond,
		})
	default:
		return nil, nil
	}
}
