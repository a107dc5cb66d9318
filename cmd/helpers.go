package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ziadkadry99/docvault/internal/audit"
	"github.com/ziadkadry99/docvault/internal/config"
	"github.com/ziadkadry99/docvault/internal/db"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/embeddings"
	"github.com/ziadkadry99/docvault/internal/extract"
	"github.com/ziadkadry99/docvault/internal/indexer"
	"github.com/ziadkadry99/docvault/internal/llm"
	"github.com/ziadkadry99/docvault/internal/logging"
	"github.com/ziadkadry99/docvault/internal/metadata"
	"github.com/ziadkadry99/docvault/internal/pipeline"
	"github.com/ziadkadry99/docvault/internal/rag"
	"github.com/ziadkadry99/docvault/internal/relations"
	"github.com/ziadkadry99/docvault/internal/search"
	"github.com/ziadkadry99/docvault/internal/staging"
	"github.com/ziadkadry99/docvault/internal/storage"
	"github.com/ziadkadry99/docvault/internal/vectordb"
)

const stagingSettle = 2 * time.Second

// app holds every component built from the configuration.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer

	db        *db.DB
	docs      *documents.Store
	logs      *audit.Store
	files     storage.Store
	breaker   *llm.Breaker
	semantic  *llm.Breaker
	provider  llm.Provider
	vectors   vectordb.Store
	indexer   *indexer.Indexer
	pipeline  *pipeline.Orchestrator
	staging   *staging.Processor
	search    *search.Engine
	rag       *rag.Answerer
	relations *relations.Graph
}

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `docvault init` to create a config file", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// openApp wires the database, storage, AI provider, vector store and the
// services built on them. Callers must Close the result.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Dir: cfg.LogsFolder})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	a := &app{cfg: cfg, logger: logger, logCloser: closer}

	if err := a.open(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) open(ctx context.Context) error {
	cfg := a.cfg

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	a.db = database
	a.docs = documents.NewStore(database)
	a.logs = audit.NewStore(database)

	if a.files, err = createFileStore(ctx, cfg); err != nil {
		return fmt.Errorf("creating file storage: %w", err)
	}

	a.breaker, a.semantic = newBreakers(cfg, a.logger)
	if a.provider, err = createLLMProviderFromConfig(cfg, a.breaker, a.logger); err != nil {
		return fmt.Errorf("creating AI provider: %w", err)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	if a.vectors, err = createVectorStore(cfg, embedder); err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}

	a.indexer = indexer.New(a.vectors, a.docs, indexer.Config{
		ChunkSize:    cfg.Indexer.ChunkSize,
		ChunkOverlap: cfg.Indexer.ChunkOverlap,
		Concurrency:  cfg.Pipeline.Workers,
	}, a.logger)

	extractor := extract.New(extract.Config{
		TesseractPath:   cfg.OCR.TesseractPath,
		PopplerPath:     cfg.OCR.PopplerPath,
		Languages:       cfg.OCR.Languages,
		DPI:             cfg.OCR.DPI,
		MinTextChars:    cfg.OCR.MinTextChars,
		PageConcurrency: cfg.OCR.PageConcurrency,
		Timeout:         cfg.OCRTimeout(),
	}, nil, a.logger)
	inferencer := metadata.NewInferencer(a.provider, cfg.AnalysisModel, cfg.AI.TextLimit, a.docs, a.logger)

	a.pipeline = pipeline.New(pipeline.Deps{
		Documents:  a.docs,
		Logs:       a.logs,
		Files:      a.files,
		Extractor:  extractor,
		Inferencer: inferencer,
		Indexer:    a.indexer,
		Logger:     a.logger,
	}, pipeline.Config{
		Workers:           cfg.Pipeline.Workers,
		MaxFileSize:       cfg.Files.MaxFileSize,
		AllowedExtensions: cfg.Files.AllowedExtensions,
	})

	a.staging = staging.New(staging.Config{
		Folder:            cfg.Storage.StagingFolder,
		AllowedExtensions: cfg.Files.AllowedExtensions,
		Settle:            stagingSettle,
	}, a.pipeline, a.logs, a.logger)

	a.search = search.New(a.docs, a.vectors, a.semantic, search.Config{
		SemanticCandidates: cfg.Search.SemanticCandidates,
	}, a.logger)
	a.rag = rag.New(a.docs, a.search, a.provider, rag.Config{
		Model:        cfg.ChatModel,
		ContextLimit: cfg.AI.ContextLimit,
		LogsFolder:   cfg.LogsFolder,
	}, a.logger)
	a.relations = relations.New(database, a.docs, a.vectors, a.logger)
	return nil
}

// Close stops the worker pool and releases the database and log file.
func (a *app) Close() {
	if a.pipeline != nil {
		a.pipeline.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("closing database", "error", err)
		}
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

// newBreakers returns separate breakers for AI completions and semantic
// search, so an unreachable vector store never blocks metadata inference.
func newBreakers(cfg *config.Config, logger *slog.Logger) (*llm.Breaker, *llm.Breaker) {
	ai := llm.NewBreaker(string(cfg.AIProvider), cfg.Search.BreakerFailures, cfg.BreakerTimeout(), logger)
	semantic := llm.NewBreaker("semantic-search", cfg.Search.BreakerFailures, cfg.BreakerTimeout(), logger)
	return ai, semantic
}

// createLLMProviderFromConfig creates the AI provider with rate limiting,
// retries and the circuit breaker applied.
func createLLMProviderFromConfig(cfg *config.Config, breaker *llm.Breaker, logger *slog.Logger) (llm.Provider, error) {
	return llm.NewProvider(llm.Options{
		Type:              string(cfg.AIProvider),
		Model:             cfg.AnalysisModel,
		AzureEndpoint:     cfg.Azure.Endpoint,
		AzureAPIVersion:   cfg.Azure.APIVersion,
		AzureDeployment:   cfg.Azure.ChatDeployment,
		MaxRetries:        cfg.AI.MaxRetries,
		Timeout:           cfg.RequestTimeout(),
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
		Breaker:           breaker,
		Logger:            logger,
	})
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	return embeddings.NewEmbedder(embeddings.Options{
		Type:            string(cfg.AIProvider),
		Model:           cfg.EmbeddingModel,
		AzureEndpoint:   cfg.Azure.Endpoint,
		AzureAPIVersion: cfg.Azure.APIVersion,
		AzureDeployment: cfg.Azure.EmbeddingsDeployment,
	})
}

func createVectorStore(cfg *config.Config, embedder embeddings.Embedder) (vectordb.Store, error) {
	vc := cfg.VectorStore
	switch vc.Backend {
	case config.VectorQdrant:
		return vectordb.NewQdrantStore(vectordb.QdrantConfig{
			URL:        "http://" + vc.Host + ":" + strconv.Itoa(vc.Port),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			Collection: vc.Collection,
		}, embedder), nil
	default:
		return vectordb.NewChromemStore(embedder, vc.Collection, vc.PersistDir)
	}
}

func createFileStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageS3:
		s3 := cfg.Storage.S3
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:   s3.Bucket,
			Region:   s3.Region,
			Endpoint: s3.Endpoint,
			Prefix:   s3.Prefix,
		})
	default:
		return storage.NewLocalStore(cfg.Storage.StorageFolder)
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
