package config

// DefaultAllowedExtensions are the file types the extractor can handle.
var DefaultAllowedExtensions = []string{"pdf", "png", "jpg", "jpeg", "tiff", "bmp", "txt", "text"}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AIProvider:     ProviderOpenAI,
		ChatModel:      "gpt-4o-mini",
		AnalysisModel:  "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		Azure: AzureConfig{
			APIVersion: "2024-08-01-preview",
		},
		AI: AIConfig{
			TextLimit:         16000,
			ContextLimit:      10000,
			RequestTimeout:    30,
			MaxRetries:        2,
			RequestsPerMinute: 60,
		},
		OCR: OCRConfig{
			TesseractPath:   "/usr/bin/tesseract",
			PopplerPath:     "/usr/bin",
			Languages:       "deu+eng",
			DPI:             300,
			MinTextChars:    50,
			PageConcurrency: 2,
			Timeout:         120,
		},
		VectorStore: VectorConfig{
			Backend:    VectorChromem,
			Host:       "localhost",
			Port:       8001,
			Collection: "documents",
			PersistDir: "./data/vectordb",
		},
		Storage: StorageConfig{
			Backend:       StorageLocal,
			StagingFolder: "./data/staging",
			StorageFolder: "./data/storage",
		},
		DatabasePath: "./data/docvault.db",
		LogsFolder:   "./data/logs",
		LogLevel:     "info",
		LogFormat:    "text",
		Files: FilesConfig{
			MaxFileSize:       100 * 1024 * 1024,
			AllowedExtensions: DefaultAllowedExtensions,
		},
		Pipeline: PipelineConfig{
			Workers:      3,
			WatchStaging: true,
		},
		Indexer: IndexerConfig{
			ChunkSize:    6000,
			ChunkOverlap: 200,
		},
		Search: SearchConfig{
			SemanticCandidates: 100,
			SimilarThreshold:   0.3,
			BreakerFailures:    3,
			BreakerTimeout:     300,
		},
		Scheduler: SchedulerConfig{
			StagingScanInterval: "5m",
			VerifyInterval:      "1h",
			LogRetention:        "2160h",
		},
		Server: ServerConfig{
			Port: 8000,
		},
	}
}
