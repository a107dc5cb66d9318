package config

// ProviderType identifies an AI backend.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderAzure  ProviderType = "azure"
)

// VectorBackend identifies a vector store implementation.
type VectorBackend string

const (
	VectorChromem VectorBackend = "chromem"
	VectorQdrant  VectorBackend = "qdrant"
)

// StorageBackend identifies where original files are kept.
type StorageBackend string

const (
	StorageLocal StorageBackend = "local"
	StorageS3    StorageBackend = "s3"
)

// Config is the top-level docvault configuration, corresponding to .docvault.yml.
type Config struct {
	AIProvider     ProviderType    `yaml:"ai_provider" koanf:"ai_provider"`
	ChatModel      string          `yaml:"chat_model" koanf:"chat_model"`
	AnalysisModel  string          `yaml:"analysis_model" koanf:"analysis_model"`
	EmbeddingModel string          `yaml:"embedding_model" koanf:"embedding_model"`
	Azure          AzureConfig     `yaml:"azure" koanf:"azure"`
	AI             AIConfig        `yaml:"ai" koanf:"ai"`
	OCR            OCRConfig       `yaml:"ocr" koanf:"ocr"`
	VectorStore    VectorConfig    `yaml:"vector_store" koanf:"vector_store"`
	Storage        StorageConfig   `yaml:"storage" koanf:"storage"`
	DatabasePath   string          `yaml:"database_path" koanf:"database_path"`
	LogsFolder     string          `yaml:"logs_folder" koanf:"logs_folder"`
	LogLevel       string          `yaml:"log_level" koanf:"log_level"`
	LogFormat      string          `yaml:"log_format" koanf:"log_format"`
	Files          FilesConfig     `yaml:"files" koanf:"files"`
	Pipeline       PipelineConfig  `yaml:"pipeline" koanf:"pipeline"`
	Indexer        IndexerConfig   `yaml:"indexer" koanf:"indexer"`
	Search         SearchConfig    `yaml:"search" koanf:"search"`
	Scheduler      SchedulerConfig `yaml:"scheduler" koanf:"scheduler"`
	Server         ServerConfig    `yaml:"server" koanf:"server"`
}

// AzureConfig holds Azure OpenAI deployment settings.
type AzureConfig struct {
	Endpoint             string `yaml:"endpoint" koanf:"endpoint"`
	APIVersion           string `yaml:"api_version" koanf:"api_version"`
	ChatDeployment       string `yaml:"chat_deployment" koanf:"chat_deployment"`
	EmbeddingsDeployment string `yaml:"embeddings_deployment" koanf:"embeddings_deployment"`
}

// AIConfig bounds what is sent to the AI provider and how calls are retried.
type AIConfig struct {
	TextLimit         int `yaml:"text_limit" koanf:"text_limit"`
	ContextLimit      int `yaml:"context_limit" koanf:"context_limit"`
	RequestTimeout    int `yaml:"request_timeout" koanf:"request_timeout"` // seconds
	MaxRetries        int `yaml:"max_retries" koanf:"max_retries"`
	RequestsPerMinute int `yaml:"requests_per_minute" koanf:"requests_per_minute"`
}

// OCRConfig locates the external OCR tools.
type OCRConfig struct {
	TesseractPath   string `yaml:"tesseract_path" koanf:"tesseract_path"`
	PopplerPath     string `yaml:"poppler_path" koanf:"poppler_path"`
	Languages       string `yaml:"languages" koanf:"languages"`
	DPI             int    `yaml:"dpi" koanf:"dpi"`
	MinTextChars    int    `yaml:"min_text_chars" koanf:"min_text_chars"`
	PageConcurrency int    `yaml:"page_concurrency" koanf:"page_concurrency"`
	Timeout         int    `yaml:"timeout" koanf:"timeout"` // seconds per tool invocation
}

// VectorConfig selects and addresses the vector store.
type VectorConfig struct {
	Backend    VectorBackend `yaml:"backend" koanf:"backend"`
	Host       string        `yaml:"host" koanf:"host"`
	Port       int           `yaml:"port" koanf:"port"`
	Collection string        `yaml:"collection" koanf:"collection"`
	PersistDir string        `yaml:"persist_dir" koanf:"persist_dir"`
}

// StorageConfig describes where uploaded and staged files live.
type StorageConfig struct {
	Backend       StorageBackend `yaml:"backend" koanf:"backend"`
	StagingFolder string         `yaml:"staging_folder" koanf:"staging_folder"`
	StorageFolder string         `yaml:"storage_folder" koanf:"storage_folder"`
	S3            S3Config       `yaml:"s3" koanf:"s3"`
}

// S3Config holds settings for the S3 storage backend.
type S3Config struct {
	Bucket   string `yaml:"bucket" koanf:"bucket"`
	Region   string `yaml:"region" koanf:"region"`
	Endpoint string `yaml:"endpoint" koanf:"endpoint"`
	Prefix   string `yaml:"prefix" koanf:"prefix"`
}

// FilesConfig restricts accepted uploads.
type FilesConfig struct {
	MaxFileSize       int64    `yaml:"max_file_size" koanf:"max_file_size"`
	AllowedExtensions []string `yaml:"allowed_extensions" koanf:"allowed_extensions"`
}

// PipelineConfig sizes the background worker pool.
type PipelineConfig struct {
	Workers      int  `yaml:"workers" koanf:"workers"`
	WatchStaging bool `yaml:"watch_staging" koanf:"watch_staging"`
}

// IndexerConfig controls how document text is split before embedding.
type IndexerConfig struct {
	ChunkSize    int `yaml:"chunk_size" koanf:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" koanf:"chunk_overlap"`
}

// SearchConfig tunes semantic retrieval and its circuit breaker.
type SearchConfig struct {
	SemanticCandidates int     `yaml:"semantic_candidates" koanf:"semantic_candidates"`
	SimilarThreshold   float64 `yaml:"similar_threshold" koanf:"similar_threshold"`
	BreakerFailures    int     `yaml:"breaker_failures" koanf:"breaker_failures"`
	BreakerTimeout     int     `yaml:"breaker_timeout" koanf:"breaker_timeout"` // seconds
}

// SchedulerConfig sets the periodic maintenance intervals.
type SchedulerConfig struct {
	StagingScanInterval string `yaml:"staging_scan_interval" koanf:"staging_scan_interval"`
	VerifyInterval      string `yaml:"verify_interval" koanf:"verify_interval"`
	// LogRetention is how long processing log entries are kept; empty keeps them forever.
	LogRetention string `yaml:"log_retention" koanf:"log_retention"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int  `yaml:"port" koanf:"port"`
	AllowAllOrigins bool `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
