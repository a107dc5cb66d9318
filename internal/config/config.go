package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment overrides. Nested keys are
// separated by a double underscore: DOCVAULT_OCR__LANGUAGES -> ocr.languages.
const EnvPrefix = "DOCVAULT_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (DOCVAULT_*). A .env file next to the
// config file, or in the working directory, is loaded into the process
// environment first without overriding variables that are already set.
func Load(path string) (*Config, error) {
	loadDotEnv(path)

	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return cfg, nil
}

func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func loadDotEnv(configPath string) {
	candidates := []string{".env"}
	if dir := filepath.Dir(configPath); dir != "." && dir != "" {
		candidates = append([]string{filepath.Join(dir, ".env")}, candidates...)
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
			return
		}
	}
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

var validProviders = map[ProviderType]bool{
	ProviderOpenAI: true,
	ProviderAzure:  true,
}

var validVectorBackends = map[VectorBackend]bool{
	VectorChromem: true,
	VectorQdrant:  true,
}

var validStorageBackends = map[StorageBackend]bool{
	StorageLocal: true,
	StorageS3:    true,
}

// Validate checks that the configuration contains valid values.
func (c *Config) Validate() error {
	if !validProviders[c.AIProvider] {
		return fmt.Errorf("invalid ai_provider %q: must be one of openai, azure", c.AIProvider)
	}
	if c.AIProvider == ProviderAzure {
		if c.Azure.Endpoint == "" {
			return fmt.Errorf("azure.endpoint is required when ai_provider is azure")
		}
		if c.Azure.ChatDeployment == "" || c.Azure.EmbeddingsDeployment == "" {
			return fmt.Errorf("azure.chat_deployment and azure.embeddings_deployment are required when ai_provider is azure")
		}
	}
	if c.ChatModel == "" || c.AnalysisModel == "" {
		return fmt.Errorf("chat_model and analysis_model are required")
	}
	if c.EmbeddingModel == "" {
		return fmt.Errorf("embedding_model is required")
	}

	if c.AI.TextLimit <= 0 || c.AI.ContextLimit <= 0 {
		return fmt.Errorf("ai.text_limit and ai.context_limit must be positive")
	}
	if c.AI.MaxRetries < 0 {
		return fmt.Errorf("ai.max_retries must be non-negative")
	}

	if !validVectorBackends[c.VectorStore.Backend] {
		return fmt.Errorf("invalid vector_store.backend %q: must be one of chromem, qdrant", c.VectorStore.Backend)
	}
	if c.VectorStore.Collection == "" {
		return fmt.Errorf("vector_store.collection is required")
	}

	if !validStorageBackends[c.Storage.Backend] {
		return fmt.Errorf("invalid storage.backend %q: must be one of local, s3", c.Storage.Backend)
	}
	if c.Storage.Backend == StorageS3 && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("storage.s3.bucket is required when storage.backend is s3")
	}
	if c.Storage.StorageFolder == "" || c.Storage.StagingFolder == "" {
		return fmt.Errorf("storage.storage_folder and storage.staging_folder are required")
	}

	if c.Files.MaxFileSize <= 0 {
		return fmt.Errorf("files.max_file_size must be positive")
	}
	if len(c.Files.AllowedExtensions) == 0 {
		return fmt.Errorf("files.allowed_extensions must not be empty")
	}

	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Indexer.ChunkSize <= 0 {
		return fmt.Errorf("indexer.chunk_size must be positive")
	}
	if c.Indexer.ChunkOverlap < 0 || c.Indexer.ChunkOverlap >= c.Indexer.ChunkSize {
		return fmt.Errorf("indexer.chunk_overlap must be in [0, chunk_size)")
	}

	if c.Search.SimilarThreshold < 0 || c.Search.SimilarThreshold > 1 {
		return fmt.Errorf("search.similar_threshold must be between 0 and 1")
	}

	for name, v := range map[string]string{
		"scheduler.staging_scan_interval": c.Scheduler.StagingScanInterval,
		"scheduler.verify_interval":       c.Scheduler.VerifyInterval,
		"scheduler.log_retention":         c.Scheduler.LogRetention,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q: must be text or json", c.LogFormat)
	}

	return nil
}

// RequestTimeout returns the per-call AI timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.AI.RequestTimeout) * time.Second
}

// OCRTimeout returns the timeout for a single external OCR tool run.
func (c *Config) OCRTimeout() time.Duration {
	return time.Duration(c.OCR.Timeout) * time.Second
}

// BreakerTimeout returns how long the search circuit breaker stays open.
func (c *Config) BreakerTimeout() time.Duration {
	return time.Duration(c.Search.BreakerTimeout) * time.Second
}

// APIKeyEnvVar returns the conventional environment variable name for
// the API key of the given provider.
func APIKeyEnvVar(provider ProviderType) string {
	switch provider {
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderAzure:
		return "AZURE_OPENAI_API_KEY"
	default:
		return ""
	}
}
