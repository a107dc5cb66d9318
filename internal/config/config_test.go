package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AIProvider != ProviderOpenAI {
		t.Errorf("expected default provider %q, got %q", ProviderOpenAI, cfg.AIProvider)
	}
	if cfg.AI.TextLimit != 16000 {
		t.Errorf("expected default text_limit 16000, got %d", cfg.AI.TextLimit)
	}
	if cfg.AI.ContextLimit != 10000 {
		t.Errorf("expected default context_limit 10000, got %d", cfg.AI.ContextLimit)
	}
	if cfg.VectorStore.Collection != "documents" {
		t.Errorf("expected default collection %q, got %q", "documents", cfg.VectorStore.Collection)
	}
	if cfg.Pipeline.Workers != 3 {
		t.Errorf("expected default workers 3, got %d", cfg.Pipeline.Workers)
	}
	if cfg.Search.SimilarThreshold != 0.3 {
		t.Errorf("expected default similar_threshold 0.3, got %f", cfg.Search.SimilarThreshold)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.docvault.yml")

	original := DefaultConfig()
	original.AIProvider = ProviderAzure
	original.Azure.Endpoint = "https://example.openai.azure.com"
	original.Azure.ChatDeployment = "chat"
	original.Azure.EmbeddingsDeployment = "embed"
	original.OCR.Languages = "eng"
	original.VectorStore.Backend = VectorQdrant
	original.VectorStore.Port = 6333
	original.Search.SimilarThreshold = 0.45

	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.AIProvider != original.AIProvider {
		t.Errorf("ai_provider: got %q, want %q", loaded.AIProvider, original.AIProvider)
	}
	if loaded.Azure.Endpoint != original.Azure.Endpoint {
		t.Errorf("azure.endpoint: got %q, want %q", loaded.Azure.Endpoint, original.Azure.Endpoint)
	}
	if loaded.OCR.Languages != "eng" {
		t.Errorf("ocr.languages: got %q, want %q", loaded.OCR.Languages, "eng")
	}
	if loaded.VectorStore.Backend != VectorQdrant {
		t.Errorf("vector_store.backend: got %q, want %q", loaded.VectorStore.Backend, VectorQdrant)
	}
	if loaded.VectorStore.Port != 6333 {
		t.Errorf("vector_store.port: got %d, want 6333", loaded.VectorStore.Port)
	}
	if loaded.Search.SimilarThreshold != 0.45 {
		t.Errorf("search.similar_threshold: got %f, want 0.45", loaded.Search.SimilarThreshold)
	}
	if err := loaded.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nonexistent.yml")

	// Loading a missing file should return defaults, not an error.
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load should not fail for missing file: %v", err)
	}
	if cfg.AIProvider != ProviderOpenAI {
		t.Errorf("expected default provider, got %q", cfg.AIProvider)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")

	cfg := DefaultConfig()
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	t.Setenv("DOCVAULT_AI_PROVIDER", "azure")
	t.Setenv("DOCVAULT_OCR__LANGUAGES", "fra")
	t.Setenv("DOCVAULT_SERVER__PORT", "9090")

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.AIProvider != ProviderAzure {
		t.Errorf("env override failed: got %q, want %q", loaded.AIProvider, ProviderAzure)
	}
	if loaded.OCR.Languages != "fra" {
		t.Errorf("nested env override failed: got %q, want %q", loaded.OCR.Languages, "fra")
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("numeric env override failed: got %d, want 9090", loaded.Server.Port)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yml")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DOCVAULT_LOG_LEVEL=debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("DOCVAULT_LOG_LEVEL") })

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("log_level from .env: got %q, want %q", loaded.LogLevel, "debug")
	}
}

func TestValidateValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig should be valid, got: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"invalid provider", func(c *Config) { c.AIProvider = "anthropic" }},
		{"azure without endpoint", func(c *Config) { c.AIProvider = ProviderAzure }},
		{"empty embedding model", func(c *Config) { c.EmbeddingModel = "" }},
		{"invalid vector backend", func(c *Config) { c.VectorStore.Backend = "pinecone" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = StorageS3 }},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }},
		{"overlap exceeds chunk", func(c *Config) { c.Indexer.ChunkOverlap = c.Indexer.ChunkSize }},
		{"threshold above one", func(c *Config) { c.Search.SimilarThreshold = 1.5 }},
		{"bad interval", func(c *Config) { c.Scheduler.VerifyInterval = "soon" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"no extensions", func(c *Config) { c.Files.AllowedExtensions = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAPIKeyEnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderAzure, "AZURE_OPENAI_API_KEY"},
		{"other", ""},
	}
	for _, tt := range tests {
		got := APIKeyEnvVar(tt.provider)
		if got != tt.want {
			t.Errorf("APIKeyEnvVar(%q) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestValidatePort(t *testing.T) {
	if err := validatePort("6333"); err != nil {
		t.Errorf("6333 should be valid: %v", err)
	}
	for _, bad := range []string{"", "abc", "0", "70000"} {
		if err := validatePort(bad); err == nil {
			t.Errorf("validatePort(%q) should fail", bad)
		}
	}
}
