package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// DefaultConfigPath is where the wizard writes its result.
const DefaultConfigPath = ".docvault.yml"

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to .docvault.yml.
func RunWizard() (*Config, error) {
	fmt.Println("Welcome to docvault! Let's configure your document archive.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. AI provider.
	providerPrompt := promptui.Select{
		Label: "Select AI provider",
		Items: []string{"openai", "azure"},
	}
	_, providerStr, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	cfg.AIProvider = ProviderType(providerStr)

	if cfg.AIProvider == ProviderAzure {
		endpoint, err := (&promptui.Prompt{Label: "Azure OpenAI endpoint"}).Run()
		if err != nil {
			return nil, fmt.Errorf("azure endpoint: %w", err)
		}
		cfg.Azure.Endpoint = strings.TrimSpace(endpoint)

		chatDep, err := (&promptui.Prompt{Label: "Chat deployment name", Default: "gpt-4o-mini"}).Run()
		if err != nil {
			return nil, fmt.Errorf("chat deployment: %w", err)
		}
		cfg.Azure.ChatDeployment = strings.TrimSpace(chatDep)

		embDep, err := (&promptui.Prompt{Label: "Embeddings deployment name", Default: "text-embedding-3-small"}).Run()
		if err != nil {
			return nil, fmt.Errorf("embeddings deployment: %w", err)
		}
		cfg.Azure.EmbeddingsDeployment = strings.TrimSpace(embDep)
	}

	// 2. Vector store.
	vectorPrompt := promptui.Select{
		Label: "Select vector store",
		Items: []string{
			"chromem - embedded, persisted to disk",
			"qdrant  - external Qdrant server",
		},
	}
	vectorIdx, _, err := vectorPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("vector store selection: %w", err)
	}
	if vectorIdx == 1 {
		cfg.VectorStore.Backend = VectorQdrant
		host, err := (&promptui.Prompt{Label: "Qdrant host", Default: cfg.VectorStore.Host}).Run()
		if err != nil {
			return nil, fmt.Errorf("qdrant host: %w", err)
		}
		cfg.VectorStore.Host = host
		portStr, err := (&promptui.Prompt{
			Label:    "Qdrant port",
			Default:  strconv.Itoa(cfg.VectorStore.Port),
			Validate: validatePort,
		}).Run()
		if err != nil {
			return nil, fmt.Errorf("qdrant port: %w", err)
		}
		cfg.VectorStore.Port, _ = strconv.Atoi(portStr)
	}

	// 3. Folders.
	stagingPrompt := promptui.Prompt{
		Label:   "Staging folder (files dropped here are imported)",
		Default: cfg.Storage.StagingFolder,
	}
	if cfg.Storage.StagingFolder, err = stagingPrompt.Run(); err != nil {
		return nil, fmt.Errorf("staging folder: %w", err)
	}
	storagePrompt := promptui.Prompt{
		Label:   "Storage folder (archived originals)",
		Default: cfg.Storage.StorageFolder,
	}
	if cfg.Storage.StorageFolder, err = storagePrompt.Run(); err != nil {
		return nil, fmt.Errorf("storage folder: %w", err)
	}

	// 4. OCR languages.
	langPrompt := promptui.Prompt{
		Label:   "Tesseract languages",
		Default: cfg.OCR.Languages,
	}
	if cfg.OCR.Languages, err = langPrompt.Run(); err != nil {
		return nil, fmt.Errorf("ocr languages: %w", err)
	}

	if envVar := APIKeyEnvVar(cfg.AIProvider); envVar != "" && os.Getenv(envVar) == "" {
		fmt.Printf("\nNote: Set %s in your environment or .env before running docvault server.\n", envVar)
	}

	if err := cfg.Save(DefaultConfigPath); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", DefaultConfigPath)
	return cfg, nil
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("port must be a number between 1 and 65535")
	}
	return nil
}
