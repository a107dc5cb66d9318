package embeddings

import (
	"fmt"
	"os"
)

// Options selects the embedding backend.
type Options struct {
	Type  string // "openai" or "azure"
	Model string

	AzureEndpoint   string
	AzureAPIVersion string
	AzureDeployment string
}

// NewEmbedder creates an embedder for opts.Type, reading the API key from
// the environment.
func NewEmbedder(opts Options) (Embedder, error) {
	model := OpenAIModel(opts.Model)
	if model == "" {
		model = ModelTextEmbedding3Small
	}

	switch opts.Type {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIEmbedder(apiKey, model), nil

	case "azure":
		apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_API_KEY environment variable is not set")
		}
		if opts.AzureEndpoint == "" || opts.AzureDeployment == "" {
			return nil, fmt.Errorf("azure embeddings require an endpoint and an embeddings deployment")
		}
		return NewAzureEmbedder(apiKey, opts.AzureEndpoint, opts.AzureAPIVersion, opts.AzureDeployment, model), nil

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", opts.Type)
	}
}
