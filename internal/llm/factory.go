package llm

import (
	"fmt"
	"log/slog"
	"os"
	"time"
)

// Options selects and configures a provider.
type Options struct {
	Type  string // "openai" or "azure"
	Model string

	AzureEndpoint   string
	AzureAPIVersion string
	AzureDeployment string

	MaxRetries        int
	Timeout           time.Duration
	RequestsPerMinute int

	// Breaker, when set, guards the provider after retries are exhausted.
	Breaker *Breaker
	Logger  *slog.Logger
}

// NewProvider creates a provider for opts.Type, reading the API key from
// the environment, and wraps it with rate limiting, retries and the
// optional breaker.
func NewProvider(opts Options) (Provider, error) {
	var base Provider
	switch opts.Type {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		base = NewOpenAIProvider(apiKey, opts.Model)

	case "azure":
		apiKey := os.Getenv("AZURE_OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("AZURE_OPENAI_API_KEY environment variable is not set")
		}
		if opts.AzureEndpoint == "" || opts.AzureDeployment == "" {
			return nil, fmt.Errorf("azure provider requires an endpoint and a chat deployment")
		}
		base = NewAzureProvider(apiKey, opts.AzureEndpoint, opts.AzureAPIVersion, opts.AzureDeployment)

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", opts.Type)
	}

	return Wrap(base, opts), nil
}

// Wrap applies the resilience layers from opts to p. The breaker is the
// outermost layer so one logical call counts as one breaker request.
func Wrap(p Provider, opts Options) Provider {
	p = NewRateLimitedProvider(p, opts.RequestsPerMinute)
	p = NewRetryProvider(p, opts.MaxRetries, opts.Timeout)
	if opts.Breaker != nil {
		p = NewBreakerProvider(p, opts.Breaker)
	}
	return p
}
