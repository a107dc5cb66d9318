package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ziadkadry99/docvault/internal/apperr"
)

const maxBackoff = 8 * time.Second

// RetryProvider bounds every attempt with a timeout and retries transient
// failures (rate limits, 5xx, timeouts) with exponential backoff.
type RetryProvider struct {
	provider   Provider
	maxRetries int
	timeout    time.Duration
	baseDelay  time.Duration
}

// NewRetryProvider wraps provider. maxRetries is the number of additional
// attempts after the first; timeout applies to each attempt.
func NewRetryProvider(provider Provider, maxRetries int, timeout time.Duration) *RetryProvider {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &RetryProvider{
		provider:   provider,
		maxRetries: maxRetries,
		timeout:    timeout,
		baseDelay:  time.Second,
	}
}

func (p *RetryProvider) Name() string {
	return p.provider.Name()
}

func (p *RetryProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	backoff := p.baseDelay
	var lastErr error

	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		resp, err := p.attempt(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsTransient(err) {
			return nil, err
		}
		if attempt == p.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	return nil, apperr.Wrap(apperr.ProviderUnavailable, p.provider.Name(),
		fmt.Errorf("giving up after %d attempts: %w", p.maxRetries+1, lastErr))
}

func (p *RetryProvider) attempt(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if p.timeout <= 0 {
		return p.provider.Complete(ctx, req)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.provider.Complete(ctx, req)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset")
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500
}
