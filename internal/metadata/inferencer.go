package metadata

import (
	"context"
	"log/slog"
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/llm"
)

// Vocab holds the names already known to the store.
type Vocab struct {
	DocTypes       []string
	Correspondents []string
	Tags           []string
}

// VocabSource supplies the known names for the prompt.
type VocabSource interface {
	Vocabulary(ctx context.Context) (Vocab, error)
}

// Inferencer turns extracted text into Metadata via an llm.Provider.
type Inferencer struct {
	provider  llm.Provider
	model     string
	textLimit int
	vocab     VocabSource
	logger    *slog.Logger
}

// NewInferencer creates an Inferencer. vocab may be nil.
func NewInferencer(provider llm.Provider, model string, textLimit int, vocab VocabSource, logger *slog.Logger) *Inferencer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inferencer{
		provider:  provider,
		model:     model,
		textLimit: textLimit,
		vocab:     vocab,
		logger:    logger,
	}
}

// Infer prompts the provider. A provider error is returned as
// apperr.InferenceFailure (or the ProviderUnavailable it already carries);
// unparsable output is not an error but a ParseFailure outcome.
func (i *Inferencer) Infer(ctx context.Context, text, filename string) (Outcome, error) {
	var v Vocab
	if i.vocab != nil {
		var err error
		v, err = i.vocab.Vocabulary(ctx)
		if err != nil {
			i.logger.Warn("could not load vocabulary", "error", err)
		}
	}

	start := time.Now()
	resp, err := i.provider.Complete(ctx, llm.CompletionRequest{
		Model: i.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: buildPrompt(truncateRunes(text, i.textLimit), filename, v)},
		},
		MaxTokens:   1000,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		if apperr.KindOf(err) == "" {
			err = apperr.Wrap(apperr.InferenceFailure, "metadata.infer", err)
		}
		return Outcome{filename: filename}, err
	}

	out := Parse(resp.Content, filename)
	if _, failed := out.ParseFailure(); failed {
		i.logger.Warn("could not parse metadata response", "filename", filename, "raw_len", len(resp.Content))
	}
	i.logger.Debug("metadata inferred",
		"filename", filename,
		"duration", time.Since(start),
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"cost_usd", llm.EstimateCost(resp.Model, resp.InputTokens, resp.OutputTokens),
	)
	return out, nil
}
