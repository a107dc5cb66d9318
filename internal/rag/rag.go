// Package rag answers questions over the document collection by handing the
// text of selected documents to the AI provider and asking for a cited
// answer.
package rag

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/llm"
	"github.com/ziadkadry99/docvault/internal/markdown"
	"github.com/ziadkadry99/docvault/internal/search"
)

const (
	DefaultMaxDocuments = 5
	MaxDocumentsLimit   = 20

	defaultContextLimit = 10000
	answerMaxTokens     = 2000
)

// Mode says how the context documents were chosen.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModeAutomatic Mode = "automatic"
)

// Searcher selects candidate documents for automatic mode.
type Searcher interface {
	Semantic(ctx context.Context, query string, filters search.Filters, limit int) ([]search.Hit, error)
}

// Request is a question. With DocumentIDs set exactly those documents are
// used and MaxDocuments is ignored.
type Request struct {
	Question     string         `json:"question"`
	DocumentIDs  []string       `json:"document_ids,omitempty"`
	MaxDocuments int            `json:"max_documents,omitempty"`
	Filters      search.Filters `json:"filters"`
}

// Source is a document that was part of the context.
type Source struct {
	Citation string  `json:"citation"`
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score,omitempty"`
}

// Response is a grounded answer. NoDocuments is set when nothing could be
// put in front of the model, in which case Answer is a fixed notice.
type Response struct {
	Answer      string            `json:"answer"`
	AnswerHTML  string            `json:"answer_html"`
	Sources     []Source          `json:"sources"`
	Citations   map[string]string `json:"citations"`
	Cited       []string          `json:"cited"`
	Mode        Mode              `json:"mode"`
	NoDocuments bool              `json:"no_documents"`
}

// Config tunes the Answerer.
type Config struct {
	Model string
	// ContextLimit is the character budget shared by all context documents.
	ContextLimit int
	// LogsFolder receives rag_prompts.log; empty disables prompt logging.
	LogsFolder string
}

// Answerer runs RAG queries.
type Answerer struct {
	docs     *documents.Store
	searcher Searcher
	provider llm.Provider
	cfg      Config
	prompts  *PromptLog
	md       *markdown.Renderer
	logger   *slog.Logger
}

// New creates an Answerer.
func New(docs *documents.Store, searcher Searcher, provider llm.Provider, cfg Config, logger *slog.Logger) *Answerer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = defaultContextLimit
	}
	a := &Answerer{
		docs:     docs,
		searcher: searcher,
		provider: provider,
		cfg:      cfg,
		md:       markdown.New(),
		logger:   logger,
	}
	if cfg.LogsFolder != "" {
		a.prompts = NewPromptLog(cfg.LogsFolder)
	}
	return a
}

// Answer answers req.Question from the selected documents.
func (a *Answerer) Answer(ctx context.Context, req Request) (*Response, error) {
	const op = "rag.answer"
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, apperr.New(apperr.ValidationFailure, op, "question is required")
	}
	if req.MaxDocuments < 0 {
		return nil, apperr.New(apperr.ValidationFailure, op, "max_documents must not be negative")
	}

	resp := &Response{Sources: []Source{}, Citations: map[string]string{}}
	var (
		candidates []documents.Document
		scores     = map[string]float64{}
	)
	if ids := uniqueIDs(req.DocumentIDs); len(ids) > 0 {
		resp.Mode = ModeManual
		docs, err := a.docs.GetMany(ctx, ids)
		if err != nil {
			return nil, err
		}
		if missing := missingIDs(ids, docs); len(missing) > 0 {
			return nil, apperr.New(apperr.NotFound, op, "documents not found: %s", strings.Join(missing, ", "))
		}
		candidates = docs
	} else {
		resp.Mode = ModeAutomatic
		limit := req.MaxDocuments
		if limit == 0 {
			limit = DefaultMaxDocuments
		}
		if limit > MaxDocumentsLimit {
			limit = MaxDocumentsLimit
		}
		hits, err := a.searcher.Semantic(ctx, question, req.Filters, limit)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			candidates = append(candidates, h.Document)
			scores[h.ID] = h.Score
		}
	}

	docs := buildContext(candidates, a.cfg.ContextLimit)
	if len(docs) == 0 {
		resp.NoDocuments = true
		resp.Answer = "No relevant documents with text were found for this question."
		resp.AnswerHTML, _ = a.md.Render(resp.Answer)
		return resp, nil
	}

	prompt := buildPrompt(question, docs)
	a.logPrompt(question, prompt, docs)

	start := time.Now()
	out, err := a.provider.Complete(ctx, llm.CompletionRequest{
		Model: a.cfg.Model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		MaxTokens:   answerMaxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.ProviderUnavailable {
			return nil, err
		}
		return nil, apperr.Wrap(apperr.InferenceFailure, op, err)
	}
	answer := strings.TrimSpace(out.Content)
	if answer == "" {
		return nil, apperr.New(apperr.InferenceFailure, op, "provider returned an empty answer")
	}
	a.logger.Info("rag answer generated", "mode", resp.Mode, "documents", len(docs),
		"prompt_chars", len(prompt), "elapsed", time.Since(start))

	resp.Answer = answer
	if html, err := a.md.Render(answer); err == nil {
		resp.AnswerHTML = html
	} else {
		a.logger.Warn("could not render answer", "error", err)
	}
	for _, d := range docs {
		resp.Citations[d.Ref] = d.Document.ID
		resp.Sources = append(resp.Sources, Source{
			Citation: d.Ref,
			ID:       d.Document.ID,
			Title:    d.Document.Title,
			Filename: d.Document.Filename,
			Score:    scores[d.Document.ID],
		})
	}
	resp.Cited = CitedRefs(answer, resp.Citations)
	return resp, nil
}

// CitedRefs returns the Doc{n} references that occur in answer, sorted.
func CitedRefs(answer string, citations map[string]string) []string {
	var refs []string
	for ref := range citations {
		if strings.Contains(answer, "["+ref+"]") || strings.Contains(answer, "["+ref+":") {
			refs = append(refs, ref)
		}
	}
	sort.Strings(refs)
	return refs
}

func (a *Answerer) logPrompt(question, prompt string, docs []contextDoc) {
	if a.prompts == nil {
		return
	}
	entry := PromptEntry{
		Timestamp: time.Now().UTC(),
		Question:  question,
		Prompt:    prompt,
		Length:    len(prompt),
	}
	for _, d := range docs {
		entry.DocumentIDs = append(entry.DocumentIDs, d.Document.ID)
		entry.Titles = append(entry.Titles, displayTitle(&d.Document))
	}
	if err := a.prompts.Append(entry); err != nil {
		a.logger.Warn("could not log rag prompt", "error", err)
	}
}

func uniqueIDs(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func missingIDs(want []string, got []documents.Document) []string {
	found := make(map[string]bool, len(got))
	for _, d := range got {
		found[d.ID] = true
	}
	var missing []string
	for _, id := range want {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
