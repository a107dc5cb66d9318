// Package search answers document queries lexically or by meaning, with a
// lexical fallback when the semantic path is unavailable.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/llm"
	"github.com/ziadkadry99/docvault/internal/vectordb"
)

const (
	defaultLimit      = 20
	maxLimit          = 100
	defaultCandidates = 100
	suggestionLimit   = 5
)

// Mode reports how a result was produced.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
)

// Request is a search query.
type Request struct {
	Query       string  `json:"query"`
	Filters     Filters `json:"filters"`
	UseSemantic bool    `json:"use_semantic"`
	Limit       int     `json:"limit"`
	Offset      int     `json:"offset"`
}

// Hit is a matching document with its relevance score. Full text is omitted.
type Hit struct {
	documents.Document
	Score float64 `json:"score"`
}

// Result is one page of ranked hits. TotalCount counts every match before
// pagination.
type Result struct {
	Documents      []Hit  `json:"documents"`
	TotalCount     int    `json:"total_count"`
	Mode           Mode   `json:"mode"`
	Fallback       bool   `json:"fallback"`
	FallbackReason string `json:"fallback_reason,omitempty"`
}

// Config tunes the engine.
type Config struct {
	// SemanticCandidates is how many chunks are fetched from the vector store.
	SemanticCandidates int
}

// Engine runs searches against the document store and vector index.
type Engine struct {
	docs       *documents.Store
	vectors    vectordb.Store
	breaker    *llm.Breaker
	candidates int
	logger     *slog.Logger
	now        func() time.Time
}

// New creates an Engine. vectors and breaker may be nil; without a vector
// store every semantic request falls back to lexical search.
func New(docs *documents.Store, vectors vectordb.Store, breaker *llm.Breaker, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SemanticCandidates <= 0 {
		cfg.SemanticCandidates = defaultCandidates
	}
	return &Engine{
		docs:       docs,
		vectors:    vectors,
		breaker:    breaker,
		candidates: cfg.SemanticCandidates,
		logger:     logger,
		now:        time.Now,
	}
}

// Search runs req. A semantic request that cannot be served semantically
// is answered lexically with Fallback set.
func (e *Engine) Search(ctx context.Context, req Request) (*Result, error) {
	if req.Limit < 0 || req.Offset < 0 {
		return nil, apperr.New(apperr.ValidationFailure, "search", "limit and offset must not be negative")
	}
	if req.Limit == 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	q, err := req.Filters.Query(e.now())
	if err != nil {
		return nil, err
	}

	docs, err := e.docs.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filtering documents: %w", err)
	}

	query := strings.TrimSpace(req.Query)
	res := &Result{}
	var hits []Hit
	switch {
	case query == "":
		res.Mode = ModeAll
		hits = make([]Hit, len(docs))
		for i := range docs {
			hits[i] = Hit{Document: docs[i]}
		}

	case req.UseSemantic:
		hits, err = e.semantic(ctx, query, docs, e.candidates)
		if err == nil {
			res.Mode = ModeSemantic
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.logger.Warn("semantic search failed, falling back to lexical", "error", err)
		res.Mode = ModeLexical
		res.Fallback = true
		res.FallbackReason = fallbackReason(err)
		hits = rankLexical(docs, query)

	default:
		res.Mode = ModeLexical
		hits = rankLexical(docs, query)
	}

	res.TotalCount = len(hits)
	res.Documents = page(hits, req.Offset, req.Limit)
	return res, nil
}

// Semantic returns up to limit documents matching filters ranked by
// similarity to query. It never falls back to lexical search.
func (e *Engine) Semantic(ctx context.Context, query string, filters Filters, limit int) ([]Hit, error) {
	q, err := filters.Query(e.now())
	if err != nil {
		return nil, err
	}
	docs, err := e.docs.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("filtering documents: %w", err)
	}
	candidates := e.candidates
	if limit*4 > candidates {
		candidates = limit * 4
	}
	hits, err := e.semantic(ctx, query, docs, candidates)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// semantic ranks the subset of allowed that the vector store returns for
// query, scoring each document by its best chunk.
func (e *Engine) semantic(ctx context.Context, query string, allowed []documents.Document, candidates int) ([]Hit, error) {
	if e.vectors == nil {
		return nil, apperr.New(apperr.ProviderUnavailable, "search.semantic", "no vector store configured")
	}

	var matches []vectordb.Match
	call := func() error {
		var err error
		matches, err = e.vectors.QueryText(ctx, query, candidates)
		return err
	}
	var err error
	if e.breaker != nil {
		err = e.breaker.Do(call)
	} else {
		err = call()
	}
	if err != nil {
		return nil, fmt.Errorf("querying vector store: %w", err)
	}

	best := make(map[string]float64)
	for _, m := range matches {
		if s, ok := best[m.Chunk.DocumentID]; !ok || float64(m.Similarity) > s {
			best[m.Chunk.DocumentID] = float64(m.Similarity)
		}
	}

	var hits []Hit
	for i := range allowed {
		if s, ok := best[allowed[i].ID]; ok {
			hits = append(hits, Hit{Document: allowed[i], Score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	return hits, nil
}

// Suggest returns completions for the search box.
func (e *Engine) Suggest(ctx context.Context, prefix string) (*documents.Suggestions, error) {
	return e.docs.Suggest(ctx, prefix, suggestionLimit)
}

func page(hits []Hit, offset, limit int) []Hit {
	if offset >= len(hits) {
		return []Hit{}
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	out := hits[offset:end]
	for i := range out {
		out[i].FullText = ""
		out[i].AIRawResponse = ""
	}
	return out
}

func fallbackReason(err error) string {
	if errors.Is(err, apperr.ProviderUnavailable) {
		return "semantic search unavailable: " + err.Error()
	}
	return "semantic search failed: " + err.Error()
}
