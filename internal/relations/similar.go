package relations

import (
	"context"
	"fmt"
	"sort"

	"github.com/ziadkadry99/docvault/internal/apperr"
)

const (
	DefaultSimilarLimit     = 10
	DefaultSimilarThreshold = 0.3
	maxSimilarLimit         = 50
)

// Similar is a document whose content resembles another's.
type Similar struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Filename string  `json:"filename"`
	Score    float64 `json:"score"`
}

// FindSimilar ranks other documents by the best similarity between any of
// their chunks and any chunk of id, using the embeddings already stored for
// id. Documents scoring below threshold are dropped. A document that has not
// been indexed has no similar documents.
func (g *Graph) FindSimilar(ctx context.Context, id string, limit int, threshold float64) ([]Similar, error) {
	const op = "relations.similar"
	if limit <= 0 {
		limit = DefaultSimilarLimit
	}
	if limit > maxSimilarLimit {
		limit = maxSimilarLimit
	}
	if threshold < 0 || threshold > 1 {
		return nil, apperr.New(apperr.ValidationFailure, op, "threshold must be between 0 and 1")
	}
	ok, err := g.docs.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.New(apperr.NotFound, op, "document %s not found", id)
	}
	if g.vectors == nil {
		return nil, apperr.New(apperr.ProviderUnavailable, op, "no vector store configured")
	}

	chunks, err := g.vectors.DocumentChunks(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading chunks of %s: %w", id, err)
	}

	// Each chunk's own document can take up to len(chunks) of the neighbours.
	perChunk := limit + len(chunks)
	best := make(map[string]float64)
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		matches, err := g.vectors.QueryEmbedding(ctx, c.Embedding, perChunk)
		if err != nil {
			return nil, fmt.Errorf("querying neighbours: %w", err)
		}
		for _, m := range matches {
			docID := m.Chunk.DocumentID
			score := float64(m.Similarity)
			if docID == id || score < threshold {
				continue
			}
			if s, ok := best[docID]; !ok || score > s {
				best[docID] = score
			}
		}
	}
	if len(best) == 0 {
		return []Similar{}, nil
	}

	ids := make([]string, 0, len(best))
	for docID := range best {
		ids = append(ids, docID)
	}
	docs, err := g.docs.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]Similar, 0, len(docs))
	for _, d := range docs {
		out = append(out, Similar{ID: d.ID, Title: d.Title, Filename: d.Filename, Score: best[d.ID]})
	}
	if len(out) < len(best) {
		g.logger.Debug("similar documents missing from the store", "document", id, "stale", len(best)-len(out))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
