// Package indexer turns documents into embedded chunks in the vector store
// and keeps the store consistent with the relational vector_status.
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/vectordb"
)

const (
	defaultChunkSize   = 6000
	defaultConcurrency = 4
)

// Indexer writes document chunks to a vectordb.Store.
type Indexer struct {
	store  vectordb.Store
	docs   Documents
	cfg    Config
	logger *slog.Logger
}

// New creates an Indexer.
func New(store vectordb.Store, docs Documents, cfg Config, logger *slog.Logger) *Indexer {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = defaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{store: store, docs: docs, cfg: cfg, logger: logger}
}

// Store returns the underlying vector store.
func (ix *Indexer) Store() vectordb.Store { return ix.store }

// Index replaces the vectors of doc and returns how many chunks were stored.
func (ix *Indexer) Index(ctx context.Context, doc *documents.Document) (int, error) {
	chunks := ChunkDocument(doc, ix.cfg.ChunkSize, ix.cfg.ChunkOverlap)
	if err := ix.store.Upsert(ctx, doc.ID, chunks); err != nil {
		if k := apperr.KindOf(err); k == apperr.ProviderUnavailable {
			return 0, err
		}
		return 0, apperr.Wrap(apperr.IndexingFailure, "indexer.index", fmt.Errorf("document %s: %w", doc.ID, err))
	}
	ix.logger.Debug("document indexed", "document_id", doc.ID, "chunks", len(chunks))
	return len(chunks), nil
}

// Remove deletes every vector of documentID.
func (ix *Indexer) Remove(ctx context.Context, documentID string) error {
	if err := ix.store.DeleteDocument(ctx, documentID); err != nil {
		return apperr.Wrap(apperr.IndexingFailure, "indexer.remove", fmt.Errorf("document %s: %w", documentID, err))
	}
	return nil
}

// Stats describes the vector store content.
type Stats struct {
	Chunks    int `json:"chunks"`
	Documents int `json:"documents"`
}

// Stats counts chunks and indexed documents.
func (ix *Indexer) Stats(ctx context.Context) (*Stats, error) {
	n, err := ix.store.Count(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.IndexingFailure, "indexer.stats", err)
	}
	ids, err := ix.store.DocumentIDs(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.IndexingFailure, "indexer.stats", err)
	}
	return &Stats{Chunks: n, Documents: len(ids)}, nil
}

// ReindexAll re-embeds every document whose OCR stage is completed and purges
// vectors of documents that no longer exist. Each document succeeds or fails
// on its own; a failure never aborts the run.
func (ix *Indexer) ReindexAll(ctx context.Context, onProgress ProgressFunc) (*ReindexResult, error) {
	all, err := ix.docs.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	eligible, err := ix.docs.IDsWithStatus(ctx, documents.StageOCR, documents.StatusCompleted)
	if err != nil {
		return nil, err
	}

	result := newBatcher(ix, ix.cfg.Concurrency, onProgress).run(ctx, eligible)
	result.Skipped = len(all) - len(eligible)

	purged, err := ix.purgeOrphans(ctx, all)
	if err != nil {
		result.Errors = append(result.Errors, err)
	}
	result.Purged = purged

	ix.logger.Info("reindex finished",
		"completed", result.Completed,
		"failed", result.Failed,
		"skipped", result.Skipped,
		"purged", result.Purged,
	)
	return result, nil
}

// indexOne runs the vector stage for one document and records its status.
func (ix *Indexer) indexOne(ctx context.Context, id string) error {
	doc, err := ix.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := ix.docs.SetStage(ctx, id, documents.StageVector, documents.StatusProcessing); err != nil {
		return err
	}
	if _, err := ix.Index(ctx, doc); err != nil {
		if serr := ix.docs.SetStage(context.WithoutCancel(ctx), id, documents.StageVector, documents.StatusFailed); serr != nil {
			ix.logger.Warn("could not mark vector stage failed", "document_id", id, "error", serr)
		}
		return err
	}
	return ix.docs.SetStage(ctx, id, documents.StageVector, documents.StatusCompleted)
}

func (ix *Indexer) purgeOrphans(ctx context.Context, existing []string) (int, error) {
	orphans, err := ix.orphans(ctx, existing)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, id := range orphans {
		if err := ix.Remove(ctx, id); err != nil {
			return purged, err
		}
		purged++
	}
	return purged, nil
}

func (ix *Indexer) orphans(ctx context.Context, existing []string) ([]string, error) {
	vectorIDs, err := ix.store.DocumentIDs(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.IndexingFailure, "indexer.orphans", err)
	}
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}
	var out []string
	for _, id := range vectorIDs {
		if !known[id] {
			out = append(out, id)
		}
	}
	return out, nil
}
