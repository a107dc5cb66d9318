package indexer

import (
	"context"

	"github.com/ziadkadry99/docvault/internal/documents"
)

// Documents is the part of the document store the indexer reads and updates.
type Documents interface {
	Get(ctx context.Context, id string) (*documents.Document, error)
	AllIDs(ctx context.Context) ([]string, error)
	IDsWithStatus(ctx context.Context, stage documents.Stage, statuses ...documents.StageStatus) ([]string, error)
	SetStage(ctx context.Context, id string, stage documents.Stage, status documents.StageStatus) error
	ResetStages(ctx context.Context, id string, stages ...documents.Stage) error
}

// Config sizes chunks and bounds reindex parallelism.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Concurrency  int
}

// ReindexResult summarises a ReindexAll run.
type ReindexResult struct {
	Completed int     `json:"completed"`
	Failed    int     `json:"failed"`
	Skipped   int     `json:"skipped"`
	Purged    int     `json:"purged"`
	Errors    []error `json:"-"`
}

// VerifyReport lists documents whose vector_status disagrees with the
// vector store.
type VerifyReport struct {
	Checked int `json:"checked"`
	// Missing documents are marked completed but have no vectors.
	Missing []string `json:"missing"`
	// Stale documents have vectors but are not marked completed.
	Stale []string `json:"stale"`
	// Orphans are vector document IDs with no matching document.
	Orphans []string `json:"orphans"`
}

// OK reports whether no mismatches were found.
func (r *VerifyReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Stale) == 0 && len(r.Orphans) == 0
}

// ProgressFunc is called during batch processing to report progress.
type ProgressFunc func(processed int, total int, current string)
