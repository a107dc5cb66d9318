package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ziadkadry99/docvault/internal/audit"
	"github.com/ziadkadry99/docvault/internal/indexer"
)

// IndexMaintainer is the bulk side of the embedding indexer.
type IndexMaintainer interface {
	ReindexAll(ctx context.Context, onProgress indexer.ProgressFunc) (*indexer.ReindexResult, error)
	Verify(ctx context.Context) (*indexer.VerifyReport, error)
	Repair(ctx context.Context, report *indexer.VerifyReport, enqueue func(id string)) (int, error)
	Stats(ctx context.Context) (*indexer.Stats, error)
}

// Reindex rebuilds the vector index and records the run in the processing log.
func (o *Orchestrator) Reindex(ctx context.Context, m IndexMaintainer, onProgress indexer.ProgressFunc) (*indexer.ReindexResult, error) {
	start := time.Now()
	result, err := m.ReindexAll(ctx, onProgress)
	if err != nil {
		o.record(ctx, "", audit.OpReindex, audit.StatusError, err.Error(), time.Since(start))
		return nil, err
	}
	status := audit.StatusSuccess
	if result.Failed > 0 {
		status = audit.StatusError
	}
	o.record(ctx, "", audit.OpReindex, status,
		fmt.Sprintf("completed %d, failed %d, skipped %d, purged %d", result.Completed, result.Failed, result.Skipped, result.Purged),
		time.Since(start))
	return result, nil
}

// VerifyResult is a verification report plus, when repairing, how many
// documents were re-queued.
type VerifyResult struct {
	*indexer.VerifyReport
	Repaired bool `json:"repaired"`
	Requeued int  `json:"requeued"`
}

// VerifyIndex compares the vector store with vector_status. With repair,
// mismatched documents are reset and scheduled through this orchestrator.
func (o *Orchestrator) VerifyIndex(ctx context.Context, m IndexMaintainer, repair bool) (*VerifyResult, error) {
	start := time.Now()
	report, err := m.Verify(ctx)
	if err != nil {
		o.record(ctx, "", audit.OpVerify, audit.StatusError, err.Error(), time.Since(start))
		return nil, err
	}
	result := &VerifyResult{VerifyReport: report}
	if repair && !report.OK() {
		n, err := m.Repair(ctx, report, o.Enqueue)
		if err != nil {
			o.record(ctx, "", audit.OpVerify, audit.StatusError, err.Error(), time.Since(start))
			return nil, err
		}
		result.Repaired = true
		result.Requeued = n
	}

	status := audit.StatusSuccess
	if !report.OK() {
		status = audit.StatusInfo
	}
	o.record(ctx, "", audit.OpVerify, status,
		fmt.Sprintf("checked %d, missing %d, stale %d, orphans %d, requeued %d",
			report.Checked, len(report.Missing), len(report.Stale), len(report.Orphans), result.Requeued),
		time.Since(start))
	return result, nil
}
