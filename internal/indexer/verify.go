package indexer

import (
	"context"

	"github.com/ziadkadry99/docvault/internal/documents"
)

// Verify compares every document's vector_status with the vector store.
// Documents whose vector stage is currently running are not reported.
func (ix *Indexer) Verify(ctx context.Context) (*VerifyReport, error) {
	all, err := ix.docs.AllIDs(ctx)
	if err != nil {
		return nil, err
	}
	completed, err := ix.docs.IDsWithStatus(ctx, documents.StageVector, documents.StatusCompleted)
	if err != nil {
		return nil, err
	}
	inFlight, err := ix.docs.IDsWithStatus(ctx, documents.StageVector, documents.StatusProcessing)
	if err != nil {
		return nil, err
	}
	orphans, err := ix.orphans(ctx, all)
	if err != nil {
		return nil, err
	}
	vectorIDs, err := ix.store.DocumentIDs(ctx)
	if err != nil {
		return nil, err
	}

	indexed := make(map[string]bool, len(vectorIDs))
	for _, id := range vectorIDs {
		indexed[id] = true
	}
	isCompleted := make(map[string]bool, len(completed))
	for _, id := range completed {
		isCompleted[id] = true
	}
	running := make(map[string]bool, len(inFlight))
	for _, id := range inFlight {
		running[id] = true
	}

	report := &VerifyReport{Checked: len(all), Missing: []string{}, Stale: []string{}, Orphans: orphans}
	if report.Orphans == nil {
		report.Orphans = []string{}
	}
	for _, id := range all {
		switch {
		case isCompleted[id] && !indexed[id]:
			report.Missing = append(report.Missing, id)
		case !isCompleted[id] && !running[id] && indexed[id]:
			report.Stale = append(report.Stale, id)
		}
	}
	return report, nil
}

// Repair resets mismatched documents to vector_status=pending, hands each
// to enqueue for re-indexing and purges orphaned vectors. It returns how
// many documents were re-queued.
func (ix *Indexer) Repair(ctx context.Context, report *VerifyReport, enqueue func(id string)) (int, error) {
	requeued := 0
	for _, ids := range [][]string{report.Missing, report.Stale} {
		for _, id := range ids {
			if err := ix.docs.ResetStages(ctx, id, documents.StageVector); err != nil {
				return requeued, err
			}
			if enqueue != nil {
				enqueue(id)
			}
			requeued++
		}
	}
	for _, id := range report.Orphans {
		if err := ix.Remove(ctx, id); err != nil {
			return requeued, err
		}
	}
	ix.logger.Info("index repaired", "requeued", requeued, "orphans_purged", len(report.Orphans))
	return requeued, nil
}
