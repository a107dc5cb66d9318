package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/audit"
	"github.com/ziadkadry99/docvault/internal/documents"
)

// Reprocess resets and re-runs stages of a document.
//
// With a stage, only that stage is reset to pending and run, followed by
// later stages that have never run; completed or failed later stages are
// left alone. With an empty stage, processing restarts at the earliest
// stage that is not completed and continues through the following ones;
// a fully processed document re-runs the vector stage. It returns the
// stages that were scheduled.
func (o *Orchestrator) Reprocess(ctx context.Context, id string, stage documents.Stage) ([]documents.Stage, error) {
	const op = "pipeline.reprocess"
	doc, err := o.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var stages []documents.Stage
	if stage == "" {
		stages = plan(doc)
	} else {
		if !stage.Valid() {
			return nil, apperr.New(apperr.ValidationFailure, op, "unknown stage %q", stage)
		}
		if stage != documents.StageOCR && doc.OCRStatus != documents.StatusCompleted {
			return nil, apperr.New(apperr.ValidationFailure, op, "%s requires completed text extraction", stage)
		}
		stages = withPendingFollowers(doc, stage)
	}

	if err := o.docs.ResetStages(ctx, id, stages...); err != nil {
		return nil, err
	}
	names := make([]string, len(stages))
	for i, st := range stages {
		names[i] = string(st)
		o.publish(id, st, documents.StatusPending, "reprocess requested")
	}
	o.record(ctx, id, audit.OpReprocess, audit.StatusInfo, "scheduled "+strings.Join(names, ", "), 0)
	o.submit(job{id: id, stages: stages})
	return stages, nil
}

// Recover repairs state left behind by an unclean shutdown. Stages stuck in
// processing are marked failed; documents with pending stages and no failed
// stage are scheduled again. It returns how many documents were failed and
// how many were re-queued.
func (o *Orchestrator) Recover(ctx context.Context) (int, int, error) {
	interrupted, err := o.docs.RecoverInterrupted(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("recovering interrupted stages: %w", err)
	}
	for _, id := range interrupted {
		o.record(ctx, id, audit.OpRecovery, audit.StatusError, "processing was interrupted; stage marked failed", 0)
	}

	pending, err := o.docs.PendingIDs(ctx)
	if err != nil {
		return len(interrupted), 0, err
	}
	var requeue []string
	for _, id := range pending {
		doc, err := o.docs.Get(ctx, id)
		if err != nil {
			continue
		}
		if doc.HasFailedStage() {
			continue
		}
		requeue = append(requeue, id)
	}
	for _, id := range requeue {
		o.record(ctx, id, audit.OpRecovery, audit.StatusInfo, "re-queued pending stages", 0)
		o.Enqueue(id)
	}

	if len(interrupted) > 0 || len(requeue) > 0 {
		o.logger.Info("startup recovery", "interrupted", len(interrupted), "requeued", len(requeue))
	}
	return len(interrupted), len(requeue), nil
}

// Delete removes a document everywhere: its vectors, its stored file and its
// row, which cascades to tags, relations and processing logs. A running job
// for the document finishes its current stage first.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	unlock := o.lockDocument(id)
	defer unlock()

	start := time.Now()
	doc, err := o.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := o.indexer.Remove(ctx, id); err != nil {
		return err
	}
	if err := o.files.Delete(ctx, doc.FilePath); err != nil {
		o.logger.Warn("deleting stored file", "document_id", id, "key", doc.FilePath, "error", err)
	}
	if _, err := o.docs.Delete(ctx, id); err != nil {
		return err
	}
	o.record(ctx, "", audit.OpDelete, audit.StatusSuccess,
		fmt.Sprintf("deleted document %s (%s)", id, doc.Filename), time.Since(start))
	o.logger.Info("document deleted", "document_id", id)
	return nil
}
