package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/audit"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/extract"
	"github.com/ziadkadry99/docvault/internal/storage"
)

// plan returns the stages a generic run of doc executes: every stage that
// is not completed, in order, or just the vector stage when all are done.
func plan(doc *documents.Document) []documents.Stage {
	var stages []documents.Stage
	for _, st := range documents.Stages {
		if doc.Status(st) != documents.StatusCompleted {
			stages = append(stages, st)
		}
	}
	if len(stages) == 0 {
		stages = []documents.Stage{documents.StageVector}
	}
	return stages
}

// withPendingFollowers returns stage and every later stage of doc that is
// still pending.
func withPendingFollowers(doc *documents.Document, stage documents.Stage) []documents.Stage {
	stages := []documents.Stage{stage}
	after := false
	for _, st := range documents.Stages {
		if after && doc.Status(st) == documents.StatusPending {
			stages = append(stages, st)
		}
		if st == stage {
			after = true
		}
	}
	return stages
}

// runJob executes the stages of j in order and stops at the first failure.
func (o *Orchestrator) runJob(ctx context.Context, j job) {
	unlock := o.lockDocument(j.id)
	defer unlock()

	stages := j.stages
	if stages == nil {
		doc, err := o.docs.Get(ctx, j.id)
		if err != nil {
			o.logger.Warn("skipping job", "document_id", j.id, "error", err)
			return
		}
		stages = plan(doc)
	}

	for _, stage := range stages {
		if ctx.Err() != nil {
			return
		}
		if err := o.runStage(ctx, j.id, stage); err != nil {
			return
		}
	}
}

// runStage moves one stage through processing to completed or failed and
// records the transition.
func (o *Orchestrator) runStage(ctx context.Context, id string, stage documents.Stage) error {
	logger := o.logger.With("document_id", id, "stage", stage)

	doc, err := o.docs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.NotFound) {
			logger.Info("document deleted before stage ran")
		}
		return err
	}
	if stage != documents.StageOCR && doc.OCRStatus != documents.StatusCompleted {
		err := apperr.New(apperr.ValidationFailure, "pipeline."+string(stage), "text extraction has not completed")
		o.fail(ctx, id, stage, err, 0)
		return err
	}

	if err := o.docs.SetStage(ctx, id, stage, documents.StatusProcessing); err != nil {
		return err
	}
	o.publish(id, stage, documents.StatusProcessing, "")
	logger.Debug("stage started")

	start := time.Now()
	var msg string
	switch stage {
	case documents.StageOCR:
		msg, err = o.runOCR(ctx, doc)
	case documents.StageAI:
		msg, err = o.runAI(ctx, doc)
	case documents.StageVector:
		msg, err = o.runVector(ctx, doc)
	}
	elapsed := time.Since(start)

	if err != nil {
		logger.Error("stage failed", "error", err, "elapsed", elapsed)
		o.fail(ctx, id, stage, err, elapsed)
		return err
	}

	logger.Info("stage completed", "elapsed", elapsed)
	o.record(ctx, id, string(stage), audit.StatusSuccess, msg, elapsed)
	o.publish(id, stage, documents.StatusCompleted, msg)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, id string, stage documents.Stage, err error, elapsed time.Duration) {
	ctx = context.WithoutCancel(ctx)
	if serr := o.docs.SetStage(ctx, id, stage, documents.StatusFailed); serr != nil {
		o.logger.Warn("marking stage failed", "document_id", id, "stage", stage, "error", serr)
	}
	o.record(ctx, id, string(stage), audit.StatusError, err.Error(), elapsed)
	o.publish(id, stage, documents.StatusFailed, err.Error())
}

func (o *Orchestrator) runOCR(ctx context.Context, doc *documents.Document) (string, error) {
	path, release, err := o.files.Fetch(ctx, doc.FilePath)
	if err != nil {
		return "", apperr.Wrap(apperr.ExtractionFailure, "pipeline.ocr", fmt.Errorf("fetching %s: %w", doc.FilePath, err))
	}
	defer release()

	mimeType := doc.MimeType
	if mimeType == "" {
		mimeType = extract.DetectMIME(path)
	}
	res := o.extractor.Extract(ctx, path, mimeType)
	if res.Status != extract.StatusCompleted {
		if res.Err == nil {
			res.Err = apperr.New(apperr.ExtractionFailure, "pipeline.ocr", "extraction failed")
		}
		return "", res.Err
	}
	if err := o.docs.SaveExtraction(ctx, doc.ID, res.Text, string(res.Method)); err != nil {
		return "", err
	}
	return fmt.Sprintf("extracted %d characters from %d page(s) via %s", len([]rune(res.Text)), res.Pages, res.Method), nil
}

func (o *Orchestrator) runAI(ctx context.Context, doc *documents.Document) (string, error) {
	outcome, err := o.inferencer.Infer(ctx, doc.FullText, doc.Filename)
	if err != nil {
		return "", err
	}
	md := outcome.Metadata()
	if err := o.docs.ApplyMetadata(ctx, doc.ID, md, outcome.Raw()); err != nil {
		return "", err
	}

	msg := fmt.Sprintf("title %q, %d tag(s)", md.Title, len(md.Tags))
	if _, failed := outcome.ParseFailure(); failed {
		msg = "response was not valid JSON; using the filename as title"
	}
	o.relocate(ctx, doc.ID)
	return msg, nil
}

// relocate files the stored original under its correspondent and date.
// Failures are logged and otherwise ignored.
func (o *Orchestrator) relocate(ctx context.Context, id string) {
	doc, err := o.docs.Get(ctx, id)
	if err != nil {
		return
	}
	target := storage.FiledKey(doc.CorrespondentName, doc.DocumentDate, doc.ID, doc.Filename, o.now())
	if target == doc.FilePath {
		return
	}

	start := time.Now()
	key, err := o.files.Move(ctx, doc.FilePath, target)
	if err == nil {
		err = o.docs.SetFilePath(ctx, id, key)
	}
	if err != nil {
		o.logger.Warn("relocating file", "document_id", id, "from", doc.FilePath, "to", target, "error", err)
		o.record(ctx, id, audit.OpRelocate, audit.StatusError, err.Error(), time.Since(start))
		return
	}
	o.record(ctx, id, audit.OpRelocate, audit.StatusSuccess, "moved to "+key, time.Since(start))
}

func (o *Orchestrator) runVector(ctx context.Context, doc *documents.Document) (string, error) {
	n, err := o.indexer.Index(ctx, doc)
	if err != nil {
		return "", err
	}
	if err := o.docs.SetStage(ctx, doc.ID, documents.StageVector, documents.StatusCompleted); err != nil {
		return "", err
	}
	return fmt.Sprintf("indexed %d chunk(s)", n), nil
}
