package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/audit"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/extract"
	"github.com/ziadkadry99/docvault/internal/storage"
)

// Ingest validates and stores an uploaded file, creates its document with
// every stage pending and schedules processing.
//
// A file whose hash is already known is a Conflict and the existing document
// is returned alongside the error, unless one of its stages failed: then the
// old document is removed and the upload proceeds.
func (o *Orchestrator) Ingest(ctx context.Context, filename string, r io.Reader) (*documents.Document, error) {
	const op = "pipeline.ingest"
	start := time.Now()

	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, apperr.New(apperr.ValidationFailure, op, "filename is required")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if len(o.allowed) > 0 && !o.allowed[ext] {
		return nil, apperr.New(apperr.ValidationFailure, op, "file type %q is not allowed", ext)
	}

	tmp, err := os.CreateTemp("", "docvault-upload-*"+filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	hasher := sha256.New()
	src := r
	if o.cfg.MaxFileSize > 0 {
		src = io.LimitReader(r, o.cfg.MaxFileSize+1)
	}
	size, err := io.Copy(io.MultiWriter(tmp, hasher), src)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if size == 0 {
		return nil, apperr.New(apperr.ValidationFailure, op, "file is empty")
	}
	if o.cfg.MaxFileSize > 0 && size > o.cfg.MaxFileSize {
		return nil, apperr.New(apperr.ValidationFailure, op, "file exceeds the maximum size of %d bytes", o.cfg.MaxFileSize)
	}
	hash := hex.EncodeToString(hasher.Sum(nil))

	existing, err := o.docs.GetByHash(ctx, hash)
	switch {
	case err == nil && existing.HasFailedStage():
		o.logger.Info("replacing failed duplicate", "document_id", existing.ID, "hash", hash)
		if err := o.Delete(ctx, existing.ID); err != nil {
			return nil, fmt.Errorf("removing failed duplicate %s: %w", existing.ID, err)
		}
	case err == nil:
		return existing, apperr.New(apperr.Conflict, op, "file already uploaded as document %s", existing.ID)
	case !errors.Is(err, apperr.NotFound):
		return nil, err
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding upload: %w", err)
	}
	id := uuid.New().String()
	key := storage.IntakeKey(id, filename, o.now())
	if err := o.files.Put(ctx, key, tmp); err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	doc := &documents.Document{
		ID:       id,
		Filename: filepath.Base(filename),
		FilePath: key,
		FileHash: hash,
		MimeType: extract.DetectMIME(tmp.Name()),
		FileSize: size,
	}
	if err := o.docs.Create(ctx, doc); err != nil {
		if derr := o.files.Delete(context.WithoutCancel(ctx), key); derr != nil {
			o.logger.Warn("removing orphaned upload", "key", key, "error", derr)
		}
		return nil, err
	}

	o.record(ctx, id, audit.OpUpload, audit.StatusSuccess,
		fmt.Sprintf("uploaded %s (%d bytes)", doc.Filename, size), time.Since(start))
	o.logger.Info("document uploaded", "document_id", id, "filename", doc.Filename, "size", size)
	o.Enqueue(id)
	return doc, nil
}

// IngestFile ingests a file from the local filesystem.
func (o *Orchestrator) IngestFile(ctx context.Context, path string) (*documents.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return o.Ingest(ctx, filepath.Base(path), f)
}

// Allowed reports whether filename has an accepted extension.
func (o *Orchestrator) Allowed(filename string) bool {
	if len(o.allowed) == 0 {
		return true
	}
	return o.allowed[strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))]
}
