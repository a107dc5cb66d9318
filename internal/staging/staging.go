// Package staging ingests files dropped into the staging folder, either on
// demand, on a schedule or as they appear.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/audit"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/walker"
)

const (
	duplicatesDir = "duplicates"
	rejectedDir   = "rejected"
)

// Ingester is the pipeline intake.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (*documents.Document, error)
}

// Config describes the staging folder.
type Config struct {
	Folder            string
	AllowedExtensions []string
	// Settle is how long a file must stay unmodified before it is picked up.
	Settle time.Duration
}

// Outcome is what happened to one staged file.
type Outcome string

const (
	Ingested  Outcome = "ingested"
	Duplicate Outcome = "duplicate"
	Rejected  Outcome = "rejected"
	Failed    Outcome = "failed"
)

// FileResult reports the handling of a single file.
type FileResult struct {
	File       string  `json:"file"`
	Outcome    Outcome `json:"outcome"`
	DocumentID string  `json:"document_id,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Result summarises a scan of the staging folder.
type Result struct {
	Ingested   int          `json:"ingested"`
	Duplicates int          `json:"duplicates"`
	Rejected   int          `json:"rejected"`
	Failed     int          `json:"failed"`
	Files      []FileResult `json:"files"`
}

// Processor moves staged files into the pipeline. Successfully ingested
// files are removed from the folder; duplicates go to duplicates/ and files
// the intake rejects go to rejected/. Other failures leave the file in place
// for the next scan.
type Processor struct {
	cfg      Config
	ingester Ingester
	logs     *audit.Store
	logger   *slog.Logger

	// scan serialises whole-folder scans with single-file handling.
	scan sync.Mutex
}

// New creates a Processor. logs may be nil.
func New(cfg Config, ingester Ingester, logs *audit.Store, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{cfg: cfg, ingester: ingester, logs: logs, logger: logger}
}

// Folder returns the staging folder path.
func (p *Processor) Folder() string { return p.cfg.Folder }

// List returns the files that a scan would pick up.
func (p *Processor) List() ([]walker.FileInfo, error) {
	if err := os.MkdirAll(p.cfg.Folder, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging folder: %w", err)
	}
	files, err := walker.Walk(walker.WalkerConfig{
		RootDir: p.cfg.Folder,
		Include: walker.ExtensionPatterns(p.cfg.AllowedExtensions),
		MinAge:  p.cfg.Settle,
	})
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []walker.FileInfo{}
	}
	return files, nil
}

// ProcessAll ingests every eligible file in the staging folder.
func (p *Processor) ProcessAll(ctx context.Context) (*Result, error) {
	p.scan.Lock()
	defer p.scan.Unlock()

	start := time.Now()
	files, err := p.List()
	if err != nil {
		return nil, err
	}

	result := &Result{Files: []FileResult{}}
	for _, f := range files {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		fr := p.processFile(ctx, f.Path)
		result.add(fr)
	}

	if len(files) > 0 {
		msg := fmt.Sprintf("ingested %d, duplicates %d, rejected %d, failed %d",
			result.Ingested, result.Duplicates, result.Rejected, result.Failed)
		p.logger.Info("staging folder processed", "ingested", result.Ingested, "duplicates", result.Duplicates,
			"rejected", result.Rejected, "failed", result.Failed)
		status := audit.StatusSuccess
		if result.Failed > 0 {
			status = audit.StatusError
		}
		p.record(ctx, status, msg, time.Since(start))
	}
	return result, nil
}

// ProcessFile ingests a single staged file.
func (p *Processor) ProcessFile(ctx context.Context, path string) FileResult {
	p.scan.Lock()
	defer p.scan.Unlock()
	return p.processFile(ctx, path)
}

func (p *Processor) processFile(ctx context.Context, path string) FileResult {
	name := filepath.Base(path)
	fr := FileResult{File: name}
	logger := p.logger.With("file", name)

	if _, err := os.Stat(path); err != nil {
		// Already handled, or removed by the user.
		fr.Outcome, fr.Error = Failed, err.Error()
		return fr
	}

	doc, err := p.ingester.IngestFile(ctx, path)
	switch {
	case err == nil:
		fr.Outcome, fr.DocumentID = Ingested, doc.ID
		if rerr := os.Remove(path); rerr != nil {
			logger.Warn("removing ingested file", "error", rerr)
		}
		logger.Info("staged file ingested", "document_id", doc.ID)

	case errors.Is(err, apperr.Conflict):
		fr.Outcome, fr.Error = Duplicate, err.Error()
		if doc != nil {
			fr.DocumentID = doc.ID
		}
		p.park(path, duplicatesDir)
		logger.Info("staged file is a duplicate", "error", err)

	case errors.Is(err, apperr.ValidationFailure):
		fr.Outcome, fr.Error = Rejected, err.Error()
		p.park(path, rejectedDir)
		logger.Warn("staged file rejected", "error", err)

	default:
		fr.Outcome, fr.Error = Failed, err.Error()
		logger.Error("ingesting staged file", "error", err)
	}
	return fr
}

// park moves path into a subfolder of the staging folder, keeping the name
// unique.
func (p *Processor) park(path, dir string) {
	target := filepath.Join(p.cfg.Folder, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		p.logger.Warn("creating staging subfolder", "dir", target, "error", err)
		return
	}
	name := filepath.Base(path)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	dest := filepath.Join(target, name)
	for n := 1; ; n++ {
		if _, err := os.Stat(dest); errors.Is(err, os.ErrNotExist) {
			break
		}
		dest = filepath.Join(target, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
	if err := os.Rename(path, dest); err != nil {
		p.logger.Warn("moving staged file", "from", path, "to", dest, "error", err)
	}
}

func (p *Processor) record(ctx context.Context, status audit.Status, msg string, elapsed time.Duration) {
	if p.logs == nil {
		return
	}
	if err := p.logs.Record(ctx, "", audit.OpStaging, status, msg, elapsed); err != nil {
		p.logger.Warn("writing processing log", "error", err)
	}
}

func (r *Result) add(fr FileResult) {
	switch fr.Outcome {
	case Ingested:
		r.Ingested++
	case Duplicate:
		r.Duplicates++
	case Rejected:
		r.Rejected++
	default:
		r.Failed++
	}
	r.Files = append(r.Files, fr)
}
