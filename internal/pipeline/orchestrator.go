// Package pipeline runs uploaded documents through text extraction, metadata
// inference and embedding, one stage at a time, on a bounded worker pool.
package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ziadkadry99/docvault/internal/audit"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/extract"
	"github.com/ziadkadry99/docvault/internal/metadata"
	"github.com/ziadkadry99/docvault/internal/storage"
)

// Extractor turns a local file into text.
type Extractor interface {
	Extract(ctx context.Context, path, mimeType string) extract.Result
}

// Inferencer derives metadata from extracted text.
type Inferencer interface {
	Infer(ctx context.Context, text, filename string) (metadata.Outcome, error)
}

// Indexer stores and removes a document's vectors.
type Indexer interface {
	Index(ctx context.Context, doc *documents.Document) (int, error)
	Remove(ctx context.Context, documentID string) error
}

// Config bounds the worker pool and validates uploads.
type Config struct {
	Workers           int
	MaxFileSize       int64
	AllowedExtensions []string
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Documents  *documents.Store
	Logs       *audit.Store
	Files      storage.Store
	Extractor  Extractor
	Inferencer Inferencer
	Indexer    Indexer
	Hub        *Hub
	Logger     *slog.Logger
}

// Orchestrator owns the processing state machine. Jobs for different
// documents run in parallel; stages of one document never overlap.
type Orchestrator struct {
	docs       *documents.Store
	logs       *audit.Store
	files      storage.Store
	extractor  Extractor
	inferencer Inferencer
	indexer    Indexer
	hub        *Hub
	logger     *slog.Logger
	cfg        Config
	allowed    map[string]bool
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
	wg     sync.WaitGroup

	queued  atomic.Int64
	running atomic.Int64

	mu     sync.Mutex
	locks  map[string]*docLock
	active map[string]int
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

type job struct {
	id     string
	stages []documents.Stage
}

// New creates an Orchestrator. Workers start on demand; call Close to stop.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if deps.Hub == nil {
		deps.Hub = NewHub()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		docs:       deps.Documents,
		logs:       deps.Logs,
		files:      deps.Files,
		extractor:  deps.Extractor,
		inferencer: deps.Inferencer,
		indexer:    deps.Indexer,
		hub:        deps.Hub,
		logger:     deps.Logger,
		cfg:        cfg,
		allowed:    allowed,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		sem:        make(chan struct{}, cfg.Workers),
		locks:      make(map[string]*docLock),
		active:     make(map[string]int),
	}
}

// Hub returns the event hub stage transitions are published to.
func (o *Orchestrator) Hub() *Hub { return o.hub }

// Enqueue schedules the full pipeline for id: every stage that is not yet
// completed, in order. It never blocks.
func (o *Orchestrator) Enqueue(id string) {
	o.submit(job{id: id})
}

// submit starts a goroutine that waits for a worker slot. Jobs still waiting
// when the orchestrator is closed are dropped; their stages stay pending and
// are picked up by Recover on the next start.
func (o *Orchestrator) submit(j job) {
	o.queued.Add(1)
	o.markActive(j.id, 1)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer o.markActive(j.id, -1)

		select {
		case <-o.ctx.Done():
			o.queued.Add(-1)
			return
		case o.sem <- struct{}{}:
		}
		o.queued.Add(-1)
		o.running.Add(1)
		defer func() {
			o.running.Add(-1)
			<-o.sem
		}()

		o.runJob(o.ctx, j)
	}()
}

// Wait blocks until every submitted job has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close stops accepting work, cancels running jobs and waits for them.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

// IsProcessing reports whether any job is queued or running.
func (o *Orchestrator) IsProcessing() bool {
	return o.queued.Load()+o.running.Load() > 0
}

// Busy reports whether a job for id is queued or running.
func (o *Orchestrator) Busy(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active[id] > 0
}

func (o *Orchestrator) markActive(id string, delta int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.active[id] += delta
	if o.active[id] <= 0 {
		delete(o.active, id)
	}
}

// lockDocument serialises jobs and deletion for one document.
func (o *Orchestrator) lockDocument(id string) func() {
	o.mu.Lock()
	l, ok := o.locks[id]
	if !ok {
		l = &docLock{}
		o.locks[id] = l
	}
	l.refs++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(o.locks, id)
		}
		o.mu.Unlock()
	}
}

// ProcessingStatus is the aggregate view served by the status endpoint.
type ProcessingStatus struct {
	Processing bool                                              `json:"processing"`
	Queued     int64                                             `json:"queued"`
	Running    int64                                             `json:"running"`
	Stages     map[documents.Stage]map[documents.StageStatus]int `json:"stages"`
}

// Status combines the in-memory queue with stage counts from the store.
func (o *Orchestrator) Status(ctx context.Context) (*ProcessingStatus, error) {
	counts, err := o.docs.StageCounts(ctx)
	if err != nil {
		return nil, err
	}
	q, r := o.queued.Load(), o.running.Load()
	return &ProcessingStatus{Processing: q+r > 0, Queued: q, Running: r, Stages: counts}, nil
}

// DocumentStatus is the per-document view of the three stages.
type DocumentStatus struct {
	ID          string                `json:"id"`
	OCR         documents.StageStatus `json:"ocr_status"`
	AI          documents.StageStatus `json:"ai_status"`
	Vector      documents.StageStatus `json:"vector_status"`
	Busy        bool                  `json:"busy"`
	ProcessedAt *time.Time            `json:"processed_at,omitempty"`
}

// DocumentStatus returns the stage status of one document.
func (o *Orchestrator) DocumentStatus(ctx context.Context, id string) (*DocumentStatus, error) {
	doc, err := o.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DocumentStatus{
		ID:          doc.ID,
		OCR:         doc.OCRStatus,
		AI:          doc.AIStatus,
		Vector:      doc.VectorStatus,
		Busy:        o.Busy(id),
		ProcessedAt: doc.ProcessedAt,
	}, nil
}

// record appends to the processing log. Log failures are only reported to
// the logger so they never fail a stage.
func (o *Orchestrator) record(ctx context.Context, id, op string, status audit.Status, msg string, elapsed time.Duration) {
	if err := o.logs.Record(context.WithoutCancel(ctx), id, op, status, msg, elapsed); err != nil {
		o.logger.Warn("writing processing log", "document_id", id, "operation", op, "error", err)
	}
}

func (o *Orchestrator) publish(id string, stage documents.Stage, status documents.StageStatus, msg string) {
	o.hub.Publish(Event{DocumentID: id, Stage: stage, Status: status, Message: msg, Time: o.now()})
}
