package indexer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ziadkadry99/docvault/internal/apperr"
)

// batcher runs indexOne over many documents with bounded parallelism.
type batcher struct {
	ix          *Indexer
	concurrency int
	onProgress  ProgressFunc
}

func newBatcher(ix *Indexer, concurrency int, onProgress ProgressFunc) *batcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &batcher{ix: ix, concurrency: concurrency, onProgress: onProgress}
}

func (b *batcher) run(ctx context.Context, ids []string) *ReindexResult {
	result := &ReindexResult{}
	total := len(ids)
	if total == 0 {
		return result
	}

	// Once the provider is reported unavailable, remaining documents are
	// counted as failed without calling it.
	var unavailable atomic.Bool

	sem := make(chan struct{}, b.concurrency)
	var mu sync.Mutex
	var processed int64

	finish := func(id string, err error) {
		mu.Lock()
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Errorf("index %s: %w", id, err))
		} else {
			result.Completed++
		}
		mu.Unlock()
		count := atomic.AddInt64(&processed, 1)
		if b.onProgress != nil {
			b.onProgress(int(count), total, id)
		}
	}

	skip := func(id string) {
		finish(id, apperr.New(apperr.ProviderUnavailable, "indexer.reindex", "skipped, embedding provider unavailable"))
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		if unavailable.Load() {
			skip(id)
			continue
		}

		select {
		case <-ctx.Done():
			finish(id, ctx.Err())
			continue
		case sem <- struct{}{}:
		}
		if unavailable.Load() {
			<-sem
			skip(id)
			continue
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()

			err := b.ix.indexOne(ctx, id)
			if apperr.KindOf(err) == apperr.ProviderUnavailable {
				unavailable.Store(true)
			}
			finish(id, err)
		}(id)
	}

	wg.Wait()
	return result
}
