package staging

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ziadkadry99/docvault/internal/walker"
)

const defaultSettle = 2 * time.Second

// Watch ingests files as they appear in the staging folder until ctx is
// done. Files already present are processed first. Each file is handled
// once it has been quiet for the settle delay, so partially copied files
// are not picked up.
func (p *Processor) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if _, err := p.List(); err != nil {
		return err
	}
	if err := w.Add(p.cfg.Folder); err != nil {
		return fmt.Errorf("watching %s: %w", p.cfg.Folder, err)
	}
	p.logger.Info("watching staging folder", "folder", p.cfg.Folder)

	if _, err := p.ProcessAll(ctx); err != nil && ctx.Err() == nil {
		p.logger.Warn("initial staging scan", "error", err)
	}

	settle := p.cfg.Settle
	if settle <= 0 {
		settle = defaultSettle
	}
	include := walker.ExtensionPatterns(p.cfg.AllowedExtensions)

	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		wg      sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for path, t := range pending {
			if t.Stop() {
				wg.Done()
			}
			delete(pending, path)
		}
		mu.Unlock()
		wg.Wait()
	}()

	schedule := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := pending[path]; ok && t.Stop() {
			t.Reset(settle)
			return
		}
		wg.Add(1)
		var t *time.Timer
		t = time.AfterFunc(settle, func() {
			defer wg.Done()
			mu.Lock()
			if pending[path] == t {
				delete(pending, path)
			}
			mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			p.ProcessFile(ctx, path)
		})
		pending[path] = t
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if walker.MatchesExclude(name, walker.DefaultExcludes) || !walker.MatchesInclude(name, include) {
				continue
			}
			schedule(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.logger.Warn("staging watcher", "error", err)
		}
	}
}
