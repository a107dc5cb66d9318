package staging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/documents"
)

// mockIngester decides the outcome by file name.
type mockIngester struct {
	mu    sync.Mutex
	paths []string
	errs  map[string]error
}

func (m *mockIngester) IngestFile(_ context.Context, path string) (*documents.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
	name := filepath.Base(path)
	if err, ok := m.errs[name]; ok {
		if apperr.KindOf(err) == apperr.Conflict {
			return &documents.Document{ID: "existing"}, err
		}
		return nil, err
	}
	return &documents.Document{ID: "doc-" + name}, nil
}

func (m *mockIngester) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.paths)
}

func setup(t *testing.T, files ...string) (*Processor, *mockIngester, string) {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte("content of "+f), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	ing := &mockIngester{errs: map[string]error{
		"dupe.pdf":  apperr.New(apperr.Conflict, "test", "already uploaded"),
		"huge.pdf":  apperr.New(apperr.ValidationFailure, "test", "too large"),
		"flaky.pdf": os.ErrPermission,
	}}
	p := New(Config{Folder: dir, AllowedExtensions: []string{"pdf", "txt"}, Settle: 20 * time.Millisecond}, ing, nil, nil)
	return p, ing, dir
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestProcessAll(t *testing.T) {
	p, ing, dir := setup(t, "a.pdf", "b.txt", "dupe.pdf", "huge.pdf", "flaky.pdf", "skip.exe")
	// Files must be older than the settle delay.
	time.Sleep(30 * time.Millisecond)

	result, err := p.ProcessAll(context.Background())
	if err != nil {
		t.Fatalf("ProcessAll: %v", err)
	}
	if result.Ingested != 2 || result.Duplicates != 1 || result.Rejected != 1 || result.Failed != 1 {
		t.Errorf("result = %+v", result)
	}
	if ing.count() != 5 {
		t.Errorf("ingester saw %d files, want 5", ing.count())
	}

	checks := map[string]bool{
		"a.pdf":               false,
		"b.txt":               false,
		"flaky.pdf":           true,
		"skip.exe":            true,
		"duplicates/dupe.pdf": true,
		"rejected/huge.pdf":   true,
	}
	for rel, want := range checks {
		if got := exists(filepath.Join(dir, filepath.FromSlash(rel))); got != want {
			t.Errorf("%s exists = %v, want %v", rel, got, want)
		}
	}

	// Parked files are not picked up again.
	files, err := p.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "flaky.pdf" {
		t.Errorf("remaining files = %+v", files)
	}
}

func TestListSkipsFreshFiles(t *testing.T) {
	p, _, _ := setup(t, "new.pdf")
	p.cfg.Settle = time.Hour
	files, err := p.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("fresh file listed: %+v", files)
	}
}

func TestParkKeepsNamesUnique(t *testing.T) {
	p, _, dir := setup(t)
	for i := 0; i < 2; i++ {
		path := filepath.Join(dir, "dupe.pdf")
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		p.ProcessFile(context.Background(), path)
	}
	if !exists(filepath.Join(dir, "duplicates", "dupe.pdf")) || !exists(filepath.Join(dir, "duplicates", "dupe_1.pdf")) {
		t.Error("expected dupe.pdf and dupe_1.pdf in duplicates/")
	}
}

func TestWatchIngestsNewFiles(t *testing.T) {
	p, ing, dir := setup(t, "before.pdf")
	time.Sleep(30 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Watch(ctx) }()

	// Give the watcher time to register before dropping a file.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "after.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "ignored.exe"), []byte("x"), 0o644)

	deadline := time.Now().Add(3 * time.Second)
	for exists(filepath.Join(dir, "after.pdf")) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if exists(filepath.Join(dir, "after.pdf")) {
		t.Error("new file was not ingested")
	}
	if exists(filepath.Join(dir, "before.pdf")) {
		t.Error("existing file was not ingested by the initial scan")
	}
	if !exists(filepath.Join(dir, "ignored.exe")) {
		t.Error("disallowed file was touched")
	}
	if ing.count() < 2 {
		t.Errorf("ingester saw %d files", ing.count())
	}
}

func TestRoutes(t *testing.T) {
	p, _, _ := setup(t, "a.pdf")
	time.Sleep(30 * time.Millisecond)
	r := chi.NewRouter()
	RegisterRoutes(r, p)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/staging/files", nil))
	var listing struct {
		Files []struct {
			RelPath string `json:"rel_path"`
		} `json:"files"`
	}
	json.NewDecoder(w.Body).Decode(&listing)
	if w.Code != http.StatusOK || len(listing.Files) != 1 || listing.Files[0].RelPath != "a.pdf" {
		t.Errorf("files: %d %+v", w.Code, listing)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/staging/process", nil))
	var result Result
	json.NewDecoder(w.Body).Decode(&result)
	if w.Code != http.StatusOK || result.Ingested != 1 || result.Files[0].DocumentID != "doc-a.pdf" {
		t.Errorf("process: %d %+v", w.Code, result)
	}
}
