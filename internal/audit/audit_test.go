package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/db"
)

func setupStore(t *testing.T) (*Store, *db.DB) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database), database
}

func insertDocument(t *testing.T, database *db.DB, id string) {
	t.Helper()
	now := db.FormatTime(time.Now())
	_, err := database.Exec(`INSERT INTO documents (id, filename, file_path, file_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`, id, id+".pdf", "unfiled/"+id+".pdf", "hash-"+id, now, now)
	if err != nil {
		t.Fatalf("insert document: %v", err)
	}
}

func TestLogAndGetByID(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()
	insertDocument(t, database, "doc-1")

	entry := Entry{
		ID:            "log-1",
		DocumentID:    "doc-1",
		Operation:     OpOCR,
		Status:        StatusSuccess,
		Message:       "extracted 2 pages",
		ExecutionTime: 1.5,
	}
	if err := store.Log(ctx, entry); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := store.GetByID(ctx, "log-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DocumentID != "doc-1" {
		t.Errorf("DocumentID = %q, want %q", got.DocumentID, "doc-1")
	}
	if got.Operation != OpOCR || got.Status != StatusSuccess {
		t.Errorf("got %s/%s", got.Operation, got.Status)
	}
	if got.ExecutionTime != 1.5 {
		t.Errorf("ExecutionTime = %v, want 1.5", got.ExecutionTime)
	}
	if got.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store, _ := setupStore(t)
	if _, err := store.GetByID(context.Background(), "missing"); !errors.Is(err, apperr.NotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestLogRejectsUnknownStatus(t *testing.T) {
	store, _ := setupStore(t)
	err := store.Log(context.Background(), Entry{Operation: OpReindex, Status: "weird"})
	if !errors.Is(err, apperr.ValidationFailure) {
		t.Errorf("expected ValidationFailure, got %v", err)
	}
}

func TestGlobalEntryHasNoDocument(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, "", OpReindex, StatusInfo, "reindex started", 0); err != nil {
		t.Fatalf("Record: %v", err)
	}
	entries, err := store.Query(ctx, QueryFilter{Operation: OpReindex})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(entries) != 1 || entries[0].DocumentID != "" {
		t.Fatalf("unexpected entries %+v", entries)
	}
	if entries[0].ID == "" {
		t.Error("expected generated ID")
	}
}

func TestQueryFilters(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()
	insertDocument(t, database, "a")
	insertDocument(t, database, "b")

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{DocumentID: "a", Operation: OpOCR, Status: StatusSuccess, CreatedAt: base},
		{DocumentID: "a", Operation: OpAI, Status: StatusError, CreatedAt: base.Add(time.Minute)},
		{DocumentID: "b", Operation: OpOCR, Status: StatusSuccess, CreatedAt: base.Add(2 * time.Minute)},
		{DocumentID: "b", Operation: OpVector, Status: StatusInfo, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	since := base.Add(90 * time.Second)
	tests := []struct {
		name   string
		filter QueryFilter
		want   int
	}{
		{"all", QueryFilter{}, 4},
		{"by document", QueryFilter{DocumentID: "a"}, 2},
		{"by operation", QueryFilter{Operation: OpOCR}, 2},
		{"by status", QueryFilter{Status: StatusError}, 1},
		{"since", QueryFilter{Since: &since}, 2},
		{"combined", QueryFilter{DocumentID: "b", Operation: OpOCR}, 1},
		{"limit", QueryFilter{Limit: 3}, 3},
		{"offset", QueryFilter{Offset: 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}

	got, _ := store.Query(ctx, QueryFilter{})
	if got[0].Operation != OpVector {
		t.Errorf("expected newest first, got %s", got[0].Operation)
	}
}

func TestEntriesCascadeWithDocument(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()
	insertDocument(t, database, "gone")

	if err := store.Record(ctx, "gone", OpUpload, StatusSuccess, "uploaded", 0); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, err := database.Exec("DELETE FROM documents WHERE id = ?", "gone"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := store.Query(ctx, QueryFilter{DocumentID: "gone"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected logs to be removed with the document, got %d", len(got))
	}
}

func TestDeleteBefore(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	store.Log(ctx, Entry{Operation: OpVerify, Status: StatusInfo, CreatedAt: old})
	store.Log(ctx, Entry{Operation: OpVerify, Status: StatusInfo})

	n, err := store.DeleteBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
}

func TestRoutes(t *testing.T) {
	store, database := setupStore(t)
	ctx := context.Background()
	insertDocument(t, database, "doc-1")
	store.Record(ctx, "doc-1", OpOCR, StatusError, "tesseract missing", time.Second)
	store.Record(ctx, "", OpReindex, StatusSuccess, "done", time.Second)

	r := chi.NewRouter()
	RegisterRoutes(r, store)

	tests := []struct {
		path       string
		wantStatus int
		wantCount  int
	}{
		{"/api/logs", http.StatusOK, 2},
		{"/api/logs?status=error", http.StatusOK, 1},
		{"/api/logs?operation=reindex", http.StatusOK, 1},
		{"/api/documents/doc-1/logs", http.StatusOK, 1},
		{"/api/logs?status=bogus", http.StatusBadRequest, -1},
		{"/api/logs?since=yesterday", http.StatusBadRequest, -1},
		{"/api/logs/nope", http.StatusNotFound, -1},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCount < 0 {
				var body map[string]string
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body["kind"] == "" {
					t.Error("error response missing kind")
				}
				return
			}
			var got []Entry
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Errorf("got %d entries, want %d", len(got), tt.wantCount)
			}
		})
	}
}
