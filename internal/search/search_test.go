package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/db"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/llm"
	"github.com/ziadkadry99/docvault/internal/metadata"
	"github.com/ziadkadry99/docvault/internal/vectordb"
)

// fakeVectors returns canned matches for every query.
type fakeVectors struct {
	mu      sync.Mutex
	matches []vectordb.Match
	err     error
	calls   int
}

func (f *fakeVectors) Upsert(context.Context, string, []vectordb.Chunk) error { return nil }
func (f *fakeVectors) DeleteDocument(context.Context, string) error          { return nil }
func (f *fakeVectors) DocumentChunks(context.Context, string) ([]vectordb.Chunk, error) {
	return nil, nil
}
func (f *fakeVectors) DocumentIDs(context.Context) ([]string, error) { return nil, nil }
func (f *fakeVectors) Count(context.Context) (int, error)            { return len(f.matches), nil }

func (f *fakeVectors) QueryText(_ context.Context, _ string, n int) ([]vectordb.Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if n < len(f.matches) {
		return f.matches[:n], nil
	}
	return f.matches, nil
}

func (f *fakeVectors) QueryEmbedding(ctx context.Context, _ []float32, n int) ([]vectordb.Match, error) {
	return f.QueryText(ctx, "", n)
}

func match(docID string, index int, sim float32) vectordb.Match {
	return vectordb.Match{
		Chunk:      vectordb.Chunk{ID: vectordb.ChunkID(docID, index), DocumentID: docID, Index: index},
		Similarity: sim,
	}
}

var fixedNow = time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T, vs vectordb.Store, breaker *llm.Breaker) (*Engine, *documents.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	docs := documents.NewStore(database)
	e := New(docs, vs, breaker, Config{}, nil)
	e.now = func() time.Time { return fixedNow }
	return e, docs
}

type docSpec struct {
	id, filename, text string
	md                 metadata.Metadata
	offset             int
}

func addDoc(t *testing.T, docs *documents.Store, s docSpec) {
	t.Helper()
	ctx := context.Background()
	filename := s.filename
	if filename == "" {
		filename = s.id + ".pdf"
	}
	err := docs.Create(ctx, &documents.Document{
		ID:        s.id,
		Filename:  filename,
		FilePath:  "unfiled/" + filename,
		FileHash:  "hash-" + s.id,
		MimeType:  "application/pdf",
		CreatedAt: time.Date(2024, 1, 1, 0, s.offset, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Create %s: %v", s.id, err)
	}
	if err := docs.SaveExtraction(ctx, s.id, s.text, "text"); err != nil {
		t.Fatalf("SaveExtraction %s: %v", s.id, err)
	}
	if err := docs.ApplyMetadata(ctx, s.id, s.md, "{}"); err != nil {
		t.Fatalf("ApplyMetadata %s: %v", s.id, err)
	}
}

func ids(hits []Hit) string {
	var out []string
	for _, h := range hits {
		out = append(out, h.ID)
	}
	return strings.Join(out, ",")
}

func day(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func boolPtr(b bool) *bool { return &b }

func TestLexicalSearchFindsInvoice(t *testing.T) {
	e, docs := setup(t, nil, nil)
	addDoc(t, docs, docSpec{id: "doc-1", text: "Invoice number 42 for services", md: metadata.Metadata{Title: "Invoice March"}})
	addDoc(t, docs, docSpec{id: "doc-2", text: "Rental agreement", md: metadata.Metadata{Title: "Lease"}, offset: 1})
	ctx := context.Background()

	res, err := e.Search(ctx, Request{Query: "Invoice"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Mode != ModeLexical || res.Fallback {
		t.Errorf("mode %q fallback %v", res.Mode, res.Fallback)
	}
	if ids(res.Documents) != "doc-1" || res.TotalCount != 1 {
		t.Errorf("got %q total %d", ids(res.Documents), res.TotalCount)
	}
	if res.Documents[0].FullText != "" {
		t.Error("full text should be omitted from hits")
	}

	res, err = e.Search(ctx, Request{Query: "Xyzzyqqq"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Documents) != 0 || res.TotalCount != 0 {
		t.Errorf("expected no hits, got %q total %d", ids(res.Documents), res.TotalCount)
	}
}

func TestLexicalUmlautFolding(t *testing.T) {
	e, docs := setup(t, nil, nil)
	addDoc(t, docs, docSpec{id: "umlaut", text: "Sehr geehrter Herr Müller, Hauptstraße 5", md: metadata.Metadata{Title: "Brief"}})
	addDoc(t, docs, docSpec{id: "spelled", text: "MUELLER GmbH, Hauptstrasse 7", md: metadata.Metadata{Title: "Angebot"}, offset: 1})
	ctx := context.Background()

	for _, q := range []string{"müller", "Mueller", "MÜLLER", "hauptstraße", "Hauptstrasse"} {
		res, err := e.Search(ctx, Request{Query: q})
		if err != nil {
			t.Fatalf("Search %q: %v", q, err)
		}
		if res.TotalCount != 2 {
			t.Errorf("%q: got %q, want both documents", q, ids(res.Documents))
		}
	}
}

func TestLexicalRanking(t *testing.T) {
	e, docs := setup(t, nil, nil)
	addDoc(t, docs, docSpec{id: "in-text", text: "this mentions the contract once", md: metadata.Metadata{Title: "Letter"}, offset: 3})
	addDoc(t, docs, docSpec{id: "in-title", text: "nothing relevant", md: metadata.Metadata{Title: "Contract"}})
	addDoc(t, docs, docSpec{id: "in-summary", text: "nothing", md: metadata.Metadata{Title: "Note", Summary: "About a contract"}, offset: 1})
	addDoc(t, docs, docSpec{id: "in-filename", filename: "contract-scan.pdf", text: "nothing", md: metadata.Metadata{Title: "Scan"}, offset: 2})

	res, err := e.Search(context.Background(), Request{Query: "contract"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got, want := ids(res.Documents), "in-title,in-filename,in-summary,in-text"; got != want {
		t.Errorf("order: got %s, want %s", got, want)
	}
}

func TestLexicalTiesPreferNewest(t *testing.T) {
	e, docs := setup(t, nil, nil)
	addDoc(t, docs, docSpec{id: "old", text: "receipt", md: metadata.Metadata{Title: "A"}})
	addDoc(t, docs, docSpec{id: "new", text: "receipt", md: metadata.Metadata{Title: "A"}, offset: 5})

	res, err := e.Search(context.Background(), Request{Query: "receipt"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := ids(res.Documents); got != "new,old" {
		t.Errorf("got %s, want new,old", got)
	}
}

func TestEmptyQueryListsFilteredDocuments(t *testing.T) {
	e, docs := setup(t, nil, nil)
	addDoc(t, docs, docSpec{id: "a", text: "x", md: metadata.Metadata{Title: "A", TaxRelevant: boolPtr(true)}})
	addDoc(t, docs, docSpec{id: "b", text: "x", md: metadata.Metadata{Title: "B"}, offset: 1})
	addDoc(t, docs, docSpec{id: "c", text: "x", md: metadata.Metadata{Title: "C", TaxRelevant: boolPtr(true)}, offset: 2})

	res, err := e.Search(context.Background(), Request{Filters: Filters{IsTaxRelevant: boolPtr(true)}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Mode != ModeAll {
		t.Errorf("mode: got %q", res.Mode)
	}
	if got := ids(res.Documents); got != "c,a" {
		t.Errorf("got %s, want c,a", got)
	}
}

func TestFilterSemantics(t *testing.T) {
	e, docs := setup(t, nil, nil)
	ctx := context.Background()
	addDoc(t, docs, docSpec{id: "d1", text: "x", md: metadata.Metadata{Title: "1", Tags: []string{"alpha"}, Correspondent: "ACME"}})
	addDoc(t, docs, docSpec{id: "d2", text: "x", md: metadata.Metadata{Title: "2", Tags: []string{"beta"}}, offset: 1})
	addDoc(t, docs, docSpec{id: "d3", text: "x", md: metadata.Metadata{Title: "3", Tags: []string{"gamma"}}, offset: 2})

	tags, err := docs.ListTags(ctx)
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	tagID := map[string]string{}
	for _, tag := range tags {
		tagID[tag.Name] = tag.ID
	}
	d1, err := docs.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	tests := []struct {
		name    string
		filters Filters
		want    string
	}{
		{"tags are ORed", Filters{TagIDs: []string{tagID["alpha"], tagID["beta"]}}, "d2,d1"},
		{"categories are ANDed", Filters{TagIDs: []string{tagID["alpha"], tagID["beta"]}, CorrespondentIDs: []string{d1.CorrespondentID}}, "d1"},
		{"blank ids ignored", Filters{TagIDs: []string{"", " "}}, "d3,d2,d1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Search(ctx, Request{Filters: tt.filters})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if got := ids(res.Documents); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDateFilters(t *testing.T) {
	e, docs := setup(t, nil, nil)
	addDoc(t, docs, docSpec{id: "recent", text: "x", md: metadata.Metadata{Title: "R", DocumentDate: day("2024-05-10")}})
	addDoc(t, docs, docSpec{id: "april", text: "x", md: metadata.Metadata{Title: "A", DocumentDate: day("2024-04-20")}, offset: 1})
	addDoc(t, docs, docSpec{id: "old", text: "x", md: metadata.Metadata{Title: "O", DocumentDate: day("2022-01-01")}, offset: 2})
	ctx := context.Background()

	tests := []struct {
		name    string
		filters Filters
		want    string
	}{
		{"preset", Filters{DatePreset: "last_7_days"}, "recent"},
		{"last month", Filters{DatePreset: "last_month"}, "april"},
		{"explicit range", Filters{DateFrom: "2024-01-01", DateTo: "2024-04-30"}, "april"},
		{"open ended", Filters{DateFrom: "2024-01-01"}, "april,recent"},
		{"preset wins", Filters{DatePreset: "this_year", DateFrom: "2030-01-01"}, "april,recent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Search(ctx, Request{Filters: tt.filters})
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if got := ids(res.Documents); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSearchValidation(t *testing.T) {
	e, _ := setup(t, nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown preset", Request{Filters: Filters{DatePreset: "next_decade"}}},
		{"bad date", Request{Filters: Filters{DateFrom: "15.05.2024"}}},
		{"inverted range", Request{Filters: Filters{DateFrom: "2024-06-01", DateTo: "2024-05-01"}}},
		{"unknown reminder", Request{Filters: Filters{Reminder: "soon"}}},
		{"negative limit", Request{Limit: -1}},
		{"negative offset", Request{Offset: -3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Search(ctx, tt.req); !errors.Is(err, apperr.ValidationFailure) {
				t.Errorf("expected ValidationFailure, got %v", err)
			}
		})
	}
}

func TestPagination(t *testing.T) {
	e, docs := setup(t, nil, nil)
	for i, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		addDoc(t, docs, docSpec{id: id, text: "statement", md: metadata.Metadata{Title: "S"}, offset: i})
	}
	res, err := e.Search(context.Background(), Request{Query: "statement", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.TotalCount != 5 {
		t.Errorf("total: got %d, want 5", res.TotalCount)
	}
	if got := ids(res.Documents); got != "p4,p3" {
		t.Errorf("page: got %s, want p4,p3", got)
	}

	res, err = e.Search(context.Background(), Request{Query: "statement", Offset: 10})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Documents) != 0 || res.TotalCount != 5 {
		t.Errorf("past the end: got %d hits, total %d", len(res.Documents), res.TotalCount)
	}
}

func TestSemanticSearch(t *testing.T) {
	vs := &fakeVectors{matches: []vectordb.Match{
		match("b", 0, 0.9),
		match("a", 0, 0.5),
		match("a", 1, 0.7),
		match("excluded", 0, 0.95),
		match("gone", 0, 0.99),
	}}
	e, docs := setup(t, vs, nil)
	addDoc(t, docs, docSpec{id: "a", text: "x", md: metadata.Metadata{Title: "A"}})
	addDoc(t, docs, docSpec{id: "b", text: "x", md: metadata.Metadata{Title: "B"}, offset: 1})
	addDoc(t, docs, docSpec{id: "excluded", text: "x", md: metadata.Metadata{Title: "E", TaxRelevant: boolPtr(true)}, offset: 2})
	addDoc(t, docs, docSpec{id: "unmatched", text: "x", md: metadata.Metadata{Title: "U"}, offset: 3})

	res, err := e.Search(context.Background(), Request{
		Query:       "energy costs",
		UseSemantic: true,
		Filters:     Filters{IsTaxRelevant: boolPtr(false)},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Mode != ModeSemantic || res.Fallback {
		t.Fatalf("mode %q fallback %v", res.Mode, res.Fallback)
	}
	if got := ids(res.Documents); got != "b,a" {
		t.Fatalf("got %s, want b,a", got)
	}
	if s := res.Documents[1].Score; s < 0.69 || s > 0.71 {
		t.Errorf("document score should be its best chunk, got %f", s)
	}
}

func TestSemanticFallsBackToLexical(t *testing.T) {
	vs := &fakeVectors{err: errors.New("connection refused")}
	e, docs := setup(t, vs, nil)
	addDoc(t, docs, docSpec{id: "doc-1", text: "Invoice", md: metadata.Metadata{Title: "Invoice"}})

	res, err := e.Search(context.Background(), Request{Query: "invoice", UseSemantic: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Fallback || res.Mode != ModeLexical || res.FallbackReason == "" {
		t.Errorf("expected reported lexical fallback, got %+v", res)
	}
	if ids(res.Documents) != "doc-1" {
		t.Errorf("got %s", ids(res.Documents))
	}
}

func TestSemanticWithoutVectorStoreFallsBack(t *testing.T) {
	e, docs := setup(t, nil, nil)
	addDoc(t, docs, docSpec{id: "doc-1", text: "Invoice", md: metadata.Metadata{Title: "Invoice"}})

	res, err := e.Search(context.Background(), Request{Query: "invoice", UseSemantic: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Fallback || !strings.Contains(res.FallbackReason, "unavailable") {
		t.Errorf("expected unavailable fallback, got %+v", res)
	}
}

func TestOpenBreakerSkipsVectorStore(t *testing.T) {
	vs := &fakeVectors{err: errors.New("boom")}
	breaker := llm.NewBreaker("search", 1, time.Minute, nil)
	e, docs := setup(t, vs, breaker)
	addDoc(t, docs, docSpec{id: "doc-1", text: "Invoice", md: metadata.Metadata{Title: "Invoice"}})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := e.Search(ctx, Request{Query: "invoice", UseSemantic: true})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if !res.Fallback {
			t.Fatalf("call %d: expected fallback", i)
		}
	}
	if !breaker.Open() {
		t.Error("expected breaker to be open")
	}
	if vs.calls != 1 {
		t.Errorf("vector store calls: got %d, want 1", vs.calls)
	}
}

func TestSemanticDoesNotFallBack(t *testing.T) {
	vs := &fakeVectors{err: errors.New("down")}
	e, docs := setup(t, vs, nil)
	addDoc(t, docs, docSpec{id: "doc-1", text: "Invoice", md: metadata.Metadata{Title: "Invoice"}})

	if _, err := e.Semantic(context.Background(), "invoice", Filters{}, 5); err == nil {
		t.Fatal("expected error")
	}

	vs.err = nil
	vs.matches = []vectordb.Match{match("doc-1", 0, 0.8)}
	hits, err := e.Semantic(context.Background(), "invoice", Filters{}, 5)
	if err != nil {
		t.Fatalf("Semantic: %v", err)
	}
	if ids(hits) != "doc-1" {
		t.Errorf("got %s", ids(hits))
	}
}

func TestPresetRange(t *testing.T) {
	wed := time.Date(2024, 5, 15, 18, 30, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		preset   string
		now      time.Time
		from, to string
	}{
		{"today", wed, "2024-05-15", "2024-05-15"},
		{"yesterday", wed, "2024-05-14", "2024-05-14"},
		{"last_7_days", wed, "2024-05-08", "2024-05-15"},
		{"last_30_days", wed, "2024-04-15", "2024-05-15"},
		{"this_week", wed, "2024-05-13", "2024-05-19"},
		{"last_week", wed, "2024-05-06", "2024-05-12"},
		{"this_month", wed, "2024-05-01", "2024-05-31"},
		{"last_month", wed, "2024-04-01", "2024-04-30"},
		{"this_quarter", wed, "2024-04-01", "2024-06-30"},
		{"last_quarter", wed, "2024-01-01", "2024-03-31"},
		{"last_quarter", feb, "2023-10-01", "2023-12-31"},
		{"last_month", feb, "2024-01-01", "2024-01-31"},
		{"this_month", feb, "2024-02-01", "2024-02-29"},
		{"this_year", wed, "2024-01-01", "2024-12-31"},
		{"last_year", wed, "2023-01-01", "2023-12-31"},
		{"last_2_years", wed, "2022-05-16", "2024-05-15"},
	}
	for _, tt := range tests {
		t.Run(tt.preset+"@"+tt.now.Format("01-02"), func(t *testing.T) {
			from, to, err := PresetRange(tt.preset, tt.now)
			if err != nil {
				t.Fatalf("PresetRange: %v", err)
			}
			if got := from.Format("2006-01-02"); got != tt.from {
				t.Errorf("from: got %s, want %s", got, tt.from)
			}
			if got := to.Format("2006-01-02"); got != tt.to {
				t.Errorf("to: got %s, want %s", got, tt.to)
			}
		})
	}

	if _, _, err := PresetRange("someday", wed); !errors.Is(err, apperr.ValidationFailure) {
		t.Errorf("expected ValidationFailure, got %v", err)
	}
}

func TestSuggest(t *testing.T) {
	e, docs := setup(t, nil, nil)
	addDoc(t, docs, docSpec{id: "s1", text: "x", md: metadata.Metadata{Title: "Stromrechnung", Correspondent: "Stadtwerke", Tags: []string{"strom"}}})

	s, err := e.Suggest(context.Background(), "st")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(s.Correspondents) != 1 || len(s.Titles) != 1 || len(s.Tags) != 1 {
		t.Errorf("unexpected suggestions %+v", s)
	}

	s, err = e.Suggest(context.Background(), "s")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(s.Correspondents)+len(s.Titles)+len(s.Tags)+len(s.DocTypes) != 0 {
		t.Errorf("short prefix should yield nothing, got %+v", s)
	}
}

func TestRoutes(t *testing.T) {
	e, docs := setup(t, nil, nil)
	addDoc(t, docs, docSpec{id: "doc-1", text: "Invoice", md: metadata.Metadata{Title: "Invoice"}})
	r := chi.NewRouter()
	RegisterRoutes(r, e)

	tests := []struct {
		name, method, path, body string
		status                   int
		contains                 string
	}{
		{"search", http.MethodPost, "/api/search", `{"query":"invoice"}`, http.StatusOK, `"total_count":1`},
		{"bad body", http.MethodPost, "/api/search", `{`, http.StatusBadRequest, `"kind":"validation_failure"`},
		{"bad preset", http.MethodPost, "/api/search", `{"filters":{"date_range":"soon"}}`, http.StatusBadRequest, "soon"},
		{"suggestions", http.MethodGet, "/api/search/suggestions?q=inv", "", http.StatusOK, `"titles":["Invoice"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tt.status {
				t.Fatalf("status: got %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("body %s does not contain %s", w.Body.String(), tt.contains)
			}
		})
	}
}
