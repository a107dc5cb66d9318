package metadata

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/llm"
)

type mockProvider struct {
	mu       sync.Mutex
	requests []llm.CompletionRequest
	content  string
	err      error
}

func (m *mockProvider) Name() string { return "mock" }

func (m *mockProvider) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &llm.CompletionResponse{Content: m.content, Model: "gpt-4o-mini"}, nil
}

type staticVocab Vocab

func (s staticVocab) Vocabulary(context.Context) (Vocab, error) { return Vocab(s), nil }

func TestParseWellFormed(t *testing.T) {
	raw := `{"title":"Electricity bill March","summary":"Monthly bill.","correspondent":"Stadtwerke",
		"document_type":"invoice","document_date":"2024-03-15","tax_relevant":true,"tags":["energy","bill"]}`

	out := Parse(raw, "scan.pdf")
	m, ok := out.Parsed()
	if !ok {
		t.Fatal("expected parsed outcome")
	}
	if m.Title != "Electricity bill March" || m.Correspondent != "Stadtwerke" || m.DocumentType != "invoice" {
		t.Errorf("unexpected metadata: %+v", m)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	if m.DocumentDate == nil || !m.DocumentDate.Equal(want) {
		t.Errorf("date: got %v, want %v", m.DocumentDate, want)
	}
	if !m.IsTaxRelevant() {
		t.Error("expected tax relevant")
	}
	if len(m.Tags) != 2 || m.Tags[0] != "energy" {
		t.Errorf("tags: got %v", m.Tags)
	}
	if _, failed := out.ParseFailure(); failed {
		t.Error("ParseFailure should be false for parsed outcome")
	}
}

func TestParseTolerance(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		check func(t *testing.T, m Metadata)
	}{
		{
			name: "code fence",
			raw:  "```json\n{\"title\":\"Fenced\"}\n```",
			check: func(t *testing.T, m Metadata) {
				if m.Title != "Fenced" {
					t.Errorf("got %q", m.Title)
				}
			},
		},
		{
			name: "surrounding prose",
			raw:  "Sure! Here it is: {\"title\":\"A {braced} title\",\"tags\":\"a, b, A\"} Hope that helps.",
			check: func(t *testing.T, m Metadata) {
				if m.Title != "A {braced} title" {
					t.Errorf("title: got %q", m.Title)
				}
				if strings.Join(m.Tags, "|") != "a|b" {
					t.Errorf("tags: got %v", m.Tags)
				}
			},
		},
		{
			name: "string bool and german date",
			raw:  `{"title":"x","tax_relevant":"ja","date":"01.02.2023","sender":"Finanzamt"}`,
			check: func(t *testing.T, m Metadata) {
				if !m.IsTaxRelevant() {
					t.Error("expected tax relevant")
				}
				if m.DocumentDate == nil || m.DocumentDate.Format("2006-01-02") != "2023-02-01" {
					t.Errorf("date: got %v", m.DocumentDate)
				}
				if m.Correspondent != "Finanzamt" {
					t.Errorf("correspondent: got %q", m.Correspondent)
				}
			},
		},
		{
			name: "null and invalid values",
			raw:  `{"title":"x","document_date":"sometime","tax_relevant":null,"tags":null}`,
			check: func(t *testing.T, m Metadata) {
				if m.DocumentDate != nil || m.TaxRelevant != nil || m.Tags != nil {
					t.Errorf("expected empty optionals, got %+v", m)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Parse(tt.raw, "f.pdf").Parsed()
			if !ok {
				t.Fatal("expected parsed outcome")
			}
			tt.check(t, m)
		})
	}
}

func TestParseFailureFallsBackToFilename(t *testing.T) {
	out := Parse("I cannot help with that.", "letter.pdf")
	raw, failed := out.ParseFailure()
	if !failed || raw != "I cannot help with that." {
		t.Fatalf("expected ParseFailure with raw text, got %q %v", raw, failed)
	}
	m := out.Metadata()
	if m.Title != "letter.pdf" || m.Summary != "" || m.DocumentDate != nil || len(m.Tags) != 0 {
		t.Errorf("unexpected fallback metadata %+v", m)
	}

	if m := Parse(`{"summary":"no title"}`, "doc.txt").Metadata(); m.Title != "doc.txt" {
		t.Errorf("empty title should fall back to filename, got %q", m.Title)
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-05-06", "06.05.2024", "2024-05-06T10:00:00+02:00"} {
		d, err := ParseDate(s)
		if err != nil {
			t.Errorf("%s: %v", s, err)
			continue
		}
		if d.Format("2006-01-02") != "2024-05-06" {
			t.Errorf("%s: got %s", s, d.Format("2006-01-02"))
		}
	}
	if _, err := ParseDate("May 6th"); err == nil {
		t.Error("expected error")
	}
}

func TestInferBuildsPrompt(t *testing.T) {
	mock := &mockProvider{content: `{"title":"Rent contract"}`}
	vocab := staticVocab{DocTypes: []string{"invoice", "contract"}, Tags: []string{"housing"}}
	inf := NewInferencer(mock, "gpt-4o-mini", 10, vocab, nil)

	out, err := inf.Infer(context.Background(), "äöü0123456789ABCDEF", "rent.pdf")
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if m, _ := out.Parsed(); m.Title != "Rent contract" {
		t.Errorf("got %q", m.Title)
	}

	req := mock.requests[0]
	if !req.JSONMode || req.Model != "gpt-4o-mini" {
		t.Errorf("unexpected request %+v", req)
	}
	prompt := req.Messages[1].Content
	if !strings.HasSuffix(prompt, "\näöü0123456") {
		t.Errorf("text not truncated to 10 runes: %q", prompt)
	}
	if strings.Contains(prompt, "789") {
		t.Error("prompt contains text beyond the limit")
	}
	if !strings.Contains(prompt, "existing document types when it fits: invoice, contract") ||
		!strings.Contains(prompt, "existing tags when it fits: housing") {
		t.Error("vocabulary missing from prompt")
	}
	if !strings.Contains(prompt, "rent.pdf") {
		t.Error("filename missing from prompt")
	}
}

func TestInferProviderErrors(t *testing.T) {
	inf := NewInferencer(&mockProvider{err: errors.New("boom")}, "m", 100, nil, nil)
	if _, err := inf.Infer(context.Background(), "text", "f"); !errors.Is(err, apperr.InferenceFailure) {
		t.Errorf("expected InferenceFailure, got %v", err)
	}

	unavailable := apperr.New(apperr.ProviderUnavailable, "breaker", "open")
	inf = NewInferencer(&mockProvider{err: unavailable}, "m", 100, nil, nil)
	if _, err := inf.Infer(context.Background(), "text", "f"); !errors.Is(err, apperr.ProviderUnavailable) {
		t.Errorf("expected ProviderUnavailable, got %v", err)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("ßßß", 2); got != "ßß" {
		t.Errorf("got %q", got)
	}
	if got := truncateRunes("abc", 0); got != "abc" {
		t.Errorf("limit 0 should not truncate, got %q", got)
	}
	if got := truncateRunes("ab", 5); got != "ab" {
		t.Errorf("got %q", got)
	}
}
