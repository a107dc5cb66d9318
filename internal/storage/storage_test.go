package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIntakeKey(t *testing.T) {
	now := time.Date(2024, 3, 9, 15, 0, 0, 0, time.UTC)
	got := IntakeKey("abc", "../etc/scan.pdf", now)
	want := "unfiled/2024-03-09/abc_scan.pdf"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFiledKey(t *testing.T) {
	now := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	docDate := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		correspondent string
		date          *time.Time
		want          string
	}{
		{"full", "Stadtwerke München", &docDate, "Stadtwerke München/2023-12-31/id_bill.pdf"},
		{"no correspondent", "", &docDate, "unknown_correspondent/2023-12-31/id_bill.pdf"},
		{"no date", "ACME", nil, "ACME/2024-03-09/id_bill.pdf"},
		{"unsafe chars", `A/B: "C"`, &docDate, "A_B_ _C_/2023-12-31/id_bill.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FiledKey(tt.correspondent, tt.date, "id", "bill.pdf", now); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeFolder(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  ..ACME Corp.. ", "ACME Corp"},
		{"a<b>c|d?e*f", "a_b_c_d_e_f"},
		{"...", "Unknown"},
		{strings.Repeat("x", 60), strings.Repeat("x", 50)},
	}
	for _, tt := range tests {
		if got := SanitizeFolder(tt.in); got != tt.want {
			t.Errorf("SanitizeFolder(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{`C:\Users\me\scan.png`, "scan.png"},
		{"a..b.txt", "a_b.txt"},
		{"tab\there.txt", "tab_here.txt"},
		{"", "unnamed_file"},
		{strings.Repeat("n", 250) + ".pdf", strings.Repeat("n", 200) + ".pdf"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidKey(t *testing.T) {
	for _, bad := range []string{"", "/abs/path", "a/../b", ".."} {
		if err := ValidKey(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
	if err := ValidKey("unfiled/2024-01-01/x.pdf"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLocalStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	key := "unfiled/2024-01-01/id_note.txt"
	if err := s.Put(ctx, key, strings.NewReader("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ok, _ := s.Exists(ctx, key); !ok {
		t.Fatal("expected key to exist")
	}

	rc, err := s.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("got %q, want %q", data, "hello")
	}

	p, release, err := s.Fetch(ctx, key)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	release()
	if p != filepath.Join(s.Root(), "unfiled", "2024-01-01", "id_note.txt") {
		t.Errorf("unexpected local path %q", p)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("second Delete should be a no-op: %v", err)
	}
	if _, err := s.Open(ctx, key); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_MoveAddsSuffixOnConflict(t *testing.T) {
	ctx := context.Background()
	s, _ := NewLocalStore(t.TempDir())

	_ = s.Put(ctx, "unfiled/a.pdf", strings.NewReader("a"))
	_ = s.Put(ctx, "unfiled/b.pdf", strings.NewReader("b"))

	got, err := s.Move(ctx, "unfiled/a.pdf", "ACME/2024-01-01/doc.pdf")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got != "ACME/2024-01-01/doc.pdf" {
		t.Errorf("got %q", got)
	}

	got, err = s.Move(ctx, "unfiled/b.pdf", "ACME/2024-01-01/doc.pdf")
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if got != "ACME/2024-01-01/doc_1.pdf" {
		t.Errorf("got %q, want suffixed key", got)
	}
	if ok, _ := s.Exists(ctx, "unfiled/b.pdf"); ok {
		t.Error("source should be gone after move")
	}

	if _, err := s.Move(ctx, "unfiled/missing.pdf", "x/y.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, _ := NewLocalStore(t.TempDir())
	if err := s.Put(context.Background(), "../escape.txt", strings.NewReader("x")); err == nil {
		t.Error("expected traversal key to be rejected")
	}
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	if _, err := NewS3Store(context.Background(), S3Config{}); err == nil {
		t.Error("expected error without bucket")
	}
}

func TestS3ObjectKeyAndCopySource(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "test")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test")
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_PROFILE", "")

	s, err := NewS3Store(context.Background(), S3Config{
		Bucket:   "docs",
		Region:   "eu-central-1",
		Endpoint: "http://localhost:9000",
		Prefix:   "/vault/",
	})
	if err != nil {
		t.Fatalf("NewS3Store: %v", err)
	}
	k, err := s.objectKey("ACME/2024-01-01/x.pdf")
	if err != nil || k != "vault/ACME/2024-01-01/x.pdf" {
		t.Errorf("got %q, %v", k, err)
	}
	if _, err := s.objectKey("../x"); err == nil {
		t.Error("expected invalid key error")
	}
	if got := copySource("docs", "A B/x.pdf"); got != "docs/A%20B/x.pdf" {
		t.Errorf("copySource: got %q", got)
	}
}
