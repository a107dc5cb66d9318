package walker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// writeTree creates files (relative path → content) under a temp dir.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func relPaths(files []FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.RelPath
	}
	return out
}

func TestWalk_BasicTraversal(t *testing.T) {
	root := writeTree(t, map[string]string{
		"b.pdf":            "%PDF",
		"a.txt":            "hello",
		"sub/c.png":        "png",
		".hidden.pdf":      "x",
		"upload.part":      "x",
		"dupe/d.pdf":       "x",
		"duplicates/e.pdf": "x",
	})

	files, err := Walk(WalkerConfig{RootDir: root})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	got := strings.Join(relPaths(files), ",")
	if got != "a.txt,b.pdf" {
		t.Errorf("non-recursive walk = %s", got)
	}

	files, err = Walk(WalkerConfig{RootDir: root, Recursive: true})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	got = strings.Join(relPaths(files), ",")
	if got != "a.txt,b.pdf,dupe/d.pdf,sub/c.png" {
		t.Errorf("recursive walk = %s", got)
	}
}

func TestWalk_FileInfoFields(t *testing.T) {
	root := writeTree(t, map[string]string{"scan.pdf": "12345"})
	files, err := Walk(WalkerConfig{RootDir: root})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files", len(files))
	}
	f := files[0]
	if !filepath.IsAbs(f.Path) || f.RelPath != "scan.pdf" || f.Size != 5 || f.ModTime.IsZero() {
		t.Errorf("FileInfo = %+v", f)
	}
}

func TestWalk_IncludeByExtension(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.PDF":     "x",
		"b.txt":     "x",
		"c.exe":     "x",
		"sub/d.pdf": "x",
	})
	files, err := Walk(WalkerConfig{RootDir: root, Recursive: true, Include: ExtensionPatterns([]string{"pdf", ".TXT"})})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	got := strings.Join(relPaths(files), ",")
	if got != "a.PDF,b.txt,sub/d.pdf" {
		t.Errorf("got %s", got)
	}
}

func TestWalk_ExcludeFilter(t *testing.T) {
	root := writeTree(t, map[string]string{
		"keep.pdf":        "x",
		"draft-1.pdf":     "x",
		"archive/old.pdf": "x",
	})
	files, err := Walk(WalkerConfig{RootDir: root, Recursive: true, Exclude: []string{"draft-*", "archive/**"}})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if got := strings.Join(relPaths(files), ","); got != "keep.pdf" {
		t.Errorf("got %s", got)
	}
}

func TestWalk_SkipsLargeFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"small.txt": "tiny",
		"large.txt": strings.Repeat("x", 2048),
	})
	files, err := Walk(WalkerConfig{RootDir: root, MaxFileSize: 1024})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if got := strings.Join(relPaths(files), ","); got != "small.txt" {
		t.Errorf("got %s", got)
	}
}

func TestWalk_MinAge(t *testing.T) {
	root := writeTree(t, map[string]string{"old.pdf": "x", "fresh.pdf": "x"})
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(root, "old.pdf"), past, past); err != nil {
		t.Fatal(err)
	}
	files, err := Walk(WalkerConfig{RootDir: root, MinAge: time.Minute})
	if err != nil {
		t.Fatalf("Walk() error: %v", err)
	}
	if got := strings.Join(relPaths(files), ","); got != "old.pdf" {
		t.Errorf("got %s", got)
	}
}

func TestWalk_MissingRoot(t *testing.T) {
	if _, err := Walk(WalkerConfig{RootDir: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("expected error for missing root")
	}
}

func TestMatchesInclude(t *testing.T) {
	tests := []struct {
		path     string
		patterns []string
		want     bool
	}{
		{"a.pdf", nil, true},
		{"a.pdf", []string{"**/*.pdf"}, true},
		{"x/y/a.PDF", []string{"**/*.pdf"}, true},
		{"a.txt", []string{"**/*.pdf"}, false},
		{"sub/a.txt", []string{"*.txt"}, true},
	}
	for _, tt := range tests {
		if got := MatchesInclude(tt.path, tt.patterns); got != tt.want {
			t.Errorf("MatchesInclude(%q, %v) = %v, want %v", tt.path, tt.patterns, got, tt.want)
		}
	}
}
