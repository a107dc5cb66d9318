// Package storage keeps original document files under stable keys. Keys are
// slash-separated relative paths such as "unfiled/2024-05-01/{id}_scan.pdf".
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("object not found")

// Store is a file store addressed by keys.
type Store interface {
	// Put writes r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader) error

	// Open returns a reader for key. Callers close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Move relocates from to to. If to is taken, a "_N" suffix is added
	// before the extension. It returns the key actually used.
	Move(ctx context.Context, from, to string) (string, error)

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Fetch makes key available as a local file, for tools that need a path.
	// release must be called when the file is no longer needed.
	Fetch(ctx context.Context, key string) (localPath string, release func(), err error)
}

const unfiledPrefix = "unfiled"

// IntakeKey is where a freshly uploaded file is kept until its metadata is known.
func IntakeKey(id, filename string, now time.Time) string {
	return path.Join(unfiledPrefix, now.Format("2006-01-02"), id+"_"+SanitizeFilename(filename))
}

// FiledKey is the final location of a document once correspondent and date
// are known. Missing values fall back to "unknown_correspondent" and today.
func FiledKey(correspondent string, documentDate *time.Time, id, filename string, now time.Time) string {
	folder := "unknown_correspondent"
	if correspondent != "" {
		folder = SanitizeFolder(correspondent)
	}
	date := now
	if documentDate != nil {
		date = *documentDate
	}
	return path.Join(folder, date.Format("2006-01-02"), id+"_"+SanitizeFilename(filename))
}

var invalidFolderChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// SanitizeFolder turns a name into a single safe path segment of at most 50 bytes.
func SanitizeFolder(name string) string {
	s := invalidFolderChars.ReplaceAllString(name, "_")
	s = strings.Trim(s, " .")
	if len(s) > 50 {
		s = strings.TrimRight(truncateUTF8(s, 50), " ")
	}
	if s == "" {
		return "Unknown"
	}
	return s
}

var filenameReplacer = strings.NewReplacer("/", "_", "\\", "_", "..", "_", "~", "_", "\x00", "_", "\n", "_", "\r", "_", "\t", "_")

// SanitizeFilename strips directory components and characters that could
// escape the storage root.
func SanitizeFilename(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	filename = filenameReplacer.Replace(filename)

	ext := path.Ext(filename)
	name := strings.TrimSuffix(filename, ext)
	if len(name) > 200 {
		name = truncateUTF8(name, 200)
	}
	filename = name + ext

	if strings.TrimSpace(filename) == "" {
		return "unnamed_file"
	}
	return filename
}

// ValidKey rejects empty, absolute and parent-relative keys.
func ValidKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid storage key %q", key)
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return fmt.Errorf("invalid storage key %q", key)
		}
	}
	return nil
}

// candidateKey returns key with "_n" inserted before the extension.
func candidateKey(key string, n int) string {
	if n == 0 {
		return key
	}
	ext := path.Ext(key)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(key, ext), n, ext)
}

func truncateUTF8(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !isRuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
