// Package walker lists candidate files in a staging folder.
package walker

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"time"
)

// FileInfo holds metadata about a single file discovered during traversal.
type FileInfo struct {
	Path    string    `json:"path"`     // Absolute path on disk.
	RelPath string    `json:"rel_path"` // Slash-separated path relative to the root.
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// WalkerConfig controls the behaviour of the Walk function.
type WalkerConfig struct {
	RootDir     string   // Root directory to walk.
	Include     []string // Glob patterns; only matching files are included.
	Exclude     []string // Glob patterns; matching files are excluded.
	MaxFileSize int64    // Larger files are skipped; 0 means no limit.
	Recursive   bool     // Descend into subdirectories.
	// MinAge skips files modified more recently than this, so files that
	// are still being copied in are left for a later pass.
	MinAge time.Duration
}

// Walk returns every regular file under config.RootDir that passes the
// filters, sorted by relative path.
func Walk(config WalkerConfig) ([]FileInfo, error) {
	root, err := filepath.Abs(config.RootDir)
	if err != nil {
		return nil, fmt.Errorf("walker: resolve root: %w", err)
	}
	now := time.Now()

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			// Skip entries we cannot read instead of aborting.
			return nil
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !config.Recursive || shouldExcludeDir(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if MatchesExclude(name, DefaultExcludes) {
			return nil
		}
		if !MatchesInclude(relPath, config.Include) || MatchesExclude(relPath, config.Exclude) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if config.MaxFileSize > 0 && info.Size() > config.MaxFileSize {
			return nil
		}
		if config.MinAge > 0 && now.Sub(info.ModTime()) < config.MinAge {
			return nil
		}

		files = append(files, FileInfo{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walker: traversal: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
