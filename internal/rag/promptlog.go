package rag

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PromptLogFile is the file name of the prompt log inside the logs folder.
const PromptLogFile = "rag_prompts.log"

const keepPrompts = 5

// PromptEntry is one logged RAG prompt.
type PromptEntry struct {
	Timestamp   time.Time `json:"timestamp"`
	Question    string    `json:"question"`
	Prompt      string    `json:"prompt"`
	DocumentIDs []string  `json:"document_ids"`
	Titles      []string  `json:"document_titles"`
	Length      int       `json:"prompt_length"`
}

// PromptLog keeps the most recent prompts as JSON lines for debugging.
type PromptLog struct {
	mu   sync.Mutex
	path string
	keep int
}

// NewPromptLog logs to rag_prompts.log under dir.
func NewPromptLog(dir string) *PromptLog {
	return &PromptLog{path: filepath.Join(dir, PromptLogFile), keep: keepPrompts}
}

// Path returns the log file location.
func (l *PromptLog) Path() string { return l.path }

// Append adds e and drops all but the newest entries.
func (l *PromptLog) Append(e PromptEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.read()
	if err != nil {
		return err
	}
	entries = append(entries, e)
	if len(entries) > l.keep {
		entries = entries[len(entries)-l.keep:]
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("encoding prompt entry: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating logs folder: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing prompt log: %w", err)
	}
	return os.Rename(tmp, l.path)
}

// Entries returns the logged prompts, oldest first.
func (l *PromptLog) Entries() ([]PromptEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *PromptLog) read() ([]PromptEntry, error) {
	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening prompt log: %w", err)
	}
	defer f.Close()

	var entries []PromptEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var e PromptEntry
		// A corrupt line only loses that entry.
		if json.Unmarshal(sc.Bytes(), &e) == nil {
			entries = append(entries, e)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading prompt log: %w", err)
	}
	return entries, nil
}
