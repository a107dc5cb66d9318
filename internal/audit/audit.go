// Package audit is the append-only processing log: one record per stage
// transition, error or maintenance operation.
package audit

import "time"

// Status is the outcome recorded by an entry.
type Status string

const (
	StatusInfo    Status = "info"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusInfo, StatusSuccess, StatusError:
		return true
	}
	return false
}

// Operation names used by the pipeline and maintenance jobs.
const (
	OpUpload    = "upload"
	OpOCR       = "ocr"
	OpAI        = "ai"
	OpVector    = "vector"
	OpRelocate  = "relocate"
	OpReprocess = "reprocess"
	OpRecovery  = "recovery"
	OpReindex   = "reindex"
	OpVerify    = "verify"
	OpStaging   = "staging"
	OpDelete    = "delete"
)

// Entry is a single processing log record. DocumentID is empty for global
// operations such as a full reindex.
type Entry struct {
	ID            string    `json:"id"`
	DocumentID    string    `json:"document_id,omitempty"`
	Operation     string    `json:"operation"`
	Status        Status    `json:"status"`
	Message       string    `json:"message"`
	ExecutionTime float64   `json:"execution_time"`
	CreatedAt     time.Time `json:"created_at"`
}
