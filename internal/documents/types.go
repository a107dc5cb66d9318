// Package documents is the relational store of documents, their processing
// stage status and the correspondents, document types and tags they refer to.
package documents

import "time"

// Stage names one step of the processing pipeline.
type Stage string

const (
	StageOCR    Stage = "ocr"
	StageAI     Stage = "ai"
	StageVector Stage = "vector"
)

// Stages lists the pipeline stages in execution order.
var Stages = []Stage{StageOCR, StageAI, StageVector}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s == StageOCR || s == StageAI || s == StageVector
}

func (s Stage) column() string {
	return string(s) + "_status"
}

// StageStatus is the state of a single stage.
type StageStatus string

const (
	StatusPending    StageStatus = "pending"
	StatusProcessing StageStatus = "processing"
	StatusCompleted  StageStatus = "completed"
	StatusFailed     StageStatus = "failed"
)

// Statuses lists every stage status.
var Statuses = []StageStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// Document is an uploaded file together with everything derived from it.
// AI fields are only meaningful once AIStatus is completed and FullText only
// once OCRStatus is completed.
type Document struct {
	ID               string `json:"id"`
	Filename         string `json:"filename"`
	FilePath         string `json:"file_path"`
	FileHash         string `json:"file_hash"`
	MimeType         string `json:"mime_type"`
	FileSize         int64  `json:"file_size"`
	FullText         string `json:"full_text,omitempty"`
	ExtractionMethod string `json:"extraction_method,omitempty"`

	Title             string     `json:"title"`
	Summary           string     `json:"summary"`
	CorrespondentID   string     `json:"correspondent_id,omitempty"`
	CorrespondentName string     `json:"correspondent,omitempty"`
	DocTypeID         string     `json:"doctype_id,omitempty"`
	DocTypeName       string     `json:"doctype,omitempty"`
	DocumentDate      *time.Time `json:"document_date,omitempty"`
	IsTaxRelevant     bool       `json:"is_tax_relevant"`
	Tags              []Tag      `json:"tags"`
	AIRawResponse     string     `json:"-"`

	IsApproved   bool       `json:"is_approved"`
	ApprovedBy   string     `json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ViewCount    int        `json:"view_count"`
	LastViewedAt *time.Time `json:"last_viewed_at,omitempty"`

	OCRStatus    StageStatus `json:"ocr_status"`
	AIStatus     StageStatus `json:"ai_status"`
	VectorStatus StageStatus `json:"vector_status"`

	ReminderDate *time.Time `json:"reminder_date,omitempty"`
	Notes        string     `json:"notes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
}

// Status returns the status of the given stage.
func (d *Document) Status(stage Stage) StageStatus {
	switch stage {
	case StageOCR:
		return d.OCRStatus
	case StageAI:
		return d.AIStatus
	case StageVector:
		return d.VectorStatus
	}
	return ""
}

// HasFailedStage reports whether any stage ended in failure.
func (d *Document) HasFailedStage() bool {
	return d.OCRStatus == StatusFailed || d.AIStatus == StatusFailed || d.VectorStatus == StatusFailed
}

// TagNames returns the names of the document's tags.
func (d *Document) TagNames() []string {
	names := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		names = append(names, t.Name)
	}
	return names
}

// Correspondent is the sender or issuer of documents.
type Correspondent struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Address       string    `json:"address"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// DocType classifies documents (invoice, contract, ...).
type DocType struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	DocumentCount int       `json:"document_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Tag is a free-form label.
type Tag struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Color         string    `json:"color"`
	DocumentCount int       `json:"document_count,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DefaultTagColor is used for tags created without a color.
const DefaultTagColor = "#6b7280"

// ListOptions paginates List.
type ListOptions struct {
	Limit  int
	Offset int
}

// Query selects documents by their structured attributes. Empty slices and
// nil pointers do not constrain the result. ID lists are ORed internally and
// the criteria are ANDed together.
type Query struct {
	CorrespondentIDs []string
	DocTypeIDs       []string
	TagIDs           []string
	TaxRelevant      *bool
	DateFrom         *time.Time
	DateTo           *time.Time
	Reminder         ReminderState
	// Now is the reference date for ReminderOverdue; zero means today.
	Now time.Time
}

// ReminderState filters by reminder presence.
type ReminderState string

const (
	ReminderAny     ReminderState = ""
	ReminderHas     ReminderState = "has"
	ReminderOverdue ReminderState = "overdue"
	ReminderNone    ReminderState = "none"
)

// Valid reports whether r is a known reminder filter.
func (r ReminderState) Valid() bool {
	switch r {
	case ReminderAny, ReminderHas, ReminderOverdue, ReminderNone:
		return true
	}
	return false
}

// Update holds the user-editable fields; nil leaves a field unchanged.
// For the ID and date fields an empty string clears the value.
type Update struct {
	Title           *string `json:"title"`
	Summary         *string `json:"summary"`
	CorrespondentID *string `json:"correspondent_id"`
	DocTypeID       *string `json:"doctype_id"`
	DocumentDate    *string `json:"document_date"`
	IsTaxRelevant   *bool   `json:"is_tax_relevant"`
	ReminderDate    *string `json:"reminder_date"`
	Notes           *string `json:"notes"`
}

// Approval is the review state of a document.
type Approval struct {
	DocumentID string     `json:"document_id"`
	Approved   bool       `json:"approved"`
	ApprovedBy string     `json:"approved_by,omitempty"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

// Stats summarises the collection.
type Stats struct {
	Total        int                           `json:"total"`
	TotalSize    int64                         `json:"total_size"`
	TaxRelevant  int                           `json:"tax_relevant"`
	Approved     int                           `json:"approved"`
	WithReminder int                           `json:"with_reminder"`
	Stages       map[Stage]map[StageStatus]int `json:"stages"`
	ByDocType    map[string]int                `json:"by_doctype"`
}

// Suggestions are name completions for the search box.
type Suggestions struct {
	Correspondents []string `json:"correspondents"`
	DocTypes       []string `json:"doctypes"`
	Tags           []string `json:"tags"`
	Titles         []string `json:"titles"`
}
