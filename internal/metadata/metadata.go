// Package metadata asks the AI provider for structured document metadata and
// parses its answer into a tagged Outcome.
package metadata

import (
	"strings"
	"time"
)

// Metadata is what the AI inferred about a document. Empty strings mean the
// field was absent; DocumentDate and TaxRelevant are nil when unknown.
type Metadata struct {
	Title         string
	Summary       string
	Correspondent string
	DocumentType  string
	DocumentDate  *time.Time
	TaxRelevant   *bool
	Tags          []string
}

// IsTaxRelevant treats an unknown flag as false.
func (m Metadata) IsTaxRelevant() bool {
	return m.TaxRelevant != nil && *m.TaxRelevant
}

// Outcome is either Parsed metadata or a ParseFailure holding the raw
// provider output.
type Outcome struct {
	parsed   *Metadata
	raw      string
	filename string
}

// Parsed returns the metadata when parsing succeeded.
func (o Outcome) Parsed() (Metadata, bool) {
	if o.parsed == nil {
		return Metadata{}, false
	}
	return *o.parsed, true
}

// ParseFailure returns the raw output when it could not be parsed.
func (o Outcome) ParseFailure() (string, bool) {
	if o.parsed != nil {
		return "", false
	}
	return o.raw, true
}

// Raw is the unmodified provider output.
func (o Outcome) Raw() string {
	return o.raw
}

// Metadata always yields something storable: on parse failure the title is
// the filename and every other field is empty.
func (o Outcome) Metadata() Metadata {
	if o.parsed == nil {
		return Metadata{Title: o.filename}
	}
	m := *o.parsed
	if strings.TrimSpace(m.Title) == "" {
		m.Title = o.filename
	}
	return m
}
