package metadata

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// rawMetadata accepts the field spellings and loose types models produce.
type rawMetadata struct {
	Title         string          `json:"title"`
	Summary       string          `json:"summary"`
	Correspondent string          `json:"correspondent"`
	Sender        string          `json:"sender"`
	DocumentType  string          `json:"document_type"`
	DocumentDate  json.RawMessage `json:"document_date"`
	Date          json.RawMessage `json:"date"`
	TaxRelevant   json.RawMessage `json:"tax_relevant"`
	Tags          json.RawMessage `json:"tags"`
}

// Parse interprets a provider response. Code fences and prose around the
// JSON object are tolerated.
func Parse(raw, filename string) Outcome {
	out := Outcome{raw: raw, filename: filename}

	obj, ok := extractObject(stripFences(raw))
	if !ok {
		return out
	}
	var r rawMetadata
	if err := json.Unmarshal([]byte(obj), &r); err != nil {
		return out
	}

	m := Metadata{
		Title:         strings.TrimSpace(r.Title),
		Summary:       strings.TrimSpace(r.Summary),
		Correspondent: strings.TrimSpace(r.Correspondent),
		DocumentType:  strings.TrimSpace(r.DocumentType),
		Tags:          parseTags(r.Tags),
		TaxRelevant:   parseBool(r.TaxRelevant),
	}
	if m.Correspondent == "" {
		m.Correspondent = strings.TrimSpace(r.Sender)
	}
	dateRaw := r.DocumentDate
	if len(dateRaw) == 0 {
		dateRaw = r.Date
	}
	m.DocumentDate = parseDateValue(dateRaw)

	out.parsed = &m
	return out
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip markdown code fences if present.
	if strings.HasPrefix(raw, "```") {
		lines := strings.Split(raw, "\n")
		if len(lines) >= 2 {
			start := 1
			end := len(lines)
			if strings.TrimSpace(lines[end-1]) == "```" {
				end--
			}
			raw = strings.Join(lines[start:end], "\n")
		}
	}
	return raw
}

// extractObject returns the outermost {...} span, honouring JSON strings.
func extractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func parseTags(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		list = strings.Split(s, ",")
	}

	seen := make(map[string]bool)
	var tags []string
	for _, t := range list {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		tags = append(tags, t)
	}
	return tags
}

func parseBool(raw json.RawMessage) *bool {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "ja", "1":
		b = true
	case "false", "no", "nein", "0":
		b = false
	default:
		return nil
	}
	return &b
}

func parseDateValue(raw json.RawMessage) *time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	t, err := ParseDate(s)
	if err != nil {
		return nil
	}
	return &t
}

var dateLayouts = []string{"2006-01-02", "02.01.2006", "2.1.2006", time.RFC3339}

// ParseDate accepts YYYY-MM-DD, DD.MM.YYYY and RFC 3339 and returns the
// calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}
