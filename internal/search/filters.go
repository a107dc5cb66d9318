package search

import (
	"strings"
	"time"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/db"
	"github.com/ziadkadry99/docvault/internal/documents"
)

// Filters narrows a search to documents with matching attributes. IDs within
// one list are ORed; the categories are ANDed. DatePreset wins over
// DateFrom/DateTo, which are YYYY-MM-DD.
type Filters struct {
	CorrespondentIDs []string `json:"correspondent_ids,omitempty"`
	DocTypeIDs       []string `json:"doctype_ids,omitempty"`
	TagIDs           []string `json:"tag_ids,omitempty"`
	IsTaxRelevant    *bool    `json:"is_tax_relevant,omitempty"`
	DatePreset       string   `json:"date_range,omitempty"`
	DateFrom         string   `json:"date_from,omitempty"`
	DateTo           string   `json:"date_to,omitempty"`
	Reminder         string   `json:"reminder,omitempty"`
}

// Query converts f into a documents.Query evaluated at now.
func (f Filters) Query(now time.Time) (documents.Query, error) {
	const op = "search.filters"
	q := documents.Query{
		CorrespondentIDs: compact(f.CorrespondentIDs),
		DocTypeIDs:       compact(f.DocTypeIDs),
		TagIDs:           compact(f.TagIDs),
		TaxRelevant:      f.IsTaxRelevant,
		Reminder:         documents.ReminderState(strings.ToLower(strings.TrimSpace(f.Reminder))),
		Now:              now,
	}
	if !q.Reminder.Valid() {
		return q, apperr.New(apperr.ValidationFailure, op, "unknown reminder state %q", f.Reminder)
	}

	if preset := strings.TrimSpace(f.DatePreset); preset != "" {
		from, to, err := PresetRange(preset, now)
		if err != nil {
			return q, err
		}
		q.DateFrom, q.DateTo = &from, &to
		return q, nil
	}

	var err error
	if q.DateFrom, err = parseDate(op, "date_from", f.DateFrom); err != nil {
		return q, err
	}
	if q.DateTo, err = parseDate(op, "date_to", f.DateTo); err != nil {
		return q, err
	}
	if q.DateFrom != nil && q.DateTo != nil && q.DateFrom.After(*q.DateTo) {
		return q, apperr.New(apperr.ValidationFailure, op, "date_from %s is after date_to %s", f.DateFrom, f.DateTo)
	}
	return q, nil
}

func parseDate(op, field, v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(db.DateFormat, v)
	if err != nil {
		return nil, apperr.New(apperr.ValidationFailure, op, "invalid %s %q: expected YYYY-MM-DD", field, v)
	}
	return &t, nil
}

func compact(ids []string) []string {
	var out []string
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
