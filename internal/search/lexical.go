package search

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/ziadkadry99/docvault/internal/documents"
)

// Field weights for a lexical hit.
const (
	weightTitle    = 8
	weightFilename = 4
	weightSummary  = 2
	weightFullText = 1

	maxOccurrences   = 10
	occurrenceWeight = 0.25
)

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// Fold lowercases s and spells out German umlauts so that "Müller",
// "MUELLER" and "mueller" compare equal.
func Fold(s string) string {
	// Casers are stateful and must not be shared between goroutines.
	s = cases.Fold().String(norm.NFC.String(s))
	return umlauts.Replace(s)
}

// lexicalScore rates how well doc matches the folded needle. Zero means no
// field contains it.
func lexicalScore(doc *documents.Document, needle string) float64 {
	fields := []struct {
		text   string
		weight float64
	}{
		{doc.Title, weightTitle},
		{doc.Filename, weightFilename},
		{doc.Summary, weightSummary},
		{doc.FullText, weightFullText},
	}

	var (
		score       float64
		occurrences int
		positioned  bool
	)
	for _, f := range fields {
		if f.text == "" {
			continue
		}
		hay := Fold(f.text)
		n := strings.Count(hay, needle)
		if n == 0 {
			continue
		}
		score += f.weight
		occurrences += n
		if !positioned {
			// Earlier hits in the most important matching field rank higher.
			score += 1 - float64(strings.Index(hay, needle))/float64(len(hay))
			positioned = true
		}
	}
	if occurrences > maxOccurrences {
		occurrences = maxOccurrences
	}
	return score + float64(occurrences)*occurrenceWeight
}

// rankLexical keeps the documents matching query and orders them by score,
// then created_at DESC, then id.
func rankLexical(docs []documents.Document, query string) []Hit {
	needle := Fold(strings.TrimSpace(query))
	var hits []Hit
	for i := range docs {
		if s := lexicalScore(&docs[i], needle); s > 0 {
			hits = append(hits, Hit{Document: docs[i], Score: s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return hits
}
