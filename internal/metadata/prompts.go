package metadata

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a precise document metadata extractor. You read the text of scanned letters, invoices, contracts and similar paperwork and return structured metadata as JSON. Only state what the document supports; use null when a value is not present.`

const promptTemplate = `Analyze the following document and return a JSON object with exactly these fields:

{
  "title": "short descriptive title, at most 10 words",
  "summary": "1-3 sentence summary of the document",
  "correspondent": "sender or issuing organisation",
  "document_type": "kind of document, e.g. invoice, contract, letter",
  "document_date": "issue date as YYYY-MM-DD, or null",
  "tax_relevant": true or false,
  "tags": ["2 to 10 keywords"]
}
%s
Original filename: %s

Document text:
%s`

// maxVocabulary bounds how many known names are listed in the prompt.
const maxVocabulary = 50

// buildPrompt lists known names as preferred vocabulary so the model reuses
// existing entities instead of inventing near-duplicates.
func buildPrompt(text, filename string, v Vocab) string {
	var hints strings.Builder
	writeList := func(label string, names []string) {
		if len(names) == 0 {
			return
		}
		if len(names) > maxVocabulary {
			names = names[:maxVocabulary]
		}
		fmt.Fprintf(&hints, "\nPrefer one of these existing %s when it fits: %s", label, strings.Join(names, ", "))
	}
	writeList("document types", v.DocTypes)
	writeList("correspondents", v.Correspondents)
	writeList("tags", v.Tags)
	if hints.Len() > 0 {
		hints.WriteString("\n")
	}

	return fmt.Sprintf(promptTemplate, hints.String(), filename, text)
}

// truncateRunes cuts s to at most limit characters without splitting a rune.
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
