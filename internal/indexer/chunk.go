package indexer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/vectordb"
)

// Header renders the metadata block that is prefixed to every chunk so
// each vector carries the document's identity.
func Header(doc *documents.Document) string {
	var parts []string
	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", label, value))
		}
	}
	add("Title", doc.Title)
	add("Filename", doc.Filename)
	add("Correspondent", doc.CorrespondentName)
	add("Document type", doc.DocTypeName)
	if doc.DocumentDate != nil {
		add("Date", doc.DocumentDate.Format("2006-01-02"))
	}
	if names := doc.TagNames(); len(names) > 0 {
		add("Tags", strings.Join(names, ", "))
	}
	if doc.IsTaxRelevant {
		add("Tax relevant", "yes")
	}
	add("Summary", doc.Summary)
	return strings.Join(parts, "\n")
}

// ChunkDocument builds the chunks stored for doc. The body is the full text,
// falling back to the summary; a document without either still yields one
// header-only chunk.
func ChunkDocument(doc *documents.Document, size, overlap int) []vectordb.Chunk {
	header := Header(doc)
	body := strings.TrimSpace(doc.FullText)
	if body == "" {
		body = strings.TrimSpace(doc.Summary)
	}

	pieces := SplitText(body, size, overlap)
	if len(pieces) == 0 {
		pieces = []string{""}
	}

	title := doc.Title
	if title == "" {
		title = doc.Filename
	}

	chunks := make([]vectordb.Chunk, 0, len(pieces))
	for i, p := range pieces {
		content := header
		if p != "" {
			if content != "" {
				content += "\n\n"
			}
			content += p
		}
		chunks = append(chunks, vectordb.Chunk{
			ID:         vectordb.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Index:      i,
			Title:      title,
			Content:    content,
		})
	}
	return chunks
}

// SplitText splits text into chunks of at most size characters where
// consecutive chunks share about overlap characters. Cuts prefer paragraph,
// line and sentence boundaries in the last fifth of a window.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 || utf8.RuneCountInString(text) <= size {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			if c := strings.TrimSpace(string(runes[start:])); c != "" {
				chunks = append(chunks, c)
			}
			break
		}
		end = boundary(runes, start, end)
		if c := strings.TrimSpace(string(runes[start:end])); c != "" {
			chunks = append(chunks, c)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// boundary moves end back to the best break in runes[start:end], searching
// only the final fifth of the window.
func boundary(runes []rune, start, end int) int {
	floor := end - (end-start)/5
	for _, sep := range []string{"\n\n", "\n", ". ", "? ", "! ", " "} {
		sr := []rune(sep)
		for i := end - len(sr); i >= floor; i-- {
			if hasRunes(runes, i, sr) {
				return i + len(sr)
			}
		}
	}
	return end
}

func hasRunes(runes []rune, at int, want []rune) bool {
	if at < 0 || at+len(want) > len(runes) {
		return false
	}
	for j, r := range want {
		if runes[at+j] != r {
			return false
		}
	}
	return true
}
