package rag

import (
	"fmt"
	"strings"

	"github.com/ziadkadry99/docvault/internal/documents"
)

// contextDoc is one document as it appears in the prompt.
type contextDoc struct {
	Ref      string // Doc1, Doc2, ...
	Document documents.Document
	Excerpt  string
}

// documentText is what a document contributes to the context.
func documentText(d *documents.Document) string {
	if t := strings.TrimSpace(d.FullText); t != "" {
		return t
	}
	return strings.TrimSpace(d.Summary)
}

// allocate splits budget characters across texts. Each text gets an equal
// share of what is left; whatever a short text does not use rolls over to
// the texts after it.
func allocate(texts []string, budget int) []string {
	out := make([]string, len(texts))
	remaining := budget
	for i, t := range texts {
		share := remaining / (len(texts) - i)
		out[i] = truncateRunes(t, share)
		remaining -= len([]rune(out[i]))
	}
	return out
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// minExcerpt is the smallest share a context document is given. When the
// budget cannot give every document that much, the lowest ranked are left out.
const minExcerpt = 100

// buildContext numbers the documents that have text and fits them into
// budget characters.
func buildContext(docs []documents.Document, budget int) []contextDoc {
	var (
		withText []documents.Document
		texts    []string
	)
	for i := range docs {
		if t := documentText(&docs[i]); t != "" {
			withText = append(withText, docs[i])
			texts = append(texts, t)
		}
	}
	if limit := max(budget/minExcerpt, 1); len(texts) > limit {
		withText, texts = withText[:limit], texts[:limit]
	}
	excerpts := allocate(texts, budget)

	var out []contextDoc
	for i := range withText {
		if excerpts[i] == "" {
			continue
		}
		out = append(out, contextDoc{
			Ref:      fmt.Sprintf("Doc%d", len(out)+1),
			Document: withText[i],
			Excerpt:  excerpts[i],
		})
	}
	return out
}

func displayTitle(d *documents.Document) string {
	if d.Title != "" {
		return d.Title
	}
	return d.Filename
}

const systemPrompt = `You are a knowledgeable assistant that answers questions using only the provided document context. Be accurate and complete, and say so plainly when the documents do not contain the answer.`

func buildPrompt(question string, docs []contextDoc) string {
	var refs, ctx strings.Builder
	for _, d := range docs {
		fmt.Fprintf(&refs, "%s (%s) - ID: %s\n", d.Ref, displayTitle(&d.Document), d.Document.ID)
		fmt.Fprintf(&ctx, "[%s: %s]:\n%s\n\n", d.Ref, displayTitle(&d.Document), d.Excerpt)
	}

	return fmt.Sprintf(`Answer the question using the document context below.

Instructions:
- Use Markdown formatting.
- Cite sources with the exact references listed, in the form [Doc1], [Doc2].
- Quote relevant passages with their citation: "quoted text" ([Doc1]).
- If the documents do not contain the information, say so instead of guessing.

Available document references:
%s
Context documents:
%s
Question: %s`, refs.String(), ctx.String(), question)
}
