package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/rag"
	"github.com/ziadkadry99/docvault/internal/relations"
	"github.com/ziadkadry99/docvault/internal/search"
)

// handleSearchDocuments runs a lexical or semantic search.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	req := search.Request{
		Query:       query,
		UseSemantic: request.GetBool("semantic", false),
		Limit:       limit,
		Filters:     search.Filters{DatePreset: request.GetString("date_range", "")},
	}
	if v, ok := request.GetArguments()["tax_relevant"].(bool); ok {
		req.Filters.IsTaxRelevant = &v
	}

	res, err := s.deps.Search.Search(ctx, req)
	if err != nil {
		return toolError("search failed", err), nil
	}
	if len(res.Documents) == 0 {
		return mcp.NewToolResultText("No documents found."), nil
	}
	return mcp.NewToolResultText(formatSearchResult(res)), nil
}

// handleAskDocuments answers a question with citations.
func (s *Server) handleAskDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: question"), nil
	}
	if s.deps.Answerer == nil {
		return mcp.NewToolResultError("question answering is unavailable: no AI provider configured"), nil
	}

	resp, err := s.deps.Answerer.Answer(ctx, rag.Request{
		Question:     question,
		DocumentIDs:  request.GetStringSlice("document_ids", nil),
		MaxDocuments: request.GetInt("max_documents", 0),
	})
	if err != nil {
		return toolError("answering failed", err), nil
	}
	if resp.NoDocuments {
		return mcp.NewToolResultText("No relevant documents were found to answer the question."), nil
	}
	return mcp.NewToolResultText(formatAnswer(resp)), nil
}

// handleGetDocument returns one document.
func (s *Server) handleGetDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}

	doc, err := s.deps.Documents.Get(ctx, id)
	if err != nil {
		return toolError("lookup failed", err), nil
	}
	return mcp.NewToolResultText(formatDocument(doc, request.GetBool("include_text", false))), nil
}

// handleFindSimilar lists documents with similar content.
func (s *Server) handleFindSimilar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: id"), nil
	}
	if s.deps.Similar == nil {
		return mcp.NewToolResultError("similarity search is unavailable: no vector store configured"), nil
	}

	limit := request.GetInt("limit", relations.DefaultSimilarLimit)
	threshold := request.GetFloat("threshold", s.deps.SimilarThreshold)
	similar, err := s.deps.Similar.FindSimilar(ctx, id, limit, threshold)
	if err != nil {
		return toolError("similarity search failed", err), nil
	}
	if len(similar) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No documents similar to %s above threshold %.2f. The document may not be indexed yet.", id, threshold)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d similar document(s):\n", len(similar))
	for i, d := range similar {
		fmt.Fprintf(&sb, "%d. %s [%s] (similarity %.2f) %s\n", i+1, titleOr(d.Title, d.Filename), d.ID, d.Score, d.Filename)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func toolError(prefix string, err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.NotFound), errors.Is(err, apperr.ValidationFailure):
		return mcp.NewToolResultError(err.Error())
	default:
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", prefix, err))
	}
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}

// formatSearchResult renders hits in a compact form for AI agents.
func formatSearchResult(res *search.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d document(s), showing %d (%s search)", res.TotalCount, len(res.Documents), res.Mode)
	if res.Fallback {
		fmt.Fprintf(&sb, "; semantic search was unavailable: %s", res.FallbackReason)
	}
	sb.WriteString("\n")

	for i, h := range res.Documents {
		fmt.Fprintf(&sb, "\n--- Result %d ---\n", i+1)
		writeSummary(&sb, &h.Document)
		if h.Score > 0 {
			fmt.Fprintf(&sb, "Score: %.3f\n", h.Score)
		}
	}
	return sb.String()
}

func formatAnswer(resp *rag.Response) string {
	var sb strings.Builder
	sb.WriteString(resp.Answer)
	sb.WriteString("\n\nSources:\n")
	for _, src := range resp.Sources {
		fmt.Fprintf(&sb, "[%s] %s (id %s)\n", src.Citation, titleOr(src.Title, src.Filename), src.ID)
	}
	return sb.String()
}

func formatDocument(doc *documents.Document, includeText bool) string {
	var sb strings.Builder
	writeSummary(&sb, doc)
	fmt.Fprintf(&sb, "Status: ocr=%s ai=%s vector=%s\n", doc.OCRStatus, doc.AIStatus, doc.VectorStatus)
	if doc.ReminderDate != nil {
		fmt.Fprintf(&sb, "Reminder: %s\n", doc.ReminderDate.Format("2006-01-02"))
	}
	if doc.Notes != "" {
		fmt.Fprintf(&sb, "Notes: %s\n", doc.Notes)
	}
	if includeText && doc.FullText != "" {
		sb.WriteString("\n--- Text ---\n")
		sb.WriteString(doc.FullText)
		sb.WriteString("\n")
	}
	return sb.String()
}

func writeSummary(sb *strings.Builder, doc *documents.Document) {
	fmt.Fprintf(sb, "ID: %s\n", doc.ID)
	fmt.Fprintf(sb, "Title: %s\n", titleOr(doc.Title, doc.Filename))
	fmt.Fprintf(sb, "File: %s\n", doc.Filename)
	if doc.CorrespondentName != "" {
		fmt.Fprintf(sb, "Correspondent: %s\n", doc.CorrespondentName)
	}
	if doc.DocTypeName != "" {
		fmt.Fprintf(sb, "Type: %s\n", doc.DocTypeName)
	}
	if doc.DocumentDate != nil {
		fmt.Fprintf(sb, "Date: %s\n", doc.DocumentDate.Format("2006-01-02"))
	}
	if tags := doc.TagNames(); len(tags) > 0 {
		fmt.Fprintf(sb, "Tags: %s\n", strings.Join(tags, ", "))
	}
	if doc.IsTaxRelevant {
		sb.WriteString("Tax relevant: yes\n")
	}
	if doc.Summary != "" {
		fmt.Fprintf(sb, "Summary: %s\n", doc.Summary)
	}
}
