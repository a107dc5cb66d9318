package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchDocumentsTool defines the search_documents MCP tool.
var searchDocumentsTool = mcp.NewTool("search_documents",
	mcp.WithDescription("Search the document archive by text or meaning. Returns matching documents with their metadata."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Search text; an empty string lists documents matching the filters"),
	),
	mcp.WithBoolean("semantic",
		mcp.Description("Search by meaning instead of literal text (default false)"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
	mcp.WithString("date_range",
		mcp.Description("Restrict by document date"),
		mcp.Enum("today", "yesterday", "last_7_days", "last_30_days", "last_90_days",
			"this_week", "last_week", "this_month", "last_month", "this_quarter",
			"last_quarter", "this_year", "last_year", "last_2_years"),
	),
	mcp.WithBoolean("tax_relevant",
		mcp.Description("Only documents marked (true) or not marked (false) as tax relevant"),
	),
)

// askDocumentsTool defines the ask_documents MCP tool.
var askDocumentsTool = mcp.NewTool("ask_documents",
	mcp.WithDescription("Answer a question from the content of the archived documents, citing sources as [Doc1], [Doc2]."),
	mcp.WithString("question",
		mcp.Required(),
		mcp.Description("Natural language question"),
	),
	mcp.WithArray("document_ids",
		mcp.Description("Answer from exactly these documents instead of searching"),
		mcp.Items(map[string]any{"type": "string"}),
	),
	mcp.WithNumber("max_documents",
		mcp.Description("How many documents to retrieve when searching (default 5, max 20)"),
	),
)

// getDocumentTool defines the get_document MCP tool.
var getDocumentTool = mcp.NewTool("get_document",
	mcp.WithDescription("Get the metadata, processing state and optionally the extracted text of one document."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Document ID"),
	),
	mcp.WithBoolean("include_text",
		mcp.Description("Include the full extracted text (default false)"),
	),
)

// findSimilarTool defines the find_similar_documents MCP tool.
var findSimilarTool = mcp.NewTool("find_similar_documents",
	mcp.WithDescription("Find documents whose content is similar to the given document."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Document ID"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
	mcp.WithNumber("threshold",
		mcp.Description("Minimum similarity between 0 and 1 (default 0.3)"),
	),
)
