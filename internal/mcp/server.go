// Package mcp exposes document search, question answering and lookup to AI
// agents over the Model Context Protocol on stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ziadkadry99/docvault/internal/documents"
	"github.com/ziadkadry99/docvault/internal/rag"
	"github.com/ziadkadry99/docvault/internal/relations"
	"github.com/ziadkadry99/docvault/internal/search"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Searcher runs document searches.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

// Answerer answers questions from documents.
type Answerer interface {
	Answer(ctx context.Context, req rag.Request) (*rag.Response, error)
}

// DocumentGetter loads a single document.
type DocumentGetter interface {
	Get(ctx context.Context, id string) (*documents.Document, error)
}

// SimilarFinder finds documents resembling another one.
type SimilarFinder interface {
	FindSimilar(ctx context.Context, id string, limit int, threshold float64) ([]relations.Similar, error)
}

// Deps are the services behind the tools. Answerer and Similar may be nil
// when no AI provider or vector store is configured; their tools then
// report that they are unavailable.
type Deps struct {
	Search           Searcher
	Answerer         Answerer
	Documents        DocumentGetter
	Similar          SimilarFinder
	SimilarThreshold float64
}

// Server wraps an MCP server that exposes the document tools.
type Server struct {
	deps Deps
	mcp  *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(deps Deps) *Server {
	if deps.SimilarThreshold <= 0 {
		deps.SimilarThreshold = relations.DefaultSimilarThreshold
	}
	s := &Server{deps: deps}

	s.mcp = server.NewMCPServer(
		"docvault",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
	s.mcp.AddTool(askDocumentsTool, s.handleAskDocuments)
	s.mcp.AddTool(getDocumentTool, s.handleGetDocument)
	s.mcp.AddTool(findSimilarTool, s.handleFindSimilar)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
