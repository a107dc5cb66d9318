package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/ziadkadry99/docvault/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:     "mcp",
	Aliases: []string{"serve"},
	Short:   "Start the MCP server for AI agent integration",
	Long:    `Starts a Model Context Protocol (MCP) server on stdio, exposing document search, question answering and lookup tools for AI agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		if st, err := a.indexer.Stats(ctx); err == nil {
			fmt.Fprintf(os.Stderr, "docvault MCP server started on stdio (documents indexed=%d)\n", st.Documents)
		} else {
			fmt.Fprintf(os.Stderr, "Warning: vector index unavailable: %v\n", err)
		}

		srv := mcpserver.NewServer(mcpserver.Deps{
			Search:           a.search,
			Answerer:         a.rag,
			Documents:        a.docs,
			Similar:          a.relations,
			SimilarThreshold: a.cfg.Search.SimilarThreshold,
		})
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
