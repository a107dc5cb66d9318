package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docvault/internal/rag"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the archived documents",
	Long: `Selects the most relevant documents, or the ones named with --doc, and
asks the AI model to answer using only their contents, citing each source.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, _ := cmd.Flags().GetStringSlice("doc")
		maxDocs, _ := cmd.Flags().GetInt("max-docs")

		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.rag.Answer(ctx, rag.Request{
			Question:     args[0],
			DocumentIDs:  ids,
			MaxDocuments: maxDocs,
			Filters:      searchFilters(cmd),
		})
		if err != nil {
			return err
		}

		fmt.Println(resp.Answer)
		if len(resp.Sources) > 0 {
			fmt.Println("\nSources:")
			for _, s := range resp.Sources {
				title := s.Title
				if title == "" {
					title = s.Filename
				}
				fmt.Printf("  [%s] %s (%s)\n", s.Citation, title, s.ID)
			}
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringSlice("doc", nil, "answer from these document IDs only")
	askCmd.Flags().Int("max-docs", rag.DefaultMaxDocuments, "documents to retrieve automatically")
	askCmd.Flags().String("date-range", "", "restrict automatic retrieval to a date preset")
	askCmd.Flags().String("from", "", "earliest document date (YYYY-MM-DD)")
	askCmd.Flags().String("to", "", "latest document date (YYYY-MM-DD)")
	askCmd.Flags().Bool("tax", false, "only tax relevant documents")
	rootCmd.AddCommand(askCmd)
}
