package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docvault/internal/progress"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the vector index from the stored document text",
	Long: `Re-embeds every document that has extracted text and removes vectors of
documents that no longer exist.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		reporter := progress.NewReporter("Reindexing")
		result, err := a.pipeline.Reindex(ctx, a.indexer, progress.Func(reporter))
		reporter.Finish()
		if err != nil {
			return err
		}

		fmt.Printf("Reindex finished: %d completed, %d failed, %d skipped, %d orphaned document(s) purged\n",
			result.Completed, result.Failed, result.Skipped, result.Purged)
		for _, e := range result.Errors {
			fmt.Printf("  %v\n", e)
		}
		if result.Failed > 0 {
			return fmt.Errorf("%d document(s) could not be indexed", result.Failed)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare the vector index with the recorded indexing status",
	RunE: func(cmd *cobra.Command, args []string) error {
		repair, _ := cmd.Flags().GetBool("repair")
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.pipeline.VerifyIndex(ctx, a.indexer, repair)
		if err != nil {
			return err
		}

		fmt.Printf("Checked %d document(s)\n", result.Checked)
		printIDs("Missing vectors", result.Missing)
		printIDs("Not marked indexed", result.Stale)
		printIDs("Orphaned vectors", result.Orphans)
		switch {
		case result.OK():
			fmt.Println("Index is consistent.")
		case result.Repaired:
			fmt.Printf("Re-queued %d document(s) for indexing...\n", result.Requeued)
			a.pipeline.Wait()
			fmt.Println("Repair finished.")
		default:
			fmt.Println("Run `docvault verify --repair` to fix the mismatches.")
		}
		return nil
	},
}

func printIDs(label string, ids []string) {
	if len(ids) == 0 {
		return
	}
	fmt.Printf("%s (%d):\n", label, len(ids))
	for _, id := range ids {
		fmt.Printf("  %s\n", id)
	}
}

func init() {
	verifyCmd.Flags().Bool("repair", false, "reset mismatched documents and re-index them")
	rootCmd.AddCommand(reindexCmd)
	rootCmd.AddCommand(verifyCmd)
}
