package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docvault/internal/db"
	"github.com/ziadkadry99/docvault/internal/search"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the archive by keyword or meaning",
	Long: `Ranks documents by matches in title, correspondent, summary and text.
With --semantic the query is matched against the vector index instead,
falling back to keyword search when the index is unavailable.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().Bool("semantic", false, "rank by semantic similarity")
	searchCmd.Flags().Int("limit", 10, "maximum number of results")
	searchCmd.Flags().String("date-range", "", "date preset: "+strings.Join(search.Presets, ", "))
	searchCmd.Flags().String("from", "", "earliest document date (YYYY-MM-DD)")
	searchCmd.Flags().String("to", "", "latest document date (YYYY-MM-DD)")
	searchCmd.Flags().Bool("tax", false, "only tax relevant documents")
	searchCmd.Flags().Bool("json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	req := search.Request{Filters: searchFilters(cmd)}
	if len(args) > 0 {
		req.Query = args[0]
	}
	req.UseSemantic, _ = cmd.Flags().GetBool("semantic")
	req.Limit, _ = cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.search.Search(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Fallback {
		fmt.Fprintf(os.Stderr, "Semantic search unavailable (%s); showing keyword results.\n", res.FallbackReason)
	}
	if len(res.Documents) == 0 {
		fmt.Println("No results found.")
		return nil
	}
	fmt.Printf("%d of %d result(s), %s ranking\n\n", len(res.Documents), res.TotalCount, res.Mode)
	for i, hit := range res.Documents {
		date := "          "
		if hit.DocumentDate != nil {
			date = hit.DocumentDate.Format(db.DateFormat)
		}
		fmt.Printf("%2d. [%.2f] %s  %s\n", i+1, hit.Score, date, displayName(&hit.Document))
		if hit.CorrespondentName != "" {
			fmt.Printf("    %s\n", hit.CorrespondentName)
		}
		if hit.Summary != "" {
			fmt.Printf("    %s\n", truncate(hit.Summary, 120))
		}
		fmt.Printf("    id: %s\n", hit.ID)
	}
	return nil
}

func searchFilters(cmd *cobra.Command) search.Filters {
	var f search.Filters
	f.DatePreset, _ = cmd.Flags().GetString("date-range")
	f.DateFrom, _ = cmd.Flags().GetString("from")
	f.DateTo, _ = cmd.Flags().GetString("to")
	if tax, _ := cmd.Flags().GetBool("tax"); tax {
		f.IsTaxRelevant = &tax
	}
	return f
}
