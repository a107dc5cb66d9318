package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/docvault/internal/apperr"
	"github.com/ziadkadry99/docvault/internal/documents"
)

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Ingest files and run OCR, metadata inference and indexing",
	Long: `Ingests the given files, or everything in the staging folder when no
files are named, and waits until every document has been processed.`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var ids []string
	if len(args) == 0 {
		result, err := a.staging.ProcessAll(ctx)
		if err != nil {
			return fmt.Errorf("processing staging folder %s: %w", a.staging.Folder(), err)
		}
		for _, f := range result.Files {
			fmt.Printf("  %-9s %s", f.Outcome, filepath.Base(f.File))
			if f.Error != "" {
				fmt.Printf(" (%s)", f.Error)
			}
			fmt.Println()
			if f.DocumentID != "" {
				ids = append(ids, f.DocumentID)
			}
		}
		if len(result.Files) == 0 {
			fmt.Printf("Staging folder %s is empty.\n", a.staging.Folder())
			return nil
		}
	} else {
		for _, path := range args {
			doc, err := a.pipeline.IngestFile(ctx, path)
			switch {
			case errors.Is(err, apperr.Conflict) && doc != nil:
				fmt.Fprintf(os.Stderr, "  skipped   %s: already stored as %s\n", path, doc.ID)
			case err != nil:
				fmt.Fprintf(os.Stderr, "  failed    %s: %v\n", path, err)
			default:
				fmt.Printf("  ingested  %s -> %s\n", path, doc.ID)
				ids = append(ids, doc.ID)
			}
		}
	}

	if len(ids) == 0 {
		return nil
	}
	fmt.Printf("\nProcessing %d document(s)...\n", len(ids))
	a.pipeline.Wait()

	failed := 0
	for _, id := range ids {
		doc, err := a.docs.Get(ctx, id)
		if err != nil {
			continue
		}
		if doc.HasFailedStage() {
			failed++
		}
		fmt.Printf("  %s  ocr=%s ai=%s vector=%s  %s\n", doc.ID, doc.OCRStatus, doc.AIStatus, doc.VectorStatus, displayName(doc))
	}
	if failed > 0 {
		return fmt.Errorf("%d document(s) failed a processing stage; check the processing log", failed)
	}
	return nil
}

func displayName(doc *documents.Document) string {
	if doc.Title != "" {
		return doc.Title
	}
	return doc.Filename
}
