package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"
)

func (e *Extractor) extractPDF(ctx context.Context, path string) Result {
	text, pages, textErr := readPDFText(path)
	if textErr != nil {
		e.logger.Debug("pdf text layer unreadable", "path", path, "error", textErr)
	}

	if n := nonSpace(text); textErr == nil && pages > 0 && n > 0 && n/pages >= e.cfg.MinTextChars {
		return Result{Text: text, Status: StatusCompleted, Method: MethodPDFText, Pages: pages}
	}

	if n, err := api.PageCountFile(path); err == nil && n > 0 {
		pages = n
	} else if err != nil {
		e.logger.Debug("pdfcpu page count failed", "path", path, "error", err)
	}
	if pages == 0 {
		if textErr != nil {
			return failed(MethodPDFOCR, fmt.Errorf("unreadable pdf: %w", textErr))
		}
		return failed(MethodPDFOCR, fmt.Errorf("pdf has no pages"))
	}

	ocrText, err := e.ocrPDF(ctx, path, pages)
	if err != nil {
		// A thin text layer still beats nothing.
		if strings.TrimSpace(text) != "" {
			e.logger.Warn("pdf ocr failed, keeping text layer", "path", path, "error", err)
			return Result{Text: text, Status: StatusCompleted, Method: MethodPDFText, Pages: pages}
		}
		return failed(MethodPDFOCR, err)
	}
	return Result{Text: ocrText, Status: StatusCompleted, Method: MethodPDFOCR, Pages: pages}
}

// readPDFText returns the native text layer, pages separated by blank lines.
func readPDFText(path string) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages = r.NumPage()
	var parts []string
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		t, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), pages, nil
}

// ocrPDF rasterizes and OCRs every page, bounded by PageConcurrency, and
// joins the non-empty page texts in page order.
func (e *Extractor) ocrPDF(ctx context.Context, path string, pages int) (string, error) {
	tmpDir, err := os.MkdirTemp("", "docvault-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	texts := make([]string, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.PageConcurrency)

	for i := 1; i <= pages; i++ {
		page := i
		g.Go(func() error {
			img, err := e.rasterize(gctx, path, page, tmpDir)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			text, err := e.ocrImage(gctx, img)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			texts[page-1] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	var parts []string
	for _, t := range texts {
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// rasterize renders one page to PNG with pdftoppm and returns the image path.
func (e *Extractor) rasterize(ctx context.Context, path string, page int, dir string) (string, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	prefix := filepath.Join(dir, "page-"+strconv.Itoa(page))
	n := strconv.Itoa(page)
	_, err := e.run(ctx, filepath.Join(e.cfg.PopplerPath, "pdftoppm"),
		"-r", strconv.Itoa(e.cfg.DPI), "-f", n, "-l", n, "-singlefile", "-png", path, prefix)
	if err != nil {
		return "", err
	}
	return prefix + ".png", nil
}

// ocrImage runs tesseract on a single image.
func (e *Extractor) ocrImage(ctx context.Context, path string) (string, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	args := []string{path, "stdout"}
	if e.cfg.Languages != "" {
		args = append(args, "-l", e.cfg.Languages)
	}
	args = append(args, "--oem", "3", "--psm", "6")

	out, err := e.run(ctx, e.cfg.TesseractPath, args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func nonSpace(s string) int {
	n := 0
	for _, r := range s {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
