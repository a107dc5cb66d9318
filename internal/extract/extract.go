// Package extract turns stored document files into plain text, using the PDF
// text layer where one exists and Tesseract OCR otherwise.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/ziadkadry99/docvault/internal/apperr"
)

// Method records how the text was obtained.
type Method string

const (
	MethodText     Method = "text"
	MethodPDFText  Method = "pdf-text"
	MethodPDFOCR   Method = "pdf-ocr"
	MethodImageOCR Method = "image-ocr"
)

// Status is the outcome of an extraction.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result carries the extracted text or the captured failure. Extract never
// returns an error separately.
type Result struct {
	Text   string
	Status Status
	Method Method
	Pages  int
	Err    error
}

// Config holds the external tool locations and OCR tuning.
type Config struct {
	TesseractPath   string
	PopplerPath     string // directory containing pdftoppm
	Languages       string // tesseract -l value, e.g. "deu+eng"
	DPI             int
	MinTextChars    int // average non-space characters per page below which a PDF is OCRed
	PageConcurrency int
	Timeout         time.Duration // per external command
}

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec, folding stderr into the error.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Extractor dispatches on MIME type.
type Extractor struct {
	cfg    Config
	run    Runner
	logger *slog.Logger
}

// New creates an Extractor. A nil runner uses ExecRunner.
func New(cfg Config, run Runner, logger *slog.Logger) *Extractor {
	if run == nil {
		run = ExecRunner
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PageConcurrency < 1 {
		cfg.PageConcurrency = 1
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = 50
	}
	return &Extractor{cfg: cfg, run: run, logger: logger}
}

// Extract reads the file at path. Failures are reported in Result.Err
// wrapped as apperr.ExtractionFailure.
func (e *Extractor) Extract(ctx context.Context, path, mimeType string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(res.Method, fmt.Errorf("panic during extraction: %v", r))
		}
	}()

	switch {
	case IsText(mimeType):
		text, err := readText(path)
		if err != nil {
			return failed(MethodText, err)
		}
		return Result{Text: text, Status: StatusCompleted, Method: MethodText, Pages: 1}

	case mimeType == "application/pdf":
		return e.extractPDF(ctx, path)

	case IsImage(mimeType):
		text, err := e.ocrImage(ctx, path)
		if err != nil {
			return failed(MethodImageOCR, err)
		}
		return Result{Text: text, Status: StatusCompleted, Method: MethodImageOCR, Pages: 1}

	default:
		return failed("", fmt.Errorf("unsupported file type %q", mimeType))
	}
}

func failed(method Method, err error) Result {
	return Result{
		Status: StatusFailed,
		Method: method,
		Err:    apperr.Wrap(apperr.ExtractionFailure, "extract", err),
	}
}

// readText decodes UTF-8 (BOM stripped) and falls back to Windows-1252,
// which is a superset of the printable Latin-1 range.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return decodeText(data), nil
}

func decodeText(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return strings.TrimSpace(string(data))
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return strings.TrimSpace(strings.ToValidUTF8(string(data), "�"))
	}
	return strings.TrimSpace(string(decoded))
}

func (e *Extractor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.cfg.Timeout)
}
