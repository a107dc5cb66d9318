package extract

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
	".txt":  "text/plain",
	".text": "text/plain",
}

// DetectMIME guesses the MIME type from the extension, falling back to
// content sniffing of the first 512 bytes.
func DetectMIME(path string) string {
	if t, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}

	f, err := os.Open(path)
	if err != nil {
		return "application/octet-stream"
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "application/octet-stream"
	}
	t := http.DetectContentType(buf[:n])
	if i := strings.Index(t, ";"); i >= 0 {
		t = t[:i]
	}
	return t
}

// IsText reports whether mimeType is read as plain text.
func IsText(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/")
}

// IsImage reports whether mimeType is an image tesseract can read.
func IsImage(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/tiff", "image/bmp":
		return true
	}
	return false
}
