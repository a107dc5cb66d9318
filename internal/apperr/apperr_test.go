package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(NotFound, "get document", "document %s not found", "abc")
	if !errors.Is(err, NotFound) {
		t.Error("expected errors.Is(err, NotFound)")
	}
	if errors.Is(err, ValidationFailure) {
		t.Error("did not expect ValidationFailure")
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if !errors.Is(wrapped, NotFound) {
		t.Error("expected kind to survive fmt.Errorf wrapping")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("tesseract exited 1")
	err := Wrap(ExtractionFailure, "ocr", cause)
	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if got, want := err.Error(), "ocr: tesseract exited 1"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if Wrap(ExtractionFailure, "ocr", nil) != nil {
		t.Error("Wrap(nil) should be nil")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, ""},
		{errors.New("plain"), ""},
		{Wrap(IndexingFailure, "index", errors.New("x")), IndexingFailure},
		{fmt.Errorf("outer: %w", ProviderUnavailable), ProviderUnavailable},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{NotFound, http.StatusNotFound},
		{ValidationFailure, http.StatusBadRequest},
		{Conflict, http.StatusConflict},
		{ProviderUnavailable, http.StatusServiceUnavailable},
		{InferenceFailure, http.StatusBadGateway},
	}
	for _, tt := range tests {
		err := Wrap(tt.kind, "op", errors.New("boom"))
		if got := HTTPStatus(err); got != tt.want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", tt.kind, got, tt.want)
		}
	}
	if got := HTTPStatus(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("unclassified error: got %d, want 500", got)
	}
}
