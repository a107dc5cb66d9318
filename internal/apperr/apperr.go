// Package apperr defines the error kinds shared across docvault components
// and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. A Kind is itself an error so callers can test
// with errors.Is(err, apperr.NotFound).
type Kind string

const (
	ExtractionFailure   Kind = "extraction_failure"
	InferenceFailure    Kind = "inference_failure"
	IndexingFailure     Kind = "indexing_failure"
	NotFound            Kind = "not_found"
	ValidationFailure   Kind = "validation_failure"
	ProviderUnavailable Kind = "provider_unavailable"
	Conflict            Kind = "conflict"
)

func (k Kind) Error() string { return string(k) }

// Error carries a kind, the operation that failed and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is this error's Kind.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// New returns an error of the given kind with a formatted message.
func New(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap attaches a kind to err. It returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

var allKinds = []Kind{
	ExtractionFailure, InferenceFailure, IndexingFailure,
	NotFound, ValidationFailure, ProviderUnavailable, Conflict,
}

// KindOf returns the outermost kind found in err's chain, or "" if none.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range allKinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ""
}

// HTTPStatus maps err to the status code a handler should respond with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case NotFound:
		return http.StatusNotFound
	case ValidationFailure:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case ProviderUnavailable:
		return http.StatusServiceUnavailable
	case InferenceFailure, ExtractionFailure, IndexingFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
