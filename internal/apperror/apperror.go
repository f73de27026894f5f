// Package apperror classifies errors into the dispositions the HTTP layer
// needs: which status code to return, and whether the failure is routine
// or worth reporting.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the error taxonomy used across the indexing and search pipeline.
type Kind int

const (
	// KindUnknown is the zero value; treated as an infrastructure failure.
	KindUnknown Kind = iota
	KindInputValidation
	KindNotFound
	KindUnsupportedFormat
	KindParseFailure
	KindEmbeddingFailure
	KindVectorStoreFailure
	KindConfigurationFailure
)

func (k Kind) String() string {
	switch k {
	case KindInputValidation:
		return "input_validation"
	case KindNotFound:
		return "not_found"
	case KindUnsupportedFormat:
		return "unsupported_format"
	case KindParseFailure:
		return "parse_failure"
	case KindEmbeddingFailure:
		return "embedding_failure"
	case KindVectorStoreFailure:
		return "vector_store_failure"
	case KindConfigurationFailure:
		return "configuration_failure"
	default:
		return "unknown"
	}
}

// HTTPStatus maps a Kind to the status code the API surface returns for it.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInputValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnsupportedFormat:
		return http.StatusOK
	case KindParseFailure:
		return http.StatusOK
	case KindEmbeddingFailure, KindVectorStoreFailure, KindConfigurationFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Reportable is true for Kinds worth sending to an error-reporting service;
// routine client-facing outcomes (bad input, missing file, skipped format)
// are not.
func (k Kind) Reportable() bool {
	switch k {
	case KindVectorStoreFailure, KindConfigurationFailure, KindUnknown:
		return true
	default:
		return false
	}
}

// Error wraps an underlying cause with a Kind and an optional warning string
// surfaced to callers in the error response body.
type Error struct {
	Kind    Kind
	Warning string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an Error of the given kind wrapping err.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf constructs an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WithWarning attaches a warning string, which the HTTP error responder
// adds to the error body. Parse failures do not use it: the indexer reports
// them as a success Result carrying its own Warning field.
func (e *Error) WithWarning(w string) *Error {
	e.Warning = w
	return e
}

// KindOf extracts the Kind from err, defaulting to KindUnknown for
// unclassified errors (infrastructure failures not explicitly wrapped).
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// WarningOf extracts the warning string from err, if any.
func WarningOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Warning
	}
	return ""
}
