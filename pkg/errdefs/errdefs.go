// Package errdefs defines the closed error taxonomy shared by every
// pipeline stage.
//
// Each error carries a stable code, a human-readable message, a retryability
// flag derived from the code, and optional structured detail. Stage
// implementations return *Error values; the orchestrator converts anything
// else to INTERNAL_ERROR at the boundary, so no request can surface an
// unclassified failure.
package errdefs

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. The set is closed: clients branch on
// these values and honor Retryable for their retry strategy.
type Code string

const (
	// TemplateDownloadFailed covers HTTP non-2xx, connect failures and
	// timeouts while fetching a template package. Retryable.
	TemplateDownloadFailed Code = "TEMPLATE_DOWNLOAD_FAILED"

	// TemplateChecksumMismatch means the downloaded archive's SHA-256 does
	// not match the expected value. Detail carries expected and actual.
	TemplateChecksumMismatch Code = "TEMPLATE_CHECKSUM_MISMATCH"

	// TemplateExtractError covers malformed ZIP archives, directory
	// traversal attempts and I/O failures during extraction.
	TemplateExtractError Code = "TEMPLATE_EXTRACT_ERROR"

	// TemplateInvalid means the extracted directory lacks manifest.json.
	TemplateInvalid Code = "TEMPLATE_INVALID"

	// ManifestLoadError means manifest.json is missing or not valid JSON.
	ManifestLoadError Code = "MANIFEST_LOAD_ERROR"

	// ManifestInvalid means structural validation failed; detail names the
	// offending field.
	ManifestInvalid Code = "MANIFEST_INVALID"

	// AssetNotFound means a referenced background or sticker file does not
	// exist on disk; detail carries the absolute path attempted.
	AssetNotFound Code = "ASSET_NOT_FOUND"

	// RenderFailed covers any failure during compositing, including
	// raw-image decode.
	RenderFailed Code = "RENDER_FAILED"

	// StoreFailed covers I/O failures persisting outputs. Retryable.
	StoreFailed Code = "STORE_FAILED"

	// Internal is the fallback for any unmapped error.
	Internal Code = "INTERNAL_ERROR"
)

// Retryable reports whether reissuing the identical request may succeed
// for this failure class.
func (c Code) Retryable() bool {
	switch c {
	case TemplateDownloadFailed, StoreFailed:
		return true
	default:
		return false
	}
}

// Error is a classified pipeline failure.
type Error struct {
	Code    Code
	Message string
	Detail  map[string]any

	cause error
}

// New creates a classified error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The cause remains reachable through
// errors.Unwrap but is never serialized into the response envelope.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// WithDetail attaches one structured detail entry and returns the error for
// chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Detail == nil {
		e.Detail = make(map[string]any)
	}
	e.Detail[key] = value
	return e
}

// Retryable reports whether the error's code is retryable.
func (e *Error) Retryable() bool {
	return e.Code.Retryable()
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.cause
}

// Convert returns err as a classified *Error. Already-classified errors are
// returned unchanged, even when wrapped; anything else becomes
// INTERNAL_ERROR with a short, stable message (no stack traces, no
// internal paths).
func Convert(err error) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	return Wrap(Internal, err, "internal error")
}

// GetCode extracts the code from a classified error, or Internal for
// anything unclassified.
func GetCode(err error) Code {
	if err == nil {
		return ""
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Code
	}
	return Internal
}

// IsRetryable reports whether err maps to a retryable code.
func IsRetryable(err error) bool {
	return GetCode(err).Retryable()
}
