package ocr

import (
	"context"
	"errors"
	"fmt"
)

// Typed extraction failures. Unavailable and Timeout are transient and safe
// to retry; TooLarge and Malformed are permanent and surfaced immediately.
var (
	// ErrUnavailable is returned when the OCR backend cannot be reached or
	// rejects the call for a transient reason (quota, overload).
	ErrUnavailable = errors.New("OCR engine unavailable")

	// ErrTimeout is returned when extraction does not finish within the
	// caller's deadline.
	ErrTimeout = errors.New("OCR processing timed out")

	// ErrTooLarge is returned when the document exceeds the engine's
	// processing limit.
	ErrTooLarge = errors.New("document exceeds the OCR size limit")

	// ErrMalformed is returned when the engine produced output the pipeline
	// cannot use.
	ErrMalformed = errors.New("OCR engine returned unusable output")

	// ErrEmptyDocument is returned when the document contains no readable
	// text at all.
	ErrEmptyDocument = errors.New("document contains no readable text")

	// ErrUnsupportedFormat is returned when the engine does not handle the
	// document's media type.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrMissingCredentials is returned when no Google Cloud credentials are
	// configured for a cloud engine.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
)

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Error wraps extraction failures with the failing operation and context.
type Error struct {
	// Op is the operation that failed (e.g., "Extract", "NewVisionEngine").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapError wraps an error as an *Error if it isn't already one.
func WrapError(op string, err error, details string) error {
	if err == nil {
		return nil
	}
	var oe *Error
	if errors.As(err, &oe) {
		return err // Already wrapped
	}
	return &Error{Op: op, Err: err, Details: details}
}
