package correct

import (
	"context"
	"errors"
	"fmt"
)

// Typed correction failures, mirroring the extraction side: Unavailable and
// Timeout are transient, TooLarge and Malformed are permanent.
var (
	// ErrUnavailable is returned when the correction backend cannot be
	// reached or rejects the call for a transient reason.
	ErrUnavailable = errors.New("correction service unavailable")

	// ErrTimeout is returned when correction does not finish within the
	// caller's deadline.
	ErrTimeout = errors.New("correction timed out")

	// ErrTooLarge is returned when the text exceeds the model's input limit.
	ErrTooLarge = errors.New("text exceeds the correction size limit")

	// ErrMalformed is returned when the model produced output the pipeline
	// cannot use.
	ErrMalformed = errors.New("correction service returned unusable output")
)

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Error wraps correction failures with the failing operation and context.
type Error struct {
	Op      string
	Err     error
	Details string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("correct: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("correct: %s failed: %v", e.Op, e.Err)
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
	var ce *Error
	if errors.As(err, &ce) {
		return err // Already wrapped
	}
	return &Error{Op: op, Err: err, Details: details}
}
