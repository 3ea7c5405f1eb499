// Package errs defines the error taxonomy shared by every orchestrator
// component: Transient, NotFound, Conflict, InvalidInput, Fatal. The
// dispatcher type-switches on these to decide retry vs. dead-letter.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an orchestrator error for dispatch/retry purposes.
type Kind int

const (
	KindTransient Kind = iota
	KindNotFound
	KindConflict
	KindInvalidInput
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidInput:
		return "invalid_input"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can classify it
// with errors.As without string-matching.
type Error struct {
	Kind  Kind
	Op    string // component/operation that produced the error, e.g. "queue.enqueue"
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func new_(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Cause: cause}
}

func Transient(op string, cause error) *Error    { return new_(KindTransient, op, cause) }
func NotFound(op string, cause error) *Error     { return new_(KindNotFound, op, cause) }
func Conflict(op string, cause error) *Error     { return new_(KindConflict, op, cause) }
func InvalidInput(op string, cause error) *Error { return new_(KindInvalidInput, op, cause) }
func Fatal(op string, cause error) *Error        { return new_(KindFatal, op, cause) }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Retryable reports whether the dispatcher should retry the job that
// produced err rather than dead-lettering it immediately.
func Retryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindTransient || e.Kind == KindConflict
	}
	// Unclassified errors are treated as fatal: an actor that forgot to
	// wrap its error shouldn't get indefinite retries.
	return false
}
