package errdefs

import (
	"errors"
	"fmt"
)

// Kind classifies an operation failure. Kinds are stable and intended for
// programmatic dispatch by the front end.
type Kind string

const (
	KindNotFound       Kind = "not-found"
	KindForbidden      Kind = "forbidden"
	KindBanned         Kind = "banned"
	KindGateRequired   Kind = "gate-required"
	KindRateLimited    Kind = "rate-limited"
	KindQuotaExceeded  Kind = "quota-exceeded"
	KindInvalid        Kind = "invalid"
	KindSyntaxError    Kind = "syntax-error"
	KindAlreadyRunning Kind = "already-running"
	KindNotRunning     Kind = "not-running"
	KindTimeout        Kind = "timeout"
	KindInternal       Kind = "internal"
)

// Error is a classified error. Message is safe to render to the user; it
// never contains filesystem paths outside the caller's own subtree.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a classified error with a user-facing message
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error while keeping it in the chain
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: err}
}

// Internal wraps an unexpected failure behind an opaque message. The cause
// stays in the chain for logging but is never rendered to the user.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", cause: err}
}

// KindOf returns the kind of err, or KindInternal for unclassified errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// SyntaxError carries the first offending location of a failed static parse
type SyntaxError struct {
	Path    string // relative to the project source root
	Line    int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax-error: %s line %d: %s", e.Path, e.Line, e.Message)
}

// NewSyntax wraps a SyntaxError into a classified error
func NewSyntax(path string, line int, msg string) *Error {
	return &Error{
		Kind:    KindSyntaxError,
		Message: fmt.Sprintf("%s line %d: %s", path, line, msg),
		cause:   &SyntaxError{Path: path, Line: line, Message: msg},
	}
}

// AsSyntax extracts the SyntaxError detail from a classified error, if any
func AsSyntax(err error) (*SyntaxError, bool) {
	var se *SyntaxError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
