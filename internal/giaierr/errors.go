package giaierr

import (
	"errors"
	"fmt"
)

// Error is the concrete error type for every error this module raises.
// It carries a Kind (for errors.Is matching and CLI exit-code mapping),
// the category/severity pinned to that kind, and optional structured
// details for diagnostics.
type Error struct {
	Kind     Kind
	Category Category
	Severity Severity
	Retryable bool
	Message  string
	Details  map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches by Kind, so `errors.Is(err, giaierr.New(KindParseFailure, ""))`
// works for any *Error of that kind; non-*Error targets never match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail attaches a diagnostic key/value and returns the receiver.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New constructs an Error of the given kind with category/severity/
// retryability pinned from the kind table.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:      kind,
		Category:  kind.category(),
		Severity:  kind.severity(),
		Retryable: kind.retryable(),
		Message:   message,
	}
}

// Wrap constructs an Error of the given kind wrapping an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	e := New(kind, message)
	e.Cause = cause
	return e
}

// IsKind reports whether err (or any error it wraps) is a *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}

// IsRetryable reports whether err is a *Error marked retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// SeverityOf extracts the severity of err, or SeverityFatal if err is not
// a *Error (unknown errors are treated conservatively).
func SeverityOf(err error) Severity {
	var e *Error
	if errors.As(err, &e) {
		return e.Severity
	}
	return SeverityFatal
}

// Convenience constructors, one per kind.

func NotAGitRepo(cause error) *Error {
	return Wrap(KindNotAGitRepo, "not a git repository", cause)
}

func IndexMissingOrIncompatible(reason string) *Error {
	return New(KindIndexMissingOrIncompatible, reason)
}

func LanguageNotAvailable(lang string) *Error {
	return New(KindLanguageNotAvailable, "language partition not available").WithDetail("language", lang)
}

func ParseFailure(path string, cause error) *Error {
	return Wrap(KindParseFailure, "parse failed", cause).WithDetail("path", path)
}

func StorageBackendUnavailable(reason string) *Error {
	return New(KindStorageBackendUnavailable, reason)
}

func DsrConflict(commit string) *Error {
	return New(KindDsrConflict, "DSR already exists with different content").WithDetail("commit", commit)
}

func MissingDsr(commit string) *Error {
	return New(KindMissingDsr, "DSR not found for commit").WithDetail("commit", commit)
}

func WorkerFailure(path string, cause error) *Error {
	return Wrap(KindWorkerFailure, "worker failed to process file", cause).WithDetail("path", path)
}

func ValidationError(message string) *Error {
	return New(KindValidationError, message)
}
