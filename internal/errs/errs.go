// Package errs defines the structured error taxonomy shared by every engine
// component. Callers branch on the stable Kind rather than on message text.
package errs

import (
	"errors"
	"fmt"
)

// Kind is a stable, machine-readable error category.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindValidation          Kind = "validation"
	KindInvalidEmbedding    Kind = "invalid_embedding"
	KindConflict            Kind = "conflict"
	KindVetoed              Kind = "vetoed"
	KindCapabilityMissing   Kind = "capability_missing"
	KindStorage             Kind = "storage"
	KindIntegrityError      Kind = "integrity_error"
	KindWouldOrphanSnapshot Kind = "would_orphan_snapshot"
	KindBatchTooLarge       Kind = "batch_too_large"
	KindTimeout             Kind = "timeout"
)

// Error carries a kind, a human-readable message, and an optional hint
// naming the offending field or resource.
type Error struct {
	Kind    Kind
	Message string
	Hint    string
	wrapped error
}

// E constructs an Error of the given kind.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithHint attaches a machine-readable hint and returns the same error.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// Wrap records an underlying cause. The cause is visible to errors.Is/As.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), wrapped: err}
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.wrapped }

// Is makes two Errors match when their kinds match, so sentinel-style
// comparisons like errors.Is(err, errs.E(errs.KindNotFound, "")) work.
func (e *Error) Is(target error) bool {
	var te *Error
	if errors.As(target, &te) {
		return e.Kind == te.Kind
	}
	return false
}

// KindOf extracts the taxonomy kind from err, or KindStorage when err is not
// a taxonomy error. Unexpected conditions degrade to storage errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorage
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// NotFound is a convenience constructor for the most common kind.
func NotFound(what, id string) *Error {
	return E(KindNotFound, "%s %s not found", what, id).WithHint(id)
}

// Vetoed builds the error surfaced when a pre-delete hook rejects an operation.
func Vetoed(reason string) *Error {
	return E(KindVetoed, "operation vetoed: %s", reason).WithHint(reason)
}

// CapabilityMissing builds the error for a mode that requires an
// unconfigured facility.
func CapabilityMissing(what string) *Error {
	return E(KindCapabilityMissing, "capability not configured: %s", what).WithHint(what)
}
