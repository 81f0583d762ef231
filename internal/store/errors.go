package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies store failures. Only KindTransient triggers the degraded
// write path; everything else is surfaced per-row and ingestion continues.
type Kind int

const (
	// KindInternal is any unclassified failure.
	KindInternal Kind = iota
	// KindTransient covers connectivity loss and timeouts.
	KindTransient
	// KindConstraint covers uniqueness and foreign-key violations.
	KindConstraint
	// KindNotFound covers updates against missing records.
	KindNotFound
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient_connectivity"
	case KindConstraint:
		return "constraint_violation"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error wraps a backend failure with its classification and the operation
// that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("store: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("store: %s: %s: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes the underlying backend error.
func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified store error.
func NewError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the classification from err. Unwrapped errors are
// re-classified by message so driver errors that bypass the adapter still
// degrade correctly.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if isTransientMessage(err) {
		return KindTransient
	}
	return KindInternal
}

// IsTransient reports whether err should trigger retry-then-fallback.
func IsTransient(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

// transientMarkers are the lower-cased substrings that identify a
// connectivity failure. Matching is deliberately a single function so the
// classification stays testable in one place.
var transientMarkers = []string{
	"connection refused",
	"connection reset",
	"connection lost",
	"server closed the connection",
	"connection timeout",
	"could not connect",
	"database is not available",
	"no connection to the server",
	"dial tcp",
	"broken pipe",
	"i/o timeout",
	"connection unexpectedly closed",
}

func isTransientMessage(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
