package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOfClassifiedError(t *testing.T) {
	err := NewError(KindConstraint, "insert_student", errors.New("duplicate key"))
	if KindOf(err) != KindConstraint {
		t.Fatalf("expected constraint kind, got %s", KindOf(err))
	}
	wrapped := fmt.Errorf("write student: %w", err)
	if KindOf(wrapped) != KindConstraint {
		t.Fatalf("expected kind to survive wrapping, got %s", KindOf(wrapped))
	}
}

func TestIsTransientByMessage(t *testing.T) {
	transient := []string{
		"connection refused",
		"read: Connection Reset by peer",
		"FATAL: the database is not available right now",
		"dial tcp 10.0.0.2:5432: i/o timeout",
		"server closed the connection unexpectedly",
		"could not connect to server",
	}
	for _, msg := range transient {
		if !IsTransient(errors.New(msg)) {
			t.Fatalf("expected %q to classify as transient", msg)
		}
	}

	nonTransient := []string{
		"duplicate key value violates unique constraint",
		"null value in column name",
		"syntax error at or near SELECT",
	}
	for _, msg := range nonTransient {
		if IsTransient(errors.New(msg)) {
			t.Fatalf("expected %q to classify as non-transient", msg)
		}
	}
}

func TestIsTransientDeadline(t *testing.T) {
	if !IsTransient(context.DeadlineExceeded) {
		t.Fatal("expected context deadline to classify as transient")
	}
	if IsTransient(nil) {
		t.Fatal("nil error must not be transient")
	}
}

func TestKindOfExplicitBeatsMessage(t *testing.T) {
	// An error classified by the adapter keeps its kind even when the
	// message smells transient.
	err := NewError(KindConstraint, "insert_student", errors.New("connection refused by trigger"))
	if KindOf(err) != KindConstraint {
		t.Fatalf("expected explicit kind to win, got %s", KindOf(err))
	}
}
