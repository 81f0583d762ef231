package writer

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vivassoc/roster-backend/internal/fallback"
	"github.com/vivassoc/roster-backend/internal/ident"
	"github.com/vivassoc/roster-backend/internal/logger"
	"github.com/vivassoc/roster-backend/internal/model"
	"github.com/vivassoc/roster-backend/internal/resolver"
	"github.com/vivassoc/roster-backend/internal/store"
)

var testClock = ident.FixedClock{T: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)}

func newWriter(t *testing.T, m *store.Memory) (*Writer, *fallback.Queue) {
	t.Helper()
	log := logger.Discard()
	queue := fallback.NewQueue(filepath.Join(t.TempDir(), "queue.json"), testClock, log)
	res := resolver.New(m, testClock, "importer", log)
	w := New(m, res, queue, 3, 0, log)
	return w, queue
}

func TestWriteStudentCreatesThenUpdates(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	w, _ := newWriter(t, m)

	rec := model.StudentRecord{Name: "Ana Silva"}
	out := w.WriteStudent(ctx, rec)
	if !out.Success || out.Method != MethodDatabase || out.Action != resolver.ActionCreate {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	if out.StudentID == "" {
		t.Fatal("expected student id")
	}

	// Writing the same record again resolves to update with the same id.
	out2 := w.WriteStudent(ctx, rec)
	if !out2.Success || out2.Action != resolver.ActionUpdate {
		t.Fatalf("unexpected outcome: %+v", out2)
	}
	if out2.StudentID != out.StudentID {
		t.Fatalf("identity must be stable: %s vs %s", out.StudentID, out2.StudentID)
	}
	if m.StudentCount() != 1 {
		t.Fatalf("expected 1 stored student, got %d", m.StudentCount())
	}
}

func TestWriteStudentRetriesTransient(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	w, queue := newWriter(t, m)

	// Two transient failures, then success on the third attempt.
	m.FailNextWrites(2, errors.New("connection reset by peer"))

	out := w.WriteStudent(ctx, model.StudentRecord{Name: "Bruno"})
	if !out.Success || out.Method != MethodDatabase {
		t.Fatalf("expected recovery within retry budget, got %+v", out)
	}
	if queue.Pending() != 0 {
		t.Fatalf("nothing should be queued, got %d", queue.Pending())
	}
}

func TestWriteStudentFallsBackWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	w, queue := newWriter(t, m)
	m.SetDown(true)

	out := w.WriteStudent(ctx, model.StudentRecord{Name: "Carla"})
	if !out.Success {
		t.Fatalf("fallback writes report degraded success, got %+v", out)
	}
	if out.Method != MethodFallback || out.FallbackID == "" {
		t.Fatalf("expected fallback outcome, got %+v", out)
	}
	// With the store down resolution never ran; the row is classified as a
	// create, which the drainer confirms or corrects later.
	if out.Action != resolver.ActionCreate {
		t.Fatalf("expected create classification, got %+v", out)
	}
	if out.Message == "" {
		t.Fatal("expected a user-visible warning message")
	}
	if queue.Pending() != 1 {
		t.Fatalf("expected 1 queued entry, got %d", queue.Pending())
	}
	if m.StudentCount() != 0 {
		t.Fatal("nothing must reach the store while down")
	}
}

func TestWriteStudentNonTransientFails(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	w, queue := newWriter(t, m)

	// A non-transient store failure is surfaced, not retried or queued.
	m.FailNextWrites(1, errors.New("duplicate key value violates unique constraint"))

	out := w.WriteStudent(ctx, model.StudentRecord{Name: "Other Person"})
	if out.Success {
		t.Fatalf("expected constraint failure, got %+v", out)
	}
	if out.Method != MethodDatabase {
		t.Fatalf("constraint failures are not queued, got %+v", out)
	}
	if queue.Pending() != 0 {
		t.Fatalf("constraint failures must not enqueue, got %d", queue.Pending())
	}
}

func TestWriteStudentRetryBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	log := logger.Discard()
	queue := fallback.NewQueue(filepath.Join(t.TempDir(), "queue.json"), testClock, log)
	res := resolver.New(m, testClock, "importer", log)
	w := New(m, res, queue, 2, 0, log)

	// More transient failures than the retry budget (first try + 2 retries).
	m.FailNextWrites(10, errors.New("could not connect to server"))

	out := w.WriteStudent(ctx, model.StudentRecord{Name: "Davi"})
	if !out.Success || out.Method != MethodFallback {
		t.Fatalf("expected fallback after exhausted retries, got %+v", out)
	}
	if queue.Pending() != 1 {
		t.Fatalf("expected 1 queued entry, got %d", queue.Pending())
	}
}

func TestWriteStudentFallbackKeepsResolvedAction(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	w, queue := newWriter(t, m)

	phone := "(11) 9999-0001"
	rec := model.StudentRecord{Name: "Gina Prado", Phone: &phone}
	if out := w.WriteStudent(ctx, rec); out.Action != resolver.ActionCreate {
		t.Fatalf("seed write: %+v", out)
	}

	// Resolution still works, only the write keeps failing; the queued
	// outcome must carry the resolved action, not a generic one.
	m.FailNextWrites(10, errors.New("connection reset by peer"))
	email := "gina@example.com"
	rec.Email = &email
	out := w.WriteStudent(ctx, rec)
	if !out.Success || out.Method != MethodFallback {
		t.Fatalf("expected fallback, got %+v", out)
	}
	if out.Action != resolver.ActionUpdate {
		t.Fatalf("expected update classification, got %+v", out)
	}
	if queue.Pending() != 1 {
		t.Fatalf("expected 1 queued entry, got %d", queue.Pending())
	}
}

func TestWriteStudentSkipsUnchangedUpdate(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	log := logger.Discard()
	phone := "(11) 9999-0002"
	rec := model.StudentRecord{Name: "Helena Cruz", Phone: &phone}

	day1 := ident.FixedClock{T: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)}
	q1 := fallback.NewQueue(filepath.Join(t.TempDir(), "q1.json"), day1, log)
	w1 := New(m, resolver.New(m, day1, "importer", log), q1, 0, 0, log)
	first := w1.WriteStudent(ctx, rec)
	if first.Action != resolver.ActionCreate {
		t.Fatalf("seed write: %+v", first)
	}
	before := m.GetStudent(first.StudentID)

	// The identical record a day later: reported as an update but the store
	// is not touched, so the row stays byte-identical.
	day2 := ident.FixedClock{T: time.Date(2026, 4, 3, 10, 0, 0, 0, time.UTC)}
	q2 := fallback.NewQueue(filepath.Join(t.TempDir(), "q2.json"), day2, log)
	w2 := New(m, resolver.New(m, day2, "importer", log), q2, 0, 0, log)
	out := w2.WriteStudent(ctx, rec)
	if !out.Success || out.Action != resolver.ActionUpdate || out.StudentID != first.StudentID {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	after := m.GetStudent(first.StudentID)
	if !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Fatalf("unchanged record bumped updated_at: %v -> %v", before.UpdatedAt, after.UpdatedAt)
	}
}

func TestWriteStudentFiresDrainHook(t *testing.T) {
	ctx := context.Background()
	m := store.NewMemory()
	w, _ := newWriter(t, m)

	var fired atomic.Int32
	w.OnDatabaseWrite(func() { fired.Add(1) })

	w.WriteStudent(ctx, model.StudentRecord{Name: "Elisa"})
	if fired.Load() != 1 {
		t.Fatalf("expected hook after database write, fired %d times", fired.Load())
	}

	// The hook does not fire for fallback writes.
	m.SetDown(true)
	w.WriteStudent(ctx, model.StudentRecord{Name: "Fabio"})
	if fired.Load() != 1 {
		t.Fatalf("hook must not fire on fallback, fired %d times", fired.Load())
	}
}
