package fallback

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vivassoc/roster-backend/internal/ident"
	"github.com/vivassoc/roster-backend/internal/logger"
	"github.com/vivassoc/roster-backend/internal/model"
)

func newTestQueue(t *testing.T) (*Queue, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fallback_students.json")
	clock := ident.FixedClock{T: time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)}
	return NewQueue(path, clock, logger.Discard()), path
}

func TestEnqueueListConsume(t *testing.T) {
	q, path := newTestQueue(t)

	id1, err := q.Enqueue(model.StudentRecord{Name: "Ana Silva"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if !strings.HasPrefix(id1, "fallback_") {
		t.Fatalf("unexpected fallback id %q", id1)
	}
	id2, err := q.Enqueue(model.StudentRecord{Name: "Bruno Costa"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	pending, err := q.ListPending()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending, got %d", len(pending))
	}
	if pending[0].FallbackID != id1 || pending[1].FallbackID != id2 {
		t.Fatal("expected enqueue order preserved")
	}
	if pending[0].Status != StatusPending {
		t.Fatalf("expected pending status, got %q", pending[0].Status)
	}

	if err := q.MarkConsumed(id1); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got := q.Pending(); got != 1 {
		t.Fatalf("expected 1 pending after consume, got %d", got)
	}

	// Consuming the last entry removes the file.
	if err := q.MarkConsumed(id2); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected queue file removed, stat err = %v", err)
	}
	if got := q.Pending(); got != 0 {
		t.Fatalf("expected empty queue, got %d", got)
	}
}

func TestEnqueueSurvivesReload(t *testing.T) {
	q, path := newTestQueue(t)

	rec := model.StudentRecord{
		Name:     "Carla Lima",
		Phone:    strptr("(21) 98888-0002"),
		Activity: strptr("Capoeira"),
	}
	id, err := q.Enqueue(rec)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	// A fresh queue on the same path sees the entry; nothing is held in
	// memory between operations.
	q2 := NewQueue(path, ident.RealClock{}, logger.Discard())
	pending, err := q2.ListPending()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].FallbackID != id {
		t.Fatalf("expected reloaded entry, got %+v", pending)
	}
	if pending[0].Student.Name != "Carla Lima" {
		t.Fatalf("payload lost: %+v", pending[0].Student)
	}
	if pending[0].Student.Activity == nil || *pending[0].Student.Activity != "Capoeira" {
		t.Fatalf("activity lost: %+v", pending[0].Student)
	}
}

func TestFileFormat(t *testing.T) {
	q, path := newTestQueue(t)
	if _, err := q.Enqueue(model.StudentRecord{Name: "Davi"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("expected a JSON list of records: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected one record, got %d", len(raw))
	}
	for _, key := range []string{"fallback_id", "enqueued_at", "status", "student"} {
		if _, ok := raw[0][key]; !ok {
			t.Fatalf("missing %q in serialized entry: %v", key, raw[0])
		}
	}
	if raw[0]["status"] != "pending" {
		t.Fatalf("expected pending status, got %v", raw[0]["status"])
	}
}

func TestMarkConsumedUnknownID(t *testing.T) {
	q, _ := newTestQueue(t)
	if _, err := q.Enqueue(model.StudentRecord{Name: "Elisa"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.MarkConsumed("fallback_0_deadbeef"); err == nil {
		t.Fatal("expected error for unknown fallback id")
	}
}

func TestSameNameSameSecondConsumedOneAtATime(t *testing.T) {
	q, _ := newTestQueue(t)
	id1, _ := q.Enqueue(model.StudentRecord{Name: "Gêmeo"})
	id2, _ := q.Enqueue(model.StudentRecord{Name: "Gêmeo"})
	if id1 != id2 {
		t.Fatalf("fixed clock and equal names should share an id: %s vs %s", id1, id2)
	}
	if err := q.MarkConsumed(id1); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if got := q.Pending(); got != 1 {
		t.Fatalf("expected one twin left, got %d", got)
	}
}

func strptr(s string) *string { return &s }
