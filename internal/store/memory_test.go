package store

import (
	"context"
	"testing"
	"time"

	"github.com/vivassoc/roster-backend/internal/model"
)

func str(s string) *string { return &s }

func seedStudent(t *testing.T, m *Memory, id, shortID, name string, active bool) *model.Student {
	t.Helper()
	s := &model.Student{
		ID:        id,
		ShortID:   shortID,
		Name:      name,
		Active:    active,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if _, err := m.InsertStudent(context.Background(), s); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	return s
}

func TestShortIDUniqueAmongActiveOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedStudent(t, m, "id-1", "AAAA1111", "Ana", true)

	// Same short ID on another active student is a constraint violation.
	dup := &model.Student{ID: "id-2", ShortID: "AAAA1111", Name: "Bia", Active: true}
	if _, err := m.InsertStudent(ctx, dup); KindOf(err) != KindConstraint {
		t.Fatalf("expected constraint violation, got %v", err)
	}

	// After soft-deleting the holder, the short ID is reusable.
	if err := m.SoftDeleteStudent(ctx, "id-1"); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := m.InsertStudent(ctx, dup); err != nil {
		t.Fatalf("expected insert after soft delete, got %v", err)
	}
}

func TestFindStudentByShortIDSkipsInactive(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := seedStudent(t, m, "id-1", "BBBB2222", "Carla", true)

	got, err := m.FindStudentByShortID(ctx, "BBBB2222")
	if err != nil || got == nil || got.ID != s.ID {
		t.Fatalf("expected to find active student, got %v, %v", got, err)
	}

	if err := m.SoftDeleteStudent(ctx, s.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	got, err = m.FindStudentByShortID(ctx, "BBBB2222")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got != nil {
		t.Fatal("inactive students must not match short-ID lookup")
	}
}

func TestFindStudentByIdentity(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := seedStudent(t, m, "id-1", "CCCC3333", "João Souza", true)
	phone := "(11) 9999-0001"
	if err := m.UpdateStudent(ctx, s.ID, model.StudentPatch{Phone: &phone}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// Case-insensitive name match.
	got, err := m.FindStudentByIdentity(ctx, "joão souza", "")
	if err != nil || got == nil || got.ID != s.ID {
		t.Fatalf("expected name match, got %v, %v", got, err)
	}

	// Name plus phone must both match.
	got, err = m.FindStudentByIdentity(ctx, "João Souza", "other")
	if err != nil || got != nil {
		t.Fatalf("expected no match on wrong phone, got %v, %v", got, err)
	}

	// Phone-only match.
	got, err = m.FindStudentByIdentity(ctx, "", phone)
	if err != nil || got == nil || got.ID != s.ID {
		t.Fatalf("expected phone match, got %v, %v", got, err)
	}

	// Both empty is programmer misuse.
	if _, err := m.FindStudentByIdentity(ctx, "", ""); KindOf(err) != KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}

	// Inactive students still match identity lookup.
	if err := m.SoftDeleteStudent(ctx, s.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	got, err = m.FindStudentByIdentity(ctx, "João Souza", "")
	if err != nil || got == nil || got.Active {
		t.Fatalf("expected inactive match, got %v, %v", got, err)
	}
}

func TestUpdateStudentMergesOnlySetFields(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	s := seedStudent(t, m, "id-1", "DDDD4444", "Pedro", true)
	if err := m.UpdateStudent(ctx, s.ID, model.StudentPatch{
		Phone: str("123"),
		Email: str("pedro@example.com"),
	}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// A patch with only notes set must not clear phone or email.
	if err := m.UpdateStudent(ctx, s.ID, model.StudentPatch{Notes: str("pays in cash")}); err != nil {
		t.Fatalf("second update: %v", err)
	}

	got := m.GetStudent(s.ID)
	if got.Phone == nil || *got.Phone != "123" {
		t.Fatalf("phone was lost: %v", got.Phone)
	}
	if got.Email == nil || *got.Email != "pedro@example.com" {
		t.Fatalf("email was lost: %v", got.Email)
	}
	if got.Notes == nil || *got.Notes != "pays in cash" {
		t.Fatalf("notes not applied: %v", got.Notes)
	}
}

func TestUpdateMissingStudentIsNotFound(t *testing.T) {
	m := NewMemory()
	err := m.UpdateStudent(context.Background(), "nope", model.StudentPatch{Name: str("x")})
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDownStoreReturnsTransient(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	m.SetDown(true)

	if err := m.Ping(ctx); !IsTransient(err) {
		t.Fatalf("expected transient ping error, got %v", err)
	}
	if _, err := m.InsertStudent(ctx, &model.Student{ID: "x", Name: "y"}); !IsTransient(err) {
		t.Fatalf("expected transient insert error, got %v", err)
	}
	if _, err := m.FindStudentByIdentity(ctx, "y", ""); !IsTransient(err) {
		t.Fatalf("expected transient find error, got %v", err)
	}

	m.SetDown(false)
	if err := m.Ping(ctx); err != nil {
		t.Fatalf("expected recovery after SetDown(false), got %v", err)
	}
}

func TestActivityNameUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if _, err := m.InsertActivity(ctx, &model.Activity{ID: "a1", Name: "Natação", Active: true}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := m.InsertActivity(ctx, &model.Activity{ID: "a2", Name: "natação", Active: true})
	if KindOf(err) != KindConstraint {
		t.Fatalf("expected constraint violation on duplicate name, got %v", err)
	}

	got, err := m.FindActivityByName(ctx, "  NATAÇÃO ")
	if err != nil || got == nil || got.ID != "a1" {
		t.Fatalf("expected case-insensitive find, got %v, %v", got, err)
	}
}

func TestCountActiveStudents(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedStudent(t, m, "id-1", "EEEE5555", "A", true)
	seedStudent(t, m, "id-2", "FFFF6666", "B", true)
	seedStudent(t, m, "id-3", "GGGG7777", "C", false)

	n, err := m.CountActiveStudents(ctx)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 active, got %d, %v", n, err)
	}
}

func TestActionLogAppendOnly(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 3; i++ {
		entry := &model.ActionLogEntry{
			Timestamp: time.Now(),
			Actor:     "tester",
			ActorKind: model.ActorKindOperator,
			Action:    "ingest",
			Details:   "rows=1",
		}
		if err := m.AppendActionLog(ctx, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	log := m.ActionLog()
	if len(log) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(log))
	}
	if log[0].ID >= log[1].ID || log[1].ID >= log[2].ID {
		t.Fatalf("expected monotonically increasing IDs, got %v %v %v", log[0].ID, log[1].ID, log[2].ID)
	}
}

func TestUpsertAttendanceReplacesSameDay(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	day := time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC)
	first := &model.Attendance{
		ID: "att-1", StudentID: "id-1", Date: day,
		Status: model.AttendanceAbsent, RecordedBy: "tester", RecordedAt: time.Now(),
	}
	if err := m.UpsertAttendance(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// A second mark for the same day replaces, never duplicates.
	second := &model.Attendance{
		ID: "att-2", StudentID: "id-1", Date: day,
		Status: model.AttendancePresent, RecordedBy: "tester", RecordedAt: time.Now(),
	}
	if err := m.UpsertAttendance(ctx, second); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got := m.AttendanceFor("id-1", day)
	if got == nil || got.Status != model.AttendancePresent {
		t.Fatalf("expected replaced row, got %+v", got)
	}

	// Another day is a distinct row.
	other := &model.Attendance{
		ID: "att-3", StudentID: "id-1", Date: day.AddDate(0, 0, 1),
		Status: model.AttendanceJustified, RecordedBy: "tester", RecordedAt: time.Now(),
	}
	if err := m.UpsertAttendance(ctx, other); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got := m.AttendanceFor("id-1", day.AddDate(0, 0, 1)); got == nil || got.Status != model.AttendanceJustified {
		t.Fatalf("expected distinct row, got %+v", got)
	}
}
