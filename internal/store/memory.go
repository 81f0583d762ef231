package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vivassoc/roster-backend/internal/model"
)

// Memory is an in-memory Store used by unit tests and local development.
// It enforces the same invariants as the Postgres adapter (short-ID
// uniqueness among active students, activity name uniqueness) and supports
// fault injection so degraded-mode paths can be exercised without a real
// network.
type Memory struct {
	mu         sync.Mutex
	students   map[string]*model.Student
	activities map[string]*model.Activity
	classes    map[string]*model.Class
	users      map[string]*model.User
	attendance map[string]*model.Attendance // keyed student_id|date
	actionLog  []model.ActionLogEntry
	nextLogID  int64

	down       bool
	failWrites int
	failErr    error
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		students:   make(map[string]*model.Student),
		activities: make(map[string]*model.Activity),
		classes:    make(map[string]*model.Class),
		users:      make(map[string]*model.User),
		attendance: make(map[string]*model.Attendance),
	}
}

// SetDown toggles simulated unreachability. While down, Ping and every
// operation return a transient error; Reconnect does not recover it.
func (m *Memory) SetDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

// FailNextWrites makes the next n student writes fail with err.
func (m *Memory) FailNextWrites(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = n
	m.failErr = err
}

var errUnavailable = errors.New("database is not available")

// Ping reports simulated reachability.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return NewError(KindTransient, "ping", errUnavailable)
	}
	return nil
}

// Reconnect is a ping; the memory store has no connection state to rebuild.
func (m *Memory) Reconnect(ctx context.Context) error {
	return m.Ping(ctx)
}

func (m *Memory) guard(op string) error {
	if m.down {
		return NewError(KindTransient, op, errUnavailable)
	}
	return nil
}

func (m *Memory) takeWriteFault(op string) error {
	if m.failWrites > 0 {
		m.failWrites--
		err := m.failErr
		if err == nil {
			err = errUnavailable
		}
		if IsTransient(err) {
			return NewError(KindTransient, op, err)
		}
		return NewError(KindInternal, op, err)
	}
	return nil
}

// FindStudentByShortID retrieves an active student by short ID.
func (m *Memory) FindStudentByShortID(ctx context.Context, shortID string) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("find_student_by_short_id"); err != nil {
		return nil, err
	}
	for _, s := range m.students {
		if s.ShortID == shortID && s.Active {
			return cloneStudent(s), nil
		}
	}
	return nil, nil
}

// FindStudentByIdentity matches by case-insensitive name plus phone
// equality, preferring active rows, then oldest.
func (m *Memory) FindStudentByIdentity(ctx context.Context, name, phone string) (*model.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("find_student_by_identity"); err != nil {
		return nil, err
	}
	if name == "" && phone == "" {
		return nil, NewError(KindInternal, "find_student_by_identity", errors.New("name or phone required"))
	}

	var matches []*model.Student
	for _, s := range m.students {
		if name != "" && !strings.EqualFold(strings.TrimSpace(s.Name), strings.TrimSpace(name)) {
			continue
		}
		if phone != "" {
			if s.Phone == nil || *s.Phone != phone {
				continue
			}
		}
		matches = append(matches, s)
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Active != matches[j].Active {
			return matches[i].Active
		}
		return matches[i].CreatedAt.Before(matches[j].CreatedAt)
	})
	return cloneStudent(matches[0]), nil
}

// InsertStudent inserts a new student, enforcing short-ID uniqueness among
// active students.
func (m *Memory) InsertStudent(ctx context.Context, s *model.Student) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("insert_student"); err != nil {
		return "", err
	}
	if err := m.takeWriteFault("insert_student"); err != nil {
		return "", err
	}
	if s.ID == "" {
		return "", NewError(KindInternal, "insert_student", errors.New("missing id"))
	}
	if _, exists := m.students[s.ID]; exists {
		return "", NewError(KindConstraint, "insert_student", fmt.Errorf("duplicate id %s", s.ID))
	}
	if s.Active {
		for _, other := range m.students {
			if other.Active && other.ShortID == s.ShortID {
				return "", NewError(KindConstraint, "insert_student", fmt.Errorf("duplicate short_id %s", s.ShortID))
			}
		}
	}
	m.students[s.ID] = cloneStudent(s)
	return s.ID, nil
}

// UpdateStudent merges the patch; nil fields keep stored values.
func (m *Memory) UpdateStudent(ctx context.Context, id string, patch model.StudentPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("update_student"); err != nil {
		return err
	}
	if err := m.takeWriteFault("update_student"); err != nil {
		return err
	}
	s, ok := m.students[id]
	if !ok {
		return NewError(KindNotFound, "update_student", fmt.Errorf("student %s not found", id))
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Phone != nil {
		s.Phone = patch.Phone
	}
	if patch.Address != nil {
		s.Address = patch.Address
	}
	if patch.Email != nil {
		s.Email = patch.Email
	}
	if patch.VoterID != nil {
		s.VoterID = patch.VoterID
	}
	if patch.BirthDate != nil {
		s.BirthDate = patch.BirthDate
	}
	if patch.EnrolledOn != nil {
		s.EnrolledOn = patch.EnrolledOn
	}
	if patch.ActivityID != nil {
		s.ActivityID = patch.ActivityID
	}
	if patch.ClassID != nil {
		s.ClassID = patch.ClassID
	}
	if patch.AttendanceStatus != nil {
		s.AttendanceStatus = patch.AttendanceStatus
	}
	if patch.Notes != nil {
		s.Notes = patch.Notes
	}
	if patch.Active != nil {
		s.Active = *patch.Active
	}
	if patch.UpdatedAt != nil {
		s.UpdatedAt = *patch.UpdatedAt
	}
	return nil
}

// SoftDeleteStudent flips active to false, keeping the record.
func (m *Memory) SoftDeleteStudent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("soft_delete_student"); err != nil {
		return err
	}
	s, ok := m.students[id]
	if !ok {
		return NewError(KindNotFound, "soft_delete_student", fmt.Errorf("student %s not found", id))
	}
	s.Active = false
	return nil
}

// CountActiveStudents returns the number of active roster members.
func (m *Memory) CountActiveStudents(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("count_active_students"); err != nil {
		return 0, err
	}
	n := 0
	for _, s := range m.students {
		if s.Active {
			n++
		}
	}
	return n, nil
}

// GetStudent returns a copy of a stored student by ID. Test helper.
func (m *Memory) GetStudent(id string) *model.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.students[id]; ok {
		return cloneStudent(s)
	}
	return nil
}

// StudentCount returns the total number of stored students, active or not.
// Test helper.
func (m *Memory) StudentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.students)
}

// FindActivityByName retrieves an activity by name, case-insensitive.
func (m *Memory) FindActivityByName(ctx context.Context, name string) (*model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("find_activity_by_name"); err != nil {
		return nil, err
	}
	for _, a := range m.activities {
		if strings.EqualFold(strings.TrimSpace(a.Name), strings.TrimSpace(name)) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

// InsertActivity inserts a new activity, enforcing name uniqueness.
func (m *Memory) InsertActivity(ctx context.Context, a *model.Activity) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("insert_activity"); err != nil {
		return "", err
	}
	for _, existing := range m.activities {
		if strings.EqualFold(existing.Name, a.Name) {
			return "", NewError(KindConstraint, "insert_activity", fmt.Errorf("duplicate activity %s", a.Name))
		}
	}
	cp := *a
	m.activities[a.ID] = &cp
	return a.ID, nil
}

// ActivityCount returns the number of stored activities. Test helper.
func (m *Memory) ActivityCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.activities)
}

// FindClassByName retrieves a class by name, case-insensitive.
func (m *Memory) FindClassByName(ctx context.Context, name string) (*model.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("find_class_by_name"); err != nil {
		return nil, err
	}
	for _, c := range m.classes {
		if strings.EqualFold(strings.TrimSpace(c.Name), strings.TrimSpace(name)) {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

// AddClass stores an authored class. Classes are never created by
// ingestion, so this is the only way in.
func (m *Memory) AddClass(c *model.Class) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.classes[c.ID] = &cp
}

// ClassCount returns the number of stored classes. Test helper.
func (m *Memory) ClassCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.classes)
}

// UpsertAttendance creates or replaces the roll-call row for (student, date).
func (m *Memory) UpsertAttendance(ctx context.Context, a *model.Attendance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("upsert_attendance"); err != nil {
		return err
	}
	key := a.StudentID + "|" + a.Date.Format("2006-01-02")
	cp := *a
	m.attendance[key] = &cp
	return nil
}

// AttendanceFor returns the roll-call row for (student, date), or nil.
// Test helper.
func (m *Memory) AttendanceFor(studentID string, date time.Time) *model.Attendance {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.attendance[studentID+"|"+date.Format("2006-01-02")]; ok {
		cp := *a
		return &cp
	}
	return nil
}

// AppendActionLog writes one append-only audit row.
func (m *Memory) AppendActionLog(ctx context.Context, entry *model.ActionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("append_action_log"); err != nil {
		return err
	}
	m.nextLogID++
	stored := *entry
	stored.ID = m.nextLogID
	m.actionLog = append(m.actionLog, stored)
	return nil
}

// ActionLog returns a copy of the audit rows. Test helper.
func (m *Memory) ActionLog() []model.ActionLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ActionLogEntry, len(m.actionLog))
	copy(out, m.actionLog)
	return out
}

// FindUserByEmail retrieves an operator account.
func (m *Memory) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("find_user_by_email"); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// InsertUser inserts a new operator account, enforcing email uniqueness.
func (m *Memory) InsertUser(ctx context.Context, u *model.User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guard("insert_user"); err != nil {
		return "", err
	}
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return "", NewError(KindConstraint, "insert_user", fmt.Errorf("duplicate email %s", u.Email))
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return u.ID, nil
}

// Students returns copies of all stored students ordered by creation time.
// Test helper.
func (m *Memory) Students() []model.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Student, 0, len(m.students))
	for _, s := range m.students {
		out = append(out, *cloneStudent(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func cloneStudent(s *model.Student) *model.Student {
	cp := *s
	cp.Phone = cloneStr(s.Phone)
	cp.Address = cloneStr(s.Address)
	cp.Email = cloneStr(s.Email)
	cp.VoterID = cloneStr(s.VoterID)
	cp.AttendanceStatus = cloneStr(s.AttendanceStatus)
	cp.Notes = cloneStr(s.Notes)
	cp.ActivityID = cloneStr(s.ActivityID)
	cp.ClassID = cloneStr(s.ClassID)
	cp.BirthDate = cloneTime(s.BirthDate)
	cp.EnrolledOn = cloneTime(s.EnrolledOn)
	return &cp
}

func cloneStr(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
