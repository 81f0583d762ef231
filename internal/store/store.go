// Package store is the backend-neutral adapter over the primary record
// store. Callers see a narrow CRUD surface and a four-way error taxonomy;
// whether the backend is Postgres or an in-memory map is hidden here.
package store

import (
	"context"

	"github.com/vivassoc/roster-backend/internal/model"
)

// Store is the primary record store surface used by the ingestion core.
// Find methods return (nil, nil) on a clean miss; errors are reserved for
// backend failures.
type Store interface {
	// Ping reports reachability. A false-equivalent result is an error of
	// KindTransient.
	Ping(ctx context.Context) error
	// Reconnect re-establishes the backend connection after a transient
	// failure. Safe to call on a healthy store.
	Reconnect(ctx context.Context) error

	FindStudentByShortID(ctx context.Context, shortID string) (*model.Student, error)
	// FindStudentByIdentity matches by case-insensitive name equality plus
	// phone equality. At least one of the two must be non-empty.
	FindStudentByIdentity(ctx context.Context, name, phone string) (*model.Student, error)
	InsertStudent(ctx context.Context, s *model.Student) (string, error)
	// UpdateStudent merges the patch into the stored record; nil patch
	// fields leave stored values untouched.
	UpdateStudent(ctx context.Context, id string, patch model.StudentPatch) error
	SoftDeleteStudent(ctx context.Context, id string) error
	CountActiveStudents(ctx context.Context) (int, error)

	FindActivityByName(ctx context.Context, name string) (*model.Activity, error)
	InsertActivity(ctx context.Context, a *model.Activity) (string, error)
	FindClassByName(ctx context.Context, name string) (*model.Class, error)

	UpsertAttendance(ctx context.Context, a *model.Attendance) error

	AppendActionLog(ctx context.Context, entry *model.ActionLogEntry) error

	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	InsertUser(ctx context.Context, u *model.User) (string, error)
}
