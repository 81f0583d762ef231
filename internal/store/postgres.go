package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/vivassoc/roster-backend/internal/model"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgres creates a Postgres store on an existing pool.
func NewPostgres(pool *pgxpool.Pool, log zerolog.Logger) *Postgres {
	return &Postgres{
		pool: pool,
		log:  log.With().Str("component", "store").Logger(),
	}
}

// Ping reports reachability.
func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return NewError(KindTransient, "ping", err)
	}
	return nil
}

// Reconnect forces a fresh connection attempt. The pool replaces broken
// connections on demand, so a successful ping is a successful reconnect.
func (p *Postgres) Reconnect(ctx context.Context) error {
	return p.Ping(ctx)
}

const studentColumns = `id, short_id, name, phone, address, email, voter_id,
	birth_date, enrolled_on, activity_id, class_id, attendance_status, notes,
	COALESCE(active, TRUE), created_at, created_by, updated_at`

// FindStudentByShortID retrieves an active student by short ID.
func (p *Postgres) FindStudentByShortID(ctx context.Context, shortID string) (*model.Student, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+studentColumns+`
		 FROM students WHERE short_id = $1 AND COALESCE(active, TRUE)`, shortID)
	return p.scanStudent("find_student_by_short_id", row)
}

// FindStudentByIdentity matches by case-insensitive name and phone equality.
// Inactive students are matched too, active ones first, so re-ingesting a
// soft-deleted student resolves to an update rather than a duplicate create.
func (p *Postgres) FindStudentByIdentity(ctx context.Context, name, phone string) (*model.Student, error) {
	if name == "" && phone == "" {
		return nil, NewError(KindInternal, "find_student_by_identity", errors.New("name or phone required"))
	}

	query := `SELECT ` + studentColumns + ` FROM students WHERE `
	var args []interface{}
	switch {
	case name != "" && phone != "":
		query += `LOWER(TRIM(name)) = LOWER(TRIM($1)) AND phone = $2`
		args = append(args, name, phone)
	case name != "":
		query += `LOWER(TRIM(name)) = LOWER(TRIM($1))`
		args = append(args, name)
	default:
		query += `phone = $1`
		args = append(args, phone)
	}
	query += ` ORDER BY COALESCE(active, TRUE) DESC, created_at ASC LIMIT 1`

	row := p.pool.QueryRow(ctx, query, args...)
	return p.scanStudent("find_student_by_identity", row)
}

func (p *Postgres) scanStudent(op string, row pgx.Row) (*model.Student, error) {
	s := &model.Student{}
	err := row.Scan(&s.ID, &s.ShortID, &s.Name, &s.Phone, &s.Address, &s.Email,
		&s.VoterID, &s.BirthDate, &s.EnrolledOn, &s.ActivityID, &s.ClassID,
		&s.AttendanceStatus, &s.Notes, &s.Active, &s.CreatedAt, &s.CreatedBy,
		&s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, p.classify(op, err)
	}
	return s, nil
}

// InsertStudent inserts a new student and returns its ID.
func (p *Postgres) InsertStudent(ctx context.Context, s *model.Student) (string, error) {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO students (id, short_id, name, phone, address, email, voter_id,
		   birth_date, enrolled_on, activity_id, class_id, attendance_status, notes,
		   active, created_at, created_by, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		s.ID, s.ShortID, s.Name, s.Phone, s.Address, s.Email, s.VoterID,
		s.BirthDate, s.EnrolledOn, s.ActivityID, s.ClassID, s.AttendanceStatus,
		s.Notes, s.Active, s.CreatedAt, s.CreatedBy, s.UpdatedAt)
	if err != nil {
		return "", p.classify("insert_student", err)
	}
	return s.ID, nil
}

// UpdateStudent merges the patch into the stored row. Nil patch fields keep
// the stored value (COALESCE against the existing column).
func (p *Postgres) UpdateStudent(ctx context.Context, id string, patch model.StudentPatch) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE students SET
		   name              = COALESCE($2, name),
		   phone             = COALESCE($3, phone),
		   address           = COALESCE($4, address),
		   email             = COALESCE($5, email),
		   voter_id          = COALESCE($6, voter_id),
		   birth_date        = COALESCE($7, birth_date),
		   enrolled_on       = COALESCE($8, enrolled_on),
		   activity_id       = COALESCE($9, activity_id),
		   class_id          = COALESCE($10, class_id),
		   attendance_status = COALESCE($11, attendance_status),
		   notes             = COALESCE($12, notes),
		   active            = COALESCE($13, active, TRUE),
		   updated_at        = COALESCE($14, updated_at)
		 WHERE id = $1`,
		id, patch.Name, patch.Phone, patch.Address, patch.Email, patch.VoterID,
		patch.BirthDate, patch.EnrolledOn, patch.ActivityID, patch.ClassID,
		patch.AttendanceStatus, patch.Notes, patch.Active, patch.UpdatedAt)
	if err != nil {
		return p.classify("update_student", err)
	}
	if tag.RowsAffected() == 0 {
		return NewError(KindNotFound, "update_student", fmt.Errorf("student %s not found", id))
	}
	return nil
}

// SoftDeleteStudent flips active to false, keeping the row.
func (p *Postgres) SoftDeleteStudent(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE students SET active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return p.classify("soft_delete_student", err)
	}
	if tag.RowsAffected() == 0 {
		return NewError(KindNotFound, "soft_delete_student", fmt.Errorf("student %s not found", id))
	}
	return nil
}

// CountActiveStudents returns the number of active roster members.
func (p *Postgres) CountActiveStudents(ctx context.Context) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE COALESCE(active, TRUE)`).Scan(&n)
	if err != nil {
		return 0, p.classify("count_active_students", err)
	}
	return n, nil
}

// FindActivityByName retrieves an activity by exact name, case-insensitive.
func (p *Postgres) FindActivityByName(ctx context.Context, name string) (*model.Activity, error) {
	a := &model.Activity{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, description, COALESCE(active, TRUE), created_at, created_by
		 FROM activities WHERE LOWER(TRIM(name)) = LOWER(TRIM($1))`, name,
	).Scan(&a.ID, &a.Name, &a.Description, &a.Active, &a.CreatedAt, &a.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, p.classify("find_activity_by_name", err)
	}
	return a, nil
}

// InsertActivity inserts a new activity and returns its ID.
func (p *Postgres) InsertActivity(ctx context.Context, a *model.Activity) (string, error) {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO activities (id, name, description, active, created_at, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Name, a.Description, a.Active, a.CreatedAt, a.CreatedBy)
	if err != nil {
		return "", p.classify("insert_activity", err)
	}
	return a.ID, nil
}

// FindClassByName retrieves a class by exact name, case-insensitive.
// Classes are never created here; schedules are authored, not imported.
func (p *Postgres) FindClassByName(ctx context.Context, name string) (*model.Class, error) {
	c := &model.Class{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, activity_id, schedule, weekdays, COALESCE(active, TRUE), created_at
		 FROM classes WHERE LOWER(TRIM(name)) = LOWER(TRIM($1))
		 ORDER BY created_at ASC LIMIT 1`, name,
	).Scan(&c.ID, &c.Name, &c.ActivityID, &c.Schedule, &c.Weekdays, &c.Active, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, p.classify("find_class_by_name", err)
	}
	return c, nil
}

// UpsertAttendance creates or replaces the single roll-call row for
// (student, date).
func (p *Postgres) UpsertAttendance(ctx context.Context, a *model.Attendance) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO attendance (id, student_id, date, status, time, notes, recorded_by, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (student_id, date) DO UPDATE
		 SET status = EXCLUDED.status, time = EXCLUDED.time, notes = EXCLUDED.notes,
		     recorded_by = EXCLUDED.recorded_by, recorded_at = EXCLUDED.recorded_at`,
		a.ID, a.StudentID, a.Date, a.Status, a.Time, a.Notes, a.RecordedBy, a.RecordedAt)
	if err != nil {
		return p.classify("upsert_attendance", err)
	}
	return nil
}

// AppendActionLog writes one append-only audit row.
func (p *Postgres) AppendActionLog(ctx context.Context, entry *model.ActionLogEntry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO action_log (timestamp, actor, actor_kind, action, details)
		 VALUES ($1, $2, $3, $4, $5)`,
		entry.Timestamp, entry.Actor, entry.ActorKind, entry.Action, entry.Details)
	if err != nil {
		return p.classify("append_action_log", err)
	}
	return nil
}

// FindUserByEmail retrieves an operator account.
func (p *Postgres) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u := &model.User{}
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash, COALESCE(active, TRUE), created_at
		 FROM users WHERE LOWER(email) = LOWER($1)`, email,
	).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Active, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, p.classify("find_user_by_email", err)
	}
	return u, nil
}

// InsertUser inserts a new operator account and returns its ID.
func (p *Postgres) InsertUser(ctx context.Context, u *model.User) (string, error) {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Active, u.CreatedAt)
	if err != nil {
		return "", p.classify("insert_user", err)
	}
	return u.ID, nil
}

// classify maps a pgx error to the store taxonomy. Postgres class 23
// (integrity violations) becomes KindConstraint; class 08 and the message
// markers become KindTransient; the rest is KindInternal.
func (p *Postgres) classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "23":
			return NewError(KindConstraint, op, err)
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return NewError(KindTransient, op, err)
		}
	}
	if isTransientMessage(err) {
		return NewError(KindTransient, op, err)
	}
	return NewError(KindInternal, op, err)
}
