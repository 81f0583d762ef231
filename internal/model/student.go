package model

import "time"

// Student is a roster member. Optional fields are pointers: nil means the
// value is absent, which matters for merge-with-existing updates where
// absent fields must not overwrite stored values.
type Student struct {
	ID               string     `json:"id"`
	ShortID          string     `json:"short_id"`
	Name             string     `json:"name"`
	Phone            *string    `json:"phone,omitempty"`
	Address          *string    `json:"address,omitempty"`
	Email            *string    `json:"email,omitempty"`
	VoterID          *string    `json:"voter_id,omitempty"`
	BirthDate        *time.Time `json:"birth_date,omitempty"`
	EnrolledOn       *time.Time `json:"enrolled_on,omitempty"`
	ActivityID       *string    `json:"activity_id,omitempty"`
	ClassID          *string    `json:"class_id,omitempty"`
	AttendanceStatus *string    `json:"attendance_status,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	Active           bool       `json:"active"`
	CreatedAt        time.Time  `json:"created_at"`
	CreatedBy        string     `json:"created_by"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// StudentPatch carries a partial update. Nil fields are left untouched by
// the store; set fields replace the stored value.
type StudentPatch struct {
	Name             *string
	Phone            *string
	Address          *string
	Email            *string
	VoterID          *string
	BirthDate        *time.Time
	EnrolledOn       *time.Time
	ActivityID       *string
	ClassID          *string
	AttendanceStatus *string
	Notes            *string
	Active           *bool
	UpdatedAt        *time.Time
}

// IsZero reports whether the patch carries no field changes besides the
// update timestamp.
func (p StudentPatch) IsZero() bool {
	return p.Name == nil && p.Phone == nil && p.Address == nil &&
		p.Email == nil && p.VoterID == nil && p.BirthDate == nil &&
		p.EnrolledOn == nil && p.ActivityID == nil && p.ClassID == nil &&
		p.AttendanceStatus == nil && p.Notes == nil && p.Active == nil
}
