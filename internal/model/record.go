package model

import "time"

// StudentRecord is the canonical in-memory form of one ingested row after
// header harmonisation and value coercion. Every field except Name is
// optional; nil means the source cell was empty or unparsable. Activity and
// Class are carried as names and resolved to references at write time.
type StudentRecord struct {
	ShortID          *string    `json:"short_id,omitempty"`
	Name             string     `json:"name"`
	Phone            *string    `json:"phone,omitempty"`
	Address          *string    `json:"address,omitempty"`
	Email            *string    `json:"email,omitempty"`
	VoterID          *string    `json:"voter_id,omitempty"`
	BirthDate        *time.Time `json:"birth_date,omitempty"`
	EnrolledOn       *time.Time `json:"enrolled_on,omitempty"`
	Activity         *string    `json:"activity,omitempty"`
	Class            *string    `json:"class,omitempty"`
	AttendanceStatus *string    `json:"attendance_status,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	Active           *bool      `json:"active,omitempty"`
}
