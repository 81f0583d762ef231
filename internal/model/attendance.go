package model

import "time"

// AttendanceStatus is the per-day roll-call mark.
type AttendanceStatus string

const (
	AttendancePresent   AttendanceStatus = "P"
	AttendanceAbsent    AttendanceStatus = "F"
	AttendanceJustified AttendanceStatus = "J"
)

// Attendance is one roll-call row. At most one row exists per
// (student, date).
type Attendance struct {
	ID         string           `json:"id"`
	StudentID  string           `json:"student_id"`
	Date       time.Time        `json:"date"`
	Status     AttendanceStatus `json:"status"`
	Time       *string          `json:"time,omitempty"`
	Notes      *string          `json:"notes,omitempty"`
	RecordedBy string           `json:"recorded_by"`
	RecordedAt time.Time        `json:"recorded_at"`
}
