package model

import "time"

// Class is an authored schedule group. Classes are looked up by name only;
// (name, activity) is not enforced unique.
type Class struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ActivityID *string   `json:"activity_id,omitempty"`
	Schedule   string    `json:"schedule"`
	Weekdays   string    `json:"weekdays"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}
