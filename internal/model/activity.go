package model

import "time"

// Activity is a class/activity catalog entry. Names are unique; students
// reference activities by name in uploads and by ID in the store.
type Activity struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	CreatedBy   string    `json:"created_by"`
}
