package model

import "time"

// Actor kinds recorded in the action log.
const (
	ActorKindOperator = "operator"
	ActorKindSystem   = "system"
)

// ActionLogEntry is one append-only audit row. Ingestions and drains write
// a summary entry here.
type ActionLogEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	ActorKind string    `json:"actor_kind"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
}
