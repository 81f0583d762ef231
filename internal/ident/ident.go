package ident

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time.Now so pipelines and queues can be tested with a
// deterministic clock.
type Clock interface {
	Now() time.Time
}

// RealClock returns the wall-clock time in UTC.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T. Test helper.
type FixedClock struct {
	T time.Time
}

// Now implements Clock.
func (c FixedClock) Now() time.Time { return c.T }

// NewID returns a new opaque record identifier.
func NewID() string {
	return uuid.New().String()
}

// ShortID returns an 8-character uppercase identifier for display and
// cross-reference. Uniqueness among active students is enforced by the
// store, not here.
func ShortID() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:8])
}
