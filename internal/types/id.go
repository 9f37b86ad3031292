package types

import (
	"time"

	"github.com/google/uuid"
)

// ID identifies users, trips and notification requests.
type ID string

// NewID returns a random UUID-backed identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

// Clock abstracts wall-clock time so schedulers and caches can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
