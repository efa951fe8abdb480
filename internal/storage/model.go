package storage

import (
	"time"
)

// Session is one run of the monitor. Every stored reading belongs to a
// session.
type Session struct {
	ID        int64
	StartTime time.Time
	Source    string  // What produced the readings, e.g. the host name
	Config    *string // Optional configuration the session was started with
}
