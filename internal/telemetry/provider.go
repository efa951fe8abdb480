// Package telemetry provides the position of the monitor, used to stamp
// readings that arrive without one.
package telemetry

import "sync/atomic"

type Provider interface {
	Get() *Telemetry
}

// Telemetry is the position of the monitor
type Telemetry struct {
	Latitude  *float64 `json:"latitude,omitempty"` // GPS latitude in degrees
	Longitude *float64 `json:"longitude,omitempty"`
}

// HasPosition reports whether both coordinates are known
func (t *Telemetry) HasPosition() bool {
	return t != nil && t.Latitude != nil && t.Longitude != nil
}

// Position holds the last known position. It is safe for concurrent use.
type Position struct {
	current atomic.Pointer[Telemetry]
}

// NewPosition returns a provider reporting the given coordinates
func NewPosition(latitude, longitude float64) *Position {
	var p Position
	p.Set(latitude, longitude)
	return &p
}

// Set replaces the current position
func (p *Position) Set(latitude, longitude float64) {
	p.current.Store(&Telemetry{
		Latitude:  &latitude,
		Longitude: &longitude,
	})
}

// Clear forgets the current position
func (p *Position) Clear() {
	p.current.Store(nil)
}

// Get returns the current position, or nil when none is known
func (p *Position) Get() *Telemetry {
	return p.current.Load()
}
