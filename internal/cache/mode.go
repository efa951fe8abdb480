package cache

import (
	"fmt"
	"strings"
	"sync/atomic"
)

const (
	// Foreground means someone is watching, persistence must not delay the
	// cache update
	Foreground OperatingMode = iota
	// Background means scans run unattended, persistence happens inline
	Background
)

// OperatingMode selects how a batch is handed to the sink
type OperatingMode uint8

func (m OperatingMode) String() string {
	switch m {
	case Foreground:
		return "foreground"
	case Background:
		return "background"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

func (m OperatingMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *OperatingMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "foreground":
		*m = Foreground
	case "background":
		*m = Background
	default:
		return fmt.Errorf("unknown operating mode '%s'", text)
	}
	return nil
}

// Modes exposes the application state the cache depends on. It is read on
// every Ingest and Snapshot call.
type Modes interface {
	Wardrive() bool
	OperatingMode() OperatingMode
}

// Switches is a Modes implementation that is safe to flip from another
// goroutine
type Switches struct {
	wardrive atomic.Bool
	mode     atomic.Uint32
}

func NewSwitches(wardrive bool, mode OperatingMode) *Switches {
	var s Switches
	s.SetWardrive(wardrive)
	s.SetOperatingMode(mode)
	return &s
}

func (s *Switches) Wardrive() bool {
	return s.wardrive.Load()
}

func (s *Switches) SetWardrive(on bool) {
	s.wardrive.Store(on)
}

func (s *Switches) OperatingMode() OperatingMode {
	return OperatingMode(s.mode.Load())
}

func (s *Switches) SetOperatingMode(m OperatingMode) {
	s.mode.Store(uint32(m))
}
