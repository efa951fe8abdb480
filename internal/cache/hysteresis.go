package cache

import (
	"fmt"
	"time"

	"github.com/roman-kulish/signal-monitor/internal/signal"
)

// Default hysteresis windows per category
const (
	DefaultPollingPeriod       = 5 * time.Second
	DefaultWiFiHysteresis      = 60 * time.Second
	DefaultBluetoothHysteresis = 65 * time.Second
	DefaultCellularHysteresis  = 30 * time.Second

	// wardriveGrace is added to the polling period in wardrive mode
	wardriveGrace = time.Second
)

// Settings configures how long readings outlive their measurement.
//
// Producers scan on their own schedule, so a transmitter may be missing from
// a few consecutive scans while still in range. Keeping readings for a
// hysteresis window stops snapshots from flickering.
type Settings struct {
	PollingPeriod time.Duration // Consumer polling period
	WiFi          time.Duration
	Bluetooth     time.Duration
	Cellular      time.Duration
}

// DefaultSettings returns the settings used when none are configured
func DefaultSettings() Settings {
	return Settings{
		PollingPeriod: DefaultPollingPeriod,
		WiFi:          DefaultWiFiHysteresis,
		Bluetooth:     DefaultBluetoothHysteresis,
		Cellular:      DefaultCellularHysteresis,
	}
}

// Hysteresis returns how long a reading of category c stays live. In
// wardrive mode the device moves quickly and every category only survives
// one polling period plus a second.
func (s Settings) Hysteresis(c signal.Category, wardrive bool) time.Duration {
	if wardrive {
		return s.PollingPeriod + wardriveGrace
	}

	switch c {
	case signal.CategoryWiFi:
		return s.WiFi
	case signal.CategoryBluetooth:
		return s.Bluetooth
	case signal.CategoryCellular:
		return s.Cellular
	}
	return 0
}

// Validate validates settings
func (s Settings) Validate() error {
	if s.PollingPeriod <= 0 {
		return fmt.Errorf("polling period must be positive: %s", s.PollingPeriod)
	}
	for _, c := range signal.Categories {
		if d := s.Hysteresis(c, false); d <= 0 {
			return fmt.Errorf("%s hysteresis must be positive: %s", c, d)
		}
	}
	return nil
}
