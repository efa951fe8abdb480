package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/signal-monitor/internal/cache"
	"github.com/roman-kulish/signal-monitor/internal/producer"
	"github.com/roman-kulish/signal-monitor/internal/signal"
)

const (
	// StdinPath reads a source from standard input
	StdinPath = "-"

	defaultStorageDir = "data"
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings" json:"settings"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Sources  []SourceConfig `yaml:"sources" json:"sources"`
}

// Settings represents global application settings. Wardrive and
// OperatingMode are reloaded while the monitor runs.
type Settings struct {
	LogLevel      slog.Level          `yaml:"logLevel" json:"logLevel"`
	PollingPeriod Duration            `yaml:"pollingPeriod" json:"pollingPeriod"`
	Wardrive      bool                `yaml:"wardrive" json:"wardrive"`
	OperatingMode cache.OperatingMode `yaml:"operatingMode" json:"operatingMode"`
	Location      *LocationConfig     `yaml:"location" json:"location,omitempty"`
}

// LocationConfig is a fixed position of the monitor, stamped on readings
// that arrive without coordinates
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`
}

// Validate validates location configuration
func (l *LocationConfig) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %f", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %f", l.Longitude)
	}
	return nil
}

// CacheConfig represents the signal cache settings
type CacheConfig struct {
	Hysteresis     HysteresisConfig `yaml:"hysteresis" json:"hysteresis"`
	QueueSize      int              `yaml:"queueSize" json:"queueSize"`
	Workers        int              `yaml:"workers" json:"workers"`
	PersistTimeout Duration         `yaml:"persistTimeout" json:"persistTimeout"`
}

// HysteresisConfig is how long readings of each category stay live
type HysteresisConfig struct {
	WiFi      Duration `yaml:"wifi" json:"wifi"`
	Bluetooth Duration `yaml:"bluetooth" json:"bluetooth"`
	Cellular  Duration `yaml:"cellular" json:"cellular"`
}

// StorageConfig represents storage settings
type StorageConfig struct {
	DataDirectory string `yaml:"dataDirectory" json:"dataDirectory"`
	Disabled      bool   `yaml:"disabled" json:"disabled"`
}

// SourceConfig represents a single scanner. Exactly one of Command and
// Path is set.
type SourceConfig struct {
	Name                 string          `yaml:"name" json:"name"`
	Category             signal.Category `yaml:"category" json:"category"`
	Enabled              bool            `yaml:"enabled" json:"enabled"`
	Command              []string        `yaml:"command" json:"command,omitempty"`
	Path                 string          `yaml:"path" json:"path,omitempty"`
	Interval             Duration        `yaml:"interval" json:"interval,omitempty"`
	ParseErrorsThreshold uint8           `yaml:"parseErrorsThreshold" json:"parseErrorsThreshold,omitempty"`
}

// CacheSettings converts the configuration to cache settings
func (c *Config) CacheSettings() cache.Settings {
	return cache.Settings{
		PollingPeriod: c.Settings.PollingPeriod.Duration(),
		WiFi:          c.Cache.Hysteresis.WiFi.Duration(),
		Bluetooth:     c.Cache.Hysteresis.Bluetooth.Duration(),
		Cellular:      c.Cache.Hysteresis.Cellular.Duration(),
	}
}

// Validate validates configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Settings.Location != nil {
		if err := c.Settings.Location.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("settings: location: %w", err))
		}
	}
	if err := c.CacheSettings().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache: %w", err))
	}
	if c.Cache.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("cache: queue size must not be negative: %d", c.Cache.QueueSize))
	}
	if c.Cache.Workers < 0 {
		errs = append(errs, fmt.Errorf("cache: workers must not be negative: %d", c.Cache.Workers))
	}
	if err := c.Cache.PersistTimeout.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("cache: persist timeout: %w", err))
	}

	names := make(map[string]struct{}, len(c.Sources))
	stdin := 0
	for i := range c.Sources {
		s := &c.Sources[i]
		if err := s.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("source %d: %w", i, err))
			continue
		}
		if _, ok := names[s.Name]; ok {
			errs = append(errs, fmt.Errorf("source %d: duplicate name '%s'", i, s.Name))
		}
		names[s.Name] = struct{}{}

		if s.Enabled && s.Path == StdinPath {
			stdin++
		}
	}
	if stdin > 1 {
		errs = append(errs, errors.New("only one source can read from stdin"))
	}

	return errors.Join(errs...)
}

// Validate validates source configuration
func (s *SourceConfig) Validate() error {
	if s.Name == "" {
		return errors.New("name is required")
	}
	if !s.Category.Valid() {
		return fmt.Errorf("%s: category is required", s.Name)
	}
	if len(s.Command) == 0 && s.Path == "" {
		return fmt.Errorf("%s: either command or path is required", s.Name)
	}
	if len(s.Command) > 0 && s.Path != "" {
		return fmt.Errorf("%s: command and path are mutually exclusive", s.Name)
	}
	if err := s.Interval.Validate(); err != nil {
		return fmt.Errorf("%s: interval: %w", s.Name, err)
	}
	return nil
}

func (s *SourceConfig) threshold() uint8 {
	if s.ParseErrorsThreshold == 0 {
		return producer.ParseErrorsThreshold
	}
	return s.ParseErrorsThreshold
}

func defaultConfig() *Config {
	settings := cache.DefaultSettings()

	return &Config{
		Settings: Settings{
			LogLevel:      slog.LevelInfo,
			PollingPeriod: NewDuration(settings.PollingPeriod),
			OperatingMode: cache.Foreground,
		},
		Cache: CacheConfig{
			Hysteresis: HysteresisConfig{
				WiFi:      NewDuration(settings.WiFi),
				Bluetooth: NewDuration(settings.Bluetooth),
				Cellular:  NewDuration(settings.Cellular),
			},
			QueueSize:      cache.DefaultQueueSize,
			Workers:        cache.DefaultWorkers,
			PersistTimeout: NewDuration(cache.DefaultPersistTimeout),
		},
		Storage: StorageConfig{
			DataDirectory: defaultStorageDir,
		},
	}
}

// LoadConfig reads and validates the configuration file. Fields absent from
// the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := defaultConfig()
	if err = yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return config, nil
}

// Duration is a time.Duration written as a duration string, e.g. "1m30s"
type Duration time.Duration

func NewDuration(d time.Duration) Duration {
	return Duration(d)
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	duration, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

func (d *Duration) UnmarshalJSON(bytes []byte) error {
	var v string
	if err := json.Unmarshal(bytes, &v); err != nil {
		return err
	}

	duration, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("app.Duration: failed to parse: %s", err)
	}

	*d = Duration(duration)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d Duration) Validate() error {
	if d < 0 {
		return fmt.Errorf("app.Duration: must not be negative: %s", time.Duration(d))
	}
	return nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
