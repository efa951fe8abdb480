package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/roman-kulish/signal-monitor/internal/cache"
	"github.com/roman-kulish/signal-monitor/internal/producer"
	"github.com/roman-kulish/signal-monitor/internal/storage"
	"github.com/roman-kulish/signal-monitor/internal/telemetry"
)

// Run runs the monitor until every source is exhausted or ctx is cancelled.
// When configPath is not empty the file is watched and runtime modes are
// applied as it changes.
func Run(ctx context.Context, config *Config, configPath string, logger *slog.Logger) (err error) {
	switches := cache.NewSwitches(config.Settings.Wardrive, config.Settings.OperatingMode)
	position := newPosition(config.Settings.Location)

	options := []func(*cache.Cache){cache.WithLogger(logger)}

	if !config.Storage.Disabled {
		var store storage.Store
		if store, err = createStorage(&config.Storage); err != nil {
			return fmt.Errorf("failed to create storage: %w", err)
		}
		defer func() {
			if closeErr := store.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("closing storage: %w", closeErr))
			}
		}()

		var sessionID int64
		if sessionID, err = store.CreateSession(ctx, sessionSource(), config); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		logger.Info("session created", slog.Int64("session", sessionID))

		// Runs after the cache has drained its queue and before the store closes
		defer logSession(ctx, store, sessionID, logger)

		options = append(options,
			cache.WithSink(storage.NewSessionSink(store, sessionID), config.Cache.QueueSize, config.Cache.Workers),
			cache.WithPersistTimeout(config.Cache.PersistTimeout.Duration()),
		)
	}

	var c *cache.Cache
	if c, err = cache.New(config.CacheSettings(), switches, options...); err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	// Runs before the store is closed so queued batches are persisted
	defer func() {
		if closeErr := c.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing cache: %w", closeErr))
		}
	}()

	orchestrator := NewOrchestrator(c, logger, WithPollingPeriod(config.Settings.PollingPeriod.Duration()))

	var files []io.Closer
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	if files, err = createProducers(config.Sources, orchestrator, position, logger); err != nil {
		return fmt.Errorf("failed to create producers: %w", err)
	}

	if configPath != "" {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		go func() {
			err := WatchConfig(watchCtx, configPath, logger, func(reloaded *Config) {
				applyRuntime(reloaded, switches, position, logger)
			})
			if err != nil {
				logger.Warn(fmt.Sprintf("config reload is disabled: %s", err.Error()))
			}
		}()
	}

	logger.Info("monitor started",
		slog.Bool("wardrive", switches.Wardrive()),
		slog.String("mode", switches.OperatingMode().String()),
	)

	return orchestrator.Run(ctx)
}

// applyRuntime applies the settings that can change while running
func applyRuntime(config *Config, switches *cache.Switches, position *telemetry.Position, logger *slog.Logger) {
	if switches.Wardrive() != config.Settings.Wardrive {
		switches.SetWardrive(config.Settings.Wardrive)
		logger.Info("wardrive changed", slog.Bool("wardrive", config.Settings.Wardrive))
	}
	if switches.OperatingMode() != config.Settings.OperatingMode {
		switches.SetOperatingMode(config.Settings.OperatingMode)
		logger.Info("operating mode changed", slog.String("mode", config.Settings.OperatingMode.String()))
	}

	if l := config.Settings.Location; l != nil {
		position.Set(l.Latitude, l.Longitude)
	} else {
		position.Clear()
	}
}

func newPosition(config *LocationConfig) *telemetry.Position {
	if config == nil {
		return &telemetry.Position{}
	}
	return telemetry.NewPosition(config.Latitude, config.Longitude)
}

// createProducers registers a producer per enabled source. Opened files
// are returned even on error so the caller can close them.
func createProducers(config []SourceConfig, o *Orchestrator, position telemetry.Provider, logger *slog.Logger) (files []io.Closer, err error) {
	for i := range config {
		source := &config[i]
		if !source.Enabled {
			continue
		}

		options := []func(*producer.Producer){
			producer.WithLogger(logger),
			producer.WithParseErrorsThreshold(source.threshold()),
			producer.WithInterval(source.Interval.Duration()),
			producer.WithTelemetry(position),
		}

		var p *producer.Producer
		switch {
		case len(source.Command) > 0:
			name, args := source.Command[0], source.Command[1:]
			p = producer.NewCommand(source.Name, source.Category, func(ctx context.Context) *exec.Cmd {
				return exec.CommandContext(ctx, name, args...)
			}, options...)

		case source.Path == StdinPath:
			p = producer.NewReader(source.Name, source.Category, os.Stdin, options...)

		default:
			f, err := os.Open(source.Path)
			if err != nil {
				return files, fmt.Errorf("opening source %s: %w", source.Name, err)
			}
			files = append(files, f)
			p = producer.NewReader(source.Name, source.Category, f, options...)
		}

		if err = o.AddProducer(p); err != nil {
			return files, err
		}
	}

	if len(o.producers) == 0 {
		return files, fmt.Errorf("no sources enabled in configuration")
	}

	return files, nil
}

func sessionSource() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "signalmon"
	}
	return host
}

func createStorage(config *StorageConfig) (storage.Store, error) {
	dir := config.DataDirectory
	if dir == "" {
		dir = defaultStorageDir
	}

	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage directory: %w", err)
	}

	stat, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("storage directory '%s' does not exist: %w", dir, err)
		}
		return nil, fmt.Errorf("checking storage directory '%s': %w", dir, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("invalid storage directory '%s'", dir)
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("signal_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}
