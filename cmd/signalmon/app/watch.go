package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig reloads the configuration file each time it is written and
// calls onChange with the new configuration. A configuration that fails to
// load is logged and skipped, the previous one stays in effect. It runs
// until ctx is cancelled.
func WatchConfig(ctx context.Context, path string, logger *slog.Logger, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	// The directory is watched since atomic saves replace the file inode
	path = filepath.Clean(path)
	if err = watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watching config: %w", err)
	}

	logger = logger.With(slog.String("path", path))
	logger.Info("watching config for changes")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			config, err := LoadConfig(path)
			if err != nil {
				logger.Error(fmt.Sprintf("failed to reload config, keeping previous: %s", err.Error()))
				continue
			}

			logger.Info("config reloaded")
			onChange(config)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error(fmt.Sprintf("config watcher error: %s", err.Error()))
		}
	}
}
