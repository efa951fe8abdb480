package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/roman-kulish/signal-monitor/cmd/signalmon/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	flags := pflag.NewFlagSet("signalmon", pflag.ExitOnError)
	configPath := flags.StringP("config", "c", "", "Path to the configuration file")
	wardrive := flags.Bool("wardrive", false, "Keep readings only for the polling period, overrides the configuration")
	level := flags.String("log-level", "", "Log level: debug, info, warn or error, overrides the configuration")
	watch := flags.Bool("watch", true, "Reload runtime settings when the configuration file changes")
	_ = flags.Parse(os.Args[1:])

	if *configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", *configPath))
		os.Exit(1)
	}

	logLevel.Set(config.Settings.LogLevel)
	if flags.Changed("log-level") {
		if err = logLevel.UnmarshalText([]byte(*level)); err != nil {
			logger.Error(fmt.Sprintf("invalid log level: %s", err.Error()))
			os.Exit(1)
		}
	}
	if flags.Changed("wardrive") {
		config.Settings.Wardrive = *wardrive
	}

	var watchPath string
	if *watch {
		watchPath = *configPath
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, watchPath, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
