package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/signal-monitor/internal/signal"
	"github.com/roman-kulish/signal-monitor/internal/storage"
)

const sessionSummaryTimeout = 30 * time.Second

// countReadings reads the session back and counts stored readings per category
func countReadings(ctx context.Context, store storage.Store, sessionID int64) (map[signal.Category]int, error) {
	counts := make(map[signal.Category]int, len(signal.Categories))

	for _, c := range signal.Categories {
		rr, err := store.Readings(ctx, sessionID, c)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", c, err)
		}

		for rr.Next(ctx) {
			counts[c]++
		}
		err = rr.Error()
		_ = rr.Close()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", c, err)
		}
	}

	return counts, nil
}

// logSession logs what the session stored. It runs on shutdown, so it does
// not inherit the cancellation of ctx.
func logSession(ctx context.Context, store storage.Store, sessionID int64, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionSummaryTimeout)
	defer cancel()

	counts, err := countReadings(ctx, store, sessionID)
	if err != nil {
		logger.Warn(fmt.Sprintf("failed to summarize session: %s", err.Error()), slog.Int64("session", sessionID))
		return
	}

	logger.Info("session stored",
		slog.Int64("session", sessionID),
		slog.String("wifi", humanize.Comma(int64(counts[signal.CategoryWiFi]))),
		slog.String("bluetooth", humanize.Comma(int64(counts[signal.CategoryBluetooth]))),
		slog.String("cellular", humanize.Comma(int64(counts[signal.CategoryCellular]))),
	)
}
