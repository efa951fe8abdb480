// Package cache keeps the most recent reading of every transmitter seen by
// the scanners and hands out stable snapshots of them.
package cache

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/signal-monitor/internal/antenna"
	"github.com/roman-kulish/signal-monitor/internal/signal"
)

// ErrClosed is returned by Ingest after Close
var ErrClosed = errors.New("cache is closed")

// WithLogger sets the logger for the cache
func WithLogger(logger *slog.Logger) func(*Cache) {
	return func(c *Cache) {
		c.logger = logger.With(slog.String("component", "cache"))
	}
}

// WithClock replaces the clock used to age readings
func WithClock(now func() time.Time) func(*Cache) {
	return func(c *Cache) {
		c.now = now
	}
}

// WithSink sets the sink every ingested batch is persisted to. In the
// foreground operating mode batches go through a queue of queueSize
// batches drained by workers goroutines.
func WithSink(sink Sink, queueSize, workers int) func(*Cache) {
	return func(c *Cache) {
		c.sink = sink
		c.queueSize = queueSize
		c.workers = workers
	}
}

// WithPersistTimeout bounds a single call to the sink
func WithPersistTimeout(d time.Duration) func(*Cache) {
	return func(c *Cache) {
		c.persistTimeout = d
	}
}

type bucket struct {
	mu       sync.Mutex
	readings map[signal.Identity]signal.Reading
}

// Cache holds at most one reading per transmitter identity and category.
// Readings older than the category hysteresis are evicted on every Ingest
// and Snapshot call.
//
// Each category is guarded by its own lock: evicting and merging one
// category is atomic with respect to other calls, while different
// categories never block each other.
type Cache struct {
	settings Settings
	modes    Modes
	now      func() time.Time
	logger   *slog.Logger

	sink           Sink
	queueSize      int
	workers        int
	persistTimeout time.Duration
	persist        *dispatcher

	buckets map[signal.Category]*bucket
	closed  atomic.Bool
}

// New creates a new cache. A nil modes defaults to foreground without
// wardrive.
func New(settings Settings, modes Modes, options ...func(*Cache)) (*Cache, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("validating settings: %w", err)
	}
	if modes == nil {
		modes = NewSwitches(false, Foreground)
	}

	c := Cache{
		settings: settings,
		modes:    modes,
		now:      time.Now,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
		buckets:  make(map[signal.Category]*bucket, len(signal.Categories)),
	}

	for _, option := range options {
		option(&c)
	}

	for _, cat := range signal.Categories {
		c.buckets[cat] = &bucket{readings: make(map[signal.Identity]signal.Reading)}
	}

	if c.sink != nil {
		c.persist = newDispatcher(c.sink, c.queueSize, c.workers, c.persistTimeout, c.logger)
	}

	return &c, nil
}

// Ingest records a batch of readings produced by a scan of the origin
// category. The whole batch is rejected, with no side effect, if any
// reading cannot be identified or belongs to another category.
//
// The batch is persisted first, then readings older than their hysteresis
// are evicted from every category and the batch is merged, replacing any
// previous reading of the same transmitter. Persistence failures are logged
// and never fail the call.
func (c *Cache) Ingest(readings []signal.Reading, origin signal.Category) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if !origin.Valid() {
		return fmt.Errorf("ingesting batch: unknown category %d", uint8(origin))
	}

	ids, err := validate(readings, origin)
	if err != nil {
		return fmt.Errorf("rejecting %s batch: %w", origin, err)
	}

	if c.persist != nil && len(readings) > 0 {
		batch := signal.Batch{
			ID:       newBatchID(),
			Category: origin,
			Readings: make([]signal.Reading, len(readings)),
		}
		for i := range readings {
			batch.Readings[i] = readings[i].Clone()
		}
		c.persist.dispatch(batch, c.modes.OperatingMode() == Foreground)
	}

	normalized := make([]signal.Reading, len(readings))
	for i := range readings {
		normalized[i] = readings[i].Clone()
		normalized[i].Normalize()
	}

	now := c.now()
	wardrive := c.modes.Wardrive()

	for _, cat := range signal.Categories {
		b := c.buckets[cat]

		b.mu.Lock()
		c.evict(b, cat, now, wardrive)
		if cat == origin {
			for i := range normalized {
				b.readings[ids[i]] = normalized[i]
			}
		}
		b.mu.Unlock()
	}

	return nil
}

func validate(readings []signal.Reading, origin signal.Category) ([]signal.Identity, error) {
	ids := make([]signal.Identity, len(readings))

	var errs []error
	for i := range readings {
		r := &readings[i]
		if r.Category != origin {
			errs = append(errs, fmt.Errorf("reading %d: %w", i,
				signal.NewMalformedError(r.Category, "category", fmt.Sprintf("does not belong to a %s batch", origin))))
			continue
		}

		id, err := r.Identity()
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %d: %w", i, err))
			continue
		}
		ids[i] = id
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return ids, nil
}

// evict drops readings older than the category hysteresis. b must be locked.
func (c *Cache) evict(b *bucket, cat signal.Category, now time.Time, wardrive bool) {
	window := c.settings.Hysteresis(cat, wardrive)

	var evicted int
	for id, r := range b.readings {
		if r.Age(now) > window {
			delete(b.readings, id)
			evicted++
		}
	}

	if evicted > 0 {
		c.logger.Debug("evicted readings",
			slog.String("category", cat.String()),
			slog.Int("evicted", evicted),
			slog.Duration("hysteresis", window),
		)
	}
}

// Snapshot evicts expired readings and returns a copy of the live readings
// of every category, strongest first. A category with no live reading gets
// a single placeholder reading instead of an empty list.
func (c *Cache) Snapshot() map[signal.Category][]signal.Reading {
	now := c.now()
	wardrive := c.modes.Wardrive()

	snapshot := make(map[signal.Category][]signal.Reading, len(signal.Categories))
	for _, cat := range signal.Categories {
		snapshot[cat] = c.live(cat, now, wardrive)
	}
	return snapshot
}

type entry struct {
	id      signal.Identity
	reading signal.Reading
}

func (c *Cache) live(cat signal.Category, now time.Time, wardrive bool) []signal.Reading {
	b := c.buckets[cat]

	b.mu.Lock()
	c.evict(b, cat, now, wardrive)
	entries := make([]entry, 0, len(b.readings))
	for id, r := range b.readings {
		entries = append(entries, entry{id: id, reading: r.Clone()})
	}
	b.mu.Unlock()

	if len(entries) == 0 {
		return []signal.Reading{signal.Absent(cat)}
	}

	slices.SortFunc(entries, func(x, y entry) int {
		if n := signal.Compare(&y.reading, &x.reading); n != 0 {
			return n
		}
		return cmp.Compare(x.id, y.id)
	})

	readings := make([]signal.Reading, len(entries))
	for i := range entries {
		readings[i] = entries[i].reading
	}
	return readings
}

// GroupedSnapshot is Snapshot with the Wi-Fi readings, placeholder
// included, also clustered into antenna groups. Readings are clustered in
// identity order so a group keeps its name and ID while the strengths of
// its members change.
func (c *Cache) GroupedSnapshot() (map[signal.Category][]signal.Reading, []antenna.Group) {
	snapshot := c.Snapshot()
	return snapshot, antenna.Cluster(byIdentity(snapshot[signal.CategoryWiFi]))
}

// byIdentity returns a copy of readings sorted by identity. Readings without
// one, such as placeholders, sort first.
func byIdentity(readings []signal.Reading) []signal.Reading {
	entries := make([]entry, len(readings))
	for i := range readings {
		id, _ := readings[i].Identity()
		entries[i] = entry{id: id, reading: readings[i]}
	}

	slices.SortStableFunc(entries, func(x, y entry) int {
		return cmp.Compare(x.id, y.id)
	})

	sorted := make([]signal.Reading, len(entries))
	for i := range entries {
		sorted[i] = entries[i].reading
	}
	return sorted
}

// Len returns the number of cached readings of a category, expired ones
// included until the next eviction
func (c *Cache) Len(cat signal.Category) int {
	b, ok := c.buckets[cat]
	if !ok {
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.readings)
}

// PersistStats returns persistence counters, zero when there is no sink
func (c *Cache) PersistStats() PersistStats {
	if c.persist == nil {
		return PersistStats{}
	}
	return c.persist.stats()
}

// Close stops accepting batches and waits for queued batches to be
// persisted. It does not close the sink. It is safe to call Close multiple
// times.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.persist != nil {
		c.persist.close()
	}
	return nil
}
