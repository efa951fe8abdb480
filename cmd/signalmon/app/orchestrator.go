package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/signal-monitor/internal/antenna"
	"github.com/roman-kulish/signal-monitor/internal/cache"
	"github.com/roman-kulish/signal-monitor/internal/producer"
	"github.com/roman-kulish/signal-monitor/internal/signal"
)

// WithPollingPeriod sets how often the cache snapshot is taken
func WithPollingPeriod(d time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pollingPeriod = d
		}
	}
}

// WithReporter replaces the consumer of snapshots. The default one logs a
// summary.
func WithReporter(report func(Summary)) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.report = report
	}
}

// Summary is what one poll of the cache saw
type Summary struct {
	Counts    map[signal.Category]int
	Strongest map[signal.Category]signal.Reading // Absent for empty categories
	Antennas  []antenna.Group
	Persisted cache.PersistStats
}

// Orchestrator runs producers concurrently into the cache and polls
// snapshots of it on the polling period.
type Orchestrator struct {
	cache     *cache.Cache
	producers []*producer.Producer
	names     map[string]struct{}

	logger        *slog.Logger
	pollingPeriod time.Duration
	report        func(Summary)

	mu   sync.Mutex
	errs []error

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(c *cache.Cache, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		cache:         c,
		names:         make(map[string]struct{}),
		logger:        logger,
		pollingPeriod: cache.DefaultPollingPeriod,
	}
	o.report = o.logSummary

	for _, option := range options {
		option(&o)
	}

	return &o
}

// AddProducer registers a producer with the Orchestrator
func (o *Orchestrator) AddProducer(p *producer.Producer) error {
	if _, ok := o.names[p.Name()]; ok {
		return fmt.Errorf("producer %s already exists", p.Name())
	}

	o.names[p.Name()] = struct{}{}
	o.producers = append(o.producers, p)

	return nil
}

// Run starts all producers and polls the cache until every producer is done
// or the context is cancelled. A failing producer stops all the others.
// The last snapshot is reported before Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	if len(o.producers) == 0 {
		return fmt.Errorf("no producers to run")
	}

	ctx, o.cancel = context.WithCancel(ctx)
	defer o.cancel()

	startGate := make(chan struct{})
	for _, p := range o.producers {
		o.wg.Add(1)
		go o.runProducer(ctx, p, startGate)
	}

	polling := make(chan struct{})
	go o.poll(ctx, polling)

	close(startGate) // Start the producer goroutines

	o.wg.Wait()
	o.cancel()
	<-polling

	o.report(o.Summarize())

	o.mu.Lock()
	defer o.mu.Unlock()
	return errors.Join(o.errs...)
}

func (o *Orchestrator) runProducer(ctx context.Context, p *producer.Producer, startGate chan struct{}) {
	defer o.wg.Done()

	<-startGate

	if err := p.Run(ctx, o.cache); err != nil {
		o.logger.Error(fmt.Sprintf("producer %s failed: %s", p.Name(), err.Error()))

		o.mu.Lock()
		o.errs = append(o.errs, fmt.Errorf("producer %s: %w", p.Name(), err))
		o.mu.Unlock()

		o.cancel() // signal to other goroutines about fatal
	}
}

func (o *Orchestrator) poll(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.pollingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.report(o.Summarize())
		}
	}
}

// Summarize takes a grouped snapshot of the cache
func (o *Orchestrator) Summarize() Summary {
	snapshot, groups := o.cache.GroupedSnapshot()

	s := Summary{
		Counts:    make(map[signal.Category]int, len(snapshot)),
		Strongest: make(map[signal.Category]signal.Reading, len(snapshot)),
		Persisted: o.cache.PersistStats(),
	}

	for _, c := range signal.Categories {
		readings := snapshot[c]
		if len(readings) == 0 {
			continue
		}

		s.Strongest[c] = readings[0] // sorted strongest first
		if !readings[0].Placeholder {
			s.Counts[c] = len(readings)
		}
	}

	for _, g := range groups {
		if !g.Reading.Placeholder {
			s.Antennas = append(s.Antennas, g)
		}
	}

	return s
}

func (o *Orchestrator) logSummary(s Summary) {
	o.logger.Info("snapshot",
		slog.String("wifi", humanize.Comma(int64(s.Counts[signal.CategoryWiFi]))),
		slog.String("antennas", humanize.Comma(int64(len(s.Antennas)))),
		slog.String("bluetooth", humanize.Comma(int64(s.Counts[signal.CategoryBluetooth]))),
		slog.String("cellular", humanize.Comma(int64(s.Counts[signal.CategoryCellular]))),
		slog.Uint64("persisted", s.Persisted.Persisted),
		slog.Uint64("failed", s.Persisted.Failed),
		slog.Uint64("dropped", s.Persisted.Dropped),
	)

	for _, c := range signal.Categories {
		r, ok := s.Strongest[c]
		if !ok || r.Placeholder {
			continue
		}
		o.logger.Debug(fmt.Sprintf("strongest %s: %s", c, r.String()), slog.String("seen", humanize.Time(r.MeasuredAt)))
	}

	for _, g := range s.Antennas {
		o.logger.Debug(fmt.Sprintf("antenna %s", g.Name()),
			slog.String("bssid", g.StarredBSSID),
			slog.Int("frequency", g.Reading.WiFi.Frequency),
			slog.Int("dbm", g.Reading.Dbm),
			slog.Int("members", len(g.Members)),
			slog.String("seen", humanize.Time(g.Reading.MeasuredAt)),
		)
	}
}
