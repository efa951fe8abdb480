package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/roman-kulish/signal-monitor/internal/signal"
)

const (
	DefaultQueueSize      = 64
	DefaultWorkers        = 1
	DefaultPersistTimeout = 10 * time.Second

	// failureLogInterval limits how often persistence failures are logged
	failureLogInterval = 10 * time.Second
)

// Sink durably stores batches of readings. Persist may be called from
// several goroutines at once.
type Sink interface {
	Persist(ctx context.Context, batch signal.Batch) error
}

// PersistStats counts batches handed to the sink
type PersistStats struct {
	Persisted uint64
	Failed    uint64
	Dropped   uint64 // Queue was full
}

// dispatcher hands batches to the sink, either on the calling goroutine or
// through a bounded queue drained by background workers.
type dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger
	limiter *rate.Limiter

	mu     sync.RWMutex // Guards closed against sends on a closed queue
	closed bool
	queue  chan signal.Batch
	wg     sync.WaitGroup

	persisted atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

func newDispatcher(sink Sink, queueSize, workers int, timeout time.Duration, logger *slog.Logger) *dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if timeout <= 0 {
		timeout = DefaultPersistTimeout
	}

	d := dispatcher{
		sink:    sink,
		timeout: timeout,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(failureLogInterval), 1),
		queue:   make(chan signal.Batch, queueSize),
	}

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}

	return &d
}

func (d *dispatcher) work() {
	defer d.wg.Done()

	for batch := range d.queue {
		d.persist(batch)
	}
}

// dispatch queues the batch when async is set and persists it inline
// otherwise. A full queue drops the batch rather than delaying the caller.
func (d *dispatcher) dispatch(batch signal.Batch, async bool) {
	if !async {
		d.persist(batch)
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.persist(batch)
		return
	}

	select {
	case d.queue <- batch:
	default:
		d.dropped.Add(1)
		if d.limiter.Allow() {
			d.logger.Warn("persistence queue is full, dropping batch",
				slog.String("batchID", batch.ID.String()),
				slog.String("category", batch.Category.String()),
				slog.Int("readings", len(batch.Readings)),
				slog.Uint64("dropped", d.dropped.Load()),
			)
		}
	}
}

func (d *dispatcher) persist(batch signal.Batch) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Persist(ctx, batch); err != nil {
		d.failed.Add(1)
		if d.limiter.Allow() {
			d.logger.Error("persisting batch",
				slog.String("batchID", batch.ID.String()),
				slog.String("category", batch.Category.String()),
				slog.Uint64("failed", d.failed.Load()),
				slog.String("error", err.Error()),
			)
		}
		return
	}

	d.persisted.Add(1)
}

// close stops accepting queued batches and waits for the workers to drain
// the queue
func (d *dispatcher) close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *dispatcher) stats() PersistStats {
	return PersistStats{
		Persisted: d.persisted.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func newBatchID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
