// Package producer feeds scan batches from external scanners into the
// signal cache. A scanner is either a command printing one JSON batch per
// line on stdout, or a recorded stream of such lines.
package producer

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/roman-kulish/signal-monitor/internal/signal"
	"github.com/roman-kulish/signal-monitor/internal/telemetry"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5

	maxLineSize = 4 << 20
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")

	// ErrAlreadyRunning is returned by Run while the producer is running
	ErrAlreadyRunning = errors.New("producer is already running")
)

// Ingester accepts batches of readings of one category
type Ingester interface {
	Ingest(readings []signal.Reading, origin signal.Category) error
}

// Batch is the wire format of one scan
type Batch struct {
	Category signal.Category  `json:"category"`
	Readings []signal.Reading `json:"readings"`
}

// WithLogger sets the logger for the producer
func WithLogger(logger *slog.Logger) func(p *Producer) {
	return func(p *Producer) {
		p.logger = logger.With(
			slog.String("producer", p.name),
			slog.String("category", p.category.String()),
		)
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(p *Producer) {
	return func(p *Producer) {
		p.parseErrorsThreshold = threshold
	}
}

// WithInterval paces batches to at most one per interval. It is meant for
// replaying recorded scans at the rate they were taken.
func WithInterval(interval time.Duration) func(p *Producer) {
	return func(p *Producer) {
		if interval > 0 {
			p.pace = rate.NewLimiter(rate.Every(interval), 1)
		}
	}
}

// WithClock replaces the clock used to stamp readings without a measurement time
func WithClock(now func() time.Time) func(p *Producer) {
	return func(p *Producer) {
		p.now = now
	}
}

// WithTelemetry stamps readings without coordinates with the position
// reported by provider
func WithTelemetry(provider telemetry.Provider) func(p *Producer) {
	return func(p *Producer) {
		p.telemetry = provider
	}
}

// Producer reads scan batches of a single category and ingests them
type Producer struct {
	name     string
	category signal.Category

	cmd    func(ctx context.Context) *exec.Cmd
	reader io.Reader

	isRunning atomic.Bool
	batches   atomic.Uint64

	parseErrorsThreshold uint8
	pace                 *rate.Limiter
	now                  func() time.Time
	telemetry            telemetry.Provider
	logger               *slog.Logger
}

func newProducer(name string, category signal.Category, options ...func(p *Producer)) *Producer {
	p := Producer{
		name:                 name,
		category:             category,
		parseErrorsThreshold: ParseErrorsThreshold,
		now:                  time.Now,
	}
	p.logger = slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	for _, option := range options {
		option(&p)
	}

	return &p
}

// NewCommand creates a producer running the command built by cmd and
// reading batches from its stdout. Lines printed on stderr are logged.
func NewCommand(name string, category signal.Category, cmd func(ctx context.Context) *exec.Cmd, options ...func(p *Producer)) *Producer {
	p := newProducer(name, category, options...)
	p.cmd = cmd
	return p
}

// NewReader creates a producer reading batches from r until EOF
func NewReader(name string, category signal.Category, r io.Reader, options ...func(p *Producer)) *Producer {
	p := newProducer(name, category, options...)
	p.reader = r
	return p
}

func (p *Producer) Name() string {
	return p.name
}

func (p *Producer) Category() signal.Category {
	return p.category
}

// Batches returns the number of batches ingested so far
func (p *Producer) Batches() uint64 {
	return p.batches.Load()
}

// Run reads batches and ingests them until the source is exhausted, the
// context is cancelled or too many consecutive lines fail to parse or
// ingest.
func (p *Producer) Run(ctx context.Context, ing Ingester) error {
	if !p.isRunning.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer p.isRunning.Store(false)

	p.logger.Info("starting producer...")
	defer func() {
		p.logger.Info("producer stopped", slog.Uint64("batches", p.batches.Load()))
	}()

	var err error
	if p.cmd == nil {
		err = p.handleStdout(ctx, p.reader, ing)
	} else {
		err = p.runCommand(ctx, ing)
	}
	if err != nil && ctx.Err() == nil {
		return err
	}

	return nil
}

func (p *Producer) runCommand(ctx context.Context, ing Ingester) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := p.cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return fmt.Errorf("error starting command: %w", err)
	}

	done := make(chan error, 3) // expects three results from three goroutines
	output := make(chan error, 2)

	go func() { output <- p.handleStdout(ctx, stdout, ing) }()
	go func() { output <- p.handleStderr(stderr) }()
	go func() {
		// Pipes must be drained before Wait closes them
		for i := 0; i < cap(output); i++ {
			done <- <-output
		}
		done <- p.handleCmdWait(ctx, cmd)
	}()

	var errs []error
	for i := 0; i < cap(done); i++ {
		if err := <-done; err != nil && ctx.Err() == nil {
			cancel() // cancel context on error
			p.logger.Error(err.Error())

			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// handleStdout reads batches line by line and ingests them
func (p *Producer) handleStdout(ctx context.Context, stdout io.Reader, ing Ingester) error {
	var parseErrors uint8

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if p.pace != nil {
			if err := p.pace.Wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := p.ingest(line, ing); err != nil {
			parseErrors++
			p.logger.Warn(fmt.Sprintf("error ingesting batch: %s", err.Error()), slog.Int("length", len(line)))

			if parseErrors >= p.parseErrorsThreshold {
				return ErrTooManyParseErrors
			}

			continue
		}

		parseErrors = 0 // reset counter
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
	}

	return nil
}

func (p *Producer) ingest(line string, ing Ingester) error {
	readings, err := p.parse(line)
	if err != nil {
		return err
	}

	if err = ing.Ingest(readings, p.category); err != nil {
		return err
	}

	p.batches.Add(1)
	return nil
}

// parse decodes a batch line. Readings without a measurement time are
// stamped with the current time, readings without a location with the
// current position if one is known.
func (p *Producer) parse(line string) ([]signal.Reading, error) {
	var b Batch
	if err := json.Unmarshal([]byte(line), &b); err != nil {
		return nil, fmt.Errorf("decoding batch: %w", err)
	}
	if b.Category != p.category {
		return nil, fmt.Errorf("expected %s batch, got %s", p.category, b.Category)
	}

	now := p.now()

	var position *telemetry.Telemetry
	if p.telemetry != nil {
		position = p.telemetry.Get()
	}

	for i := range b.Readings {
		r := &b.Readings[i]
		if r.Category == 0 {
			r.Category = b.Category
		}
		if r.MeasuredAt.IsZero() {
			r.MeasuredAt = now
		}
		if position.HasPosition() && r.Latitude == nil && r.Longitude == nil {
			lat, lon := *position.Latitude, *position.Longitude
			r.Latitude, r.Longitude = &lat, &lon
		}
	}

	return b.Readings, nil
}

// handleStderr reads from stderr and logs errors.
func (p *Producer) handleStderr(stderr io.Reader) error {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		p.logger.Warn(fmt.Sprintf("%s >> %s", p.name, line)) // simple logging here
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
	}

	return nil
}

// handleCmdWait waits for the command to exit
func (p *Producer) handleCmdWait(ctx context.Context, cmd *exec.Cmd) error {
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("command exited with error: %w", err)
	}

	return nil
}
