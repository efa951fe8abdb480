package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/signal-monitor/internal/signal"
)

// ReadingReader provides an iterator-based interface for reading stored
// readings with optional batch and time filtering.
type ReadingReader interface {
	// Session returns metadata about the session this reader is accessing.
	Session() *Session

	// Next advances the iterator and returns true if there is another reading
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current reading in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *signal.Reading

	// Error returns any error that occurred during iteration.
	// If Next() returns false, Error() should be checked to distinguish between
	// end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	// After Close is called, the reader should not be used.
	Close() error
}

// ReaderOption configures a ReadingReader with specific filtering criteria.
type ReaderOption func(*SqliteReadingReader)

// WithBatch only returns readings persisted as part of the given batch
func WithBatch(id uuid.UUID) ReaderOption {
	return func(r *SqliteReadingReader) {
		r.batchID = &id
	}
}

// WithStartTime excludes readings measured before t
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteReadingReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes readings measured after t
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteReadingReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
// This is a convenience function equivalent to applying both WithStartTime
// and WithEndTime.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteReadingReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// SqliteReadingReader implements ReadingReader for SQLite database backend.
type SqliteReadingReader struct {
	db *sql.DB

	sessionID int64
	session   *Session
	category  signal.Category

	batchID   *uuid.UUID // Optional batch filter
	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	rows    *sql.Rows
	current signal.Reading
	err     error
}

func newSqliteReadingReader(ctx context.Context, db *sql.DB, sessionID int64, category signal.Category, opts ...ReaderOption) (*SqliteReadingReader, error) {
	rr := &SqliteReadingReader{
		db:        db,
		sessionID: sessionID,
		category:  category,
	}
	for _, opt := range opts {
		opt(rr)
	}
	if err := rr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return rr, nil
}

func (rr *SqliteReadingReader) init(ctx context.Context) error {
	if rr.db == nil {
		return errors.New("database connection required")
	}
	if rr.sessionID <= 0 {
		return errors.New("session ID required")
	}
	if !rr.category.Valid() {
		return fmt.Errorf("unknown category %d", uint8(rr.category))
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: rr.loadSession},
		{msg: "initializing filters", fn: rr.initFilters},
		{msg: "initializing query", fn: rr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (rr *SqliteReadingReader) loadSession(ctx context.Context) (err error) {
	rr.session, err = loadSession(ctx, rr.db, rr.sessionID)
	return
}

func (rr *SqliteReadingReader) initFilters(context.Context) error {
	if rr.startTime != nil && rr.endTime != nil && rr.endTime.Before(*rr.startTime) {
		return fmt.Errorf("end time %s is before start time %s", rr.endTime, rr.startTime)
	}
	return nil
}

func (rr *SqliteReadingReader) initQuery(ctx context.Context) (err error) {
	var sb strings.Builder

	switch rr.category {
	case signal.CategoryWiFi:
		sb.WriteString(selectWiFiSQL)
	case signal.CategoryBluetooth:
		sb.WriteString(selectBluetoothSQL)
	case signal.CategoryCellular:
		sb.WriteString(selectCellularSQL)
	}

	sb.WriteString("\nWHERE session_id = ?")
	args := []any{rr.sessionID}

	if rr.batchID != nil {
		sb.WriteString(" AND batch_id = ?")
		args = append(args, rr.batchID.String())
	}
	if rr.startTime != nil {
		sb.WriteString(" AND measured_at >= ?")
		args = append(args, rr.startTime.UnixMilli())
	}
	if rr.endTime != nil {
		sb.WriteString(" AND measured_at <= ?")
		args = append(args, rr.endTime.UnixMilli())
	}
	sb.WriteString("\nORDER BY measured_at, id")

	rr.rows, err = rr.db.QueryContext(ctx, sb.String(), args...)
	return
}

func (rr *SqliteReadingReader) Session() *Session {
	return rr.session
}

func (rr *SqliteReadingReader) Next(ctx context.Context) bool {
	if rr.err != nil || rr.rows == nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		rr.err = err
		return false
	}

	if !rr.rows.Next() {
		rr.err = rr.rows.Err()
		return false
	}

	rr.current, rr.err = rr.scan()
	return rr.err == nil
}

func (rr *SqliteReadingReader) scan() (signal.Reading, error) {
	var base readingData
	common := []any{&base.BatchID, &base.MeasuredAt, &base.Dbm, &base.Connected, &base.Latitude, &base.Longitude}

	switch rr.category {
	case signal.CategoryWiFi:
		d := wifiData{}
		dest := append(common, &d.SSID, &d.BSSID, &d.Frequency, &d.CenterFreq0, &d.CenterFreq1, &d.ChannelWidth, &d.Capabilities, &d.Standard)
		if err := rr.rows.Scan(dest...); err != nil {
			return signal.Reading{}, fmt.Errorf("scanning wifi reading: %w", err)
		}
		d.readingData = base
		return d.toReading(), nil

	case signal.CategoryBluetooth:
		d := bluetoothData{}
		dest := append(common, &d.Name, &d.Alias, &d.Address, &d.DeviceClass, &d.DeviceType, &d.BondState)
		if err := rr.rows.Scan(dest...); err != nil {
			return signal.Reading{}, fmt.Errorf("scanning bluetooth reading: %w", err)
		}
		d.readingData = base
		return d.toReading(), nil

	default:
		d := cellularData{}
		dest := append(common, &d.Technology, &d.MCC, &d.MNC, &d.Cell)
		if err := rr.rows.Scan(dest...); err != nil {
			return signal.Reading{}, fmt.Errorf("scanning cellular reading: %w", err)
		}
		d.readingData = base
		return d.toReading()
	}
}

func (rr *SqliteReadingReader) Current() *signal.Reading {
	return &rr.current
}

func (rr *SqliteReadingReader) Error() error {
	return rr.err
}

func (rr *SqliteReadingReader) Close() error {
	if rr.rows == nil {
		return nil
	}
	err := rr.rows.Close()
	rr.rows = nil
	return err
}
