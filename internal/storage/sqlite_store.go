package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/roman-kulish/signal-monitor/internal/signal"
)

// maxRowsPerInsert keeps a batch insert under the SQLite bound parameters limit
const maxRowsPerInsert = 500

// ErrSessionNotFound is returned when a session does not exist
var ErrSessionNotFound = errors.New("session not found")

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a new database connection and initializes the schema
// using the Sqlite database
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // Batches may arrive from several persistence workers

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro&_busy_timeout=5000"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, source string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, source, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}
	return loadSession(ctx, db, id)
}

func loadSession(ctx context.Context, db *sql.DB, id int64) (session *Session, err error) {
	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var sess Session
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, id).Scan(&sess.ID, &sess.StartTime, &sess.Source, &config); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("session %d: %w", id, ErrSessionNotFound)
			return
		}
		err = fmt.Errorf("scanning session: %w", err)
		return
	}
	if config.Valid {
		sess.Config = &config.String
	}

	return &sess, nil
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess Session
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.Source, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, &sess)
	}
	err = rows.Err()
	return
}

// Readings creates a new ReadingReader over the readings of one category
// stored in a session. It is safe to call from multiple goroutines, but each
// reader instance should only be used from a single goroutine.
func (s *SqliteStore) Readings(ctx context.Context, sessionID int64, category signal.Category, opts ...ReaderOption) (ReadingReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteReadingReader(ctx, db, sessionID, category, opts...)
}

func (s *SqliteStore) StoreBatch(ctx context.Context, sessionID int64, batch signal.Batch) (err error) {
	if len(batch.Readings) == 0 {
		return
	}

	prefix, rows, err := toRows(sessionID, batch)
	if err != nil {
		return fmt.Errorf("converting %s batch %s: %w", batch.Category, batch.ID, err)
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	for chunk := range slices.Chunk(rows, maxRowsPerInsert) {
		if err = batchInsert(ctx, tx, prefix, chunk); err != nil {
			return fmt.Errorf("batch inserting %s readings: %w", batch.Category, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

func toRows(sessionID int64, batch signal.Batch) (prefix string, rows [][]any, err error) {
	batchID := batch.ID.String()
	rows = make([][]any, len(batch.Readings))

	for i := range batch.Readings {
		r := &batch.Readings[i]
		if r.Category != batch.Category {
			return "", nil, fmt.Errorf("reading %d: category %s does not match batch", i, r.Category)
		}

		switch batch.Category {
		case signal.CategoryWiFi:
			prefix = insertWiFiSQL
			var d *wifiData
			if d, err = toWiFiData(sessionID, batchID, r); err == nil {
				rows[i] = d.values()
			}

		case signal.CategoryBluetooth:
			prefix = insertBluetoothSQL
			var d *bluetoothData
			if d, err = toBluetoothData(sessionID, batchID, r); err == nil {
				rows[i] = d.values()
			}

		case signal.CategoryCellular:
			prefix = insertCellularSQL
			var d *cellularData
			if d, err = toCellularData(sessionID, batchID, r); err == nil {
				rows[i] = d.values()
			}

		default:
			err = fmt.Errorf("unknown category %d", uint8(batch.Category))
		}

		if err != nil {
			return "", nil, fmt.Errorf("reading %d: %w", i, err)
		}
	}

	return prefix, rows, nil
}

func batchInsert(ctx context.Context, tx *sql.Tx, prefix string, rows [][]any) error {
	columns := len(rows[0])
	valuesPlaceholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", columns), ", ") + ")"

	// Prepare values array
	values := make([]any, 0, len(rows)*columns)

	var sb strings.Builder
	sb.WriteString(prefix)

	for i, row := range rows {
		values = append(values, row...)

		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(valuesPlaceholder)
	}

	// Single batch insert
	_, err := tx.ExecContext(ctx, sb.String(), values...)
	return err
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
