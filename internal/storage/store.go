package storage

import (
	"context"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/signal-monitor/internal/signal"
)

// Store provides an interface for managing signal readings storage operations.
// It handles sessions and batches of readings in a thread-safe manner.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new monitoring session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - source: What produces the readings (e.g., host name)
	//   - config: Optional configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, source string, config any) (sessionID int64, err error)

	// Session retrieves a specific monitoring session by its ID.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - id: Unique session identifier
	//
	// Returns:
	//   - session: Pointer to session data
	//   - error: ErrSessionNotFound if there is no such session, or if retrieval fails
	Session(ctx context.Context, id int64) (session *Session, err error)

	// Sessions returns all monitoring sessions stored in the database.
	// Results are ordered by start time in ascending order.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//
	// Returns:
	//   - sessions: Slice of pointers to session data
	//   - error: If retrieval fails or context is cancelled
	Sessions(ctx context.Context) (sessions []*Session, err error)

	// StoreBatch saves one batch of readings of a single category.
	// All readings in the batch are stored in a single atomic transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session this batch belongs to
	//   - batch: Readings delivered by one scan
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreBatch(ctx context.Context, sessionID int64, batch signal.Batch) error

	// Readings creates a reader over the stored readings of one category of a
	// session, in measurement order.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session to read from
	//   - category: Category of the readings to return
	//   - opts: Optional filters (WithBatch, WithStartTime, WithEndTime, WithTimeRange)
	//
	// Returns:
	//   - reader: Must be closed after use
	//   - error: If the session does not exist or the query fails
	Readings(ctx context.Context, sessionID int64, category signal.Category, opts ...ReaderOption) (reader ReadingReader, err error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	//
	// Returns:
	//   - error: If closing fails or some resources cannot be released
	Close() error
}
