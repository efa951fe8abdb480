package storage

import (
	"context"

	"github.com/roman-kulish/signal-monitor/internal/signal"
)

// SessionSink persists batches into one session of a Store
type SessionSink struct {
	store     Store
	sessionID int64
}

func NewSessionSink(store Store, sessionID int64) *SessionSink {
	return &SessionSink{store: store, sessionID: sessionID}
}

func (s *SessionSink) SessionID() int64 {
	return s.sessionID
}

func (s *SessionSink) Persist(ctx context.Context, batch signal.Batch) error {
	return s.store.StoreBatch(ctx, s.sessionID, batch)
}
