package port

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when a key has no live record.
var ErrNotFound = errors.New("key not found")

// Write is one staged key/value pair of a transaction batch.
type Write struct {
	Key   string
	Value []byte
}

// HistoryEntry is one committed version of a key.
type HistoryEntry struct {
	TxID      string
	Timestamp time.Time
	IsDelete  bool
	Value     []byte
}

// HistoryCursor iterates a key's versions oldest first. It is finite and
// non-restartable; Close releases the underlying cursor and is safe to call
// after early termination.
type HistoryCursor interface {
	Next() bool
	Entry() HistoryEntry
	Err() error
	Close() error
}

// LedgerRepository is the versioned keyed record store the core runs
// against. Writing an existing key appends a new version; prior versions
// stay readable through History.
type LedgerRepository interface {
	// Get returns the latest version of key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// PutBatch appends one new version per write, all tagged with txID.
	// The batch commits atomically: every write lands or none do.
	PutBatch(ctx context.Context, txID string, writes []Write) error

	// History returns an oldest-first cursor over every version of key.
	History(ctx context.Context, key string) (HistoryCursor, error)
}
