package storage

import (
	"context"
	"sync"
	"time"

	"github.com/nvinayak/pharmanet/internal/core/domain"
	"github.com/nvinayak/pharmanet/internal/port"
)

// MemoryLedger is an in-process LedgerRepository for the scenario binary
// and handler tests. It keeps every version of every key, like the real
// store.
type MemoryLedger struct {
	mu       sync.RWMutex
	versions map[string][]port.HistoryEntry
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{versions: make(map[string][]port.HistoryEntry)}
}

func (m *MemoryLedger) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := m.versions[key]
	if len(entries) == 0 {
		return nil, port.ErrNotFound
	}
	latest := entries[len(entries)-1]
	if latest.IsDelete {
		return nil, port.ErrNotFound
	}
	value := make([]byte, len(latest.Value))
	copy(value, latest.Value)
	return value, nil
}

func (m *MemoryLedger) PutBatch(_ context.Context, txID string, writes []port.Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	for _, w := range writes {
		value := make([]byte, len(w.Value))
		copy(value, w.Value)
		m.versions[w.Key] = append(m.versions[w.Key], port.HistoryEntry{
			TxID:      txID,
			Timestamp: now,
			Value:     value,
		})
	}
	return nil
}

func (m *MemoryLedger) History(_ context.Context, key string) (port.HistoryCursor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]port.HistoryEntry, len(m.versions[key]))
	copy(entries, m.versions[key])
	return &memoryHistoryCursor{entries: entries, pos: -1}, nil
}

type memoryHistoryCursor struct {
	entries []port.HistoryEntry
	pos     int
}

func (c *memoryHistoryCursor) Next() bool {
	if c.pos+1 >= len(c.entries) {
		return false
	}
	c.pos++
	return true
}

func (c *memoryHistoryCursor) Entry() port.HistoryEntry {
	return c.entries[c.pos]
}

func (c *memoryHistoryCursor) Err() error { return nil }

func (c *memoryHistoryCursor) Close() error { return nil }

// MemoryCache is the in-process CacheRepository counterpart.
type MemoryCache struct {
	mu        sync.Mutex
	snapshots map[string][]byte
	requests  map[string]bool
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		snapshots: make(map[string][]byte),
		requests:  make(map[string]bool),
	}
}

func (c *MemoryCache) GetSnapshot(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.snapshots[key]
	if !ok {
		return nil, port.ErrNotFound
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (c *MemoryCache) SetSnapshot(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	c.snapshots[key] = stored
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		delete(c.snapshots, k)
	}
	return nil
}

func (c *MemoryCache) SetIdempotency(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.requests[key] {
		return false, nil
	}
	c.requests[key] = true
	return true, nil
}

// MemoryAudit collects transaction events for inspection in tests and the
// scenario binary.
type MemoryAudit struct {
	mu     sync.Mutex
	events []domain.TxEvent
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (a *MemoryAudit) RecordEvent(_ context.Context, event domain.TxEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *MemoryAudit) Events() []domain.TxEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.TxEvent, len(a.events))
	copy(out, a.events)
	return out
}
