package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nvinayak/pharmanet/internal/core/domain"
	"github.com/nvinayak/pharmanet/internal/port"
)

// MySQLAdapter persists the versioned ledger in an append-only
// ledger_records table (see scripts/schema.sql). Each put appends the next
// version of a key; nothing is ever updated in place.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

func (m *MySQLAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	var isDelete bool
	err := m.db.QueryRowContext(ctx, `
		SELECT value, is_delete FROM ledger_records
		WHERE record_key = ? ORDER BY version DESC LIMIT 1`, key,
	).Scan(&value, &isDelete)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query latest version: %w", err)
	}
	if isDelete {
		return nil, port.ErrNotFound
	}
	return value, nil
}

func (m *MySQLAdapter) PutBatch(ctx context.Context, txID string, writes []port.Write) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, w := range writes {
		// INSERT..SELECT computes the next version inside the same
		// transaction, so concurrent writers to one key serialize on the
		// primary key instead of clobbering each other.
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_records (record_key, version, tx_id, is_delete, value, created_at)
			SELECT ?, COALESCE(MAX(version), 0) + 1, ?, 0, ?, ?
			FROM ledger_records WHERE record_key = ?`,
			w.Key, txID, w.Value, now, w.Key,
		)
		if err != nil {
			return fmt.Errorf("append version for key %q: %w", w.Key, err)
		}
	}

	return tx.Commit()
}

func (m *MySQLAdapter) History(ctx context.Context, key string) (port.HistoryCursor, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT tx_id, created_at, is_delete, value FROM ledger_records
		WHERE record_key = ? ORDER BY version ASC`, key)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return &mysqlHistoryCursor{rows: rows}, nil
}

// RecordEvent appends one committed transaction event to the audit table.
func (m *MySQLAdapter) RecordEvent(ctx context.Context, event domain.TxEvent) error {
	keys, err := json.Marshal(event.Keys)
	if err != nil {
		return fmt.Errorf("encode event keys: %w", err)
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO audit_events (tx_id, function, caller, record_keys, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		event.TxID, event.Function, event.Caller, keys, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

type mysqlHistoryCursor struct {
	rows    *sql.Rows
	entry   port.HistoryEntry
	scanErr error
}

func (c *mysqlHistoryCursor) Next() bool {
	if c.scanErr != nil || !c.rows.Next() {
		return false
	}
	var entry port.HistoryEntry
	if err := c.rows.Scan(&entry.TxID, &entry.Timestamp, &entry.IsDelete, &entry.Value); err != nil {
		c.scanErr = fmt.Errorf("scan history row: %w", err)
		return false
	}
	c.entry = entry
	return true
}

func (c *mysqlHistoryCursor) Entry() port.HistoryEntry {
	return c.entry
}

func (c *mysqlHistoryCursor) Err() error {
	if c.scanErr != nil {
		return c.scanErr
	}
	return c.rows.Err()
}

func (c *mysqlHistoryCursor) Close() error {
	return c.rows.Close()
}
