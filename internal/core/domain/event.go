package domain

import "time"

// TxEvent describes one committed write transaction. Events are emitted
// only after the ledger batch commits and feed the audit worker pool.
type TxEvent struct {
	TxID      string    `json:"txId"`
	Function  string    `json:"function"`
	Caller    string    `json:"caller"`
	Keys      []string  `json:"keys"`
	Timestamp time.Time `json:"timestamp"`
}
