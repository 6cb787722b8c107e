package port

import (
	"context"

	"github.com/nvinayak/pharmanet/internal/core/domain"
)

type AuditRepository interface {
	// RecordEvent persists one committed transaction event
	RecordEvent(ctx context.Context, event domain.TxEvent) error
}
