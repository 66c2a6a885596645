package port

import (
	"context"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(ctx context.Context, entry domain.AuditLog) error
}
