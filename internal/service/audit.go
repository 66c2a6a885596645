package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/arturoeanton/go-medqa-rag/internal/domain"
	"github.com/arturoeanton/go-medqa-rag/internal/port"
	"github.com/google/uuid"
)

// LogAuditWriter writes audit records as structured log lines.
type LogAuditWriter struct {
	logger *slog.Logger
}

var _ port.AuditWriter = (*LogAuditWriter)(nil)

// NewLogAuditWriter writes to logger, or to slog.Default() when logger is nil.
func NewLogAuditWriter(logger *slog.Logger) *LogAuditWriter {
	return &LogAuditWriter{logger: logger}
}

func (w *LogAuditWriter) WriteAudit(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	logger := w.logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		slog.String("id", entry.ID),
		slog.String("action", entry.Action),
		slog.String("resource", entry.Resource),
		slog.String("resource_id", entry.ResourceID),
		slog.String("details", entry.Details),
		slog.String("ip", entry.IP),
		slog.String("user_agent", entry.UserAgent),
		slog.Time("created_at", entry.CreatedAt),
	)
	return nil
}
