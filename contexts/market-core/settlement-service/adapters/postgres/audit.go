package postgresadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"calyx/contexts/market-core/settlement-service/ports"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog appends settlement audit entries to the shared market audit
// trail. Callers treat failures as best effort.
type AuditLog struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAuditLog(db *gorm.DB, logger *slog.Logger) *AuditLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLog{
		db:     db,
		logger: logger,
	}
}

func (l *AuditLog) RecordAuditEntry(ctx context.Context, event string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	row := auditEntryModel{
		ID:        uuid.NewString(),
		Event:     strings.TrimSpace(event),
		Payload:   body,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.db.WithContext(ctx).Create(&row).Error; err != nil {
		l.logger.Error("audit entry insert failed",
			"event", "settlement_audit_insert_failed",
			"module", "market-core/settlement-service",
			"layer", "adapter",
			"audit_event", row.Event,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

type auditEntryModel struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Event     string    `gorm:"column:event"`
	Payload   []byte    `gorm:"column:payload"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (auditEntryModel) TableName() string {
	return "market_audit_entries"
}

var _ ports.AuditRecorder = (*AuditLog)(nil)
