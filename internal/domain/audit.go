package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SyncAuditLog records one completed or terminally failed sync attempt,
// kept for monitoring; never raised to interactive callers.
type SyncAuditLog struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	RecordType string `gorm:"column:record_type;not null;index:idx_audit_record" json:"record_type"`
	RecordID   string `gorm:"column:record_id;not null;index:idx_audit_record" json:"record_id"`
	Action     string `gorm:"column:action;not null" json:"action"`

	ChunkCount  int    `gorm:"column:chunk_count;not null;default:0" json:"chunk_count"`
	VectorCount int    `gorm:"column:vector_count;not null;default:0" json:"vector_count"`
	DurationMS  int64  `gorm:"column:duration_ms;not null;default:0" json:"duration_ms"`
	Status      string `gorm:"column:status;not null" json:"status"` // "completed" | "failed"
	Error       string `gorm:"column:error;type:text" json:"error,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

func (SyncAuditLog) TableName() string { return "sync_audit_log" }

func (a *SyncAuditLog) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
