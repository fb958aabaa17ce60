package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionIndex  = "index"
	ActionUpdate = "update"
	ActionDelete = "delete"

	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"

	OriginChangeEvent = "change-event"
	OriginManual      = "manual"
	OriginBackfill    = "backfill"
)

// QueueItem is one durable unit of indexing work. Items are never deleted;
// superseded items are suppressed at enqueue time by the debounce check and
// the partial unique index on active (profile, type, id, action) tuples.
// NotBefore holds the earliest claim time: the debounce window on insert,
// a backoff delay after a retryable failure.
type QueueItem struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID uuid.UUID `gorm:"type:uuid;column:profile_id;not null;index" json:"profile_id"`

	RecordType string `gorm:"column:record_type;not null;index:idx_queue_record" json:"record_type"`
	RecordID   string `gorm:"column:record_id;not null;index:idx_queue_record" json:"record_id"`
	Action     string `gorm:"column:action;not null" json:"action"`

	TriggerPath *string `gorm:"column:trigger_path" json:"trigger_path,omitempty"`
	Origin      string  `gorm:"column:origin;not null;default:'change-event'" json:"origin"`

	Status    string    `gorm:"column:status;not null;default:'pending';index" json:"status"`
	Attempts  int       `gorm:"column:attempts;not null;default:0" json:"attempts"`
	NotBefore time.Time `gorm:"column:not_before;not null;index" json:"not_before"`
	LastError string    `gorm:"column:last_error;type:text" json:"last_error,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (QueueItem) TableName() string { return "index_queue_item" }

func (q *QueueItem) BeforeCreate(*gorm.DB) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.NotBefore.IsZero() {
		q.NotBefore = time.Now().UTC()
	}
	return nil
}
