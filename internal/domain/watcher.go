package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const OnChangeReindexParent = "reindex_parent"

// RelationshipWatcher is a persisted rule causing changes on a related
// record to trigger re-indexing of the owning parent. Disabled, never
// deleted, when watching is turned off.
type RelationshipWatcher struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ProfileID uuid.UUID `gorm:"type:uuid;column:profile_id;not null;index" json:"profile_id"`

	ParentType  string `gorm:"column:parent_type;not null;index" json:"parent_type"`
	RelatedType string `gorm:"column:related_type;not null;index" json:"related_type"`
	Kind        string `gorm:"column:kind;not null" json:"kind"` // "one" | "many"
	Path        string `gorm:"column:path;not null" json:"path"`
	Depth       int    `gorm:"column:depth;not null" json:"depth"`

	Fields   datatypes.JSON `gorm:"type:jsonb;column:fields" json:"fields"` // watched field names
	OnChange string         `gorm:"column:on_change;not null;default:'reindex_parent'" json:"on_change"`
	Enabled  bool           `gorm:"column:enabled;not null;default:true" json:"enabled"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (RelationshipWatcher) TableName() string { return "relationship_watcher" }

func (w *RelationshipWatcher) BeforeCreate(*gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

func (w *RelationshipWatcher) WatchedFields() []string {
	var out []string
	decodeJSON(w.Fields, &out)
	return out
}

func (w *RelationshipWatcher) SetWatchedFields(fields []string) {
	w.Fields = mustJSON(fields)
}
