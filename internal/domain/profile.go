package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FieldRule configures how one field of the indexed type is embedded.
type FieldRule struct {
	Field        string  `json:"field"`
	Weight       float64 `json:"weight"`
	Chunk        bool    `json:"chunk"`
	ChunkSize    int     `json:"chunk_size,omitempty"`
	ChunkOverlap int     `json:"chunk_overlap,omitempty"`
}

// RelationshipRule configures one relationship path contributing related text.
type RelationshipRule struct {
	Path        string   `json:"path"`
	RelatedType string   `json:"related_type"`
	Kind        string   `json:"kind"` // "one" | "many"
	Depth       int      `json:"depth"`
	Fields      []string `json:"fields"`
	Weight      float64  `json:"weight"`
}

// FilterField declares a payload field usable in search filters.
type FilterField struct {
	Field string `json:"field"`
	Type  string `json:"type"` // "keyword" | "integer" | "float" | "bool" | "datetime"
}

// IndexProfile is the persisted contract the indexing pipeline consumes:
// which fields and relationship paths of a record type are embedded, how,
// and with what weights. Generated by analysis, read-only to the pipeline
// except for the running counters.
type IndexProfile struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	RecordType string    `gorm:"column:record_type;not null;uniqueIndex" json:"record_type"`
	Collection string    `gorm:"column:collection;not null" json:"collection"`
	Enabled    bool      `gorm:"column:enabled;not null;default:true" json:"enabled"`

	Fields         datatypes.JSON `gorm:"type:jsonb;column:fields" json:"fields"`                   // ordered []FieldRule
	MetadataFields datatypes.JSON `gorm:"type:jsonb;column:metadata_fields" json:"metadata_fields"` // []string
	FilterFields   datatypes.JSON `gorm:"type:jsonb;column:filter_fields" json:"filter_fields"`     // []FilterField
	Relationships  datatypes.JSON `gorm:"type:jsonb;column:relationships" json:"relationships"`     // ordered []RelationshipRule
	EagerLoadPaths datatypes.JSON `gorm:"type:jsonb;column:eager_load_paths" json:"eager_load_paths"`

	MaxDepth int `gorm:"column:max_depth;not null;default:3" json:"max_depth"`

	IndexedCount int64      `gorm:"column:indexed_count;not null;default:0" json:"indexed_count"`
	PendingCount int64      `gorm:"column:pending_count;not null;default:0" json:"pending_count"`
	FailedCount  int64      `gorm:"column:failed_count;not null;default:0" json:"failed_count"`
	LastSyncedAt *time.Time `gorm:"column:last_synced_at" json:"last_synced_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (IndexProfile) TableName() string { return "index_profile" }

func (p *IndexProfile) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

func (p *IndexProfile) FieldRules() []FieldRule {
	var out []FieldRule
	decodeJSON(p.Fields, &out)
	return out
}

func (p *IndexProfile) SetFieldRules(rules []FieldRule) {
	p.Fields = mustJSON(rules)
}

func (p *IndexProfile) MetadataFieldNames() []string {
	var out []string
	decodeJSON(p.MetadataFields, &out)
	return out
}

func (p *IndexProfile) SetMetadataFieldNames(names []string) {
	p.MetadataFields = mustJSON(names)
}

func (p *IndexProfile) FilterFieldDefs() []FilterField {
	var out []FilterField
	decodeJSON(p.FilterFields, &out)
	return out
}

func (p *IndexProfile) SetFilterFieldDefs(defs []FilterField) {
	p.FilterFields = mustJSON(defs)
}

func (p *IndexProfile) RelationshipRules() []RelationshipRule {
	var out []RelationshipRule
	decodeJSON(p.Relationships, &out)
	return out
}

func (p *IndexProfile) SetRelationshipRules(rules []RelationshipRule) {
	p.Relationships = mustJSON(rules)
}

func (p *IndexProfile) EagerPaths() []string {
	var out []string
	decodeJSON(p.EagerLoadPaths, &out)
	return out
}

func (p *IndexProfile) SetEagerPaths(paths []string) {
	p.EagerLoadPaths = mustJSON(paths)
}

// Validate enforces the profile invariants: every relationship path must
// appear in the eager-load plan and no path may exceed MaxDepth.
func (p *IndexProfile) Validate() error {
	eager := map[string]bool{}
	for _, path := range p.EagerPaths() {
		eager[path] = true
	}
	for _, rule := range p.RelationshipRules() {
		if !eager[rule.Path] {
			return fmt.Errorf("index profile %s: relationship path %q missing from eager-load plan", p.RecordType, rule.Path)
		}
		if p.MaxDepth > 0 && rule.Depth > p.MaxDepth {
			return fmt.Errorf("index profile %s: relationship path %q depth %d exceeds max depth %d",
				p.RecordType, rule.Path, rule.Depth, p.MaxDepth)
		}
	}
	return nil
}

func decodeJSON(raw datatypes.JSON, out any) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, out)
}

func mustJSON(v any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON([]byte("null"))
	}
	return datatypes.JSON(raw)
}
