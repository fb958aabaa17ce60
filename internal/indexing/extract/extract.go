package extract

import (
	"fmt"
	"strings"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/store"
)

// ContentItem is one piece of embeddable text pulled from a record or
// one of its loaded relations. SourcePath is empty for the record's own
// fields and the relationship path otherwise.
type ContentItem struct {
	SourcePath   string
	Field        string
	Text         string
	Weight       float64
	Chunk        bool
	ChunkSize    int
	ChunkOverlap int
}

// Extract walks a materialized record under its profile and returns the
// content items in profile order: own fields first, then relationship
// text. Related text is never chunked; a relation contributes short
// context, not documents. Unreadable or blank values are skipped, never
// errors.
func Extract(rec *store.Record, profile *domain.IndexProfile) []ContentItem {
	if rec == nil || profile == nil {
		return nil
	}

	var items []ContentItem
	for _, rule := range profile.FieldRules() {
		text, ok := stringify(rec.Fields[rule.Field])
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		items = append(items, ContentItem{
			Field:        rule.Field,
			Text:         strings.TrimSpace(text),
			Weight:       rule.Weight,
			Chunk:        rule.Chunk,
			ChunkSize:    rule.ChunkSize,
			ChunkOverlap: rule.ChunkOverlap,
		})
	}

	for _, rule := range profile.RelationshipRules() {
		for _, related := range rec.WalkPath(rule.Path) {
			for _, field := range rule.Fields {
				text, ok := stringify(related.Fields[field])
				if !ok || strings.TrimSpace(text) == "" {
					continue
				}
				items = append(items, ContentItem{
					SourcePath: rule.Path,
					Field:      field,
					Text:       strings.TrimSpace(text),
					Weight:     rule.Weight,
				})
			}
		}
	}
	return items
}

// Metadata collects the profile's payload metadata fields from the
// record, skipping absent values.
func Metadata(rec *store.Record, profile *domain.IndexProfile) map[string]any {
	if rec == nil || profile == nil {
		return nil
	}
	names := profile.MetadataFieldNames()
	if len(names) == 0 {
		return nil
	}
	out := make(map[string]any, len(names))
	for _, name := range names {
		value, ok := rec.Fields[name]
		if !ok || value == nil {
			continue
		}
		out[name] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func stringify(value any) (string, bool) {
	switch typed := value.(type) {
	case nil:
		return "", false
	case string:
		return typed, true
	case []string:
		return strings.Join(typed, ", "), true
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			part, ok := stringify(item)
			if !ok {
				return "", false
			}
			parts = append(parts, part)
		}
		return strings.Join(parts, ", "), true
	case fmt.Stringer:
		return typed.String(), true
	default:
		return "", false
	}
}
