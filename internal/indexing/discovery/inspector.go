package discovery

import (
	"strings"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/store"
)

// Weight classes assigned by field name. Unrecognized text fields fall
// back to body weight.
const (
	weightTitle   = 2.0
	weightSummary = 1.5
	weightBody    = 1.0
	weightNotes   = 0.7
	weightTags    = 0.5
)

var (
	titleNames   = nameSet("title", "name", "subject", "heading", "headline")
	summaryNames = nameSet("summary", "description", "abstract", "overview", "excerpt", "tagline")
	bodyNames    = nameSet("body", "content", "text", "article", "transcript")
	notesNames   = nameSet("notes", "note", "comment", "comments", "remarks")
	tagsNames    = nameSet("tags", "keywords", "labels", "categories", "topics")

	// varchar fields with these names are useful as search filters even
	// though they carry little embedding signal.
	enumishNames = nameSet("status", "state", "type", "kind", "category", "visibility", "role", "locale", "language")
)

func nameSet(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// classifyField maps one schema field onto an embedding rule. The second
// return is false when the field carries no embeddable text.
func classifyField(def store.FieldDef) (domain.FieldRule, bool) {
	if !store.TextBearing(def.Type) {
		return domain.FieldRule{}, false
	}

	name := strings.ToLower(strings.TrimSpace(def.Name))
	rule := domain.FieldRule{Field: def.Name, Weight: weightBody}

	switch {
	case titleNames[name]:
		rule.Weight = weightTitle
	case summaryNames[name]:
		rule.Weight = weightSummary
	case bodyNames[name]:
		rule.Weight = weightBody
	case notesNames[name]:
		rule.Weight = weightNotes
	case tagsNames[name]:
		rule.Weight = weightTags
	}

	// Only large text columns are worth chunking; short columns embed
	// whole regardless of name class.
	if store.UnboundedText(def.Type) {
		rule.Chunk = true
		rule.ChunkSize, rule.ChunkOverlap = chunkParams(def.Type)
	}
	return rule, true
}

// chunkParams scales chunk geometry with the column's storage capacity.
func chunkParams(t store.StorageType) (size, overlap int) {
	switch t {
	case store.StorageLongText:
		return 4000, 400
	case store.StorageMediumText:
		return 2000, 200
	default:
		return 1000, 200
	}
}

// classifyMetadata picks the non-embedded fields worth carrying in vector
// payloads, and which of those are filterable.
func classifyMetadata(def store.FieldDef) (metadata bool, filter *domain.FilterField) {
	name := strings.ToLower(strings.TrimSpace(def.Name))
	switch def.Type {
	case store.StorageInt:
		return true, &domain.FilterField{Field: def.Name, Type: "integer"}
	case store.StorageFloat:
		return true, &domain.FilterField{Field: def.Name, Type: "float"}
	case store.StorageBool:
		return true, &domain.FilterField{Field: def.Name, Type: "bool"}
	case store.StorageDateTime:
		return true, &domain.FilterField{Field: def.Name, Type: "datetime"}
	case store.StorageVarchar:
		if enumishNames[name] {
			return true, &domain.FilterField{Field: def.Name, Type: "keyword"}
		}
		return false, nil
	default:
		return false, nil
	}
}

// relatedFieldPick chooses which fields of a related type contribute text
// through a relationship. Unbounded body columns are excluded so one
// relation cannot dominate the parent's embedding.
func relatedFieldPick(desc store.TypeDescriptor) []string {
	const maxRelatedFields = 4
	var picked []string
	for _, def := range desc.Fields {
		if !store.TextBearing(def.Type) {
			continue
		}
		if store.UnboundedText(def.Type) {
			name := strings.ToLower(strings.TrimSpace(def.Name))
			if !summaryNames[name] {
				continue
			}
		}
		picked = append(picked, def.Name)
		if len(picked) == maxRelatedFields {
			break
		}
	}
	return picked
}
