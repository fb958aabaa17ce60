package store

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type recordEntry struct {
	Type      string              `yaml:"type"`
	ID        string              `yaml:"id"`
	Fields    map[string]any      `yaml:"fields"`
	Relations map[string][]string `yaml:"relations,omitempty"`
}

type recordsFile struct {
	Records []recordEntry `yaml:"records"`
}

// LoadRecordsFile builds a MemoryStore populated from a YAML record dump.
// Relations reference other records in the file by id; the related type
// comes from the schema's relation definition. Used by the backfill
// binary and by local runs without a live record-store adapter.
func LoadRecordsFile(schema *Schema, path string) (*MemoryStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("records: read %s: %w", path, err)
	}
	var file recordsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("records: parse %s: %w", path, err)
	}

	byKey := make(map[string]*Record, len(file.Records))
	for _, entry := range file.Records {
		rec := &Record{Type: entry.Type, ID: entry.ID, Fields: entry.Fields}
		byKey[entry.Type+"/"+entry.ID] = rec
	}

	ms := NewMemoryStore(schema)
	for _, entry := range file.Records {
		rec := byKey[entry.Type+"/"+entry.ID]
		for accessor, ids := range entry.Relations {
			relatedType, err := relatedTypeFor(schema, entry.Type, accessor)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				related, ok := byKey[relatedType+"/"+id]
				if !ok {
					return nil, fmt.Errorf("records: %s/%s relation %q references missing %s/%s",
						entry.Type, entry.ID, accessor, relatedType, id)
				}
				if rec.Relations == nil {
					rec.Relations = map[string][]*Record{}
				}
				rec.Relations[accessor] = append(rec.Relations[accessor], related)
			}
		}
		if err := ms.Put(rec); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

func relatedTypeFor(schema *Schema, recordType, accessor string) (string, error) {
	desc, ok := schema.Type(recordType)
	if !ok {
		return "", fmt.Errorf("records: unknown record type %q", recordType)
	}
	for _, rel := range desc.Relations {
		if rel.Accessor == accessor {
			return rel.RelatedType, nil
		}
	}
	return "", fmt.Errorf("records: type %q has no relation %q", recordType, accessor)
}
