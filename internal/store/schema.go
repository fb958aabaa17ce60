package store

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

type RelationKind string

const (
	RelationOne  RelationKind = "one"
	RelationMany RelationKind = "many"
)

type StorageType string

const (
	StorageVarchar    StorageType = "varchar"
	StorageText       StorageType = "text"
	StorageMediumText StorageType = "mediumtext"
	StorageLongText   StorageType = "longtext"
	StorageInt        StorageType = "int"
	StorageFloat      StorageType = "float"
	StorageBool       StorageType = "bool"
	StorageDateTime   StorageType = "datetime"
	StorageJSON       StorageType = "json"
	StorageBinary     StorageType = "binary"
)

// FieldDef describes one scalar field of a record type.
type FieldDef struct {
	Name string      `yaml:"name"`
	Type StorageType `yaml:"type"`
}

// RelationDef describes one relation accessor of a record type. The
// descriptor table replaces runtime reflection: the record-store adapter
// declares its relations instead of the engine inspecting accessor methods.
type RelationDef struct {
	Accessor    string       `yaml:"accessor"`
	RelatedType string       `yaml:"related_type"`
	Kind        RelationKind `yaml:"kind"`
	Inverse     string       `yaml:"inverse,omitempty"`
}

// TypeDescriptor is the declarative shape of one record type.
type TypeDescriptor struct {
	Name      string        `yaml:"name"`
	Fields    []FieldDef    `yaml:"fields"`
	Relations []RelationDef `yaml:"relations,omitempty"`
}

// Schema is the registry of all record types known to the engine.
type Schema struct {
	types map[string]TypeDescriptor
}

func NewSchema() *Schema {
	return &Schema{types: map[string]TypeDescriptor{}}
}

func (s *Schema) Register(desc TypeDescriptor) error {
	name := strings.TrimSpace(desc.Name)
	if name == "" {
		return fmt.Errorf("schema: type descriptor missing name")
	}
	for _, rel := range desc.Relations {
		if strings.TrimSpace(rel.Accessor) == "" || strings.TrimSpace(rel.RelatedType) == "" {
			return fmt.Errorf("schema: type %q has relation with missing accessor or related type", name)
		}
		if rel.Kind != RelationOne && rel.Kind != RelationMany {
			return fmt.Errorf("schema: type %q relation %q has invalid kind %q", name, rel.Accessor, rel.Kind)
		}
	}
	s.types[name] = desc
	return nil
}

func (s *Schema) Type(name string) (TypeDescriptor, bool) {
	desc, ok := s.types[name]
	return desc, ok
}

func (s *Schema) TypeNames() []string {
	out := make([]string, 0, len(s.types))
	for name := range s.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type schemaFile struct {
	Types []TypeDescriptor `yaml:"types"`
}

// LoadSchemaFile reads a declarative schema from a YAML file.
func LoadSchemaFile(path string) (*Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("schema: read %s: %w", path, err)
	}
	var file schemaFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", path, err)
	}
	schema := NewSchema()
	for _, desc := range file.Types {
		if err := schema.Register(desc); err != nil {
			return nil, err
		}
	}
	return schema, nil
}

// UnboundedText reports whether the storage type holds text with a large
// or unbounded capacity.
func UnboundedText(t StorageType) bool {
	switch t {
	case StorageText, StorageMediumText, StorageLongText:
		return true
	default:
		return false
	}
}

// TextBearing reports whether a field of this storage type can contribute
// searchable text.
func TextBearing(t StorageType) bool {
	switch t {
	case StorageVarchar, StorageText, StorageMediumText, StorageLongText:
		return true
	default:
		return false
	}
}
