package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeRecordsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write records: %v", err)
	}
	return path
}

func articleAuthorSchema(t *testing.T) *Schema {
	t.Helper()
	schema := NewSchema()
	descriptors := []TypeDescriptor{
		{
			Name:   "Article",
			Fields: []FieldDef{{Name: "title", Type: StorageVarchar}},
			Relations: []RelationDef{
				{Accessor: "author", RelatedType: "Author", Kind: RelationOne},
			},
		},
		{
			Name:   "Author",
			Fields: []FieldDef{{Name: "name", Type: StorageVarchar}},
		},
	}
	for _, desc := range descriptors {
		if err := schema.Register(desc); err != nil {
			t.Fatalf("register %s: %v", desc.Name, err)
		}
	}
	return schema
}

func TestLoadRecordsFileResolvesRelations(t *testing.T) {
	path := writeRecordsFile(t, `records:
  - type: Author
    id: au1
    fields:
      name: Ada
  - type: Article
    id: a1
    fields:
      title: Hello
    relations:
      author: [au1]
  - type: Article
    id: a2
    fields:
      title: Second
`)

	records, err := LoadRecordsFile(articleAuthorSchema(t), path)
	if err != nil {
		t.Fatalf("LoadRecordsFile: %v", err)
	}

	ids, err := records.ListIDs(context.Background(), "Article")
	if err != nil {
		t.Fatalf("ListIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "a1" || ids[1] != "a2" {
		t.Fatalf("ids = %v, want [a1 a2]", ids)
	}

	rec, err := records.Get(context.Background(), "Article", "a1", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	authors := rec.Related("author")
	if len(authors) != 1 || authors[0].Fields["name"] != "Ada" {
		t.Fatalf("author relation = %+v, want Ada", authors)
	}

	owners, err := records.OwnersOf(context.Background(), "Article", "author", "au1")
	if err != nil {
		t.Fatalf("OwnersOf: %v", err)
	}
	if len(owners) != 1 || owners[0] != "a1" {
		t.Fatalf("owners = %v, want [a1]", owners)
	}
}

func TestLoadRecordsFileRejectsDanglingReference(t *testing.T) {
	path := writeRecordsFile(t, `records:
  - type: Article
    id: a1
    fields:
      title: Hello
    relations:
      author: [ghost]
`)

	if _, err := LoadRecordsFile(articleAuthorSchema(t), path); err == nil {
		t.Fatal("dangling relation reference should be rejected")
	}
}

func TestLoadRecordsFileRejectsUnknownAccessor(t *testing.T) {
	path := writeRecordsFile(t, `records:
  - type: Article
    id: a1
    fields:
      title: Hello
    relations:
      editor: [au1]
  - type: Author
    id: au1
    fields:
      name: Ada
`)

	if _, err := LoadRecordsFile(articleAuthorSchema(t), path); err == nil {
		t.Fatal("unknown relation accessor should be rejected")
	}
}
