package extract

import (
	"testing"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/store"
)

func articleProfile() *domain.IndexProfile {
	profile := &domain.IndexProfile{RecordType: "Article", Collection: "records_article"}
	profile.SetFieldRules([]domain.FieldRule{
		{Field: "title", Weight: 2.0},
		{Field: "body", Weight: 1.0, Chunk: true, ChunkSize: 1000, ChunkOverlap: 200},
	})
	profile.SetRelationshipRules([]domain.RelationshipRule{
		{Path: "author", RelatedType: "Author", Kind: "one", Depth: 1, Fields: []string{"name", "bio"}, Weight: 0.7},
		{Path: "comments", RelatedType: "Comment", Kind: "many", Depth: 1, Fields: []string{"text"}, Weight: 0.7},
	})
	profile.SetEagerPaths([]string{"author", "comments"})
	profile.SetMetadataFieldNames([]string{"status", "views"})
	return profile
}

func articleRecord() *store.Record {
	return &store.Record{
		Type: "Article",
		ID:   "a1",
		Fields: map[string]any{
			"title":  "Vector indexing in practice",
			"body":   "Long body text.",
			"status": "published",
			"views":  42,
		},
		Relations: map[string][]*store.Record{
			"author": {{
				Type:   "Author",
				ID:     "u1",
				Fields: map[string]any{"name": "Ada", "bio": "Writes about infra."},
			}},
			"comments": {
				{Type: "Comment", ID: "c1", Fields: map[string]any{"text": "Great read."}},
				{Type: "Comment", ID: "c2", Fields: map[string]any{"text": ""}},
			},
		},
	}
}

func TestExtractOrdersOwnFieldsFirst(t *testing.T) {
	items := Extract(articleRecord(), articleProfile())
	if len(items) != 5 {
		t.Fatalf("items = %d, want 5", len(items))
	}
	if items[0].Field != "title" || items[0].Weight != 2.0 || items[0].SourcePath != "" {
		t.Fatalf("first item = %+v, want own title field", items[0])
	}
	if items[1].Field != "body" || !items[1].Chunk {
		t.Fatalf("second item = %+v, want chunked body", items[1])
	}
}

func TestExtractRelationshipTextNeverChunked(t *testing.T) {
	items := Extract(articleRecord(), articleProfile())
	for _, item := range items {
		if item.SourcePath == "" {
			continue
		}
		if item.Chunk {
			t.Fatalf("relationship item %+v is marked for chunking", item)
		}
		if item.Weight != 0.7 {
			t.Fatalf("relationship item weight = %v, want 0.7", item.Weight)
		}
	}
}

func TestExtractSkipsBlankAndMissingValues(t *testing.T) {
	rec := articleRecord()
	rec.Fields["title"] = "   "
	delete(rec.Fields, "body")

	items := Extract(rec, articleProfile())
	for _, item := range items {
		if item.SourcePath == "" {
			t.Fatalf("own field %q extracted from blank record", item.Field)
		}
	}
	// The blank comment c2 is skipped too.
	commentItems := 0
	for _, item := range items {
		if item.SourcePath == "comments" {
			commentItems++
		}
	}
	if commentItems != 1 {
		t.Fatalf("comment items = %d, want 1", commentItems)
	}
}

func TestExtractUnreadableValuesSkipped(t *testing.T) {
	rec := articleRecord()
	rec.Fields["title"] = map[string]any{"nested": true}

	items := Extract(rec, articleProfile())
	for _, item := range items {
		if item.Field == "title" && item.SourcePath == "" {
			t.Fatalf("unreadable title value extracted: %+v", item)
		}
	}
}

func TestMetadataCollectsPresentFields(t *testing.T) {
	meta := Metadata(articleRecord(), articleProfile())
	if meta["status"] != "published" {
		t.Fatalf("status = %v, want published", meta["status"])
	}
	if meta["views"] != 42 {
		t.Fatalf("views = %v, want 42", meta["views"])
	}
}

func TestMetadataNilWhenNothingPresent(t *testing.T) {
	rec := &store.Record{Type: "Article", ID: "a2", Fields: map[string]any{"title": "t"}}
	if meta := Metadata(rec, articleProfile()); meta != nil {
		t.Fatalf("meta = %v, want nil", meta)
	}
}

func TestStringifySlices(t *testing.T) {
	got, ok := stringify([]string{"go", "infra"})
	if !ok || got != "go, infra" {
		t.Fatalf("stringify = %q/%v, want joined string", got, ok)
	}
	got, ok = stringify([]any{"a", "b"})
	if !ok || got != "a, b" {
		t.Fatalf("stringify []any = %q/%v", got, ok)
	}
	if _, ok := stringify(42); ok {
		t.Fatal("stringify(42) should fail")
	}
}
