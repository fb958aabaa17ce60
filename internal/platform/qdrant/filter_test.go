package qdrant

import (
	"errors"
	"testing"
)

func TestTranslateFilterScalarEquality(t *testing.T) {
	out, err := translateFilter(map[string]any{"record_type": "Article"})
	if err != nil {
		t.Fatalf("translateFilter: %v", err)
	}
	if len(out.Must) != 1 || len(out.Should) != 0 || len(out.MustNot) != 0 {
		t.Fatalf("unexpected shape: %+v", out)
	}
	cond := out.Must[0].(map[string]any)
	if cond["key"] != "record_type" {
		t.Fatalf("key = %v, want record_type", cond["key"])
	}
}

func TestTranslateFilterOperators(t *testing.T) {
	out, err := translateFilter(map[string]any{
		"status":    map[string]any{"$ne": "draft"},
		"category":  map[string]any{"$in": []any{"go", "infra"}},
		"record_id": map[string]any{"$eq": "r1"},
	})
	if err != nil {
		t.Fatalf("translateFilter: %v", err)
	}
	if len(out.Must) != 2 {
		t.Fatalf("must = %d, want 2 ($in + $eq)", len(out.Must))
	}
	if len(out.MustNot) != 1 {
		t.Fatalf("must_not = %d, want 1 ($ne)", len(out.MustNot))
	}
}

func TestTranslateFilterBooleanComposition(t *testing.T) {
	out, err := translateFilter(map[string]any{
		"$or": []any{
			map[string]any{"status": "published"},
			map[string]any{"status": "archived"},
		},
		"$not": map[string]any{"locale": "fr"},
	})
	if err != nil {
		t.Fatalf("translateFilter: %v", err)
	}
	if len(out.Should) != 2 {
		t.Fatalf("should = %d, want 2", len(out.Should))
	}
	if len(out.MustNot) != 1 {
		t.Fatalf("must_not = %d, want 1", len(out.MustNot))
	}
}

func TestTranslateFilterRejectsUnknownOperator(t *testing.T) {
	_, err := translateFilter(map[string]any{
		"score": map[string]any{"$gte": 0.5},
	})
	var opError *OperationError
	if !errors.As(err, &opError) || opError.Code != OperationErrorUnsupportedFilter {
		t.Fatalf("err = %v, want unsupported_filter OperationError", err)
	}
}

func TestTranslateFilterRejectsEmptyIn(t *testing.T) {
	_, err := translateFilter(map[string]any{
		"tags": map[string]any{"$in": []any{}},
	})
	var opError *OperationError
	if !errors.As(err, &opError) || opError.Code != OperationErrorValidation {
		t.Fatalf("err = %v, want validation OperationError", err)
	}
}
