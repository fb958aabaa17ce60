package store

import "strings"

// Record is one materialized record instance. Relations hold eagerly
// loaded related records, keyed by relation accessor name; to-one
// relations carry a single-element slice.
type Record struct {
	Type      string
	ID        string
	Fields    map[string]any
	Relations map[string][]*Record
}

// Related navigates one hop and returns the loaded related records, or
// nil when the relation was not loaded or is empty.
func (r *Record) Related(accessor string) []*Record {
	if r == nil || r.Relations == nil {
		return nil
	}
	return r.Relations[accessor]
}

// WalkPath navigates a dotted relationship path over already-loaded
// relations and returns every record instance reached at the end of the
// path. A nil hop anywhere yields no instances; that is not an error.
func (r *Record) WalkPath(path string) []*Record {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	current := []*Record{r}
	for _, segment := range strings.Split(path, ".") {
		var next []*Record
		for _, rec := range current {
			next = append(next, rec.Related(segment)...)
		}
		if len(next) == 0 {
			return nil
		}
		current = next
	}
	return current
}

type ChangeAction string

const (
	ChangeCreate ChangeAction = "create"
	ChangeUpdate ChangeAction = "update"
	ChangeDelete ChangeAction = "delete"
)

// ChangeEvent is the notification a record store delivers on every
// create/update/delete, carrying the set of changed field names.
type ChangeEvent struct {
	Action        ChangeAction
	RecordType    string
	RecordID      string
	ChangedFields []string
}

func (e ChangeEvent) Changed(field string) bool {
	for _, f := range e.ChangedFields {
		if f == field {
			return true
		}
	}
	return false
}
