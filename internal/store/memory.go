package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory RecordStore used by tests and by the inline
// dispatch mode in local runs. Relations are held directly on records, so
// Get returns them already materialized regardless of eagerPaths.
type MemoryStore struct {
	mu        sync.RWMutex
	schema    *Schema
	records   map[string]map[string]*Record // type -> id -> record
	notifiers []ChangeNotifier
}

func NewMemoryStore(schema *Schema) *MemoryStore {
	return &MemoryStore{
		schema:  schema,
		records: map[string]map[string]*Record{},
	}
}

func (s *MemoryStore) Put(rec *Record) error {
	if rec == nil || strings.TrimSpace(rec.Type) == "" || strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("memory store: record requires type and id")
	}
	if s.schema != nil {
		if _, ok := s.schema.Type(rec.Type); !ok {
			return fmt.Errorf("memory store: unknown record type %q", rec.Type)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID, ok := s.records[rec.Type]
	if !ok {
		byID = map[string]*Record{}
		s.records[rec.Type] = byID
	}
	byID[rec.ID] = rec
	return nil
}

// Subscribe registers a notifier for subsequent Save/Remove calls. Put
// and Delete stay silent; tests use them to arrange state without side
// effects.
func (s *MemoryStore) Subscribe(n ChangeNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// Save writes the record and notifies subscribers with a create or
// update event carrying the changed field names.
func (s *MemoryStore) Save(ctx context.Context, rec *Record, changedFields []string) error {
	action := ChangeCreate
	s.mu.RLock()
	if byID, ok := s.records[rec.Type]; ok {
		if _, exists := byID[rec.ID]; exists {
			action = ChangeUpdate
		}
	}
	s.mu.RUnlock()

	if err := s.Put(rec); err != nil {
		return err
	}
	return s.notify(ctx, ChangeEvent{
		Action:        action,
		RecordType:    rec.Type,
		RecordID:      rec.ID,
		ChangedFields: changedFields,
	})
}

// Remove deletes the record and notifies subscribers. Notification runs
// before removal so owner resolution over relationship paths still
// reaches the record.
func (s *MemoryStore) Remove(ctx context.Context, recordType, id string) error {
	err := s.notify(ctx, ChangeEvent{
		Action:     ChangeDelete,
		RecordType: recordType,
		RecordID:   id,
	})
	s.Delete(recordType, id)
	return err
}

func (s *MemoryStore) notify(ctx context.Context, ev ChangeEvent) error {
	s.mu.RLock()
	notifiers := make([]ChangeNotifier, len(s.notifiers))
	copy(notifiers, s.notifiers)
	s.mu.RUnlock()
	for _, n := range notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Delete(recordType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if byID, ok := s.records[recordType]; ok {
		delete(byID, id)
	}
}

func (s *MemoryStore) Get(ctx context.Context, recordType, id string, eagerPaths []string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID, ok := s.records[recordType]
	if !ok {
		return nil, ErrRecordNotFound
	}
	rec, ok := byID[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListIDs(ctx context.Context, recordType string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byID := s.records[recordType]
	out := make([]string, 0, len(byID))
	for id := range byID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) OwnersOf(ctx context.Context, parentType, path, relatedID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for id, rec := range s.records[parentType] {
		for _, leaf := range rec.WalkPath(path) {
			if leaf != nil && leaf.ID == relatedID {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}
