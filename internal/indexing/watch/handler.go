package watch

import (
	"context"
	"fmt"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/jobs"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
	"github.com/yungbote/vectorbridge-backend/internal/store"
)

// Handler routes record change events into indexing work. It reacts two
// ways: changes to an indexed type queue work for that record directly,
// and changes to a watched related type queue re-index work for every
// parent record whose relationship path reaches the changed record.
type Handler struct {
	log        *logger.Logger
	registry   *Registry
	records    store.RecordStore
	dispatcher jobs.Dispatcher
}

var _ store.ChangeNotifier = (*Handler)(nil)

func NewHandler(log *logger.Logger, registry *Registry, records store.RecordStore, dispatcher jobs.Dispatcher) *Handler {
	return &Handler{
		log:        log.With("service", "ChangeHandler"),
		registry:   registry,
		records:    records,
		dispatcher: dispatcher,
	}
}

func (h *Handler) Notify(ctx context.Context, ev store.ChangeEvent) error {
	if err := h.handleDirect(ctx, ev); err != nil {
		return err
	}
	return h.handleWatched(ctx, ev)
}

func (h *Handler) handleDirect(ctx context.Context, ev store.ChangeEvent) error {
	profile, ok := h.registry.ProfileFor(ev.RecordType)
	if !ok {
		return nil
	}

	var action string
	switch ev.Action {
	case store.ChangeCreate:
		action = domain.ActionIndex
	case store.ChangeDelete:
		action = domain.ActionDelete
	case store.ChangeUpdate:
		if !h.relevantUpdate(profile, ev) {
			h.log.Debug("update touched no indexed fields, skipping",
				"record_type", ev.RecordType, "record_id", ev.RecordID)
			return nil
		}
		action = domain.ActionUpdate
	default:
		return fmt.Errorf("unknown change action %q", ev.Action)
	}

	_, err := h.dispatcher.Dispatch(ctx, &domain.QueueItem{
		ProfileID:  profile.ID,
		RecordType: ev.RecordType,
		RecordID:   ev.RecordID,
		Action:     action,
		Origin:     domain.OriginChangeEvent,
	})
	return err
}

func (h *Handler) handleWatched(ctx context.Context, ev store.ChangeEvent) error {
	for _, watcher := range h.registry.WatchersFor(ev.RecordType) {
		if ev.Action == store.ChangeUpdate && !watchedFieldChanged(watcher, ev) {
			continue
		}
		parentProfile, ok := h.registry.ProfileFor(watcher.ParentType)
		if !ok {
			continue
		}

		owners, err := h.records.OwnersOf(ctx, watcher.ParentType, watcher.Path, ev.RecordID)
		if err != nil {
			return fmt.Errorf("resolve owners of %s/%s via %s: %w", ev.RecordType, ev.RecordID, watcher.Path, err)
		}
		for _, ownerID := range owners {
			path := watcher.Path
			_, err := h.dispatcher.Dispatch(ctx, &domain.QueueItem{
				ProfileID:   parentProfile.ID,
				RecordType:  watcher.ParentType,
				RecordID:    ownerID,
				Action:      domain.ActionUpdate,
				TriggerPath: &path,
				Origin:      domain.OriginChangeEvent,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// relevantUpdate reports whether any changed field feeds the index:
// embedded text, payload metadata, or a filter field. An event with no
// field list is treated as relevant.
func (h *Handler) relevantUpdate(profile *domain.IndexProfile, ev store.ChangeEvent) bool {
	if len(ev.ChangedFields) == 0 {
		return true
	}
	indexed := map[string]bool{}
	for _, rule := range profile.FieldRules() {
		indexed[rule.Field] = true
	}
	for _, name := range profile.MetadataFieldNames() {
		indexed[name] = true
	}
	for _, def := range profile.FilterFieldDefs() {
		indexed[def.Field] = true
	}
	for _, field := range ev.ChangedFields {
		if indexed[field] {
			return true
		}
	}
	return false
}

// watchedFieldChanged mirrors relevantUpdate for watcher rules: an empty
// watch list or an empty change list means the parent re-indexes.
func watchedFieldChanged(watcher *domain.RelationshipWatcher, ev store.ChangeEvent) bool {
	watched := watcher.WatchedFields()
	if len(watched) == 0 || len(ev.ChangedFields) == 0 {
		return true
	}
	for _, field := range watched {
		if ev.Changed(field) {
			return true
		}
	}
	return false
}
