package watch

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/vectorbridge-backend/internal/data/repos"
	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/indexing/discovery"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

// Registry holds the enabled profiles and watcher rules in memory for
// fast change-event routing. Nothing is watched implicitly: a record
// type participates only after Register (or a previous registration
// loaded by Init).
type Registry struct {
	log      *logger.Logger
	profiles repos.ProfileRepo
	watchers repos.WatcherRepo

	mu        sync.RWMutex
	byType    map[string]*domain.IndexProfile
	byRelated map[string][]*domain.RelationshipWatcher
}

func NewRegistry(log *logger.Logger, profiles repos.ProfileRepo, watchers repos.WatcherRepo) *Registry {
	return &Registry{
		log:       log.With("service", "WatchRegistry"),
		profiles:  profiles,
		watchers:  watchers,
		byType:    map[string]*domain.IndexProfile{},
		byRelated: map[string][]*domain.RelationshipWatcher{},
	}
}

// Init loads every enabled profile and its watcher rules from the
// database. Call once at startup before wiring the change handler.
func (r *Registry) Init(ctx context.Context) error {
	dbc := dbctx.Context{Ctx: ctx}
	profiles, err := r.profiles.ListEnabled(dbc)
	if err != nil {
		return fmt.Errorf("load enabled profiles: %w", err)
	}

	byType := make(map[string]*domain.IndexProfile, len(profiles))
	byRelated := map[string][]*domain.RelationshipWatcher{}
	for _, profile := range profiles {
		byType[profile.RecordType] = profile
		watchers, err := r.watchers.ListByProfile(dbc, profile.ID)
		if err != nil {
			return fmt.Errorf("load watchers for %s: %w", profile.RecordType, err)
		}
		for _, w := range watchers {
			if !w.Enabled {
				continue
			}
			byRelated[w.RelatedType] = append(byRelated[w.RelatedType], w)
		}
	}

	r.mu.Lock()
	r.byType = byType
	r.byRelated = byRelated
	r.mu.Unlock()

	r.log.Info("watch registry initialized", "profiles", len(byType))
	return nil
}

// Register persists a discovery analysis and activates it: the profile
// is upserted, its watcher set replaced, and the in-memory routing maps
// refreshed.
func (r *Registry) Register(ctx context.Context, analysis *discovery.Analysis) error {
	if analysis == nil || analysis.Profile == nil {
		return fmt.Errorf("register: empty analysis")
	}
	if err := analysis.Profile.Validate(); err != nil {
		return err
	}

	dbc := dbctx.Context{Ctx: ctx}
	if err := r.profiles.Upsert(dbc, analysis.Profile); err != nil {
		return fmt.Errorf("persist profile %s: %w", analysis.Profile.RecordType, err)
	}

	// Upsert on conflict keeps the existing row id, so re-read before
	// attaching watchers.
	profile, err := r.profiles.GetByRecordType(dbc, analysis.Profile.RecordType)
	if err != nil {
		return err
	}
	if err := r.watchers.ReplaceForProfile(dbc, profile.ID, analysis.Watchers); err != nil {
		return fmt.Errorf("persist watchers for %s: %w", profile.RecordType, err)
	}

	return r.Init(ctx)
}

// Teardown disables a profile and its watchers. Rows are kept so the
// profile can be re-enabled without re-analysis; routing stops now.
func (r *Registry) Teardown(ctx context.Context, recordType string) error {
	dbc := dbctx.Context{Ctx: ctx}
	profile, err := r.profiles.GetByRecordType(dbc, recordType)
	if err != nil {
		return err
	}
	if err := r.profiles.SetEnabled(dbc, profile.ID, false); err != nil {
		return err
	}
	if err := r.watchers.SetEnabledByProfile(dbc, profile.ID, false); err != nil {
		return err
	}
	r.log.Info("profile torn down", "record_type", recordType)
	return r.Init(ctx)
}

func (r *Registry) ProfileFor(recordType string) (*domain.IndexProfile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.byType[recordType]
	return profile, ok
}

func (r *Registry) WatchersFor(relatedType string) []*domain.RelationshipWatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byRelated[relatedType]
}
