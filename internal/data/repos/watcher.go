package repos

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

type WatcherRepo interface {
	ReplaceForProfile(dbc dbctx.Context, profileID uuid.UUID, watchers []*domain.RelationshipWatcher) error
	ListEnabledByRelatedType(dbc dbctx.Context, relatedType string) ([]*domain.RelationshipWatcher, error)
	ListByProfile(dbc dbctx.Context, profileID uuid.UUID) ([]*domain.RelationshipWatcher, error)
	SetEnabledByProfile(dbc dbctx.Context, profileID uuid.UUID, enabled bool) error
}

type watcherRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewWatcherRepo(db *gorm.DB, log *logger.Logger) WatcherRepo {
	return &watcherRepo{db: db, log: log.With("repo", "WatcherRepo")}
}

// ReplaceForProfile swaps the profile's watcher set in one transaction so
// re-analysis never leaves stale rules behind.
func (r *watcherRepo) ReplaceForProfile(dbc dbctx.Context, profileID uuid.UUID, watchers []*domain.RelationshipWatcher) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("profile_id = ?", profileID).
			Delete(&domain.RelationshipWatcher{}).Error; err != nil {
			return err
		}
		if len(watchers) == 0 {
			return nil
		}
		for _, w := range watchers {
			w.ProfileID = profileID
		}
		return tx.Create(watchers).Error
	})
}

func (r *watcherRepo) ListEnabledByRelatedType(dbc dbctx.Context, relatedType string) ([]*domain.RelationshipWatcher, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var watchers []*domain.RelationshipWatcher
	err := transaction.WithContext(dbc.Ctx).
		Where("related_type = ? AND enabled = ?", relatedType, true).
		Order("parent_type ASC, path ASC").
		Find(&watchers).Error
	if err != nil {
		return nil, err
	}
	return watchers, nil
}

func (r *watcherRepo) ListByProfile(dbc dbctx.Context, profileID uuid.UUID) ([]*domain.RelationshipWatcher, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var watchers []*domain.RelationshipWatcher
	err := transaction.WithContext(dbc.Ctx).
		Where("profile_id = ?", profileID).
		Order("path ASC").
		Find(&watchers).Error
	if err != nil {
		return nil, err
	}
	return watchers, nil
}

func (r *watcherRepo) SetEnabledByProfile(dbc dbctx.Context, profileID uuid.UUID, enabled bool) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.RelationshipWatcher{}).
		Where("profile_id = ?", profileID).
		Update("enabled", enabled).Error
}
