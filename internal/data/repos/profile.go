package repos

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

var ErrProfileNotFound = errors.New("index profile not found")

type ProfileRepo interface {
	Upsert(dbc dbctx.Context, profile *domain.IndexProfile) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.IndexProfile, error)
	GetByRecordType(dbc dbctx.Context, recordType string) (*domain.IndexProfile, error)
	ListEnabled(dbc dbctx.Context) ([]*domain.IndexProfile, error)
	SetEnabled(dbc dbctx.Context, id uuid.UUID, enabled bool) error
	IncrementCounters(dbc dbctx.Context, id uuid.UUID, indexedDelta, pendingDelta, failedDelta int64) error
	TouchLastSynced(dbc dbctx.Context, id uuid.UUID, at time.Time) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, log *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: log.With("repo", "ProfileRepo")}
}

func (r *profileRepo) Upsert(dbc dbctx.Context, profile *domain.IndexProfile) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "record_type"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"collection", "enabled", "fields", "metadata_fields",
				"filter_fields", "relationships", "eager_load_paths",
				"max_depth", "updated_at",
			}),
		}).
		Create(profile).Error
}

func (r *profileRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.IndexProfile, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var profile domain.IndexProfile
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepo) GetByRecordType(dbc dbctx.Context, recordType string) (*domain.IndexProfile, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var profile domain.IndexProfile
	err := transaction.WithContext(dbc.Ctx).
		Where("record_type = ?", recordType).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepo) ListEnabled(dbc dbctx.Context) ([]*domain.IndexProfile, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var profiles []*domain.IndexProfile
	err := transaction.WithContext(dbc.Ctx).
		Where("enabled = ?", true).
		Order("record_type ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (r *profileRepo) SetEnabled(dbc dbctx.Context, id uuid.UUID, enabled bool) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.IndexProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"enabled":    enabled,
			"updated_at": time.Now().UTC(),
		}).Error
}

// IncrementCounters applies deltas atomically; pending never drops below
// zero even if completions race.
func (r *profileRepo) IncrementCounters(dbc dbctx.Context, id uuid.UUID, indexedDelta, pendingDelta, failedDelta int64) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]any{"updated_at": time.Now().UTC()}
	if indexedDelta != 0 {
		updates["indexed_count"] = gorm.Expr("GREATEST(indexed_count + ?, 0)", indexedDelta)
	}
	if pendingDelta != 0 {
		updates["pending_count"] = gorm.Expr("GREATEST(pending_count + ?, 0)", pendingDelta)
	}
	if failedDelta != 0 {
		updates["failed_count"] = gorm.Expr("GREATEST(failed_count + ?, 0)", failedDelta)
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.IndexProfile{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *profileRepo) TouchLastSynced(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.IndexProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_synced_at": at.UTC(),
			"updated_at":     time.Now().UTC(),
		}).Error
}
