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

var activeStatuses = []string{domain.StatusPending, domain.StatusProcessing}

type QueueRepo interface {
	// EnqueueDebounced inserts the item unless an equivalent pending or
	// processing item already exists; that item re-reads the record when
	// it runs, so it covers the new change. A completed or failed item
	// never suppresses. The window is written to the new item's
	// not_before, holding it back so rapid successive changes collapse
	// into the one pending item. Returns true when the item was inserted.
	EnqueueDebounced(dbc dbctx.Context, item *domain.QueueItem, window time.Duration) (bool, error)

	// ClaimNextPending atomically moves the oldest claimable pending item
	// (not_before has passed) to processing and bumps its attempt count.
	// Returns nil when nothing is claimable. Safe under concurrent workers.
	ClaimNextPending(dbc dbctx.Context) (*domain.QueueItem, error)

	MarkCompleted(dbc dbctx.Context, id uuid.UUID) error

	// MarkRetry returns the item to pending, held back by delay so the
	// next attempt does not fire on the very next poll tick.
	MarkRetry(dbc dbctx.Context, id uuid.UUID, lastError string, delay time.Duration) error
	MarkFailed(dbc dbctx.Context, id uuid.UUID, lastError string) error

	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.QueueItem, error)
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
}

type queueRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQueueRepo(db *gorm.DB, log *logger.Logger) QueueRepo {
	return &queueRepo{db: db, log: log.With("repo", "QueueRepo")}
}

func (r *queueRepo) EnqueueDebounced(dbc dbctx.Context, item *domain.QueueItem, window time.Duration) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	tx := transaction.WithContext(dbc.Ctx)

	var duplicates int64
	err := tx.Model(&domain.QueueItem{}).
		Where("profile_id = ? AND record_type = ? AND record_id = ? AND action = ?",
			item.ProfileID, item.RecordType, item.RecordID, item.Action).
		Where("status IN ?", activeStatuses).
		Count(&duplicates).Error
	if err != nil {
		return false, err
	}
	if duplicates > 0 {
		r.log.Debug("queue item debounced",
			"record_type", item.RecordType, "record_id", item.RecordID, "action", item.Action)
		return false, nil
	}

	if window > 0 {
		item.NotBefore = time.Now().UTC().Add(window)
	}
	err = tx.Create(item).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost the race against a concurrent enqueue of the same tuple;
		// the partial unique index on active items makes this benign.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *queueRepo) ClaimNextPending(dbc dbctx.Context) (*domain.QueueItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}

	var claimed *domain.QueueItem
	err := transaction.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		var item domain.QueueItem
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND not_before <= ?", domain.StatusPending, time.Now().UTC()).
			Order("created_at ASC").
			First(&item).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		updates := map[string]any{
			"status":     domain.StatusProcessing,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now().UTC(),
		}
		if err := tx.Model(&domain.QueueItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
			return err
		}

		item.Status = domain.StatusProcessing
		item.Attempts++
		claimed = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *queueRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID) error {
	return r.setStatus(dbc, id, domain.StatusCompleted, "")
}

func (r *queueRepo) MarkRetry(dbc dbctx.Context, id uuid.UUID, lastError string, delay time.Duration) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	now := time.Now().UTC()
	updates := map[string]any{
		"status":     domain.StatusPending,
		"not_before": now.Add(delay),
		"updated_at": now,
	}
	if lastError != "" {
		updates["last_error"] = lastError
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.QueueItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *queueRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, lastError string) error {
	return r.setStatus(dbc, id, domain.StatusFailed, lastError)
}

func (r *queueRepo) setStatus(dbc dbctx.Context, id uuid.UUID, status, lastError string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	updates := map[string]any{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if lastError != "" {
		updates["last_error"] = lastError
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&domain.QueueItem{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *queueRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.QueueItem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var item domain.QueueItem
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *queueRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		Status string
		Total  int64
	}
	err := transaction.WithContext(dbc.Ctx).
		Model(&domain.QueueItem{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
