package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

type AuditRepo interface {
	Create(dbc dbctx.Context, entry *domain.SyncAuditLog) error
	ListByRecord(dbc dbctx.Context, recordType, recordID string, limit int) ([]*domain.SyncAuditLog, error)
}

type auditRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditRepo(db *gorm.DB, log *logger.Logger) AuditRepo {
	return &auditRepo{db: db, log: log.With("repo", "AuditRepo")}
}

func (r *auditRepo) Create(dbc dbctx.Context, entry *domain.SyncAuditLog) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Create(entry).Error
}

func (r *auditRepo) ListByRecord(dbc dbctx.Context, recordType, recordID string, limit int) ([]*domain.SyncAuditLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	var entries []*domain.SyncAuditLog
	err := transaction.WithContext(dbc.Ctx).
		Where("record_type = ? AND record_id = ?", recordType, recordID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
