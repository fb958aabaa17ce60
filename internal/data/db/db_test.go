package db

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "engine.db")
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return gdb
}

func TestAutoMigrateAllOnSQLite(t *testing.T) {
	gdb := openSQLite(t)
	if err := AutoMigrateAll(gdb); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}

	profile := &domain.IndexProfile{
		RecordType: "Article",
		Collection: "records_article",
		Enabled:    true,
		MaxDepth:   3,
	}
	if err := gdb.Create(profile).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if profile.ID == uuid.Nil {
		t.Fatal("profile id not assigned")
	}

	item := &domain.QueueItem{
		ProfileID:  profile.ID,
		RecordType: "Article",
		RecordID:   "a1",
		Action:     domain.ActionIndex,
		Origin:     domain.OriginManual,
		Status:     domain.StatusPending,
	}
	if err := gdb.Create(item).Error; err != nil {
		t.Fatalf("create queue item: %v", err)
	}
	if item.ID == uuid.Nil || item.NotBefore.IsZero() || item.CreatedAt.IsZero() {
		t.Fatalf("queue item defaults not applied: %+v", item)
	}
}

func TestActiveQueueIndexUniqueOnSQLite(t *testing.T) {
	gdb := openSQLite(t)
	if err := AutoMigrateAll(gdb); err != nil {
		t.Fatalf("AutoMigrateAll: %v", err)
	}

	profileID := uuid.New()
	fresh := func() *domain.QueueItem {
		return &domain.QueueItem{
			ProfileID:  profileID,
			RecordType: "Article",
			RecordID:   "a1",
			Action:     domain.ActionUpdate,
			Origin:     domain.OriginManual,
			Status:     domain.StatusPending,
		}
	}
	if err := gdb.Create(fresh()).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := gdb.Create(fresh()).Error; err == nil {
		t.Fatal("second active item for the same tuple inserted, want unique violation")
	}
}
