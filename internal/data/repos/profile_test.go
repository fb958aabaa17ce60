package repos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/vectorbridge-backend/internal/data/repos/testutil"
	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
)

func TestProfileUpsertKeepsOneRowPerType(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewProfileRepo(tx, testutil.Logger(t))

	recordType := "Article-" + uuid.NewString()
	first := &domain.IndexProfile{RecordType: recordType, Collection: "c1", Enabled: true, MaxDepth: 3}
	if err := repo.Upsert(dbc, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second := &domain.IndexProfile{RecordType: recordType, Collection: "c2", Enabled: true, MaxDepth: 2}
	if err := repo.Upsert(dbc, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	profile, err := repo.GetByRecordType(dbc, recordType)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if profile.Collection != "c2" || profile.MaxDepth != 2 {
		t.Fatalf("profile = %+v, want updated collection and depth", profile)
	}
}

func TestProfileGetMissing(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewProfileRepo(tx, testutil.Logger(t))

	_, err := repo.GetByRecordType(dbc, "Missing-"+uuid.NewString())
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("err = %v, want ErrProfileNotFound", err)
	}
}

func TestProfileCountersNeverNegative(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewProfileRepo(tx, testutil.Logger(t))

	profile := &domain.IndexProfile{
		RecordType: "Article-" + uuid.NewString(),
		Collection: "c",
		Enabled:    true,
		MaxDepth:   3,
	}
	if err := repo.Upsert(dbc, profile); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	profile, err := repo.GetByRecordType(dbc, profile.RecordType)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := repo.IncrementCounters(dbc, profile.ID, -5, -5, 0); err != nil {
		t.Fatalf("decrement: %v", err)
	}
	profile, err = repo.GetByID(dbc, profile.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if profile.IndexedCount != 0 || profile.PendingCount != 0 {
		t.Fatalf("counters = %d/%d, want clamped at zero", profile.IndexedCount, profile.PendingCount)
	}
}

func TestProfileTouchLastSynced(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewProfileRepo(tx, testutil.Logger(t))

	profile := &domain.IndexProfile{
		RecordType: "Article-" + uuid.NewString(),
		Collection: "c",
		Enabled:    true,
		MaxDepth:   3,
	}
	if err := repo.Upsert(dbc, profile); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	profile, err := repo.GetByRecordType(dbc, profile.RecordType)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := repo.TouchLastSynced(dbc, profile.ID, at); err != nil {
		t.Fatalf("touch: %v", err)
	}
	profile, err = repo.GetByID(dbc, profile.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if profile.LastSyncedAt == nil || profile.LastSyncedAt.Before(at) {
		t.Fatalf("last synced = %v, want >= %v", profile.LastSyncedAt, at)
	}
}
