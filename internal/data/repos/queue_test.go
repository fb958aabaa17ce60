package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/vectorbridge-backend/internal/data/repos/testutil"
	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
)

func seedProfile(t *testing.T, dbc dbctx.Context) *domain.IndexProfile {
	t.Helper()
	profile := &domain.IndexProfile{
		RecordType: "Article-" + uuid.NewString(),
		Collection: "records_article",
		Enabled:    true,
		MaxDepth:   3,
	}
	repo := NewProfileRepo(dbc.Tx, testutil.Logger(t))
	if err := repo.Upsert(dbc, profile); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	seeded, err := repo.GetByRecordType(dbc, profile.RecordType)
	if err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	return seeded
}

func queueItem(profile *domain.IndexProfile, action string) *domain.QueueItem {
	return &domain.QueueItem{
		ProfileID:  profile.ID,
		RecordType: profile.RecordType,
		RecordID:   "r1",
		Action:     action,
		Origin:     domain.OriginChangeEvent,
		Status:     domain.StatusPending,
	}
}

func TestEnqueueDebouncedSuppressesDuplicates(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewQueueRepo(tx, testutil.Logger(t))
	profile := seedProfile(t, dbc)

	inserted, err := repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionUpdate), 5*time.Second)
	if err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if !inserted {
		t.Fatal("first enqueue suppressed, want inserted")
	}

	inserted, err = repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionUpdate), 5*time.Second)
	if err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}
	if inserted {
		t.Fatal("duplicate within debounce window inserted, want suppressed")
	}

	// A different action for the same record is separate work.
	inserted, err = repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionDelete), 5*time.Second)
	if err != nil {
		t.Fatalf("delete enqueue: %v", err)
	}
	if !inserted {
		t.Fatal("different action suppressed, want inserted")
	}
}

func TestEnqueueAfterCompletionInsideWindow(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewQueueRepo(tx, testutil.Logger(t))
	profile := seedProfile(t, dbc)

	inserted, err := repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionUpdate), 0)
	if err != nil || !inserted {
		t.Fatalf("first enqueue: inserted=%v err=%v", inserted, err)
	}
	item, err := repo.ClaimNextPending(dbc)
	if err != nil || item == nil {
		t.Fatalf("claim: item=%v err=%v", item, err)
	}
	if err := repo.MarkCompleted(dbc, item.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// A completed item cannot cover a later change, so a change landing
	// right after completion must produce new work even with a wide window.
	inserted, err = repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionUpdate), 5*time.Second)
	if err != nil {
		t.Fatalf("re-enqueue: %v", err)
	}
	if !inserted {
		t.Fatal("change after completion suppressed, want inserted")
	}
}

func TestEnqueueWindowDelaysClaim(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewQueueRepo(tx, testutil.Logger(t))
	profile := seedProfile(t, dbc)

	inserted, err := repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionUpdate), time.Hour)
	if err != nil || !inserted {
		t.Fatalf("enqueue: inserted=%v err=%v", inserted, err)
	}

	// The item exists and suppresses duplicates but is not claimable until
	// its window passes.
	item, err := repo.ClaimNextPending(dbc)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if item != nil {
		t.Fatalf("claim = %+v, want nil before the window passes", item)
	}
	inserted, err = repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionUpdate), time.Hour)
	if err != nil {
		t.Fatalf("duplicate enqueue: %v", err)
	}
	if inserted {
		t.Fatal("duplicate of a held-back item inserted, want suppressed")
	}
}

func TestClaimNextPendingTransitions(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewQueueRepo(tx, testutil.Logger(t))
	profile := seedProfile(t, dbc)

	if _, err := repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionIndex), 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	item, err := repo.ClaimNextPending(dbc)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if item == nil {
		t.Fatal("claim returned nil, want item")
	}
	if item.Status != domain.StatusProcessing || item.Attempts != 1 {
		t.Fatalf("claimed item = %+v, want processing with 1 attempt", item)
	}

	// No pending items remain.
	again, err := repo.ClaimNextPending(dbc)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if again != nil {
		t.Fatalf("second claim = %+v, want nil", again)
	}
}

func TestMarkRetryAndFailed(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewQueueRepo(tx, testutil.Logger(t))
	profile := seedProfile(t, dbc)

	if _, err := repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionIndex), 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	item, err := repo.ClaimNextPending(dbc)
	if err != nil || item == nil {
		t.Fatalf("claim: item=%v err=%v", item, err)
	}

	if err := repo.MarkRetry(dbc, item.ID, "transient failure", time.Hour); err != nil {
		t.Fatalf("mark retry: %v", err)
	}
	reloaded, err := repo.GetByID(dbc, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != domain.StatusPending || reloaded.LastError != "transient failure" {
		t.Fatalf("after retry = %+v, want pending with error", reloaded)
	}

	// The backoff holds the item out of the claim path.
	held, err := repo.ClaimNextPending(dbc)
	if err != nil {
		t.Fatalf("claim during backoff: %v", err)
	}
	if held != nil {
		t.Fatalf("claim during backoff = %+v, want nil", held)
	}

	if err := repo.MarkFailed(dbc, item.ID, "terminal"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	reloaded, err = repo.GetByID(dbc, item.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != domain.StatusFailed {
		t.Fatalf("status = %q, want failed", reloaded.Status)
	}
}

func TestCountByStatus(t *testing.T) {
	tx := testutil.Tx(t)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewQueueRepo(tx, testutil.Logger(t))
	profile := seedProfile(t, dbc)

	if _, err := repo.EnqueueDebounced(dbc, queueItem(profile, domain.ActionIndex), 0); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	counts, err := repo.CountByStatus(dbc)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[domain.StatusPending] < 1 {
		t.Fatalf("counts = %v, want at least one pending", counts)
	}
}
