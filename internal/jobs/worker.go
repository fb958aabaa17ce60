package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yungbote/vectorbridge-backend/internal/data/repos"
	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/envutil"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

// Worker polls the queue with a small goroutine pool. Each claimed item
// is processed at most maxAttempts times; retryable failures go back to
// pending, terminal ones are marked failed and audited.
type Worker struct {
	log         *logger.Logger
	queue       repos.QueueRepo
	profiles    repos.ProfileRepo
	audit       repos.AuditRepo
	processor   *Processor
	poolSize    int
	interval    time.Duration
	maxAttempts int
	retryDelay  time.Duration

	wg sync.WaitGroup
}

func NewWorker(log *logger.Logger, queue repos.QueueRepo, profiles repos.ProfileRepo, audit repos.AuditRepo, processor *Processor) *Worker {
	return &Worker{
		log:         log.With("service", "QueueWorker"),
		queue:       queue,
		profiles:    profiles,
		audit:       audit,
		processor:   processor,
		poolSize:    envutil.GetEnvAsInt("WORKER_POOL_SIZE", 4, log),
		interval:    time.Duration(envutil.GetEnvAsInt("WORKER_POLL_INTERVAL_SECONDS", 1, log)) * time.Second,
		maxAttempts: envutil.GetEnvAsInt("QUEUE_MAX_ATTEMPTS", 3, log),
		retryDelay:  time.Duration(envutil.GetEnvAsInt("QUEUE_RETRY_DELAY_SECONDS", 30, log)) * time.Second,
	}
}

func (w *Worker) Start(ctx context.Context) {
	w.log.Info("queue worker starting", "pool_size", w.poolSize, "poll_interval", w.interval.String())
	for i := 0; i < w.poolSize; i++ {
		w.wg.Add(1)
		go w.run(ctx, i)
	}
}

func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, slot int) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("queue worker stopping", "slot", slot)
			return
		case <-ticker.C:
			// Drain until the queue is empty, then sleep again.
			for w.processOne(ctx) {
				if ctx.Err() != nil {
					return
				}
			}
		}
	}
}

// processOne claims and runs a single item. Returns false when the queue
// was empty.
func (w *Worker) processOne(ctx context.Context) bool {
	dbc := dbctx.Context{Ctx: ctx}
	item, err := w.queue.ClaimNextPending(dbc)
	if err != nil {
		w.log.Error("queue claim failed", "error", err)
		return false
	}
	if item == nil {
		return false
	}

	started := time.Now()
	outcome, err := w.runSafely(ctx, item)
	elapsed := time.Since(started)

	if err == nil {
		w.complete(dbc, item, outcome, elapsed)
		return true
	}

	if item.Attempts >= w.maxAttempts {
		w.fail(dbc, item, err, elapsed)
		return true
	}

	// Attempt-scaled delay keeps a flapping dependency from being
	// hammered on every poll tick.
	delay := w.retryDelay * time.Duration(item.Attempts)
	w.log.Warn("queue item failed, will retry",
		"record_type", item.RecordType,
		"record_id", item.RecordID,
		"attempt", item.Attempts,
		"retry_in", delay.String(),
		"error", err)
	if markErr := w.queue.MarkRetry(dbc, item.ID, err.Error(), delay); markErr != nil {
		w.log.Error("mark retry failed", "item_id", item.ID, "error", markErr)
	}
	return true
}

func (w *Worker) runSafely(ctx context.Context, item *domain.QueueItem) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing queue item: %v", r)
		}
	}()
	return w.processor.Process(ctx, item)
}

func (w *Worker) complete(dbc dbctx.Context, item *domain.QueueItem, outcome Outcome, elapsed time.Duration) {
	if err := w.queue.MarkCompleted(dbc, item.ID); err != nil {
		w.log.Error("mark completed failed", "item_id", item.ID, "error", err)
	}

	indexedDelta := int64(0)
	switch item.Action {
	case domain.ActionIndex:
		indexedDelta = 1
	case domain.ActionDelete:
		indexedDelta = -1
	}
	if err := w.profiles.IncrementCounters(dbc, item.ProfileID, indexedDelta, -1, 0); err != nil {
		w.log.Warn("counter update failed", "profile_id", item.ProfileID, "error", err)
	}
	if err := w.profiles.TouchLastSynced(dbc, item.ProfileID, time.Now()); err != nil {
		w.log.Warn("last synced update failed", "profile_id", item.ProfileID, "error", err)
	}

	w.writeAudit(dbc, item, outcome, elapsed, domain.StatusCompleted, "")
	w.log.Info("queue item completed",
		"record_type", item.RecordType,
		"record_id", item.RecordID,
		"action", item.Action,
		"chunks", outcome.ChunkCount,
		"vectors", outcome.VectorCount,
		"duration", elapsed.String())
}

func (w *Worker) fail(dbc dbctx.Context, item *domain.QueueItem, cause error, elapsed time.Duration) {
	if err := w.queue.MarkFailed(dbc, item.ID, cause.Error()); err != nil {
		w.log.Error("mark failed failed", "item_id", item.ID, "error", err)
	}
	if err := w.profiles.IncrementCounters(dbc, item.ProfileID, 0, -1, 1); err != nil {
		w.log.Warn("counter update failed", "profile_id", item.ProfileID, "error", err)
	}
	w.writeAudit(dbc, item, Outcome{}, elapsed, domain.StatusFailed, cause.Error())
	w.log.Error("queue item failed terminally",
		"record_type", item.RecordType,
		"record_id", item.RecordID,
		"action", item.Action,
		"attempts", item.Attempts,
		"error", cause)
}

func (w *Worker) writeAudit(dbc dbctx.Context, item *domain.QueueItem, outcome Outcome, elapsed time.Duration, status, errMsg string) {
	entry := &domain.SyncAuditLog{
		RecordType:  item.RecordType,
		RecordID:    item.RecordID,
		Action:      item.Action,
		ChunkCount:  outcome.ChunkCount,
		VectorCount: outcome.VectorCount,
		DurationMS:  elapsed.Milliseconds(),
		Status:      status,
		Error:       errMsg,
	}
	if err := w.audit.Create(dbc, entry); err != nil {
		w.log.Warn("audit write failed", "item_id", item.ID, "error", err)
	}
}
