package jobs

import (
	"context"
	"time"

	"github.com/yungbote/vectorbridge-backend/internal/data/repos"
	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/envutil"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

// Dispatcher accepts indexing work. The boolean reports whether the item
// was actually enqueued or suppressed by debouncing.
type Dispatcher interface {
	Dispatch(ctx context.Context, item *domain.QueueItem) (bool, error)
}

// QueueDispatcher is the durable dispatcher: items land in the database
// queue and are picked up by the worker pool. Rapid-fire changes to the
// same record collapse into one item inside the debounce window.
type QueueDispatcher struct {
	log      *logger.Logger
	queue    repos.QueueRepo
	profiles repos.ProfileRepo
	window   time.Duration
}

func NewQueueDispatcher(log *logger.Logger, queue repos.QueueRepo, profiles repos.ProfileRepo) *QueueDispatcher {
	windowSecs := envutil.GetEnvAsInt("QUEUE_DEBOUNCE_SECONDS", 5, log)
	return &QueueDispatcher{
		log:      log.With("service", "QueueDispatcher"),
		queue:    queue,
		profiles: profiles,
		window:   time.Duration(windowSecs) * time.Second,
	}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, item *domain.QueueItem) (bool, error) {
	dbc := dbctx.Context{Ctx: ctx}
	inserted, err := d.queue.EnqueueDebounced(dbc, item, d.window)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}
	if err := d.profiles.IncrementCounters(dbc, item.ProfileID, 0, 1, 0); err != nil {
		d.log.Warn("pending counter bump failed", "profile_id", item.ProfileID, "error", err)
	}
	d.log.Debug("queued indexing work",
		"record_type", item.RecordType,
		"record_id", item.RecordID,
		"action", item.Action,
		"origin", item.Origin)
	return true, nil
}

// InlineDispatcher runs each item synchronously in the caller's
// goroutine, with no queue, no debouncing, and no retries. Suitable for
// tests and small single-process deployments.
type InlineDispatcher struct {
	log       *logger.Logger
	processor *Processor
}

func NewInlineDispatcher(log *logger.Logger, processor *Processor) *InlineDispatcher {
	return &InlineDispatcher{
		log:       log.With("service", "InlineDispatcher"),
		processor: processor,
	}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, item *domain.QueueItem) (bool, error) {
	outcome, err := d.processor.Process(ctx, item)
	if err != nil {
		return false, err
	}
	d.log.Debug("processed inline",
		"record_type", item.RecordType,
		"record_id", item.RecordID,
		"action", item.Action,
		"chunks", outcome.ChunkCount)
	return true, nil
}
