package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/vectorbridge-backend/internal/data/db"
	"github.com/yungbote/vectorbridge-backend/internal/data/repos"
	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/jobs"
	"github.com/yungbote/vectorbridge-backend/internal/platform/dbctx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/envutil"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
	"github.com/yungbote/vectorbridge-backend/internal/store"
)

// Backfill enqueues an index item for every existing record of a type,
// used after a profile is first registered or after a collection wipe.
// The running engine's worker pool drains the items.
func main() {
	log, err := logger.New(envutil.GetEnv("APP_MODE", "dev", nil))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	recordType := strings.TrimSpace(os.Getenv("RECORD_TYPE"))
	if recordType == "" {
		log.Fatal("RECORD_TYPE is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gdb, err := db.Connect(log)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}

	profileRepo := repos.NewProfileRepo(gdb, log)
	queueRepo := repos.NewQueueRepo(gdb, log)
	dispatcher := jobs.NewQueueDispatcher(log, queueRepo, profileRepo)

	profile, err := profileRepo.GetByRecordType(dbctx.Context{Ctx: ctx}, recordType)
	if err != nil {
		log.Fatal("profile lookup failed", "record_type", recordType, "error", err)
	}

	schemaPath := envutil.GetEnv("SCHEMA_PATH", "schema.yaml", log)
	schema, err := store.LoadSchemaFile(schemaPath)
	if err != nil {
		log.Fatal("schema load failed", "path", schemaPath, "error", err)
	}
	recordsPath := envutil.GetEnv("RECORDS_PATH", "records.yaml", log)
	records, err := store.LoadRecordsFile(schema, recordsPath)
	if err != nil {
		log.Fatal("records load failed", "path", recordsPath, "error", err)
	}

	ids, err := records.ListIDs(ctx, recordType)
	if err != nil {
		log.Fatal("record listing failed", "record_type", recordType, "error", err)
	}
	log.Info("backfill starting", "record_type", recordType, "records", len(ids))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(envutil.GetEnvAsInt("BACKFILL_CONCURRENCY", 8, log))

	var enqueued atomic.Int64
	for _, id := range ids {
		recordID := id
		group.Go(func() error {
			inserted, err := dispatcher.Dispatch(groupCtx, &domain.QueueItem{
				ProfileID:  profile.ID,
				RecordType: recordType,
				RecordID:   recordID,
				Action:     domain.ActionIndex,
				Origin:     domain.OriginBackfill,
			})
			if err != nil {
				return err
			}
			if inserted {
				enqueued.Add(1)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		log.Fatal("backfill failed", "record_type", recordType, "error", err)
	}
	log.Info("backfill enqueued", "record_type", recordType, "items", enqueued.Load())
}
