package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/yungbote/vectorbridge-backend/internal/clients/openai"
	redisclient "github.com/yungbote/vectorbridge-backend/internal/clients/redis"
	"github.com/yungbote/vectorbridge-backend/internal/data/db"
	"github.com/yungbote/vectorbridge-backend/internal/data/repos"
	"github.com/yungbote/vectorbridge-backend/internal/indexing/discovery"
	"github.com/yungbote/vectorbridge-backend/internal/indexing/embed"
	vsync "github.com/yungbote/vectorbridge-backend/internal/indexing/sync"
	"github.com/yungbote/vectorbridge-backend/internal/indexing/watch"
	"github.com/yungbote/vectorbridge-backend/internal/jobs"
	"github.com/yungbote/vectorbridge-backend/internal/platform/envutil"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
	"github.com/yungbote/vectorbridge-backend/internal/platform/qdrant"
	"github.com/yungbote/vectorbridge-backend/internal/store"
)

func main() {
	log, err := logger.New(envutil.GetEnv("APP_MODE", "dev", nil))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	gdb, err := db.Connect(log)
	if err != nil {
		log.Fatal("database connection failed", "error", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		log.Fatal("database migration failed", "error", err)
	}

	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		log.Fatal("qdrant config invalid", "error", err)
	}
	vec, err := qdrant.NewStore(log, qdrantCfg)
	if err != nil {
		log.Fatal("qdrant connection failed", "error", err)
	}

	embedClient, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("openai client init failed", "error", err)
	}

	var cache embed.Cache
	if envutil.GetEnv("EMBED_CACHE_ENABLED", "true", log) == "true" {
		redisCache, err := redisclient.NewEmbedCache(log)
		if err != nil {
			log.Warn("redis unavailable, embedding cache disabled", "error", err)
		} else {
			cache = redisCache
			defer redisCache.Close()
		}
	}

	profileRepo := repos.NewProfileRepo(gdb, log)
	queueRepo := repos.NewQueueRepo(gdb, log)
	watcherRepo := repos.NewWatcherRepo(gdb, log)
	auditRepo := repos.NewAuditRepo(gdb, log)

	schemaPath := envutil.GetEnv("SCHEMA_PATH", "schema.yaml", log)
	schema, err := store.LoadSchemaFile(schemaPath)
	if err != nil {
		log.Fatal("schema load failed", "path", schemaPath, "error", err)
	}
	var records *store.MemoryStore
	if recordsPath := envutil.GetEnv("RECORDS_PATH", "", log); recordsPath != "" {
		records, err = store.LoadRecordsFile(schema, recordsPath)
		if err != nil {
			log.Fatal("records load failed", "path", recordsPath, "error", err)
		}
	} else {
		records = store.NewMemoryStore(schema)
	}

	embedder := embed.NewService(log, embedClient, cache)
	syncer := vsync.NewSynchronizer(log, vec)
	registry := watch.NewRegistry(log, profileRepo, watcherRepo)
	processor := jobs.NewProcessor(log, profileRepo, records, embedder, syncer)
	worker := jobs.NewWorker(log, queueRepo, profileRepo, auditRepo, processor)

	dispatchMode := envutil.GetEnv("DISPATCH_MODE", "queue", log)
	var dispatcher jobs.Dispatcher = jobs.NewQueueDispatcher(log, queueRepo, profileRepo)
	if dispatchMode == "inline" {
		dispatcher = jobs.NewInlineDispatcher(log, processor)
	}

	analyzer := discovery.NewAnalyzer(log, schema)
	for _, recordType := range splitList(envutil.GetEnv("RECORD_TYPES", "", log)) {
		analysis, err := analyzer.Analyze(recordType, discovery.DefaultMaxDepth)
		if err != nil {
			log.Fatal("record type analysis failed", "record_type", recordType, "error", err)
		}
		for _, rec := range analysis.Recommendations {
			log.Info("analysis recommendation", "record_type", recordType, "note", rec)
		}
		if err := registry.Register(ctx, analysis); err != nil {
			log.Fatal("profile registration failed", "record_type", recordType, "error", err)
		}
	}

	if err := registry.Init(ctx); err != nil {
		log.Fatal("watch registry init failed", "error", err)
	}
	records.Subscribe(watch.NewHandler(log, registry, records, dispatcher))

	if dispatchMode != "inline" {
		worker.Start(ctx)
	}
	log.Info("vectorbridge running",
		"dispatch_mode", dispatchMode,
		"record_types", len(splitList(os.Getenv("RECORD_TYPES"))))

	<-ctx.Done()
	if dispatchMode != "inline" {
		log.Info("shutdown signal received, draining workers")
		worker.Wait()
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
