package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/vectorbridge-backend/internal/domain"
	"github.com/yungbote/vectorbridge-backend/internal/platform/envutil"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

// Connect opens the metadata database. DB_DRIVER selects postgres
// (default) or sqlite for local development.
func Connect(log *logger.Logger) (*gorm.DB, error) {
	driver := strings.ToLower(envutil.GetEnv("DB_DRIVER", "postgres", log))

	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	}

	var (
		gdb *gorm.DB
		err error
	)
	switch driver {
	case "sqlite":
		path := envutil.GetEnv("SQLITE_PATH", "vectorbridge.db", log)
		gdb, err = gorm.Open(sqlite.Open(path), gormCfg)
	case "postgres":
		gdb, err = gorm.Open(postgres.Open(postgresDSN(log)), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(envutil.GetEnvAsInt("DB_MAX_OPEN_CONNS", 20, log))
	sqlDB.SetMaxIdleConns(envutil.GetEnvAsInt("DB_MAX_IDLE_CONNS", 5, log))
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("database connected", "driver", driver)
	return gdb, nil
}

func postgresDSN(log *logger.Logger) string {
	if dsn := envutil.GetEnv("DATABASE_URL", "", log); dsn != "" {
		return dsn
	}
	host := envutil.GetEnv("DB_HOST", "localhost", log)
	port := envutil.GetEnv("DB_PORT", "5432", log)
	user := envutil.GetEnv("DB_USER", "postgres", log)
	password := envutil.GetEnv("DB_PASSWORD", "postgres", log)
	name := envutil.GetEnv("DB_NAME", "vectorbridge", log)
	sslMode := envutil.GetEnv("DB_SSL_MODE", "disable", log)
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, name, sslMode)
}

// AutoMigrateAll creates the engine tables plus the partial unique index
// that keeps at most one active queue item per (profile, record, action).
// The models carry no database-side function defaults, so migration works
// on both postgres and sqlite.
func AutoMigrateAll(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&domain.IndexProfile{},
		&domain.QueueItem{},
		&domain.RelationshipWatcher{},
		&domain.SyncAuditLog{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	err := gdb.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS uniq_queue_active
		ON index_queue_item (profile_id, record_type, record_id, action)
		WHERE status IN ('pending', 'processing')
	`).Error
	if err != nil {
		return fmt.Errorf("create active queue index: %w", err)
	}
	return nil
}
