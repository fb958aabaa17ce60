package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yungbote/vectorbridge-backend/internal/indexing/embed"
	"github.com/yungbote/vectorbridge-backend/internal/platform/envutil"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

// EmbedCache backs the embedding cache with redis. Failures are logged
// and degrade to cache misses so indexing never stalls on redis.
type EmbedCache struct {
	log    *logger.Logger
	client *redis.Client
	ttl    time.Duration
}

var _ embed.Cache = (*EmbedCache)(nil)

func NewEmbedCache(log *logger.Logger) (*EmbedCache, error) {
	addr := envutil.GetEnv("REDIS_ADDR", "localhost:6379", log)
	password := envutil.GetEnv("REDIS_PASSWORD", "", log)
	db := envutil.GetEnvAsInt("REDIS_DB", 0, log)
	ttlHours := envutil.GetEnvAsInt("EMBED_CACHE_TTL_HOURS", 168, log)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("redis embed cache connected", "addr", addr, "ttl_hours", ttlHours)
	return &EmbedCache{
		log:    log.With("service", "EmbedCache"),
		client: client,
		ttl:    time.Duration(ttlHours) * time.Hour,
	}, nil
}

func (c *EmbedCache) Get(ctx context.Context, key string) ([]float32, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("redis get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var vector []float32
	if err := json.Unmarshal(raw, &vector); err != nil {
		c.log.Warn("redis cached vector corrupt, dropping", "key", key, "error", err)
		_ = c.client.Del(ctx, key).Err()
		return nil, false
	}
	if len(vector) == 0 {
		return nil, false
	}
	return vector, true
}

func (c *EmbedCache) Set(ctx context.Context, key string, vector []float32) {
	if len(vector) == 0 {
		return
	}
	raw, err := json.Marshal(vector)
	if err != nil {
		c.log.Warn("redis vector encode failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("redis set failed", "key", key, "error", err)
	}
}

func (c *EmbedCache) Close() error {
	return c.client.Close()
}
