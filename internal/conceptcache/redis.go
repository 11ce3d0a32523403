package conceptcache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"refsync/internal/remote/terminology"
)

const (
	conceptKeyPrefix = "refsync:concept:"
	DefaultTTL       = 24 * time.Hour
)

// Redis shares concept lookups between processes. Redis failures degrade to a
// cache miss; the caller falls back to the terminology server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

func WithLogger(logger *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = logger
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{client: client, ttl: DefaultTTL, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Redis) Get(ctx context.Context, branch, conceptID string) (*terminology.ConceptSummary, bool) {
	raw, err := r.client.Get(ctx, conceptKeyPrefix+key(branch, conceptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		r.logger.WarnContext(ctx, "concept cache read failed", "error", err, "concept_id", conceptID)
		return nil, false
	}
	var c terminology.ConceptSummary
	if err := json.Unmarshal(raw, &c); err != nil {
		r.logger.WarnContext(ctx, "concept cache entry corrupt", "error", err, "concept_id", conceptID)
		return nil, false
	}
	return &c, true
}

func (r *Redis) Set(ctx context.Context, branch, conceptID string, c *terminology.ConceptSummary) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, conceptKeyPrefix+key(branch, conceptID), raw, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "concept cache write failed", "error", err, "concept_id", conceptID)
	}
}
