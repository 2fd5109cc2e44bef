// Package cache is the Redis hot layer in front of the durable store.
// Every operation is best-effort: a Redis outage degrades to cache
// misses and skipped counters, never to request failures.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quicklearn/quicklearn/internal/model"
)

// TTLs for cached explanations. Verified content is stable and can live
// much longer than unverified first drafts.
const (
	VerifiedTTL = 180 * 24 * time.Hour
	DefaultTTL  = 7 * 24 * time.Hour

	counterTTL = 24 * time.Hour
)

// Client is the subset of redis.Client the cache uses. Narrowed so tests
// can substitute a fake built from the go-redis result constructors.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	IncrBy(ctx context.Context, key string, value int64) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Options configures the Redis connection and TTL policy.
type Options struct {
	Addr        string
	Password    string
	DB          int
	VerifiedTTL time.Duration
	DefaultTTL  time.Duration
}

// Cache wraps a Redis client with the explanation key schema.
type Cache struct {
	client      Client
	verifiedTTL time.Duration
	defaultTTL  time.Duration
}

// New dials Redis and returns the cache. The connection is verified with
// a short ping so a misconfigured address surfaces at startup rather than
// as a silent stream of misses.
func New(ctx context.Context, opts Options) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		zap.L().Warn("redis unreachable, cache will run degraded",
			zap.String("addr", opts.Addr),
			zap.Error(err),
		)
	}

	return NewWithClient(client, opts), nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client Client, opts Options) *Cache {
	c := &Cache{
		client:      client,
		verifiedTTL: opts.VerifiedTTL,
		defaultTTL:  opts.DefaultTTL,
	}
	if c.verifiedTTL <= 0 {
		c.verifiedTTL = VerifiedTTL
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = DefaultTTL
	}
	return c
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

func explanationKey(topic string) string {
	return "hot:" + topic
}

func counterKey(modelName string) string {
	return "model:counter:" + modelName
}

func tokensKey(modelName string) string {
	return "model:tokens:" + modelName
}

// GetExplanation returns the cached explanation for a normalized topic.
// Any error, including a corrupt payload, is treated as a miss.
func (c *Cache) GetExplanation(ctx context.Context, topic string) (*model.Explanation, bool) {
	raw, err := c.client.Get(ctx, explanationKey(topic)).Result()
	if err != nil {
		if err != redis.Nil {
			zap.L().Warn("cache read failed", zap.String("topic", topic), zap.Error(err))
		}
		return nil, false
	}

	var exp model.Explanation
	if err := json.Unmarshal([]byte(raw), &exp); err != nil {
		zap.L().Warn("cache entry corrupt, treating as miss",
			zap.String("topic", topic),
			zap.Error(err),
		)
		return nil, false
	}
	return &exp, true
}

// SetExplanation caches an explanation under its topic. Verified content
// gets the long TTL.
func (c *Cache) SetExplanation(ctx context.Context, exp *model.Explanation) {
	payload, err := json.Marshal(exp)
	if err != nil {
		zap.L().Warn("cache marshal failed", zap.String("topic", exp.Topic), zap.Error(err))
		return
	}

	ttl := c.defaultTTL
	if exp.Verified {
		ttl = c.verifiedTTL
	}

	if err := c.client.Set(ctx, explanationKey(exp.Topic), payload, ttl).Err(); err != nil {
		zap.L().Warn("cache write failed", zap.String("topic", exp.Topic), zap.Error(err))
	}
}

// RecordModelUsage bumps the 24h rolling counters for a model. Satisfies
// the router's UsageRecorder.
func (c *Cache) RecordModelUsage(ctx context.Context, modelName string, tokens int64) {
	if err := c.client.IncrBy(ctx, counterKey(modelName), 1).Err(); err != nil {
		zap.L().Warn("model counter update failed", zap.String("model", modelName), zap.Error(err))
		return
	}
	c.client.Expire(ctx, counterKey(modelName), counterTTL)

	if tokens > 0 {
		if err := c.client.IncrBy(ctx, tokensKey(modelName), tokens).Err(); err != nil {
			zap.L().Warn("model token counter update failed", zap.String("model", modelName), zap.Error(err))
			return
		}
		c.client.Expire(ctx, tokensKey(modelName), counterTTL)
	}
}

// ModelUsage is a 24h usage snapshot for one model.
type ModelUsage struct {
	Model  string `json:"model"`
	Calls  int64  `json:"calls"`
	Tokens int64  `json:"tokens"`
}

// ModelCounters reads the rolling counters for the given model names.
// Missing or unreadable counters report zero.
func (c *Cache) ModelCounters(ctx context.Context, modelNames []string) []ModelUsage {
	out := make([]ModelUsage, 0, len(modelNames))
	for _, name := range modelNames {
		usage := ModelUsage{Model: name}
		if v, err := c.client.Get(ctx, counterKey(name)).Int64(); err == nil {
			usage.Calls = v
		}
		if v, err := c.client.Get(ctx, tokensKey(name)).Int64(); err == nil {
			usage.Tokens = v
		}
		out = append(out, usage)
	}
	return out
}

// CheckRateLimit enforces a fixed-window counter per caller key. It fails
// open: if Redis is down, requests are allowed through.
func (c *Cache) CheckRateLimit(ctx context.Context, callerKey string, limit int64, window time.Duration) bool {
	key := fmt.Sprintf("rate:%s", callerKey)

	count, err := c.client.IncrBy(ctx, key, 1).Result()
	if err != nil {
		zap.L().Warn("rate limit check failed, allowing request", zap.Error(err))
		return true
	}
	if count == 1 {
		c.client.Expire(ctx, key, window)
	}
	return count <= limit
}
