package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/charter"
	"github.com/xraph/charter/policy"
)

var _ charter.Cache = (*Redis)(nil)

// DefaultKeyPrefix namespaces cache keys.
const DefaultKeyPrefix = "charter:current:"

// Redis shares the current-policy cache between API replicas. Values are
// JSON-encoded policies under "<prefix><type>".
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// RedisOption configures the Redis cache.
type RedisOption func(*Redis)

// WithRedisTTL sets the key expiry. Zero keeps keys until invalidated.
func WithRedisTTL(ttl time.Duration) RedisOption { return func(r *Redis) { r.ttl = ttl } }

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption { return func(r *Redis) { r.prefix = prefix } }

// WithRedisLogger sets the logger used for cache errors.
func WithRedisLogger(l *slog.Logger) RedisOption { return func(r *Redis) { r.logger = l } }

// NewRedis wraps an existing client.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		ttl:    5 * time.Minute,
		prefix: DefaultKeyPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// DialRedis parses a redis:// URL, connects and pings.
func DialRedis(ctx context.Context, url string, opts ...RedisOption) (*Redis, error) {
	if url == "" {
		url = "redis://localhost:6379"
	}
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(o)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedis(client, opts...), nil
}

// Close closes the underlying client.
func (r *Redis) Close() error { return r.client.Close() }

// Get reads the cached policy for t. Redis errors count as a miss.
func (r *Redis) Get(ctx context.Context, t policy.Type) (*policy.Policy, bool) {
	data, err := r.client.Get(ctx, r.key(t)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("redis cache get failed", slog.String("type", string(t)), slog.String("error", err.Error()))
		}
		return nil, false
	}
	var p policy.Policy
	if err := json.Unmarshal(data, &p); err != nil {
		r.logger.Warn("redis cache decode failed", slog.String("type", string(t)), slog.String("error", err.Error()))
		return nil, false
	}
	return &p, true
}

// Set writes p under its type's key.
func (r *Redis) Set(ctx context.Context, p *policy.Policy) {
	payload, err := json.Marshal(p)
	if err != nil {
		r.logger.Warn("redis cache encode failed", slog.String("type", string(p.Type)), slog.String("error", err.Error()))
		return
	}
	if err := r.client.Set(ctx, r.key(p.Type), payload, r.ttl).Err(); err != nil {
		r.logger.Warn("redis cache set failed", slog.String("type", string(p.Type)), slog.String("error", err.Error()))
	}
}

// Invalidate deletes the key for t.
func (r *Redis) Invalidate(ctx context.Context, t policy.Type) {
	if err := r.client.Del(context.WithoutCancel(ctx), r.key(t)).Err(); err != nil {
		r.logger.Warn("redis cache invalidate failed", slog.String("type", string(t)), slog.String("error", err.Error()))
	}
}

func (r *Redis) key(t policy.Type) string { return r.prefix + string(t) }
