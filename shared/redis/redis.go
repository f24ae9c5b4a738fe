package redis

import (
	"context"
	"time"

	"ai-character-chat/backend/pkg/logger"

	"github.com/redis/go-redis/v9"
)

var ctx = context.Background()

// Client wraps go-redis and satisfies cache.Store, so character lookups can
// be cached in Redis instead of process memory when configured.
type Client struct {
	client *redis.Client
	log    *logger.Logger
}

func NewClient(addr string, log *logger.Logger) *Client {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password by default
		DB:       0,  // use default DB
	})
	return &Client{client: client, log: log}
}

func (r *Client) Set(key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Warn("redis set failed", "key", key, "error", err.Error())
	}
}

func (r *Client) Get(key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("redis get failed", "key", key, "error", err.Error())
		}
		return "", false
	}
	return val, true
}

func (r *Client) Del(key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Warn("redis del failed", "key", key, "error", err.Error())
	}
}

// Ping verifies connectivity, used by the health checker.
func (r *Client) Ping() error {
	return r.client.Ping(ctx).Err()
}
