// ratelimit/redis.go
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces limiter keys.
const DefaultRedisPrefix = "contactrelay:ratelimit:"

// fixedWindow counts hits in the current window and starts its expiry on the
// first hit. Returns {count, pttl}.
var fixedWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RedisStore is a fixed-window Store shared by every replica that points at
// the same Redis. At most Limit requests per key are allowed per Window.
type RedisStore struct {
	client redis.UniversalClient
	limit  int64
	window time.Duration
	prefix string
}

// NewRedisStore returns a store allowing limit requests per window.
func NewRedisStore(client redis.UniversalClient, limit int, window time.Duration, prefix string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("ratelimit: redis client is nil")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("ratelimit: limit and window must be positive")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, limit: int64(limit), window: window, prefix: prefix}, nil
}

// ConnectRedis parses url (redis://, rediss://) and pings the server before
// returning. The caller closes the client.
func ConnectRedis(ctx context.Context, url string, timeout time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ratelimit: ping redis: %w", err)
	}
	return client, nil
}

// Take implements Store.
func (s *RedisStore) Take(ctx context.Context, key string) (bool, time.Duration, error) {
	res, err := fixedWindow.Run(ctx, s.client, []string{s.prefix + key}, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit: redis: %w", err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("ratelimit: redis: unexpected reply %v", res)
	}
	ok, wait := s.decide(res[0], res[1])
	return ok, wait, nil
}

// Ping reports whether Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// decide maps a window count and its remaining TTL in milliseconds to a
// verdict. A missing TTL (-1/-2) falls back to a full window.
func (s *RedisStore) decide(count, pttl int64) (bool, time.Duration) {
	if count <= s.limit {
		return true, 0
	}
	if pttl <= 0 {
		return false, s.window
	}
	return false, time.Duration(pttl) * time.Millisecond
}
