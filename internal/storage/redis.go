package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores sets as Redis SETs, maps as HASHes and text as STRINGs.
// A companion "<key>:kind" string records the shape, since Redis drops empty sets.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend connects to redisURL and checks the connection
func NewRedisBackend(ctx context.Context, redisURL, prefix string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	b := &RedisBackend{client: redis.NewClient(opts), prefix: strings.TrimSuffix(prefix, ":")}
	if err := b.Ping(ctx); err != nil {
		_ = b.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return b, nil
}

func (b *RedisBackend) dataKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + ":" + key
}

func (b *RedisBackend) kindKey(key string) string {
	return b.dataKey(key) + ":kind"
}

func (b *RedisBackend) expectKind(ctx context.Context, key, want string) error {
	kind, err := b.client.Get(ctx, b.kindKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: %s", ErrNotFound, b.dataKey(key))
	}
	if err != nil {
		return fmt.Errorf("failed to read kind of %s: %w", b.dataKey(key), err)
	}
	if kind != want {
		return fmt.Errorf("%w: %s holds a %s, not a %s", ErrMalformed, b.dataKey(key), kind, want)
	}
	return nil
}

// ReadIDSet returns the set members stored under key
func (b *RedisBackend) ReadIDSet(ctx context.Context, key string) ([]int64, error) {
	if err := b.expectKind(ctx, key, kindSet); err != nil {
		return nil, err
	}
	members, err := b.client.SMembers(ctx, b.dataKey(key)).Result()
	if err != nil {
		return nil, wrapRedisErr(b.dataKey(key), err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s member %q is not an integer", ErrMalformed, b.dataKey(key), m)
		}
		ids = append(ids, id)
	}
	return normalizeIDs(ids), nil
}

// WriteIDSet replaces the set stored under key
func (b *RedisBackend) WriteIDSet(ctx context.Context, key string, ids []int64) error {
	ids = normalizeIDs(ids)
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.dataKey(key))
		if len(ids) > 0 {
			members := make([]any, len(ids))
			for i, id := range ids {
				members[i] = strconv.FormatInt(id, 10)
			}
			pipe.SAdd(ctx, b.dataKey(key), members...)
		}
		pipe.Set(ctx, b.kindKey(key), kindSet, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write set %s: %w", b.dataKey(key), err)
	}
	return nil
}

// ReadIDMap returns the hash stored under key; non-integer fields are dropped with ErrPartial
func (b *RedisBackend) ReadIDMap(ctx context.Context, key string) (map[int64]int64, error) {
	if err := b.expectKind(ctx, key, kindMap); err != nil {
		return nil, err
	}
	raw, err := b.client.HGetAll(ctx, b.dataKey(key)).Result()
	if err != nil {
		return nil, wrapRedisErr(b.dataKey(key), err)
	}
	values := make(map[int64]int64, len(raw))
	for field, value := range raw {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		ts, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		values[id] = ts
	}
	if len(values) != len(raw) {
		return values, fmt.Errorf("%w: kept %d of %d entries in %s", ErrPartial, len(values), len(raw), b.dataKey(key))
	}
	return values, nil
}

// WriteIDMap replaces the hash stored under key
func (b *RedisBackend) WriteIDMap(ctx context.Context, key string, values map[int64]int64) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, b.dataKey(key))
		if len(values) > 0 {
			fields := make(map[string]any, len(values))
			for id, ts := range values {
				fields[strconv.FormatInt(id, 10)] = ts
			}
			pipe.HSet(ctx, b.dataKey(key), fields)
		}
		pipe.Set(ctx, b.kindKey(key), kindMap, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write map %s: %w", b.dataKey(key), err)
	}
	return nil
}

// ReadLines returns the stored text split into lines
func (b *RedisBackend) ReadLines(ctx context.Context, key string) ([]string, error) {
	if err := b.expectKind(ctx, key, kindText); err != nil {
		return nil, err
	}
	body, err := b.client.Get(ctx, b.dataKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return []string{}, nil
	}
	if err != nil {
		return nil, wrapRedisErr(b.dataKey(key), err)
	}
	return splitLines(body), nil
}

// WriteDefaultText stores text under key
func (b *RedisBackend) WriteDefaultText(ctx context.Context, key string, text string) error {
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, b.dataKey(key), text, 0)
		pipe.Set(ctx, b.kindKey(key), kindText, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write text %s: %w", b.dataKey(key), err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (b *RedisBackend) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return b.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// Client exposes the connection for components sharing it, such as the reply rate limiter
func (b *RedisBackend) Client() *redis.Client {
	return b.client
}

// Prefix returns the key prefix without a trailing colon
func (b *RedisBackend) Prefix() string {
	return b.prefix
}

// wrapRedisErr maps WRONGTYPE replies to ErrMalformed
func wrapRedisErr(key string, err error) error {
	if strings.HasPrefix(err.Error(), "WRONGTYPE") {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, key, err)
	}
	return fmt.Errorf("failed to read %s: %w", key, err)
}
