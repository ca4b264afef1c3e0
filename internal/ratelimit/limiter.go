// Package ratelimit caps how many auto-replies the account sends overall,
// independently of the per-sender reply history.
package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
)

const sendKey = "auto_reply"

// SendLimiter is a process-wide fixed-window counter over a ulule/limiter store
type SendLimiter struct {
	instance *limiter.Limiter
	rate     string
}

type options struct {
	redis  *redis.Client
	prefix string
}

// Option configures New
type Option func(*options)

// WithRedis keeps the counter in Redis so the budget survives restarts
func WithRedis(client *redis.Client, prefix string) Option {
	return func(o *options) {
		o.redis = client
		o.prefix = prefix
	}
}

// New parses rate in the ulule format ("20-M", "100-H").
// Without WithRedis the counter lives in process memory.
func New(rate string, opts ...Option) (*SendLimiter, error) {
	rate = strings.TrimSpace(rate)
	if rate == "" {
		return nil, fmt.Errorf("rate is empty")
	}
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate %q: %w", rate, err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var store limiter.Store
	if o.redis != nil {
		prefix := limiter.DefaultPrefix
		if o.prefix != "" {
			prefix = strings.TrimSuffix(o.prefix, ":") + ":limiter"
		}
		store, err = redisstore.NewStoreWithOptions(o.redis, limiter.StoreOptions{
			Prefix:          prefix,
			CleanUpInterval: limiter.DefaultCleanUpInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis limiter store: %w", err)
		}
	} else {
		store = memory.NewStore()
	}

	return &SendLimiter{
		instance: limiter.New(store, parsed),
		rate:     rate,
	}, nil
}

// Allow consumes one send and reports whether it was within the rate
func (l *SendLimiter) Allow(ctx context.Context) (bool, error) {
	c, err := l.instance.Get(ctx, sendKey)
	if err != nil {
		return false, fmt.Errorf("rate limiter: %w", err)
	}
	return !c.Reached, nil
}

// Rate returns the configured rate string
func (l *SendLimiter) Rate() string {
	return l.rate
}
