package storage

import (
	"context"
	"fmt"
)

// Backend kinds accepted by Open
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Options selects and configures a backend
type Options struct {
	Backend       string
	BlacklistPath string
	RepliedPath   string
	RepliesPath   string
	SQLitePath    string
	DatabaseURL   string
	RedisURL      string
	RedisPrefix   string
}

// Open connects to the configured backend
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", BackendFile:
		return NewFileBackend(map[string]string{
			KeyBlacklist: opts.BlacklistPath,
			KeyReplied:   opts.RepliedPath,
			KeyReplies:   opts.RepliesPath,
		}), nil
	case BackendSQLite:
		return NewSQLBackend(ctx, DialectSQLite, opts.SQLitePath)
	case BackendPostgres:
		return NewSQLBackend(ctx, DialectPostgres, opts.DatabaseURL)
	case BackendRedis:
		return NewRedisBackend(ctx, opts.RedisURL, opts.RedisPrefix)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", opts.Backend)
	}
}
