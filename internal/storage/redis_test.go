package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRedisBackend_Keys(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		prefix   string
		wantData string
		wantKind string
	}{
		{name: "prefixed", prefix: "awayreply", wantData: "awayreply:blacklist", wantKind: "awayreply:blacklist:kind"},
		{name: "no prefix", prefix: "", wantData: "blacklist", wantKind: "blacklist:kind"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := &RedisBackend{prefix: tt.prefix}
			if got := b.dataKey(KeyBlacklist); got != tt.wantData {
				t.Errorf("dataKey = %q, want %q", got, tt.wantData)
			}
			if got := b.kindKey(KeyBlacklist); got != tt.wantKind {
				t.Errorf("kindKey = %q, want %q", got, tt.wantKind)
			}
		})
	}
}

func TestWrapRedisErr(t *testing.T) {
	t.Parallel()

	err := wrapRedisErr("awayreply:replied", errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))
	if !errors.Is(err, ErrMalformed) {
		t.Errorf("Expected ErrMalformed, got %v", err)
	}

	err = wrapRedisErr("awayreply:replied", errors.New("connection reset"))
	if errors.Is(err, ErrMalformed) {
		t.Errorf("Expected plain read error, got %v", err)
	}
}

func TestNewRedisBackend_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{name: "invalid url", url: "not-a-redis-url"},
		{name: "unreachable", url: "redis://127.0.0.1:1/0?max_retries=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := NewRedisBackend(ctx, tt.url, "awayreply"); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}
}
