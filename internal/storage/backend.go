package storage

import (
	"context"
	"errors"
)

// Logical keys shared by every backend
const (
	KeyBlacklist = "blacklist"
	KeyReplied   = "replied"
	KeyReplies   = "replies"
)

var (
	// ErrNotFound is returned when nothing has been stored under a key yet
	ErrNotFound = errors.New("storage: not found")
	// ErrMalformed is returned when stored data does not have the requested shape
	ErrMalformed = errors.New("storage: malformed data")
	// ErrPartial is returned with a usable map when some stored entries were dropped
	ErrPartial = errors.New("storage: some entries dropped")
	// ErrUnknownKey is returned by backends that only know a fixed set of keys
	ErrUnknownKey = errors.New("storage: unknown key")
)

// Backend is durable storage for id sets, id maps and line-oriented text.
//
// Reads return ErrNotFound for missing keys and ErrMalformed when the stored
// value cannot be decoded into the requested shape. Writes replace the whole value.
type Backend interface {
	ReadIDSet(ctx context.Context, key string) ([]int64, error)
	WriteIDSet(ctx context.Context, key string, ids []int64) error
	ReadIDMap(ctx context.Context, key string) (map[int64]int64, error)
	WriteIDMap(ctx context.Context, key string, values map[int64]int64) error
	ReadLines(ctx context.Context, key string) ([]string, error)
	WriteDefaultText(ctx context.Context, key string, text string) error
	Ping(ctx context.Context) error
	Close() error
}

// Ensure concrete types implement the interface
var (
	_ Backend = (*FileBackend)(nil)
	_ Backend = (*SQLBackend)(nil)
	_ Backend = (*RedisBackend)(nil)
)
