// Package replies holds the canned auto-reply texts.
package replies

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/benvon/away-reply/internal/storage"
	"go.uber.org/zap"
)

// DefaultReply is written to a missing source and used when the source has no usable lines
const DefaultReply = "I'm currently away. I'll get back to you soon."

// Pool is a non-empty, immutable list of replies
type Pool struct {
	lines []string
	intn  func(n int) int
}

// Option configures a Pool
type Option func(*Pool)

// WithIntn replaces the random source; intn must return a value in [0, n)
func WithIntn(intn func(n int) int) Option {
	return func(p *Pool) {
		p.intn = intn
	}
}

// New builds a pool from raw lines, trimming them and dropping blanks
func New(lines []string, opts ...Option) *Pool {
	p := &Pool{intn: rand.IntN}
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			p.lines = append(p.lines, trimmed)
		}
	}
	if len(p.lines) == 0 {
		p.lines = []string{DefaultReply}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load reads the replies under key, creating the source with DefaultReply when missing
func Load(ctx context.Context, backend storage.Backend, key string, logger *zap.Logger, opts ...Option) (*Pool, error) {
	lines, err := backend.ReadLines(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		logger.Warn("replies_not_found_creating_default", zap.String("key", key))
		if err := backend.WriteDefaultText(ctx, key, DefaultReply+"\n"); err != nil {
			return nil, fmt.Errorf("failed to create default replies: %w", err)
		}
		lines, err = backend.ReadLines(ctx, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read replies: %w", err)
	}

	p := New(lines, opts...)
	logger.Debug("replies_loaded", zap.Int("count", p.Len()))
	return p, nil
}

// Pick returns one reply chosen uniformly at random
func (p *Pool) Pick() string {
	return p.lines[p.intn(len(p.lines))]
}

// Len returns the number of replies
func (p *Pool) Len() int {
	return len(p.lines)
}

// All returns a copy of the replies in source order
func (p *Pool) All() []string {
	out := make([]string, len(p.lines))
	copy(out, p.lines)
	return out
}
