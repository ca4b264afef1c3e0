package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/storage"
	"go.uber.org/zap"
)

// Reply history policies
const (
	PolicyCooldown = "cooldown"
	PolicyOneShot  = "oneshot"
)

// DefaultCooldown is the minimum time between two auto-replies to the same sender
const DefaultCooldown = time.Hour

// ReplyHistory decides whether a sender already got enough auto-replies
type ReplyHistory interface {
	// Exhausted reports whether id must not get another reply at now
	Exhausted(id models.UserID, now time.Time) bool
	// Record notes a reply sent to id at now and flushes it
	Record(ctx context.Context, id models.UserID, now time.Time) error
	// Reset forgets every reply and flushes
	Reset(ctx context.Context) error
	Len() int
	Policy() string
}

// Ensure concrete types implement the interface
var (
	_ ReplyHistory = (*CooldownHistory)(nil)
	_ ReplyHistory = (*OneShotHistory)(nil)
)

// LoadHistory loads the history for policy
func LoadHistory(ctx context.Context, policy string, backend storage.Backend, key string, cooldown time.Duration, logger *zap.Logger) (ReplyHistory, error) {
	switch policy {
	case PolicyCooldown, "":
		return LoadCooldownHistory(ctx, backend, key, cooldown, logger)
	case PolicyOneShot:
		return LoadOneShotHistory(ctx, backend, key, logger)
	default:
		return nil, fmt.Errorf("unknown reply policy %q", policy)
	}
}

// CooldownHistory allows one reply per sender per cooldown window
type CooldownHistory struct {
	backend  storage.Backend
	key      string
	cooldown time.Duration
	last     map[models.UserID]int64
}

// LoadCooldownHistory reads the last-reply timestamps under key.
// A bare list of ids is accepted as the legacy shape, each id at timestamp 0,
// and rewritten as a map right away.
func LoadCooldownHistory(ctx context.Context, backend storage.Backend, key string, cooldown time.Duration, logger *zap.Logger) (*CooldownHistory, error) {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	h := &CooldownHistory{
		backend:  backend,
		key:      key,
		cooldown: cooldown,
		last:     make(map[models.UserID]int64),
	}

	values, err := backend.ReadIDMap(ctx, key)
	switch {
	case err == nil:
		h.fill(values)
		return h, nil

	case errors.Is(err, storage.ErrPartial):
		logger.Warn("reply_history_dropped_invalid_entries",
			zap.String("key", key),
			zap.Error(err),
		)
		h.fill(values)
		return h.persisted(ctx)

	case errors.Is(err, storage.ErrNotFound):
		return h.persisted(ctx)

	case errors.Is(err, storage.ErrMalformed):
		legacy, legacyErr := backend.ReadIDSet(ctx, key)
		if legacyErr == nil {
			for _, id := range legacy {
				h.last[models.UserID(id)] = 0
			}
			logger.Info("reply_history_migrated_from_list",
				zap.String("key", key),
				zap.Int("entries", len(legacy)),
			)
			return h.persisted(ctx)
		}
	}

	logger.Warn("reply_history_unreadable_resetting",
		zap.String("key", key),
		zap.Error(err),
	)
	return h.persisted(ctx)
}

func (h *CooldownHistory) persisted(ctx context.Context) (*CooldownHistory, error) {
	if err := h.save(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *CooldownHistory) fill(values map[int64]int64) {
	for id, ts := range values {
		h.last[models.UserID(id)] = ts
	}
}

// LastReply returns the unix time of the last reply to id, 0 if never
func (h *CooldownHistory) LastReply(id models.UserID) int64 {
	return h.last[id]
}

// Exhausted reports whether id got a reply less than the cooldown ago
func (h *CooldownHistory) Exhausted(id models.UserID, now time.Time) bool {
	return now.Sub(time.Unix(h.last[id], 0)) < h.cooldown
}

// Record stores now as the last reply time for id
func (h *CooldownHistory) Record(ctx context.Context, id models.UserID, now time.Time) error {
	h.last[id] = now.Unix()
	return h.save(ctx)
}

// Prune drops entries whose cooldown has already elapsed at now and flushes
// if anything was removed. Decisions are unchanged: a missing entry and an
// expired one are both eligible.
func (h *CooldownHistory) Prune(ctx context.Context, now time.Time) (int, error) {
	removed := 0
	for id := range h.last {
		if !h.Exhausted(id, now) {
			delete(h.last, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, h.save(ctx)
}

// Reset clears all timestamps
func (h *CooldownHistory) Reset(ctx context.Context) error {
	h.last = make(map[models.UserID]int64)
	return h.save(ctx)
}

// Len returns the number of senders with a recorded reply
func (h *CooldownHistory) Len() int {
	return len(h.last)
}

// Policy returns PolicyCooldown
func (h *CooldownHistory) Policy() string {
	return PolicyCooldown
}

func (h *CooldownHistory) save(ctx context.Context) error {
	raw := make(map[int64]int64, len(h.last))
	for id, ts := range h.last {
		raw[int64(id)] = ts
	}
	if err := h.backend.WriteIDMap(ctx, h.key, raw); err != nil {
		return fmt.Errorf("failed to save reply history: %w", err)
	}
	return nil
}

// OneShotHistory allows exactly one reply per sender until Reset
type OneShotHistory struct {
	backend storage.Backend
	key     string
	replied map[models.UserID]struct{}
}

// LoadOneShotHistory reads the replied-to set under key with the blacklist's recovery rules.
// A cooldown map left by the other policy keeps its senders and is rewritten as a set.
func LoadOneShotHistory(ctx context.Context, backend storage.Backend, key string, logger *zap.Logger) (*OneShotHistory, error) {
	h := &OneShotHistory{backend: backend, key: key, replied: make(map[models.UserID]struct{})}

	raw, err := backend.ReadIDSet(ctx, key)
	if errors.Is(err, storage.ErrMalformed) {
		values, mapErr := backend.ReadIDMap(ctx, key)
		if mapErr == nil || errors.Is(mapErr, storage.ErrPartial) {
			for id := range values {
				h.replied[models.UserID(id)] = struct{}{}
			}
			logger.Info("reply_history_migrated_from_cooldown",
				zap.String("key", key),
				zap.Int("entries", len(values)),
			)
			if err := h.save(ctx); err != nil {
				return nil, err
			}
			return h, nil
		}
	}
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logger.Warn("reply_history_unreadable_resetting",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		if err := h.save(ctx); err != nil {
			return nil, err
		}
		return h, nil
	}
	for _, id := range raw {
		h.replied[models.UserID(id)] = struct{}{}
	}
	return h, nil
}

// HasReplied reports whether id already got its reply
func (h *OneShotHistory) HasReplied(id models.UserID) bool {
	_, ok := h.replied[id]
	return ok
}

// Exhausted is HasReplied; time plays no part
func (h *OneShotHistory) Exhausted(id models.UserID, _ time.Time) bool {
	return h.HasReplied(id)
}

// Record marks id as replied
func (h *OneShotHistory) Record(ctx context.Context, id models.UserID, _ time.Time) error {
	h.replied[id] = struct{}{}
	return h.save(ctx)
}

// Reset forgets every sender
func (h *OneShotHistory) Reset(ctx context.Context) error {
	h.replied = make(map[models.UserID]struct{})
	return h.save(ctx)
}

// Len returns the number of senders replied to
func (h *OneShotHistory) Len() int {
	return len(h.replied)
}

// Policy returns PolicyOneShot
func (h *OneShotHistory) Policy() string {
	return PolicyOneShot
}

func (h *OneShotHistory) save(ctx context.Context) error {
	raw := make([]int64, 0, len(h.replied))
	for id := range h.replied {
		raw = append(raw, int64(id))
	}
	if err := h.backend.WriteIDSet(ctx, h.key, raw); err != nil {
		return fmt.Errorf("failed to save reply history: %w", err)
	}
	return nil
}
