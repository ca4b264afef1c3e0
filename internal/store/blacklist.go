// Package store keeps the blacklist and reply history in memory and writes
// every mutation through to a storage.Backend.
//
// None of the types here lock; callers serialize access (see events.Dispatcher).
package store

import (
	"context"
	"fmt"

	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/storage"
	"go.uber.org/zap"
)

// Blacklist is the set of senders that never get an auto-reply
type Blacklist struct {
	backend storage.Backend
	key     string
	ids     map[models.UserID]struct{}
}

// LoadBlacklist reads the blacklist under key.
// Missing or unreadable data is logged, replaced by an empty list, and an empty
// blacklist is returned. Only a failure to write that empty list is an error.
func LoadBlacklist(ctx context.Context, backend storage.Backend, key string, logger *zap.Logger) (*Blacklist, error) {
	b := &Blacklist{backend: backend, key: key, ids: make(map[models.UserID]struct{})}

	raw, err := backend.ReadIDSet(ctx, key)
	if err != nil {
		logger.Warn("blacklist_unreadable_resetting",
			zap.String("key", key),
			zap.Error(err),
		)
		if err := b.Save(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset blacklist: %w", err)
		}
		return b, nil
	}

	for _, id := range raw {
		b.ids[models.UserID(id)] = struct{}{}
	}
	return b, nil
}

// Contains reports whether id is blacklisted
func (b *Blacklist) Contains(id models.UserID) bool {
	_, ok := b.ids[id]
	return ok
}

// Len returns the number of blacklisted ids
func (b *Blacklist) Len() int {
	return len(b.ids)
}

// List returns the blacklisted ids in ascending order
func (b *Blacklist) List() []models.UserID {
	out := make([]models.UserID, 0, len(b.ids))
	for id := range b.ids {
		out = append(out, id)
	}
	models.SortUserIDs(out)
	return out
}

// Add blacklists ids and saves
func (b *Blacklist) Add(ctx context.Context, ids ...models.UserID) error {
	for _, id := range ids {
		b.ids[id] = struct{}{}
	}
	return b.Save(ctx)
}

// Remove un-blacklists ids and saves
func (b *Blacklist) Remove(ctx context.Context, ids ...models.UserID) error {
	for _, id := range ids {
		delete(b.ids, id)
	}
	return b.Save(ctx)
}

// Save writes the current set as a sorted list
func (b *Blacklist) Save(ctx context.Context) error {
	list := b.List()
	raw := make([]int64, len(list))
	for i, id := range list {
		raw[i] = int64(id)
	}
	if err := b.backend.WriteIDSet(ctx, b.key, raw); err != nil {
		return fmt.Errorf("failed to save blacklist: %w", err)
	}
	return nil
}
