package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// PruneFunc removes expired history entries and returns how many went away
type PruneFunc func(ctx context.Context) (int, error)

// GarbageCollector runs periodic history prunes
type GarbageCollector struct {
	prune    PruneFunc
	interval time.Duration
	logger   *zap.Logger
}

// NewGarbageCollector creates a collector calling prune every interval.
// prune must hold whatever lock guards the history.
func NewGarbageCollector(prune PruneFunc, interval time.Duration, logger *zap.Logger) *GarbageCollector {
	return &GarbageCollector{
		prune:    prune,
		interval: interval,
		logger:   logger,
	}
}

// Start runs the GC loop until ctx is cancelled
func (gc *GarbageCollector) Start(ctx context.Context) error {
	ticker := time.NewTicker(gc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := gc.collect(ctx); err != nil {
				gc.logger.Error("reply_history_gc_failed", zap.Error(err))
			}
		}
	}
}

func (gc *GarbageCollector) collect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	n, err := gc.prune(ctx)
	if err != nil {
		return fmt.Errorf("prune reply history: %w", err)
	}
	if n > 0 {
		gc.logger.Info("reply_history_pruned", zap.Int("entries", n))
	}
	return nil
}
