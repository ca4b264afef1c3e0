package activity

import (
	"time"

	"github.com/benvon/away-reply/internal/models"
	"go.uber.org/zap"
)

// DefaultOfflineThreshold is how long without activity before the owner counts as away
const DefaultOfflineThreshold = 3 * time.Minute

// Tracker remembers when the account owner last acted.
// It does not lock; events.Dispatcher serializes every caller.
type Tracker struct {
	last      time.Time
	threshold time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// WithLogger sets the logger for debug output
func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// NewTracker creates a tracker whose last activity is the current time
func NewTracker(threshold time.Duration, opts ...Option) *Tracker {
	if threshold <= 0 {
		threshold = DefaultOfflineThreshold
	}
	t := &Tracker{
		threshold: threshold,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.last = t.now()
	return t
}

// RecordActivity sets the last activity to now
func (t *Tracker) RecordActivity(reason models.ActivityReason) {
	t.last = t.now()
	t.logger.Debug("activity_updated",
		zap.String("reason", string(reason)),
		zap.Time("at", t.last),
	)
}

// IsOffline reports whether no activity happened for at least the threshold
func (t *Tracker) IsOffline() bool {
	return t.now().Sub(t.last) >= t.threshold
}

// LastActivity returns the time of the last recorded activity
func (t *Tracker) LastActivity() time.Time {
	return t.last
}

// Threshold returns the offline threshold
func (t *Tracker) Threshold() time.Duration {
	return t.threshold
}
