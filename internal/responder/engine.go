// Package responder decides, message by message, whether the account answers with an auto-reply.
package responder

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/away-reply/internal/activity"
	"github.com/benvon/away-reply/internal/logger"
	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/replies"
	"github.com/benvon/away-reply/internal/store"
	"go.uber.org/zap"
)

// Decision is the result of evaluating one incoming message
type Decision string

const (
	DecisionNotPrivate  Decision = "not_private"
	DecisionBlacklisted Decision = "blacklisted"
	DecisionHistory     Decision = "history_exhausted"
	DecisionActive      Decision = "owner_active"
	DecisionRateLimited Decision = "rate_limited"
	DecisionSendFailed  Decision = "send_failed"
	DecisionReplied     Decision = "replied"
)

// Sender delivers a reply to the author of msg
type Sender interface {
	SendReply(ctx context.Context, msg models.IncomingMessage, text string) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, msg models.IncomingMessage, text string) error

// SendReply calls f
func (f SenderFunc) SendReply(ctx context.Context, msg models.IncomingMessage, text string) error {
	return f(ctx, msg, text)
}

// Limiter caps the overall number of auto-replies
type Limiter interface {
	Allow(ctx context.Context) (bool, error)
}

// Outcome describes what the engine did with a message.
// Err is set for send failures and for a history flush that failed after a successful send.
type Outcome struct {
	Decision Decision
	Reply    string
	Err      error
}

// Status is a read-only snapshot of the engine state
type Status struct {
	Offline          bool
	LastActivity     time.Time
	OfflineThreshold time.Duration
	Policy           string
	HistorySize      int
	BlacklistSize    int
	Replies          int
}

// Engine owns the session state built at startup.
// It is not safe for concurrent use; events.Dispatcher serializes every call.
type Engine struct {
	blacklist *store.Blacklist
	history   store.ReplyHistory
	pool      *replies.Pool
	tracker   *activity.Tracker
	sender    Sender
	limiter   Limiter
	now       func() time.Time
	logger    *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLimiter caps the global reply rate
func WithLimiter(l Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithClock replaces time.Now for history timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine wires the engine's collaborators
func NewEngine(
	blacklist *store.Blacklist,
	history store.ReplyHistory,
	pool *replies.Pool,
	tracker *activity.Tracker,
	sender Sender,
	zapLogger *zap.Logger,
	opts ...Option,
) *Engine {
	e := &Engine{
		blacklist: blacklist,
		history:   history,
		pool:      pool,
		tracker:   tracker,
		sender:    sender,
		now:       time.Now,
		logger:    zapLogger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleActivity records that the owner acted
func (e *Engine) HandleActivity(_ context.Context, sig models.ActivitySignal) {
	e.tracker.RecordActivity(sig.Reason)
}

// HandleIncoming runs the reply rules for msg, first match wins.
// The history is only written after the reply went out, so a failed
// send leaves the sender eligible for the next message.
func (e *Engine) HandleIncoming(ctx context.Context, msg models.IncomingMessage) Outcome {
	if !msg.Private {
		return Outcome{Decision: DecisionNotPrivate}
	}

	sender := msg.SenderID
	userField := zap.Int64("user_id", int64(sender))

	if e.blacklist.Contains(sender) {
		e.logger.Info("skipping_blacklisted_user", userField)
		return Outcome{Decision: DecisionBlacklisted}
	}

	now := e.now()
	if e.history.Exhausted(sender, now) {
		e.logger.Info("reply_history_exhausted_skipping",
			userField,
			zap.String("policy", e.history.Policy()),
		)
		return Outcome{Decision: DecisionHistory}
	}

	if !e.tracker.IsOffline() {
		e.logger.Info("owner_active_not_replying", userField)
		return Outcome{Decision: DecisionActive}
	}

	if e.limiter != nil {
		allowed, err := e.limiter.Allow(ctx)
		if err != nil {
			e.logger.Warn("rate_limiter_failed_allowing_send", userField, zap.Error(err))
		} else if !allowed {
			e.logger.Warn("auto_reply_rate_limited", userField)
			return Outcome{Decision: DecisionRateLimited}
		}
	}

	text := e.pool.Pick()
	if err := e.sender.SendReply(ctx, msg, text); err != nil {
		e.logger.Error("failed_to_send_auto_reply",
			userField,
			zap.String("error", logger.SanitizeError(err)),
		)
		return Outcome{Decision: DecisionSendFailed, Reply: text, Err: fmt.Errorf("send reply: %w", err)}
	}
	e.logger.Info("auto_reply_sent",
		userField,
		zap.String("reply", logger.SanitizeString(text, logger.MaxReplyLength)),
	)

	out := Outcome{Decision: DecisionReplied, Reply: text}
	if err := e.history.Record(ctx, sender, e.now()); err != nil {
		e.logger.Error("failed_to_persist_reply_history", userField, zap.Error(err))
		out.Err = err
	}
	e.tracker.RecordActivity(models.ActivityAutoReplySent)
	return out
}

// Status returns a snapshot for the status surface
func (e *Engine) Status() Status {
	return Status{
		Offline:          e.tracker.IsOffline(),
		LastActivity:     e.tracker.LastActivity(),
		OfflineThreshold: e.tracker.Threshold(),
		Policy:           e.history.Policy(),
		HistorySize:      e.history.Len(),
		BlacklistSize:    e.blacklist.Len(),
		Replies:          e.pool.Len(),
	}
}
