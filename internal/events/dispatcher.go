// Package events serializes Telegram updates into the responder engine.
//
// The engine, tracker and stores hold no locks of their own: every read
// and write of session state happens inside Dispatcher's critical section.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/responder"
	"github.com/benvon/away-reply/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultHandlerTimeout bounds a single event, including the reply send
const DefaultHandlerTimeout = 30 * time.Second

// IncomingFunc decides what to do with an incoming message
type IncomingFunc func(ctx context.Context, msg models.IncomingMessage) responder.Outcome

// ActivityFunc observes owner activity
type ActivityFunc func(ctx context.Context, sig models.ActivitySignal)

// Handler reacts to both event kinds; responder.Engine implements it
type Handler interface {
	HandleIncoming(ctx context.Context, msg models.IncomingMessage) responder.Outcome
	HandleActivity(ctx context.Context, sig models.ActivitySignal)
}

// Dispatcher runs one event at a time against its subscribers.
// Subscribe before the first dispatch; subscriptions are not guarded.
type Dispatcher struct {
	mu       sync.Mutex
	incoming IncomingFunc
	activity []ActivityFunc
	timeout  time.Duration
	tracer   trace.Tracer
	newID    func() string
	logger   *zap.Logger
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithTimeout sets the per-event deadline; zero disables it
func WithTimeout(d time.Duration) Option {
	return func(dp *Dispatcher) {
		dp.timeout = d
	}
}

// WithIDGenerator replaces the uuid event id source
func WithIDGenerator(fn func() string) Option {
	return func(dp *Dispatcher) {
		dp.newID = fn
	}
}

// NewDispatcher creates a dispatcher with no subscribers
func NewDispatcher(logger *zap.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		timeout: DefaultHandlerTimeout,
		tracer:  telemetry.Tracer("events"),
		newID:   uuid.NewString,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnIncoming sets the incoming message handler, replacing any previous one
func (d *Dispatcher) OnIncoming(fn IncomingFunc) {
	d.incoming = fn
}

// OnActivity adds an activity subscriber; subscribers run in registration order
func (d *Dispatcher) OnActivity(fn ActivityFunc) {
	d.activity = append(d.activity, fn)
}

// Subscribe registers both methods of h
func (d *Dispatcher) Subscribe(h Handler) {
	d.OnIncoming(h.HandleIncoming)
	d.OnActivity(h.HandleActivity)
}

// Incoming hands an incoming message to the handler.
// Without a handler the outcome is empty.
func (d *Dispatcher) Incoming(ctx context.Context, msg models.IncomingMessage) responder.Outcome {
	var out responder.Outcome
	err := d.run(ctx, "incoming_message", func(ctx context.Context, span trace.Span) {
		span.SetAttributes(
			attribute.Int64("telegram.sender_id", int64(msg.SenderID)),
			attribute.Bool("telegram.private", msg.Private),
		)
		if d.incoming == nil {
			return
		}
		out = d.incoming(ctx, msg)
		span.SetAttributes(attribute.String("responder.decision", string(out.Decision)))
		if out.Err != nil {
			span.RecordError(out.Err)
		}
	})
	if err != nil {
		return responder.Outcome{Err: err}
	}
	return out
}

// Activity hands an owner activity signal to every subscriber
func (d *Dispatcher) Activity(ctx context.Context, sig models.ActivitySignal) {
	_ = d.run(ctx, "owner_activity", func(ctx context.Context, span trace.Span) {
		span.SetAttributes(attribute.String("activity.reason", string(sig.Reason)))
		for _, fn := range d.activity {
			fn(ctx, sig)
		}
	})
}

// Do runs fn inside the critical section, for readers such as the status endpoint
func (d *Dispatcher) Do(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn()
}

// run executes fn under the lock with a span, a deadline and panic recovery.
// A panic is logged and returned as an error so the update loop keeps going.
func (d *Dispatcher) run(ctx context.Context, kind string, fn func(ctx context.Context, span trace.Span)) (err error) {
	eventID := d.newID()
	ctx, span := d.tracer.Start(ctx, "events."+kind, trace.WithAttributes(
		attribute.String("event.id", eventID),
	))
	defer span.End()

	d.mu.Lock()
	defer d.mu.Unlock()

	// The deadline bounds the handler, not the wait for the lock
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event_handler_panic",
				zap.String("event_id", eventID),
				zap.String("event_kind", kind),
				zap.Any("error", r),
				zap.Stack("stacktrace"),
			)
			err = fmt.Errorf("event %s (%s) panicked: %v", eventID, kind, r)
			span.SetStatus(codes.Error, "panic")
		}
	}()

	start := time.Now()
	fn(ctx, span)
	d.logger.Debug("event_handled",
		zap.String("event_id", eventID),
		zap.String("event_kind", kind),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}
