package telegram

import (
	"context"

	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/responder"
	"github.com/gotd/td/tg"
	"go.uber.org/zap"
)

// Events receives classified updates
type Events interface {
	Incoming(ctx context.Context, msg models.IncomingMessage) responder.Outcome
	Activity(ctx context.Context, sig models.ActivitySignal)
}

// Sources selects which update kinds count as owner activity
type Sources struct {
	Outgoing bool
	Read     bool
}

// router turns raw MTProto updates into engine events.
// Handlers never return an error so one bad update cannot stop the update loop.
type router struct {
	events  Events
	sources Sources
	logger  *zap.Logger
}

// register attaches the router to an update dispatcher
func (r *router) register(d tg.UpdateDispatcher) {
	d.OnNewMessage(r.onNewMessage)
	d.OnNewChannelMessage(r.onNewChannelMessage)
	d.OnReadHistoryInbox(r.onReadHistoryInbox)
}

// onNewChannelMessage only tracks the owner's own posts in supergroups and
// channels; incoming channel messages are never private.
func (r *router) onNewChannelMessage(ctx context.Context, _ tg.Entities, u *tg.UpdateNewChannelMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok || !msg.Out || !r.sources.Outgoing {
		return nil
	}
	r.events.Activity(ctx, models.ActivitySignal{Reason: models.ActivityOutgoingMessage})
	return nil
}

func (r *router) onNewMessage(ctx context.Context, e tg.Entities, u *tg.UpdateNewMessage) error {
	msg, ok := u.Message.(*tg.Message)
	if !ok {
		// Service and empty messages carry no text to answer
		return nil
	}

	if msg.Out {
		if r.sources.Outgoing {
			r.events.Activity(ctx, models.ActivitySignal{Reason: models.ActivityOutgoingMessage})
		}
		return nil
	}

	in, ok := r.classify(e, msg)
	if !ok {
		return nil
	}
	out := r.events.Incoming(ctx, in)
	r.logger.Debug("incoming_message_handled",
		zap.Int64("user_id", int64(in.SenderID)),
		zap.Int("message_id", in.MessageID),
		zap.String("decision", string(out.Decision)),
	)
	return nil
}

func (r *router) onReadHistoryInbox(ctx context.Context, _ tg.Entities, u *tg.UpdateReadHistoryInbox) error {
	if !r.sources.Read {
		return nil
	}
	// UpdateReadHistoryInbox means this account read someone else's messages
	if _, ok := u.Peer.(*tg.PeerUser); !ok {
		return nil
	}
	r.events.Activity(ctx, models.ActivitySignal{Reason: models.ActivityReadReceipt})
	return nil
}

// classify builds an IncomingMessage. Private messages need the sender's
// entity to address the reply; without it the message is skipped.
func (r *router) classify(e tg.Entities, msg *tg.Message) (models.IncomingMessage, bool) {
	peer, ok := msg.PeerID.(*tg.PeerUser)
	if !ok {
		in := models.IncomingMessage{MessageID: msg.ID}
		if from, ok := msg.FromID.(*tg.PeerUser); ok {
			in.SenderID = models.UserID(from.UserID)
		}
		return in, true
	}

	user, ok := e.Users[peer.UserID]
	if !ok {
		r.logger.Warn("sender_entity_missing_skipping",
			zap.Int64("user_id", peer.UserID),
			zap.Int("message_id", msg.ID),
		)
		return models.IncomingMessage{}, false
	}
	if user.Self {
		// Saved Messages
		return models.IncomingMessage{}, false
	}

	return models.IncomingMessage{
		SenderID:    models.UserID(user.ID),
		Private:     true,
		MessageID:   msg.ID,
		ReplyHandle: user.AsInputPeer(),
	}, true
}
