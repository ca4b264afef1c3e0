package telegram

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/benvon/away-reply/internal/models"
	"github.com/gotd/td/tg"
)

// ErrNoPeer is returned when a message carries no addressable peer
var ErrNoPeer = errors.New("message has no reply peer")

// Sender answers private messages through the MTProto API
type Sender struct {
	api    *tg.Client
	randID func() (int64, error)
}

// NewSender creates a Sender over api
func NewSender(api *tg.Client) *Sender {
	return &Sender{api: api, randID: randomID}
}

// SendReply sends text as a reply to msg in the same private chat
func (s *Sender) SendReply(ctx context.Context, msg models.IncomingMessage, text string) error {
	peer, ok := msg.ReplyHandle.(*tg.InputPeerUser)
	if !ok || peer == nil {
		return ErrNoPeer
	}
	id, err := s.randID()
	if err != nil {
		return fmt.Errorf("random id: %w", err)
	}

	req := &tg.MessagesSendMessageRequest{
		Peer:     peer,
		Message:  text,
		RandomID: id,
	}
	if msg.MessageID != 0 {
		req.ReplyTo = &tg.InputReplyToMessage{ReplyToMsgID: msg.MessageID}
	}
	if _, err := s.api.MessagesSendMessage(ctx, req); err != nil {
		return fmt.Errorf("messages.sendMessage to %d: %w", peer.UserID, err)
	}
	return nil
}

func randomID() (int64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}
