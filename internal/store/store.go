package store

import (
	"context"

	"github.com/wasla-delivery/orderchat/internal/domain"
)

// UnsubscribeFunc detaches a live subscription. Safe to call more than once.
type UnsubscribeFunc func()

// Store is an append-only, time-ordered message collection per conversation.
//
// Append assigns the message ID (when empty), the timestamp and the sequence
// number; clients must not supply their own ordering. History returns the
// earliest messages in ascending timestamp order, ties broken by sequence.
// Subscribe delivers messages appended after the call, one at a time, in the
// same ascending order; onErr fires when the live stream breaks and is not
// followed by further onAdd calls.
type Store interface {
	Append(ctx context.Context, conversationID string, msg domain.Message) error
	History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	Subscribe(ctx context.Context, conversationID string, onAdd func(domain.Message), onErr func(error)) (UnsubscribeFunc, error)
}
