package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wasla-delivery/orderchat/internal/domain"
)

// Memory is an in-process Store used for local development and tests.
// Timestamps are monotonically non-decreasing per conversation and ties are
// broken by the global append sequence, matching the Postgres implementation.
// Subscriber callbacks run synchronously under the store lock, which keeps
// concurrent appends delivered in sequence order; callbacks must not call
// back into the store.
type Memory struct {
	mu       sync.Mutex
	seq      int64
	messages map[string][]domain.Message
	subs     map[string]map[int64]*memorySub
	nextSub  int64
}

type memorySub struct {
	onAdd  func(domain.Message)
	onErr  func(error)
	closed bool
}

func NewMemory() *Memory {
	return &Memory{
		messages: make(map[string][]domain.Message),
		subs:     make(map[string]map[int64]*memorySub),
	}
}

func (m *Memory) Append(ctx context.Context, conversationID string, msg domain.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.seq++
	msg.Seq = m.seq
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.ConversationID = conversationID
	msg.Status = domain.StatusSent
	msg.CreatedAt = time.Now()
	if prev := m.messages[conversationID]; len(prev) > 0 {
		if last := prev[len(prev)-1].CreatedAt; msg.CreatedAt.Before(last) {
			msg.CreatedAt = last
		}
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)

	// Delivery happens under the lock: releasing it first would let a second
	// append overtake this one and reach subscribers out of sequence order.
	for _, sub := range m.subs[conversationID] {
		if !sub.closed {
			sub.onAdd(msg)
		}
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Memory) Subscribe(ctx context.Context, conversationID string, onAdd func(domain.Message), onErr func(error)) (UnsubscribeFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSub++
	id := m.nextSub
	sub := &memorySub{onAdd: onAdd, onErr: onErr}
	if m.subs[conversationID] == nil {
		m.subs[conversationID] = make(map[int64]*memorySub)
	}
	m.subs[conversationID][id] = sub

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		sub.closed = true
		delete(m.subs[conversationID], id)
	}, nil
}

// FailSubscription fires onErr on every live subscriber of the conversation,
// simulating a broken stream.
func (m *Memory) FailSubscription(conversationID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subs[conversationID] {
		if !sub.closed && sub.onErr != nil {
			sub.onErr(err)
		}
	}
}
