package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/wasla-delivery/orderchat/internal/config"
	"github.com/wasla-delivery/orderchat/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// Cache keeps the hot history window in Redis: one JSON document per message
// and a per-conversation ZSET timeline scored by the globally monotonic
// sequence number. A timeline only counts as the history window once a full
// fill has marked it complete; appends alone never satisfy a read.
type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) (*Cache, error) {
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Cache{client: client}, nil
}

type messageDoc struct {
	ID              string    `json:"id"`
	ConversationID  string    `json:"conversation_id"`
	Seq             int64     `json:"seq"`
	SenderID        string    `json:"sender_id"`
	Type            string    `json:"type"`
	Text            string    `json:"text,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	AudioURL        string    `json:"audio_url,omitempty"`
	DurationSeconds int       `json:"duration_seconds,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
}

func toDoc(m *domain.Message) messageDoc {
	return messageDoc{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		Seq:             m.Seq,
		SenderID:        m.SenderID,
		Type:            string(m.Type),
		Text:            m.Text,
		ImageURL:        m.ImageURL,
		AudioURL:        m.AudioURL,
		DurationSeconds: m.DurationSeconds,
		Status:          string(m.Status),
		CreatedAt:       m.CreatedAt,
	}
}

func (d messageDoc) toDomain() domain.Message {
	return domain.Message{
		ID:              d.ID,
		ConversationID:  d.ConversationID,
		Seq:             d.Seq,
		SenderID:        d.SenderID,
		Type:            domain.MessageType(d.Type),
		Text:            d.Text,
		ImageURL:        d.ImageURL,
		AudioURL:        d.AudioURL,
		DurationSeconds: d.DurationSeconds,
		Status:          domain.MessageStatus(d.Status),
		CreatedAt:       d.CreatedAt,
	}
}

func (c *Cache) SaveMessage(ctx context.Context, msg *domain.Message) error {
	data, err := json.Marshal(toDoc(msg))
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, c.messageKey(msg.ID), data, config.MessageCacheTTL)
	pipe.ZAdd(ctx, c.timelineKey(msg.ConversationID), &redis.Z{
		Score:  float64(msg.Seq),
		Member: msg.ID,
	})
	pipe.Expire(ctx, c.timelineKey(msg.ConversationID), config.HistoryCacheTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (c *Cache) SaveHistory(ctx context.Context, conversationID string, msgs []domain.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for i := range msgs {
		data, err := json.Marshal(toDoc(&msgs[i]))
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		pipe.Set(ctx, c.messageKey(msgs[i].ID), data, config.MessageCacheTTL)
		pipe.ZAdd(ctx, c.timelineKey(conversationID), &redis.Z{
			Score:  float64(msgs[i].Seq),
			Member: msgs[i].ID,
		})
	}
	pipe.Set(ctx, c.filledKey(conversationID), "1", config.HistoryCacheTTL)
	pipe.Expire(ctx, c.timelineKey(conversationID), config.HistoryCacheTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetHistory returns the earliest cached messages in ascending order. A
// timeline without the SaveHistory fill marker holds only recent appends, not
// the history window, and is treated as a miss; so is any gap left by an
// evicted message document. The caller falls back to the database on a miss.
func (c *Cache) GetHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	filled, err := c.client.Exists(ctx, c.filledKey(conversationID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read fill marker: %w", err)
	}
	if filled == 0 {
		return nil, ErrCacheMiss
	}

	ids, err := c.client.ZRange(ctx, c.timelineKey(conversationID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read timeline: %w", err)
	}
	if len(ids) == 0 {
		return nil, ErrCacheMiss
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.messageKey(id)
	}
	results, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(results))
	for _, result := range results {
		raw, ok := result.(string)
		if !ok {
			return nil, ErrCacheMiss
		}
		var doc messageDoc
		if err := json.Unmarshal([]byte(raw), &doc); err != nil {
			return nil, ErrCacheMiss
		}
		msgs = append(msgs, doc.toDomain())
	}
	return msgs, nil
}

func (c *Cache) messageKey(id string) string {
	return "chat:msg:" + id
}

func (c *Cache) timelineKey(conversationID string) string {
	return "chat:timeline:" + conversationID
}

func (c *Cache) filledKey(conversationID string) string {
	return "chat:filled:" + conversationID
}
