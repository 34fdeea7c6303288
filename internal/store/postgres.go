package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/wasla-delivery/orderchat/internal/domain"
)

const notifyChannel = "message_added"

// Postgres is the authoritative Store. Timestamps and sequence numbers are
// assigned by the database on insert; live subscriptions ride on a trigger
// that emits pg_notify on the message_added channel.
type Postgres struct {
	pool  *pgxpool.Pool
	cache *Cache
}

// NewPostgres creates a Postgres store. cache may be nil to disable the
// read-through history cache.
func NewPostgres(pool *pgxpool.Pool, cache *Cache) *Postgres {
	return &Postgres{pool: pool, cache: cache}
}

func (p *Postgres) Append(ctx context.Context, conversationID string, msg domain.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.ConversationID = conversationID
	msg.Status = domain.StatusSent

	row := p.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, type, text, image_url, audio_url, duration_seconds, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq, created_at`,
		msg.ID, conversationID, msg.SenderID, msg.Type, msg.Text,
		msg.ImageURL, msg.AudioURL, msg.DurationSeconds, msg.Status,
	)
	if err := row.Scan(&msg.Seq, &msg.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if p.cache != nil {
		if err := p.cache.SaveMessage(ctx, &msg); err != nil {
			slog.Warn("message cache write failed", "conversation_id", conversationID, "error", err)
		}
	}
	return nil
}

func (p *Postgres) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if p.cache != nil {
		msgs, err := p.cache.GetHistory(ctx, conversationID, limit)
		if err == nil {
			return msgs, nil
		}
		if err != ErrCacheMiss {
			slog.Warn("history cache read failed", "conversation_id", conversationID, "error", err)
		}
	}

	msgs, err := p.queryHistory(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SaveHistory(ctx, conversationID, msgs); err != nil {
			slog.Warn("history cache fill failed", "conversation_id", conversationID, "error", err)
		}
	}
	return msgs, nil
}

func (p *Postgres) queryHistory(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, conversation_id, seq, sender_id, type, text, image_url, audio_url, duration_seconds, status, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
		LIMIT $2`,
		conversationID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// Subscribe holds a dedicated connection in LISTEN mode. Each notification
// names a conversation and message id; additions for other conversations are
// skipped, and delivery catches up from the last seen sequence number so a
// burst of inserts cannot be reordered or dropped.
func (p *Postgres) Subscribe(ctx context.Context, conversationID string, onAdd func(domain.Message), onErr func(error)) (UnsubscribeFunc, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listener connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}

	var lastSeq int64
	err = conn.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM messages WHERE conversation_id = $1`,
		conversationID,
	).Scan(&lastSeq)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("read subscription position: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.Background())

	var once sync.Once
	unsubscribe := func() {
		once.Do(cancel)
	}

	go func() {
		defer conn.Release()
		for {
			n, err := conn.Conn().WaitForNotification(subCtx)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				onErr(fmt.Errorf("wait for notification: %w", err))
				return
			}

			convID, _, ok := strings.Cut(n.Payload, "|")
			if !ok || convID != conversationID {
				continue
			}

			msgs, err := p.messagesAfter(subCtx, conn, conversationID, lastSeq)
			if err != nil {
				if subCtx.Err() != nil {
					return
				}
				onErr(err)
				return
			}
			for _, msg := range msgs {
				lastSeq = msg.Seq
				onAdd(msg)
			}
		}
	}()

	return unsubscribe, nil
}

func (p *Postgres) messagesAfter(ctx context.Context, conn *pgxpool.Conn, conversationID string, afterSeq int64) ([]domain.Message, error) {
	rows, err := conn.Query(ctx, `
		SELECT id, conversation_id, seq, sender_id, type, text, image_url, audio_url, duration_seconds, status, created_at
		FROM messages
		WHERE conversation_id = $1 AND seq > $2
		ORDER BY created_at ASC, seq ASC`,
		conversationID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("query additions: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(
			&m.ID, &m.ConversationID, &m.Seq, &m.SenderID, &m.Type,
			&m.Text, &m.ImageURL, &m.AudioURL, &m.DurationSeconds, &m.Status, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	return msgs, nil
}
