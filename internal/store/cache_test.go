package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wasla-delivery/orderchat/internal/domain"
	"github.com/wasla-delivery/orderchat/internal/store"
)

func newTestCache(t *testing.T) (*store.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache, err := store.NewCache(client)
	require.NoError(t, err)
	return cache, mr
}

func cachedMessage(seq int64, text string) domain.Message {
	return domain.Message{
		ID:             "msg-" + text,
		ConversationID: "order-1",
		Seq:            seq,
		SenderID:       "u1",
		Type:           domain.MessageText,
		Text:           text,
		Status:         domain.StatusSent,
		CreatedAt:      time.UnixMilli(1700000000000),
	}
}

func TestCacheHistoryRoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	msgs := []domain.Message{
		cachedMessage(1, "first"),
		cachedMessage(2, "second"),
		cachedMessage(3, "third"),
	}
	require.NoError(t, cache.SaveHistory(ctx, "order-1", msgs))

	got, err := cache.GetHistory(ctx, "order-1", 50)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, msg := range got {
		assert.Equal(t, msgs[i].Text, msg.Text)
		assert.Equal(t, msgs[i].Seq, msg.Seq)
	}
}

func TestCacheAppendOnlyTimelineIsMiss(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	// An append after a cache flush populates the timeline without a full
	// history fill; serving it as the window would hide the earlier messages.
	latest := cachedMessage(60, "latest only")
	require.NoError(t, cache.SaveMessage(ctx, &latest))

	_, err := cache.GetHistory(ctx, "order-1", 50)
	assert.ErrorIs(t, err, store.ErrCacheMiss)
}

func TestCacheAppendAfterFillStaysServed(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SaveHistory(ctx, "order-1", []domain.Message{
		cachedMessage(1, "first"),
		cachedMessage(2, "second"),
	}))
	third := cachedMessage(3, "third")
	require.NoError(t, cache.SaveMessage(ctx, &third))

	got, err := cache.GetHistory(ctx, "order-1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Text)
	assert.Equal(t, "second", got[1].Text)
}

func TestCacheEvictedDocumentIsMiss(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SaveHistory(ctx, "order-1", []domain.Message{
		cachedMessage(1, "first"),
		cachedMessage(2, "second"),
	}))
	mr.Del("chat:msg:msg-first")

	_, err := cache.GetHistory(ctx, "order-1", 50)
	assert.ErrorIs(t, err, store.ErrCacheMiss)
}

func TestCacheEmptyConversationIsMiss(t *testing.T) {
	cache, _ := newTestCache(t)

	_, err := cache.GetHistory(context.Background(), "order-1", 50)
	assert.ErrorIs(t, err, store.ErrCacheMiss)
}

func TestCacheTimelineOrdersBySeq(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	// Identical timestamps and member ids in reverse lexicographic order: only
	// the sequence score can keep these in insertion order.
	a := cachedMessage(1, "zz-first")
	b := cachedMessage(2, "aa-second")
	require.NoError(t, cache.SaveHistory(ctx, "order-1", []domain.Message{a, b}))

	got, err := cache.GetHistory(ctx, "order-1", 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "zz-first", got[0].Text)
	assert.Equal(t, "aa-second", got[1].Text)
}
