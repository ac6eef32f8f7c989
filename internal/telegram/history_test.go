package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watch-gateway/internal/watch"
)

func chatMessage(chatID, messageID int64) watch.InboundMessage {
	return watch.InboundMessage{
		ChatID:    chatID,
		SenderID:  555,
		MessageID: messageID,
		Text:      "hello",
	}
}

func TestHistoryCacheNewestFirst(t *testing.T) {
	cache := NewHistoryCache(10)
	for messageID := int64(1); messageID <= 3; messageID++ {
		cache.Remember(chatMessage(-200, messageID))
	}

	history, err := cache.ChatHistory(context.Background(), -200, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, int64(3), history[0].MessageID)
	assert.Equal(t, int64(1), history[2].MessageID)
}

func TestHistoryCacheLimit(t *testing.T) {
	cache := NewHistoryCache(10)
	for messageID := int64(1); messageID <= 5; messageID++ {
		cache.Remember(chatMessage(-200, messageID))
	}

	history, err := cache.ChatHistory(context.Background(), -200, 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(5), history[0].MessageID)
	assert.Equal(t, int64(4), history[1].MessageID)
}

func TestHistoryCacheEvictsOldest(t *testing.T) {
	cache := NewHistoryCache(3)
	for messageID := int64(1); messageID <= 5; messageID++ {
		cache.Remember(chatMessage(-200, messageID))
	}

	history, err := cache.ChatHistory(context.Background(), -200, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	// 容量 3 时只剩 5、4、3
	assert.Equal(t, int64(5), history[0].MessageID)
	assert.Equal(t, int64(3), history[2].MessageID)
}

func TestHistoryCachePerChatIsolation(t *testing.T) {
	cache := NewHistoryCache(10)
	cache.Remember(chatMessage(-200, 1))
	cache.Remember(chatMessage(-300, 2))

	history, err := cache.ChatHistory(context.Background(), -200, 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, int64(1), history[0].MessageID)

	empty, err := cache.ChatHistory(context.Background(), -400, 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestHistoryCacheDefaultCapacity(t *testing.T) {
	cache := NewHistoryCache(0)
	for messageID := int64(1); messageID <= DefaultHistoryCapacity+5; messageID++ {
		cache.Remember(chatMessage(-200, messageID))
	}

	history, err := cache.ChatHistory(context.Background(), -200, 0)
	require.NoError(t, err)
	assert.Len(t, history, DefaultHistoryCapacity)
}
