package telegram

import (
	"context"
	"sync"

	"watch-gateway/internal/watch"
)

// DefaultHistoryCapacity 每个会话默认缓存的消息数
const DefaultHistoryCapacity = 50

// HistoryCache 每会话的近期消息环形缓存
// Bot API 无法按需拉取任意会话历史,这里把实时路径观察到的消息
// 留存一份有界副本,为回扫路径提供 HistorySource 实现
type HistoryCache struct {
	mu       sync.Mutex
	capacity int
	chats    map[int64][]watch.InboundMessage // 每会话从旧到新
}

// NewHistoryCache 创建历史缓存
func NewHistoryCache(capacity int) *HistoryCache {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &HistoryCache{
		capacity: capacity,
		chats:    make(map[int64][]watch.InboundMessage),
	}
}

// Remember 留存一条观察到的消息,超出容量时丢弃最旧一条
func (cache *HistoryCache) Remember(msg watch.InboundMessage) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	buffered := append(cache.chats[msg.ChatID], msg)
	if len(buffered) > cache.capacity {
		buffered = buffered[1:]
	}
	cache.chats[msg.ChatID] = buffered
}

// ChatHistory 返回会话最近的 limit 条消息,从新到旧
func (cache *HistoryCache) ChatHistory(_ context.Context, chatID int64, limit int) ([]watch.InboundMessage, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	buffered := cache.chats[chatID]
	if limit <= 0 || limit > len(buffered) {
		limit = len(buffered)
	}

	history := make([]watch.InboundMessage, 0, limit)
	for position := len(buffered) - 1; position >= len(buffered)-limit; position-- {
		history = append(history, buffered[position])
	}
	return history, nil
}
