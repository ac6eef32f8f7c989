package dedup

import (
	"context"
	"sync"
)

// DefaultWindowSize 每个会话默认记忆的消息数
const DefaultWindowSize = 512

// Window 进程内的去重窗口
// 每个会话维护一条有界 FIFO 与一个成员集合:FIFO 决定淘汰顺序,
// 集合提供 O(1) 判重;淘汰时两个结构同步删除,不留幽灵条目
type Window struct {
	mu       sync.Mutex
	capacity int
	chats    map[int64]*chatWindow
}

type chatWindow struct {
	order []int64
	seen  map[int64]struct{}
}

// NewWindow 创建去重窗口,capacity 非正时回退到默认值
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{
		capacity: capacity,
		chats:    make(map[int64]*chatWindow),
	}
}

// Admit 检查并记录消息标识
// 保证是"最近 N 条去重",超出窗口后同一标识可能再次放行
func (window *Window) Admit(_ context.Context, chatID, messageID int64) bool {
	window.mu.Lock()
	defer window.mu.Unlock()

	chat, exists := window.chats[chatID]
	if !exists {
		chat = &chatWindow{seen: make(map[int64]struct{})}
		window.chats[chatID] = chat
	}

	if _, duplicate := chat.seen[messageID]; duplicate {
		return false
	}

	chat.order = append(chat.order, messageID)
	chat.seen[messageID] = struct{}{}

	if len(chat.order) > window.capacity {
		oldest := chat.order[0]
		chat.order = chat.order[1:]
		delete(chat.seen, oldest)
	}
	return true
}
