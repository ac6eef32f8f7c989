// Package recorder 保存已投递通知的记录,供检查接口查询
package recorder

import (
	"context"
	"sync"
	"time"
)

// ==================== 常量定义 ====================

const (
	// 记录状态常量
	StatusSuccess = "success"
	StatusFailed  = "failed"

	defaultMaxKeep = 1000
)

// Record 单次通知投递的记录
// 一条被命中的消息对每个通知目标各产生一条记录
type Record struct {
	Key       string   `json:"key"`
	OwnerID   int64    `json:"owner_id"`
	TargetID  int64    `json:"target_id"`
	ChatID    int64    `json:"chat_id"`
	MessageID int64    `json:"message_id"`
	Keywords  []string `json:"keywords"`
	Text      string   `json:"text"`
	Status    string   `json:"status"`
	Error     string   `json:"error,omitempty"`
	CreatedAt int64    `json:"created_at"`
}

// Store 通知记录存储接口
type Store interface {
	SaveRecord(ctx context.Context, record Record) error
	QueryRecords(ctx context.Context, limit int64) ([]Record, error)
	Trim(ctx context.Context) (int, error)
}

// ==================== 内存实现 ====================

// MemoryStore 进程内的有界记录存储
// 超出上限时淘汰最旧记录,查询返回从新到旧的副本
type MemoryStore struct {
	mu           sync.Mutex
	records      []Record
	maxKeep      int64
	timeProvider func() time.Time
}

// NewMemoryStore 创建内存记录存储
func NewMemoryStore(maxKeep int64) *MemoryStore {
	if maxKeep <= 0 {
		maxKeep = defaultMaxKeep
	}
	return &MemoryStore{
		maxKeep:      maxKeep,
		timeProvider: time.Now,
	}
}

// SetTimeProvider 设置时间提供函数（主要用于测试）
func (store *MemoryStore) SetTimeProvider(provider func() time.Time) {
	store.timeProvider = provider
}

// SaveRecord 追加一条记录并裁剪到上限
func (store *MemoryStore) SaveRecord(_ context.Context, record Record) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if record.CreatedAt == 0 {
		record.CreatedAt = store.timeProvider().Unix()
	}
	store.records = append(store.records, record)
	if excess := int64(len(store.records)) - store.maxKeep; excess > 0 {
		store.records = store.records[excess:]
	}
	return nil
}

// QueryRecords 返回最近的记录,从新到旧
func (store *MemoryStore) QueryRecords(_ context.Context, limit int64) ([]Record, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	if limit <= 0 || limit > int64(len(store.records)) {
		limit = int64(len(store.records))
	}

	queried := make([]Record, 0, limit)
	for position := len(store.records) - 1; position >= len(store.records)-int(limit); position-- {
		queried = append(queried, store.records[position])
	}
	return queried, nil
}

// Trim 内存实现写入时已裁剪,这里恒为空操作
func (store *MemoryStore) Trim(_ context.Context) (int, error) {
	return 0, nil
}
