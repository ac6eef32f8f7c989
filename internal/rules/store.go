// Package rules 维护 配置者 → {通知目标, 监听规则} 的权威映射
// 所有变更在单一互斥锁内完成,并在返回前同步落盘(临时文件 + 原子改名)
package rules

import (
	"strings"
	"sync"

	"watch-gateway/internal/watch"
)

// Store 规则存储
// 内存为权威状态,文件仅做持久化备份;加载失败降级为空存储,绝不阻止启动
type Store struct {
	mu    sync.Mutex
	users map[int64]*watch.OwnerBucket
	path  string
}

// NewStore 创建规则存储并尝试从磁盘恢复
// 文件缺失、为空或结构非法时以空状态启动(fail-soft)
func NewStore(path string) *Store {
	store := &Store{
		users: make(map[int64]*watch.OwnerBucket),
		path:  path,
	}
	store.loadFromDisk()
	return store
}

// ==================== 规则操作 ====================

// AddRule 为配置者追加一条监听规则
// 关键词先归一化(去首尾空白、丢弃空串、按小写去重、保持首见顺序)再查重
// 与既有规则 (groupScope, senderScope, keywords) 完全相同时拒绝,不做静默合并
func (store *Store) AddRule(ownerID int64, groupID, userID *int64, keywords []string) error {
	normalized, err := NormalizeKeywords(keywords)
	if err != nil {
		return err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	bucket := store.bucketLocked(ownerID)
	for _, existing := range bucket.Rules {
		if sameScope(existing.GroupID, groupID) &&
			sameScope(existing.UserID, userID) &&
			sameKeywords(existing.Keywords, normalized) {
			return watch.ErrRuleExists
		}
	}

	rule := watch.Rule{Keywords: normalized}
	if groupID != nil {
		value := *groupID
		rule.GroupID = &value
	}
	if userID != nil {
		value := *userID
		rule.UserID = &value
	}

	bucket.Rules = append(bucket.Rules, rule)
	if err := store.persistLocked(); err != nil {
		// 落盘失败时回滚内存变更,保持内存与磁盘一致
		bucket.Rules = bucket.Rules[:len(bucket.Rules)-1]
		return err
	}
	return nil
}

// RemoveRuleByIndex 按 1 基序号删除规则并返回被删规则用于回执
// 序号对应 ListRules 最近一次展示的顺序
func (store *Store) RemoveRuleByIndex(ownerID int64, index int) (watch.Rule, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	bucket := store.bucketLocked(ownerID)
	if index < 1 || index > len(bucket.Rules) {
		return watch.Rule{}, watch.ErrRuleIndexRange
	}

	removed := bucket.Rules[index-1]
	previous := bucket.Rules
	updated := make([]watch.Rule, 0, len(previous)-1)
	updated = append(updated, previous[:index-1]...)
	updated = append(updated, previous[index:]...)
	bucket.Rules = updated

	if err := store.persistLocked(); err != nil {
		bucket.Rules = previous
		return watch.Rule{}, err
	}
	return removed, nil
}

// RemoveRulesByScope 按作用域批量删除规则,返回删除数量
// groupID/userID 为 nil 时表示该维度不过滤(对应命令里的 *)
func (store *Store) RemoveRulesByScope(ownerID int64, groupID, userID *int64) (int, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	bucket := store.bucketLocked(ownerID)
	previous := bucket.Rules
	kept := make([]watch.Rule, 0, len(previous))
	for _, rule := range previous {
		if scopeCovers(groupID, rule.GroupID) && scopeCovers(userID, rule.UserID) {
			continue
		}
		kept = append(kept, rule)
	}

	removed := len(previous) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	bucket.Rules = kept

	if err := store.persistLocked(); err != nil {
		bucket.Rules = previous
		return 0, err
	}
	return removed, nil
}

// ListRules 返回配置者规则的有序副本
func (store *Store) ListRules(ownerID int64) []watch.Rule {
	store.mu.Lock()
	defer store.mu.Unlock()

	bucket := store.bucketLocked(ownerID)
	listed := make([]watch.Rule, 0, len(bucket.Rules))
	for _, rule := range bucket.Rules {
		listed = append(listed, rule.Clone())
	}
	return listed
}

// ==================== 通知目标操作 ====================

// AddNotifyTarget 追加通知目标,保持插入顺序且不允许重复
func (store *Store) AddNotifyTarget(ownerID, targetID int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	bucket := store.bucketLocked(ownerID)
	for _, existing := range bucket.NotifyTargets {
		if existing == targetID {
			return watch.ErrTargetExists
		}
	}

	bucket.NotifyTargets = append(bucket.NotifyTargets, targetID)
	if err := store.persistLocked(); err != nil {
		bucket.NotifyTargets = bucket.NotifyTargets[:len(bucket.NotifyTargets)-1]
		return err
	}
	return nil
}

// RemoveNotifyTarget 删除指定通知目标
func (store *Store) RemoveNotifyTarget(ownerID, targetID int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	bucket := store.bucketLocked(ownerID)
	for position, existing := range bucket.NotifyTargets {
		if existing != targetID {
			continue
		}

		previous := bucket.NotifyTargets
		updated := make([]int64, 0, len(previous)-1)
		updated = append(updated, previous[:position]...)
		updated = append(updated, previous[position+1:]...)
		bucket.NotifyTargets = updated

		if err := store.persistLocked(); err != nil {
			bucket.NotifyTargets = previous
			return err
		}
		return nil
	}
	return watch.ErrTargetNotFound
}

// ClearNotifyTargets 清空通知目标,此后匹配通知回落到配置者本人
func (store *Store) ClearNotifyTargets(ownerID int64) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	bucket := store.bucketLocked(ownerID)
	previous := bucket.NotifyTargets
	bucket.NotifyTargets = nil
	if err := store.persistLocked(); err != nil {
		bucket.NotifyTargets = previous
		return err
	}
	return nil
}

// ListNotifyTargets 返回通知目标的有序副本
func (store *Store) ListNotifyTargets(ownerID int64) []int64 {
	store.mu.Lock()
	defer store.mu.Unlock()

	bucket := store.bucketLocked(ownerID)
	return append([]int64(nil), bucket.NotifyTargets...)
}

// ==================== 快照 ====================

// Snapshot 返回全量映射的不可变深拷贝
// 临界区只覆盖拷贝本身,匹配与投递在锁外进行
func (store *Store) Snapshot() watch.Snapshot {
	store.mu.Lock()
	defer store.mu.Unlock()

	snapshot := make(watch.Snapshot, len(store.users))
	for ownerID, bucket := range store.users {
		snapshot[ownerID] = bucket.Clone()
	}
	return snapshot
}

// WatchedChats 返回所有规则中具体 groupScope 的并集,供轮询生产者使用
// 作用域为空的规则不会把轮询范围扩大到"账号所在的全部会话"
func (store *Store) WatchedChats() []int64 {
	store.mu.Lock()
	defer store.mu.Unlock()

	seen := make(map[int64]struct{})
	var chats []int64
	for _, bucket := range store.users {
		for _, rule := range bucket.Rules {
			if rule.GroupID == nil {
				continue
			}
			if _, exists := seen[*rule.GroupID]; exists {
				continue
			}
			seen[*rule.GroupID] = struct{}{}
			chats = append(chats, *rule.GroupID)
		}
	}
	return chats
}

// ==================== 私有方法 ====================

// bucketLocked 取出配置者的规则桶,不存在时惰性创建
// 创建后不会自动删除,空桶同样持久化
func (store *Store) bucketLocked(ownerID int64) *watch.OwnerBucket {
	bucket, exists := store.users[ownerID]
	if !exists {
		bucket = &watch.OwnerBucket{}
		store.users[ownerID] = bucket
	}
	return bucket
}

// NormalizeKeywords 归一化关键词序列
// 去首尾空白、丢弃空串、按小写形式去重并保持首见顺序
// 哨兵 * 只能单独出现,与字面关键词混用视为输入错误
func NormalizeKeywords(keywords []string) ([]string, error) {
	seen := make(map[string]struct{})
	normalized := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		lower := strings.ToLower(keyword)
		if _, duplicate := seen[lower]; duplicate {
			continue
		}
		seen[lower] = struct{}{}
		normalized = append(normalized, keyword)
	}

	if len(normalized) == 0 {
		return nil, watch.ErrNoKeyword
	}
	if len(normalized) > 1 {
		for _, keyword := range normalized {
			if keyword == watch.SentinelKeyword {
				return nil, watch.ErrSentinelMixed
			}
		}
	}
	return normalized, nil
}

// sameScope 比较两个可空作用域是否相等
func sameScope(left, right *int64) bool {
	if left == nil || right == nil {
		return left == nil && right == nil
	}
	return *left == *right
}

// scopeCovers 判断过滤条件是否覆盖规则的作用域(nil 条件覆盖一切)
func scopeCovers(filter, scope *int64) bool {
	if filter == nil {
		return true
	}
	return scope != nil && *scope == *filter
}

// sameKeywords 按小写形式逐项比较关键词序列
func sameKeywords(left, right []string) bool {
	if len(left) != len(right) {
		return false
	}
	for position := range left {
		if !strings.EqualFold(left[position], right[position]) {
			return false
		}
	}
	return true
}
