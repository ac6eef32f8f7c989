package rules

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"watch-gateway/internal/watch"
)

// ==================== 常量定义 ====================

const (
	tempFileSuffix = ".tmp"
	filePermission = 0o644
	dirPermission  = 0o755
)

// ==================== 持久化文档结构 ====================

// rulesDocument 规则文件的顶层结构
// 显式结构体替代动态 JSON,加载时校验失败整体降级为空状态
type rulesDocument struct {
	Users map[string]bucketDocument `json:"users"`
}

// bucketDocument 单个配置者桶的持久化形式
// notify_target 为旧版单目标字段,读取时迁移进 notifyTargets
type bucketDocument struct {
	NotifyTargets      []int64      `json:"notifyTargets"`
	LegacyNotifyTarget *int64       `json:"notify_target,omitempty"`
	Rules              []watch.Rule `json:"rules"`
}

// ==================== 加载 ====================

// loadFromDisk 从磁盘恢复规则状态
// 缺失、为空、结构非法的文件一律按空存储处理,只记录日志,不中断启动
func (store *Store) loadFromDisk() {
	raw, err := os.ReadFile(store.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[RuleStore] 读取规则文件失败,以空状态启动: %v", err)
		}
		return
	}
	if len(raw) == 0 {
		return
	}

	var document rulesDocument
	if err := json.Unmarshal(raw, &document); err != nil {
		log.Printf("[RuleStore] 规则文件结构非法,以空状态启动: %v", err)
		return
	}

	for ownerKey, bucketDoc := range document.Users {
		ownerID, err := strconv.ParseInt(ownerKey, 10, 64)
		if err != nil {
			log.Printf("[RuleStore] 跳过非法的配置者键: %q", ownerKey)
			continue
		}
		store.users[ownerID] = restoreBucket(bucketDoc)
	}

	log.Printf("[RuleStore] 已加载 %d 个配置者的规则", len(store.users))
}

// restoreBucket 将持久化形式还原为内存桶
// 归一化在写入时已经完成,这里仅做旧字段迁移和去重兜底
func restoreBucket(document bucketDocument) *watch.OwnerBucket {
	bucket := &watch.OwnerBucket{}

	seen := make(map[int64]struct{})
	for _, target := range document.NotifyTargets {
		if _, duplicate := seen[target]; duplicate {
			continue
		}
		seen[target] = struct{}{}
		bucket.NotifyTargets = append(bucket.NotifyTargets, target)
	}
	if document.LegacyNotifyTarget != nil {
		if _, duplicate := seen[*document.LegacyNotifyTarget]; !duplicate {
			bucket.NotifyTargets = append(bucket.NotifyTargets, *document.LegacyNotifyTarget)
		}
	}

	for _, rule := range document.Rules {
		if len(rule.Keywords) == 0 {
			continue
		}
		bucket.Rules = append(bucket.Rules, rule.Clone())
	}
	return bucket
}

// ==================== 保存 ====================

// persistLocked 将当前状态同步写入磁盘,调用方必须持有 store.mu
// 先写同目录临时文件再原子改名,崩溃时旧文件保持完整
func (store *Store) persistLocked() error {
	document := rulesDocument{Users: make(map[string]bucketDocument, len(store.users))}
	for ownerID, bucket := range store.users {
		document.Users[strconv.FormatInt(ownerID, 10)] = bucketDocument{
			NotifyTargets: bucket.NotifyTargets,
			Rules:         bucket.Rules,
		}
	}

	payload, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化规则失败: %w", err)
	}
	return atomicWrite(store.path, payload)
}

// atomicWrite 原子替换目标文件
// 写入同目录的 .tmp 临时文件后 rename,读取方永远看不到半写状态
func atomicWrite(path string, payload []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, dirPermission); err != nil {
			return fmt.Errorf("创建数据目录失败: %w", err)
		}
	}

	tempPath := path + tempFileSuffix
	if err := os.WriteFile(tempPath, payload, filePermission); err != nil {
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("替换规则文件失败: %w", err)
	}
	return nil
}
