package rules

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"

	"watch-gateway/internal/watch"
)

// AdminSet 两级管理员集合
// 超级管理员来自进程配置,只读;动态管理员单独持久化
// 不变式:超级管理员永远不会出现在动态列表中,也无法从动态列表删除
type AdminSet struct {
	mu      sync.Mutex
	path    string
	super   map[int64]struct{}
	supers  []int64 // 保持配置顺序,用于展示
	dynamic []int64
}

// adminsDocument 动态管理员文件结构
type adminsDocument struct {
	Admins []int64 `json:"admins"`
}

// NewAdminSet 创建管理员集合并加载动态层
// 文件缺失或损坏时动态层为空,不影响启动
func NewAdminSet(path string, superAdmins []int64) *AdminSet {
	set := &AdminSet{
		path:  path,
		super: make(map[int64]struct{}, len(superAdmins)),
	}
	for _, adminID := range superAdmins {
		if _, duplicate := set.super[adminID]; duplicate {
			continue
		}
		set.super[adminID] = struct{}{}
		set.supers = append(set.supers, adminID)
	}
	set.loadFromDisk()
	return set
}

// loadFromDisk 加载动态管理员,过滤掉混入的超级管理员
func (set *AdminSet) loadFromDisk() {
	raw, err := os.ReadFile(set.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[AdminSet] 读取管理员文件失败,动态层置空: %v", err)
		}
		return
	}
	if len(raw) == 0 {
		return
	}

	var document adminsDocument
	if err := json.Unmarshal(raw, &document); err != nil {
		log.Printf("[AdminSet] 管理员文件结构非法,动态层置空: %v", err)
		return
	}

	seen := make(map[int64]struct{})
	for _, adminID := range document.Admins {
		if _, isSuper := set.super[adminID]; isSuper {
			continue
		}
		if _, duplicate := seen[adminID]; duplicate {
			continue
		}
		seen[adminID] = struct{}{}
		set.dynamic = append(set.dynamic, adminID)
	}
}

// IsAdmin 判断调用者是否有权执行操作命令
// 两级集合都为空时视为未配置,放行所有调用者(开放默认)
func (set *AdminSet) IsAdmin(callerID int64) bool {
	set.mu.Lock()
	defer set.mu.Unlock()

	if len(set.super) == 0 && len(set.dynamic) == 0 {
		return true
	}
	if _, isSuper := set.super[callerID]; isSuper {
		return true
	}
	for _, adminID := range set.dynamic {
		if adminID == callerID {
			return true
		}
	}
	return false
}

// IsSuperAdmin 判断是否为超级管理员
func (set *AdminSet) IsSuperAdmin(callerID int64) bool {
	_, isSuper := set.super[callerID]
	return isSuper
}

// AddAdmin 向动态层追加管理员
func (set *AdminSet) AddAdmin(adminID int64) error {
	set.mu.Lock()
	defer set.mu.Unlock()

	if _, isSuper := set.super[adminID]; isSuper {
		return watch.ErrSuperAdmin
	}
	for _, existing := range set.dynamic {
		if existing == adminID {
			return watch.ErrAdminExists
		}
	}

	set.dynamic = append(set.dynamic, adminID)
	if err := set.persistLocked(); err != nil {
		// 落盘失败时回滚内存变更,保持内存与磁盘一致
		set.dynamic = set.dynamic[:len(set.dynamic)-1]
		return err
	}
	return nil
}

// RemoveAdmin 从动态层删除管理员,超级管理员不可删除
func (set *AdminSet) RemoveAdmin(adminID int64) error {
	set.mu.Lock()
	defer set.mu.Unlock()

	if _, isSuper := set.super[adminID]; isSuper {
		return watch.ErrSuperAdmin
	}
	for position, existing := range set.dynamic {
		if existing != adminID {
			continue
		}

		previous := set.dynamic
		updated := make([]int64, 0, len(previous)-1)
		updated = append(updated, previous[:position]...)
		updated = append(updated, previous[position+1:]...)
		set.dynamic = updated

		if err := set.persistLocked(); err != nil {
			set.dynamic = previous
			return err
		}
		return nil
	}
	return watch.ErrAdminNotFound
}

// ListAdmins 返回两级管理员的有序副本
func (set *AdminSet) ListAdmins() (superAdmins, dynamicAdmins []int64) {
	set.mu.Lock()
	defer set.mu.Unlock()

	return append([]int64(nil), set.supers...), append([]int64(nil), set.dynamic...)
}

// persistLocked 同步落盘动态层,调用方必须持有 set.mu
func (set *AdminSet) persistLocked() error {
	payload, err := json.MarshalIndent(adminsDocument{Admins: set.dynamic}, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化管理员失败: %w", err)
	}
	return atomicWrite(set.path, payload)
}
