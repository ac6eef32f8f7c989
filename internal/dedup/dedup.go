// Package dedup 提供多种消息准入检查实现
// 同一条物理消息可能经实时推送与定时回扫两次进入核心,准入检查保证恰好处理一次
package dedup

import "context"

// Checker 准入检查器接口
// 首次观察到 (chatID, messageID) 时返回 true 并记录;此后同一组合一律返回 false
type Checker interface {
	Admit(ctx context.Context, chatID, messageID int64) bool
}
