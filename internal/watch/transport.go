package watch

import "context"

// Notifier 出站通知接口
// 实现方负责真正的消息投递,失败通过 error 返回由上层记录
type Notifier interface {
	// DeliverMessage 向目标发送渲染后的通知文本
	// 任何失败都是非致命的,调用方记录后继续
	DeliverMessage(ctx context.Context, targetID int64, text string) error
}

// HistorySource 轮询路径的消息来源
// 返回指定会话最近的若干条消息,按从新到旧排列,由调用方反转后回放
type HistorySource interface {
	ChatHistory(ctx context.Context, chatID int64, limit int) ([]InboundMessage, error)
}
