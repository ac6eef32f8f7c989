// Package telegram 基于 Bot API 实现传输层适配
// 对核心暴露的只有 watch 包定义的接口,换用 MTProto 客户端时核心无需改动
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier 出站通知实现
type Notifier struct {
	bot *tgbotapi.BotAPI
}

// NewNotifier 创建出站通知器
func NewNotifier(bot *tgbotapi.BotAPI) *Notifier {
	return &Notifier{bot: bot}
}

// DeliverMessage 投递一条通知文本
// Bot API 客户端自身带超时,失败直接返回由上层记录,无重试
func (notifier *Notifier) DeliverMessage(_ context.Context, targetID int64, text string) error {
	message := tgbotapi.NewMessage(targetID, text)
	if _, err := notifier.bot.Send(message); err != nil {
		return fmt.Errorf("发送消息失败: target=%d: %w", targetID, err)
	}
	return nil
}
