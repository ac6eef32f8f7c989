package telegram

import (
	"context"
	"log"
	"strings"

	"watch-gateway/internal/watch"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const updateTimeoutSeconds = 30

// MessageSink 实时消息的消费端(摄入协调器)
type MessageSink interface {
	OnMessage(ctx context.Context, msg watch.InboundMessage)
}

// CommandHandler 操作者命令的执行端
// 返回空字符串表示不回执
type CommandHandler interface {
	Handle(callerID int64, text string) string
}

// Source 实时推送生产者
// 消费 Bot API 的 update 流:命令交给命令处理器并回执,
// 普通消息写入历史缓存后推给摄入协调器
type Source struct {
	bot      *tgbotapi.BotAPI
	sink     MessageSink
	commands CommandHandler
	history  *HistoryCache
}

// NewSource 创建实时消息源
func NewSource(bot *tgbotapi.BotAPI, sink MessageSink, commands CommandHandler, history *HistoryCache) *Source {
	return &Source{
		bot:      bot,
		sink:     sink,
		commands: commands,
		history:  history,
	}
}

// Run 拉取并分发 update,直到 ctx 取消
// 单条消息的处理错误全部就地吸收,不会中断拉取循环
func (source *Source) Run(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = updateTimeoutSeconds

	updates := source.bot.GetUpdatesChan(updateConfig)
	log.Println("[Telegram] 实时消息源已启动")

	for {
		select {
		case <-ctx.Done():
			source.bot.StopReceivingUpdates()
			log.Println("[Telegram] 实时消息源已停止")
			return
		case update, ok := <-updates:
			if !ok {
				log.Println("[Telegram] update 通道已关闭")
				return
			}
			source.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate 处理单条 update
func (source *Source) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}

	if message.IsCommand() {
		source.handleCommand(message)
		return
	}

	inbound := convertMessage(message)
	if !inbound.Processable() {
		return
	}

	if source.history != nil {
		source.history.Remember(inbound)
	}
	source.sink.OnMessage(ctx, inbound)
}

// handleCommand 执行操作者命令并回执
func (source *Source) handleCommand(message *tgbotapi.Message) {
	reply := source.commands.Handle(message.From.ID, message.Text)
	if reply == "" {
		return
	}

	response := tgbotapi.NewMessage(message.Chat.ID, reply)
	response.ReplyToMessageID = message.MessageID
	if _, err := source.bot.Send(response); err != nil {
		log.Printf("[Telegram] 命令回执发送失败: %v", err)
	}
}

// convertMessage 把 Bot API 消息转换为核心的入站消息
// 正文取 text,为空时回退 caption(媒体消息)
func convertMessage(message *tgbotapi.Message) watch.InboundMessage {
	text := message.Text
	if text == "" {
		text = message.Caption
	}

	return watch.InboundMessage{
		ChatID:          message.Chat.ID,
		SenderID:        message.From.ID,
		MessageID:       int64(message.MessageID),
		Text:            strings.TrimSpace(text),
		ChatTitle:       message.Chat.Title,
		ChatUsername:    message.Chat.UserName,
		SenderFirstName: message.From.FirstName,
		SenderLastName:  message.From.LastName,
		SenderUsername:  message.From.UserName,
	}
}
