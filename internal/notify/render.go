// Package notify 负责把匹配结果渲染成通知文本并分发到各通知目标
package notify

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"watch-gateway/internal/watch"
)

// ==================== 常量定义 ====================

const (
	// 哨兵命中时关键词的展示形式
	sentinelKeywordLabel = "全部"

	keywordJoinSeparator = "、"

	// 超级群 chatId 的内部编号偏移(-100 前缀)
	supergroupOffset = int64(-1000000000000)
)

// Render 渲染单个配置者的通知文本
// 布局沿用 群名/用户名/用户ID/关键词/消息内容 五行,可用时附带消息直达链接
func Render(msg watch.InboundMessage, hit *watch.OwnerHit) string {
	lines := []string{
		fmt.Sprintf("群名：%s", chatDisplayName(msg)),
		fmt.Sprintf("用户名：%s", senderDisplayName(msg)),
		fmt.Sprintf("用户ID：%d", msg.SenderID),
		fmt.Sprintf("关键词：%s", renderKeywords(hit.Keywords)),
		fmt.Sprintf("消息内容：%s", msg.Text),
	}
	if link := messageLink(msg); link != "" {
		lines = append(lines, fmt.Sprintf("链接：%s", link))
	}
	return strings.Join(lines, "\n")
}

// chatDisplayName 会话展示名:标题 > 用户名 > 原始 chatId
func chatDisplayName(msg watch.InboundMessage) string {
	if msg.ChatTitle != "" {
		return msg.ChatTitle
	}
	if msg.ChatUsername != "" {
		return msg.ChatUsername
	}
	return strconv.FormatInt(msg.ChatID, 10)
}

// senderDisplayName 发送者展示名
// 优先 "first last (@username)" 组合,全部缺失时回退原始 senderId
func senderDisplayName(msg watch.InboundMessage) string {
	displayName := strings.TrimSpace(msg.SenderFirstName)
	if msg.SenderLastName != "" {
		displayName = strings.TrimSpace(displayName + " " + msg.SenderLastName)
	}
	if msg.SenderUsername != "" {
		displayName = strings.TrimSpace(displayName + " (@" + msg.SenderUsername + ")")
	}
	if displayName == "" {
		return strconv.FormatInt(msg.SenderID, 10)
	}
	return displayName
}

// renderKeywords 渲染命中关键词集合
// 哨兵命中展示为"全部";普通命中按字典序稳定输出
func renderKeywords(keywords map[string]struct{}) string {
	if _, sentinel := keywords[watch.SentinelKeyword]; sentinel {
		return sentinelKeywordLabel
	}

	sorted := make([]string, 0, len(keywords))
	for keyword := range keywords {
		sorted = append(sorted, keyword)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, keywordJoinSeparator)
}

// messageLink 计算消息直达链接
// 公开会话用用户名;超级群用内部编号的 /c/ 形式;其余会话无可用链接
func messageLink(msg watch.InboundMessage) string {
	if msg.ChatUsername != "" {
		return fmt.Sprintf("https://t.me/%s/%d", msg.ChatUsername, msg.MessageID)
	}
	if msg.ChatID < supergroupOffset {
		internalID := -msg.ChatID + supergroupOffset
		return fmt.Sprintf("https://t.me/c/%d/%d", internalID, msg.MessageID)
	}
	return ""
}
