// Package command 实现操作者命令面
// 文本解析与回执在这里完成;鉴权与状态变更全部委托给 rules 包
// 外层只需把命令文本和调用者 ID 交给 Handle,并把非空回执发回去
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"watch-gateway/internal/rules"
	"watch-gateway/internal/watch"
)

// ==================== 常量定义 ====================

const (
	wildcardArgument = "*"

	// 命令用法提示
	usageWatch   = "用法：/watch 群ID|* 用户ID|* 关键词|*\n* 表示匹配所有"
	usageUnwatch = "用法：/unwatch 序号 或 /unwatch 群ID|* 用户ID|*"
	usageNotify  = "用法：/notify add|del|list|clear [目标ID]"
	usageAdmin   = "用法：/admin add|del|list [用户ID]"

	// 参数校验提示
	replyBadGroupID  = "群ID 必须是数字或 *"
	replyBadUserID   = "用户ID 必须是数字或 *"
	replyBadTargetID = "目标ID 必须是数字。"
	replyBadAdminID  = "用户ID 必须是数字"
	replyNoKeyword   = "请提供至少一个关键词或 *"
)

// Handler 命令处理器
// 返回空字符串表示不回执(未授权调用者被静默忽略)
type Handler struct {
	rules  *rules.Store
	admins *rules.AdminSet
}

// NewHandler 创建命令处理器
func NewHandler(ruleStore *rules.Store, adminSet *rules.AdminSet) *Handler {
	return &Handler{
		rules:  ruleStore,
		admins: adminSet,
	}
}

// Handle 解析并执行一条操作者命令
func (handler *Handler) Handle(callerID int64, text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	commandName := strings.TrimPrefix(fields[0], "/")
	// 群内命令可能带 @botname 后缀
	if at := strings.IndexByte(commandName, '@'); at >= 0 {
		commandName = commandName[:at]
	}

	switch commandName {
	case "watch":
		return handler.handleWatch(callerID, fields)
	case "unwatch":
		return handler.handleUnwatch(callerID, fields)
	case "list":
		return handler.handleList(callerID)
	case "notify":
		return handler.handleNotify(callerID, fields)
	case "admin":
		return handler.handleAdmin(callerID, fields)
	case "help":
		return handler.handleHelp(callerID)
	default:
		return ""
	}
}

// ==================== watch / unwatch / list ====================

// handleWatch /watch 群ID|* 用户ID|* 关键词|*
func (handler *Handler) handleWatch(callerID int64, fields []string) string {
	if !handler.admins.IsAdmin(callerID) {
		return ""
	}
	if len(fields) < 4 {
		return usageWatch
	}

	groupID, ok := parseScopeArgument(fields[1])
	if !ok {
		return replyBadGroupID
	}
	userID, ok := parseScopeArgument(fields[2])
	if !ok {
		return replyBadUserID
	}

	var keywords []string
	if fields[3] == wildcardArgument {
		keywords = []string{watch.SentinelKeyword}
	} else {
		keywords = fields[3:]
	}

	err := handler.rules.AddRule(callerID, groupID, userID, keywords)
	switch {
	case errors.Is(err, watch.ErrRuleExists):
		return "规则已存在，无需重复添加。"
	case errors.Is(err, watch.ErrNoKeyword), errors.Is(err, watch.ErrSentinelMixed):
		return replyNoKeyword
	case err != nil:
		return fmt.Sprintf("添加规则失败：%v", err)
	}
	return "已添加监听规则。"
}

// handleUnwatch 单参数为 1 基序号删除,双参数为作用域批量删除
func (handler *Handler) handleUnwatch(callerID int64, fields []string) string {
	if !handler.admins.IsAdmin(callerID) {
		return ""
	}

	switch len(fields) {
	case 2:
		return handler.unwatchByIndex(callerID, fields[1])
	case 3:
		return handler.unwatchByScope(callerID, fields[1], fields[2])
	default:
		return usageUnwatch
	}
}

func (handler *Handler) unwatchByIndex(callerID int64, argument string) string {
	index, err := strconv.Atoi(argument)
	if err != nil {
		return usageUnwatch
	}

	removed, err := handler.rules.RemoveRuleByIndex(callerID, index)
	switch {
	case errors.Is(err, watch.ErrRuleIndexRange):
		return "序号超出范围。"
	case err != nil:
		return fmt.Sprintf("删除规则失败：%v", err)
	}
	return fmt.Sprintf("已删除规则：%s", describeRule(removed))
}

func (handler *Handler) unwatchByScope(callerID int64, groupArgument, userArgument string) string {
	groupID, ok := parseScopeArgument(groupArgument)
	if !ok {
		return replyBadGroupID
	}
	userID, ok := parseScopeArgument(userArgument)
	if !ok {
		return replyBadUserID
	}

	removed, err := handler.rules.RemoveRulesByScope(callerID, groupID, userID)
	if err != nil {
		return fmt.Sprintf("删除规则失败：%v", err)
	}
	if removed == 0 {
		return "未找到匹配规则。"
	}
	return fmt.Sprintf("已删除 %d 条规则。", removed)
}

// handleList 展示规则与通知目标,序号即 unwatch 使用的序号
func (handler *Handler) handleList(callerID int64) string {
	if !handler.admins.IsAdmin(callerID) {
		return ""
	}

	listed := handler.rules.ListRules(callerID)
	targets := handler.rules.ListNotifyTargets(callerID)

	if len(listed) == 0 {
		return "当前没有任何规则。"
	}

	lines := []string{"当前规则："}
	for position, rule := range listed {
		lines = append(lines, fmt.Sprintf("%d. %s", position+1, describeRule(rule)))
	}
	if len(targets) == 0 {
		lines = append(lines, "通知目标：未设置（默认发送给你）")
	} else {
		lines = append(lines, fmt.Sprintf("通知目标：%s", joinIDs(targets)))
	}
	return strings.Join(lines, "\n")
}

// ==================== notify ====================

// handleNotify /notify add|del|list|clear [目标ID]
func (handler *Handler) handleNotify(callerID int64, fields []string) string {
	if !handler.admins.IsAdmin(callerID) {
		return ""
	}
	if len(fields) < 2 {
		return usageNotify
	}

	action := strings.ToLower(fields[1])
	switch action {
	case "list":
		targets := handler.rules.ListNotifyTargets(callerID)
		if len(targets) == 0 {
			return "通知目标：未设置（默认发送给你）"
		}
		return fmt.Sprintf("通知目标：%s", joinIDs(targets))
	case "clear":
		if err := handler.rules.ClearNotifyTargets(callerID); err != nil {
			return fmt.Sprintf("清空通知目标失败：%v", err)
		}
		return "已清空通知目标。"
	case "add", "del":
		// 继续往下取目标ID
	default:
		return usageNotify
	}

	if len(fields) < 3 {
		return usageNotify
	}
	targetID, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return replyBadTargetID
	}

	if action == "add" {
		err := handler.rules.AddNotifyTarget(callerID, targetID)
		switch {
		case errors.Is(err, watch.ErrTargetExists):
			return "该目标已存在。"
		case err != nil:
			return fmt.Sprintf("添加通知目标失败：%v", err)
		}
		return fmt.Sprintf("已添加通知目标：%d", targetID)
	}

	err = handler.rules.RemoveNotifyTarget(callerID, targetID)
	switch {
	case errors.Is(err, watch.ErrTargetNotFound):
		return "未找到该通知目标。"
	case err != nil:
		return fmt.Sprintf("删除通知目标失败：%v", err)
	}
	return fmt.Sprintf("已删除通知目标：%d", targetID)
}

// ==================== admin ====================

// handleAdmin /admin add|del|list [用户ID],仅超级管理员可用
func (handler *Handler) handleAdmin(callerID int64, fields []string) string {
	if !handler.admins.IsSuperAdmin(callerID) {
		return ""
	}
	if len(fields) < 2 {
		return usageAdmin
	}

	action := strings.ToLower(fields[1])
	if action == "list" {
		return handler.renderAdminList()
	}

	if len(fields) < 3 {
		return "请提供用户ID"
	}
	adminID, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return replyBadAdminID
	}

	switch action {
	case "add":
		err := handler.admins.AddAdmin(adminID)
		switch {
		case errors.Is(err, watch.ErrSuperAdmin):
			return "该用户已是超级管理员"
		case errors.Is(err, watch.ErrAdminExists):
			return "该用户已是管理员"
		case err != nil:
			return fmt.Sprintf("添加管理员失败：%v", err)
		}
		return fmt.Sprintf("✅ 已添加管理员：%d", adminID)
	case "del":
		err := handler.admins.RemoveAdmin(adminID)
		switch {
		case errors.Is(err, watch.ErrSuperAdmin):
			return "无法删除超级管理员"
		case errors.Is(err, watch.ErrAdminNotFound):
			return "该用户不是管理员"
		case err != nil:
			return fmt.Sprintf("删除管理员失败：%v", err)
		}
		return fmt.Sprintf("✅ 已删除管理员：%d", adminID)
	default:
		return "未知操作，请使用 add/del/list"
	}
}

func (handler *Handler) renderAdminList() string {
	superAdmins, dynamicAdmins := handler.admins.ListAdmins()

	lines := []string{"👑 超级管理员："}
	lines = append(lines, renderAdminIDs(superAdmins)...)
	lines = append(lines, "👤 普通管理员：")
	lines = append(lines, renderAdminIDs(dynamicAdmins)...)
	return strings.Join(lines, "\n")
}

func renderAdminIDs(adminIDs []int64) []string {
	if len(adminIDs) == 0 {
		return []string{"  （无）"}
	}
	lines := make([]string, 0, len(adminIDs))
	for _, adminID := range adminIDs {
		lines = append(lines, fmt.Sprintf("  • %d", adminID))
	}
	return lines
}

// ==================== help ====================

// handleHelp 返回操作手册
func (handler *Handler) handleHelp(callerID int64) string {
	if !handler.admins.IsAdmin(callerID) {
		return ""
	}

	return `📖 使用帮助

🔍 监听管理：
/watch 群ID|* 用户ID|* 关键词|*
  添加监听规则（* 表示匹配所有）
/unwatch 序号
  按 /list 中的序号删除单条规则
/unwatch 群ID|* 用户ID|*
  按作用域批量删除规则
/list
  查看所有规则

📌 示例：
/watch * 123456 * - 监控用户在所有群的所有消息
/watch -100123 * 出售 - 监控某群所有人说"出售"
/watch -100123 123456 三折 - 精确监控

🔔 通知设置：
/notify add 目标ID - 添加通知目标（群/用户ID）
/notify del 目标ID - 删除通知目标
/notify list - 查看通知目标
/notify clear - 清空通知目标（恢复默认发送给你）

👑 管理员（仅超管）：
/admin add 用户ID - 添加管理员
/admin del 用户ID - 删除管理员
/admin list - 查看管理员列表

💡 提示：
• 群ID 通常是负数，如 -1001234567
• 用户ID 可通过 @userinfobot 获取
• 关键词中的 * 匹配任意字符，如 a*c`
}

// ==================== 辅助函数 ====================

// parseScopeArgument 解析作用域参数,* 表示任意(返回 nil)
func parseScopeArgument(argument string) (*int64, bool) {
	if argument == wildcardArgument {
		return nil, true
	}
	value, err := strconv.ParseInt(argument, 10, 64)
	if err != nil {
		return nil, false
	}
	return &value, true
}

// describeRule 渲染单条规则的展示形式
func describeRule(rule watch.Rule) string {
	groupLabel := wildcardArgument
	if rule.GroupID != nil {
		groupLabel = strconv.FormatInt(*rule.GroupID, 10)
	}
	userLabel := wildcardArgument
	if rule.UserID != nil {
		userLabel = strconv.FormatInt(*rule.UserID, 10)
	}

	keywordLabel := wildcardArgument
	if !rule.IsSentinel() {
		keywordLabel = strings.Join(rule.Keywords, "、")
	}
	return fmt.Sprintf("群=%s 用户=%s 关键词=%s", groupLabel, userLabel, keywordLabel)
}

func joinIDs(ids []int64) string {
	labels := make([]string, 0, len(ids))
	for _, id := range ids {
		labels = append(labels, strconv.FormatInt(id, 10))
	}
	return strings.Join(labels, "、")
}
