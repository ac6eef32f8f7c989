package watch

// InboundMessage 来自聊天传输层的入站消息
// chatId/senderId/messageId 为必备字段,其余为展示用的可选信息
type InboundMessage struct {
	ChatID    int64  `json:"chat_id"`
	SenderID  int64  `json:"sender_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"` // 文本或 caption

	ChatTitle    string `json:"chat_title,omitempty"`
	ChatUsername string `json:"chat_username,omitempty"`

	SenderFirstName string `json:"sender_first_name,omitempty"`
	SenderLastName  string `json:"sender_last_name,omitempty"`
	SenderUsername  string `json:"sender_username,omitempty"`
}

// Processable 判断消息是否达到进入管道的最低要求
// 缺少发送者或正文的消息在准入检查之前直接丢弃
func (msg InboundMessage) Processable() bool {
	return msg.SenderID != 0 && msg.Text != ""
}

// SentinelKeyword 规则级哨兵关键词,表示"匹配任意内容"
// 与关键词内部的 * 通配字符是两套独立机制,不可合并
const SentinelKeyword = "*"

// Rule 单条监听规则,归属于唯一的配置者
type Rule struct {
	GroupID  *int64   `json:"groupId"`  // nil 表示任意群
	UserID   *int64   `json:"userId"`   // nil 表示任意发送者
	Keywords []string `json:"keywords"` // 有序、按小写去重;["*"] 为哨兵
}

// IsSentinel 判断规则是否为"匹配任意内容"的哨兵规则
func (rule Rule) IsSentinel() bool {
	return len(rule.Keywords) == 1 && rule.Keywords[0] == SentinelKeyword
}

// Clone 深拷贝规则,避免快照与存储共享底层切片
func (rule Rule) Clone() Rule {
	cloned := Rule{
		Keywords: append([]string(nil), rule.Keywords...),
	}
	if rule.GroupID != nil {
		groupID := *rule.GroupID
		cloned.GroupID = &groupID
	}
	if rule.UserID != nil {
		userID := *rule.UserID
		cloned.UserID = &userID
	}
	return cloned
}

// OwnerBucket 单个配置者的规则桶
// 首次写入时惰性创建,之后即使清空也不会自动删除
type OwnerBucket struct {
	NotifyTargets []int64 `json:"notifyTargets"` // 有序去重;空表示通知配置者本人
	Rules         []Rule  `json:"rules"`
}

// Clone 深拷贝规则桶
func (bucket OwnerBucket) Clone() OwnerBucket {
	cloned := OwnerBucket{
		NotifyTargets: append([]int64(nil), bucket.NotifyTargets...),
		Rules:         make([]Rule, 0, len(bucket.Rules)),
	}
	for _, rule := range bucket.Rules {
		cloned.Rules = append(cloned.Rules, rule.Clone())
	}
	return cloned
}

// Snapshot 规则存储在某一时刻的只读深拷贝
// 匹配与投递全程不持锁,只依赖该副本
type Snapshot map[int64]OwnerBucket

// OwnerHit 单个配置者在一条消息上的命中结果
type OwnerHit struct {
	Keywords      map[string]struct{} // 命中的关键词集合(同一配置者跨规则取并集)
	NotifyTargets []int64
}
