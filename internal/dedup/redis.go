package dedup

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ==================== 常量定义 ====================

const (
	keySeparator          = ":"
	dedupPrefix           = "dedup"
	redisPlaceholderValue = "1"
)

// RedisChecker 基于 Redis 的准入检查器
// 利用 SETNX 的原子性在多实例部署下保证同一消息只被一个实例放行
// Redis 故障时放行消息并记录日志:重复通知优于静默丢弃
type RedisChecker struct {
	client    *redis.Client
	Namespace string // 命名空间,隔离不同服务的去重键
	ttl       time.Duration
}

// NewRedisChecker 创建 Redis 准入检查器实例
func NewRedisChecker(client *redis.Client, namespace string, ttl time.Duration) *RedisChecker {
	return &RedisChecker{
		client:    client,
		Namespace: namespace,
		ttl:       ttl,
	}
}

// Admit 检查并设置准入标记
func (checker *RedisChecker) Admit(ctx context.Context, chatID, messageID int64) bool {
	key := checker.buildDedupKey(chatID, messageID)

	isFirst, err := checker.client.SetNX(ctx, key, redisPlaceholderValue, checker.ttl).Result()
	if err != nil {
		log.Printf("[Dedup] Redis 准入检查失败,放行消息: %v", err)
		return true
	}
	return isFirst
}

// buildDedupKey 构建去重键
// 格式: {namespace}:dedup:{chatID}:{messageID}
func (checker *RedisChecker) buildDedupKey(chatID, messageID int64) string {
	parts := []string{
		checker.Namespace,
		dedupPrefix,
		fmt.Sprintf("%d", chatID),
		fmt.Sprintf("%d", messageID),
	}
	return strings.Join(parts, keySeparator)
}
