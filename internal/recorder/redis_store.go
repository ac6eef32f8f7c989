package recorder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ==================== 常量定义 ====================

const (
	defaultQueryLimit = 50
	redisKeyFormat    = "%s:record:%s"
	redisTimesKey     = "%s:record:times"
	redisSeqKey       = "%s:record:seq"
)

// RedisStore Redis 记录存储实现
// 记录本体以 JSON 存在独立键,有序集合按序号维护时间线
type RedisStore struct {
	client         *redis.Client
	namespace      string
	maxKeepRecords int64
	ttl            time.Duration
	timeProvider   func() time.Time
}

// NewRedisStore 创建 Redis 记录存储实例
func NewRedisStore(client *redis.Client, namespace string, maxKeep int64, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client:         client,
		namespace:      namespace,
		maxKeepRecords: maxKeep,
		ttl:            ttl,
		timeProvider:   time.Now,
	}
}

// SetTimeProvider 设置时间提供函数（主要用于测试）
func (store *RedisStore) SetTimeProvider(provider func() time.Time) {
	store.timeProvider = provider
}

// ==================== Lua 脚本 ====================

var trimRecordsScript = redis.NewScript(`
local sortedSetKey = KEYS[1]
local maxKeepCount = tonumber(ARGV[1])
if maxKeepCount <= 0 then return 0 end

local totalCount = redis.call("ZCARD", sortedSetKey)
if totalCount <= maxKeepCount then return 0 end

local excessCount = totalCount - maxKeepCount
local oldRecordKeys = redis.call("ZRANGE", sortedSetKey, 0, excessCount - 1)

for i, recordKey in ipairs(oldRecordKeys) do
  redis.call("DEL", recordKey)
end

redis.call("ZREMRANGEBYRANK", sortedSetKey, 0, excessCount - 1)
return excessCount
`)

// ==================== 核心方法 ====================

// SaveRecord 保存通知记录到 Redis
func (store *RedisStore) SaveRecord(ctx context.Context, record Record) error {
	sequence, err := store.client.Incr(ctx, fmt.Sprintf(redisSeqKey, store.namespace)).Result()
	if err != nil {
		return fmt.Errorf("分配记录序号失败: %w", err)
	}

	if record.CreatedAt == 0 {
		record.CreatedAt = store.timeProvider().Unix()
	}
	if record.Key == "" {
		record.Key = fmt.Sprintf("%d", sequence)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化记录失败: %w", err)
	}

	recordKey := fmt.Sprintf(redisKeyFormat, store.namespace, record.Key)
	timelineKey := fmt.Sprintf(redisTimesKey, store.namespace)

	pipeline := store.client.Pipeline()
	pipeline.Set(ctx, recordKey, payload, store.ttl)
	pipeline.ZAdd(ctx, timelineKey, redis.Z{Score: float64(sequence), Member: recordKey})
	if _, err := pipeline.Exec(ctx); err != nil {
		return fmt.Errorf("写入记录失败: %w", err)
	}
	return nil
}

// QueryRecords 查询最近的记录,从新到旧
func (store *RedisStore) QueryRecords(ctx context.Context, limit int64) ([]Record, error) {
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	timelineKey := fmt.Sprintf(redisTimesKey, store.namespace)
	recordKeys, err := store.client.ZRevRange(ctx, timelineKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("查询记录索引失败: %w", err)
	}

	records := make([]Record, 0, len(recordKeys))
	for _, recordKey := range recordKeys {
		payload, err := store.client.Get(ctx, recordKey).Result()
		if err == redis.Nil {
			continue // 本体已过期,索引稍后由 Trim 收敛
		}
		if err != nil {
			return nil, fmt.Errorf("读取记录失败: %w", err)
		}

		var record Record
		if err := json.Unmarshal([]byte(payload), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// Trim 清理超出限制的旧记录
func (store *RedisStore) Trim(ctx context.Context) (int, error) {
	if store.maxKeepRecords <= 0 {
		return 0, nil
	}

	timelineKey := fmt.Sprintf(redisTimesKey, store.namespace)
	trimmed, err := trimRecordsScript.Run(ctx, store.client, []string{timelineKey}, store.maxKeepRecords).Int()
	if err != nil {
		return 0, fmt.Errorf("裁剪记录失败: %w", err)
	}
	return trimmed, nil
}
