// Package ingest 把实时推送与定时回扫两个生产者汇聚到同一条消息管道
// 管道顺序固定:准入检查 → 规则快照 → 匹配 → 分发
package ingest

import (
	"context"
	"log"

	"watch-gateway/internal/dedup"
	"watch-gateway/internal/match"
	"watch-gateway/internal/notify"
	"watch-gateway/internal/rules"
	"watch-gateway/internal/watch"
)

// Pipeline 单条消息的处理管道
// 两个生产者调用同一入口,去重缓存是两路之间唯一的防重复边界
type Pipeline struct {
	rules  *rules.Store
	dedup  dedup.Checker
	fanout *notify.Fanout
}

// NewPipeline 创建消息处理管道
func NewPipeline(ruleStore *rules.Store, checker dedup.Checker, fanout *notify.Fanout) *Pipeline {
	return &Pipeline{
		rules:  ruleStore,
		dedup:  checker,
		fanout: fanout,
	}
}

// Process 处理单条入站消息
// 缺少发送者或正文的消息在准入前静默丢弃;重复消息被准入检查拦下
// 匹配与投递全程基于快照,不持有规则锁
func (pipeline *Pipeline) Process(ctx context.Context, msg watch.InboundMessage) {
	if !msg.Processable() {
		return
	}
	if !pipeline.dedup.Admit(ctx, msg.ChatID, msg.MessageID) {
		return
	}

	snapshot := pipeline.rules.Snapshot()
	matched := match.Match(snapshot, msg)
	if len(matched) == 0 {
		return
	}

	log.Printf("[Pipeline] 消息命中 %d 个配置者: chat=%d msg=%d", len(matched), msg.ChatID, msg.MessageID)
	for ownerID, hit := range matched {
		pipeline.fanout.Deliver(ctx, ownerID, hit, msg)
	}
}
