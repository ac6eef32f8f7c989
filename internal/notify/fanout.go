package notify

import (
	"context"
	"fmt"
	"log"
	"sort"

	"watch-gateway/internal/recorder"
	"watch-gateway/internal/watch"
)

// Fanout 通知分发器
// 每个命中的配置者渲染一份文本,按通知目标逐个独立投递
// 单个目标的失败只记录,不影响其余目标,也不影响后续消息
type Fanout struct {
	notifier watch.Notifier
	records  recorder.Store
}

// NewFanout 创建通知分发器
func NewFanout(notifier watch.Notifier, records recorder.Store) *Fanout {
	return &Fanout{
		notifier: notifier,
		records:  records,
	}
}

// Deliver 向配置者的全部通知目标投递命中通知
// 目标列表为空时回落到配置者本人;投递无重试,每目标至多一次
func (fanout *Fanout) Deliver(ctx context.Context, ownerID int64, hit *watch.OwnerHit, msg watch.InboundMessage) {
	text := Render(msg, hit)

	targets := hit.NotifyTargets
	if len(targets) == 0 {
		targets = []int64{ownerID}
	}

	for _, targetID := range targets {
		err := fanout.notifier.DeliverMessage(ctx, targetID, text)
		if err != nil {
			log.Printf("[Fanout] 通知投递失败: owner=%d target=%d err=%v", ownerID, targetID, err)
		}
		fanout.saveRecord(ctx, ownerID, targetID, hit, msg, text, err)
	}
}

// saveRecord 落记录,记录失败不影响投递结果
func (fanout *Fanout) saveRecord(
	ctx context.Context,
	ownerID int64,
	targetID int64,
	hit *watch.OwnerHit,
	msg watch.InboundMessage,
	text string,
	deliverErr error,
) {
	if fanout.records == nil {
		return
	}

	record := recorder.Record{
		Key:       fmt.Sprintf("%d_%d_%d", msg.ChatID, msg.MessageID, targetID),
		OwnerID:   ownerID,
		TargetID:  targetID,
		ChatID:    msg.ChatID,
		MessageID: msg.MessageID,
		Keywords:  sortedKeywords(hit.Keywords),
		Text:      text,
		Status:    recorder.StatusSuccess,
	}
	if deliverErr != nil {
		record.Status = recorder.StatusFailed
		record.Error = deliverErr.Error()
	}

	if err := fanout.records.SaveRecord(ctx, record); err != nil {
		log.Printf("[Fanout] 保存通知记录失败: %v", err)
		return
	}
	if _, err := fanout.records.Trim(ctx); err != nil {
		log.Printf("[Fanout] 裁剪通知记录失败: %v", err)
	}
}

func sortedKeywords(keywords map[string]struct{}) []string {
	sorted := make([]string, 0, len(keywords))
	for keyword := range keywords {
		sorted = append(sorted, keyword)
	}
	sort.Strings(sorted)
	return sorted
}
