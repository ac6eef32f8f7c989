package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watch-gateway/internal/dedup"
	"watch-gateway/internal/notify"
	"watch-gateway/internal/rules"
	"watch-gateway/internal/watch"
)

func int64Ptr(value int64) *int64 { return &value }

// ---- Notifier Mock ----

type captureNotifier struct {
	mu       sync.Mutex
	messages []string
	targets  []int64
}

func (notifier *captureNotifier) DeliverMessage(_ context.Context, targetID int64, text string) error {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	notifier.targets = append(notifier.targets, targetID)
	notifier.messages = append(notifier.messages, text)
	return nil
}

func (notifier *captureNotifier) deliveries() int {
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	return len(notifier.targets)
}

// ---- HistorySource Mock ----

type stubHistory struct {
	mu      sync.Mutex
	byChat  map[int64][]watch.InboundMessage // 从新到旧
	failFor map[int64]error
	calls   []int64
}

func (history *stubHistory) ChatHistory(_ context.Context, chatID int64, limit int) ([]watch.InboundMessage, error) {
	history.mu.Lock()
	defer history.mu.Unlock()

	history.calls = append(history.calls, chatID)
	if err, shouldFail := history.failFor[chatID]; shouldFail {
		return nil, err
	}

	messages := history.byChat[chatID]
	if limit > 0 && limit < len(messages) {
		messages = messages[:limit]
	}
	return messages, nil
}

// ---- 阻塞 Notifier Mock ----

// blockingNotifier 进入投递后阻塞,直到测试放行
type blockingNotifier struct {
	entered   chan struct{}
	release   chan struct{}
	delivered atomic.Int32
}

func (notifier *blockingNotifier) DeliverMessage(_ context.Context, _ int64, _ string) error {
	close(notifier.entered)
	<-notifier.release
	notifier.delivered.Add(1)
	return nil
}

func newTestPipeline(t *testing.T, notifier watch.Notifier) (*Pipeline, *rules.Store) {
	t.Helper()
	ruleStore := rules.NewStore(filepath.Join(t.TempDir(), "rules.json"))
	pipeline := NewPipeline(ruleStore, dedup.NewWindow(64), notify.NewFanout(notifier, nil))
	return pipeline, ruleStore
}

func promoMessage(messageID int64) watch.InboundMessage {
	return watch.InboundMessage{ChatID: -200, SenderID: 555, MessageID: messageID, Text: "Promo code"}
}

func TestPipelineEndToEndScenario(t *testing.T) {
	notifier := &captureNotifier{}
	pipeline, ruleStore := newTestPipeline(t, notifier)

	// watch * 555 promo
	require.NoError(t, ruleStore.AddRule(100, nil, int64Ptr(555), []string{"promo"}))

	pipeline.Process(context.Background(), promoMessage(9))

	require.Equal(t, 1, notifier.deliveries())
	// 无通知目标时发送给配置者本人
	assert.Equal(t, []int64{100}, notifier.targets)
	assert.Contains(t, notifier.messages[0], "关键词：promo")
}

func TestPipelineDropsUnprocessableMessages(t *testing.T) {
	notifier := &captureNotifier{}
	pipeline, ruleStore := newTestPipeline(t, notifier)
	require.NoError(t, ruleStore.AddRule(100, nil, nil, []string{"*"}))

	pipeline.Process(context.Background(), watch.InboundMessage{ChatID: -200, MessageID: 1, Text: "no sender"})
	pipeline.Process(context.Background(), watch.InboundMessage{ChatID: -200, SenderID: 5, MessageID: 2})

	assert.Zero(t, notifier.deliveries())
}

func TestPipelineDeduplicatesAcrossProducers(t *testing.T) {
	notifier := &captureNotifier{}
	pipeline, ruleStore := newTestPipeline(t, notifier)
	require.NoError(t, ruleStore.AddRule(100, nil, int64Ptr(555), []string{"promo"}))

	// 实时路径先处理
	pipeline.Process(context.Background(), promoMessage(9))
	// 回扫路径重放同一条消息(相同 chatId/messageId)不产生第二次通知
	pipeline.Process(context.Background(), promoMessage(9))

	assert.Equal(t, 1, notifier.deliveries())
}

func TestCoordinatorLifecycle(t *testing.T) {
	notifier := &captureNotifier{}
	pipeline, ruleStore := newTestPipeline(t, notifier)

	coordinator := NewCoordinator(pipeline, ruleStore, &stubHistory{}, time.Hour, 10)
	assert.Equal(t, StateStopped, coordinator.State())

	require.NoError(t, coordinator.Start())
	assert.Equal(t, StateRunning, coordinator.State())

	// 重复启动被拒绝
	assert.ErrorIs(t, coordinator.Start(), watch.ErrCoordinatorState)

	coordinator.Stop()
	assert.Equal(t, StateStopped, coordinator.State())

	// 停止后可以再次启动
	require.NoError(t, coordinator.Start())
	coordinator.Stop()
}

func TestCoordinatorDropsMessagesWhenNotRunning(t *testing.T) {
	notifier := &captureNotifier{}
	pipeline, ruleStore := newTestPipeline(t, notifier)
	require.NoError(t, ruleStore.AddRule(100, nil, nil, []string{"*"}))

	coordinator := NewCoordinator(pipeline, ruleStore, nil, time.Hour, 10)
	coordinator.OnMessage(context.Background(), promoMessage(1))
	assert.Zero(t, notifier.deliveries())

	require.NoError(t, coordinator.Start())
	coordinator.OnMessage(context.Background(), promoMessage(2))
	assert.Equal(t, 1, notifier.deliveries())
	coordinator.Stop()
}

func TestPollOnceReplaysOldestFirst(t *testing.T) {
	notifier := &captureNotifier{}
	pipeline, ruleStore := newTestPipeline(t, notifier)
	require.NoError(t, ruleStore.AddRule(100, int64Ptr(-200), nil, []string{"*"}))

	history := &stubHistory{byChat: map[int64][]watch.InboundMessage{
		-200: {
			{ChatID: -200, SenderID: 1, MessageID: 3, Text: "third"},
			{ChatID: -200, SenderID: 1, MessageID: 2, Text: "second"},
			{ChatID: -200, SenderID: 1, MessageID: 1, Text: "first"},
		},
	}}

	coordinator := NewCoordinator(pipeline, ruleStore, history, time.Hour, 10)
	coordinator.pollOnce(context.Background())

	require.Equal(t, 3, notifier.deliveries())
	// 从旧到新回放
	assert.Contains(t, notifier.messages[0], "first")
	assert.Contains(t, notifier.messages[1], "second")
	assert.Contains(t, notifier.messages[2], "third")
}

func TestPollOnceSkipsFailingChat(t *testing.T) {
	notifier := &captureNotifier{}
	pipeline, ruleStore := newTestPipeline(t, notifier)
	require.NoError(t, ruleStore.AddRule(100, int64Ptr(-200), nil, []string{"*"}))
	require.NoError(t, ruleStore.AddRule(100, int64Ptr(-300), nil, []string{"*"}))

	history := &stubHistory{
		byChat: map[int64][]watch.InboundMessage{
			-300: {{ChatID: -300, SenderID: 1, MessageID: 1, Text: "reachable"}},
		},
		failFor: map[int64]error{-200: errors.New("fetch failed")},
	}

	coordinator := NewCoordinator(pipeline, ruleStore, history, time.Hour, 10)
	coordinator.pollOnce(context.Background())

	// 单个会话失败只跳过该会话,其余会话照常
	assert.ElementsMatch(t, []int64{-200, -300}, history.calls)
	require.Equal(t, 1, notifier.deliveries())
	assert.Contains(t, notifier.messages[0], "reachable")
}

func TestPollOnceOnlyQueriesConcreteScopes(t *testing.T) {
	notifier := &captureNotifier{}
	pipeline, ruleStore := newTestPipeline(t, notifier)

	// 作用域为空的规则不触发任何轮询请求
	require.NoError(t, ruleStore.AddRule(100, nil, nil, []string{"*"}))

	history := &stubHistory{}
	coordinator := NewCoordinator(pipeline, ruleStore, history, time.Hour, 10)
	coordinator.pollOnce(context.Background())

	assert.Empty(t, history.calls)
}

func TestPollLoopTicksAndStops(t *testing.T) {
	notifier := &captureNotifier{}
	pipeline, ruleStore := newTestPipeline(t, notifier)
	require.NoError(t, ruleStore.AddRule(100, int64Ptr(-200), nil, []string{"*"}))

	history := &stubHistory{byChat: map[int64][]watch.InboundMessage{
		-200: {{ChatID: -200, SenderID: 1, MessageID: 1, Text: "tick"}},
	}}

	coordinator := NewCoordinator(pipeline, ruleStore, history, 10*time.Millisecond, 10)
	require.NoError(t, coordinator.Start())

	assert.Eventually(t, func() bool {
		return notifier.deliveries() >= 1
	}, time.Second, 5*time.Millisecond)

	coordinator.Stop()
	assert.Equal(t, StateStopped, coordinator.State())

	// 停止后不再产生轮询
	history.mu.Lock()
	callsAfterStop := len(history.calls)
	history.mu.Unlock()
	time.Sleep(30 * time.Millisecond)
	history.mu.Lock()
	defer history.mu.Unlock()
	assert.Equal(t, callsAfterStop, len(history.calls))
}

func TestStopWaitsForInflightLiveDelivery(t *testing.T) {
	notifier := &blockingNotifier{entered: make(chan struct{}), release: make(chan struct{})}
	pipeline, ruleStore := newTestPipeline(t, notifier)
	require.NoError(t, ruleStore.AddRule(100, nil, int64Ptr(555), []string{"promo"}))

	coordinator := NewCoordinator(pipeline, ruleStore, nil, time.Hour, 10)
	require.NoError(t, coordinator.Start())

	go coordinator.OnMessage(context.Background(), promoMessage(9))
	<-notifier.entered

	stopReturned := make(chan struct{})
	go func() {
		coordinator.Stop()
		close(stopReturned)
	}()

	// 投递尚未放行,Stop 必须保持阻塞
	select {
	case <-stopReturned:
		t.Fatal("Stop 在在途投递完成前返回")
	case <-time.After(50 * time.Millisecond):
	}

	close(notifier.release)

	select {
	case <-stopReturned:
	case <-time.After(time.Second):
		t.Fatal("Stop 未在投递完成后返回")
	}

	assert.Equal(t, StateStopped, coordinator.State())
	assert.Equal(t, int32(1), notifier.delivered.Load())
}
