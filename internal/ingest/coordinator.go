package ingest

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"watch-gateway/internal/rules"
	"watch-gateway/internal/watch"
)

// ==================== 常量定义 ====================

// State 协调器生命周期状态
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
)

const (
	DefaultPollInterval     = 30 * time.Second
	DefaultPollHistoryLimit = 20
)

// String 返回状态的可读名称
func (state State) String() string {
	switch state {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ==================== 协调器 ====================

// Coordinator 摄入协调器
// 管理实时推送与定时回扫两个生产者的生命周期:
// Stopped → Starting → Running → Stopping → Stopped
type Coordinator struct {
	pipeline     *Pipeline
	ruleStore    *rules.Store
	history      watch.HistorySource
	pollInterval time.Duration
	historyLimit int

	state  atomic.Int32
	stopCh chan struct{}
	wg     sync.WaitGroup
	live   sync.RWMutex // 在途实时投递持读锁,Stop 持写锁等待其收尾
}

// NewCoordinator 创建摄入协调器
// history 为 nil 时只保留实时路径,轮询生产者不启动
func NewCoordinator(
	pipeline *Pipeline,
	ruleStore *rules.Store,
	history watch.HistorySource,
	pollInterval time.Duration,
	historyLimit int,
) *Coordinator {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if historyLimit <= 0 {
		historyLimit = DefaultPollHistoryLimit
	}
	return &Coordinator{
		pipeline:     pipeline,
		ruleStore:    ruleStore,
		history:      history,
		pollInterval: pollInterval,
		historyLimit: historyLimit,
	}
}

// State 返回当前生命周期状态
func (coordinator *Coordinator) State() State {
	return State(coordinator.state.Load())
}

// Start 启动协调器并拉起轮询生产者
// 只允许从 Stopped 启动,重复启动返回错误
func (coordinator *Coordinator) Start() error {
	if !coordinator.state.CompareAndSwap(int32(StateStopped), int32(StateStarting)) {
		return watch.ErrCoordinatorState
	}

	coordinator.stopCh = make(chan struct{})
	if coordinator.history != nil {
		coordinator.wg.Add(1)
		go coordinator.pollLoop()
	}

	coordinator.state.Store(int32(StateRunning))
	log.Printf("[Coordinator] 已启动: 轮询间隔=%s 单会话回扫上限=%d", coordinator.pollInterval, coordinator.historyLimit)
	return nil
}

// Stop 停止协调器
// 取消轮询任务并等待其退出,再等实时路径的在途投递跑完,才报告停止完成
func (coordinator *Coordinator) Stop() {
	if !coordinator.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}

	close(coordinator.stopCh)
	coordinator.wg.Wait()

	// 写锁在所有在途 OnMessage 释放读锁后才能取得
	// 此后新到的消息在状态检查处被丢弃,不会再进入管道
	coordinator.live.Lock()
	coordinator.live.Unlock()

	coordinator.state.Store(int32(StateStopped))
	log.Println("[Coordinator] 已停止")
}

// OnMessage 实时生产者入口
// 非 Running 状态下丢弃消息,避免停机期间继续产生通知
// 投递全程持读锁,保证 Stop 返回前在途投递已经完成
func (coordinator *Coordinator) OnMessage(ctx context.Context, msg watch.InboundMessage) {
	coordinator.live.RLock()
	defer coordinator.live.RUnlock()

	if coordinator.State() != StateRunning {
		return
	}
	coordinator.pipeline.Process(ctx, msg)
}

// ==================== 轮询生产者 ====================

// pollLoop 定时回扫循环
// 单一定时器驱动;取消只发生在两次 tick 之间,不会打断进行中的投递
func (coordinator *Coordinator) pollLoop() {
	defer coordinator.wg.Done()

	ticker := time.NewTicker(coordinator.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-coordinator.stopCh:
			return
		case <-ticker.C:
			coordinator.pollOnce(context.Background())
		}
	}
}

// pollOnce 执行一轮回扫
// 回扫范围是全部规则中具体 groupScope 的并集;作用域为空的规则不扩大范围
// 单个会话拉取失败只跳过该会话,本轮其余会话照常,循环本身不中止
func (coordinator *Coordinator) pollOnce(ctx context.Context) {
	for _, chatID := range coordinator.ruleStore.WatchedChats() {
		history, err := coordinator.history.ChatHistory(ctx, chatID, coordinator.historyLimit)
		if err != nil {
			log.Printf("[Coordinator] 回扫会话失败,跳过: chat=%d err=%v", chatID, err)
			continue
		}

		// 拉取结果从新到旧,反转后按原始顺序回放
		for position := len(history) - 1; position >= 0; position-- {
			coordinator.pipeline.Process(ctx, history[position])
		}
	}
}
