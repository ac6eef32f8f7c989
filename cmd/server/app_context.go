package main

import (
	"fmt"
	"log"

	"watch-gateway/internal/command"
	"watch-gateway/internal/config"
	"watch-gateway/internal/dedup"
	"watch-gateway/internal/ingest"
	"watch-gateway/internal/notify"
	"watch-gateway/internal/recorder"
	"watch-gateway/internal/rules"
	"watch-gateway/internal/telegram"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	redis "github.com/redis/go-redis/v9"
)

// AppContext 应用运行时上下文
// 聚合所有运行期依赖,统一管理生命周期;无包级全局状态,
// 各组件在此构造一次后按引用传入使用方
type AppContext struct {
	Config      config.Config
	RedisClient *redis.Client
	Bot         *tgbotapi.BotAPI

	RuleStore   *rules.Store
	AdminSet    *rules.AdminSet
	Dedup       dedup.Checker
	RecordStore recorder.Store
	Fanout      *notify.Fanout
	Pipeline    *ingest.Pipeline
	Coordinator *ingest.Coordinator
	Commands    *command.Handler
	History     *telegram.HistoryCache
	Source      *telegram.Source
}

// BuildAppContext 按依赖顺序装配应用上下文
// Telegram 凭证非法属于致命启动错误,装配直接失败
func BuildAppContext(configuration config.Config) (*AppContext, error) {
	appContext := &AppContext{Config: configuration}

	bot, err := tgbotapi.NewBotAPI(configuration.Telegram.BotToken)
	if err != nil {
		return nil, fmt.Errorf("初始化 Bot API 失败: %w", err)
	}
	appContext.Bot = bot
	log.Printf("[App] Bot 已认证: @%s", bot.Self.UserName)

	appContext.RuleStore = rules.NewStore(configuration.Storage.RulesPath)
	appContext.AdminSet = rules.NewAdminSet(configuration.Storage.AdminsPath, configuration.Telegram.SuperAdminIDs)

	appContext.buildRedisBackedStores()

	notifier := telegram.NewNotifier(bot)
	appContext.Fanout = notify.NewFanout(notifier, appContext.RecordStore)
	appContext.Pipeline = ingest.NewPipeline(appContext.RuleStore, appContext.Dedup, appContext.Fanout)

	appContext.History = telegram.NewHistoryCache(configuration.Telegram.HistoryCapacity)
	appContext.Coordinator = ingest.NewCoordinator(
		appContext.Pipeline,
		appContext.RuleStore,
		appContext.History,
		configuration.App.PollInterval,
		configuration.App.PollHistoryLimit,
	)

	appContext.Commands = command.NewHandler(appContext.RuleStore, appContext.AdminSet)
	appContext.Source = telegram.NewSource(bot, appContext.Coordinator, appContext.Commands, appContext.History)

	return appContext, nil
}

// buildRedisBackedStores 装配去重检查器与记录存储
// 配置了 Redis 时使用跨实例实现,否则回退进程内实现
func (appContext *AppContext) buildRedisBackedStores() {
	storage := appContext.Config.Storage

	if storage.RedisAddr == "" {
		appContext.Dedup = dedup.NewWindow(appContext.Config.App.DedupWindow)
		appContext.RecordStore = recorder.NewMemoryStore(storage.MaxKeepRecords)
		log.Println("[App] 未配置 Redis,去重与记录使用进程内实现")
		return
	}

	appContext.RedisClient = redis.NewClient(&redis.Options{Addr: storage.RedisAddr})
	appContext.Dedup = dedup.NewRedisChecker(appContext.RedisClient, storage.Namespace, appContext.Config.App.DedupTTL)
	appContext.RecordStore = recorder.NewRedisStore(
		appContext.RedisClient,
		storage.Namespace,
		storage.MaxKeepRecords,
		storage.RecordTTL,
	)
	log.Printf("[App] Redis 已启用: %s namespace=%s", storage.RedisAddr, storage.Namespace)
}

// Close 释放应用上下文持有的所有资源
// 按照依赖关系倒序释放,避免资源泄漏
func (appContext *AppContext) Close() {
	if appContext.Coordinator != nil {
		appContext.Coordinator.Stop()
	}
	if appContext.RedisClient != nil {
		if err := appContext.RedisClient.Close(); err != nil {
			log.Printf("[App] 关闭 Redis 连接失败: %v", err)
		}
	}
}
