package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 默认配置常量
const (
	// 应用默认配置
	DefaultHTTPAddress      = ":8080"
	DefaultPollInterval     = 30 * time.Second
	DefaultPollHistoryLimit = 20
	DefaultDedupWindow      = 512
	DefaultDedupTTL         = 24 * time.Hour

	// 存储默认配置
	DefaultRulesPath      = "data/rules.json"
	DefaultAdminsPath     = "data/admins.json"
	DefaultRedisNamespace = "watch"
	DefaultMaxKeepRecords = 1000
	DefaultRecordTTL      = 7 * 24 * time.Hour

	// 传输默认配置
	DefaultHistoryCapacity = 50
)

// App 应用全局配置
type App struct {
	Addr             string        `yaml:"Addr"`             // HTTP 监听地址
	PollInterval     time.Duration `yaml:"PollInterval"`     // 回扫轮询间隔
	PollHistoryLimit int           `yaml:"PollHistoryLimit"` // 单会话每轮回扫条数
	DedupWindow      int           `yaml:"DedupWindow"`      // 单会话去重窗口容量
	DedupTTL         time.Duration `yaml:"DedupTTL"`         // Redis 去重键过期时间
}

// Telegram 传输层配置
// BotToken 缺失属于致命启动错误,进程必须拒绝启动
type Telegram struct {
	BotToken        string  `yaml:"BotToken"`        // Bot API 令牌
	SuperAdminIDs   []int64 `yaml:"SuperAdminIDs"`   // 超级管理员(只读层)
	HistoryCapacity int     `yaml:"HistoryCapacity"` // 单会话历史缓存容量
}

// Storage 存储配置
// 规则与管理员固定为 JSON 文件;Redis 可选,配置后启用跨实例去重与记录存储
type Storage struct {
	RulesPath      string        `yaml:"RulesPath"`      // 规则文件路径
	AdminsPath     string        `yaml:"AdminsPath"`     // 动态管理员文件路径
	RedisAddr      string        `yaml:"RedisAddr"`      // Redis 地址(可选)
	Namespace      string        `yaml:"Namespace"`      // Redis 键前缀
	MaxKeepRecords int64         `yaml:"MaxKeepRecords"` // 最大保留通知记录数
	RecordTTL      time.Duration `yaml:"RecordTTL"`      // 通知记录过期时间
}

// Config 应用完整配置
type Config struct {
	App      App      `yaml:"App"`
	Telegram Telegram `yaml:"Telegram"`
	Storage  Storage  `yaml:"Storage"`
}

// MustLoad 加载 YAML 配置文件
// 加载失败时直接 panic(用于应用启动阶段)
func MustLoad(configPath string) Config {
	fileContent, err := os.ReadFile(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to read config file: %v", err))
	}

	var config Config
	if err := yaml.Unmarshal(fileContent, &config); err != nil {
		panic(fmt.Sprintf("failed to unmarshal config: %v", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}

	return config
}

// Validate 校验配置并设置默认值
// 唯一的硬性要求是 Telegram 凭证,其余字段缺省时回填默认值
func (config *Config) Validate() error {
	if config.Telegram.BotToken == "" {
		return fmt.Errorf("Telegram.BotToken is required")
	}

	config.validateAppConfig()
	config.validateTelegramConfig()
	config.validateStorageConfig()
	return nil
}

// validateAppConfig 校验应用配置并设置默认值
func (config *Config) validateAppConfig() {
	if config.App.Addr == "" {
		config.App.Addr = DefaultHTTPAddress
	}

	if config.App.PollInterval <= 0 {
		config.App.PollInterval = DefaultPollInterval
	}

	if config.App.PollHistoryLimit <= 0 {
		config.App.PollHistoryLimit = DefaultPollHistoryLimit
	}

	if config.App.DedupWindow <= 0 {
		config.App.DedupWindow = DefaultDedupWindow
	}

	if config.App.DedupTTL <= 0 {
		config.App.DedupTTL = DefaultDedupTTL
	}
}

// validateTelegramConfig 校验传输配置并设置默认值
func (config *Config) validateTelegramConfig() {
	if config.Telegram.HistoryCapacity <= 0 {
		config.Telegram.HistoryCapacity = DefaultHistoryCapacity
	}
}

// validateStorageConfig 校验存储配置并设置默认值
func (config *Config) validateStorageConfig() {
	if config.Storage.RulesPath == "" {
		config.Storage.RulesPath = DefaultRulesPath
	}

	if config.Storage.AdminsPath == "" {
		config.Storage.AdminsPath = DefaultAdminsPath
	}

	if config.Storage.Namespace == "" {
		config.Storage.Namespace = DefaultRedisNamespace
	}

	if config.Storage.MaxKeepRecords <= 0 {
		config.Storage.MaxKeepRecords = DefaultMaxKeepRecords
	}

	if config.Storage.RecordTTL <= 0 {
		config.Storage.RecordTTL = DefaultRecordTTL
	}
}
