package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath
}

func TestMustLoadFillsDefaults(t *testing.T) {
	configPath := writeConfigFile(t, `
Telegram:
  BotToken: "123456:token"
`)

	loaded := MustLoad(configPath)

	assert.Equal(t, DefaultHTTPAddress, loaded.App.Addr)
	assert.Equal(t, DefaultPollInterval, loaded.App.PollInterval)
	assert.Equal(t, DefaultPollHistoryLimit, loaded.App.PollHistoryLimit)
	assert.Equal(t, DefaultDedupWindow, loaded.App.DedupWindow)
	assert.Equal(t, DefaultDedupTTL, loaded.App.DedupTTL)
	assert.Equal(t, DefaultHistoryCapacity, loaded.Telegram.HistoryCapacity)
	assert.Equal(t, DefaultRulesPath, loaded.Storage.RulesPath)
	assert.Equal(t, DefaultAdminsPath, loaded.Storage.AdminsPath)
	assert.Equal(t, DefaultRedisNamespace, loaded.Storage.Namespace)
	assert.Equal(t, int64(DefaultMaxKeepRecords), loaded.Storage.MaxKeepRecords)
	assert.Equal(t, DefaultRecordTTL, loaded.Storage.RecordTTL)
	assert.Empty(t, loaded.Storage.RedisAddr)
}

func TestMustLoadKeepsExplicitValues(t *testing.T) {
	configPath := writeConfigFile(t, `
App:
  Addr: ":9090"
  PollInterval: 10s
  DedupWindow: 64
Telegram:
  BotToken: "123456:token"
  SuperAdminIDs: [1, 2]
  HistoryCapacity: 200
Storage:
  RulesPath: "custom/rules.json"
  RedisAddr: "127.0.0.1:6379"
  MaxKeepRecords: 50
`)

	loaded := MustLoad(configPath)

	assert.Equal(t, ":9090", loaded.App.Addr)
	assert.Equal(t, 10*time.Second, loaded.App.PollInterval)
	assert.Equal(t, 64, loaded.App.DedupWindow)
	assert.Equal(t, []int64{1, 2}, loaded.Telegram.SuperAdminIDs)
	assert.Equal(t, 200, loaded.Telegram.HistoryCapacity)
	assert.Equal(t, "custom/rules.json", loaded.Storage.RulesPath)
	assert.Equal(t, "127.0.0.1:6379", loaded.Storage.RedisAddr)
	assert.Equal(t, int64(50), loaded.Storage.MaxKeepRecords)
}

func TestValidateRequiresBotToken(t *testing.T) {
	var empty Config
	err := empty.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Telegram.BotToken")
}

func TestMustLoadPanicsOnMissingToken(t *testing.T) {
	configPath := writeConfigFile(t, `
App:
  Addr: ":8080"
`)

	assert.Panics(t, func() { MustLoad(configPath) })
}

func TestMustLoadPanicsOnMissingFile(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "absent.yaml")) })
}

func TestMustLoadPanicsOnMalformedYAML(t *testing.T) {
	configPath := writeConfigFile(t, "App: [not, a, mapping")

	assert.Panics(t, func() { MustLoad(configPath) })
}
