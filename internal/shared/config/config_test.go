package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: memory\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, int64(5<<20), cfg.Storage.CapacityBytes)
	assert.Equal(t, 50, cfg.Storefront.NotificationCap)
	assert.Equal(t, 150, cfg.Storefront.ChatHistoryCap)
	assert.Equal(t, 50, cfg.Storefront.ChatTruncateTo)
	assert.Equal(t, 15, cfg.Storefront.SLAGraceMinutes)
	assert.Equal(t, 3, cfg.Storefront.TypingTTLSeconds)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 5672, cfg.RabbitMQ.Port)
}

func TestLoadFromFile_Overrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: redis
  capacity_bytes: 1024
storefront:
  notification_cap: 5
  chat_history_cap: 20
  chat_truncate_to: 10
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, int64(1024), cfg.Storage.CapacityBytes)
	assert.Equal(t, 5, cfg.Storefront.NotificationCap)
	assert.Equal(t, 20, cfg.Storefront.ChatHistoryCap)
}

func TestLoadFromFile_UnknownField(t *testing.T) {
	path := writeConfig(t, "storage:\n  backnd: memory\n")
	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	// unknown backend
	path := writeConfig(t, "storage:\n  backend: dynamo\n")
	_, err := LoadFromFile(path)
	assert.ErrorContains(t, err, "storage.backend")

	// postgres backend requires credentials
	path = writeConfig(t, "storage:\n  backend: postgres\n")
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "database.user")

	// truncate cap must not exceed history cap
	path = writeConfig(t, `
storefront:
  chat_history_cap: 10
  chat_truncate_to: 20
`)
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "chat_truncate_to")
}
