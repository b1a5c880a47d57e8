package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp 切换到空目录，避免读到仓库里的配置文件
func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 100, cfg.Table.ChatWindow)
	assert.Equal(t, 6, cfg.Table.SessionIDLength)
	assert.Equal(t, 5*time.Second, cfg.Table.WriteTimeout)
	assert.Equal(t, "익명", cfg.Table.AnonymousNickname)
	assert.Equal(t, "나레이션", cfg.Table.NarratorName)
	assert.Equal(t, 100, cfg.Table.MaxDiceCount)
	assert.Equal(t, 1000, cfg.Table.MaxDiceSides)
	assert.Equal(t, "/ws", cfg.WebSocket.Path)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
database:
  driver: sqlite
  dsn: ":memory:"
table:
  chat_window: 50
  narrator_name: "해설"
log:
  modules:
    store: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.Equal(t, 50, cfg.Table.ChatWindow)
	assert.Equal(t, "해설", cfg.Table.NarratorName)
	assert.Equal(t, "debug", cfg.Log.Modules["store"])
	// 未覆盖的值保持默认
	assert.Equal(t, 6, cfg.Table.SessionIDLength)
}

func TestLoadEnvOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv("OBSCURA_TABLE_CHAT_WINDOW", "25")
	t.Setenv("OBSCURA_SERVER_PORT", "7000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Table.ChatWindow)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"zero chat window", func(c *Config) { c.Table.ChatWindow = 0 }},
		{"zero session id", func(c *Config) { c.Table.SessionIDLength = 0 }},
		{"zero dice sides", func(c *Config) { c.Table.MaxDiceSides = 0 }},
		{"empty secret", func(c *Config) { c.Security.JWT.Secret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, base.Validate())
}

func TestLoadRejectsBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  driver: oracle\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
