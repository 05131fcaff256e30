package config_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/ferry/internal/config"
	"github.com/aretw0/ferry/pkg/domain"
)

var key = strings.Repeat("ab", 32)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.BackendMemory, cfg.History.Backend)
	assert.Equal(t, 30*time.Second, cfg.Timeout.Duration)
}

func TestLoad_Formats(t *testing.T) {
	yamlPath := write(t, "ferry.yaml", `
base_url: http://localhost:8080
timeout: 5s
log_level: debug
history:
  backend: redis
  redis:
    addr: cache:6379
    db: 2
    ttl: 1h
  redact: ["^password$"]
metrics:
  addr: ":2112"
`)
	jsonPath := write(t, "ferry.json", `{
  "base_url": "http://localhost:8080",
  "timeout": "5s",
  "log_level": "debug",
  "history": {"backend": "redis", "redis": {"addr": "cache:6379", "db": 2, "ttl": "1h"}, "redact": ["^password$"]},
  "metrics": {"addr": ":2112"}
}`)
	tomlPath := write(t, "ferry.toml", `
base_url = "http://localhost:8080"
timeout = "5s"
log_level = "debug"

[history]
backend = "redis"
redact = ["^password$"]

[history.redis]
addr = "cache:6379"
db = 2
ttl = "1h"

[metrics]
addr = ":2112"
`)

	for _, path := range []string{yamlPath, jsonPath, tomlPath} {
		t.Run(filepath.Ext(path), func(t *testing.T) {
			cfg, err := config.Load(path)
			require.NoError(t, err)

			assert.Equal(t, "http://localhost:8080", cfg.BaseURL)
			assert.Equal(t, 5*time.Second, cfg.Timeout.Duration)
			assert.Equal(t, "debug", cfg.LogLevel)
			assert.Equal(t, config.BackendRedis, cfg.History.Backend)
			assert.Equal(t, "cache:6379", cfg.History.Redis.Addr)
			assert.Equal(t, 2, cfg.History.Redis.DB)
			assert.Equal(t, time.Hour, cfg.History.Redis.TTL.Duration)
			assert.Equal(t, []string{"^password$"}, cfg.History.Redact)
			assert.Equal(t, ":2112", cfg.Metrics.Addr)
			// Unset fields keep their defaults.
			assert.Equal(t, "app", cfg.RootID)
			assert.Equal(t, "ferry:", cfg.History.Redis.Prefix)
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"syntax":      "base_url: [",
		"base url":    "base_url: /relative",
		"log level":   "log_level: loud",
		"backend":     "history: {backend: tape}",
		"sqlite path": "history: {backend: sqlite}",
		"duration":    "timeout: soon",
		"key length":  "history: {encryption_key: abcd}",
		"key hex":     "history: {encryption_key: zz}",
		"redact":      `history: {redact: ["("]}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(write(t, "ferry.yaml", content))
			assert.Error(t, err)
		})
	}
}

func TestHistoryConfig_Keys(t *testing.T) {
	h := config.HistoryConfig{EncryptionKey: key, FallbackKeys: []string{strings.Repeat("cd", 32)}}
	active, fallback, err := h.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	require.Len(t, fallback, 1)
	assert.Equal(t, byte(0xcd), fallback[0][0])

	active, fallback, err = config.HistoryConfig{}.Keys()
	require.NoError(t, err)
	assert.Nil(t, active)
	assert.Nil(t, fallback)
}

func entry(t *testing.T) *domain.Entry {
	t.Helper()
	page, err := domain.NewPage("Users/Index", map[string]any{"password": "hunter2", "name": "Al"}, "/users", domain.StringVersion("v1"))
	require.NoError(t, err)
	return &domain.Entry{Key: "k1", Page: page}
}

func TestOpenHistory_Backends(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	cases := map[string]config.HistoryConfig{
		"memory": {Backend: config.BackendMemory},
		"file":   {Backend: config.BackendFile, Path: filepath.Join(dir, "files")},
		"sqlite": {Backend: config.BackendSQLite, Path: filepath.Join(dir, "history.db")},
		"redis":  {Backend: config.BackendRedis, Redis: config.RedisConfig{Addr: mr.Addr(), Prefix: "test:"}},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			st, err := config.OpenHistory(h)
			require.NoError(t, err)
			defer st.Close()

			ctx := context.Background()
			require.NoError(t, st.Store.Save(ctx, "tab:k1", entry(t)))
			got, err := st.Store.Load(ctx, "tab:k1")
			require.NoError(t, err)
			assert.Equal(t, "Users/Index", got.Page.Component())

			if name == "redis" {
				assert.NotNil(t, st.Locker)
			} else {
				assert.Nil(t, st.Locker)
			}
		})
	}
}

func TestOpenHistory_Middlewares(t *testing.T) {
	dir := t.TempDir()
	h := config.HistoryConfig{
		Backend:       config.BackendFile,
		Path:          dir,
		EncryptionKey: key,
		Redact:        []string{"^password$"},
	}
	st, err := config.OpenHistory(h)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.Store.Save(ctx, "tab:k1", entry(t)))

	got, err := st.Store.Load(ctx, "tab:k1")
	require.NoError(t, err)
	name, _ := got.Page.Prop("name")
	assert.JSONEq(t, `"Al"`, string(name))
	password, _ := got.Page.Prop("password")
	assert.NotContains(t, string(password), "hunter2")

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Users/Index", "entries are encrypted at rest")
}

func TestOpenHistory_UnknownBackend(t *testing.T) {
	_, err := config.OpenHistory(config.HistoryConfig{Backend: "tape"})
	assert.Error(t, err)
}
