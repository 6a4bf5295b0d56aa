package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, StoreSQLite, cfg.Store.Backend)
	assert.Equal(t, CacheMemory, cfg.Cache.Backend)
	assert.Equal(t, 50, cfg.Domain.MaxPeoplePerSubmission)
	assert.Equal(t, 3, cfg.Domain.ConflictRetries)
	assert.Zero(t, cfg.RateLimit.RPS)
	assert.Empty(t, cfg.File())
}

func TestLoadFile_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, t.TempDir(), `
server_address: ":9090"
log_level: debug
store:
  backend: badger
  badger_path: /tmp/sg
cache:
  backend: none
  ttl: 30s
rate_limit:
  rps: 5
  burst: 10
domain:
  max_people_per_submission: 10
  max_name_length: 40
  conflict_retries: 1
`)
	t.Setenv("SERVER_ADDRESS", ":7070")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ServerAddress, "environment beats the file")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoreBadger, cfg.Store.Backend)
	assert.Equal(t, "/tmp/sg", cfg.Store.BadgerPath)
	assert.Equal(t, CacheNone, cfg.Cache.Backend)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 2.5, cfg.RateLimit.RPS)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 10, cfg.Domain.MaxPeoplePerSubmission)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, path, cfg.File())
}

func TestLoadFile_Errors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, t.TempDir(), "store: [not, a, map]"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"memory store", func(c *Config) { c.Store.Backend = StoreMemory }, false},
		{"unknown store", func(c *Config) { c.Store.Backend = "mongo" }, true},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = StorePostgres }, true},
		{"postgres with dsn", func(c *Config) {
			c.Store.Backend = StorePostgres
			c.Store.PostgresDSN = "postgres://localhost/sg"
		}, false},
		{"neo4j without uri", func(c *Config) { c.Store.Backend = StoreNeo4j }, true},
		{"badger without path", func(c *Config) {
			c.Store.Backend = StoreBadger
			c.Store.BadgerPath = ""
		}, true},
		{"dynamodb without table", func(c *Config) {
			c.Store.Backend = StoreDynamoDB
			c.Store.DynamoDBTable = ""
		}, true},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"zero cache ttl", func(c *Config) { c.Cache.TTL = 0 }, true},
		{"zero ttl without cache", func(c *Config) {
			c.Cache.Backend = CacheNone
			c.Cache.TTL = 0
		}, false},
		{"negative rps", func(c *Config) { c.RateLimit.RPS = -1 }, true},
		{"rps without burst", func(c *Config) {
			c.RateLimit.RPS = 1
			c.RateLimit.Burst = 0
		}, true},
		{"events without bus", func(c *Config) { c.AWS.EnableEvents = true }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"non-positive people limit", func(c *Config) { c.Domain.MaxPeoplePerSubmission = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "log_level: info\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	w, err := NewWatcher(cfg, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	var level atomic.Value
	w.OnChange(func(c *Config) { level.Store(c.LogLevel) })
	w.Start()

	// an invalid edit is ignored
	require.NoError(t, os.WriteFile(path, []byte("log_level: loud\n"), 0o600))
	time.Sleep(3 * debounceDuration)
	assert.Equal(t, "info", w.Current().LogLevel)

	require.NoError(t, os.WriteFile(path, []byte("log_level: debug\n"), 0o600))
	require.Eventually(t, func() bool {
		v, _ := level.Load().(string)
		return v == "debug"
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "debug", w.Current().LogLevel)
}

func TestNewWatcher_RequiresFile(t *testing.T) {
	_, err := NewWatcher(Default(), zap.NewNop())
	assert.Error(t, err)
}
