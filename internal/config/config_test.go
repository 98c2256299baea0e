package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"BINANCE_API_KEY", "BINANCE_API_SECRET", "BINANCE_TESTNET", "CHANLENS_DB", "CHANLENS_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.Analysis.Limit)
	assert.Equal(t, "trend", cfg.Analysis.Classification)
	assert.Equal(t, 10, cfg.Snapshot.Capacity)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
binance:
  key: from-file
  testnet: false
analysis:
  interval: 4h
  limit: 1000
  classification: bos-only
snapshot:
  capacity: 3
  max_pages: 256
scanner:
  workers: 2
  timeout: 30s
scheduler:
  spec: "0 */15 * * * *"
  symbols: [BTCUSDT, ETHUSDT]
`), 0o644))

	t.Setenv("BINANCE_API_KEY", "from-env")
	t.Setenv("BINANCE_TESTNET", "true")
	t.Setenv("CHANLENS_DB", "/tmp/x.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Binance.Key)
	assert.True(t, cfg.Binance.Testnet)
	assert.Equal(t, "4h", cfg.Analysis.Interval)
	assert.Equal(t, 1000, cfg.Analysis.Limit)
	assert.Equal(t, "bos-only", cfg.Analysis.Classification)
	assert.Equal(t, 3, cfg.Snapshot.Capacity)
	assert.Equal(t, 256, cfg.Snapshot.MaxPages)
	assert.Equal(t, "/tmp/x.db", cfg.Snapshot.Path)
	assert.Equal(t, 30*time.Second, cfg.Scanner.Timeout)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Scheduler.Symbols)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_BadTestnetEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BINANCE_TESTNET", "maybe")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"limit too large", func(c *Config) { c.Analysis.Limit = 5000 }},
		{"limit zero", func(c *Config) { c.Analysis.Limit = 0 }},
		{"classification", func(c *Config) { c.Analysis.Classification = "smc" }},
		{"capacity", func(c *Config) { c.Snapshot.Capacity = 0 }},
		{"pages", func(c *Config) { c.Snapshot.MaxPages = -1 }},
		{"workers", func(c *Config) { c.Scanner.Workers = 0 }},
		{"rate", func(c *Config) { c.Binance.RateLimit = 0 }},
		{"port", func(c *Config) { c.Web.Port = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	clearEnv(t)
	// godotenv never overrides a variable that is already set, even to ""
	require.NoError(t, os.Unsetenv("CHANLENS_LOG_LEVEL"))
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHANLENS_LOG_LEVEL=debug\n"), 0o644))
	cfg, err := Load(filepath.Join(dir, "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MalformedDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BAD!KEY=1\n"), 0o644))
	_, err := Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".env")
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
