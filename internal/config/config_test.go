package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradegate/internal/risk"
)

func envOf(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadWithEnv_Defaults(t *testing.T) {
	c, err := LoadWithEnv("", envOf(map[string]string{
		"TRADEGATE_FEED_URL": "ws://localhost:8080/snapshots",
	}))
	require.NoError(t, err)

	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA", "TSLA", "AMZN"}, c.Engine.Instruments)
	assert.Equal(t, 5*time.Minute, c.Engine.Interval)
	assert.Equal(t, 5*time.Minute, c.BucketInterval())
	assert.Equal(t, 10*time.Second, c.Engine.CallTimeout)
	assert.InDelta(t, 0.40, c.Blend.Threshold, 1e-12)
	assert.InDelta(t, 0.10, c.Risk.BaseRiskFraction, 1e-12)
	assert.Equal(t, 7, c.Risk.GlobalCap)
	assert.Equal(t, 2, c.Risk.SectorCap)
	assert.Equal(t, "manual", c.Risk.BreakerPolicy)
	assert.Equal(t, "file", c.Storage.Backend)
	assert.Equal(t, "paper", c.Broker.Kind)
	assert.Equal(t, uint64(1), c.Broker.MaxRetries)

	assert.Equal(t, risk.DefaultLimits(), c.Limits())
	params := c.RiskParams()
	assert.Equal(t, risk.BreakerManual, params.BreakerPolicy)
	assert.Equal(t, "America/New_York", params.Location.String())
}

func TestLoadWithEnv_FileAndOverrides(t *testing.T) {
	path := writeConfig(t, `
log:
  level: debug
engine:
  instruments: [AAPL, TSLA]
  interval: 1m
  bucket_interval: 5m
  timezone: UTC
risk:
  base_risk_fraction: 0.05
  daily_trade_cap: 3
  breaker_policy: rollover
  profit_reinvest_rate: 0.05
sectors:
  TECH: [AAPL]
  AUTO: [TSLA]
storage:
  backend: memory
feed:
  kind: memory
`)

	c, err := LoadWithEnv(path, envOf(map[string]string{
		"TRADEGATE_INSTRUMENTS": "AAPL, NVDA ,",
		"TRADEGATE_BASE_RISK":   "0.08",
	}))
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, []string{"AAPL", "NVDA"}, c.Engine.Instruments)
	assert.Equal(t, time.Minute, c.Engine.Interval)
	assert.Equal(t, 5*time.Minute, c.BucketInterval())
	assert.InDelta(t, 0.08, c.Risk.BaseRiskFraction, 1e-12)
	assert.Equal(t, 3, c.Limits().DailyTradeCap)
	assert.InDelta(t, 0.05, c.Limits().ProfitReinvestRate, 1e-12)
	assert.Equal(t, risk.BreakerRollover, c.RiskParams().BreakerPolicy)
	// Untouched keys keep their defaults.
	assert.Equal(t, 7, c.Risk.GlobalCap)

	inst := c.Instruments()
	assert.Equal(t, "AUTO", inst.SectorOf("tsla"))
	assert.Equal(t, "", inst.SectorOf("NVDA"))
}

func TestLoadWithEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{
			name: "feed url required for ws",
			body: "storage:\n  backend: memory\n",
		},
		{
			name: "unknown storage backend",
			body: "storage:\n  backend: sqlite\nfeed:\n  kind: memory\n",
		},
		{
			name: "postgres without dsn",
			body: "storage:\n  backend: postgres\nfeed:\n  kind: memory\n",
		},
		{
			name: "risk bounds inverted",
			body: "risk:\n  min_risk_fraction: 0.5\n  max_risk_fraction: 0.2\nfeed:\n  kind: memory\n",
		},
		{
			name: "bad timezone",
			body: "engine:\n  timezone: Mars/Olympus\nfeed:\n  kind: memory\n",
		},
		{
			name: "bad breaker policy",
			body: "feed:\n  kind: memory\n",
			env:  map[string]string{"TRADEGATE_BREAKER_POLICY": "never"},
		},
		{
			name: "bad interval env",
			body: "feed:\n  kind: memory\n",
			env:  map[string]string{"TRADEGATE_INTERVAL": "soon"},
		},
		{
			name: "redis ttl inside the bucket",
			body: "storage:\n  backend: memory\n  redis_ttl: 2m\nfeed:\n  kind: memory\n",
		},
		{
			name: "redis ttl equal to an explicit bucket",
			body: "engine:\n  bucket_interval: 10m\nstorage:\n  backend: memory\n  redis_ttl: 10m\nfeed:\n  kind: memory\n",
		},
		{
			name: "malformed yaml",
			body: "engine: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithEnv(writeConfig(t, tt.body), envOf(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv_RedisTTL(t *testing.T) {
	cfg, err := LoadWithEnv(writeConfig(t, "storage:\n  backend: memory\n  redis_ttl: 48h\nfeed:\n  kind: memory\n"), envOf(nil))
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cfg.StoreOptions().RedisTTL)

	cfg, err = LoadWithEnv(writeConfig(t, "storage:\n  backend: memory\nfeed:\n  kind: memory\n"), envOf(nil))
	require.NoError(t, err)
	assert.Zero(t, cfg.StoreOptions().RedisTTL)
}

func TestLoadWithEnv_MissingFile(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"), envOf(nil))
	assert.Error(t, err)
}

func TestConversions(t *testing.T) {
	c, err := LoadWithEnv("", envOf(map[string]string{"TRADEGATE_FEED_URL": "ws://feed"}))
	require.NoError(t, err)

	guard := c.GuardOptions()
	assert.Equal(t, c.Engine.CallTimeout, guard.CallTimeout)
	assert.Equal(t, uint64(1), guard.MaxRetries)

	ws := c.WSConfig()
	assert.Equal(t, 15*time.Minute, ws.MaxAge)

	assert.InDelta(t, 2.0, c.PositionParams().RewardRisk, 1e-12)
	assert.Len(t, c.ConfirmTimeframes(), 3)
	assert.Equal(t, "1h", c.Timeframe().String())
	assert.Equal(t, "json", c.LoggerConfig().Format)

	stores := c.StoreOptions()
	assert.Equal(t, "file", stores.Backend)
	assert.Equal(t, "./state", stores.Dir)
	assert.Empty(t, stores.RedisURL)
}
