package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfx/trend-trader/internal/broker"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "minimal.yaml", `
symbols:
  - BTCUSDT
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT"}, cfg.Symbols)
	assert.Equal(t, 0.01, cfg.Risk.RiskPerTradeFraction)
	assert.Equal(t, 0.03, cfg.Risk.MaxDailyDrawdownFraction)
	assert.Equal(t, 3, cfg.Risk.MaxOpenPositions)
	assert.Equal(t, 3, cfg.Execution.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Execution.RetryBackoff.Std())
	assert.Equal(t, []broker.FillMode{broker.FillModeIOC, broker.FillModeFOK, broker.FillModeMarket}, cfg.Execution.FillModes)
	assert.Equal(t, "atr_trend", cfg.Strategy.Name)
	assert.Equal(t, "paper", cfg.Broker.Name)
	assert.Equal(t, "@every 1m", cfg.Schedule.CycleCron)
	assert.Equal(t, 30*time.Second, cfg.Schedule.ShutdownTimeout.Std())
	assert.Equal(t, 8080, cfg.Monitoring.MetricsPort)
}

func TestLoadJSONOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "custom.json", `{
  "symbols": ["ETHUSDT"],
  "risk": {
    "risk_per_trade_fraction": 0.02,
    "trading_window": {"start_hour": 8, "end_hour": 20}
  },
  "execution": {
    "max_retries": 5,
    "retry_backoff": "250ms",
    "fill_modes": ["IOC", "MARKET"]
  },
  "broker": {"name": "bybit", "testnet": true},
  "schedule": {"cycle_cron": "@every 5m", "shutdown_timeout": "10s"}
}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.02, cfg.Risk.RiskPerTradeFraction)
	assert.Equal(t, 8, cfg.Risk.TradingWindow.StartHour)
	assert.Equal(t, 5, cfg.Execution.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Execution.RetryBackoff.Std())
	assert.Equal(t, []broker.FillMode{broker.FillModeIOC, broker.FillModeMarket}, cfg.Execution.FillModes)
	assert.Equal(t, "bybit", cfg.Broker.Name)
	assert.True(t, cfg.Broker.Testnet)
	assert.Equal(t, 10*time.Second, cfg.Schedule.ShutdownTimeout.Std())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		cfg := &Config{Symbols: []string{"BTCUSDT"}}
		cfg.setDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no symbols", func(c *Config) { c.Symbols = nil }},
		{"risk fraction too large", func(c *Config) { c.Risk.RiskPerTradeFraction = 0.5 }},
		{"drawdown fraction at one", func(c *Config) { c.Risk.MaxDailyDrawdownFraction = 1.0 }},
		{"zero max positions", func(c *Config) { c.Risk.MaxOpenPositions = -1 }},
		{"window hour out of range", func(c *Config) { c.Risk.TradingWindow.StartHour = 25 }},
		{"unknown fill mode", func(c *Config) { c.Execution.FillModes = []broker.FillMode{"GTC"} }},
		{"unknown broker", func(c *Config) { c.Broker.Name = "mt5" }},
		{"non-positive trail multiple", func(c *Config) { c.Execution.TrailMultiple = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWindowContains(t *testing.T) {
	at := func(hour int) time.Time {
		return time.Date(2025, 6, 2, hour, 30, 0, 0, time.UTC)
	}

	day := Window{StartHour: 8, EndHour: 20}
	assert.True(t, day.Contains(at(8)))
	assert.True(t, day.Contains(at(19)))
	assert.False(t, day.Contains(at(20)))
	assert.False(t, day.Contains(at(3)))

	// Window wrapping midnight.
	night := Window{StartHour: 22, EndHour: 6}
	assert.True(t, night.Contains(at(23)))
	assert.True(t, night.Contains(at(2)))
	assert.False(t, night.Contains(at(12)))

	always := Window{}
	assert.True(t, always.Contains(at(0)))
	assert.True(t, always.Contains(at(15)))
}

func TestDurationParsing(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalJSON([]byte(`"1m30s"`)))
	assert.Equal(t, 90*time.Second, d.Std())

	require.NoError(t, d.UnmarshalJSON([]byte(`5000000`)))
	assert.Equal(t, 5*time.Millisecond, d.Std())

	assert.Error(t, d.UnmarshalJSON([]byte(`"forever"`)))
}
