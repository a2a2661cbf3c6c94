package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/openfx/trend-trader/internal/broker"
)

// Config is the complete process configuration. It is loaded once at
// startup and immutable afterwards; a change requires a restart.
type Config struct {
	Symbols       []string         `json:"symbols" yaml:"symbols"`
	Risk          RiskPolicy       `json:"risk" yaml:"risk"`
	Execution     ExecutionConfig  `json:"execution" yaml:"execution"`
	Strategy      StrategyConfig   `json:"strategy" yaml:"strategy"`
	Broker        BrokerConfig     `json:"broker" yaml:"broker"`
	Schedule      ScheduleConfig   `json:"schedule" yaml:"schedule"`
	Notifications *Notifications   `json:"notifications,omitempty" yaml:"notifications,omitempty"`
	Monitoring    MonitoringConfig `json:"monitoring" yaml:"monitoring"`
	LogDir        string           `json:"log_dir" yaml:"log_dir"`
}

// RiskPolicy is the account-level risk budget enforced before every entry.
type RiskPolicy struct {
	RiskPerTradeFraction     float64 `json:"risk_per_trade_fraction" yaml:"risk_per_trade_fraction"`
	MaxDailyDrawdownFraction float64 `json:"max_daily_drawdown_fraction" yaml:"max_daily_drawdown_fraction"`
	MaxOpenPositions         int     `json:"max_open_positions" yaml:"max_open_positions"`
	MinFreeMarginRatio       float64 `json:"min_free_margin_ratio" yaml:"min_free_margin_ratio"`
	MaxSpreadPoints          float64 `json:"max_spread_points" yaml:"max_spread_points"`
	TradingWindow            Window  `json:"trading_window" yaml:"trading_window"`
}

// Window is a daily trading window in exchange-local hours, [Start, End).
// Start == End means the window is always open.
type Window struct {
	StartHour int `json:"start_hour" yaml:"start_hour"`
	EndHour   int `json:"end_hour" yaml:"end_hour"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.StartHour == w.EndHour {
		return true
	}
	h := t.Hour()
	if w.StartHour < w.EndHour {
		return h >= w.StartHour && h < w.EndHour
	}
	// window wraps midnight
	return h >= w.StartHour || h < w.EndHour
}

// ExecutionConfig tunes the order-submission state machine.
type ExecutionConfig struct {
	MaxRetries        int               `json:"max_retries" yaml:"max_retries"`
	RetryBackoff      Duration          `json:"retry_backoff" yaml:"retry_backoff"`
	TrailMultiple     float64           `json:"trail_multiple" yaml:"trail_multiple"`
	MaxSlippagePoints float64           `json:"max_slippage_points" yaml:"max_slippage_points"`
	FillModes         []broker.FillMode `json:"fill_modes" yaml:"fill_modes"`
	OrderTag          string            `json:"order_tag" yaml:"order_tag"`
}

// StrategyConfig selects and parameterizes the signal source.
type StrategyConfig struct {
	Name          string  `json:"name" yaml:"name"`
	Interval      string  `json:"interval" yaml:"interval"`
	WindowSize    int     `json:"window_size" yaml:"window_size"`
	EMAPeriod     int     `json:"ema_period" yaml:"ema_period"`
	RSIPeriod     int     `json:"rsi_period" yaml:"rsi_period"`
	RSIOversold   float64 `json:"rsi_oversold" yaml:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought" yaml:"rsi_overbought"`
	ATRPeriod     int     `json:"atr_period" yaml:"atr_period"`
	ATRMultiplier float64 `json:"atr_multiplier" yaml:"atr_multiplier"`
}

// BrokerConfig selects the venue adapter. Credentials come from the
// environment, not the config file.
type BrokerConfig struct {
	Name     string `json:"name" yaml:"name"`         // "bybit" or "paper"
	Category string `json:"category" yaml:"category"` // venue product category
	Testnet  bool   `json:"testnet" yaml:"testnet"`
	Demo     bool   `json:"demo" yaml:"demo"`
}

// ScheduleConfig drives the evaluation loop.
type ScheduleConfig struct {
	CycleCron          string   `json:"cycle_cron" yaml:"cycle_cron"`
	CloseAllOnShutdown bool     `json:"close_all_on_shutdown" yaml:"close_all_on_shutdown"`
	ShutdownTimeout    Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Notifications holds the outbound alert channel settings.
type Notifications struct {
	Enabled       bool   `json:"enabled" yaml:"enabled"`
	TelegramToken string `json:"telegram_token,omitempty" yaml:"telegram_token,omitempty"`
	TelegramChat  string `json:"telegram_chat,omitempty" yaml:"telegram_chat,omitempty"`
}

// MonitoringConfig holds the metrics and health endpoints.
type MonitoringConfig struct {
	MetricsPort int `json:"metrics_port" yaml:"metrics_port"`
	HealthPort  int `json:"health_port" yaml:"health_port"`
}

// Load reads a config file (JSON or YAML by extension), applies defaults,
// and validates. Bare names resolve under configs/.
func Load(configFile string) (*Config, error) {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(configFile)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Risk.RiskPerTradeFraction == 0 {
		c.Risk.RiskPerTradeFraction = 0.01
	}
	if c.Risk.MaxDailyDrawdownFraction == 0 {
		c.Risk.MaxDailyDrawdownFraction = 0.03
	}
	if c.Risk.MaxOpenPositions == 0 {
		c.Risk.MaxOpenPositions = 3
	}
	if c.Risk.MinFreeMarginRatio == 0 {
		c.Risk.MinFreeMarginRatio = 0.20
	}
	if c.Risk.MaxSpreadPoints == 0 {
		c.Risk.MaxSpreadPoints = 20
	}
	if c.Execution.MaxRetries == 0 {
		c.Execution.MaxRetries = 3
	}
	if c.Execution.RetryBackoff == 0 {
		c.Execution.RetryBackoff = Duration(500 * time.Millisecond)
	}
	if c.Execution.TrailMultiple == 0 {
		c.Execution.TrailMultiple = 2.0
	}
	if c.Execution.MaxSlippagePoints == 0 {
		c.Execution.MaxSlippagePoints = 10
	}
	if len(c.Execution.FillModes) == 0 {
		c.Execution.FillModes = []broker.FillMode{
			broker.FillModeIOC, broker.FillModeFOK, broker.FillModeMarket,
		}
	}
	if c.Execution.OrderTag == "" {
		c.Execution.OrderTag = "trend-trader"
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "atr_trend"
	}
	if c.Strategy.Interval == "" {
		c.Strategy.Interval = "60"
	}
	if c.Strategy.WindowSize == 0 {
		c.Strategy.WindowSize = 300
	}
	if c.Strategy.EMAPeriod == 0 {
		c.Strategy.EMAPeriod = 200
	}
	if c.Strategy.RSIPeriod == 0 {
		c.Strategy.RSIPeriod = 14
	}
	if c.Strategy.RSIOversold == 0 {
		c.Strategy.RSIOversold = 30
	}
	if c.Strategy.RSIOverbought == 0 {
		c.Strategy.RSIOverbought = 70
	}
	if c.Strategy.ATRPeriod == 0 {
		c.Strategy.ATRPeriod = 14
	}
	if c.Strategy.ATRMultiplier == 0 {
		c.Strategy.ATRMultiplier = 2.0
	}
	if c.Broker.Name == "" {
		c.Broker.Name = "paper"
	}
	if c.Broker.Category == "" {
		c.Broker.Category = "linear"
	}
	if c.Schedule.CycleCron == "" {
		c.Schedule.CycleCron = "@every 1m"
	}
	if c.Schedule.ShutdownTimeout == 0 {
		c.Schedule.ShutdownTimeout = Duration(30 * time.Second)
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.Monitoring.MetricsPort == 0 {
		c.Monitoring.MetricsPort = 8080
	}
	if c.Monitoring.HealthPort == 0 {
		c.Monitoring.HealthPort = 8081
	}
}

// Validate rejects configurations that would make the engine unsafe.
func (c *Config) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Risk.RiskPerTradeFraction <= 0 || c.Risk.RiskPerTradeFraction > 0.1 {
		return fmt.Errorf("risk_per_trade_fraction %.4f outside (0, 0.1]", c.Risk.RiskPerTradeFraction)
	}
	if c.Risk.MaxDailyDrawdownFraction <= 0 || c.Risk.MaxDailyDrawdownFraction >= 1 {
		return fmt.Errorf("max_daily_drawdown_fraction %.4f outside (0, 1)", c.Risk.MaxDailyDrawdownFraction)
	}
	if c.Risk.MaxOpenPositions < 1 {
		return fmt.Errorf("max_open_positions must be at least 1")
	}
	if c.Risk.MinFreeMarginRatio < 0 || c.Risk.MinFreeMarginRatio >= 1 {
		return fmt.Errorf("min_free_margin_ratio %.4f outside [0, 1)", c.Risk.MinFreeMarginRatio)
	}
	if w := c.Risk.TradingWindow; w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 24 {
		return fmt.Errorf("trading_window hours out of range")
	}
	if c.Execution.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if c.Execution.TrailMultiple <= 0 {
		return fmt.Errorf("trail_multiple must be positive")
	}
	for _, m := range c.Execution.FillModes {
		switch m {
		case broker.FillModeIOC, broker.FillModeFOK, broker.FillModeMarket:
		default:
			return fmt.Errorf("unknown fill mode %q", m)
		}
	}
	switch c.Broker.Name {
	case "bybit", "paper":
	default:
		return fmt.Errorf("unknown broker %q", c.Broker.Name)
	}
	return nil
}
