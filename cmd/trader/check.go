package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/openfx/trend-trader/internal/config"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate a configuration file and print the effective settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configFile == "" {
			return fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}

		fmt.Printf("✅ %s is valid\n\n", configFile)
		printEffectiveConfig(cfg)
		return nil
	},
}

func printEffectiveConfig(cfg *config.Config) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRows([]table.Row{
		{"Symbols", fmt.Sprintf("%v", cfg.Symbols)},
		{"Broker", fmt.Sprintf("%s (%s)", cfg.Broker.Name, cfg.Broker.Category)},
		{"Strategy", cfg.Strategy.Name},
		{"Interval", cfg.Strategy.Interval},
		{"Risk per trade", fmt.Sprintf("%.2f%%", cfg.Risk.RiskPerTradeFraction*100)},
		{"Max daily drawdown", fmt.Sprintf("%.2f%%", cfg.Risk.MaxDailyDrawdownFraction*100)},
		{"Max open positions", cfg.Risk.MaxOpenPositions},
		{"Min free margin", fmt.Sprintf("%.0f%%", cfg.Risk.MinFreeMarginRatio*100)},
		{"Max spread", fmt.Sprintf("%.1f points", cfg.Risk.MaxSpreadPoints)},
		{"Fill modes", fmt.Sprintf("%v", cfg.Execution.FillModes)},
		{"Max retries", cfg.Execution.MaxRetries},
		{"Retry backoff", cfg.Execution.RetryBackoff.String()},
		{"Trail multiple", cfg.Execution.TrailMultiple},
		{"Cycle schedule", cfg.Schedule.CycleCron},
		{"Close all on shutdown", cfg.Schedule.CloseAllOnShutdown},
		{"Log directory", cfg.LogDir},
		{"Metrics port", cfg.Monitoring.MetricsPort},
		{"Health port", cfg.Monitoring.HealthPort},
	})
	t.Render()
}
