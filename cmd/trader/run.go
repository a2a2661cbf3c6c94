package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/openfx/trend-trader/internal/broker"
	"github.com/openfx/trend-trader/internal/broker/bybit"
	"github.com/openfx/trend-trader/internal/broker/paper"
	"github.com/openfx/trend-trader/internal/config"
	"github.com/openfx/trend-trader/internal/datafeed"
	"github.com/openfx/trend-trader/internal/engine"
	tradeerrors "github.com/openfx/trend-trader/internal/errors"
	"github.com/openfx/trend-trader/internal/execution"
	"github.com/openfx/trend-trader/internal/logger"
	"github.com/openfx/trend-trader/internal/monitoring"
	"github.com/openfx/trend-trader/internal/notifications"
	"github.com/openfx/trend-trader/internal/risk"
	"github.com/openfx/trend-trader/internal/strategy"
	"github.com/openfx/trend-trader/pkg/reporting"
)

const paperStartBalance = 10000

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the trading engine until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configFile == "" {
			return fmt.Errorf("--config is required")
		}
		loadEnv()

		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return runEngine(cfg)
	},
}

func runEngine(cfg *config.Config) error {
	log, err := logger.New(cfg.LogDir)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	gateway, err := buildGateway(cfg)
	if err != nil {
		return err
	}
	notifier := buildNotifier(cfg)
	health := monitoring.NewHealthChecker()

	breaker := risk.NewDailyBreaker(cfg.Risk.MaxDailyDrawdownFraction, notifier, log)
	riskManager := risk.NewManager(cfg.Risk, gateway, breaker, log)
	orders := execution.NewOrderManager(cfg.Execution, gateway, log, notifier)
	feed := datafeed.NewFeed(gateway, cfg.Strategy.Interval, cfg.Strategy.WindowSize)
	signals, err := strategy.New(cfg.Strategy, feed)
	if err != nil {
		return err
	}
	eng := engine.New(cfg, gateway, feed, signals, riskManager, orders, log, notifier, health)

	journal := reporting.NewJournal()
	console := reporting.NewConsoleReporter()

	startMonitoringServers(cfg, health, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("🚀 Starting engine | broker: %s | symbols: %v | strategy: %s\n",
		cfg.Broker.Name, cfg.Symbols, signals.GetName())
	if err := eng.Start(ctx); err != nil {
		return err
	}

	// A cycle blocked on venue I/O must not overlap the next tick: two
	// concurrent cycles would double-submit on the same signal.
	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = scheduler.AddFunc(cfg.Schedule.CycleCron, func() {
		report, err := eng.RunCycle(ctx)
		if err != nil {
			log.LogError("cycle", err)
			var te *tradeerrors.TradeError
			if errors.As(err, &te) && !te.IsRetryable() {
				fmt.Printf("❌ Cycle failed: %v\n", err)
			}
			return
		}
		journal.RecordCycle(report)
		console.PrintCycle(report)
	})
	if err != nil {
		return fmt.Errorf("invalid cycle_cron %q: %w", cfg.Schedule.CycleCron, err)
	}
	scheduler.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Printf("\n🛑 Received %s, shutting down...\n", sig)

	// Let the in-flight cycle finish before closing anything.
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(cfg.Schedule.ShutdownTimeout.Std()):
		log.Warning("Shutdown timeout waiting for running cycle")
	}

	if err := eng.Stop(context.Background()); err != nil {
		log.LogError("engine stop", err)
	}

	console.PrintSessionSummary(journal)
	journalPath := fmt.Sprintf("%s/session_%s.xlsx", cfg.LogDir, journal.StartedAt().Format("2006-01-02_150405"))
	if err := reporting.NewExcelReporter().WriteJournal(journal, journalPath); err != nil {
		log.LogError("write journal", err)
	} else {
		fmt.Printf("📄 Session journal written to %s\n", journalPath)
	}
	return nil
}

func buildGateway(cfg *config.Config) (broker.Gateway, error) {
	switch cfg.Broker.Name {
	case "bybit":
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return nil, fmt.Errorf("BYBIT_API_KEY and BYBIT_API_SECRET must be set for the bybit broker")
		}
		return bybit.NewGateway(bybit.Config{
			APIKey:    apiKey,
			APISecret: apiSecret,
			Category:  cfg.Broker.Category,
			Testnet:   cfg.Broker.Testnet,
			Demo:      cfg.Broker.Demo,
		}), nil
	case "paper":
		return paper.NewGateway(paperStartBalance), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", cfg.Broker.Name)
	}
}

func buildNotifier(cfg *config.Config) notifications.Notifier {
	n := cfg.Notifications
	if n == nil || !n.Enabled {
		return notifications.Nop{}
	}

	token := n.TelegramToken
	if token == "" {
		token = os.Getenv("TELEGRAM_BOT_TOKEN")
	}
	chat := n.TelegramChat
	if chat == "" {
		chat = os.Getenv("TELEGRAM_CHAT_ID")
	}
	if token == "" || chat == "" {
		fmt.Println("⚠️  Notifications enabled but Telegram credentials missing, alerts disabled")
		return notifications.Nop{}
	}
	return notifications.NewTelegramNotifier(token, chat)
}

func startMonitoringServers(cfg *config.Config, health *monitoring.HealthChecker, log *logger.Logger) {
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort)
		mux := http.NewServeMux()
		mux.Handle("/metrics", monitoring.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.LogError("metrics server", err)
		}
	}()
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Monitoring.HealthPort)
		mux := http.NewServeMux()
		mux.Handle("/health", health)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.LogError("health server", err)
		}
	}()
}
