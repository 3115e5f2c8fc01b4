// tradebot runs the autonomous binary-prediction trading agent described
// in spec.md: a clock-synchronized orchestrator drives 15m and 5m
// signal/order pipelines against a reconciled multi-source price feed,
// with an arbitrage scanner, late-window scanner, market-maker, and
// hedge engine as auxiliary lanes. Architecture mirrors the teacher's
// cmd/polybot/main.go bootstrap: load config, wire dependencies, start
// engines, wait for a shutdown signal, stop gracefully.
package main

import (
	"context"
	"flag"
	"os"
	gosignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/oraclewindow/tradebot/internal/clob"
	"github.com/oraclewindow/tradebot/internal/config"
	"github.com/oraclewindow/tradebot/internal/dashboard"
	"github.com/oraclewindow/tradebot/internal/engines"
	"github.com/oraclewindow/tradebot/internal/executor"
	"github.com/oraclewindow/tradebot/internal/oracle"
	"github.com/oraclewindow/tradebot/internal/risk"
	tradesignal "github.com/oraclewindow/tradebot/internal/signal"
	"github.com/oraclewindow/tradebot/internal/scheduler"
	"github.com/oraclewindow/tradebot/internal/storage"
)

const version = "1.0.0"

const shutdownGrace = 10 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags := parseFlags()

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	applyFlags(cfg, flags)

	log.Info().Str("version", version).Str("bankroll", cfg.Bankroll.String()).Msg("tradebot starting")

	clobClient, err := clob.NewClient(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize CLOB client")
	}

	feed := oracle.NewFeed(time.Duration(cfg.StaleMs) * time.Millisecond)
	riskManager := risk.NewManager(cfg)
	orderExec := executor.New(clobClient)
	sigEngine := tradesignal.NewEngine(tradesignal.DefaultWeights(), cfg.MinConfidence, cfg.DeadZonePct, cfg.MinVolPct, cfg.MaxVolPct, 1.0)

	decisionLog, err := storage.OpenJSONL(cfg.DataDir, "decisions.jsonl")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open decision log")
	}
	errorLog, err := storage.OpenJSONL(cfg.DataDir, "errors.jsonl")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open error log")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := buildRegistry(cfg, feed, sigEngine, riskManager, orderExec, clobClient, decisionLog, errorLog)

	if cfg.EnableDashboard {
		dash := dashboard.NewServer(cfg.DashboardPort, feed)
		go dash.Serve(ctx)
	}

	go oracle.RunPrimary(ctx, cfg.OracleWSURL, "BTC", feed)
	for i, url := range cfg.SecondaryURLs {
		name := "secondary_1"
		parse := oracle.ParseBinanceTicker
		if i == 1 {
			name = "secondary_2"
			parse = oracle.ParseCoinbaseSpot
		}
		go oracle.RunSecondaryPoller(ctx, name, url, "BTC", 2*time.Second, parse, feed)
	}

	if errs := registry.StartAll(ctx); len(errs) > 0 {
		for _, e := range errs {
			log.Error().Err(e).Msg("engine failed to start")
		}
	}

	quit := make(chan os.Signal, 1)
	gosignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, stopping engines")
	stopped := make(chan struct{})
	go func() {
		registry.StopAll()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(shutdownGrace):
		log.Warn().Msg("shutdown grace period elapsed, exiting anyway")
	}

	cancel()
	log.Info().Msg("tradebot stopped")
}

type cliFlags struct {
	bankroll         string
	cycles           int
	arb              bool
	arbOnly          bool
	lateWindow       bool
	fiveMin          bool
	mm               bool
	hedge            bool
	dashboard        bool
	syncLiveBankroll bool
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.bankroll, "bankroll", "", "override starting bankroll (USD)")
	flag.IntVar(&f.cycles, "cycles", 0, "window count stored in config (not enforced: the run continues until a shutdown signal)")
	flag.BoolVar(&f.arb, "arb", false, "enable arbitrage scanner")
	flag.BoolVar(&f.arbOnly, "arb-only", false, "run only the arbitrage scanner")
	flag.BoolVar(&f.lateWindow, "late-window", false, "enable late-window scanner")
	flag.BoolVar(&f.fiveMin, "5m", false, "enable 5-minute window lane")
	flag.BoolVar(&f.mm, "mm", false, "enable market-making engine")
	flag.BoolVar(&f.hedge, "hedge", false, "enable hedge engine")
	flag.BoolVar(&f.dashboard, "dashboard", false, "enable local dashboard server")
	flag.BoolVar(&f.syncLiveBankroll, "sync-live-bankroll", false, "stored in config; the bankroll is not read from the CLOB balance")
	flag.Parse()
	return f
}

func applyFlags(cfg *config.Config, f cliFlags) {
	if f.bankroll != "" {
		if d, err := decimal.NewFromString(f.bankroll); err == nil {
			cfg.Bankroll = d
		}
	}
	if f.cycles > 0 {
		cfg.Cycles = f.cycles
	}
	cfg.EnableArb = cfg.EnableArb || f.arb
	cfg.ArbOnly = cfg.ArbOnly || f.arbOnly
	cfg.EnableLateWindow = cfg.EnableLateWindow || f.lateWindow
	cfg.Enable5m = cfg.Enable5m || f.fiveMin
	cfg.EnableMM = cfg.EnableMM || f.mm
	cfg.EnableHedge = cfg.EnableHedge || f.hedge
	cfg.EnableDashboard = cfg.EnableDashboard || f.dashboard
	cfg.SyncLiveBankroll = cfg.SyncLiveBankroll || f.syncLiveBankroll
}

func buildRegistry(cfg *config.Config, feed *oracle.Feed, sigEngine *tradesignal.Engine, riskManager *risk.Manager, orderExec *executor.Executor, clobClient *clob.Client, decisionLog, errorLog *storage.JSONLStore) *scheduler.Registry {
	reg := scheduler.NewRegistry()
	overlap := scheduler.NewOverlapTracker()
	tracker := engines.NewWindowTracker()

	reg.Add(engines.NewWindowEngine(engines.WindowEngineParams{
		Name:          "15m",
		Bucket:        "15m",
		Timeframe:     15 * time.Minute,
		EntryLead:     cfg.EntryLead15m,
		StrategyDelay: cfg.StrategyDelay,
		EntryWindow:   cfg.EntryWindow15m,
		Feed:          feed,
		Signal:        sigEngine,
		Risk:          riskManager,
		Executor:      orderExec,
		CLOB:          clobClient,
		Overlap:       overlap,
		Tracker:       tracker,
		DecisionLog:   decisionLog,
		ErrorLog:      errorLog,
	}))

	if cfg.Enable5m {
		reg.Add(engines.NewWindowEngine(engines.WindowEngineParams{
			Name:          "5m",
			Bucket:        "5m",
			Timeframe:     5 * time.Minute,
			EntryLead:     cfg.EntryLead5m,
			StrategyDelay: cfg.StrategyDelay,
			EntryWindow:   cfg.EntryWindow5m,
			Feed:          feed,
			Signal:        sigEngine,
			Risk:          riskManager,
			Executor:      orderExec,
			CLOB:          clobClient,
			Overlap:       overlap,
			Tracker:       tracker,
			DecisionLog:   decisionLog,
			ErrorLog:      errorLog,
		}))
	}

	if cfg.EnableArb || cfg.ArbOnly {
		reg.Add(engines.NewArbEngine(clobClient, cfg, decisionLog))
	}
	if cfg.EnableLateWindow && !cfg.ArbOnly {
		reg.Add(engines.NewLateWindowEngine(tracker, feed, clobClient, riskManager, orderExec, cfg, decisionLog))
	}
	if cfg.EnableMM && !cfg.ArbOnly {
		reg.Add(engines.NewMarketMakerEngine(feed, clobClient, riskManager, cfg))
	}
	if cfg.EnableHedge && !cfg.ArbOnly {
		reg.Add(engines.NewHedgeEngine(clobClient, riskManager, cfg))
	}

	return reg
}
