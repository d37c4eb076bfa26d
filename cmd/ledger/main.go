package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"CandleLedger/internal/binance"
	"CandleLedger/internal/config"
	"CandleLedger/internal/ingest"
	"CandleLedger/internal/notifier"
	"CandleLedger/internal/portfolio"
	"CandleLedger/internal/scheduler"
	"CandleLedger/internal/store"
)

const usage = `usage: ledger <command>

commands:
  ingest    bootstrap: fetch one recent window of candles per symbol
  update    incremental: resume each symbol from its last stored candle
  run       loop update + snapshot on the configured cron schedule
  snapshot  compute a valuation, store it, report max drawdown
  pnl       print the current valuation without storing anything
  seed      replace positions from the config file's portfolio.positions`

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("[FATAL] create data dir: %v", err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		log.Fatalf("[FATAL] open store: %v", err)
	}
	defer st.Close()

	client := binance.NewClient(cfg.Binance.BaseURLs, cfg.Proxy)
	ing := ingest.NewIngestor(client, st, ingest.Config{
		Symbols:    cfg.Ingest.Symbols,
		Interval:   cfg.Ingest.Interval,
		BatchLimit: cfg.Ingest.BatchLimit,
		Lookback:   time.Duration(cfg.Ingest.LookbackHours) * time.Hour,
	})
	snapper := portfolio.NewSnapshotter(st, cfg.Ingest.Interval, cfg.Portfolio.Cash, cfg.Portfolio.DrawdownLookback)

	switch cmd {
	case "ingest":
		total, failures := ing.Bootstrap()
		log.Printf("[INFO] bootstrap done: +%d bars, %d symbols failed", total, len(failures))

	case "update":
		total, failures := ing.RunOnce()
		log.Printf("[INFO] update done: +%d bars, %d symbols failed", total, len(failures))

	case "run":
		runLoop(cfg, ing, snapper)

	case "snapshot":
		runSnapshot(snapper)

	case "pnl":
		printPnL(snapper)

	case "seed":
		seedPositions(st, cfg)

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}
}

func runLoop(cfg *config.Config, ing *ingest.Ingestor, snapper *portfolio.Snapshotter) {
	var n notifier.Notifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		n = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy)
		log.Println("[INFO] telegram reporting enabled")
	} else {
		n = notifier.NewNoopNotifier()
	}

	sched := scheduler.NewScheduler(ing, snapper, n)
	if err := sched.Register(cfg.Schedule.UpdateCron); err != nil {
		log.Fatalf("[FATAL] register schedule: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Println("[INFO] RUN_ON_START enabled, executing cycle now")
		go sched.Cycle()
	}

	log.Println("[INFO] CandleLedger is running. Press Ctrl+C to stop.")
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("[INFO] shutdown signal received, stopping...")
}

func runSnapshot(snapper *portfolio.Snapshotter) {
	snap, err := snapper.Take()
	if err != nil {
		log.Fatalf("[FATAL] snapshot: %v", err)
	}
	fmt.Printf("Snapshot written @ %d | equity=%.2f cash=%.2f unreal=%.2f exposure=%.2f\n",
		snap.TS, snap.Equity, snap.Cash, snap.Unrealized, snap.Exposure)

	dd, points, err := snapper.DrawdownReport()
	if err != nil {
		log.Fatalf("[FATAL] drawdown report: %v", err)
	}
	if points < 2 {
		fmt.Println("Not enough snapshots yet for drawdown.")
		return
	}
	fmt.Printf("Max drawdown: %.2f (%.2f%%) from %d to %d\n", dd.Abs, dd.Pct*100, dd.PeakTS, dd.TroughTS)
}

func printPnL(snapper *portfolio.Snapshotter) {
	val, err := snapper.Valuation()
	if err != nil {
		log.Fatalf("[FATAL] compute pnl: %v", err)
	}
	fmt.Printf("Equity:     %.2f\n", val.Equity)
	fmt.Printf("Cash:       %.2f\n", val.Cash)
	fmt.Printf("Unrealized: %.2f\n", val.Unrealized)
	fmt.Printf("Exposure:   %.2f\n", val.Exposure)
	for ticker, p := range val.ByTicker {
		fmt.Printf("  %-10s px=%.4f qty=%.4f avg=%.4f uPnL=%.2f mv=%.2f\n",
			ticker, p.Price, p.Qty, p.AvgPrice, p.Unrealized, p.MarketValue)
	}
}

func seedPositions(st store.Store, cfg *config.Config) {
	if len(cfg.Portfolio.Positions) == 0 {
		log.Println("[WARN] no portfolio.positions configured, nothing to seed")
		return
	}
	for _, p := range cfg.Portfolio.Positions {
		if err := st.ReplacePosition(p.Ticker, "crypto", p.Qty, p.AvgPrice); err != nil {
			log.Fatalf("[FATAL] seed %s: %v", p.Ticker, err)
		}
		log.Printf("[INFO] seeded position %s qty=%.4f avg=%.4f", p.Ticker, p.Qty, p.AvgPrice)
	}
}
