package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"

	"bronxbot/internal/bot"
	"bronxbot/internal/config"
	"bronxbot/internal/economy"
	"bronxbot/internal/fishing"
	"bronxbot/internal/shop"
	"bronxbot/internal/store"
	"bronxbot/internal/trade"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadBotFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var st store.Store
	if cfg.UseMemoryStore {
		logger.Warn("running with in-memory store, nothing will persist")
		st = store.NewMemory()
	} else {
		pg, err := store.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("db connect failed", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			logger.Error("migrate failed", "err", err)
			os.Exit(1)
		}
		st = pg
	}

	if err := shop.SeedDefaults(ctx, st); err != nil {
		logger.Error("seed shop failed", "err", err)
		os.Exit(1)
	}

	ledger := economy.NewLedger(st, logger)
	catalog := shop.NewCatalog(st)
	planner := shop.NewPlanner(st, catalog, ledger, logger)
	engine := trade.NewEngine(st, ledger, logger)
	fisher := fishing.NewFisher(st, ledger, logger)

	b, err := bot.New(cfg.DiscordToken, cfg.DefaultPrefix, st, ledger, catalog, planner, engine, fisher, logger)
	if err != nil {
		logger.Error("bot init failed", "err", err)
		os.Exit(1)
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.TradeSweepEvery, func() {
		if n := engine.Sweep(context.Background()); n > 0 {
			logger.Info("expired trades swept", "count", n)
		}
	}); err != nil {
		logger.Error("trade sweep schedule failed", "err", err)
		os.Exit(1)
	}
	if _, err := sched.AddFunc(cfg.InterestCron, func() {
		payInterest(context.Background(), st, ledger, logger)
	}); err != nil {
		logger.Error("interest schedule failed", "err", err)
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	if err := b.Run(ctx); err != nil {
		logger.Error("bot stopped", "err", err)
		os.Exit(1)
	}
}

// payInterest accrues daily interest for every account with savings.
// Only the top slice of accounts is worth visiting; everyone else earns
// the minimum and can collect through activity instead.
func payInterest(ctx context.Context, st store.Store, ledger *economy.Ledger, logger *slog.Logger) {
	accounts, err := st.TopAccounts(ctx, 1000)
	if err != nil {
		logger.Error("interest scan failed", "err", err)
		return
	}
	paid := 0
	for _, acc := range accounts {
		if acc.Bank <= 0 || acc.Frozen {
			continue
		}
		if _, err := ledger.ApplyDailyInterest(ctx, acc.UserID); err != nil {
			logger.Warn("interest accrual failed", "user", acc.UserID, "err", err)
			continue
		}
		paid++
	}
	logger.Info("daily interest paid", "accounts", paid)
}
