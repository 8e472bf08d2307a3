package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Muzikie/melodyne/internal/adapter/event"
	httpadapter "github.com/Muzikie/melodyne/internal/adapter/http"
	"github.com/Muzikie/melodyne/internal/adapter/postgres"
	"github.com/Muzikie/melodyne/internal/adapter/usecase"
	"github.com/Muzikie/melodyne/internal/config"
	"github.com/Muzikie/melodyne/internal/db"
)

// main is the entry point of the melodyne fundraising engine. It loads
// configuration, optionally runs database migrations and demo seeding,
// initializes the database pool, the token ledger and the campaign manager,
// then starts the HTTP server. On receiving a termination signal it
// gracefully shuts down the server.
func main() {
	exitCode := 1
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		} else {
			os.Exit(exitCode)
		}
	}()

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	var logger *slog.Logger
	{
		// Initialise structured logger based on configuration.
		var handler slog.Handler
		level := cfg.Log.SlogLevel()
		switch cfg.Log.SlogFormat() {
		case "json":
			handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		default:
			handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
		}
		logger = slog.New(handler)
	}

	// Optionally run migrations if configured. We use the Psql sub-config.
	if cfg.Psql.RunMigrations {
		if err = db.Migrate(cfg.Psql.Addr.String()); err != nil {
			logger.Error("migration error", slog.Any("error", err))
		} else {
			logger.Info("migrations applied successfully")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.Psql)
	if err != nil {
		logger.Error("database connection error", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The policy row is installed once; afterwards the stored settings are
	// authoritative and governed externally.
	policy := postgres.NewPolicyStore(pool)
	if err = policy.Ensure(ctx, cfg.Policy.Domain()); err != nil {
		logger.Error("policy install error", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Psql.SeedDemo {
		if err = db.Seed(ctx, pool, cfg.Asset.Symbol, cfg.Asset.Custody); err != nil {
			logger.Error("seed error", slog.Any("error", err))
		} else {
			logger.Info("demo data seeded")
		}
	}

	repo := postgres.NewCampaignRepository(pool)
	ledger := postgres.NewTokenLedger(pool, cfg.Asset.Symbol, cfg.Asset.Custody)

	// The creation fee may be denominated in a different token than the
	// funding asset; the stored policy decides which.
	pol, err := policy.Snapshot(ctx)
	if err != nil {
		logger.Error("policy read error", slog.Any("error", err))
		os.Exit(1)
	}
	feeLedger := ledger
	if pol.CreationFeeAsset != "" && pol.CreationFeeAsset != cfg.Asset.Symbol {
		feeLedger = postgres.NewTokenLedger(pool, pol.CreationFeeAsset, cfg.Asset.Custody)
	}

	bus := event.NewBus()
	sink := event.Multi{event.NewSlogSink(logger), bus}
	mgr := usecase.NewCampaignManager(repo, ledger, feeLedger, policy, sink, cfg.Asset.Custody, nil)

	handler := httpadapter.NewHandler(mgr, ledger, bus, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("server listening", slog.Int("port", int(cfg.HTTP.Port)))
		if err = srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	value := <-quit
	exitCode = 128 + int(value.(syscall.Signal))

	ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	} else {
		logger.Info("server gracefully stopped")
	}
}
