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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/atmx/predengine/internal/api"
	"github.com/atmx/predengine/internal/config"
	"github.com/atmx/predengine/internal/harness"
	"github.com/atmx/predengine/internal/ledger"
	"github.com/atmx/predengine/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference HTTP/WebSocket server in front of a demo LMSR and CLOB market",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := loadConfig()

	st, cleanup, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	defer cleanup()

	preset, err := harness.GetPreset("deep-market")
	if err != nil {
		return err
	}

	hub := api.NewWSHub()
	go hub.Run()

	svc, err := api.NewService(
		"lmsr-demo", preset.Liquidity, preset.Seeds,
		"clob-demo", []ledger.Seed{{ID: "alice", Cash: preset.Seeds[0].Cash}, {ID: "bob", Cash: preset.Seeds[0].Cash}},
		st, hub,
	)
	if err != nil {
		return fmt.Errorf("new service: %w", err)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      svc.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("engine-cli serve listening", "port", cfg.Server.Port, "instance_id", svc.InstanceID())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down engine-cli serve...")
	return srv.Shutdown(ctx)
}

func buildStore(cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		var st store.Store = store.NewPostgresStore(pool)
		cleanup := func() { pool.Close() }
		if cfg.Store.RedisAddr != "" {
			rdb := redis.NewClient(&redis.Options{Addr: cfg.Store.RedisAddr})
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			prevCleanup := cleanup
			cleanup = func() { rdb.Close(); prevCleanup() }
		}
		l1, err := store.NewL1CachedStore(st, cfg.Store.CacheMaxCost)
		if err != nil {
			return nil, nil, err
		}
		return l1, cleanup, nil
	case "sqlite":
		sq, err := store.OpenSQLiteStore(cfg.Store.DSN)
		if err != nil {
			return nil, nil, err
		}
		return sq, func() { sq.Close() }, nil
	default:
		return store.NewMemoryStore(), func() {}, nil
	}
}
