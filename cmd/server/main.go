package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookkeeping/internal/cache"
	"bookkeeping/internal/config"
	"bookkeeping/internal/db"
	"bookkeeping/internal/events"
	"bookkeeping/internal/events/kafka"
	"bookkeeping/internal/handlers"
	"bookkeeping/internal/services"
	"bookkeeping/internal/store"
	"bookkeeping/internal/websocket"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	users := store.NewUserStore(database)
	parties := store.NewPartyStore(database)
	entries := store.NewEntryStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database, logger)

	reports := newReportCache(ctx, cfg, logger)
	hub := websocket.NewHub()
	bus := events.NewBus()
	bus.Subscribe(cache.Invalidator(reports, logger))
	bus.Subscribe(hub.Handle)
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer publisher.Close()
		bus.Subscribe(publisher.Handle)
		logger.Info("publishing party events", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	ledger := services.NewLedgerService(services.Deps{
		TxRunner: txRunner,
		Entries:  entries,
		Parties:  parties,
		Users:    users,
		Audit:    audit,
		Reports:  reports,
		Events:   bus,
		Logger:   logger,
	})

	handler := handlers.New(txRunner, cfg, users, audit, ledger, hub, logger)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("ledger API listening", "addr", server.Addr, "env", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// newReportCache uses redis when REDIS_ADDR is set and reachable, and falls back to a
// per-process cache otherwise.
func newReportCache(ctx context.Context, cfg config.Config, logger *slog.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(cfg.CacheTTL)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, using in-process report cache", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return cache.NewMemory(cfg.CacheTTL)
	}
	logger.Info("report cache on redis", "addr", cfg.RedisAddr)
	return cache.NewRedis(client, cfg.CacheTTL)
}
