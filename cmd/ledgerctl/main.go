package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path"

	"bookkeeping/internal/cache"
	"bookkeeping/internal/config"
	"bookkeeping/internal/db"
	"bookkeeping/internal/events"
	"bookkeeping/internal/events/kafka"
	"bookkeeping/internal/services"
	"bookkeeping/internal/store"

	"github.com/google/subcommands"
	"github.com/jmoiron/sqlx"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&migrateCmd{}, "schema")
	commander.Register(&backfillCmd{}, "maintenance")
	commander.Register(&recalcCmd{}, "maintenance")
	commander.Register(&trialBalanceCmd{}, "reports")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// env is what every subcommand that touches the ledger needs.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *sqlx.DB
	users   *store.UserStore
	parties *store.PartyStore
	entries *store.EntryStore
	ledger  *services.LedgerService
	close   func()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()
	logger := cfg.NewLogger()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	e := &env{
		cfg:     cfg,
		logger:  logger,
		db:      database,
		users:   store.NewUserStore(database),
		parties: store.NewPartyStore(database),
		entries: store.NewEntryStore(database),
	}
	closers := []func(){func() { _ = database.Close() }}

	reports := cache.NewMemory(cfg.CacheTTL)
	bus := events.NewBus()
	bus.Subscribe(cache.Invalidator(reports, logger))
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		bus.Subscribe(publisher.Handle)
		closers = append([]func(){func() { _ = publisher.Close() }}, closers...)
	}
	e.ledger = services.NewLedgerService(services.Deps{
		TxRunner: db.NewTxRunner(database, logger),
		Entries:  e.entries,
		Parties:  e.parties,
		Users:    e.users,
		Audit:    store.NewAuditStore(database),
		Reports:  reports,
		Events:   bus,
		Logger:   logger,
	})
	e.close = func() {
		for _, c := range closers {
			c()
		}
	}
	return e, nil
}
