// Execution Engine - single-writer order/position state machine with
// pluggable venue and storage backends.
//
// Architecture: Venue events -> Engine.ApplyEvent -> Database + Subscribers
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nova-trading/execengine/engine"
	"github.com/nova-trading/execengine/internal/config"
	"github.com/nova-trading/execengine/notify"
	"github.com/nova-trading/execengine/store"
	"github.com/nova-trading/execengine/store/memstore"
	"github.com/nova-trading/execengine/store/sqlstore"
	"github.com/nova-trading/execengine/venue"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

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

	log.Info().Str("version", version).Msg("execution engine starting")

	db, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	venueClient := venue.New(cfg.VenueWSURL)

	eng := engine.New(db, venueClient, cfg.CommandTimeout)

	if err := eng.Recover(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to recover persisted execution state")
	}

	if cfg.TelegramToken != "" {
		notifier, err := notify.New(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize telegram notifier, continuing without it")
		} else {
			eng.Subscribe(notifier)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := venueClient.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to venue")
	}

	go eng.Run(ctx)

	log.Info().Msg("engine running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	cancel()
	eng.Stop()
	if err := venueClient.Dispose(); err != nil {
		log.Error().Err(err).Msg("error disposing venue client")
	}

	log.Info().Msg("shutdown complete")
}

// openStore returns a sqlstore backed by cfg.DatabaseDSN, or an
// in-process memstore when it's empty. With sqlstore, orders and
// positions are retained across restarts; the memstore keeps them only
// for the life of the process. Nothing here flushes the store on
// shutdown.
func openStore(cfg *config.Config) (store.Database, error) {
	if cfg.DatabaseDSN == "" {
		log.Info().Msg("no DATABASE_DSN set, using in-memory store")
		return memstore.New(), nil
	}
	return sqlstore.New(cfg.DatabaseDSN, cfg.PersistenceRetryAttempts, cfg.PersistenceRetryBaseDelay)
}
