package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") != "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	config, err := loadConfig(getEnv("CONFIG_PATH", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := setupDatabase(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up database")
	}
	defer pool.Close()

	rdb, err := setupRedis(ctx, config.Redis.Addr)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up redis")
	}
	defer rdb.Close()

	services, err := setupServices(ctx, config, pool, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up services")
	}
	defer services.Publisher.Close()
	defer services.Consumer.Close()

	go services.Hub.Run(ctx)
	go func() {
		if err := services.Consumer.Run(ctx); err != nil {
			log.Error().Err(err).Msg("event consumer exited")
		}
	}()

	server := setupServer(config.Server.Addr, services)
	go func() {
		log.Info().Str("addr", config.Server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
