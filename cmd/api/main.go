package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unicarbon-backend/internal/config"
	"unicarbon-backend/internal/interfaces/router"
	"unicarbon-backend/internal/pkg/logger"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	logger.Setup(cfg)

	app, db, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("app create")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal().Err(err).Msg("ledger database handle")
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatal().Err(err).Msg("ledger database connection failed")
	}
	log.Info().Bool("postgres", cfg.DatabaseURL != "").Msg("Ledger database connected")
	if rdb != nil {
		log.Info().Msg("Redis connected")
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msgf("Server running at http://localhost:%s", cfg.Port)
		log.Info().Msgf("Health check: http://localhost:%s/health/json", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	_ = sqlDB.Close()
}
