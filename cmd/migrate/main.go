package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/fundlift/donation-server/internal/infra"
)

func main() {
	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	logger := infra.NewLogger(os.Getenv("APP_ENV"), "migrate")
	if databaseURL == "" {
		logger.Fatal().Msg("DATABASE_URL is required")
	}

	migrator, err := infra.NewMigrator(databaseURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer migrator.Close()

	if err := migrator.Up(); err != nil {
		logger.Fatal().Err(err).Msg("migration failed")
	}
	logger.Info().Msg("schema up to date")
}
