package main

import (
	"flag"

	"github.com/noah-isme/backend-licence/internal/app"
	"github.com/noah-isme/backend-licence/internal/config"
	"github.com/noah-isme/backend-licence/internal/obs"
)

func main() {
	steps := flag.Int("steps", 0, "number of versions to move; negative rolls back, zero applies all")
	flag.Parse()

	logger := obs.NewLogger("console", "info")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	version, err := app.RunMigrations(cfg.MigrationsPath, cfg.DatabaseURL, *steps)
	if err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}
	logger.Info().Uint("version", version).Msg("migrations applied")
}
