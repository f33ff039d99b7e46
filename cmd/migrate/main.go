package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"streampass/internal/config"
	"streampass/internal/database"
	"streampass/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	logger.Info().Str("host", cfg.DBHost).Int("port", cfg.DBPort).Str("database", cfg.DBName).Msg("Connecting for migrations")
	m, err := database.NewMigrator(cfg.DatabaseURL())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize migrations")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn().AnErr("source", srcErr).AnErr("database", dbErr).Msg("Failed to close migrator")
		}
	}()

	switch os.Args[1] {
	case "up":
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			logger.Info().Msg("No changes: database is already up to date")
		case err != nil:
			logger.Fatal().Err(err).Msg("Failed to apply migrations")
		default:
			logger.Info().Msg("Migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			logger.Fatal().Err(err).Msg("Failed to roll back the last migration")
		}
		logger.Info().Msg("Rolled back the last migration")

	case "goto":
		if len(os.Args) < 3 {
			logger.Fatal().Msg("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid version number")
		}
		if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal().Err(err).Uint64("version", version).Msg("Failed to migrate")
		}
		logger.Info().Uint64("version", version).Msg("Database is at version")

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			logger.Info().Msg("No migrations have been applied")
		case err != nil:
			logger.Fatal().Err(err).Msg("Failed to read migration version")
		default:
			logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current migration version")
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: migrate <command>")
	fmt.Println("Commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - show the current migration version")
}
