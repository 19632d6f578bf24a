// Schema migration CLI for the risk engine market data store.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/finbrook/riskengine/internal/config"
	"github.com/finbrook/riskengine/internal/db"
)

func main() {
	command := flag.String("command", "migrate", "Command to run: migrate or status")
	configPath := flag.String("config", "", "Path to config file (default: ./configs/config.yaml)")
	migrationsDir := flag.String("migrations", "./migrations", "Path to migrations directory")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	database, err := sql.Open("pgx", cfg.Database.GetDSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Str("host", cfg.Database.Host).Msg("Database unreachable")
	}

	migrator := db.NewMigrator(database, *migrationsDir)

	switch *command {
	case "migrate":
		if err := migrator.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("Migration failed")
		}
	case "status":
		migrations, current, err := migrator.Status(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Status check failed")
		}
		fmt.Printf("Current schema version: %d\n", current)
		fmt.Println("VERSION | STATUS  | DESCRIPTION")
		for _, m := range migrations {
			status := "pending"
			if m.Version <= current {
				status = "applied"
			}
			fmt.Printf("%-7d | %-7s | %s\n", m.Version, status, m.Description)
		}
	default:
		log.Fatal().Str("command", *command).Msg("Unknown command (expected migrate or status)")
	}
}
