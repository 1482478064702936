package main

import (
	"context"
	"os"

	"github.com/lewisgerrard/divafitness-backend/internal/config"
	"github.com/lewisgerrard/divafitness-backend/internal/db"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
)

var seedFiles = []string{
	"seed/submissions.sql",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(false).Sugar().Fatalw("Invalid configuration", "error", err)
	}
	log := logging.New(cfg.LogDebug).Sugar()
	ctx := context.Background()

	if err := db.ApplyMigrations(cfg.Database.URL, cfg.Database.MigrationsPath, log); err != nil {
		log.Fatalw("Migration failed", "error", err)
	}
	conn, err := db.Open(ctx, cfg.Database.URL, log)
	if err != nil {
		log.Fatalw("Database unavailable", "error", err)
	}
	defer conn.Close()

	for _, file := range seedFiles {
		content, err := os.ReadFile(file)
		if err != nil {
			log.Fatalw("Failed to read seed file", "file", file, "error", err)
		}
		if _, err := conn.ExecContext(ctx, string(content)); err != nil {
			log.Fatalw("Failed to execute seed file", "file", file, "error", err)
		}
		log.Infow("Seeded", "file", file)
	}
	log.Info("Database seeding completed successfully")
}
