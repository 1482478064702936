// Package db opens the Postgres connection and applies schema migrations.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lewisgerrard/divafitness-backend/internal/logging"
)

// Open connects and pings the database.
func Open(ctx context.Context, databaseURL string, log *zap.SugaredLogger) (*sqlx.DB, error) {
	if databaseURL == "" {
		return nil, errors.New("database url is empty: set DATABASE_URL or DB_NAME")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	logging.OrNop(log).Named("db").Info("Connected to database")
	return conn, nil
}

// ApplyMigrations runs every pending up migration found under migrationsPath.
func ApplyMigrations(databaseURL, migrationsPath string, log *zap.SugaredLogger) error {
	log = logging.OrNop(log).Named("migrate")
	m, err := migrate.New("file://"+migrationsPath, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No database migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	log.Infow("Database migrations applied", "version", version, "dirty", dirty)
	return nil
}
