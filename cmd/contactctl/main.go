package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lewisgerrard/divafitness-backend/internal/app"
	"github.com/lewisgerrard/divafitness-backend/internal/cli"
	"github.com/lewisgerrard/divafitness-backend/internal/config"
	"github.com/lewisgerrard/divafitness-backend/internal/db"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/mail"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogDebug)
	defer logger.Sync()
	log := logger.Sugar()

	var a *app.App
	cli.Connect = func(ctx context.Context) error {
		var err error
		a, err = app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		cli.Retrier = a.RetryService
		return nil
	}
	cli.Migrate = func() error {
		return db.ApplyMigrations(cfg.Database.URL, cfg.Database.MigrationsPath, log)
	}
	// The analyzer only needs the headers the notifier would set, not a working sender.
	notifier := mail.NewNotifier(nil, cfg.Mail.From, cfg.Mail.BusinessEmail, cfg.Mail.UnsubscribeURL)
	cli.Analyzer = app.NewAnalyzer(cfg, notifier, log)

	err = cli.Execute()
	if a != nil {
		a.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
