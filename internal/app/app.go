// Package app wires configuration into the long-lived components shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/lewisgerrard/divafitness-backend/internal/config"
	"github.com/lewisgerrard/divafitness-backend/internal/db"
	"github.com/lewisgerrard/divafitness-backend/internal/deliverability"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/mail"
	"github.com/lewisgerrard/divafitness-backend/internal/queue"
	"github.com/lewisgerrard/divafitness-backend/internal/repository"
	"github.com/lewisgerrard/divafitness-backend/internal/retry"
	"github.com/lewisgerrard/divafitness-backend/internal/service"
)

type App struct {
	Config       *config.Config
	DB           *sqlx.DB
	Sender       mail.Sender
	Notifier     *mail.Notifier
	RetryService *service.RetryService
	Analyzer     *deliverability.Analyzer
	Log          *zap.SugaredLogger
}

// New connects to the database, runs migrations when enabled and builds the services.
func New(ctx context.Context, cfg *config.Config, log *zap.SugaredLogger) (*App, error) {
	log = logging.OrNop(log)

	if cfg.Database.RunMigrations {
		if err := db.ApplyMigrations(cfg.Database.URL, cfg.Database.MigrationsPath, log); err != nil {
			return nil, err
		}
	}
	conn, err := db.Open(ctx, cfg.Database.URL, log)
	if err != nil {
		return nil, err
	}

	sender, err := NewSender(cfg.Mail, log)
	if err != nil {
		conn.Close()
		return nil, err
	}
	notifier := mail.NewNotifier(sender, cfg.Mail.From, cfg.Mail.BusinessEmail, cfg.Mail.UnsubscribeURL)

	a := &App{
		Config:   cfg,
		DB:       conn,
		Sender:   sender,
		Notifier: notifier,
		Analyzer: NewAnalyzer(cfg, notifier, log),
		Log:      log,
	}
	a.RetryService = service.NewRetryService(
		&repository.SubmissionRepository{DB: conn},
		notifier,
		RetryConfig(cfg.Retry),
		service.NewThrottle(cfg.Retry.BatchPause),
		log,
	)
	return a, nil
}

func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// NewSender picks the mail provider named in the configuration.
func NewSender(cfg config.MailConfig, log *zap.SugaredLogger) (mail.Sender, error) {
	switch cfg.Provider {
	case "resend":
		if cfg.ResendAPIKey == "" {
			return nil, errors.New("RESEND_API_KEY is required when MAIL_PROVIDER=resend")
		}
		return mail.NewResendSender(cfg.ResendBaseURL, cfg.ResendAPIKey, log), nil
	case "smtp":
		if cfg.SMTPHost == "" {
			return nil, errors.New("SMTP_HOST is required when MAIL_PROVIDER=smtp")
		}
		return mail.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, log), nil
	}
	return nil, fmt.Errorf("unknown mail provider %q", cfg.Provider)
}

func RetryConfig(cfg config.RetryConfig) retry.Config {
	rc := retry.DefaultConfig()
	rc.MaxAttempts = cfg.MaxAttempts
	rc.BaseDelay = cfg.BaseDelay
	rc.AttemptTimeout = cfg.AttemptTimeout
	return rc
}

// NewAnalyzer checks the configured domain against the headers the notifier really sends.
func NewAnalyzer(cfg *config.Config, notifier *mail.Notifier, log *zap.SugaredLogger) *deliverability.Analyzer {
	a := deliverability.NewAnalyzer(deliverability.NetResolver{},
		cfg.Deliverability.Domain, cfg.Deliverability.DKIMSelector, cfg.Deliverability.SPFInclude, log)
	a.FromAddress = cfg.Mail.From
	if notifier != nil {
		a.SenderHeaders = notifier.CustomerHeaderNames()
	}
	return a
}

// NewQueue dials RabbitMQ when AMQP_URL is set and falls back to the in-process queue.
func NewQueue(cfg *config.Config, log *zap.SugaredLogger) (queue.Queue, error) {
	if cfg.AMQPURL == "" {
		logging.OrNop(log).Info("AMQP_URL not set, using in-memory retry queue")
		return queue.NewInMemoryQueue(log), nil
	}
	return queue.DialAMQP(cfg.AMQPURL, log)
}
