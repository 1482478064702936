package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lewisgerrard/divafitness-backend/internal/app"
	"github.com/lewisgerrard/divafitness-backend/internal/config"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/queue"
	"github.com/lewisgerrard/divafitness-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(false).Sugar().Fatalw("Invalid configuration", "error", err)
	}
	logger := logging.New(cfg.LogDebug)
	defer logger.Sync()
	log := logger.Sugar()

	if cfg.AMQPURL == "" {
		log.Fatal("AMQP_URL is required for the standalone worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialise application", "error", err)
	}
	defer a.Close()

	q, err := queue.DialAMQP(cfg.AMQPURL, log)
	if err != nil {
		log.Fatalw("Failed to connect to queue", "error", err)
	}
	defer q.Close()

	if err := run(ctx, q, service.NewWorker(a.RetryService, log)); err != nil {
		log.Fatalw("Worker stopped", "error", err)
	}
	log.Info("Worker stopped")
}

// run consumes retry jobs until ctx is cancelled.
func run(ctx context.Context, q queue.Queue, w *service.Worker) error {
	if err := q.Subscribe(ctx, w.Handle); err != nil {
		return err
	}
	w.Log.Infow("Worker running, waiting for retry jobs", "queue", queue.RetryQueueName)
	<-ctx.Done()
	return nil
}
