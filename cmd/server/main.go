package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lewisgerrard/divafitness-backend/internal/app"
	"github.com/lewisgerrard/divafitness-backend/internal/config"
	"github.com/lewisgerrard/divafitness-backend/internal/controller"
	"github.com/lewisgerrard/divafitness-backend/internal/handler"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("Failed to initialise application", "error", err)
	}
	defer a.Close()

	q, err := app.NewQueue(cfg, log)
	if err != nil {
		log.Fatalw("Failed to set up retry queue", "error", err)
	}
	defer q.Close()
	// Without a broker nobody else consumes, so the server works its own queue.
	if mem, ok := q.(*queue.InMemoryQueue); ok {
		worker := service.NewWorker(a.RetryService, log)
		if err := mem.Subscribe(ctx, worker.Handle); err != nil {
			log.Fatalw("Failed to subscribe retry worker", "error", err)
		}
	}

	trusted, err := handler.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		log.Fatalw("Invalid TRUSTED_PROXIES", "error", err)
	}
	limiter := handler.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	limiter.TrustedProxies = trusted
	defer limiter.Stop()

	router := controller.NewRouter(controller.RouterConfig{
		ContactRetry: &controller.ContactRetryController{
			RetryService: a.RetryService,
			Queue:        q,
			Log:          log.Named("contact-retry"),
		},
		Deliverability: &controller.DeliverabilityController{Analyzer: a.Analyzer},
		RateLimiter:    limiter,
		Log:            log,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("Server running", "addr", cfg.HTTPAddr, "mailProvider", a.Sender.Provider())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Graceful shutdown failed", "error", err)
	}
}
