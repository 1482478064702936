package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lewisgerrard/divafitness-backend/internal/handler"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/metrics"
)

type RouterConfig struct {
	ContactRetry   *ContactRetryController
	Deliverability *DeliverabilityController
	// RateLimiter guards the retry endpoints. Nil disables limiting.
	RateLimiter *handler.IPRateLimiter
	Log         *zap.SugaredLogger
}

func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logging.RequestLogger(cfg.Log))
	r.Use(handler.Recoverer(cfg.Log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		handler.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.MetricsHandler())

	r.Route("/contact/retry", func(r chi.Router) {
		if cfg.RateLimiter != nil {
			r.Use(cfg.RateLimiter.Middleware)
		}
		r.Post("/", cfg.ContactRetry.Retry)
		r.Get("/", cfg.ContactRetry.ListEligible)
		r.Post("/queue", cfg.ContactRetry.Enqueue)
	})
	r.Get("/email/deliverability-check", cfg.Deliverability.Check)
	return r
}
