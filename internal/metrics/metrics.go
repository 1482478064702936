package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Retry executor
	RetryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_retry_attempts_total",
		Help: "Total number of send attempts made by the retry executor",
	}, []string{"operation"})
	RetryExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_retry_exhausted_total",
		Help: "Total number of operations that failed on every attempt",
	}, []string{"operation"})

	// Per-channel outcomes of the retry orchestrator
	ChannelOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_retry_channel_outcomes_total",
		Help: "Outcomes of contact email retries grouped by channel and result",
	}, []string{"channel", "result"})

	// Mail provider
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_mail_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"provider"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_mail_send_failure_total",
		Help: "Total number of failed mail sends",
	}, []string{"provider"})

	// Retry job queue
	RetryJobsQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_retry_jobs_queued_total",
		Help: "Total number of retry jobs published",
	}, []string{"backend"})
	RetryJobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contact_retry_jobs_processed_total",
		Help: "Total number of retry jobs consumed grouped by result",
	}, []string{"backend", "result"})

	// Deliverability
	DeliverabilitySpamScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deliverability_spam_score",
		Help: "Most recent heuristic spam score (0-100) per sending domain",
	}, []string{"domain"})
	DeliverabilityChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deliverability_checks_total",
		Help: "Deliverability checks performed grouped by type and status",
	}, []string{"type", "status"})

	RateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests rejected by the per-IP rate limiter",
	}, []string{"path"})
)

func init() {
	prometheus.MustRegister(RetryAttempts)
	prometheus.MustRegister(RetryExhausted)
	prometheus.MustRegister(ChannelOutcomes)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(RetryJobsQueued)
	prometheus.MustRegister(RetryJobsProcessed)
	prometheus.MustRegister(DeliverabilitySpamScore)
	prometheus.MustRegister(DeliverabilityChecks)
	prometheus.MustRegister(RateLimited)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
