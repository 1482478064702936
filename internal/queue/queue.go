// Package queue carries deferred retry jobs from the HTTP API to the worker.
package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/metrics"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
)

// RetryQueueName is the durable broker queue for retry jobs.
const RetryQueueName = "contact_retries"

// DefaultMaxRetries bounds redeliveries of a failing job.
const DefaultMaxRetries = 3

// Handler processes one job. A non-nil error asks for redelivery.
type Handler func(ctx context.Context, job model.RetryJob) error

type Queue interface {
	Publish(ctx context.Context, job model.RetryJob) error
	Subscribe(ctx context.Context, handler Handler) error
	Close() error
}

// NewJob builds a job with a fresh id.
func NewJob(submissionID int64, emailType model.ChannelSelector) model.RetryJob {
	return model.RetryJob{
		ID:           uuid.NewString(),
		SubmissionID: submissionID,
		EmailType:    emailType,
		RequestedAt:  time.Now().UTC(),
	}
}

// InMemoryQueue hands jobs to subscribers in-process, retrying failed jobs with a
// linear backoff. Used when no broker is configured.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   []Handler
	wg         sync.WaitGroup
	MaxRetries int
	// Backoff is the wait after the first failure; it grows linearly.
	Backoff time.Duration
	log     *zap.SugaredLogger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewInMemoryQueue(log *zap.SugaredLogger) *InMemoryQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &InMemoryQueue{
		MaxRetries: DefaultMaxRetries,
		Backoff:    500 * time.Millisecond,
		log:        logging.OrNop(log).Named("queue"),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Publish dispatches the job to every subscriber asynchronously.
func (q *InMemoryQueue) Publish(_ context.Context, job model.RetryJob) error {
	q.mu.Lock()
	handlers := append([]Handler(nil), q.handlers...)
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for %s", RetryQueueName)
	}
	metrics.RetryJobsQueued.WithLabelValues("memory").Inc()
	for _, h := range handlers {
		q.wg.Add(1)
		go q.processJob(h, job)
	}
	return nil
}

func (q *InMemoryQueue) processJob(handler Handler, job model.RetryJob) {
	defer q.wg.Done()
	for retryCount := 0; ; retryCount++ {
		err := handler(q.ctx, job)
		if err == nil {
			metrics.RetryJobsProcessed.WithLabelValues("memory", "success").Inc()
			q.log.Debugw("Job processed", "jobID", job.ID, "submissionID", job.SubmissionID)
			return
		}
		if retryCount >= q.MaxRetries {
			metrics.RetryJobsProcessed.WithLabelValues("memory", "dropped").Inc()
			q.log.Errorw("Job permanently failed", "jobID", job.ID, "attempts", retryCount+1, "error", err)
			return
		}
		metrics.RetryJobsProcessed.WithLabelValues("memory", "requeued").Inc()
		q.log.Warnw("Job failed, retrying", "jobID", job.ID, "attempt", retryCount+1, "maxRetries", q.MaxRetries, "error", err)

		timer := time.NewTimer(time.Duration(retryCount+1) * q.Backoff)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Subscribe registers handler. It does not block.
func (q *InMemoryQueue) Subscribe(_ context.Context, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
	return nil
}

// Wait blocks until every published job has finished.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

// Close abandons pending backoffs and waits for in-flight handlers.
func (q *InMemoryQueue) Close() error {
	q.cancel()
	q.wg.Wait()
	return nil
}
