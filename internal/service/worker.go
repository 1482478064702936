package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	appErrors "github.com/lewisgerrard/divafitness-backend/internal/errors"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
)

// RetryRunner is the part of RetryService the worker needs.
type RetryRunner interface {
	RetryOne(ctx context.Context, id int64, selector model.ChannelSelector) (*model.SubmissionRetryResult, error)
}

// Worker processes queued retry jobs.
type Worker struct {
	Service RetryRunner
	Log     *zap.SugaredLogger
}

func NewWorker(svc RetryRunner, log *zap.SugaredLogger) *Worker {
	return &Worker{Service: svc, Log: logging.OrNop(log).Named("worker")}
}

// Handle runs one job. Jobs for unknown submissions are dropped. A job where no
// channel went out returns an error so the queue can redeliver it.
func (w *Worker) Handle(ctx context.Context, job model.RetryJob) error {
	log := logging.OrNop(w.Log)
	selector := job.EmailType
	if selector == "" {
		selector = model.SelectBoth
	}

	result, err := w.Service.RetryOne(ctx, job.SubmissionID, selector)
	if err != nil {
		switch appErrors.KindOf(err) {
		case appErrors.KindNotFound, appErrors.KindInvalidInput:
			log.Warnw("Dropping retry job", "jobID", job.ID, "submissionID", job.SubmissionID, "error", err)
			return nil
		}
		return err
	}
	if !result.AnySucceeded() {
		return fmt.Errorf("job %s: no channel delivered for submission %d", job.ID, job.SubmissionID)
	}
	log.Infow("Retry job processed",
		"jobID", job.ID,
		"submissionID", job.SubmissionID,
		"customer", result.CustomerEmailSuccess,
		"business", result.BusinessEmailSuccess)
	return nil
}
