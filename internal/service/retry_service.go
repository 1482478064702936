package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/lewisgerrard/divafitness-backend/internal/errors"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/metrics"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
	"github.com/lewisgerrard/divafitness-backend/internal/repository"
	"github.com/lewisgerrard/divafitness-backend/internal/retry"
)

const (
	RetryAllWindow = 24 * time.Hour
	RetryAllLimit  = 10
	EligibleWindow = 7 * 24 * time.Hour
	EligibleLimit  = 20
)

// Notifier sends one channel's notification for a submission.
type Notifier interface {
	Notify(ctx context.Context, ch model.Channel, sub model.Submission) (string, error)
}

// RetryService re-sends contact-form notifications. Submissions are processed one
// at a time and each channel is retried independently of the other.
type RetryService struct {
	Repo     repository.SubmissionRepositoryInterface
	Notifier Notifier
	Retry    retry.Config
	Throttle *Throttle
	Log      *zap.SugaredLogger
	Now      func() time.Time
}

func NewRetryService(repo repository.SubmissionRepositoryInterface, notifier Notifier, cfg retry.Config, throttle *Throttle, log *zap.SugaredLogger) *RetryService {
	return &RetryService{
		Repo:     repo,
		Notifier: notifier,
		Retry:    cfg,
		Throttle: throttle,
		Log:      logging.OrNop(log).Named("retry-service"),
		Now:      time.Now,
	}
}

func (s *RetryService) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *RetryService) log() *zap.SugaredLogger {
	return logging.OrNop(s.Log)
}

// RetryAll retries both channels for the most recent submissions of the last 24 hours.
// If ctx is cancelled mid-batch the results gathered so far are returned with the error.
func (s *RetryService) RetryAll(ctx context.Context) ([]model.SubmissionRetryResult, model.RetrySummary, error) {
	subs, err := s.Repo.ListSince(ctx, s.now().Add(-RetryAllWindow), RetryAllLimit)
	if err != nil {
		return nil, model.RetrySummary{}, err
	}
	s.log().Infow("Retrying recent submissions", "count", len(subs))

	results := make([]model.SubmissionRetryResult, 0, len(subs))
	for i, sub := range subs {
		if i > 0 {
			if err := s.Throttle.Wait(ctx); err != nil {
				return results, model.Summarize(results), err
			}
		}
		results = append(results, s.retrySubmission(ctx, sub, model.SelectBoth))
	}
	if err := ctx.Err(); err != nil {
		return results, model.Summarize(results), err
	}

	summary := model.Summarize(results)
	s.log().Infow("Batch retry finished",
		"total", summary.Total,
		"successful", summary.SuccessfulRetries,
		"customerSent", summary.CustomerEmailsSuccess,
		"businessSent", summary.BusinessEmailsSuccess)
	return results, summary, nil
}

// RetryOne retries the selected channels for a single submission. The submission must
// exist and carry a service; otherwise a not-found error is returned and nothing is sent.
func (s *RetryService) RetryOne(ctx context.Context, id int64, selector model.ChannelSelector) (*model.SubmissionRetryResult, error) {
	if id <= 0 {
		return nil, appErrors.NewInvalidInput("Invalid submission id", fmt.Errorf("submission id must be positive, got %d", id))
	}
	sub, err := s.Repo.GetContactSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	result := s.retrySubmission(ctx, *sub, selector)
	return &result, nil
}

// ListEligible returns submissions from the last 7 days that can be retried.
func (s *RetryService) ListEligible(ctx context.Context) ([]model.Submission, error) {
	return s.Repo.ListSince(ctx, s.now().Add(-EligibleWindow), EligibleLimit)
}

func (s *RetryService) retrySubmission(ctx context.Context, sub model.Submission, selector model.ChannelSelector) model.SubmissionRetryResult {
	result := model.SubmissionRetryResult{
		SubmissionID: sub.ID,
		Name:         sub.Name,
		Email:        sub.Email,
	}
	for _, ch := range selector.Channels() {
		result.Record(s.retryChannel(ctx, sub, ch))
	}
	return result
}

func (s *RetryService) retryChannel(ctx context.Context, sub model.Submission, ch model.Channel) (outcome model.RetryOutcome) {
	outcome = model.RetryOutcome{SubmissionID: sub.ID, Channel: ch}
	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Error = fmt.Sprintf("unexpected failure: %v", r)
			s.log().Errorw("Channel send panicked", "submissionID", sub.ID, "channel", ch, "panic", r)
		}
		result := "failure"
		if outcome.Success {
			result = "success"
		}
		metrics.ChannelOutcomes.WithLabelValues(string(ch), result).Inc()
	}()

	cfg := s.Retry
	cfg.Operation = fmt.Sprintf("send_%s_email", ch)
	cfg.Log = s.log()

	attempts := 0
	res, err := retry.Do(ctx, cfg, func(ctx context.Context) (string, error) {
		attempts++
		return s.Notifier.Notify(ctx, ch, sub)
	})
	outcome.Attempts = attempts
	if err != nil {
		outcome.Error = err.Error()
		s.log().Warnw("Channel retry failed", "submissionID", sub.ID, "channel", ch, "attempts", attempts, "error", err)
		return outcome
	}
	outcome.Success = true
	outcome.Attempts = res.Attempts
	outcome.MessageID = res.Value
	s.log().Infow("Channel retry sent", "submissionID", sub.ID, "channel", ch, "attempts", res.Attempts, "messageID", res.Value)
	return outcome
}
