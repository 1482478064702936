package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/lewisgerrard/divafitness-backend/internal/errors"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
	"github.com/lewisgerrard/divafitness-backend/internal/retry"
	"github.com/lewisgerrard/divafitness-backend/internal/service"
)

// --- Mock Repository ---

type MockSubmissionRepo struct {
	subs      []model.Submission
	listErr   error
	lastSince time.Time
	lastLimit int
}

func (m *MockSubmissionRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]model.Submission, error) {
	m.lastSince, m.lastLimit = since, limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []model.Submission{}
	for _, s := range m.subs {
		if len(out) == limit {
			break
		}
		if !s.CreatedAt.Before(since) && s.Service != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockSubmissionRepo) GetContactSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	for _, s := range m.subs {
		if s.ID == id && s.Service != "" {
			s := s
			return &s, nil
		}
	}
	return nil, appErrors.NewSubmissionNotFound(id)
}

// --- Mock Notifier ---

type sendKey struct {
	id int64
	ch model.Channel
}

type MockNotifier struct {
	mu    sync.Mutex
	fail  map[sendKey]bool
	calls []sendKey
}

func (m *MockNotifier) Notify(ctx context.Context, ch model.Channel, sub model.Submission) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := sendKey{sub.ID, ch}
	m.calls = append(m.calls, k)
	if m.fail[k] {
		return "", errors.New("provider rejected " + string(ch) + " email")
	}
	return "msg-" + string(ch), nil
}

func (m *MockNotifier) callsFor(id int64) int {
	n := 0
	for _, c := range m.calls {
		if c.id == id {
			n++
		}
	}
	return n
}

var testNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func submission(id int64, age time.Duration) model.Submission {
	return model.Submission{
		ID:        id,
		Name:      "Client",
		Email:     "client@example.com",
		Service:   "Personal Training",
		CreatedAt: testNow.Add(-age),
	}
}

// newService wires a service whose backoff and throttle never block and are recorded.
func newService(repo *MockSubmissionRepo, n *MockNotifier) (*service.RetryService, *[]time.Duration, *[]time.Duration) {
	var backoffs, pauses []time.Duration
	cfg := retry.DefaultConfig()
	cfg.Sleep = func(ctx context.Context, d time.Duration) error {
		backoffs = append(backoffs, d)
		return ctx.Err()
	}
	throttle := &service.Throttle{Pause: time.Second, Sleep: func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return ctx.Err()
	}}
	svc := service.NewRetryService(repo, n, cfg, throttle, nil)
	svc.Now = func() time.Time { return testNow }
	return svc, &backoffs, &pauses
}

func TestRetryOne_ChannelIndependence(t *testing.T) {
	repo := &MockSubmissionRepo{subs: []model.Submission{submission(7, time.Hour)}}
	n := &MockNotifier{fail: map[sendKey]bool{{7, model.ChannelBusiness}: true}}
	svc, backoffs, _ := newService(repo, n)

	result, err := svc.RetryOne(context.Background(), 7, model.SelectBoth)

	require.NoError(t, err)
	assert.True(t, result.AnySucceeded())
	assert.True(t, result.CustomerEmailSuccess)
	assert.False(t, result.BusinessEmailSuccess)
	assert.Contains(t, result.BusinessError, "provider rejected business email")
	require.Len(t, result.Outcomes, 2)
	assert.Equal(t, 1, result.Outcomes[0].Attempts)
	assert.Equal(t, "msg-customer", result.Outcomes[0].MessageID)
	assert.Equal(t, 3, result.Outcomes[1].Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *backoffs)
}

func TestRetryOne_SelectorLimitsChannels(t *testing.T) {
	repo := &MockSubmissionRepo{subs: []model.Submission{submission(7, time.Hour)}}
	n := &MockNotifier{}
	svc, _, _ := newService(repo, n)

	result, err := svc.RetryOne(context.Background(), 7, model.SelectBusiness)

	require.NoError(t, err)
	assert.Equal(t, []sendKey{{7, model.ChannelBusiness}}, n.calls)
	assert.False(t, result.CustomerEmailSuccess)
	assert.True(t, result.BusinessEmailSuccess)
}

func TestRetryOne_NotFound(t *testing.T) {
	newsletter := submission(9, time.Hour)
	newsletter.Service = ""
	repo := &MockSubmissionRepo{subs: []model.Submission{newsletter}}
	n := &MockNotifier{}
	svc, _, _ := newService(repo, n)

	for _, id := range []int64{404, 9} {
		result, err := svc.RetryOne(context.Background(), id, model.SelectBoth)

		assert.Nil(t, result)
		require.Error(t, err)
		assert.True(t, appErrors.IsNotFound(err))
		assert.Equal(t, id, appErrors.As(err).SubjectID)
	}
	assert.Empty(t, n.calls, "sender must not be called for unknown submissions")
}

func TestRetryOne_InvalidID(t *testing.T) {
	svc, _, _ := newService(&MockSubmissionRepo{}, &MockNotifier{})

	_, err := svc.RetryOne(context.Background(), 0, model.SelectBoth)
	assert.Equal(t, appErrors.KindInvalidInput, appErrors.KindOf(err))
}

func TestRetryAll_AggregateCounts(t *testing.T) {
	repo := &MockSubmissionRepo{subs: []model.Submission{
		submission(1, time.Hour),
		submission(2, 2*time.Hour),
		submission(3, 3*time.Hour),
	}}
	n := &MockNotifier{fail: map[sendKey]bool{
		{2, model.ChannelCustomer}: true,
		{3, model.ChannelCustomer}: true,
		{3, model.ChannelBusiness}: true,
	}}
	svc, _, pauses := newService(repo, n)

	results, summary, err := svc.RetryAll(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, model.RetrySummary{Total: 3, SuccessfulRetries: 2, CustomerEmailsSuccess: 1, BusinessEmailsSuccess: 2}, summary)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, *pauses, "pause only between submissions")
	assert.Equal(t, 6, n.callsFor(3), "both failing channels exhaust their attempts")
}

func TestRetryAll_WindowAndLimit(t *testing.T) {
	subs := []model.Submission{}
	for i := int64(1); i <= 12; i++ {
		subs = append(subs, submission(i, time.Duration(i)*time.Minute))
	}
	subs = append(subs, submission(99, 25*time.Hour))
	repo := &MockSubmissionRepo{subs: subs}
	svc, _, _ := newService(repo, &MockNotifier{})

	results, summary, err := svc.RetryAll(context.Background())

	require.NoError(t, err)
	assert.Len(t, results, service.RetryAllLimit)
	assert.Equal(t, 10, summary.SuccessfulRetries)
	assert.Equal(t, testNow.Add(-24*time.Hour), repo.lastSince)
	assert.Equal(t, 10, repo.lastLimit)
}

func TestRetryAll_RepositoryError(t *testing.T) {
	repo := &MockSubmissionRepo{listErr: appErrors.NewExternalFailure("fetch submissions", errors.New("connection refused"))}
	svc, _, _ := newService(repo, &MockNotifier{})

	_, _, err := svc.RetryAll(context.Background())
	assert.Equal(t, appErrors.KindExternalFailure, appErrors.KindOf(err))
}

func TestRetryAll_CancelledDuringThrottle(t *testing.T) {
	repo := &MockSubmissionRepo{subs: []model.Submission{submission(1, time.Hour), submission(2, 2*time.Hour)}}
	n := &MockNotifier{}
	svc, _, _ := newService(repo, n)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Throttle = &service.Throttle{Pause: time.Second, Sleep: func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}}

	results, summary, err := svc.RetryAll(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, results, 1)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 0, n.callsFor(2))
}

func TestRetryAll_CancelledDuringLastSubmission(t *testing.T) {
	repo := &MockSubmissionRepo{subs: []model.Submission{submission(1, time.Hour)}}
	n := &MockNotifier{fail: map[sendKey]bool{
		{1, model.ChannelCustomer}: true,
		{1, model.ChannelBusiness}: true,
	}}
	svc, _, _ := newService(repo, n)
	ctx, cancel := context.WithCancel(context.Background())
	svc.Retry.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	results, summary, err := svc.RetryAll(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.False(t, results[0].AnySucceeded())
	assert.Contains(t, results[0].CustomerError, "context canceled")
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 0, summary.SuccessfulRetries)
}

func TestListEligible(t *testing.T) {
	repo := &MockSubmissionRepo{subs: []model.Submission{submission(1, 24*time.Hour), submission(2, 8*24*time.Hour)}}
	svc, _, _ := newService(repo, &MockNotifier{})

	subs, err := svc.ListEligible(context.Background())

	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(1), subs[0].ID)
	assert.Equal(t, service.EligibleLimit, repo.lastLimit)
}

type panickingNotifier struct{}

func (panickingNotifier) Notify(ctx context.Context, ch model.Channel, sub model.Submission) (string, error) {
	if ch == model.ChannelCustomer {
		panic("template exploded")
	}
	return "ok", nil
}

func TestRetryOne_PanicIsRecordedPerChannel(t *testing.T) {
	repo := &MockSubmissionRepo{subs: []model.Submission{submission(5, time.Hour)}}
	svc := service.NewRetryService(repo, panickingNotifier{}, retry.Config{MaxAttempts: 1}, nil, nil)

	result, err := svc.RetryOne(context.Background(), 5, model.SelectBoth)

	require.NoError(t, err)
	assert.False(t, result.CustomerEmailSuccess)
	assert.Contains(t, result.CustomerError, "template exploded")
	assert.True(t, result.BusinessEmailSuccess)
}

func TestThrottle_Wait(t *testing.T) {
	var nilThrottle *service.Throttle
	assert.NoError(t, nilThrottle.Wait(context.Background()))

	th := service.NewThrottle(10 * time.Millisecond)
	start := time.Now()
	require.NoError(t, th.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, service.NewThrottle(time.Hour).Wait(ctx), context.Canceled)
}
