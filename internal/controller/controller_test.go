package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisgerrard/divafitness-backend/internal/controller"
	"github.com/lewisgerrard/divafitness-backend/internal/deliverability"
	appErrors "github.com/lewisgerrard/divafitness-backend/internal/errors"
	"github.com/lewisgerrard/divafitness-backend/internal/handler"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
	"github.com/lewisgerrard/divafitness-backend/internal/queue"
	"github.com/lewisgerrard/divafitness-backend/internal/retry"
	"github.com/lewisgerrard/divafitness-backend/internal/service"
)

// --- Mocks ---

type MockSubmissionRepo struct {
	subs []model.Submission
}

func (m *MockSubmissionRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]model.Submission, error) {
	out := []model.Submission{}
	for _, s := range m.subs {
		if !s.CreatedAt.Before(since) && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MockSubmissionRepo) GetContactSubmission(ctx context.Context, id int64) (*model.Submission, error) {
	for _, s := range m.subs {
		if s.ID == id {
			s := s
			return &s, nil
		}
	}
	return nil, appErrors.NewSubmissionNotFound(id)
}

type MockNotifier struct {
	mu          sync.Mutex
	failChannel model.Channel
	calls       int
}

func (m *MockNotifier) Notify(ctx context.Context, ch model.Channel, sub model.Submission) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if ch == m.failChannel {
		return "", errors.New("provider unavailable")
	}
	return "id-" + string(ch), nil
}

type MockQueue struct {
	published []model.RetryJob
	err       error
}

func (m *MockQueue) Publish(ctx context.Context, job model.RetryJob) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, job)
	return nil
}
func (m *MockQueue) Subscribe(ctx context.Context, h queue.Handler) error { return nil }
func (m *MockQueue) Close() error { return nil }

type testEnv struct {
	router   http.Handler
	notifier *MockNotifier
	queue    *MockQueue
}

func newEnv(t *testing.T, subs ...model.Submission) *testEnv {
	t.Helper()
	n := &MockNotifier{}
	q := &MockQueue{}
	cfg := retry.Config{MaxAttempts: 2, BaseDelay: time.Millisecond, Sleep: func(ctx context.Context, d time.Duration) error { return nil }}
	svc := service.NewRetryService(&MockSubmissionRepo{subs: subs}, n, cfg, &service.Throttle{}, nil)

	analyzer := deliverability.NewAnalyzer(deliverability.FixtureResolver{
		Errors: map[string]error{"divafitness.co.uk": errors.New("SERVFAIL")},
	}, "divafitness.co.uk", "resend", "amazonses.com", nil)

	router := controller.NewRouter(controller.RouterConfig{
		ContactRetry:   &controller.ContactRetryController{RetryService: svc, Queue: q},
		Deliverability: &controller.DeliverabilityController{Analyzer: analyzer},
	})
	return &testEnv{router: router, notifier: n, queue: q}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var res map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&res), "body must be JSON")
	return w, res
}

func recent(id int64) model.Submission {
	return model.Submission{ID: id, Name: "Jane", Email: "jane@example.com", Service: "Nutrition", CreatedAt: time.Now().Add(-time.Hour)}
}

// --- Tests ---

func TestRetry_AllWithEmptyBody(t *testing.T) {
	env := newEnv(t, recent(1), recent(2))

	for _, body := range []string{"", "{}"} {
		w, res := env.do(t, http.MethodPost, "/contact/retry", body)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, true, res["success"])
		assert.Len(t, res["results"], 2)
		summary := res["summary"].(map[string]any)
		assert.EqualValues(t, 2, summary["total"])
		assert.EqualValues(t, 2, summary["successfulRetries"])
	}
}

func TestRetry_OneChannelIndependence(t *testing.T) {
	env := newEnv(t, recent(7))
	env.notifier.failChannel = model.ChannelBusiness

	w, res := env.do(t, http.MethodPost, "/contact/retry", `{"submissionId": 7, "emailType": "both"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, "partial", res["status"])
	result := res["result"].(map[string]any)
	assert.Equal(t, true, result["customerEmailSuccess"])
	assert.Equal(t, false, result["businessEmailSuccess"])
	assert.Equal(t, "provider unavailable", result["businessError"])
}

func TestRetry_StringSubmissionIDAndSelector(t *testing.T) {
	env := newEnv(t, recent(7))

	w, res := env.do(t, http.MethodPost, "/contact/retry", `{"submissionId": "7", "emailType": "customer"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "succeeded", res["status"])
	assert.Equal(t, 1, env.notifier.calls)
}

func TestRetry_NotFound(t *testing.T) {
	env := newEnv(t, recent(7))

	w, res := env.do(t, http.MethodPost, "/contact/retry", `{"submissionId": 404}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "Submission not found", res["error"])
	assert.NotEmpty(t, res["details"])
	assert.EqualValues(t, 404, res["submissionId"])
	assert.Equal(t, 0, env.notifier.calls)
}

func TestRetry_BadInput(t *testing.T) {
	env := newEnv(t, recent(7))

	for _, body := range []string{`{"submissionId": -1}`, `{"submissionId": 7, "emailType": "sms"}`, `not json`} {
		w, res := env.do(t, http.MethodPost, "/contact/retry", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
		assert.Equal(t, "invalid_input", res["kind"])
	}
	assert.Equal(t, 0, env.notifier.calls)
}

func TestListEligible(t *testing.T) {
	old := recent(2)
	old.CreatedAt = time.Now().Add(-8 * 24 * time.Hour)
	env := newEnv(t, recent(1), old)

	w, res := env.do(t, http.MethodGet, "/contact/retry", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, res["count"])
	assert.Contains(t, res, "instructions")
}

func TestEnqueue(t *testing.T) {
	env := newEnv(t, recent(7))

	w, res := env.do(t, http.MethodPost, "/contact/retry/queue", `{"submissionId": 7, "emailType": "business"}`)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, env.queue.published, 1)
	job := env.queue.published[0]
	assert.Equal(t, job.ID, res["jobId"])
	assert.Equal(t, int64(7), job.SubmissionID)
	assert.Equal(t, model.SelectBusiness, job.EmailType)
}

func TestEnqueue_Errors(t *testing.T) {
	env := newEnv(t)

	w, _ := env.do(t, http.MethodPost, "/contact/retry/queue", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.queue.err = errors.New("broker down")
	w, res := env.do(t, http.MethodPost, "/contact/retry/queue", `{"submissionId": 3}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "external_failure", res["kind"])
}

func TestDeliverabilityCheck_PartialFailureStillOK(t *testing.T) {
	env := newEnv(t)

	w, res := env.do(t, http.MethodGet, "/email/deliverability-check", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, res["success"])
	analysis := res["analysis"].(map[string]any)
	checks := analysis["checks"].([]any)
	require.Len(t, checks, 6)
	spf := checks[0].(map[string]any)
	assert.Equal(t, "SPF Record", spf["type"])
	assert.Equal(t, "critical", spf["status"])
	summary := res["summary"].(map[string]any)
	assert.EqualValues(t, 6, summary["totalChecks"])
	assert.NotEmpty(t, res["nextSteps"])
}

func TestRetry_RateLimited(t *testing.T) {
	svc := service.NewRetryService(&MockSubmissionRepo{}, &MockNotifier{}, retry.Config{MaxAttempts: 1}, nil, nil)
	rl := handler.NewIPRateLimiter(0.001, 1)
	defer rl.Stop()
	router := controller.NewRouter(controller.RouterConfig{
		ContactRetry:   &controller.ContactRetryController{RetryService: svc},
		Deliverability: &controller.DeliverabilityController{},
		RateLimiter:    rl,
	})

	codes := []int{}
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/contact/retry", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRetry_RateLimitIgnoresForwardedHeaders(t *testing.T) {
	svc := service.NewRetryService(&MockSubmissionRepo{}, &MockNotifier{}, retry.Config{MaxAttempts: 1}, nil, nil)
	rl := handler.NewIPRateLimiter(0.001, 1)
	defer rl.Stop()
	router := controller.NewRouter(controller.RouterConfig{
		ContactRetry:   &controller.ContactRetryController{RetryService: svc},
		Deliverability: &controller.DeliverabilityController{},
		RateLimiter:    rl,
	})

	codes := []int{}
	for _, ip := range []string{"198.51.100.1", "198.51.100.2", "198.51.100.3"} {
		req := httptest.NewRequest(http.MethodGet, "/contact/retry", nil)
		req.Header.Set("X-Real-IP", ip)
		req.Header.Set("X-Forwarded-For", ip)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestHealthz(t *testing.T) {
	env := newEnv(t)
	w, res := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", res["status"])
}
