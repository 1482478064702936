package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	appErrors "github.com/lewisgerrard/divafitness-backend/internal/errors"
	"github.com/lewisgerrard/divafitness-backend/internal/handler"
	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/model"
	"github.com/lewisgerrard/divafitness-backend/internal/queue"
	"github.com/lewisgerrard/divafitness-backend/internal/service"
)

type ContactRetryController struct {
	RetryService *service.RetryService
	Queue        queue.Queue
	Log          *zap.SugaredLogger
}

type retryRequest struct {
	SubmissionID json.RawMessage `json:"submissionId"`
	EmailType    string          `json:"emailType"`
}

// decodeRetryRequest accepts an empty body, {} or {"submissionId": 7 | "7", "emailType": "..."}.
// The returned id is zero when no submission was named.
func decodeRetryRequest(r *http.Request) (int64, model.ChannelSelector, error) {
	var body retryRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return 0, "", appErrors.NewInvalidInput("Invalid request body", err)
	}
	selector, err := model.ParseChannelSelector(body.EmailType)
	if err != nil {
		return 0, "", appErrors.NewInvalidInput("Invalid emailType", err)
	}
	raw := strings.TrimSpace(string(body.SubmissionID))
	if raw == "" || raw == "null" {
		return 0, selector, nil
	}
	id, err := strconv.ParseInt(strings.Trim(raw, `"`), 10, 64)
	if err != nil || id <= 0 {
		return 0, "", appErrors.NewInvalidInput("Invalid submissionId", fmt.Errorf("submissionId must be a positive integer, got %s", raw))
	}
	return id, selector, nil
}

func retryStatus(r *model.SubmissionRetryResult) string {
	ok := 0
	for _, o := range r.Outcomes {
		if o.Success {
			ok++
		}
	}
	switch {
	case ok == len(r.Outcomes) && ok > 0:
		return "succeeded"
	case ok > 0:
		return "partial"
	default:
		return "failed"
	}
}

// Retry handles POST /contact/retry.
func (c *ContactRetryController) Retry(w http.ResponseWriter, r *http.Request) {
	log := logging.OrNop(c.Log)
	id, selector, err := decodeRetryRequest(r)
	if err != nil {
		handler.RespondError(w, log, err)
		return
	}

	if id == 0 {
		results, summary, err := c.RetryService.RetryAll(r.Context())
		if err != nil {
			handler.RespondError(w, log, err)
			return
		}
		handler.RespondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"message": fmt.Sprintf("Retried %d submissions from the last 24 hours", summary.Total),
			"results": results,
			"summary": summary,
		})
		return
	}

	result, err := c.RetryService.RetryOne(r.Context(), id, selector)
	if err != nil {
		handler.RespondError(w, log, err)
		return
	}
	status := retryStatus(result)
	handler.RespondJSON(w, http.StatusOK, map[string]any{
		"success":      result.AnySucceeded(),
		"status":       status,
		"message":      fmt.Sprintf("Retry %s for submission %d (%s)", status, id, selector),
		"submissionId": id,
		"emailType":    selector,
		"result":       result,
		"summary":      model.Summarize([]model.SubmissionRetryResult{*result}),
	})
}

// ListEligible handles GET /contact/retry.
func (c *ContactRetryController) ListEligible(w http.ResponseWriter, r *http.Request) {
	subs, err := c.RetryService.ListEligible(r.Context())
	if err != nil {
		handler.RespondError(w, c.Log, err)
		return
	}
	handler.RespondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Recent contact submissions that can be retried",
		"count":       len(subs),
		"submissions": subs,
		"instructions": map[string]string{
			"retryAll":      `POST /contact/retry with {} retries every submission from the last 24 hours`,
			"retryOne":      `POST /contact/retry with {"submissionId": 123} retries both emails`,
			"retrySpecific": `POST /contact/retry with {"submissionId": 123, "emailType": "customer|business|both"}`,
			"queue":         `POST /contact/retry/queue with {"submissionId": 123} retries in the background`,
		},
	})
}

// Enqueue handles POST /contact/retry/queue.
func (c *ContactRetryController) Enqueue(w http.ResponseWriter, r *http.Request) {
	id, selector, err := decodeRetryRequest(r)
	if err != nil {
		handler.RespondError(w, c.Log, err)
		return
	}
	if id == 0 {
		handler.RespondError(w, c.Log, appErrors.NewInvalidInput("submissionId is required", errors.New("queued retries must name a submission")))
		return
	}
	if c.Queue == nil {
		handler.RespondError(w, c.Log, appErrors.NewUnexpected(errors.New("retry queue is not configured")))
		return
	}

	job := queue.NewJob(id, selector)
	if err := c.Queue.Publish(r.Context(), job); err != nil {
		handler.RespondError(w, c.Log, appErrors.NewExternalFailure("queue retry job", err))
		return
	}
	logging.OrNop(c.Log).Infow("Retry job queued", "jobID", job.ID, "submissionID", id, "emailType", selector)
	handler.RespondJSON(w, http.StatusAccepted, map[string]any{
		"success":      true,
		"message":      "Retry queued",
		"jobId":        job.ID,
		"submissionId": id,
		"emailType":    selector,
	})
}
