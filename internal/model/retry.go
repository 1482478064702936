// internal/model/retry.go
package model

import (
	"fmt"
	"strings"
	"time"
)

// Channel is one of the two notifications sent per submission.
type Channel string

const (
	ChannelCustomer Channel = "customer"
	ChannelBusiness Channel = "business"
)

// ChannelSelector picks which channels a single retry covers.
type ChannelSelector string

const (
	SelectCustomer ChannelSelector = "customer"
	SelectBusiness ChannelSelector = "business"
	SelectBoth     ChannelSelector = "both"
)

// ParseChannelSelector accepts "", "customer", "business" or "both" (case-insensitive).
// An empty value means both.
func ParseChannelSelector(raw string) (ChannelSelector, error) {
	switch ChannelSelector(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SelectBoth:
		return SelectBoth, nil
	case SelectCustomer:
		return SelectCustomer, nil
	case SelectBusiness:
		return SelectBusiness, nil
	}
	return "", fmt.Errorf("unknown email type %q: expected customer, business or both", raw)
}

// Channels expands the selector in send order.
func (s ChannelSelector) Channels() []Channel {
	switch s {
	case SelectCustomer:
		return []Channel{ChannelCustomer}
	case SelectBusiness:
		return []Channel{ChannelBusiness}
	default:
		return []Channel{ChannelCustomer, ChannelBusiness}
	}
}

// RetryOutcome is the result of retrying one channel for one submission.
type RetryOutcome struct {
	SubmissionID int64   `json:"submissionId"`
	Channel      Channel `json:"channel"`
	Success      bool    `json:"success"`
	Attempts     int     `json:"attempts"`
	MessageID    string  `json:"messageId,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// SubmissionRetryResult collects the per-channel outcomes for a submission.
type SubmissionRetryResult struct {
	SubmissionID         int64          `json:"submissionId"`
	Name                 string         `json:"name"`
	Email                string         `json:"email"`
	CustomerEmailSuccess bool           `json:"customerEmailSuccess"`
	BusinessEmailSuccess bool           `json:"businessEmailSuccess"`
	CustomerError        string         `json:"customerError,omitempty"`
	BusinessError        string         `json:"businessError,omitempty"`
	Outcomes             []RetryOutcome `json:"outcomes"`
}

// Record folds an outcome into the flattened per-channel fields.
func (r *SubmissionRetryResult) Record(o RetryOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Channel {
	case ChannelCustomer:
		r.CustomerEmailSuccess = o.Success
		r.CustomerError = o.Error
	case ChannelBusiness:
		r.BusinessEmailSuccess = o.Success
		r.BusinessError = o.Error
	}
}

// AnySucceeded reports whether at least one attempted channel went out.
func (r SubmissionRetryResult) AnySucceeded() bool {
	for _, o := range r.Outcomes {
		if o.Success {
			return true
		}
	}
	return false
}

// RetrySummary aggregates a batch run.
type RetrySummary struct {
	Total                 int `json:"total"`
	SuccessfulRetries     int `json:"successfulRetries"`
	CustomerEmailsSuccess int `json:"customerEmailsSuccess"`
	BusinessEmailsSuccess int `json:"businessEmailsSuccess"`
}

// Summarize counts a batch. A submission is successful when any channel succeeded.
func Summarize(results []SubmissionRetryResult) RetrySummary {
	s := RetrySummary{Total: len(results)}
	for _, r := range results {
		if r.AnySucceeded() {
			s.SuccessfulRetries++
		}
		if r.CustomerEmailSuccess {
			s.CustomerEmailsSuccess++
		}
		if r.BusinessEmailSuccess {
			s.BusinessEmailsSuccess++
		}
	}
	return s
}

// RetryJob is a deferred retry request carried over the queue.
type RetryJob struct {
	ID           string          `json:"id"`
	SubmissionID int64           `json:"submission_id"`
	EmailType    ChannelSelector `json:"email_type"`
	RequestedAt  time.Time       `json:"requested_at"`
}
