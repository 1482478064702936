package mail

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/metrics"
)

const defaultResendBaseURL = "https://api.resend.com"

type resendTag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type resendRequest struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html,omitempty"`
	Text    string            `json:"text,omitempty"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Tags    []resendTag       `json:"tags,omitempty"`
}

type resendResponse struct {
	ID string `json:"id"`
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// ResendSender talks to a Resend-compatible transactional email API.
type ResendSender struct {
	client *resty.Client
	log    *zap.SugaredLogger
}

func NewResendSender(baseURL, apiKey string, log *zap.SugaredLogger) *ResendSender {
	if baseURL == "" {
		baseURL = defaultResendBaseURL
	}
	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
	return &ResendSender{client: client, log: logging.OrNop(log).Named("resend")}
}

func (s *ResendSender) Provider() string { return "resend" }

func (s *ResendSender) Send(ctx context.Context, msg Message) (string, error) {
	body := resendRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
		Headers: msg.Headers,
	}
	names := make([]string, 0, len(msg.Tags))
	for name := range msg.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		body.Tags = append(body.Tags, resendTag{Name: name, Value: tagValue(msg.Tags[name])})
	}

	var out resendResponse
	var apiErr resendError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		metrics.MailSendFailure.WithLabelValues(s.Provider()).Inc()
		return "", fmt.Errorf("resend request failed: %w", err)
	}
	if resp.IsError() {
		metrics.MailSendFailure.WithLabelValues(s.Provider()).Inc()
		msgText := apiErr.Message
		if msgText == "" {
			msgText = resp.Status()
		}
		return "", fmt.Errorf("resend rejected message (status %d): %s", resp.StatusCode(), msgText)
	}

	metrics.MailSendSuccess.WithLabelValues(s.Provider()).Inc()
	s.log.Debugw("Message accepted", "id", out.ID, "to", len(msg.To), "subject", msg.Subject)
	return out.ID, nil
}
