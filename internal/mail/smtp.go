package mail

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/lewisgerrard/divafitness-backend/internal/logging"
	"github.com/lewisgerrard/divafitness-backend/internal/metrics"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender sends through a plain SMTP relay. gomail has no context support,
// so ctx is only checked before dialing.
type SMTPSender struct {
	dialer dialer
	host   string
	log    *zap.SugaredLogger
}

func NewSMTPSender(host string, port int, user, password string, log *zap.SugaredLogger) *SMTPSender {
	log = logging.OrNop(log).Named("smtp")
	log.Infow("Initializing SMTP sender", "host", host, "port", port, "user", user)
	return &SMTPSender{
		dialer: gomail.NewDialer(host, port, user, password),
		host:   host,
		log:    log,
	}
}

func (s *SMTPSender) Provider() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), messageIDDomain(msg.From, s.host))
	m := gomail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", messageID)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	for k, v := range msg.Headers {
		m.SetHeader(k, v)
	}
	if len(msg.Tags) > 0 {
		m.SetHeader("X-Tags", encodeTags(msg.Tags))
	}
	if msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		if msg.HTML != "" {
			m.AddAlternative("text/html", msg.HTML)
		}
	} else {
		m.SetBody("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		metrics.MailSendFailure.WithLabelValues(s.Provider()).Inc()
		return "", fmt.Errorf("could not send email: %w", err)
	}
	metrics.MailSendSuccess.WithLabelValues(s.Provider()).Inc()
	s.log.Debugw("Message relayed", "messageID", messageID, "to", len(msg.To))
	return messageID, nil
}

func messageIDDomain(from, fallback string) string {
	if d := AddressDomain(from); d != "" {
		return d
	}
	if fallback != "" {
		return fallback
	}
	return "localhost"
}

func encodeTags(tags map[string]string) string {
	parts := make([]string, 0, len(tags))
	for k, v := range tags {
		parts = append(parts, k+"="+tagValue(v))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
