package mail

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"html/template"
	"time"

	"github.com/lewisgerrard/divafitness-backend/internal/model"
)

var (
	customerTemplate = template.New("customerConfirmation")
	businessTemplate = template.New("businessNotification")

	//go:embed templates/customer_confirmation.html
	customerTemplateRaw string
	//go:embed templates/business_notification.html
	businessTemplateRaw string
)

func init() {
	if _, err := customerTemplate.Parse(customerTemplateRaw); err != nil {
		panic(err)
	}
	if _, err := businessTemplate.Parse(businessTemplateRaw); err != nil {
		panic(err)
	}
}

type customerParams struct {
	Name           string
	Service        string
	Message        string
	SiteName       string
	UnsubscribeURL string
}

type businessParams struct {
	ID          int64
	Name        string
	Email       string
	Phone       string
	Service     string
	Message     string
	SubmittedAt string
}

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

// Notifier renders and sends the two contact-form notifications.
type Notifier struct {
	Sender         Sender
	From           string
	BusinessEmail  string
	UnsubscribeURL string
	SiteName       string
}

func NewNotifier(sender Sender, from, businessEmail, unsubscribeURL string) *Notifier {
	return &Notifier{
		Sender:         sender,
		From:           from,
		BusinessEmail:  businessEmail,
		UnsubscribeURL: unsubscribeURL,
		SiteName:       "Diva Fitness",
	}
}

// Build renders the message for one channel without sending it.
func (n *Notifier) Build(ch model.Channel, sub model.Submission) (Message, error) {
	switch ch {
	case model.ChannelCustomer:
		return n.customerMessage(sub)
	case model.ChannelBusiness:
		return n.businessMessage(sub)
	}
	return Message{}, fmt.Errorf("unknown channel %q", ch)
}

// Notify renders and sends one channel's message.
func (n *Notifier) Notify(ctx context.Context, ch model.Channel, sub model.Submission) (string, error) {
	msg, err := n.Build(ch, sub)
	if err != nil {
		return "", err
	}
	return n.Sender.Send(ctx, msg)
}

// CustomerHeaderNames lists the headers set on customer-facing mail.
func (n *Notifier) CustomerHeaderNames() []string {
	msg, _ := n.customerMessage(model.Submission{})
	names := []string{"From"}
	if msg.ReplyTo != "" {
		names = append(names, "Reply-To")
	}
	for k := range msg.Headers {
		names = append(names, k)
	}
	return names
}

func (n *Notifier) customerMessage(sub model.Submission) (Message, error) {
	html, err := render(customerTemplate, customerParams{
		Name:           sub.Name,
		Service:        sub.Service,
		Message:        sub.Message,
		SiteName:       n.SiteName,
		UnsubscribeURL: n.UnsubscribeURL,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render customer confirmation: %w", err)
	}
	headers := map[string]string{
		"X-Priority":      "3",
		"X-Entity-Ref-ID": fmt.Sprintf("contact-%d-customer", sub.ID),
	}
	if n.UnsubscribeURL != "" {
		headers["List-Unsubscribe"] = "<" + n.UnsubscribeURL + ">"
		headers["List-Unsubscribe-Post"] = "List-Unsubscribe=One-Click"
	}
	return Message{
		From:    n.From,
		To:      []string{sub.Email},
		ReplyTo: n.BusinessEmail,
		Subject: fmt.Sprintf("Thanks for contacting %s", n.SiteName),
		HTML:    html,
		Text: fmt.Sprintf("Hi %s,\n\nThanks for your enquiry about %s. We'll reply within one working day.\n\n%s",
			sub.Name, sub.Service, n.SiteName),
		Headers: headers,
		Tags: map[string]string{
			"category": "contact_confirmation",
			"service":  sub.Service,
		},
	}, nil
}

func (n *Notifier) businessMessage(sub model.Submission) (Message, error) {
	html, err := render(businessTemplate, businessParams{
		ID:          sub.ID,
		Name:        sub.Name,
		Email:       sub.Email,
		Phone:       sub.PhoneOrEmpty(),
		Service:     sub.Service,
		Message:     sub.Message,
		SubmittedAt: sub.CreatedAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return Message{}, fmt.Errorf("render business notification: %w", err)
	}
	return Message{
		From:    n.From,
		To:      []string{n.BusinessEmail},
		ReplyTo: sub.Email,
		Subject: fmt.Sprintf("New enquiry: %s from %s", sub.Service, sub.Name),
		HTML:    html,
		Text: fmt.Sprintf("New contact form submission #%d\nName: %s\nEmail: %s\nPhone: %s\nService: %s\n\n%s",
			sub.ID, sub.Name, sub.Email, sub.PhoneOrEmpty(), sub.Service, sub.Message),
		Headers: map[string]string{
			"X-Priority":      "1",
			"Importance":      "high",
			"X-Entity-Ref-ID": fmt.Sprintf("contact-%d-business", sub.ID),
		},
		Tags: map[string]string{
			"category": "contact_notification",
			"service":  sub.Service,
		},
	}, nil
}
