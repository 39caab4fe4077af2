package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Message struct {
	ToName  string
	To      string
	Subject string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes the email to the log instead of sending it.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	// MOCK EMAIL SENDING
	slog.Info("==========================================")
	slog.Info("📧 EMAIL SENT TO: " + msg.To)
	slog.Info("Subject: " + msg.Subject)
	slog.Info(msg.Text)
	slog.Info("==========================================")
	return nil
}

type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	from     string
}

func NewSendGridMailer(apiKey, fromName, from string) *SendGridMailer {
	return &SendGridMailer{client: sendgrid.NewSendClient(apiKey), fromName: fromName, from: from}
}

func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	email := mail.NewSingleEmail(
		mail.NewEmail(m.fromName, m.from),
		msg.Subject,
		mail.NewEmail(msg.ToName, msg.To),
		msg.Text,
		"",
	)
	resp, err := m.client.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
