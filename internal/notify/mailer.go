package notify

import (
	"context"
	"log/slog"
)

// Message is one rendered alert email.
type Message struct {
	To       string `json:"to"`
	ToName   string `json:"to_name"`
	Subject  string `json:"subject"`
	HTMLBody string `json:"html_body"`
	TextBody string `json:"text_body"`
}

// Mailer delivers a single message. Implementations must honor ctx cancellation.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.
// It backs MAIL_DRIVER=log for local runs.
type LogMailer struct {
	log *slog.Logger
}

// NewLogMailer returns a mailer that only logs.
func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

// Send logs the recipient and subject.
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.log.Info("alert email (log driver)", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.HTMLBody))
	return nil
}
