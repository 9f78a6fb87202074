package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	gomail "github.com/wneessen/go-mail"
)

// SMTPConfig holds relay settings. Username empty disables AUTH.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// defaultSMTPTimeout applies when the caller's context carries no deadline.
const defaultSMTPTimeout = 30 * time.Second

// SMTPMailer sends multipart/alternative mail through an SMTP relay, upgrading
// to TLS when the server offers STARTTLS.
type SMTPMailer struct {
	cfg   SMTPConfig
	clock clockwork.Clock
}

// NewSMTPMailer returns a mailer for cfg. The clock stamps the Date header;
// nil means wall-clock time.
func NewSMTPMailer(cfg SMTPConfig, clock clockwork.Clock) *SMTPMailer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SMTPMailer{cfg: cfg, clock: clock}
}

// Send delivers msg over a fresh connection. The dial and the whole SMTP
// conversation are bounded by ctx.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	gm, err := m.buildMsg(msg)
	if err != nil {
		return err
	}

	timeout := defaultSMTPTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = m.clock.Until(deadline)
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
	}

	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(timeout),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}

	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("configuring smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, gm); err != nil {
		return fmt.Errorf("sending via smtp %s:%d: %w", m.cfg.Host, m.cfg.Port, err)
	}
	return nil
}

// buildMsg renders msg as a text part with an HTML alternative.
func (m *SMTPMailer) buildMsg(msg Message) (*gomail.Msg, error) {
	gm := gomail.NewMsg()
	if err := gm.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", m.cfg.From, err)
	}
	if err := gm.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	gm.Subject(msg.Subject)
	gm.SetDateWithValue(m.clock.Now())
	gm.SetBodyString(gomail.TypeTextPlain, msg.TextBody)
	gm.AddAlternativeString(gomail.TypeTextHTML, msg.HTMLBody)
	return gm, nil
}
