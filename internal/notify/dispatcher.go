package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"

	"github.com/neexbeast/weather-advisory/internal/alert"
	"github.com/neexbeast/weather-advisory/internal/observability"
	"github.com/neexbeast/weather-advisory/internal/property"
)

// Outcome reasons reported when nothing was sent.
const (
	ReasonNoAlerts     = "No alerts detected"
	ReasonNoRecipients = "No valid email addresses found for landlord or tenants"
)

// DefaultSendTimeout bounds a single Mailer.Send call.
const DefaultSendTimeout = 15 * time.Second

// Outcome reports what happened when a property's digest was dispatched.
// Reason is set only when Sent is false.
type Outcome struct {
	Sent       bool           `json:"sent"`
	EmailsSent int            `json:"emails_sent"`
	AlertType  string         `json:"alert_type,omitempty"`
	Severity   alert.Severity `json:"severity,omitempty"`
	Errors     []string       `json:"errors"`
	Reason     string         `json:"reason,omitempty"`
}

// NoAlerts is the outcome for a property whose evaluation produced nothing.
func NoAlerts() Outcome {
	return Outcome{Errors: []string{}, Reason: ReasonNoAlerts}
}

// Dispatcher renders a digest per recipient and sends it, isolating failures.
type Dispatcher struct {
	mailer      Mailer
	validate    *validator.Validate
	sendTimeout time.Duration
	clock       clockwork.Clock
	log         *slog.Logger
	metrics     *observability.Metrics
}

// NewDispatcher wires a Dispatcher. sendTimeout <= 0 uses DefaultSendTimeout.
func NewDispatcher(mailer Mailer, sendTimeout time.Duration, clock clockwork.Clock, log *slog.Logger, metrics *observability.Metrics) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = observability.NewUnregisteredMetrics()
	}
	return &Dispatcher{
		mailer:      mailer,
		validate:    validator.New(),
		sendTimeout: sendTimeout,
		clock:       clock,
		log:         log,
		metrics:     metrics,
	}
}

// Recipients returns the owner and every active occupant whose email is valid, owner first.
func (d *Dispatcher) Recipients(p property.Property) []property.Recipient {
	var out []property.Recipient
	if d.validEmail(p.Owner.Email) {
		out = append(out, property.Recipient{Email: p.Owner.Email, DisplayName: p.Owner.Name, Role: property.RoleOwner})
	}
	for _, o := range p.Occupants {
		if !o.Active() || !d.validEmail(o.Email) {
			continue
		}
		out = append(out, property.Recipient{Email: o.Email, DisplayName: o.Name, Role: property.RoleOccupant})
	}
	return out
}

func (d *Dispatcher) validEmail(email string) bool {
	return d.validate.Var(email, "required,email") == nil
}

// Dispatch sends digest to every recipient of p. A failed send is recorded in
// Outcome.Errors and never stops the remaining sends.
func (d *Dispatcher) Dispatch(ctx context.Context, p property.Property, digest alert.Digest) Outcome {
	out := Outcome{
		AlertType: digest.Type,
		Severity:  digest.Severity,
		Errors:    []string{},
	}
	log := d.log.With("property_id", p.ID, "property", p.Name)

	recipients := d.Recipients(p)
	if len(recipients) == 0 {
		log.Warn("no valid recipients for weather alert")
		out.Reason = ReasonNoRecipients
		return out
	}

	for _, r := range recipients {
		if err := d.send(ctx, r, p, digest); err != nil {
			label := "Tenant"
			if r.Role == property.RoleOwner {
				label = "Landlord"
			}
			log.Error("alert email failed", "role", string(r.Role), "to", r.Email, "err", err)
			d.metrics.EmailFailures.WithLabelValues(string(r.Role)).Inc()
			out.Errors = append(out.Errors, label+" email failed: "+err.Error())
			continue
		}
		d.metrics.EmailsSent.Inc()
		out.EmailsSent++
	}

	// Per-recipient failures are already in Errors.
	out.Sent = out.EmailsSent > 0
	if !out.Sent {
		out.Reason = ReasonNoRecipients
	}

	log.Info("weather alert dispatched",
		"alert_type", digest.Type,
		"severity", digest.Severity.String(),
		"emails_sent", out.EmailsSent,
		"errors", len(out.Errors),
	)
	return out
}

func (d *Dispatcher) send(ctx context.Context, r property.Recipient, p property.Property, digest alert.Digest) error {
	msg, err := Render(r, p, digest, d.clock.Now())
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	return d.mailer.Send(sendCtx, msg)
}
