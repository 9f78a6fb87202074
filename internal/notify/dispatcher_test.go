package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/weather-advisory/internal/alert"
	"github.com/neexbeast/weather-advisory/internal/notify"
	"github.com/neexbeast/weather-advisory/internal/observability"
	"github.com/neexbeast/weather-advisory/internal/property"
	"github.com/neexbeast/weather-advisory/internal/weather"
)

// mockMailer records messages and delegates the result to sendFn.
type mockMailer struct {
	mu     sync.Mutex
	sent   []notify.Message
	sendFn func(ctx context.Context, msg notify.Message) error
}

func (m *mockMailer) Send(ctx context.Context, msg notify.Message) error {
	m.mu.Lock()
	m.sent = append(m.sent, msg)
	m.mu.Unlock()
	if m.sendFn == nil {
		return nil
	}
	return m.sendFn(ctx, msg)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDispatcher(m notify.Mailer, metrics *observability.Metrics) *notify.Dispatcher {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 19, 6, 0, 0, 0, weather.ServiceLocation))
	return notify.NewDispatcher(m, time.Second, clock, testLogger(), metrics)
}

func sampleProperty() property.Property {
	return property.Property{
		ID:       1,
		Name:     "Sunrise Dorm",
		Address:  "Davao City",
		Location: &weather.Coordinate{Latitude: 8.15, Longitude: 125.12},
		Owner:    property.Contact{Name: "Lina", Email: "lina@example.com"},
		Occupants: []property.Occupant{
			{Contact: property.Contact{Name: "Ana", Email: "ana@example.com"}, Status: "active"},
			{Contact: property.Contact{Name: "Ben", Email: "ben@example.com"}, Status: "Active"},
		},
	}
}

func sampleDigest() alert.Digest {
	d, err := alert.Aggregate(
		[]alert.Condition{{Type: "heavy_rain", Severity: alert.Severe}},
		weather.Bundle{Current: weather.Snapshot{Temperature: 27, Description: "Heavy rain"}},
	)
	if err != nil {
		panic(err)
	}
	return d
}

func TestDispatch_AllRecipientsSucceed(t *testing.T) {
	m := &mockMailer{}
	metrics := observability.NewMetricsForTesting()

	out := newDispatcher(m, metrics).Dispatch(context.Background(), sampleProperty(), sampleDigest())

	assert.True(t, out.Sent)
	assert.Equal(t, 3, out.EmailsSent)
	assert.Empty(t, out.Errors)
	assert.NotNil(t, out.Errors, "errors should serialize as an empty list")
	assert.Empty(t, out.Reason)
	assert.Equal(t, "heavy_rain", out.AlertType)
	assert.Equal(t, alert.Severe, out.Severity)

	require.Len(t, m.sent, 3)
	assert.Equal(t, "lina@example.com", m.sent[0].To)
	assert.Equal(t, "ana@example.com", m.sent[1].To)
	assert.Equal(t, "ben@example.com", m.sent[2].To)
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.EmailsSent))
}

func TestDispatch_OwnerFailsOccupantSucceeds(t *testing.T) {
	m := &mockMailer{
		sendFn: func(_ context.Context, msg notify.Message) error {
			if msg.To == "lina@example.com" {
				return errors.New("mailbox unavailable")
			}
			return nil
		},
	}
	p := sampleProperty()
	p.Occupants = p.Occupants[:1]
	metrics := observability.NewMetricsForTesting()

	out := newDispatcher(m, metrics).Dispatch(context.Background(), p, sampleDigest())

	assert.True(t, out.Sent)
	assert.Equal(t, 1, out.EmailsSent)
	assert.Equal(t, []string{"Landlord email failed: mailbox unavailable"}, out.Errors)
	assert.Empty(t, out.Reason)
	assert.Len(t, m.sent, 2, "the occupant must still be attempted after the owner fails")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EmailFailures.WithLabelValues("owner")))
}

func TestDispatch_TenantFailureLabel(t *testing.T) {
	m := &mockMailer{
		sendFn: func(_ context.Context, msg notify.Message) error {
			if msg.To == "ben@example.com" {
				return errors.New("quota exceeded")
			}
			return nil
		},
	}

	out := newDispatcher(m, nil).Dispatch(context.Background(), sampleProperty(), sampleDigest())

	assert.Equal(t, 2, out.EmailsSent)
	assert.Equal(t, []string{"Tenant email failed: quota exceeded"}, out.Errors)
}

func TestDispatch_NoValidRecipients(t *testing.T) {
	m := &mockMailer{}
	p := property.Property{
		ID:    2,
		Name:  "Harbor Flats",
		Owner: property.Contact{Name: "Marco", Email: "not-an-email"},
		Occupants: []property.Occupant{
			{Contact: property.Contact{Name: "Cy", Email: ""}, Status: "active"},
			{Contact: property.Contact{Name: "Dee", Email: "dee@example.com"}, Status: "pending"},
		},
	}

	out := newDispatcher(m, nil).Dispatch(context.Background(), p, sampleDigest())

	assert.False(t, out.Sent)
	assert.Zero(t, out.EmailsSent)
	assert.Equal(t, notify.ReasonNoRecipients, out.Reason)
	assert.Empty(t, m.sent)
}

func TestDispatch_AllSendsFail(t *testing.T) {
	m := &mockMailer{
		sendFn: func(context.Context, notify.Message) error { return errors.New("relay down") },
	}

	out := newDispatcher(m, nil).Dispatch(context.Background(), sampleProperty(), sampleDigest())

	assert.False(t, out.Sent)
	assert.Zero(t, out.EmailsSent)
	assert.Len(t, out.Errors, 3)
	assert.Equal(t, notify.ReasonNoRecipients, out.Reason)
	assert.Contains(t, out.Errors[0], "Landlord email failed: relay down")
}

func TestDispatch_SendIsBoundedByTimeout(t *testing.T) {
	m := &mockMailer{
		sendFn: func(ctx context.Context, _ notify.Message) error {
			_, ok := ctx.Deadline()
			if !ok {
				return errors.New("send context has no deadline")
			}
			return nil
		},
	}

	out := newDispatcher(m, nil).Dispatch(context.Background(), sampleProperty(), sampleDigest())
	assert.Equal(t, 3, out.EmailsSent)
}

func TestRecipients_OwnerFirstActiveOnly(t *testing.T) {
	p := sampleProperty()
	p.Occupants = append(p.Occupants, property.Occupant{
		Contact: property.Contact{Name: "Eli", Email: "eli@example.com"}, Status: "moved_out",
	})

	got := newDispatcher(&mockMailer{}, nil).Recipients(p)

	require.Len(t, got, 3)
	assert.Equal(t, property.Recipient{Email: "lina@example.com", DisplayName: "Lina", Role: property.RoleOwner}, got[0])
	assert.Equal(t, property.RoleOccupant, got[1].Role)
	assert.Equal(t, property.RoleOccupant, got[2].Role)
}

func TestNoAlerts(t *testing.T) {
	out := notify.NoAlerts()
	assert.False(t, out.Sent)
	assert.Equal(t, "No alerts detected", out.Reason)
	assert.NotNil(t, out.Errors)
}
