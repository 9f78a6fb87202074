package notify_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neexbeast/weather-advisory/internal/alert"
	"github.com/neexbeast/weather-advisory/internal/notify"
	"github.com/neexbeast/weather-advisory/internal/property"
	"github.com/neexbeast/weather-advisory/internal/weather"
)

func renderDigest(t *testing.T) alert.Digest {
	t.Helper()
	b := weather.Bundle{
		Current: weather.Snapshot{Temperature: 27, Humidity: 90, Precipitation: 31.5, WindSpeed: 20, Description: "Heavy rain", Icon: "🌧️"},
		Forecast: []weather.ForecastDay{
			{Date: "2026-10-19", DayLabel: "Mon 19", TempMin: 24, TempMax: 29, Description: "Heavy rain"},
			{Date: "2026-10-20", DayLabel: "Tue 20", TempMin: 24, TempMax: 30, Description: "Slight rain"},
		},
	}
	d, err := alert.Aggregate([]alert.Condition{
		{Type: "strong_wind", Severity: alert.Minor, ForecastDate: "2026-10-20"},
		{Type: "heavy_rain", Severity: alert.Severe},
		{Type: "heavy_rain", Severity: alert.Severe, ForecastDate: "2026-10-19"},
	}, b)
	require.NoError(t, err)
	return d
}

func TestRender_OwnerEmail(t *testing.T) {
	r := property.Recipient{Email: "lina@example.com", DisplayName: "Lina", Role: property.RoleOwner}
	now := time.Date(2026, 10, 19, 6, 0, 0, 0, weather.ServiceLocation)

	msg, err := notify.Render(r, sampleProperty(), renderDigest(t), now)
	require.NoError(t, err)

	assert.Equal(t, "lina@example.com", msg.To)
	assert.Equal(t, "🔴 Severe Weather Alert: Heavy Rain - Sunrise Dorm", msg.Subject)

	assert.Contains(t, msg.HTMLBody, "Hi Lina")
	assert.Contains(t, msg.HTMLBody, "for your property <strong>Sunrise Dorm</strong>")
	assert.Contains(t, msg.HTMLBody, "Severe: Heavy Rain (Now, Mon 19)")
	assert.Contains(t, msg.HTMLBody, "Minor: Strong Wind (Tue 20)")
	assert.Contains(t, msg.HTMLBody, "temporary relocation for tenants")
	assert.Contains(t, msg.HTMLBody, "Check gutters")
	assert.Contains(t, msg.HTMLBody, "8.1500, 125.1200")

	assert.Contains(t, msg.TextBody, "Current conditions: Heavy rain, 27°C")
	assert.Contains(t, msg.TextBody, "🔴 Mon 19")
	assert.Contains(t, msg.TextBody, "Oct 19, 2026 6:00 AM PST")
}

func TestRender_OccupantEmail(t *testing.T) {
	r := property.Recipient{Email: "ana@example.com", DisplayName: "Ana", Role: property.RoleOccupant}

	msg, err := notify.Render(r, sampleProperty(), renderDigest(t), time.Now())
	require.NoError(t, err)

	assert.Contains(t, msg.HTMLBody, "where you are staying")
	assert.Contains(t, msg.HTMLBody, "evacuation orders")
	assert.NotContains(t, msg.HTMLBody, "Check gutters")
}

func TestRender_EscapesPropertyName(t *testing.T) {
	r := property.Recipient{Email: "lina@example.com", DisplayName: "Lina", Role: property.RoleOwner}
	p := sampleProperty()
	p.Name = "<script>x</script>"

	msg, err := notify.Render(r, p, renderDigest(t), time.Now())
	require.NoError(t, err)
	assert.NotContains(t, msg.HTMLBody, "<script>")
}

func TestRecommendations_Escalate(t *testing.T) {
	minor := notify.Recommendations(property.RoleOccupant, alert.Minor)
	moderate := notify.Recommendations(property.RoleOccupant, alert.Moderate)
	severe := notify.Recommendations(property.RoleOccupant, alert.Severe)

	assert.Less(t, len(minor), len(moderate))
	assert.Less(t, len(moderate), len(severe))
	assert.Equal(t, "Avoid unnecessary travel", severe[0])
	assert.Empty(t, notify.Recommendations(property.RoleOwner, alert.Normal))
}

func TestAlertTitle(t *testing.T) {
	assert.Equal(t, "Heavy Rain", notify.AlertTitle("heavy_rain"))
	assert.Equal(t, "High Rain Chance", notify.AlertTitle("high_rain_chance"))
	assert.Equal(t, "Severe", notify.AlertTitle("severe"))
	assert.Equal(t, "", notify.AlertTitle(""))
	assert.Equal(t, "Éclair Storm", notify.AlertTitle("éclair_storm"))
	assert.Equal(t, "Ñino Ümbrella", notify.AlertTitle("ñino__ümbrella"))
}
