package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"sort"
	"strings"
	texttemplate "text/template"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/neexbeast/weather-advisory/internal/alert"
	"github.com/neexbeast/weather-advisory/internal/property"
	"github.com/neexbeast/weather-advisory/internal/weather"
)

var recommendations = map[property.Role]map[alert.Severity][]string{
	property.RoleOwner: {
		alert.Minor: {
			"Check gutters, drains and roofing on the property",
			"Confirm your tenants have seen this advisory",
		},
		alert.Moderate: {
			"Secure loose outdoor fixtures, signage and roofing sheets",
			"Keep contacts for repairs and utilities within reach",
		},
		alert.Severe: {
			"Be ready to arrange temporary relocation for tenants if conditions worsen",
			"Follow advisories from your local disaster risk reduction office",
		},
	},
	property.RoleOccupant: {
		alert.Minor: {
			"Keep an eye on local weather bulletins",
			"Close windows during heavy rain or strong wind",
		},
		alert.Moderate: {
			"Prepare a go-bag with water, food, a flashlight and medicine",
			"Charge phones and power banks",
		},
		alert.Severe: {
			"Avoid unnecessary travel",
			"Follow evacuation orders from local authorities immediately",
			"Report any flooding or damage to your landlord",
		},
	},
}

// Recommendations returns the advice for role at severity, including every
// lower level's advice, most urgent first.
func Recommendations(role property.Role, s alert.Severity) []string {
	var out []string
	for level := s; level >= alert.Minor; level-- {
		out = append(out, recommendations[role][level]...)
	}
	return out
}

// AlertTitle turns "heavy_rain" into "Heavy Rain".
func AlertTitle(alertType string) string {
	words := strings.Fields(strings.ReplaceAll(alertType, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

type riskRow struct {
	Severity alert.Severity
	Type     string
	When     string
}

type emailData struct {
	RecipientName   string
	IsOwner         bool
	Property        property.Property
	Headline        string
	Severity        alert.Severity
	SeverityTitle   string
	Digest          alert.Digest
	Risks           []riskRow
	Recommendations []string
	GeneratedAt     string
}

var funcs = map[string]any{
	"title": AlertTitle,
	"coord": func(c *weather.Coordinate) string {
		if c == nil {
			return "unknown"
		}
		return fmt.Sprintf("%.4f, %.4f", c.Latitude, c.Longitude)
	},
}

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.New("alert.html").Funcs(funcs).Parse(htmlSource))
	textTmpl = texttemplate.Must(texttemplate.New("alert.txt").Funcs(funcs).Parse(textSource))
)

// Render builds the email for one recipient.
func Render(r property.Recipient, p property.Property, d alert.Digest, now time.Time) (Message, error) {
	data := emailData{
		RecipientName:   r.DisplayName,
		IsOwner:         r.Role == property.RoleOwner,
		Property:        p,
		Headline:        AlertTitle(d.Type),
		Severity:        d.Severity,
		SeverityTitle:   AlertTitle(d.Severity.String()),
		Digest:          d,
		Risks:           riskRows(d.SeveritySummary),
		Recommendations: Recommendations(r.Role, d.Severity),
		GeneratedAt:     now.In(weather.ServiceLocation).Format("Jan 2, 2006 3:04 PM MST"),
	}

	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("rendering html email: %w", err)
	}
	if err := textTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("rendering text email: %w", err)
	}

	return Message{
		To:       r.Email,
		ToName:   r.DisplayName,
		Subject:  fmt.Sprintf("%s %s Weather Alert: %s - %s", d.Severity.Icon(), data.SeverityTitle, data.Headline, p.Name),
		HTMLBody: html.String(),
		TextBody: text.String(),
	}, nil
}

// riskRows flattens the summary, most severe first and alphabetical by type within a level.
func riskRows(s alert.Summary) []riskRow {
	var rows []riskRow
	for level := alert.Severe; level >= alert.Minor; level-- {
		types := make([]string, 0, len(s[level]))
		for t := range s[level] {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			rows = append(rows, riskRow{Severity: level, Type: t, When: strings.Join(whenLabels(s[level][t]), ", ")})
		}
	}
	return rows
}

func whenLabels(dates []string) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		if d == alert.CurrentMarker {
			out[i] = "Now"
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", d, weather.ServiceLocation)
		if err != nil {
			out[i] = d
			continue
		}
		out[i] = weather.DayLabel(t)
	}
	return out
}

const htmlSource = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <h2 style="color: {{.Severity.Color}};">{{.Severity.Icon}} {{.SeverityTitle}} Weather Alert: {{.Headline}}</h2>
  <p>Hi {{.RecipientName}},</p>
  {{if .IsOwner}}
  <p>A weather advisory is in effect for your property <strong>{{.Property.Name}}</strong>.</p>
  {{else}}
  <p>A weather advisory is in effect where you are staying, <strong>{{.Property.Name}}</strong>.</p>
  {{end}}
  <p>{{.Property.Address}} ({{coord .Property.Location}})</p>

  <h3>Current conditions</h3>
  <table cellpadding="4">
    <tr><td>Conditions</td><td>{{.Digest.Current.Icon}} {{.Digest.Current.Description}}</td></tr>
    <tr><td>Temperature</td><td>{{.Digest.Current.Temperature}}&deg;C</td></tr>
    <tr><td>Humidity</td><td>{{.Digest.Current.Humidity}}%</td></tr>
    <tr><td>Precipitation</td><td>{{.Digest.Current.Precipitation}} mm</td></tr>
    <tr><td>Wind</td><td>{{.Digest.Current.WindSpeed}} km/h</td></tr>
  </table>

  {{if .Risks}}
  <h3>Risk summary</h3>
  <ul>
    {{range .Risks}}<li style="color: {{.Severity.Color}};">{{.Severity.Icon}} {{title .Severity.String}}: {{title .Type}} ({{.When}})</li>
    {{end}}
  </ul>
  {{end}}

  <h3>Forecast</h3>
  <table cellpadding="4">
    {{range .Digest.Forecast}}<tr>
      <td>{{.SeverityIcon}} {{.DayLabel}}</td>
      <td>{{.Icon}} {{.Description}}</td>
      <td>{{.TempMin}}&ndash;{{.TempMax}}&deg;C</td>
      <td>{{.Precipitation}} mm ({{.PrecipitationProbability}}%)</td>
    </tr>
    {{end}}
  </table>

  <h3>What you should do</h3>
  <ul>
    {{range .Recommendations}}<li>{{.}}</li>
    {{end}}
  </ul>

  <p style="font-size: 12px; color: #888;">Generated {{.GeneratedAt}}</p>
</body>
</html>
`

const textSource = `{{.Severity.Icon}} {{.SeverityTitle}} Weather Alert: {{.Headline}}

Hi {{.RecipientName}},
{{if .IsOwner}}
A weather advisory is in effect for your property {{.Property.Name}}.
{{else}}
A weather advisory is in effect where you are staying, {{.Property.Name}}.
{{end}}
{{.Property.Address}} ({{coord .Property.Location}})

Current conditions: {{.Digest.Current.Description}}, {{.Digest.Current.Temperature}}°C, humidity {{.Digest.Current.Humidity}}%, rain {{.Digest.Current.Precipitation}} mm, wind {{.Digest.Current.WindSpeed}} km/h
{{if .Risks}}
Risk summary:
{{range .Risks}}  - {{title .Severity.String}}: {{title .Type}} ({{.When}})
{{end}}{{end}}
Forecast:
{{range .Digest.Forecast}}  {{.SeverityIcon}} {{.DayLabel}}: {{.Description}}, {{.TempMin}}-{{.TempMax}}°C, {{.Precipitation}} mm
{{end}}
What you should do:
{{range .Recommendations}}  - {{.}}
{{end}}
Generated {{.GeneratedAt}}
`
