package alert

import (
	"errors"

	"github.com/neexbeast/weather-advisory/internal/weather"
)

// ErrNoAlerts is returned by Aggregate for an empty condition list.
var ErrNoAlerts = errors.New("no alerts detected")

// CurrentMarker stands in for a forecast date in the summary when a condition applies now.
const CurrentMarker = "current"

// DigestForecastDays is how many forecast days a digest carries.
const DigestForecastDays = 4

// Condition is one severity-tagged advisory. An empty ForecastDate means it
// applies to current conditions; otherwise it is a YYYY-MM-DD forecast date.
type Condition struct {
	Type         string   `json:"type"`
	Severity     Severity `json:"severity"`
	ForecastDate string   `json:"forecast_date,omitempty"`
}

// When returns the forecast date, or CurrentMarker for current conditions.
func (c Condition) When() string {
	if c.ForecastDate == "" {
		return CurrentMarker
	}
	return c.ForecastDate
}

// Summary groups conditions by severity and then type, listing when each applies.
type Summary map[Severity]map[string][]string

// AnnotatedDay is a forecast day marked with the highest severity alerted for its date.
type AnnotatedDay struct {
	weather.ForecastDay
	Severity      Severity `json:"severity"`
	SeverityIcon  string   `json:"severity_icon"`
	SeverityColor string   `json:"severity_color"`
}

// Digest is everything a notification needs: the headline condition, current
// weather, grouped summary, annotated forecast and the raw condition list.
type Digest struct {
	Type            string           `json:"type"`
	Severity        Severity         `json:"severity"`
	ForecastDate    string           `json:"forecast_date,omitempty"`
	Current         weather.Snapshot `json:"current"`
	SeveritySummary Summary          `json:"severity_summary"`
	Forecast        []AnnotatedDay   `json:"forecast"`
	AllAlerts       []Condition      `json:"all_alerts"`
}

// Aggregate builds a Digest from conditions and the bundle they were evaluated against.
func Aggregate(conditions []Condition, b weather.Bundle) (Digest, error) {
	if len(conditions) == 0 {
		return Digest{}, ErrNoAlerts
	}

	top := Highest(conditions)

	all := make([]Condition, len(conditions))
	copy(all, conditions)

	return Digest{
		Type:            top.Type,
		Severity:        top.Severity,
		ForecastDate:    top.ForecastDate,
		Current:         b.Current,
		SeveritySummary: Summarize(conditions),
		Forecast:        Annotate(b.Forecast, conditions, DigestForecastDays),
		AllAlerts:       all,
	}, nil
}

// Highest returns the first condition with the greatest severity. Ties keep the earliest.
// conditions must not be empty.
func Highest(conditions []Condition) Condition {
	top := conditions[0]
	for _, c := range conditions[1:] {
		if c.Severity.Greater(top.Severity) {
			top = c
		}
	}
	return top
}

// Summarize groups conditions by severity and type. The minor, moderate and
// severe buckets are always present, empty when nothing matched.
func Summarize(conditions []Condition) Summary {
	s := Summary{
		Minor:    {},
		Moderate: {},
		Severe:   {},
	}
	for _, c := range conditions {
		bucket, ok := s[c.Severity]
		if !ok {
			bucket = map[string][]string{}
			s[c.Severity] = bucket
		}
		bucket[c.Type] = append(bucket[c.Type], c.When())
	}
	return s
}

// Annotate marks the first limit forecast days with the highest severity
// alerted for each date, Normal when none.
func Annotate(days []weather.ForecastDay, conditions []Condition, limit int) []AnnotatedDay {
	byDate := make(map[string]Severity)
	for _, c := range conditions {
		if c.ForecastDate == "" {
			continue
		}
		if cur, ok := byDate[c.ForecastDate]; !ok || c.Severity.Greater(cur) {
			byDate[c.ForecastDate] = c.Severity
		}
	}

	n := min(len(days), limit)
	out := make([]AnnotatedDay, 0, n)
	for _, d := range days[:n] {
		sev := byDate[d.Date]
		out = append(out, AnnotatedDay{
			ForecastDay:   d,
			Severity:      sev,
			SeverityIcon:  sev.Icon(),
			SeverityColor: sev.Color(),
		})
	}
	return out
}
