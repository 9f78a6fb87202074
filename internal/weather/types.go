package weather

import (
	"strconv"
	"time"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// String renders the coordinate as "lat,lon" for logs.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "," + strconv.FormatFloat(c.Longitude, 'f', -1, 64)
}

// Snapshot holds current conditions at a coordinate.
type Snapshot struct {
	Temperature              float64 `json:"temperature"`
	Humidity                 float64 `json:"humidity"`
	Precipitation            float64 `json:"precipitation"`
	PrecipitationProbability float64 `json:"precipitation_probability"`
	WindSpeed                float64 `json:"wind_speed"`
	WindDirection            float64 `json:"wind_direction"`
	WeatherCode              int     `json:"weather_code"`
	CloudCover               float64 `json:"cloud_cover"`
	Description              string  `json:"description"`
	Icon                     string  `json:"icon"`
	Color                    string  `json:"color"`
}

// ForecastDay is one day of the 7-day forecast. Date is the calendar day in
// the service timezone (YYYY-MM-DD) and is the key alerts are matched on.
type ForecastDay struct {
	Date                     string  `json:"date"`
	DayLabel                 string  `json:"day_name"`
	TempMax                  float64 `json:"temp_max"`
	TempMin                  float64 `json:"temp_min"`
	Precipitation            float64 `json:"precipitation"`
	PrecipitationProbability float64 `json:"precipitation_probability"`
	WindSpeed                float64 `json:"wind_speed"`
	WeatherCode              int     `json:"weather_code"`
	Description              string  `json:"description"`
	Icon                     string  `json:"icon"`
	Color                    string  `json:"color"`
}

// HistoricalDay is one day of the trailing observation window.
type HistoricalDay struct {
	Date          string  `json:"date"`
	DayLabel      string  `json:"day_name"`
	TempMax       float64 `json:"temp_max"`
	TempMin       float64 `json:"temp_min"`
	Precipitation float64 `json:"precipitation"`
	WeatherCode   int     `json:"weather_code"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
	Color         string  `json:"color"`
}

// Scope reports whether a coordinate is served by the upstream provider.
type Scope struct {
	WithinServiceArea bool   `json:"within_service_area"`
	Message           string `json:"message"`
}

// Bundle is everything the advisory pipeline needs for one coordinate.
type Bundle struct {
	Current     Snapshot        `json:"current"`
	Forecast    []ForecastDay   `json:"forecast"`
	Historical  []HistoricalDay `json:"historical"`
	Location    Coordinate      `json:"location"`
	Scope       Scope           `json:"scope"`
	LastUpdated time.Time       `json:"last_updated"`
}

// Kind identifies which dataset a request or cache entry refers to.
type Kind string

const (
	KindCurrent    Kind = "current"
	KindForecast   Kind = "forecast"
	KindHistorical Kind = "historical"
)

const (
	// MaxForecastDays caps the forecast length.
	MaxForecastDays = 7
	// DefaultHistoricalDays is the trailing window used by GetBundle.
	DefaultHistoricalDays = 4

	dateLayout  = "2006-01-02"
	labelLayout = "Mon 2"
)

// DayLabel formats a date the way forecast cards display it, e.g. "Mon 3".
func DayLabel(t time.Time) string {
	return t.Format(labelLayout)
}

// DateKey formats a date as the calendar key shared by forecasts and alerts.
func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}
