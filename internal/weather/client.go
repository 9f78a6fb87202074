package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
)

const (
	// DefaultTimeout bounds every upstream request.
	DefaultTimeout = 10 * time.Second

	openMeteoDefaultURL = "https://api.open-meteo.com/v1/forecast"
	serviceTimezone     = "Asia/Manila"
	serviceTZAbbrev     = "PST"

	currentFields    = "temperature_2m,relative_humidity_2m,precipitation,precipitation_probability,wind_speed_10m,wind_direction_10m,weather_code,cloud_cover"
	forecastFields   = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum,precipitation_probability_max,wind_speed_10m_max"
	historicalFields = "weather_code,temperature_2m_max,temperature_2m_min,precipitation_sum"
)

// ErrUpstreamStatus is returned when the weather API answers with a non-2xx status.
var ErrUpstreamStatus = errors.New("weather api returned non-2xx status")

// OpenMeteoClient fetches raw current and daily data from the Open-Meteo forecast API.
type OpenMeteoClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

// NewOpenMeteoClient constructs a client against the production API.
func NewOpenMeteoClient(timeout time.Duration) *OpenMeteoClient {
	return NewOpenMeteoClientWithURL(openMeteoDefaultURL, timeout)
}

// NewOpenMeteoClientWithURL constructs a client pointing at a custom base URL (for tests).
func NewOpenMeteoClientWithURL(baseURL string, timeout time.Duration) *OpenMeteoClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenMeteoClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "open-meteo",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     2 * time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// CurrentResponse is the Open-Meteo "current" payload. Missing fields decode as nil.
type CurrentResponse struct {
	Current struct {
		Temperature              *float64 `json:"temperature_2m"`
		Humidity                 *float64 `json:"relative_humidity_2m"`
		Precipitation            *float64 `json:"precipitation"`
		PrecipitationProbability *float64 `json:"precipitation_probability"`
		WindSpeed                *float64 `json:"wind_speed_10m"`
		WindDirection            *float64 `json:"wind_direction_10m"`
		WeatherCode              *float64 `json:"weather_code"`
		CloudCover               *float64 `json:"cloud_cover"`
	} `json:"current"`
}

// DailyResponse is the Open-Meteo "daily" payload; every array is aligned to Time.
type DailyResponse struct {
	Daily struct {
		Time                     []string   `json:"time"`
		WeatherCode              []*float64 `json:"weather_code"`
		TempMax                  []*float64 `json:"temperature_2m_max"`
		TempMin                  []*float64 `json:"temperature_2m_min"`
		PrecipitationSum         []*float64 `json:"precipitation_sum"`
		PrecipitationProbability []*float64 `json:"precipitation_probability_max"`
		WindSpeedMax             []*float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

func baseParams(c Coordinate) url.Values {
	v := url.Values{}
	v.Set("latitude", strconv.FormatFloat(c.Latitude, 'f', -1, 64))
	v.Set("longitude", strconv.FormatFloat(c.Longitude, 'f', -1, 64))
	v.Set("timezone", serviceTimezone)
	v.Set("timezone_abbreviation", serviceTZAbbrev)
	return v
}

// FetchCurrent retrieves current conditions for c.
func (c *OpenMeteoClient) FetchCurrent(ctx context.Context, coord Coordinate) (*CurrentResponse, error) {
	params := baseParams(coord)
	params.Set("current", currentFields)

	var raw CurrentResponse
	if err := c.get(ctx, params, &raw); err != nil {
		return nil, fmt.Errorf("open-meteo current for %s: %w", coord, err)
	}
	return &raw, nil
}

// FetchForecast retrieves MaxForecastDays of daily aggregates for c.
func (c *OpenMeteoClient) FetchForecast(ctx context.Context, coord Coordinate) (*DailyResponse, error) {
	params := baseParams(coord)
	params.Set("daily", forecastFields)
	params.Set("forecast_days", strconv.Itoa(MaxForecastDays))

	var raw DailyResponse
	if err := c.get(ctx, params, &raw); err != nil {
		return nil, fmt.Errorf("open-meteo forecast for %s: %w", coord, err)
	}
	return &raw, nil
}

// FetchHistorical retrieves daily aggregates for the inclusive range [start, end].
func (c *OpenMeteoClient) FetchHistorical(ctx context.Context, coord Coordinate, start, end time.Time) (*DailyResponse, error) {
	params := baseParams(coord)
	params.Set("daily", historicalFields)
	params.Set("start_date", DateKey(start))
	params.Set("end_date", DateKey(end))

	var raw DailyResponse
	if err := c.get(ctx, params, &raw); err != nil {
		return nil, fmt.Errorf("open-meteo history for %s: %w", coord, err)
	}
	return &raw, nil
}

// get performs a GET through the circuit breaker and decodes the JSON body into dst.
func (c *OpenMeteoClient) get(ctx context.Context, params url.Values, dst any) error {
	rawURL := c.baseURL + "?" + params.Encode()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, doGet(ctx, c.client, rawURL, dst)
	})
	return err
}

// doGet performs a GET request and decodes the JSON response into dst.
func doGet(ctx context.Context, client *http.Client, rawURL string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrUpstreamStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
