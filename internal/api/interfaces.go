package api

import (
	"context"

	"github.com/neexbeast/weather-advisory/internal/advisory"
	"github.com/neexbeast/weather-advisory/internal/notify"
	"github.com/neexbeast/weather-advisory/internal/weather"
)

// Advisor defines the advisory operations needed by handlers.
// *advisory.Orchestrator satisfies it.
type Advisor interface {
	Status(ctx context.Context, id int64) (advisory.StatusReport, error)
	RunOne(ctx context.Context, id int64) (notify.Outcome, error)
	RunAll(ctx context.Context) (advisory.Summary, error)
}

// WeatherService defines the weather lookup needed by handlers.
type WeatherService interface {
	GetBundle(ctx context.Context, c weather.Coordinate) (weather.Bundle, error)
}
