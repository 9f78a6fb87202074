package alert

import (
	"context"

	"github.com/neexbeast/weather-advisory/internal/weather"
)

// Alert types produced by ThresholdEvaluator.
const (
	TypeHeavyRain      = "heavy_rain"
	TypeStrongWind     = "strong_wind"
	TypeExtremeHeat    = "extreme_heat"
	TypeThunderstorm   = "thunderstorm"
	TypeHighRainChance = "high_rain_chance"
)

// threshold lists the values at which minor, moderate and severe begin.
// A zero entry means the level is never reached.
type threshold [3]float64

func (t threshold) classify(v float64) Severity {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i] > 0 && v >= t[i] {
			return Severity(i + 1)
		}
	}
	return Normal
}

var (
	rainfallMM    = threshold{7.5, 15, 30}
	windKPH       = threshold{39, 62, 89}
	heatC         = threshold{33, 35, 38}
	rainChancePct = threshold{80, 0, 0}
	stormSeverity = map[int]Severity{95: Moderate, 96: Severe, 99: Severe}
)

// WeatherSource is the subset of weather.Provider the evaluator reads.
type WeatherSource interface {
	GetCurrent(ctx context.Context, c weather.Coordinate) weather.Snapshot
	GetForecast(ctx context.Context, c weather.Coordinate) []weather.ForecastDay
}

// ThresholdEvaluator derives conditions from fixed rainfall, wind, heat and
// thunderstorm thresholds, checking current conditions and every forecast day.
type ThresholdEvaluator struct {
	source WeatherSource
}

// NewThresholdEvaluator returns an evaluator reading from source.
func NewThresholdEvaluator(source WeatherSource) *ThresholdEvaluator {
	return &ThresholdEvaluator{source: source}
}

// Evaluate returns current-condition alerts first, then forecast alerts in date order.
func (e *ThresholdEvaluator) Evaluate(ctx context.Context, c weather.Coordinate) ([]Condition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cur := e.source.GetCurrent(ctx, c)
	out := check(nil, "", reading{
		rain:       cur.Precipitation,
		rainChance: cur.PrecipitationProbability,
		wind:       cur.WindSpeed,
		heat:       cur.Temperature,
		code:       cur.WeatherCode,
	})

	for _, d := range e.source.GetForecast(ctx, c) {
		out = check(out, d.Date, reading{
			rain:       d.Precipitation,
			rainChance: d.PrecipitationProbability,
			wind:       d.WindSpeed,
			heat:       d.TempMax,
			code:       d.WeatherCode,
		})
	}
	return out, nil
}

type reading struct {
	rain, rainChance, wind, heat float64
	code                         int
}

func check(out []Condition, date string, r reading) []Condition {
	add := func(typ string, s Severity) {
		if s != Normal {
			out = append(out, Condition{Type: typ, Severity: s, ForecastDate: date})
		}
	}

	add(TypeHeavyRain, rainfallMM.classify(r.rain))
	add(TypeStrongWind, windKPH.classify(r.wind))
	add(TypeExtremeHeat, heatC.classify(r.heat))
	add(TypeThunderstorm, stormSeverity[r.code])
	add(TypeHighRainChance, rainChancePct.classify(r.rainChance))
	return out
}
