package weather

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strconv"
	"time"
)

// band is the climate profile for a latitude band, with the realistic range
// each synthesized field is clamped to.
type band struct {
	name string

	temp, tempLo, tempHi       float64
	humidity, humidLo, humidHi float64
	precip, precipHi           float64
	precipProb, probLo, probHi float64
	wind, windLo, windHi       float64
	cloud                      float64
}

var (
	northBand = band{
		name: "north",
		temp: 26, tempLo: 22, tempHi: 30,
		humidity: 78, humidLo: 65, humidHi: 90,
		precip: 3.0, precipHi: 25,
		precipProb: 45, probLo: 10, probHi: 90,
		wind: 14, windLo: 5, windHi: 35,
		cloud: 55,
	}
	centralBand = band{
		name: "central",
		temp: 28, tempLo: 24, tempHi: 32,
		humidity: 80, humidLo: 68, humidHi: 92,
		precip: 4.5, precipHi: 30,
		precipProb: 55, probLo: 15, probHi: 95,
		wind: 11, windLo: 4, windHi: 30,
		cloud: 60,
	}
	southBand = band{
		name: "south",
		temp: 27, tempLo: 23, tempHi: 31,
		humidity: 82, humidLo: 70, humidHi: 94,
		precip: 5.0, precipHi: 32,
		precipProb: 60, probLo: 20, probHi: 95,
		wind: 9, windLo: 3, windHi: 25,
		cloud: 65,
	}
)

// codeRotation is the set of plausible tropical conditions the fallback cycles through.
var codeRotation = []int{1, 2, 3, 61, 80}

const (
	lonTempFactor   = 0.25
	latTempFactor   = -0.15
	lonHumidFactor  = 0.8
	lonPrecipFactor = 0.2
	latWindFactor   = 0.3

	maxTempDrift   = 1.5
	maxProbDrift   = 15.0
	maxWindDrift   = 4.0
	minPrecipDrift = -2.0
	maxPrecipDrift = 4.0
)

func bandFor(lat float64) band {
	switch {
	case lat >= 12.0:
		return northBand
	case lat >= 8.0:
		return centralBand
	default:
		return southBand
	}
}

// Synthesizer produces deterministic climate-model weather for a coordinate.
// The same coordinate and reference day always yield the same output.
type Synthesizer struct {
	loc *time.Location
}

// NewSynthesizer returns a Synthesizer that dates output in loc.
func NewSynthesizer(loc *time.Location) *Synthesizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Synthesizer{loc: loc}
}

// profile is the perturbed, clamped baseline for one coordinate.
type profile struct {
	b          band
	temp       float64
	humidity   float64
	precip     float64
	precipProb float64
	wind       float64
	codeIndex  int
}

func (s *Synthesizer) profileFor(c Coordinate) profile {
	b := bandFor(c.Latitude)
	dLon := c.Longitude - 120
	dLat := c.Latitude - 10

	idx := int(math.Mod(math.Abs(math.Floor(c.Longitude+c.Latitude)), float64(len(codeRotation))))

	return profile{
		b:          b,
		temp:       clamp(b.temp+dLon*lonTempFactor+dLat*latTempFactor, b.tempLo, b.tempHi),
		humidity:   clamp(b.humidity+dLon*lonHumidFactor, b.humidLo, b.humidHi),
		precip:     clamp(b.precip+dLon*lonPrecipFactor, 0, b.precipHi),
		precipProb: clamp(b.precipProb, b.probLo, b.probHi),
		wind:       clamp(b.wind+dLat*latWindFactor, b.windLo, b.windHi),
		codeIndex:  idx,
	}
}

// Current synthesizes present conditions.
func (s *Synthesizer) Current(c Coordinate) Snapshot {
	p := s.profileFor(c)
	code := codeRotation[p.codeIndex]
	info := describeCode(code)

	return Snapshot{
		Temperature:              math.Round(p.temp),
		Humidity:                 math.Round(p.humidity),
		Precipitation:            round1(p.precip),
		PrecipitationProbability: math.Round(p.precipProb),
		WindSpeed:                math.Round(p.wind),
		WindDirection:            float64(int(math.Abs(c.Longitude*10)) % 360),
		WeatherCode:              code,
		CloudCover:               math.Round(p.b.cloud),
		Description:              info.Description,
		Icon:                     info.Icon,
		Color:                    info.Color,
	}
}

// Forecast synthesizes MaxForecastDays days starting at now's calendar day.
func (s *Synthesizer) Forecast(c Coordinate, now time.Time) []ForecastDay {
	p := s.profileFor(c)
	rng := seededRand(c, 0)
	today := startOfDay(now.In(s.loc))

	days := make([]ForecastDay, 0, MaxForecastDays)
	for i := 0; i < MaxForecastDays; i++ {
		d := today.AddDate(0, 0, i)
		drift := jitter(rng, maxTempDrift)
		code := codeRotation[(p.codeIndex+i)%len(codeRotation)]
		info := describeCode(code)

		days = append(days, ForecastDay{
			Date:                     DateKey(d),
			DayLabel:                 DayLabel(d),
			TempMax:                  math.Round(clamp(p.temp+2+drift, p.b.tempLo, p.b.tempHi)),
			TempMin:                  math.Round(clamp(p.temp-3+drift, p.b.tempLo, p.b.tempHi)),
			Precipitation:            round1(clamp(p.precip+between(rng, minPrecipDrift, maxPrecipDrift), 0, p.b.precipHi)),
			PrecipitationProbability: math.Round(clamp(p.precipProb+jitter(rng, maxProbDrift), p.b.probLo, p.b.probHi)),
			WindSpeed:                math.Round(clamp(p.wind+jitter(rng, maxWindDrift), p.b.windLo, p.b.windHi)),
			WeatherCode:              code,
			Description:              info.Description,
			Icon:                     info.Icon,
			Color:                    info.Color,
		})
	}
	return days
}

// Historical synthesizes the days in [now-days, now-1], oldest first.
func (s *Synthesizer) Historical(c Coordinate, now time.Time, days int) []HistoricalDay {
	if days <= 0 {
		return []HistoricalDay{}
	}
	p := s.profileFor(c)
	rng := seededRand(c, 1)
	today := startOfDay(now.In(s.loc))

	out := make([]HistoricalDay, 0, days)
	for i := days; i >= 1; i-- {
		d := today.AddDate(0, 0, -i)
		drift := jitter(rng, maxTempDrift)
		code := codeRotation[(p.codeIndex+days-i)%len(codeRotation)]
		info := describeCode(code)

		out = append(out, HistoricalDay{
			Date:          DateKey(d),
			DayLabel:      DayLabel(d),
			TempMax:       math.Round(clamp(p.temp+2+drift, p.b.tempLo, p.b.tempHi)),
			TempMin:       math.Round(clamp(p.temp-3+drift, p.b.tempLo, p.b.tempHi)),
			Precipitation: round1(clamp(p.precip+between(rng, minPrecipDrift, maxPrecipDrift), 0, p.b.precipHi)),
			WeatherCode:   code,
			Description:   info.Description,
			Icon:          info.Icon,
			Color:         info.Color,
		})
	}
	return out
}

// seededRand derives a PRNG from the coordinate so drift is reproducible.
func seededRand(c Coordinate, stream uint64) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strconv.FormatFloat(c.Latitude, 'f', 4, 64)))
	_, _ = h.Write([]byte{','})
	_, _ = h.Write([]byte(strconv.FormatFloat(c.Longitude, 'f', 4, 64)))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, stream))
}

func jitter(rng *rand.Rand, limit float64) float64 {
	return between(rng, -limit, limit)
}

func between(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
