package weather

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/weather-advisory/internal/observability"
)

const (
	// CurrentTTL and ForecastTTL bound how long upstream answers are reused.
	CurrentTTL    = 15 * time.Minute
	ForecastTTL   = 15 * time.Minute
	HistoricalTTL = 60 * time.Minute
)

// ServiceLocation is Philippine Standard Time. The Philippines observes no DST.
var ServiceLocation = time.FixedZone("PST", 8*60*60)

// CacheStore is the get/set-with-TTL capability the provider caches through.
type CacheStore interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Upstream is the raw weather API. *OpenMeteoClient satisfies it.
type Upstream interface {
	FetchCurrent(ctx context.Context, c Coordinate) (*CurrentResponse, error)
	FetchForecast(ctx context.Context, c Coordinate) (*DailyResponse, error)
	FetchHistorical(ctx context.Context, c Coordinate, start, end time.Time) (*DailyResponse, error)
}

// Provider serves weather data cache-aside over Upstream. Upstream failures and
// out-of-scope coordinates are answered by the Synthesizer and never surface as errors.
type Provider struct {
	upstream Upstream
	cache    CacheStore
	synth    *Synthesizer
	clock    clockwork.Clock
	log      *slog.Logger
	metrics  *observability.Metrics
}

// NewProvider wires a Provider. A nil clock uses wall-clock time and nil metrics are unregistered.
func NewProvider(upstream Upstream, cache CacheStore, clock clockwork.Clock, log *slog.Logger, metrics *observability.Metrics) *Provider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = observability.NewUnregisteredMetrics()
	}
	return &Provider{
		upstream: upstream,
		cache:    cache,
		synth:    NewSynthesizer(ServiceLocation),
		clock:    clock,
		log:      log,
		metrics:  metrics,
	}
}

// CacheKey builds "weather_{kind}_{lat}_{lon}", with "_{days}" appended when days > 0.
func CacheKey(kind Kind, c Coordinate, days int) string {
	key := "weather_" + string(kind) + "_" +
		strconv.FormatFloat(c.Latitude, 'f', -1, 64) + "_" +
		strconv.FormatFloat(c.Longitude, 'f', -1, 64)
	if days > 0 {
		key += "_" + strconv.Itoa(days)
	}
	return key
}

// GetCurrent returns current conditions at c.
func (p *Provider) GetCurrent(ctx context.Context, c Coordinate) Snapshot {
	return cacheAside(ctx, p, KindCurrent, c, CacheKey(KindCurrent, c, 0), CurrentTTL,
		func(ctx context.Context) (Snapshot, error) {
			raw, err := p.upstream.FetchCurrent(ctx, c)
			if err != nil {
				return Snapshot{}, err
			}
			return formatCurrent(raw), nil
		},
		func() Snapshot { return p.synth.Current(c) },
	)
}

// GetForecast returns up to MaxForecastDays days starting today.
func (p *Provider) GetForecast(ctx context.Context, c Coordinate) []ForecastDay {
	return cacheAside(ctx, p, KindForecast, c, CacheKey(KindForecast, c, 0), ForecastTTL,
		func(ctx context.Context) ([]ForecastDay, error) {
			raw, err := p.upstream.FetchForecast(ctx, c)
			if err != nil {
				return nil, err
			}
			return formatForecast(raw), nil
		},
		func() []ForecastDay { return p.synth.Forecast(c, p.clock.Now()) },
	)
}

// GetHistorical returns the days in [today-days, today-1], oldest first.
func (p *Provider) GetHistorical(ctx context.Context, c Coordinate, days int) []HistoricalDay {
	if days <= 0 {
		days = DefaultHistoricalDays
	}
	now := p.clock.Now()
	today := startOfDay(now.In(ServiceLocation))
	start, end := today.AddDate(0, 0, -days), today.AddDate(0, 0, -1)

	return cacheAside(ctx, p, KindHistorical, c, CacheKey(KindHistorical, c, days), HistoricalTTL,
		func(ctx context.Context) ([]HistoricalDay, error) {
			raw, err := p.upstream.FetchHistorical(ctx, c, start, end)
			if err != nil {
				return nil, err
			}
			return formatHistorical(raw), nil
		},
		func() []HistoricalDay { return p.synth.Historical(c, now, days) },
	)
}

// GetBundle gathers current, forecast and history for c concurrently.
// The only error it returns is the context's.
func (p *Provider) GetBundle(ctx context.Context, c Coordinate) (Bundle, error) {
	b := Bundle{
		Location: c,
		Scope:    scopeFor(IsInScope(c)),
	}

	var g errgroup.Group
	g.Go(func() error {
		b.Current = p.GetCurrent(ctx, c)
		return nil
	})
	g.Go(func() error {
		b.Forecast = p.GetForecast(ctx, c)
		return nil
	})
	g.Go(func() error {
		b.Historical = p.GetHistorical(ctx, c, DefaultHistoricalDays)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Bundle{}, fmt.Errorf("building weather bundle for %s: %w", c, err)
	}

	b.LastUpdated = p.clock.Now()
	return b, nil
}

// cacheAside runs the out-of-scope gate, cache lookup, upstream fetch and fallback
// for one dataset. Failed fetches are not cached.
func cacheAside[T any](
	ctx context.Context,
	p *Provider,
	kind Kind,
	c Coordinate,
	key string,
	ttl time.Duration,
	fetch func(context.Context) (T, error),
	fallback func() T,
) T {
	log := p.log.With("kind", string(kind), "latitude", c.Latitude, "longitude", c.Longitude)

	if !IsInScope(c) {
		log.Info("coordinate outside service area, using climate model")
		p.metrics.OutOfScopeRequests.Inc()
		p.metrics.WeatherRequests.WithLabelValues(string(kind), "fallback").Inc()
		return fallback()
	}

	var cached T
	ok, err := p.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Warn("cache read failed", "key", key, "err", err)
	}
	if ok {
		p.metrics.WeatherRequests.WithLabelValues(string(kind), "cache").Inc()
		return cached
	}

	start := p.clock.Now()
	fresh, err := fetch(ctx)
	p.metrics.UpstreamDuration.WithLabelValues(string(kind)).Observe(p.clock.Since(start).Seconds())
	if err != nil {
		log.Warn("weather api failed, using climate model", "err", err)
		p.metrics.UpstreamFailures.WithLabelValues(string(kind)).Inc()
		p.metrics.WeatherRequests.WithLabelValues(string(kind), "fallback").Inc()
		return fallback()
	}

	if err := p.cache.Set(ctx, key, fresh, ttl); err != nil {
		log.Warn("cache write failed", "key", key, "err", err)
	}
	p.metrics.WeatherRequests.WithLabelValues(string(kind), "upstream").Inc()
	return fresh
}

func formatCurrent(raw *CurrentResponse) Snapshot {
	cur := raw.Current
	info := unknownCode
	code := 0
	if cur.WeatherCode != nil {
		code = int(*cur.WeatherCode)
		info = describeCode(code)
	}

	return Snapshot{
		Temperature:              math.Round(deref(cur.Temperature)),
		Humidity:                 math.Round(deref(cur.Humidity)),
		Precipitation:            round1(deref(cur.Precipitation)),
		PrecipitationProbability: math.Round(deref(cur.PrecipitationProbability)),
		WindSpeed:                math.Round(deref(cur.WindSpeed)),
		WindDirection:            math.Round(deref(cur.WindDirection)),
		WeatherCode:              code,
		CloudCover:               math.Round(deref(cur.CloudCover)),
		Description:              info.Description,
		Icon:                     info.Icon,
		Color:                    info.Color,
	}
}

func formatForecast(raw *DailyResponse) []ForecastDay {
	d := raw.Daily
	n := min(len(d.Time), MaxForecastDays)

	days := make([]ForecastDay, 0, n)
	for i := 0; i < n; i++ {
		code, info := dailyCode(d.WeatherCode, i)
		days = append(days, ForecastDay{
			Date:                     d.Time[i],
			DayLabel:                 labelFor(d.Time[i]),
			TempMax:                  math.Round(deref(at(d.TempMax, i))),
			TempMin:                  math.Round(deref(at(d.TempMin, i))),
			Precipitation:            round1(deref(at(d.PrecipitationSum, i))),
			PrecipitationProbability: math.Round(deref(at(d.PrecipitationProbability, i))),
			WindSpeed:                math.Round(deref(at(d.WindSpeedMax, i))),
			WeatherCode:              code,
			Description:              info.Description,
			Icon:                     info.Icon,
			Color:                    info.Color,
		})
	}
	return days
}

func formatHistorical(raw *DailyResponse) []HistoricalDay {
	d := raw.Daily

	days := make([]HistoricalDay, 0, len(d.Time))
	for i, date := range d.Time {
		code, info := dailyCode(d.WeatherCode, i)
		days = append(days, HistoricalDay{
			Date:          date,
			DayLabel:      labelFor(date),
			TempMax:       math.Round(deref(at(d.TempMax, i))),
			TempMin:       math.Round(deref(at(d.TempMin, i))),
			Precipitation: round1(deref(at(d.PrecipitationSum, i))),
			WeatherCode:   code,
			Description:   info.Description,
			Icon:          info.Icon,
			Color:         info.Color,
		})
	}
	return days
}

func dailyCode(codes []*float64, i int) (int, codeInfo) {
	v := at(codes, i)
	if v == nil {
		return 0, unknownCode
	}
	code := int(*v)
	return code, describeCode(code)
}

// labelFor turns an upstream YYYY-MM-DD date into a display label, passing
// unparseable dates through unchanged.
func labelFor(date string) string {
	t, err := time.ParseInLocation(dateLayout, date, ServiceLocation)
	if err != nil {
		return date
	}
	return DayLabel(t)
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
