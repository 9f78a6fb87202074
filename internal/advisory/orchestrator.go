// Package advisory runs the weather advisory pipeline for one property or the
// whole portfolio: evaluate, aggregate, dispatch, tally.
package advisory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/weather-advisory/internal/alert"
	"github.com/neexbeast/weather-advisory/internal/notify"
	"github.com/neexbeast/weather-advisory/internal/observability"
	"github.com/neexbeast/weather-advisory/internal/property"
	"github.com/neexbeast/weather-advisory/internal/weather"
)

var (
	// ErrPropertyNotFound is returned when a property id does not exist.
	ErrPropertyNotFound = errors.New("property not found")
	// ErrMissingCoordinates is returned for a property without a recorded location.
	ErrMissingCoordinates = errors.New("property has no coordinates")
)

const (
	DefaultWorkers      = 4
	DefaultBatchTimeout = 10 * time.Minute
)

// Evaluator turns a coordinate's weather into alert conditions.
type Evaluator interface {
	Evaluate(ctx context.Context, c weather.Coordinate) ([]alert.Condition, error)
}

// PropertyRepo is the property read model.
type PropertyRepo interface {
	ListWithCoordinates(ctx context.Context) ([]property.Property, error)
	Get(ctx context.Context, id int64) (*property.Property, error)
}

// WeatherProvider supplies the bundle a digest is built from.
type WeatherProvider interface {
	GetBundle(ctx context.Context, c weather.Coordinate) (weather.Bundle, error)
}

// Dispatcher sends a digest to a property's recipients.
type Dispatcher interface {
	Dispatch(ctx context.Context, p property.Property, d alert.Digest) notify.Outcome
	Recipients(p property.Property) []property.Recipient
}

// Config tunes batch runs.
type Config struct {
	Workers      int
	BatchTimeout time.Duration
}

// Summary tallies one batch run. Every processed property lands in exactly one
// of AlertsSent, NoAlerts or Errors.
type Summary struct {
	RunID           string        `json:"run_id"`
	TotalProperties int           `json:"total_properties"`
	AlertsSent      int           `json:"alerts_sent"`
	EmailsSent      int           `json:"emails_sent"`
	NoAlerts        int           `json:"no_alerts"`
	Errors          int           `json:"errors"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"-"`
}

// Orchestrator drives the per-property pipeline.
type Orchestrator struct {
	repo       PropertyRepo
	evaluator  Evaluator
	weather    WeatherProvider
	dispatcher Dispatcher
	cfg        Config
	clock      clockwork.Clock
	log        *slog.Logger
	metrics    *observability.Metrics
}

// NewOrchestrator wires an Orchestrator, applying defaults to zero Config fields.
func NewOrchestrator(
	repo PropertyRepo,
	evaluator Evaluator,
	provider WeatherProvider,
	dispatcher Dispatcher,
	cfg Config,
	clock clockwork.Clock,
	log *slog.Logger,
	metrics *observability.Metrics,
) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = observability.NewUnregisteredMetrics()
	}
	return &Orchestrator{
		repo:       repo,
		evaluator:  evaluator,
		weather:    provider,
		dispatcher: dispatcher,
		cfg:        cfg,
		clock:      clock,
		log:        log,
		metrics:    metrics,
	}
}

// RunAll processes every located property with at most cfg.Workers in flight.
// Per-property failures are counted, never returned. The error is non-nil only
// when the property list cannot be loaded.
func (o *Orchestrator) RunAll(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.BatchTimeout)
	defer cancel()

	sum := Summary{RunID: uuid.NewString(), StartedAt: o.clock.Now()}
	log := o.log.With("run_id", sum.RunID)

	o.metrics.BatchRunning.Set(1)
	defer o.metrics.BatchRunning.Set(0)

	props, err := o.repo.ListWithCoordinates(ctx)
	if err != nil {
		return sum, fmt.Errorf("loading properties: %w", err)
	}
	sum.TotalProperties = len(props)
	log.Info("weather alert batch started", "properties", len(props), "workers", o.cfg.Workers)

	var alertsSent, emailsSent, noAlerts, failed atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)
	for _, p := range props {
		g.Go(func() error {
			out, err := o.process(ctx, p)
			plog := log.With("property_id", p.ID, "property", p.Name)

			switch {
			case err != nil:
				plog.Error("property pipeline failed", "err", err)
				failed.Add(1)
				o.metrics.PropertiesProcessed.WithLabelValues("error").Inc()
			case out.Sent:
				alertsSent.Add(1)
				emailsSent.Add(int64(out.EmailsSent))
				o.metrics.PropertiesProcessed.WithLabelValues("sent").Inc()
			case out.Reason == notify.ReasonNoAlerts:
				noAlerts.Add(1)
				o.metrics.PropertiesProcessed.WithLabelValues("no_alert").Inc()
			default:
				plog.Warn("weather alert not delivered", "reason", out.Reason, "errors", out.Errors)
				failed.Add(1)
				o.metrics.PropertiesProcessed.WithLabelValues("error").Inc()
			}
			return nil
		})
	}
	_ = g.Wait()

	sum.AlertsSent = int(alertsSent.Load())
	sum.EmailsSent = int(emailsSent.Load())
	sum.NoAlerts = int(noAlerts.Load())
	sum.Errors = int(failed.Load())
	sum.Duration = o.clock.Since(sum.StartedAt)
	o.metrics.BatchDuration.Observe(sum.Duration.Seconds())

	if ctx.Err() != nil {
		log.Warn("weather alert batch hit its deadline", "timeout", o.cfg.BatchTimeout)
	}
	log.Info("weather alert batch finished",
		"total", sum.TotalProperties,
		"alerts_sent", sum.AlertsSent,
		"emails_sent", sum.EmailsSent,
		"no_alerts", sum.NoAlerts,
		"errors", sum.Errors,
		"duration", sum.Duration,
	)
	return sum, nil
}

// RunOne runs the pipeline for a single property and sends its alert.
func (o *Orchestrator) RunOne(ctx context.Context, id int64) (notify.Outcome, error) {
	p, err := o.located(ctx, id)
	if err != nil {
		return notify.Outcome{}, err
	}
	return o.process(ctx, *p)
}

// located loads a property and checks that it has coordinates.
func (o *Orchestrator) located(ctx context.Context, id int64) (*property.Property, error) {
	p, err := o.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading property %d: %w", id, err)
	}
	if p == nil {
		return nil, fmt.Errorf("property %d: %w", id, ErrPropertyNotFound)
	}
	if p.Location == nil {
		return nil, fmt.Errorf("property %d: %w", id, ErrMissingCoordinates)
	}
	return p, nil
}

// process runs evaluate, aggregate and dispatch for p, converting a panic into an error.
func (o *Orchestrator) process(ctx context.Context, p property.Property) (out notify.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing property %d: %v", p.ID, r)
		}
	}()

	if p.Location == nil {
		return notify.Outcome{}, fmt.Errorf("property %d: %w", p.ID, ErrMissingCoordinates)
	}
	c := *p.Location

	conditions, err := o.evaluator.Evaluate(ctx, c)
	if err != nil {
		return notify.Outcome{}, fmt.Errorf("evaluating alerts for property %d: %w", p.ID, err)
	}

	bundle, err := o.weather.GetBundle(ctx, c)
	if err != nil {
		return notify.Outcome{}, fmt.Errorf("loading weather for property %d: %w", p.ID, err)
	}

	digest, err := alert.Aggregate(conditions, bundle)
	if errors.Is(err, alert.ErrNoAlerts) {
		return notify.NoAlerts(), nil
	}
	if err != nil {
		return notify.Outcome{}, fmt.Errorf("aggregating alerts for property %d: %w", p.ID, err)
	}

	return o.dispatcher.Dispatch(ctx, p, digest), nil
}
