package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "weather_alerts"

// Metrics holds the Prometheus collectors for the weather and advisory pipeline.
type Metrics struct {
	// Weather provider metrics.
	WeatherRequests    *prometheus.CounterVec   // labels: kind={current,forecast,historical}, source={cache,upstream,fallback}
	UpstreamFailures   *prometheus.CounterVec   // labels: kind
	UpstreamDuration   *prometheus.HistogramVec // labels: kind
	OutOfScopeRequests prometheus.Counter

	// Advisory metrics.
	PropertiesProcessed *prometheus.CounterVec // labels: outcome={sent,no_alert,error}
	EmailsSent          prometheus.Counter
	EmailFailures       *prometheus.CounterVec // labels: role={owner,occupant}
	BatchDuration       prometheus.Histogram
	BatchRunning        prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.WeatherRequests,
		m.UpstreamFailures,
		m.UpstreamDuration,
		m.OutOfScopeRequests,
		m.PropertiesProcessed,
		m.EmailsSent,
		m.EmailFailures,
		m.BatchDuration,
		m.BatchRunning,
	)

	return m
}

// NewUnregisteredMetrics creates Metrics that are never exposed. Processes
// without a /metrics endpoint, such as the one-shot CLI, use it.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		WeatherRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_requests_total",
			Help:      "Weather lookups by dataset kind and where the answer came from.",
		}, []string{"kind", "source"}),
		UpstreamFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_failures_total",
			Help:      "Weather API calls that failed and were replaced by synthesized data.",
		}, []string{"kind"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Weather API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		OutOfScopeRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "out_of_scope_requests_total",
			Help:      "Lookups for coordinates outside the service area.",
		}),
		PropertiesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "properties_processed_total",
			Help:      "Properties run through the advisory pipeline, by outcome.",
		}, []string{"outcome"}),
		EmailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emails_sent_total",
			Help:      "Alert emails accepted by the mailer.",
		}),
		EmailFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "email_failures_total",
			Help:      "Alert emails the mailer rejected, by recipient role.",
		}, []string{"role"}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Duration of a full advisory batch run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		BatchRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_running",
			Help:      "1 while a batch run is in progress.",
		}),
	}
}
