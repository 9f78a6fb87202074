package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the Chi router. Health and metrics are unauthenticated;
// every advisory and weather route requires bearer auth. Rate limiting is
// applied globally: 60 requests per minute per IP. redis may be nil when the
// in-process cache is in use.
func NewRouter(handlers *Handlers, token string, db, redis Pinger, log *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(log))
	r.Use(httprate.LimitByIP(60, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(db, redis, log))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(token))
		r.Get("/api/v1/properties/{id}/weather-alerts", handlers.GetPropertyAlerts)
		r.Post("/api/v1/properties/{id}/weather-alerts/test", handlers.TestPropertyAlert)
		r.Post("/api/v1/weather-alerts/run", handlers.RunAlerts)
		r.Get("/api/v1/weather", handlers.GetWeather)
	})

	return r
}

var _ http.Handler = (*chi.Mux)(nil)
