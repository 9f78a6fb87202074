package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/neexbeast/weather-advisory/internal/advisory"
	"github.com/neexbeast/weather-advisory/internal/weather"
)

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	advisor  Advisor
	weather  WeatherService
	validate *validator.Validate
	log      *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(advisor Advisor, weather WeatherService, log *slog.Logger) *Handlers {
	return &Handlers{
		advisor:  advisor,
		weather:  weather,
		validate: validator.New(),
		log:      log,
	}
}

// envelope is the response shape for every advisory route.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func errorBody(msg string) envelope {
	return envelope{Success: false, Error: msg}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// propertyID parses the {id} URL parameter, writing a 400 when it is not a positive integer.
func propertyID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("property id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// writeAdvisoryError maps orchestrator errors onto status codes.
func (h *Handlers) writeAdvisoryError(w http.ResponseWriter, id int64, err error) {
	switch {
	case errors.Is(err, advisory.ErrPropertyNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("property not found"))
	case errors.Is(err, advisory.ErrMissingCoordinates):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("property has no coordinates"))
	default:
		h.log.Error("advisory request failed", "property_id", id, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal server error"))
	}
}

// GetPropertyAlerts handles GET /api/v1/properties/{id}/weather-alerts.
// Evaluates current alerts for the property without notifying anyone.
func (h *Handlers) GetPropertyAlerts(w http.ResponseWriter, r *http.Request) {
	id, ok := propertyID(w, r)
	if !ok {
		return
	}

	report, err := h.advisor.Status(r.Context(), id)
	if err != nil {
		h.writeAdvisoryError(w, id, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: report})
}

// TestPropertyAlert handles POST /api/v1/properties/{id}/weather-alerts/test.
// Runs the full pipeline for one property, sending real email.
func (h *Handlers) TestPropertyAlert(w http.ResponseWriter, r *http.Request) {
	id, ok := propertyID(w, r)
	if !ok {
		return
	}

	out, err := h.advisor.RunOne(r.Context(), id)
	if err != nil {
		h.writeAdvisoryError(w, id, err)
		return
	}

	msg := "Test weather alert sent"
	if !out.Sent {
		msg = "Test weather alert not sent: " + out.Reason
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: msg, Data: out})
}

type runResult struct {
	RunID           string `json:"run_id"`
	TotalProperties int    `json:"total_properties"`
	AlertsSent      int    `json:"alerts_sent"`
	EmailsSent      int    `json:"emails_sent"`
	NoAlerts        int    `json:"no_alerts"`
	Errors          int    `json:"errors"`
}

// RunAlerts handles POST /api/v1/weather-alerts/run.
// Processes the whole portfolio; individual property failures are only counted.
// A client that disconnects does not abort the batch halfway through.
func (h *Handlers) RunAlerts(w http.ResponseWriter, r *http.Request) {
	sum, err := h.advisor.RunAll(context.WithoutCancel(r.Context()))
	if err != nil {
		h.log.Error("weather alert batch failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("weather alert run failed"))
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: runResult{
		RunID:           sum.RunID,
		TotalProperties: sum.TotalProperties,
		AlertsSent:      sum.AlertsSent,
		EmailsSent:      sum.EmailsSent,
		NoAlerts:        sum.NoAlerts,
		Errors:          sum.Errors,
	}})
}

type weatherQuery struct {
	Latitude  string `validate:"required,latitude"`
	Longitude string `validate:"required,longitude"`
}

// GetWeather handles GET /api/v1/weather?latitude=&longitude=.
func (h *Handlers) GetWeather(w http.ResponseWriter, r *http.Request) {
	q := weatherQuery{
		Latitude:  r.URL.Query().Get("latitude"),
		Longitude: r.URL.Query().Get("longitude"),
	}
	if err := h.validate.Struct(q); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("latitude and longitude must be valid coordinates"))
		return
	}

	lat, _ := strconv.ParseFloat(q.Latitude, 64)
	lon, _ := strconv.ParseFloat(q.Longitude, 64)

	bundle, err := h.weather.GetBundle(r.Context(), weather.Coordinate{Latitude: lat, Longitude: lon})
	if err != nil {
		h.log.Error("weather lookup failed", "latitude", lat, "longitude", lon, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody("weather lookup failed"))
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Data: bundle})
}

// Pinger is a dependency the health check can ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlerFunc returns an http.HandlerFunc that checks db and redis connectivity.
// A nil redis reports "disabled" and does not degrade the result.
func HealthHandlerFunc(db, redis Pinger, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "disabled"

		if err := db.Ping(ctx); err != nil {
			log.Error("health check: db ping failed", "err", err)
			dbStatus = "error"
			status = http.StatusServiceUnavailable
		}

		if redis != nil {
			redisStatus = "ok"
			if err := redis.Ping(ctx); err != nil {
				log.Error("health check: redis ping failed", "err", err)
				redisStatus = "error"
				status = http.StatusServiceUnavailable
			}
		}

		overall := "ok"
		if status != http.StatusOK {
			overall = "degraded"
		}
		writeJSON(w, status, map[string]string{
			"status": overall,
			"db":     dbStatus,
			"redis":  redisStatus,
		})
	}
}
