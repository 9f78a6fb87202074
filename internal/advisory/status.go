package advisory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neexbeast/weather-advisory/internal/alert"
	"github.com/neexbeast/weather-advisory/internal/property"
	"github.com/neexbeast/weather-advisory/internal/weather"
)

// PropertyRef identifies a property in reports.
type PropertyRef struct {
	ID       int64              `json:"id"`
	Name     string             `json:"name"`
	Location weather.Coordinate `json:"location"`
}

// StatusReport is the current alert picture for one property. Nothing is sent.
type StatusReport struct {
	Property    PropertyRef       `json:"property"`
	Alerts      []alert.Condition `json:"alerts"`
	WeatherData weather.Bundle    `json:"weather_data"`
	AlertCount  int               `json:"alert_count"`
	HasAlerts   bool              `json:"has_alerts"`
	LastChecked time.Time         `json:"last_checked"`
}

// Status evaluates a property's alerts and weather without dispatching.
func (o *Orchestrator) Status(ctx context.Context, id int64) (StatusReport, error) {
	p, err := o.located(ctx, id)
	if err != nil {
		return StatusReport{}, err
	}
	c := *p.Location

	conditions, err := o.evaluator.Evaluate(ctx, c)
	if err != nil {
		return StatusReport{}, fmt.Errorf("evaluating alerts for property %d: %w", id, err)
	}
	bundle, err := o.weather.GetBundle(ctx, c)
	if err != nil {
		return StatusReport{}, fmt.Errorf("loading weather for property %d: %w", id, err)
	}
	if conditions == nil {
		conditions = []alert.Condition{}
	}

	return StatusReport{
		Property:    PropertyRef{ID: p.ID, Name: p.Name, Location: c},
		Alerts:      conditions,
		WeatherData: bundle,
		AlertCount:  len(conditions),
		HasAlerts:   len(conditions) > 0,
		LastChecked: o.clock.Now(),
	}, nil
}

// Preview is what a run would send for one property.
type Preview struct {
	PropertyID   int64                `json:"property_id"`
	PropertyName string               `json:"property_name"`
	HasAlerts    bool                 `json:"has_alerts"`
	AlertType    string               `json:"alert_type,omitempty"`
	Severity     alert.Severity       `json:"severity,omitempty"`
	AlertCount   int                  `json:"alert_count"`
	Recipients   []property.Recipient `json:"recipients"`
	Error        string               `json:"error,omitempty"`
}

// Preview reports what RunAll (id nil) or RunOne (id set) would send, without sending.
// Per-property failures are reported in Preview.Error.
func (o *Orchestrator) Preview(ctx context.Context, id *int64) ([]Preview, error) {
	var props []property.Property
	if id != nil {
		p, err := o.located(ctx, *id)
		if err != nil {
			return nil, err
		}
		props = []property.Property{*p}
	} else {
		all, err := o.repo.ListWithCoordinates(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading properties: %w", err)
		}
		props = all
	}

	out := make([]Preview, len(props))
	g := new(errgroup.Group)
	g.SetLimit(o.cfg.Workers)
	for i, p := range props {
		g.Go(func() error {
			out[i] = o.preview(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	return out, nil
}

func (o *Orchestrator) preview(ctx context.Context, p property.Property) (pv Preview) {
	pv = Preview{
		PropertyID:   p.ID,
		PropertyName: p.Name,
		Recipients:   []property.Recipient{},
	}
	defer func() {
		if r := recover(); r != nil {
			pv.Error = fmt.Sprintf("panic: %v", r)
		}
	}()

	if rcpts := o.dispatcher.Recipients(p); rcpts != nil {
		pv.Recipients = rcpts
	}

	conditions, err := o.evaluator.Evaluate(ctx, *p.Location)
	if err != nil {
		pv.Error = err.Error()
		return pv
	}
	bundle, err := o.weather.GetBundle(ctx, *p.Location)
	if err != nil {
		pv.Error = err.Error()
		return pv
	}

	digest, err := alert.Aggregate(conditions, bundle)
	if errors.Is(err, alert.ErrNoAlerts) {
		return pv
	}
	pv.HasAlerts = true
	pv.AlertType = digest.Type
	pv.Severity = digest.Severity
	pv.AlertCount = len(digest.AllAlerts)
	return pv
}
