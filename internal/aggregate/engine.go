package aggregate

import (
	"context"
	"time"

	"codeberg.org/mutker/sensorsim/internal/anomaly"
	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"codeberg.org/mutker/sensorsim/internal/telemetry"
)

// Engine runs aggregations over a single query snapshot each.
type Engine struct {
	store telemetry.Querier
	log   logger.Logger
}

func NewEngine(store telemetry.Querier, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{store: store, log: log}
}

// Aggregate queries readings matching f and buckets them by g.
func (e *Engine) Aggregate(ctx context.Context, f telemetry.Filter, g Granularity) ([]Point, error) {
	readings, err := e.query(ctx, f)
	if err != nil {
		return nil, err
	}

	points := Bucket(readings, g)
	e.log.Debug().
		Str("granularity", g.String()).
		Int("readings", len(readings)).
		Int("points", len(points)).
		Msg("Aggregated readings")

	return points, nil
}

// SummaryStats summarises readings since the given time, optionally for one device.
func (e *Engine) SummaryStats(ctx context.Context, since time.Time, deviceID string) ([]Stats, error) {
	readings, err := e.query(ctx, telemetry.Since(since).ForDevice(deviceID))
	if err != nil {
		return nil, err
	}
	return Summarize(readings), nil
}

// Anomalies runs the z-score detector over one kind's readings.
func (e *Engine) Anomalies(
	ctx context.Context,
	since time.Time,
	deviceID string,
	kind sensor.Kind,
	threshold float64,
) ([]anomaly.Anomaly, error) {
	readings, err := e.query(ctx, telemetry.Since(since).ForDevice(deviceID).ForKind(kind))
	if err != nil {
		return nil, err
	}

	found := anomaly.Detect(readings, threshold)
	e.log.Debug().
		Str("sensor_type", kind.String()).
		Int("readings", len(readings)).
		Int("anomalies", len(found)).
		Msg("Anomaly detection finished")

	return found, nil
}

func (e *Engine) query(ctx context.Context, f telemetry.Filter) ([]sensor.Reading, error) {
	readings, err := e.store.Query(ctx, f)
	if err != nil {
		return nil, errors.New().Wrap(ErrQueryFailed, err)
	}
	return readings, nil
}
