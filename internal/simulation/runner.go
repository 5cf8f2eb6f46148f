// Package simulation runs a fleet of simulated devices concurrently against
// one shared telemetry writer.
package simulation

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/sensorsim/internal/device"
	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"codeberg.org/mutker/sensorsim/internal/metrics"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"github.com/google/uuid"
)

// Runner starts one goroutine per planned device and waits for all of them.
type Runner struct {
	id       uuid.UUID
	connect  device.Connector
	log      logger.Logger
	metrics  metrics.Collector
	dropRate float64
	seed     int64
}

type Option func(*Runner)

func WithLogger(l logger.Logger) Option      { return func(r *Runner) { r.log = l } }
func WithMetrics(m metrics.Collector) Option { return func(r *Runner) { r.metrics = m } }
func WithDropRate(p float64) Option          { return func(r *Runner) { r.dropRate = p } }

// WithSeed makes values and drops reproducible. Device i uses seed+i.
func WithSeed(seed int64) Option { return func(r *Runner) { r.seed = seed } }

// NewRunner creates a runner whose devices bind through connect.
func NewRunner(connect device.Connector, opts ...Option) *Runner {
	r := &Runner{
		id:       uuid.New(),
		connect:  connect,
		log:      logger.Nop(),
		metrics:  metrics.Noop(),
		dropRate: device.DefaultDropRate,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("run_id", r.id.String())
	return r
}

// ID identifies this run in logs.
func (r *Runner) ID() string {
	return r.id.String()
}

// Run simulates every plan for duration. A device whose store fails stops
// on its own while the others keep running; all failures are joined into
// the returned error. Cancelling ctx lets in-flight inserts complete.
func (r *Runner) Run(ctx context.Context, plans []Plan, duration time.Duration) error {
	errFactory := errors.New()

	for _, p := range plans {
		if !p.validate() {
			return errFactory.WithData(ErrInvalidPlan, p)
		}
	}

	r.log.Info().
		Int("devices", len(plans)).
		Dur("duration", duration).
		Msg("Starting fleet simulation")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for i, p := range plans {
		sim := r.newSimulator(i, p)

		wg.Add(1)
		go func(p Plan) {
			defer wg.Done()
			if err := sim.Run(ctx, p.Interval, duration); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(p)
	}

	wg.Wait()

	if len(errs) > 0 {
		return errFactory.Wrap(ErrRunFailed, errors.Join(errs...))
	}

	r.log.Info().Msg("Fleet simulation finished")
	return nil
}

func (r *Runner) newSimulator(i int, p Plan) *device.Simulator {
	opts := []device.Option{
		device.WithConnector(r.connect),
		device.WithDropRate(r.dropRate),
		device.WithLogger(r.log),
		device.WithMetrics(r.metrics),
	}
	if r.seed != 0 {
		seed := r.seed + int64(i)
		opts = append(opts,
			device.WithSeed(seed),
			device.WithGenerator(sensor.NewGenerator(seed)),
		)
	}
	return device.New(p.DeviceID, p.Kinds, opts...)
}
