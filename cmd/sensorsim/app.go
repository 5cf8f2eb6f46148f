package main

import (
	"context"
	"io"
	"math/rand"
	"time"

	"codeberg.org/mutker/sensorsim/internal/aggregate"
	"codeberg.org/mutker/sensorsim/internal/config"
	"codeberg.org/mutker/sensorsim/internal/device"
	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/ingest"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"codeberg.org/mutker/sensorsim/internal/metrics"
	"codeberg.org/mutker/sensorsim/internal/pid"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"codeberg.org/mutker/sensorsim/internal/simulation"
	"codeberg.org/mutker/sensorsim/internal/telemetry"
)

// app owns the resources a command opens and releases them in reverse order.
type app struct {
	cfg     *config.Config
	out     io.Writer
	log     logger.Logger
	now     func() time.Time
	closers []func() error
}

func newApp(cfg *config.Config, out io.Writer) *app {
	return &app{
		cfg: cfg,
		out: out,
		log: logger.Default(),
		now: time.Now,
	}
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) openStore(ctx context.Context) (*telemetry.SQLiteStore, error) {
	store, err := telemetry.Open(ctx, a.cfg.Telemetry(), a.log)
	if err != nil {
		return nil, err
	}
	a.onClose(store.Close)
	return store, nil
}

// openWriterStore also takes the PID guard so two simulator processes do
// not write the same database.
func (a *app) openWriterStore(ctx context.Context) (*telemetry.SQLiteStore, error) {
	path := pid.Path(a.cfg.DBPath)
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := pid.Write(path); err != nil {
		return nil, err
	}
	a.onClose(func() error { return pid.Remove(path) })
	return store, nil
}

func (a *app) startBroker(sink telemetry.Writer) (*ingest.Broker, error) {
	broker, err := ingest.NewBroker(a.cfg.Ingest(), sink, a.log)
	if err != nil {
		return nil, err
	}
	if err := broker.Serve(); err != nil {
		return nil, err
	}
	a.onClose(broker.Close)
	return broker, nil
}

func (a *app) engine(store telemetry.Querier) *aggregate.Engine {
	return aggregate.NewEngine(store, a.log)
}

// deviceArg is the optional positional device filter of the report commands.
func (a *app) deviceArg() string {
	if len(a.cfg.Args) > 0 {
		return a.cfg.Args[0]
	}
	return ""
}

func (a *app) rand() *rand.Rand {
	seed := a.cfg.Seed
	if seed == 0 {
		seed = a.now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func runSimulate(ctx context.Context, a *app) error {
	store, err := a.openWriterStore(ctx)
	if err != nil {
		return err
	}

	var w telemetry.Writer = store
	if a.cfg.Transport == config.TransportMQTT {
		broker, err := a.startBroker(store)
		if err != nil {
			return err
		}
		w = broker.Publisher()
	}

	collector := metrics.NewCollector(a.cfg.MetricsConfig())
	runner := simulation.NewRunner(device.Static(w),
		simulation.WithLogger(a.log),
		simulation.WithMetrics(collector),
		simulation.WithDropRate(a.cfg.DropRate),
		simulation.WithSeed(a.cfg.Seed),
	)

	plans := simulation.PlanFleet(a.cfg.Devices, a.cfg.MinInterval, a.cfg.MaxInterval, a.rand())
	renderPlans(a.out, runner.ID(), plans)

	runErr := runner.Run(ctx, plans, a.cfg.Duration)
	if a.cfg.Metrics {
		renderMetrics(a.out, collector.Snapshot())
	}
	if runErr != nil {
		return errors.New().Wrap(errors.ErrSimulation, runErr)
	}
	return nil
}

func runDevice(ctx context.Context, a *app) error {
	kinds := a.cfg.Kinds()
	if len(kinds) == 0 {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "no sensors configured")
	}

	var w telemetry.Writer
	if a.cfg.Transport == config.TransportMQTT {
		pub, err := ingest.Dial(ctx, a.cfg.MQTTAddress, a.cfg.DeviceID, a.cfg.TopicPrefix, a.log)
		if err != nil {
			return err
		}
		a.onClose(pub.Close)
		w = pub
	} else {
		store, err := a.openWriterStore(ctx)
		if err != nil {
			return err
		}
		w = store
	}

	collector := metrics.NewCollector(a.cfg.MetricsConfig())
	opts := []device.Option{
		device.WithConnector(device.Static(w)),
		device.WithDropRate(a.cfg.DropRate),
		device.WithLogger(a.log),
		device.WithMetrics(collector),
	}
	if a.cfg.Seed != 0 {
		opts = append(opts,
			device.WithSeed(a.cfg.Seed),
			device.WithGenerator(sensor.NewGenerator(a.cfg.Seed)),
		)
	}

	sim := device.New(a.cfg.DeviceID, kinds, opts...)
	runErr := sim.Run(ctx, a.cfg.Interval, a.cfg.Duration)
	if a.cfg.Metrics {
		renderMetrics(a.out, collector.Snapshot())
	}
	if runErr != nil {
		return errors.New().Wrap(errors.ErrSimulation, runErr)
	}
	return nil
}

func runBroker(ctx context.Context, a *app) error {
	store, err := a.openWriterStore(ctx)
	if err != nil {
		return err
	}
	if _, err := a.startBroker(store); err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}

func runDevices(ctx context.Context, a *app) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	ids, err := store.Devices(ctx)
	if err != nil {
		return errors.New().Wrap(errors.ErrReport, err)
	}

	catalog := make(map[string][]sensor.Kind, len(ids))
	for _, id := range ids {
		kinds, err := store.Kinds(ctx, id)
		if err != nil {
			return errors.New().Wrap(errors.ErrReport, err)
		}
		catalog[id] = kinds
	}

	renderDevices(a.out, ids, catalog)
	return nil
}

func runStats(ctx context.Context, a *app) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	stats, err := a.engine(store).SummaryStats(ctx, a.cfg.Since(a.now()), a.deviceArg())
	if err != nil {
		return errors.New().Wrap(errors.ErrReport, err)
	}

	renderStats(a.out, stats)
	return nil
}

func runAggregate(ctx context.Context, a *app) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	f := telemetry.Since(a.cfg.Since(a.now())).ForDevice(a.deviceArg())
	if k := a.cfg.SensorKind(); k != nil {
		f = f.ForKind(*k)
	}

	g := aggregate.ParseGranularity(a.cfg.Granularity)
	points, err := a.engine(store).Aggregate(ctx, f, g)
	if err != nil {
		return errors.New().Wrap(errors.ErrReport, err)
	}

	renderPoints(a.out, g, points)
	return nil
}

func runAnomalies(ctx context.Context, a *app) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}

	kinds := []sensor.Kind{}
	if k := a.cfg.SensorKind(); k != nil {
		kinds = append(kinds, *k)
	} else {
		kinds, err = store.Kinds(ctx, a.deviceArg())
		if err != nil {
			return errors.New().Wrap(errors.ErrReport, err)
		}
	}

	engine := a.engine(store)
	since := a.cfg.Since(a.now())
	for _, k := range kinds {
		found, err := engine.Anomalies(ctx, since, a.deviceArg(), k, a.cfg.ZThreshold)
		if err != nil {
			return errors.New().Wrap(errors.ErrReport, err)
		}
		renderAnomalies(a.out, k, a.cfg.ZThreshold, found)
	}
	return nil
}
