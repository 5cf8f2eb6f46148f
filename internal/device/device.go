// Package device simulates a single sensor device that samples all of its
// sensors on every tick and commits the batch to a telemetry writer.
package device

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"codeberg.org/mutker/sensorsim/internal/metrics"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"codeberg.org/mutker/sensorsim/internal/telemetry"
)

// DefaultDropRate is the probability of a tick being lost.
const DefaultDropRate = 0.05

// Status is the kind of outcome a tick produced.
type Status int

const (
	Committed Status = iota
	Dropped
)

func (s Status) String() string {
	if s == Dropped {
		return "dropped"
	}
	return "committed"
}

// Outcome of one tick. A dropped tick carries no readings and is not an error.
type Outcome struct {
	Status   Status
	Readings []sensor.Reading
}

// Connector binds a device to its telemetry writer.
type Connector func(ctx context.Context) (telemetry.Writer, error)

// Static returns a Connector that always hands out w.
func Static(w telemetry.Writer) Connector {
	return func(context.Context) (telemetry.Writer, error) {
		return w, nil
	}
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Simulator owns one device identity and its ordered sensor kinds.
type Simulator struct {
	id      string
	kinds   []sensor.Kind
	gen     *sensor.Generator
	rnd     *rand.Rand
	drop    float64
	clock   Clock
	connect Connector
	log     logger.Logger
	metrics metrics.Collector

	mu     sync.Mutex
	writer telemetry.Writer
	last   time.Time
}

// Option configures a Simulator.
type Option func(*Simulator)

func WithConnector(c Connector) Option         { return func(s *Simulator) { s.connect = c } }
func WithGenerator(g *sensor.Generator) Option { return func(s *Simulator) { s.gen = g } }
func WithDropRate(p float64) Option            { return func(s *Simulator) { s.drop = p } }
func WithClock(c Clock) Option                 { return func(s *Simulator) { s.clock = c } }
func WithLogger(l logger.Logger) Option        { return func(s *Simulator) { s.log = l } }
func WithMetrics(m metrics.Collector) Option   { return func(s *Simulator) { s.metrics = m } }

// WithSeed makes the drop decisions reproducible.
func WithSeed(seed int64) Option {
	return func(s *Simulator) { s.rnd = rand.New(rand.NewSource(seed)) }
}

// New creates a simulator. The kinds slice is copied.
func New(id string, kinds []sensor.Kind, opts ...Option) *Simulator {
	s := &Simulator{
		id:      id,
		kinds:   sensor.Distinct(kinds),
		drop:    DefaultDropRate,
		clock:   realClock{},
		log:     logger.Nop(),
		metrics: metrics.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gen == nil {
		s.gen = sensor.NewGenerator(0)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	s.log = s.log.With("device_id", id)
	return s
}

func (s *Simulator) ID() string { return s.id }

// Kinds returns a copy of the configured sensor kinds.
func (s *Simulator) Kinds() []sensor.Kind {
	return append([]sensor.Kind(nil), s.kinds...)
}

// Connected reports whether the device is bound to a writer.
func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writer != nil
}

// Connect binds the device to its writer. Calling it again is a no-op.
func (s *Simulator) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return nil
	}
	if s.connect == nil {
		return errors.New().WithMessage(ErrConnectFailed, "no connector configured")
	}

	w, err := s.connect(ctx)
	if err != nil {
		return errors.New().Wrap(ErrConnectFailed, err)
	}
	s.writer = w

	s.log.Debug().Msg("Connected to telemetry store")
	return nil
}

// Tick samples every sensor once and commits the batch, or drops it with
// the configured probability. The insert ignores cancellation of ctx so an
// in-flight batch always completes.
func (s *Simulator) Tick(ctx context.Context) (Outcome, error) {
	s.mu.Lock()
	w := s.writer
	s.mu.Unlock()

	if w == nil {
		return Outcome{}, errors.New().New(ErrNotConnected)
	}

	now := s.now()

	if shouldDrop(s.rnd, s.drop) {
		s.metrics.RecordTick(s.id, false, 0)
		s.log.Info().Time("timestamp", now).Msg("Connection error, data not sent")
		return Outcome{Status: Dropped}, nil
	}

	batch := make([]sensor.Reading, 0, len(s.kinds))
	for _, k := range s.kinds {
		value, _ := s.gen.Generate(k)
		batch = append(batch, sensor.NewReading(now, s.id, k, value))
	}

	if err := w.Insert(context.WithoutCancel(ctx), batch); err != nil {
		s.metrics.RecordFailure(s.id)
		return Outcome{}, errors.New().Wrap(ErrStoreFailed, err)
	}

	s.metrics.RecordTick(s.id, true, len(batch))
	for _, r := range batch {
		s.log.Debug().
			Str("sensor_type", r.Kind.String()).
			Float64("value", r.Value).
			Str("unit", r.Unit).
			Msg("Reading sent")
	}

	return Outcome{Status: Committed, Readings: batch}, nil
}

// now keeps per-device timestamps strictly increasing even on coarse clocks.
func (s *Simulator) now() time.Time {
	now := s.clock.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Nanosecond)
	}
	s.last = now
	return now
}

// shouldDrop decides independently for every tick whether it is lost.
func shouldDrop(rnd *rand.Rand, p float64) bool {
	if p <= 0 {
		return false
	}
	return rnd.Float64() < p
}
