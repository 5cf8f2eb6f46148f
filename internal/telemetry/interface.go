package telemetry

import (
	"context"
	"time"

	"codeberg.org/mutker/sensorsim/internal/sensor"
)

// Writer accepts reading batches. Device simulators depend on this only.
type Writer interface {
	Insert(ctx context.Context, batch []sensor.Reading) error
}

// Querier is the read side used by the aggregation engine.
type Querier interface {
	Query(ctx context.Context, f Filter) ([]sensor.Reading, error)
}

// Store is the append-only telemetry table.
type Store interface {
	Writer
	Querier
	Devices(ctx context.Context) ([]string, error)
	Kinds(ctx context.Context, deviceID string) ([]sensor.Kind, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Filter selects readings at or after Since. Empty DeviceID and nil Kind match any.
type Filter struct {
	Since    time.Time
	DeviceID string
	Kind     *sensor.Kind
}

// Since returns a filter matching everything from t on.
func Since(t time.Time) Filter {
	return Filter{Since: t}
}

// ForDevice returns a copy of f restricted to one device.
func (f Filter) ForDevice(deviceID string) Filter {
	f.DeviceID = deviceID
	return f
}

// ForKind returns a copy of f restricted to one sensor kind.
func (f Filter) ForKind(k sensor.Kind) Filter {
	f.Kind = &k
	return f
}
