package metrics

import (
	"sync"

	"codeberg.org/mutker/sensorsim/internal/logger"
)

type collector struct {
	mu      sync.Mutex
	devices map[string]*DeviceCounters
}

// No-op implementation
type noopCollector struct{}

// NewCollector returns an in-memory collector, or a no-op one when disabled.
func NewCollector(cfg Config) Collector {
	if !cfg.Enabled {
		logger.Debug().Msg("Tick metrics disabled, using no-op collector")
		return Noop()
	}
	return &collector{devices: make(map[string]*DeviceCounters)}
}

// Noop returns a collector that records nothing.
func Noop() Collector {
	return noopCollector{}
}

func (c *collector) counters(deviceID string) *DeviceCounters {
	dc, ok := c.devices[deviceID]
	if !ok {
		dc = &DeviceCounters{}
		c.devices[deviceID] = dc
	}
	return dc
}

func (c *collector) RecordTick(deviceID string, committed bool, readings int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc := c.counters(deviceID)
	if committed {
		dc.Committed++
		dc.Readings += readings
	} else {
		dc.Dropped++
	}
}

func (c *collector) RecordFailure(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters(deviceID).Failed++
}

func (c *collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{Devices: make(map[string]DeviceCounters, len(c.devices))}
	for id, dc := range c.devices {
		snap.Devices[id] = *dc
		snap.Total.Committed += dc.Committed
		snap.Total.Dropped += dc.Dropped
		snap.Total.Failed += dc.Failed
		snap.Total.Readings += dc.Readings
	}
	return snap
}

func (noopCollector) RecordTick(string, bool, int) {}
func (noopCollector) RecordFailure(string)         {}
func (noopCollector) Snapshot() Snapshot           { return Snapshot{Devices: map[string]DeviceCounters{}} }
