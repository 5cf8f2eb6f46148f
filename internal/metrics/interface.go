package metrics

// Collector records tick outcomes of simulated devices.
type Collector interface {
	RecordTick(deviceID string, committed bool, readings int)
	RecordFailure(deviceID string)
	Snapshot() Snapshot
}

// DeviceCounters holds per-device tick statistics
type DeviceCounters struct {
	Committed int
	Dropped   int
	Failed    int
	Readings  int
}

// Ticks returns the number of ticks attempted.
func (c DeviceCounters) Ticks() int {
	return c.Committed + c.Dropped + c.Failed
}

// Snapshot is a point-in-time copy of all counters
type Snapshot struct {
	Devices map[string]DeviceCounters
	Total   DeviceCounters
}
