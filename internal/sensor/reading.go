package sensor

import "time"

// Reading is one immutable sensor observation.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	DeviceID  string    `json:"device_id"`
	Kind      Kind      `json:"sensor_type"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}

// NewReading tags a generated value with its origin. The timestamp is stored in UTC.
func NewReading(ts time.Time, deviceID string, kind Kind, value float64) Reading {
	return Reading{
		Timestamp: ts.UTC(),
		DeviceID:  deviceID,
		Kind:      kind,
		Value:     value,
		Unit:      kind.Unit(),
	}
}
