// Package aggregate implements the read side: time bucketing, per-group
// summary statistics and anomaly reports over telemetry queries.
package aggregate

import (
	"sort"
	"time"

	"codeberg.org/mutker/sensorsim/internal/sensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Point is one aggregated value. For Raw it mirrors a single reading and
// Count is 1.
type Point struct {
	Timestamp time.Time   `json:"timestamp"`
	DeviceID  string      `json:"device_id"`
	Kind      sensor.Kind `json:"sensor_type"`
	Value     float64     `json:"value"`
	Unit      string      `json:"unit"`
	Count     int         `json:"count"`
}

// Stats summarises one (device, kind) group.
type Stats struct {
	DeviceID string      `json:"device_id"`
	Kind     sensor.Kind `json:"sensor_type"`
	Min      float64     `json:"min"`
	Max      float64     `json:"max"`
	Mean     float64     `json:"mean"`
	StdDev   float64     `json:"std_dev"`
	Count    int         `json:"count"`
}

type groupKey struct {
	bucket   int64
	deviceID string
	kind     sensor.Kind
}

type group struct {
	key    groupKey
	unit   string
	values []float64
}

// Bucket groups readings into buckets of width g and averages each
// (bucket, device, kind) group. Empty buckets are omitted. Output is ordered
// by bucket start, then device id, then kind name. Raw returns one point per
// reading in input order.
func Bucket(readings []sensor.Reading, g Granularity) []Point {
	if g == Raw {
		points := make([]Point, len(readings))
		for i, r := range readings {
			points[i] = Point{
				Timestamp: r.Timestamp,
				DeviceID:  r.DeviceID,
				Kind:      r.Kind,
				Value:     r.Value,
				Unit:      r.Unit,
				Count:     1,
			}
		}
		return points
	}

	groups := groupBy(readings, func(r sensor.Reading) groupKey {
		return groupKey{
			bucket:   g.BucketStart(r.Timestamp).Unix(),
			deviceID: r.DeviceID,
			kind:     r.Kind,
		}
	})

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].key, groups[j].key
		if a.bucket != b.bucket {
			return a.bucket < b.bucket
		}
		if a.deviceID != b.deviceID {
			return a.deviceID < b.deviceID
		}
		return a.kind.String() < b.kind.String()
	})

	points := make([]Point, len(groups))
	for i, grp := range groups {
		points[i] = Point{
			Timestamp: time.Unix(grp.key.bucket, 0).UTC(),
			DeviceID:  grp.key.deviceID,
			Kind:      grp.key.kind,
			Value:     stat.Mean(grp.values, nil),
			Unit:      grp.unit,
			Count:     len(grp.values),
		}
	}
	return points
}

// Summarize computes min, max, mean, sample standard deviation and count per
// (device, kind), ordered by device id then kind name. A group with a single
// reading reports a standard deviation of 0.
func Summarize(readings []sensor.Reading) []Stats {
	groups := groupBy(readings, func(r sensor.Reading) groupKey {
		return groupKey{deviceID: r.DeviceID, kind: r.Kind}
	})

	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i].key, groups[j].key
		if a.deviceID != b.deviceID {
			return a.deviceID < b.deviceID
		}
		return a.kind.String() < b.kind.String()
	})

	out := make([]Stats, len(groups))
	for i, grp := range groups {
		s := Stats{
			DeviceID: grp.key.deviceID,
			Kind:     grp.key.kind,
			Min:      floats.Min(grp.values),
			Max:      floats.Max(grp.values),
			Count:    len(grp.values),
		}
		if s.Count == 1 {
			s.Mean = grp.values[0]
		} else {
			s.Mean, s.StdDev = stat.MeanStdDev(grp.values, nil)
		}
		out[i] = s
	}
	return out
}

// groupBy keeps groups in first-seen order; the first member sets the unit.
func groupBy(readings []sensor.Reading, keyOf func(sensor.Reading) groupKey) []*group {
	var (
		index  = make(map[groupKey]*group)
		groups []*group
	)
	for _, r := range readings {
		k := keyOf(r)
		grp, ok := index[k]
		if !ok {
			grp = &group{key: k, unit: r.Unit}
			index[k] = grp
			groups = append(groups, grp)
		}
		grp.values = append(grp.values, r.Value)
	}
	return groups
}
