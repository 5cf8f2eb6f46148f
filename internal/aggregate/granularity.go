package aggregate

import (
	"strings"
	"time"
)

// Granularity is the width of an aggregation bucket. Raw disables bucketing.
type Granularity int

const (
	Raw Granularity = iota
	OneMinute
	FiveMinutes
	FifteenMinutes
	ThirtyMinutes
	OneHour
)

// DefaultGranularity is used for unrecognised names.
const DefaultGranularity = FiveMinutes

var granularities = []struct {
	name  string
	width time.Duration
}{
	Raw:            {"raw", 0},
	OneMinute:      {"1min", time.Minute},
	FiveMinutes:    {"5min", 5 * time.Minute},
	FifteenMinutes: {"15min", 15 * time.Minute},
	ThirtyMinutes:  {"30min", 30 * time.Minute},
	OneHour:        {"1hour", time.Hour},
}

// ParseGranularity maps a name like "15min" to a Granularity, falling back
// to DefaultGranularity.
func ParseGranularity(s string) Granularity {
	s = strings.ToLower(strings.TrimSpace(s))
	for g, entry := range granularities {
		if entry.name == s {
			return Granularity(g)
		}
	}
	return DefaultGranularity
}

// Granularities lists the accepted names in increasing width.
func Granularities() []string {
	names := make([]string, len(granularities))
	for i, entry := range granularities {
		names[i] = entry.name
	}
	return names
}

func (g Granularity) valid() bool {
	return g >= Raw && int(g) < len(granularities)
}

func (g Granularity) String() string {
	if !g.valid() {
		return granularities[DefaultGranularity].name
	}
	return granularities[g].name
}

// Width is the bucket width; zero for Raw.
func (g Granularity) Width() time.Duration {
	if !g.valid() {
		return granularities[DefaultGranularity].width
	}
	return granularities[g].width
}

// BucketStart returns the start of the bucket containing t, aligned to the
// Unix epoch in UTC.
func (g Granularity) BucketStart(t time.Time) time.Time {
	w := int64(g.Width() / time.Second)
	if w == 0 {
		return t.UTC()
	}
	sec := t.Unix()
	start := sec / w * w
	if sec < 0 && sec%w != 0 {
		start -= w
	}
	return time.Unix(start, 0).UTC()
}
