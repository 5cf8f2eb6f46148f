// Package sensor defines the closed set of simulated sensor kinds, the
// readings they produce and the synthetic reading generator.
package sensor

import "strings"

// Kind identifies a sensor type. Unrecognised names map to KindUnknown.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindTemperature
	KindHumidity
	KindPressure
	KindLight
	KindMotion
)

// kindInfo is one row of the per-kind generation table.
type kindInfo struct {
	name     string
	unit     string
	min, max float64
	discrete bool
}

var kindTable = [...]kindInfo{
	KindUnknown:     {name: "unknown", unit: "unknown", min: 0, max: 100},
	KindTemperature: {name: "temperature", unit: "°C", min: 15, max: 30},
	KindHumidity:    {name: "humidity", unit: "%", min: 30, max: 80},
	KindPressure:    {name: "pressure", unit: "hPa", min: 980, max: 1020},
	KindLight:       {name: "light", unit: "lux", min: 0, max: 1000},
	KindMotion:      {name: "motion", unit: "binary", min: 0, max: 1, discrete: true},
}

// Kinds lists every known kind, KindUnknown excluded.
func Kinds() []Kind {
	return []Kind{KindTemperature, KindHumidity, KindPressure, KindLight, KindMotion}
}

func (k Kind) info() kindInfo {
	if int(k) >= len(kindTable) {
		return kindTable[KindUnknown]
	}
	return kindTable[k]
}

func (k Kind) String() string {
	return k.info().name
}

// Unit returns the fixed unit for the kind.
func (k Kind) Unit() string {
	return k.info().unit
}

// Range returns the closed interval generated values fall into.
func (k Kind) Range() (lo, hi float64) {
	s := k.info()
	return s.min, s.max
}

// ParseKind maps a sensor type name to its Kind, falling back to KindUnknown.
// Every unrecognised name maps to the same KindUnknown, so "co2" and "voc"
// are indistinguishable once parsed.
func ParseKind(name string) Kind {
	name = strings.ToLower(strings.TrimSpace(name))
	for k := range kindTable {
		if kindTable[k].name == name {
			return Kind(k)
		}
	}
	return KindUnknown
}

// ParseKinds parses a list of names, e.g. from a comma separated flag.
// Repeated kinds, including several unrecognised names, are kept once.
func ParseKinds(names []string) []Kind {
	kinds := make([]Kind, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		kinds = append(kinds, ParseKind(n))
	}
	return Distinct(kinds)
}

// Distinct returns kinds without repeats, in first-seen order. A device
// samples each kind once per tick, so two unrecognised sensors would
// otherwise write two rows under one (device, unknown) key.
func Distinct(kinds []Kind) []Kind {
	seen := make(map[Kind]struct{}, len(kinds))
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}
