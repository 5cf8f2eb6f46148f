package simulation

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"codeberg.org/mutker/sensorsim/internal/sensor"
)

// Combinations are the sensor sets a fleet device can be built with.
var Combinations = [][]sensor.Kind{
	{sensor.KindTemperature, sensor.KindHumidity},
	{sensor.KindTemperature, sensor.KindHumidity, sensor.KindLight},
	{sensor.KindTemperature, sensor.KindPressure},
	{sensor.KindLight, sensor.KindMotion},
	{sensor.KindTemperature, sensor.KindHumidity, sensor.KindPressure, sensor.KindLight},
}

// Plan describes one device of a run.
type Plan struct {
	DeviceID string
	Kinds    []sensor.Kind
	Interval time.Duration
}

// DeviceID formats the fleet name of the i-th device, counting from 1.
func DeviceID(i int) string {
	return fmt.Sprintf("device-%02d", i)
}

// PlanFleet builds n devices with a random sensor combination each and a
// whole-second interval drawn uniformly from [minInterval, maxInterval].
func PlanFleet(n int, minInterval, maxInterval time.Duration, rnd *rand.Rand) []Plan {
	plans := make([]Plan, 0, n)
	for i := 1; i <= n; i++ {
		combo := Combinations[rnd.Intn(len(Combinations))]
		plans = append(plans, Plan{
			DeviceID: DeviceID(i),
			Kinds:    append([]sensor.Kind(nil), combo...),
			Interval: pickInterval(minInterval, maxInterval, rnd),
		})
	}
	return plans
}

func pickInterval(minInterval, maxInterval time.Duration, rnd *rand.Rand) time.Duration {
	lo := int64(math.Ceil(minInterval.Seconds()))
	if lo < 1 {
		lo = 1
	}
	hi := int64(maxInterval / time.Second)
	if hi < lo {
		// range too narrow for whole seconds
		return minInterval
	}
	return time.Duration(lo+rnd.Int63n(hi-lo+1)) * time.Second
}

func (p Plan) validate() bool {
	return p.DeviceID != "" && len(p.Kinds) > 0 && p.Interval > 0
}
