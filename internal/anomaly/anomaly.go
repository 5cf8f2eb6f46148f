// Package anomaly flags readings whose z-score exceeds a threshold.
package anomaly

import (
	"math"

	"codeberg.org/mutker/sensorsim/internal/sensor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultThreshold is the |z| above which a reading is anomalous.
const DefaultThreshold = 3.0

// Anomaly is a flagged reading together with its z-score.
type Anomaly struct {
	Reading sensor.Reading `json:"reading"`
	ZScore  float64        `json:"z_score"`
}

// Detect returns the readings with |z| > threshold, in input order.
//
// The input must hold readings of a single sensor kind; mixing kinds yields
// meaningless scores and is not checked. Z-scores use the sample standard
// deviation. Empty input, a single reading or identical values produce no
// anomalies.
func Detect(readings []sensor.Reading, threshold float64) []Anomaly {
	if len(readings) < 2 {
		return nil
	}

	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Value
	}

	if floats.Min(values) == floats.Max(values) {
		return nil
	}

	mean, std := stat.MeanStdDev(values, nil)
	if std == 0 || math.IsNaN(std) {
		return nil
	}

	var out []Anomaly
	for i, v := range values {
		z := stat.StdScore(v, mean, std)
		if math.Abs(z) > threshold {
			out = append(out, Anomaly{Reading: readings[i], ZScore: z})
		}
	}
	return out
}
