package sensor

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Generator produces synthetic values for a Kind. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a generator seeded with seed, or with the current time when seed is 0.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rnd: rand.New(rand.NewSource(seed))}
}

// Generate returns a value within the kind's range, rounded to two decimals,
// and the kind's unit. Motion yields 0 or 1.
func (g *Generator) Generate(k Kind) (float64, string) {
	s := k.info()

	g.mu.Lock()
	defer g.mu.Unlock()

	if s.discrete {
		return float64(g.rnd.Intn(2)), s.unit
	}

	v := s.min + g.rnd.Float64()*(s.max-s.min)
	return round2(v), s.unit
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
