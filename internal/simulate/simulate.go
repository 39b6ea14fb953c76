// Package simulate generates random sensor observations for a machine
// profile. The exact distribution is not load-bearing; values are drawn
// uniformly from each sensor's simulation band.
package simulate

import (
	"math/rand"
	"time"

	"plantwatch/internal/machines"
	"plantwatch/internal/risk"
)

// Generator produces parameter sets for one machine profile. Each generator
// owns its rand source, so concurrent monitors need no locking.
type Generator struct {
	profile machines.Profile
	rng     *rand.Rand
}

// New creates a generator for the given profile. A seed of 0 uses the clock.
func New(profile machines.Profile, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		profile: profile,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Next returns a fresh observation with one value per configured sensor.
func (g *Generator) Next() risk.ParameterSet {
	values := make(map[string]float64, len(g.profile.Specs))
	for _, name := range g.profile.Sensors() {
		band, ok := g.profile.Sim[name]
		if !ok {
			// No band configured: sample around the normal range instead.
			band = g.profile.Specs[name].Normal
		}
		values[name] = band.Lo + g.rng.Float64()*(band.Hi-band.Lo)
	}
	return risk.ParameterSet{Values: values, Timestamp: time.Now().UTC()}
}
