// Package genetics adapts the teacher's npc/genetics trait-inheritance and
// mutation helpers to abstract-trait maps. Of these helpers only
// GeneticDistance has a caller in this module (speciation.GeneticDistances).
package genetics

import (
	"math"
	"math/rand"
)

// BlendTraits returns a copy of parent with each mutation delta added to
// the matching trait (a delta for a missing trait starts from 0).
func BlendTraits(parent map[string]float64, deltas map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(parent))
	for k, v := range parent {
		out[k] = v
	}
	for k, d := range deltas {
		out[k] = out[k] + d
	}
	return out
}

// MutationDelta draws a signed perturbation for one trait, scaled by
// mutation_rate: uniform in ±(1 + 4·mutationRate).
func MutationDelta(rng *rand.Rand, mutationRate float64) float64 {
	magnitude := 1 + mutationRate*4
	return (rng.Float64()*2 - 1) * magnitude
}

// InheritHidden computes a child's hidden traits as the parent's values
// plus a uniform jitter in ±0.05, clamped to [0,1].
func InheritHidden(parent map[string]float64, rng *rand.Rand) map[string]float64 {
	out := make(map[string]float64, len(parent))
	for k, v := range parent {
		jitter := (rng.Float64()*2 - 1) * 0.05
		nv := v + jitter
		if nv < 0 {
			nv = 0
		}
		if nv > 1 {
			nv = 1
		}
		out[k] = nv
	}
	return out
}

// GeneticDistance computes a simple euclidean distance between two trait
// vectors sharing the same key set, used for the genus genetic-distance
// ledger (§4.4 "Genetic distance update").
func GeneticDistance(a, b map[string]float64) float64 {
	var sumSq float64
	for k, av := range a {
		bv := b[k]
		d := av - bv
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}
