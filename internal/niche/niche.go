// Package niche computes, for every live species, an (overlap, saturation)
// pair against the current population (§2 component F, §4.1.3c). Overlap
// combines embedding similarity, trait distance and habitat compatibility;
// saturation compares demand against carrying capacity. Grounded on the
// teacher's population/dynamics.go similarity helpers, generalized from a
// fixed bestiary to the spec's data-driven trait vectors.
package niche

import (
	"context"
	"math"

	"chronofauna/internal/simtypes"
)

// Embedder is the subset of EmbeddingService the analyzer needs.
type Embedder interface {
	CosineSimilarity(ctx context.Context, a, b string) (float64, error)
}

// Metrics is the per-species (overlap, saturation) pair from §2 component F.
type Metrics struct {
	Overlap    float64
	Saturation float64
}

// Analyzer implements NicheAnalyzer.
type Analyzer struct {
	embed Embedder
}

func NewAnalyzer(embed Embedder) *Analyzer {
	return &Analyzer{embed: embed}
}

// Analyze produces Metrics for every species in live, keyed by lineage code.
// pressureModifiers is accepted for parity with the spec signature; the
// current formula does not read it.
func (a *Analyzer) Analyze(ctx context.Context, live []*simtypes.Species, pressureModifiers map[string]float64) (map[string]Metrics, error) {
	out := make(map[string]Metrics, len(live))
	for _, sp := range live {
		overlap, err := a.overlapFor(ctx, sp, live)
		if err != nil {
			return nil, err
		}
		out[sp.LineageCode] = Metrics{
			Overlap:    overlap,
			Saturation: saturationFor(sp, live),
		}
	}
	return out, nil
}

func (a *Analyzer) overlapFor(ctx context.Context, sp *simtypes.Species, live []*simtypes.Species) (float64, error) {
	if len(live) <= 1 {
		return 0, nil
	}
	var total float64
	var n int
	for _, other := range live {
		if other.LineageCode == sp.LineageCode || !other.Alive() {
			continue
		}
		if !habitatCompatible(sp.HabitatType, other.HabitatType) {
			continue
		}
		traitDist := traitDistance(sp.AbstractTraits, other.AbstractTraits)
		traitSim := 1 - traitDist/math.Sqrt(float64(len(simtypes.AbstractTraitKeys)))
		embedSim := 0.5
		if a.embed != nil {
			sim, err := a.embed.CosineSimilarity(ctx, sp.Description, other.Description)
			if err != nil {
				return 0, err
			}
			embedSim = sim
		}
		total += 0.5*traitSim + 0.5*embedSim
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return total / float64(n), nil
}

func habitatCompatible(a, b simtypes.HabitatType) bool {
	if a == b {
		return true
	}
	amphibious := map[simtypes.HabitatType]bool{
		simtypes.HabitatFreshwater: true, simtypes.HabitatTerrestrial: true, simtypes.HabitatCoastal: true,
	}
	return a == simtypes.HabitatAmphibious && amphibious[b] || b == simtypes.HabitatAmphibious && amphibious[a]
}

func traitDistance(a, b map[string]float64) float64 {
	var sumSq float64
	for _, k := range simtypes.AbstractTraitKeys {
		d := a[k] - b[k]
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

// saturationFor compares a rough per-tile demand proxy (population weighted
// by metabolic footprint) against the combined demand of habitat-compatible
// competitors, approximating §4.1.3c saturation ahead of TileMortalityEngine's
// full resource-matrix computation.
func saturationFor(sp *simtypes.Species, live []*simtypes.Species) float64 {
	demand := footprint(sp)
	var total float64
	for _, other := range live {
		if !other.Alive() || !habitatCompatible(sp.HabitatType, other.HabitatType) {
			continue
		}
		total += footprint(other)
	}
	if total <= 0 {
		return 0
	}
	return demand / total * float64(countCompatible(sp, live))
}

func footprint(sp *simtypes.Species) float64 {
	weight := sp.Morphology["body_weight_g"]
	if weight <= 0 {
		weight = 1
	}
	return float64(sp.Population) * math.Pow(weight/1000, 0.75)
}

func countCompatible(sp *simtypes.Species, live []*simtypes.Species) int {
	n := 0
	for _, other := range live {
		if other.Alive() && habitatCompatible(sp.HabitatType, other.HabitatType) {
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return n
}
