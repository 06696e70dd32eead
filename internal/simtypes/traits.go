package simtypes

// ValidateAbstractTraits enforces the three trait invariants from §3 and
// §8 Testable Property 7: each value in [0,10], the sum within the
// trophic-level cap, and at most MaxTraitsAboveBase values over
// BaseTraitThreshold. Violations are projected back onto the constraint
// set by proportionally shrinking only the traits that increased, per the
// invariant text ("violators are projected back by proportional shrinkage
// of only the traits that increased").
func ValidateAbstractTraits(traits, previous map[string]float64, trophicLevel float64) map[string]float64 {
	out := make(map[string]float64, len(traits))
	for k, v := range traits {
		if v < 0 {
			v = 0
		}
		if v > 10 {
			v = 10
		}
		out[k] = v
	}

	cap := SumCapForTrophic(trophicLevel)
	sum := 0.0
	for _, v := range out {
		sum += v
	}

	if sum > cap {
		increased := make([]string, 0, len(out))
		increasedTotal := 0.0
		for k, v := range out {
			prev := previous[k]
			if v > prev {
				increased = append(increased, k)
				increasedTotal += v - prev
			}
		}
		overage := sum - cap
		if increasedTotal > 0 {
			for _, k := range increased {
				prev := previous[k]
				delta := out[k] - prev
				shrink := overage * (delta / increasedTotal)
				out[k] -= shrink
				if out[k] < 0 {
					out[k] = 0
				}
			}
		} else {
			// No prior baseline to compare against: shrink every trait
			// proportionally to its own share of the total.
			for k, v := range out {
				out[k] = v * (cap / sum)
			}
		}
	}

	aboveBase := make([]string, 0)
	for k, v := range out {
		if v > BaseTraitThreshold {
			aboveBase = append(aboveBase, k)
		}
	}
	if len(aboveBase) > MaxTraitsAboveBase {
		// Force the extras down to BaseTraitThreshold, keeping the two
		// largest above it.
		for len(aboveBase) > MaxTraitsAboveBase {
			worstIdx, worstVal := -1, -1.0
			for i, k := range aboveBase {
				if out[k] > worstVal {
					worstVal = out[k]
					worstIdx = i
				}
			}
			_ = worstIdx
			// pick the smallest of the above-base set to clip
			smallestIdx, smallestVal := 0, out[aboveBase[0]]
			for i, k := range aboveBase {
				if out[k] < smallestVal {
					smallestVal = out[k]
					smallestIdx = i
				}
			}
			k := aboveBase[smallestIdx]
			out[k] = BaseTraitThreshold
			aboveBase = append(aboveBase[:smallestIdx], aboveBase[smallestIdx+1:]...)
		}
	}

	return out
}

// AbstractTraitKeys is the closed set of abstract trait names named in §3.
var AbstractTraitKeys = []string{
	"cold_tolerance", "heat_tolerance", "drought_tolerance", "salinity_tolerance",
	"reproductive_speed", "mobility", "aggression", "defense", "sociality",
	"photosynthetic_efficiency", "light_demand",
}

// HiddenTraitKeys is the closed set of hidden trait names named in §3.
var HiddenTraitKeys = []string{
	"gene_diversity", "environment_sensitivity", "evolution_potential",
	"mutation_rate", "adaptation_speed",
}
