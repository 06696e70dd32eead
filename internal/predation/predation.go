// Package predation infers prey candidates and exposes the pairwise
// preference, starvation and predation-network pressure matrices consumed
// by TileMortalityEngine (§2 component G, §4.2 PRED / P_predation_network).
// Grounded on the teacher's food-web cascade logic in
// ecosystem/population/cascades.go, generalized from a fixed taxon list to
// trophic-range × habitat × similarity scoring.
package predation

import (
	"math"

	"chronofauna/internal/simtypes"
)

// Matrix is a square species x species preference matrix, PRED[i][j] =
// preference(i -> j) for prey relations, else 0 (§4.2).
type Matrix struct {
	Codes []string
	index map[string]int
	data  [][]float64
}

func newMatrix(codes []string) *Matrix {
	idx := make(map[string]int, len(codes))
	data := make([][]float64, len(codes))
	for i, c := range codes {
		idx[c] = i
		data[i] = make([]float64, len(codes))
	}
	return &Matrix{Codes: codes, index: idx, data: data}
}

func (m *Matrix) Get(predator, prey string) float64 {
	i, ok1 := m.index[predator]
	j, ok2 := m.index[prey]
	if !ok1 || !ok2 {
		return 0
	}
	return m.data[i][j]
}

func (m *Matrix) set(predator, prey string, v float64) {
	m.data[m.index[predator]][m.index[prey]] = v
}

// Service implements PredationService.
type Service struct{}

func NewService() *Service { return &Service{} }

// BuildPredationMatrix infers prey candidates for every live species and
// returns the PRED matrix (§4.1.3d, §4.2).
func (s *Service) BuildPredationMatrix(live []*simtypes.Species) *Matrix {
	codes := make([]string, 0, len(live))
	byCode := make(map[string]*simtypes.Species, len(live))
	for _, sp := range live {
		codes = append(codes, sp.LineageCode)
		byCode[sp.LineageCode] = sp
	}
	m := newMatrix(codes)

	for _, predator := range live {
		if predator.DietType != simtypes.DietCarnivore && predator.DietType != simtypes.DietOmnivore {
			continue
		}
		candidates := s.inferPrey(predator, live)
		for code, weight := range candidates {
			m.set(predator.LineageCode, code, weight)
		}
	}
	return m
}

// inferPrey scores candidate prey by trophic range, habitat overlap and
// trait similarity, then normalizes against any explicit prey_preferences
// the species already carries.
func (s *Service) inferPrey(predator *simtypes.Species, live []*simtypes.Species) map[string]float64 {
	out := make(map[string]float64)
	for _, prey := range live {
		if prey.LineageCode == predator.LineageCode || !prey.Alive() {
			continue
		}
		if prey.TrophicLevel >= predator.TrophicLevel {
			continue
		}
		trophicGap := predator.TrophicLevel - prey.TrophicLevel
		if trophicGap > 2.0 {
			continue
		}
		habitatScore := 0.5
		if predator.HabitatType == prey.HabitatType {
			habitatScore = 1.0
		}
		simScore := 1 - traitDistance(predator.AbstractTraits, prey.AbstractTraits)/math.Sqrt(float64(len(simtypes.AbstractTraitKeys)))
		weight := habitatScore * math.Max(0, simScore) / (1 + trophicGap)
		if pref, ok := predator.PreyPreferences[prey.LineageCode]; ok {
			weight = pref
		}
		if weight > 0 {
			out[prey.LineageCode] = weight
		}
	}
	normalize(out)
	return out
}

func normalize(weights map[string]float64) {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 1 {
		return
	}
	for k, w := range weights {
		weights[k] = w / total
	}
}

func traitDistance(a, b map[string]float64) float64 {
	var sumSq float64
	for _, k := range simtypes.AbstractTraitKeys {
		d := a[k] - b[k]
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

// TileBiomass is the per-tile, per-species biomass used by the starvation
// and hunter-pressure formulas.
type TileBiomass map[string]float64

// NetworkPressure computes, for one tile, the starvation and hunter-pressure
// contributions of §4.2's P_predation_network for every species present.
func NetworkPressure(m *Matrix, biomass TileBiomass, trophicLevel map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(biomass))
	var totalBiomass float64
	for _, b := range biomass {
		totalBiomass += b
	}
	for code, b := range biomass {
		if trophicLevel[code] < 2.0 {
			out[code] = hunterPressure(m, code, biomass, totalBiomass)
			continue
		}
		var availablePrey float64
		for prey, preyBiomass := range biomass {
			availablePrey += m.Get(code, prey) * preyBiomass
		}
		threshold := 0.1 * b
		starvation := 0.0
		if threshold > availablePrey {
			ratio := (threshold - availablePrey) / threshold
			starvation = math.Pow(math.Max(0, ratio), 1.5) * 0.5
		}
		out[code] = starvation + hunterPressure(m, code, biomass, totalBiomass)
	}
	return out
}

func hunterPressure(m *Matrix, code string, biomass TileBiomass, totalBiomass float64) float64 {
	b := biomass[code]
	if b <= 0 {
		return 0
	}
	var hunted float64
	for predator, preyBiomass := range biomass {
		hunted += m.Get(predator, code) * 0.1 * preyBiomass
	}
	ratio := hunted / b
	sig := 1 / (1 + math.Exp(-ratio))
	return (2*sig - 1) * 0.3
}
