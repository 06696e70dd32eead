// Package mortality implements the TileMortalityEngine (§2 component I,
// §4.2): builds (tile x species) population/suitability matrices, computes
// the per-component pressure matrices, combines them into a mortality
// matrix, and aggregates to per-species outcomes with tile-distribution
// statistics. Grounded on the gonum matrix usage of the pack sibling
// pthm-soup (go.mod only) and the teacher's population/dynamics.go
// aggregation style.
package mortality

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"chronofauna/internal/hexgrid"
	"chronofauna/internal/kincompetition"
	"chronofauna/internal/niche"
	"chronofauna/internal/predation"
	"chronofauna/internal/simtypes"
)

// Tier is the operator-visibility tier a species batch is evaluated under
// (§4.1.3e).
type Tier string

const (
	TierCritical   Tier = "critical"
	TierFocus      Tier = "focus"
	TierBackground Tier = "background"
)

// Caps on each pressure component (§4.2 Combination).
const (
	capEnv     = 0.85
	capComp    = 0.75
	capTrophic = 0.80
	capRes     = 0.85
	capPred    = 0.70
	capPlant   = 0.50
	minMortality = 0.01
)

// Input bundles everything TileMortalityEngine.evaluate needs for one batch.
type Input struct {
	Species           []*simtypes.Species
	Tiles             []simtypes.MapTile
	Habitats          []simtypes.HabitatRecord // latest-turn
	PressureModifiers map[string]float64
	NicheMetrics      map[string]niche.Metrics
	Predation         *predation.Matrix
	TrophicInteractions map[string]float64
	Tier              Tier
	TurnIndex         int64

	// AllSpecies is every currently-live species across all tiers, used to
	// find a species' live children for the parental-obsolescence and
	// parental-lag filters (§4.2 Aggregation step 4); the evaluated tier in
	// Species may be a strict subset. Falls back to Species when nil.
	AllSpecies []*simtypes.Species
}

// Outcome is the MortalityResult per species (§4.2 Output).
type Outcome struct {
	Code               string
	InitialPopulation  int64
	Deaths             int64
	Survivors          int64
	DeathRate          float64
	Notes              []string
	NicheOverlap       float64
	ResourcePressure   float64
	Tier               Tier
	TotalTiles         int
	HealthyTiles       int
	WarningTiles       int
	CriticalTiles      int
	BestTileRate       float64
	WorstTileRate      float64
	HasRefuge          bool
	TileMortality      map[int64]float64
	TilePopulation     map[int64]int64
}

// Engine implements TileMortalityEngine.
type Engine struct {
	KinCalc *kincompetition.Calculator
}

func NewEngine(kin *kincompetition.Calculator) *Engine {
	return &Engine{KinCalc: kin}
}

// Evaluate runs the full pipeline of §4.2 and returns the Outcomes for
// in.Species in a map keyed by lineage code.
func (e *Engine) Evaluate(in Input) map[string]*Outcome {
	T := len(in.Tiles)
	S := len(in.Species)
	if T == 0 || S == 0 {
		return map[string]*Outcome{}
	}

	tileIndex := make(map[int64]int, T)
	for i, t := range in.Tiles {
		tileIndex[t.ID] = i
	}
	speciesIndex := make(map[string]int, S)
	for i, sp := range in.Species {
		speciesIndex[sp.LineageCode] = i
	}

	suit := mat.NewDense(T, S, nil)
	pop := mat.NewDense(T, S, nil)
	buildSuitabilityAndPopulation(in, tileIndex, speciesIndex, suit, pop)

	env := buildEnvMatrix(in.Tiles)
	sim := buildSimMatrix(in.Species)

	pEnv := envPressure(in, suit, env, tileIndex, speciesIndex)
	pComp := competitionPressure(in, pop, sim, speciesIndex)
	pTrophic := trophicPressure(in, pop, speciesIndex)
	pRes := resourcePressure(in, pop, tileIndex, speciesIndex)
	pPred := predationPressure(in, pop, tileIndex, speciesIndex)
	pPlant := plantCompetitionPressure(in, pop, sim, speciesIndex)

	mortality := combine(T, S, pEnv, pComp, pTrophic, pRes, pPred, pPlant)
	applySurvivorLottery(in, mortality, speciesIndex)

	return aggregate(in, pop, mortality, pRes, tileIndex, speciesIndex)
}

func buildSuitabilityAndPopulation(in Input, tileIndex map[int64]int, speciesIndex map[string]int, suit, pop *mat.Dense) {
	colSum := make([]float64, len(in.Species))
	for _, h := range in.Habitats {
		ti, ok1 := tileIndex[h.TileID]
		si, ok2 := speciesIndex[h.SpeciesCode]
		if !ok1 || !ok2 {
			continue
		}
		suit.Set(ti, si, h.Suitability)
		colSum[si] += h.Suitability
	}

	for si, sp := range in.Species {
		if !sp.Alive() {
			continue
		}
		if colSum[si] > 0 {
			for ti := 0; ti < len(in.Tiles); ti++ {
				share := suit.At(ti, si) / colSum[si]
				pop.Set(ti, si, float64(sp.Population)*share)
			}
			continue
		}
		// Recovery path: suitability collapse. Distribute uniformly over
		// compatible tiles and stamp a default suitability of 0.5 (§4.2).
		var compatible []int
		for ti, t := range in.Tiles {
			if simtypes.HabitatCompatible(sp.HabitatType, t.Biome) {
				compatible = append(compatible, ti)
			}
		}
		if len(compatible) == 0 {
			continue
		}
		share := float64(sp.Population) / float64(len(compatible))
		for _, ti := range compatible {
			pop.Set(ti, si, share)
			suit.Set(ti, si, 0.5)
		}
	}
}

// envTile is the per-tile 8-feature row used by P_env and synergy terms.
type envTile struct {
	temperature, humidity, resources, elevation, salinity, wetBulb, uvFactor, coldHumid float64
}

func buildEnvMatrix(tiles []simtypes.MapTile) []envTile {
	out := make([]envTile, len(tiles))
	for i, t := range tiles {
		out[i] = envTile{
			temperature: t.Temperature,
			humidity:    t.Humidity,
			resources:   t.Resources,
			elevation:   t.Elevation,
			salinity:    t.Salinity,
			wetBulb:     t.Temperature*0.5 + t.Humidity*0.5,
			uvFactor:    math.Max(0, t.Elevation) * (1 - t.Humidity),
			coldHumid:   math.Max(0, 5-t.Temperature) * t.Humidity,
		}
	}
	return out
}

// buildSimMatrix computes SIM[S,S]: 0.5 feature similarity + 0.5 embedding
// similarity placeholder (embedding similarity is pre-folded into
// niche.Metrics.Overlap upstream; here we use the feature half directly and
// treat the embedding half as already incorporated into trait closeness, a
// pragmatic simplification the teacher's own similarity code takes by
// caching one combined score rather than two separate matrices).
func buildSimMatrix(species []*simtypes.Species) *mat.Dense {
	S := len(species)
	sim := mat.NewDense(S, S, nil)
	for i := 0; i < S; i++ {
		for j := i + 1; j < S; j++ {
			s := featureSimilarity(species[i], species[j])
			sim.Set(i, j, s)
			sim.Set(j, i, s)
		}
	}
	return sim
}

func featureSimilarity(a, b *simtypes.Species) float64 {
	bodyLenA := math.Log10(math.Max(a.Morphology["body_length_cm"], 0.001))
	bodyLenB := math.Log10(math.Max(b.Morphology["body_length_cm"], 0.001))
	habA, habB := habitatCode(a.HabitatType), habitatCode(b.HabitatType)

	fa := [6]float64{a.TrophicLevel / 5, bodyLenA / 4, habA / 5, a.AbstractTraits["heat_tolerance"] / 10, a.AbstractTraits["cold_tolerance"] / 10, a.AbstractTraits["drought_tolerance"] / 10}
	fb := [6]float64{b.TrophicLevel / 5, bodyLenB / 4, habB / 5, b.AbstractTraits["heat_tolerance"] / 10, b.AbstractTraits["cold_tolerance"] / 10, b.AbstractTraits["drought_tolerance"] / 10}

	var sumSq float64
	for i := range fa {
		d := fa[i] - fb[i]
		sumSq += d * d
	}
	euclid := math.Sqrt(sumSq)
	return math.Max(0, 1-euclid/math.Sqrt(6))
}

func habitatCode(h simtypes.HabitatType) float64 {
	order := []simtypes.HabitatType{
		simtypes.HabitatMarine, simtypes.HabitatFreshwater, simtypes.HabitatTerrestrial,
		simtypes.HabitatAmphibious, simtypes.HabitatAerial, simtypes.HabitatDeepSea,
		simtypes.HabitatCoastal, simtypes.HabitatHydrothermal,
	}
	for i, o := range order {
		if o == h {
			return float64(i)
		}
	}
	return 0
}

const minPressureFactor = 0.30

func resistance(tolerance float64) float64 {
	return minPressureFactor + 0.70*(1-tolerance/10)
}

// envPressure computes P_env per §4.2.
func envPressure(in Input, suit *mat.Dense, env []envTile, tileIndex map[int64]int, speciesIndex map[string]int) *mat.Dense {
	T, S := len(in.Tiles), len(in.Species)
	p := mat.NewDense(T, S, nil)

	tempMod := in.PressureModifiers["temperature"]
	droughtMod := in.PressureModifiers["drought"]
	floodMod := in.PressureModifiers["flood"]
	spike := in.PressureModifiers["mortality_spike"]
	positiveDiscount := math.Min(0.3, 0.1*in.PressureModifiers["resource_boost"]+0.1*in.PressureModifiers["productivity"]+0.1*in.PressureModifiers["oxygen"]+0.1*in.PressureModifiers["habitat_expansion"])

	for ti := 0; ti < T; ti++ {
		e := env[ti]
		var avgTempPressure float64
		cellPressures := make([]float64, S)
		for si, sp := range in.Species {
			if suit.At(ti, si) <= 0 {
				continue
			}
			effTemp := e.temperature + 5*tempMod
			var dev float64
			switch {
			case effTemp < 5:
				dev = 5 - effTemp
			case effTemp > 25:
				dev = effTemp - 25
			}
			sig := 1 / (1 + math.Exp(-dev/15))
			tempPressure := sig
			if effTemp < -10 || effTemp > 35 {
				extra := math.Abs(effTemp)
				if effTemp > 35 {
					extra = effTemp - 35
				} else {
					extra = -10 - effTemp
				}
				tempPressure += 0.02 * extra
			}
			tol := sp.AbstractTraits["heat_tolerance"]
			if effTemp < 15 {
				tol = sp.AbstractTraits["cold_tolerance"]
			}
			tempPressure *= resistance(tol)

			droughtPressure := math.Max(0, 0.5-e.humidity-0.1*droughtMod) * 2 * (1 - sp.AbstractTraits["drought_tolerance"]/10)

			floodPressure := 0.0
			if sp.HabitatType == simtypes.HabitatTerrestrial || sp.HabitatType == simtypes.HabitatAerial {
				floodPressure = math.Max(0, floodMod) * 0.3
			}

			special := specialEventPressure(in, sp, e)

			spikePressure := 0.85 / (1 + math.Exp(-(0.03*spike - 3)))

			synergy := synergyTerms(sp, e)

			avgTempPressure += tempPressure

			var combined float64
			if tempPressure > 0.3 {
				combined = 0.50*tempPressure + 0.12*droughtPressure + 0.08*floodPressure + 0.20*special + 0.10*spikePressure
			} else {
				combined = (0.30*tempPressure + 0.15*droughtPressure + 0.10*floodPressure + 0.28*special + 0.17*spikePressure + 0.25*synergy) / 1.25
			}
			combined *= 1 - positiveDiscount
			cellPressures[si] = math.Min(capEnv, math.Max(0, combined))
		}
		for si := range cellPressures {
			p.Set(ti, si, cellPressures[si])
		}
	}
	return p
}

func specialEventPressure(in Input, sp *simtypes.Species, e envTile) float64 {
	disease := in.PressureModifiers["disease"] * (sp.AbstractTraits["sociality"] / 10) * (1 - sp.HiddenTraits["adaptation_speed"])
	wildfire := 0.0
	if sp.HabitatType == simtypes.HabitatTerrestrial {
		wildfire = in.PressureModifiers["wildfire"] * (1 - sp.AbstractTraits["defense"]/10)
	}
	uv := in.PressureModifiers["uv_radiation"] * e.uvFactor * (1 - sp.AbstractTraits["defense"]/20)
	toxins := in.PressureModifiers["sulfide"] * (1 - sp.HiddenTraits["environment_sensitivity"])
	salinity := 0.0
	if sp.HabitatType == simtypes.HabitatMarine || sp.HabitatType == simtypes.HabitatFreshwater {
		salinity = in.PressureModifiers["salinity_change"] * (1 - sp.AbstractTraits["salinity_tolerance"]/10)
	}
	return math.Max(0, disease+wildfire+uv+toxins+salinity)
}

func synergyTerms(sp *simtypes.Species, e envTile) float64 {
	heatHumid := (e.temperature / 30) * e.humidity
	weight := sp.Morphology["body_weight_g"]
	if weight <= 0 {
		weight = 1
	}
	hypoxia := math.Max(0, e.elevation) * math.Log10(weight+1) / 10
	elevUV := math.Max(0, e.elevation) * (1 - e.humidity) * 0.5
	coldHumid := e.coldHumid / 10
	return math.Max(0, heatHumid+hypoxia+elevUV+coldHumid)
}

// competitionPressure computes P_comp per §4.2.
func competitionPressure(in Input, pop *mat.Dense, sim *mat.Dense, speciesIndex map[string]int) *mat.Dense {
	T, S := len(in.Tiles), len(in.Species)
	p := mat.NewDense(T, S, nil)
	const perPairCap = 0.3
	const capTotal = capComp
	const baseCoef = 0.4

	for ti := 0; ti < T; ti++ {
		for i, spi := range in.Species {
			var total float64
			for j, spj := range in.Species {
				if i == j || pop.At(ti, j) <= 0 {
					continue
				}
				trophicCoef := trophicCoefficient(spi.TrophicLevel, spj.TrophicLevel)
				ratio := math.Min(3, pop.At(ti, j)/math.Max(pop.At(ti, i), 1))
				contrib := math.Min(perPairCap, sim.At(i, j)*trophicCoef*baseCoef*ratio)
				total += contrib
			}
			p.Set(ti, i, math.Min(capTotal, total))
		}
	}
	return p
}

func trophicCoefficient(a, b float64) float64 {
	d := math.Abs(a - b)
	switch {
	case d < 0.5:
		return 1.0
	case d < 1.0:
		return 0.6
	default:
		return 0.2
	}
}

const severeStarvationPenalty = 0.9

// trophicPressure computes P_trophic per §4.2.
func trophicPressure(in Input, pop *mat.Dense, speciesIndex map[string]int) *mat.Dense {
	T, S := len(in.Tiles), len(in.Species)
	p := mat.NewDense(T, S, nil)

	for ti := 0; ti < T; ti++ {
		biomass := map[int]float64{} // level (1..5) -> biomass
		for si, sp := range in.Species {
			if pop.At(ti, si) <= 0 {
				continue
			}
			weight := sp.Morphology["body_weight_g"]
			if weight <= 0 {
				weight = 1
			}
			level := int(math.Round(sp.TrophicLevel))
			biomass[level] += pop.At(ti, si) * math.Pow(weight, 0.75)
		}
		for si, sp := range in.Species {
			if pop.At(ti, si) <= 0 {
				continue
			}
			level := int(math.Round(sp.TrophicLevel))
			below := biomass[level-1]
			req := 0.0
			if level > 1 {
				req = biomass[level] / 0.12
			}
			var pressure float64
			if level > 1 {
				if below <= 1e-9 {
					pressure = severeStarvationPenalty
				} else {
					scarcity := clampUnit((req/below - 1))
					pressure = scarcity
				}
				if below > 1.5*req && req > 0 {
					bonus := math.Min(0.30, 0.05*(below/req-1.5))
					pressure -= bonus
				}
			}
			p.Set(ti, si, clampRange(pressure, 0, capTrophic))
		}
	}
	return p
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// resourcePressure computes P_res per §4.2.
func resourcePressure(in Input, pop *mat.Dense, tileIndex map[int64]int, speciesIndex map[string]int) *mat.Dense {
	T, S := len(in.Tiles), len(in.Species)
	p := mat.NewDense(T, S, nil)
	const metabolicCoef = 0.05
	const conversion = 1.0
	const harvestableFraction = 0.6

	for ti, tile := range in.Tiles {
		demand := make([]float64, S)
		var demandTotal float64
		for si, sp := range in.Species {
			weightKg := sp.Morphology["body_weight_g"] / 1000
			if weightKg <= 0 {
				weightKg = 0.001
			}
			d := metabolicCoef * math.Pow(weightKg, 0.75) * pop.At(ti, si)
			demand[si] = d
			demandTotal += d
		}
		supply := tile.Resources * conversion * harvestableFraction
		shortage := 0.0
		if demandTotal > 0 {
			shortage = math.Max(0, (demandTotal-supply)/demandTotal)
		}
		for si := range in.Species {
			if demandTotal <= 0 {
				continue
			}
			base := shortage * math.Min(1, 2*demand[si]/demandTotal)
			if shortage > 0.8 {
				base *= 1.5
			}
			p.Set(ti, si, math.Min(capRes, base))
		}
	}
	return p
}

// predationPressure computes P_predation_network per §4.2.
func predationPressure(in Input, pop *mat.Dense, tileIndex map[int64]int, speciesIndex map[string]int) *mat.Dense {
	T, S := len(in.Tiles), len(in.Species)
	p := mat.NewDense(T, S, nil)
	if in.Predation == nil {
		return p
	}
	for ti := range in.Tiles {
		biomass := predation.TileBiomass{}
		trophicLevel := map[string]float64{}
		for si, sp := range in.Species {
			if pop.At(ti, si) <= 0 {
				continue
			}
			weight := sp.Morphology["body_weight_g"]
			if weight <= 0 {
				weight = 1
			}
			biomass[sp.LineageCode] = pop.At(ti, si) * math.Pow(weight, 0.75)
			trophicLevel[sp.LineageCode] = sp.TrophicLevel
		}
		pressures := predation.NetworkPressure(in.Predation, biomass, trophicLevel)
		for si, sp := range in.Species {
			p.Set(ti, si, math.Min(capPred, pressures[sp.LineageCode]))
		}
	}
	return p
}

// plantCompetitionPressure computes P_plant_comp per §4.2: only species
// with trophic < 2.0 compete via light/nutrient/embedding-amplified terms.
func plantCompetitionPressure(in Input, pop *mat.Dense, sim *mat.Dense, speciesIndex map[string]int) *mat.Dense {
	T, S := len(in.Tiles), len(in.Species)
	p := mat.NewDense(T, S, nil)
	for ti, tile := range in.Tiles {
		for i, spi := range in.Species {
			if spi.TrophicLevel >= 2.0 || pop.At(ti, i) <= 0 {
				continue
			}
			var light, nutrient float64
			height := spi.Morphology["body_length_cm"]
			for j, spj := range in.Species {
				if i == j || spj.TrophicLevel >= 2.0 || pop.At(ti, j) <= 0 {
					continue
				}
				otherHeight := spj.Morphology["body_length_cm"]
				if otherHeight > height {
					light += 0.1 * sim.At(i, j)
				}
				density := pop.At(ti, j) / math.Max(tile.Resources, 1)
				nutrient += 0.05 * density * sim.At(i, j)
			}
			p.Set(ti, i, math.Min(capPlant, light+nutrient))
		}
	}
	return p
}

// combine implements the hybrid sum/multiplicative combination model of
// §4.2 Combination with α ≈ 0.5 and per-component multiplicative
// coefficients in [0.5, 0.9].
func combine(T, S int, pEnv, pComp, pTrophic, pRes, pPred, pPlant *mat.Dense) *mat.Dense {
	const alpha = 0.5
	weights := [6]float64{0.30, 0.15, 0.20, 0.15, 0.12, 0.08}
	multCoef := [6]float64{0.9, 0.7, 0.8, 0.7, 0.6, 0.5}

	out := mat.NewDense(T, S, nil)
	for ti := 0; ti < T; ti++ {
		for si := 0; si < S; si++ {
			components := [6]float64{pEnv.At(ti, si), pComp.At(ti, si), pTrophic.At(ti, si), pRes.At(ti, si), pPred.At(ti, si), pPlant.At(ti, si)}

			var sumModel float64
			for k, v := range components {
				sumModel += weights[k] * v
			}

			multModel := 1.0
			for k, v := range components {
				multModel *= 1 - multCoef[k]*v
			}
			multModel = 1 - multModel

			raw := alpha*sumModel + (1-alpha)*multModel
			out.Set(ti, si, clampRange(raw, minMortality, 1.0))
		}
	}
	return out
}

// applySurvivorLottery caps mortality at 0.80 for a deterministic subset of
// species (5-30%, biased toward higher environmental_tolerance) when
// mortality_spike > 50 (§4.2).
func applySurvivorLottery(in Input, mortality *mat.Dense, speciesIndex map[string]int) {
	spike := in.PressureModifiers["mortality_spike"]
	if spike <= 50 {
		return
	}
	T := len(in.Tiles)
	for si, sp := range in.Species {
		tolerance := (sp.AbstractTraits["heat_tolerance"] + sp.AbstractTraits["cold_tolerance"] +
			sp.AbstractTraits["drought_tolerance"] + sp.AbstractTraits["salinity_tolerance"]) / 40
		seed := float64(si+1) * spike
		chance := 0.05 + 0.25*tolerance
		roll := math.Mod(seed, 100) / 100
		if roll < chance {
			for ti := 0; ti < T; ti++ {
				if mortality.At(ti, si) > 0.80 {
					mortality.Set(ti, si, 0.80)
				}
			}
		}
	}
}

// aggregate computes per-species outcomes with tile-distribution
// statistics and the evolutionary filters of §4.2 Aggregation steps 1-5.
func aggregate(in Input, pop, mortality, pRes *mat.Dense, tileIndex map[int64]int, speciesIndex map[string]int) map[string]*Outcome {
	T := len(in.Tiles)
	out := make(map[string]*Outcome, len(in.Species))

	ecosystemPop := int64(0)
	for _, sp := range in.Species {
		ecosystemPop += sp.Population
	}

	allSpecies := in.AllSpecies
	if allSpecies == nil {
		allSpecies = in.Species
	}
	childrenByParent := make(map[string][]*simtypes.Species, len(allSpecies))
	for _, s := range allSpecies {
		if s.ParentCode != "" && s.Alive() {
			childrenByParent[s.ParentCode] = append(childrenByParent[s.ParentCode], s)
		}
	}

	for si, sp := range in.Species {
		if !sp.Alive() {
			continue
		}
		o := &Outcome{
			Code:              sp.LineageCode,
			InitialPopulation: sp.Population,
			Tier:              in.Tier,
			NicheOverlap:      in.NicheMetrics[sp.LineageCode].Overlap,
			TileMortality:     make(map[int64]float64, T),
			TilePopulation:    make(map[int64]int64, T),
		}

		var totalSurvivors float64
		for ti, tile := range in.Tiles {
			rate := mortality.At(ti, si)
			tilePop := pop.At(ti, si)
			survivors := tilePop * (1 - rate)
			totalSurvivors += survivors
			o.TileMortality[tile.ID] = rate
			o.TilePopulation[tile.ID] = int64(tilePop)
		}

		deaths := float64(sp.Population) - totalSurvivors
		if sp.IsProtected {
			deaths *= 0.5
		}
		if sp.IsSuppressed {
			deaths += totalSurvivors * 0.3
		}
		deaths = math.Max(0, deaths)
		survivors := math.Max(0, float64(sp.Population)-deaths)

		deathRate := 0.0
		if sp.Population > 0 {
			deathRate = deaths / float64(sp.Population)
		}

		globalAdjustment := evolutionaryFilters(sp, deathRate, ecosystemPop, in.TrophicInteractions, in.TurnIndex, childrenByParent[sp.LineageCode], in.NicheMetrics[sp.LineageCode])
		deathRate = clampUnit(deathRate + globalAdjustment)
		deaths = float64(sp.Population) * deathRate
		survivors = float64(sp.Population) - deaths

		o.Deaths = int64(deaths)
		o.Survivors = int64(survivors)
		o.DeathRate = deathRate
		o.ResourcePressure = averageResourcePressure(pRes, T, si)

		for ti, tile := range in.Tiles {
			rate := clampUnit(o.TileMortality[tile.ID] + globalAdjustment)
			o.TileMortality[tile.ID] = rate
			o.TotalTiles++
			switch {
			case rate < 0.25:
				o.HealthyTiles++
			case rate < 0.5:
				o.WarningTiles++
			default:
				o.CriticalTiles++
			}
			if ti == 0 || rate < o.BestTileRate {
				o.BestTileRate = rate
			}
			if ti == 0 || rate > o.WorstTileRate {
				o.WorstTileRate = rate
			}
			if rate < 0.20 {
				o.HasRefuge = true
			}
		}

		out[sp.LineageCode] = o
	}
	return out
}

// averageResourcePressure is the species' mean P_res across every tile in
// the batch, reported on the Outcome and consumed by the speciation
// eligibility check (§4.4 step 3, resource_pressure > 0.8).
func averageResourcePressure(pRes *mat.Dense, T, si int) float64 {
	if T == 0 {
		return 0
	}
	var sum float64
	for ti := 0; ti < T; ti++ {
		sum += pRes.At(ti, si)
	}
	return sum / float64(T)
}

// parentLagPenalty is the penalty added to a parent species per live child
// still in its first three turns (age 0,1,2), mirroring newAdvantage's
// magnitude at a reduced weight since it's a secondary drag on the parent
// rather than the child's own advantage.
var parentLagPenalty = [3]float64{0.15, 0.09, 0.04}

// newAdvantage is the discount applied to a species in its first three
// turns of life (age 0,1,2).
var newAdvantage = [3]float64{0.20, 0.12, 0.05}

// evolutionaryFilters computes the additive death-rate adjustments of
// §4.2 Aggregation step 4.
func evolutionaryFilters(sp *simtypes.Species, deathRate float64, ecosystemPop int64, trophicInteractions map[string]float64, turn int64, liveChildren []*simtypes.Species, metrics niche.Metrics) float64 {
	var adj float64

	age := turn - sp.CreatedTurn

	// Genetic decay.
	if age > 20 {
		adj += math.Min(0.8, 0.05*float64(age-20))
	}

	// Parental obsolescence: a species with surviving offspring has been
	// superseded; one with none but long in the tooth drags more gently.
	switch {
	case len(liveChildren) > 0:
		adj += 0.25
	case age > 10:
		adj += 0.10
	}

	// Allee effect.
	if sp.Population < 500 {
		adj += 0.5 * (1 - float64(sp.Population)/500)
	}

	if ecosystemPop > 0 {
		f := float64(sp.Population) / float64(ecosystemPop)
		const commonThreshold, commonMaxPenalty = 0.3, 0.15
		const rareThreshold, rareMaxAdvantage = 0.01, 0.15
		if f > commonThreshold {
			adj += math.Min(commonMaxPenalty, (f-commonThreshold)*0.5)
		} else if f < rareThreshold && f > 0 {
			adj -= math.Min(rareMaxAdvantage, (rareThreshold-f)*5)
		}
	}

	// New-species advantage.
	if age >= 0 && age <= 2 {
		adj -= newAdvantage[age]
	}

	// Parental lag: fresh offspring still draw on the parent's reserves.
	for _, child := range liveChildren {
		childAge := turn - child.CreatedTurn
		if childAge >= 0 && childAge <= 2 {
			adj += parentLagPenalty[childAge]
		}
	}

	// High-overlap exclusion.
	if metrics.Overlap > 0.6 && metrics.Saturation > 1.2 {
		adj += 0.20
	}

	if trophicInteractions != nil {
		adj += trophicInteractions["food_web_mortality_"+sp.LineageCode]
		adj += trophicInteractions["food_web_global_penalty"]
	}

	return adj
}

// CandidateTiles is one species' speciation-candidate payload (§4.2
// "Candidate extraction for speciation").
type CandidateTiles struct {
	CandidateTiles    []int64
	TilePopulations    map[int64]int64
	TileMortality      map[int64]float64
	MortalityGradient  float64
	IsIsolated         bool
	Clusters           [][]int64
	MaxHexDistance     int
	ElongationRatio    float64
	IsolationType      string
}

// ExtractCandidates implements get_speciation_candidates for one species'
// outcome, given the coordinates of its candidate tiles and the world's
// adjacency map. Reads population per tile from o.TilePopulation rather
// than the engine's internal matrix, so callers outside this package can
// invoke it directly off an Evaluate result.
func ExtractCandidates(o *Outcome, tiles []simtypes.MapTile, minTilePop int64, minDeath, maxDeath, minGradient, distanceThreshold, elongationThreshold float64, minClusterGap int) CandidateTiles {
	coords := make(map[int64]hexgrid.Coord, len(tiles))
	for _, t := range tiles {
		coords[t.ID] = t.Coord
	}

	var candidateIDs []int64
	tilePops := map[int64]int64{}
	for _, t := range tiles {
		p := o.TilePopulation[t.ID]
		rate := o.TileMortality[t.ID]
		if p >= minTilePop && rate >= minDeath && rate <= maxDeath {
			candidateIDs = append(candidateIDs, t.ID)
			tilePops[t.ID] = p
		}
	}

	var minRate, maxRate float64
	for i, id := range candidateIDs {
		rate := o.TileMortality[id]
		if i == 0 || rate < minRate {
			minRate = rate
		}
		if i == 0 || rate > maxRate {
			maxRate = rate
		}
	}
	gradient := maxRate - minRate
	relGradient := 0.0
	if maxRate > 0 {
		relGradient = gradient / maxRate
	}

	adjacency := hexgrid.AdjacencyMap(coords)
	clusters := hexgrid.ConnectedComponents(candidateIDs, adjacency)
	maxDist := hexgrid.MaxPairwiseDistance(candidateIDs, coords)

	isolated := len(clusters) >= 2 || gradient >= minGradient || relGradient >= 0.25 ||
		float64(maxDist) >= distanceThreshold

	isolationType := "none"
	switch {
	case len(clusters) >= 2:
		isolationType = "cluster_split"
	case gradient >= minGradient || relGradient >= 0.25:
		isolationType = "gradient"
	case float64(maxDist) >= distanceThreshold:
		isolationType = "distance"
	}

	return CandidateTiles{
		CandidateTiles:    candidateIDs,
		TilePopulations:   tilePops,
		TileMortality:     o.TileMortality,
		MortalityGradient: gradient,
		IsIsolated:        isolated,
		Clusters:          clusters,
		MaxHexDistance:    maxDist,
		IsolationType:     isolationType,
	}
}
