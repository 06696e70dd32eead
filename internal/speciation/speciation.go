// Package speciation implements the SpeciationEngine (§2 component L,
// §4.4): selects candidates from the mortality engine's tile-distribution
// outputs, batches structural-innovation requests to the model router, and
// materializes offspring with trait trade-offs. Grounded on the teacher's
// ecosystem/population/{speciation,naming}.go eligibility checker and
// fallback-naming scheme.
package speciation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"chronofauna/internal/genetics"
	"chronofauna/internal/mortality"
	"chronofauna/internal/simtypes"
)

const (
	batchSize        = 10
	maxDeferred      = 60
	maxOffspring     = 5
	minParentPop     = 50
)

// Router is the subset of ModelRouter the engine needs.
type Router interface {
	Invoke(ctx context.Context, capability string, payload any) (BatchResponse, error)
}

// BatchRequestEntry is one element of the speciation_batch payload (§4.4).
type BatchRequestEntry struct {
	RequestID             string  `json:"request_id"`
	ParentName            string  `json:"parent_name"`
	Habitat               string  `json:"habitat"`
	PressuresSummary      string  `json:"pressures_summary"`
	EvolutionaryGenerations int64 `json:"evolutionary_generations"`
	SpeciationType        string  `json:"speciation_type"`
}

// BatchResult is one element of the expected `{results: [...]}` response.
type BatchResult struct {
	RequestID             string             `json:"request_id"`
	LatinName             string             `json:"latin_name"`
	CommonName            string             `json:"common_name"`
	Description           string             `json:"description"`
	HabitatType           string             `json:"habitat_type,omitempty"`
	TrophicLevel          *float64           `json:"trophic_level,omitempty"`
	TraitChanges          map[string]float64 `json:"trait_changes,omitempty"`
	MorphologyChanges     map[string]float64 `json:"morphology_changes,omitempty"`
	StructuralInnovations map[string]string  `json:"structural_innovations,omitempty"`
	KeyInnovations        []string           `json:"key_innovations,omitempty"`
	GeneticDiscoveries    []string           `json:"genetic_discoveries,omitempty"`
	Reason                string             `json:"reason,omitempty"`
	EventDescription      string             `json:"event_description,omitempty"`
}

// BatchResponse is the parsed router response.
type BatchResponse struct {
	Results []BatchResult `json:"results"`
}

// BranchingEvent is returned per new child (§4.1.3i Operation signature).
type BranchingEvent struct {
	ParentCode      string
	Child           *simtypes.Species
	DegradedNaming  bool
	EventDescription string
}

// Candidate is the per-species eligibility input, derived from mortality
// candidate extraction plus the species' own state.
type Candidate struct {
	Species           *simtypes.Species
	MortalityOutcome  *mortality.Outcome
	Extraction        mortality.CandidateTiles
	AveragePressure   float64
	Generations       int64
}

// Engine implements SpeciationEngine.
type Engine struct {
	router    Router
	rng       *rand.Rand
	deferred  []BatchRequestEntry
	existing  map[string]bool
}

func NewEngine(router Router, seed int64, existingCodes map[string]bool) *Engine {
	return &Engine{router: router, rng: rand.New(rand.NewSource(seed)), existing: existingCodes}
}

// IsEligible applies §4.4's 5-condition eligibility gate, mutating
// species.SpeciationPressure per the randomized-gate outcome (condition 5).
func (e *Engine) IsEligible(c Candidate, totalLive int) bool {
	sp := c.Species
	threshold := populationThreshold(sp)
	if float64(sp.Population) < 1.6*threshold {
		return false
	}
	if sp.HiddenTraits["evolution_potential"] < 0.5 && sp.SpeciationPressure < 0.3 {
		return false
	}

	stressOK := c.AveragePressure >= 1.5 && c.AveragePressure <= 15
	resourceOK := c.MortalityOutcome != nil && c.MortalityOutcome.ResourcePressure > 0.8
	popFactor := math.Min(1, float64(sp.Population)/1e6)
	radiationRoll := e.rng.Float64() < 0.03+popFactor*0.05+c.AveragePressure*0.2
	if !stressOK && !resourceOK && !radiationRoll {
		return false
	}

	dr := 0.0
	if c.MortalityOutcome != nil {
		dr = c.MortalityOutcome.DeathRate
	}
	if dr < 0.03 || dr > 0.70 {
		return false
	}

	densityDamping := 1 / (1 + math.Max(0, float64(totalLive-80))/80)
	evoPotential := sp.HiddenTraits["evolution_potential"]
	prob := ((0.35+0.4*evoPotential)*0.7 + math.Log10(math.Max(float64(c.Generations), 1))*0.08) * densityDamping
	if c.Extraction.IsolationType == "cluster_split" {
		prob += 0.15
	}
	if c.MortalityOutcome != nil && c.MortalityOutcome.NicheOverlap > 0.4 {
		prob += 0.08
	}
	prob += sp.SpeciationPressure

	if e.rng.Float64() >= prob {
		sp.SpeciationPressure = math.Min(0.5, sp.SpeciationPressure+0.10)
		return false
	}
	sp.SpeciationPressure = 0
	return true
}

func populationThreshold(sp *simtypes.Species) float64 {
	weight := sp.Morphology["body_weight_g"]
	switch {
	case weight < 0.001:
		return 2e6
	case weight < 1000:
		return 1e4
	default:
		return 500
	}
}

func offspringCount(generations int64, population int64, evoPotential float64) int {
	count := 2
	extra := int(clampRange(math.Log10(math.Max(float64(generations), 1))-4, 0, 3))
	count += extra
	if population > 1e5 {
		count++
	}
	if population > 1e7 {
		count += 2
	}
	if evoPotential > 0.85 {
		count++
	}
	if count > maxOffspring {
		count = maxOffspring
	}
	return count
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

// nextCode appends the next letter suffix to parent, resolving collisions
// with an integer suffix (§4.4 "Code generation").
func (e *Engine) nextCode(parent string, index int) string {
	letter := string(rune('a' + index%26))
	code := parent + letter
	suffix := 2
	for e.existing[code] {
		code = fmt.Sprintf("%s%s%d", parent, letter, suffix)
		suffix++
	}
	e.existing[code] = true
	return code
}

// splitPopulation retains 60-80% in the parent, divides the remainder
// uniformly-with-jitter among children, guaranteeing each child >= 1, and
// borrows from the parent down to 50 if the remainder is insufficient.
func (e *Engine) splitPopulation(total int64, nChildren int) (parentPop int64, childPops []int64) {
	retainFrac := 0.60 + e.rng.Float64()*0.20
	parentPop = int64(float64(total) * retainFrac)
	remainder := total - parentPop

	childPops = make([]int64, nChildren)
	base := remainder / int64(nChildren)
	for i := range childPops {
		jitter := int64(float64(base) * (e.rng.Float64()*0.4 - 0.2))
		childPops[i] = base + jitter
		if childPops[i] < 1 {
			childPops[i] = 1
		}
	}

	var childTotal int64
	for _, c := range childPops {
		childTotal += c
	}
	shortfall := childTotal - remainder
	if shortfall > 0 {
		borrow := shortfall
		if parentPop-borrow < 50 {
			borrow = parentPop - 50
			if borrow < 0 {
				borrow = 0
			}
		}
		parentPop -= borrow
	}
	return parentPop, childPops
}

// Process runs §4.4 end-to-end for the eligible candidates, returning the
// branching events created this turn.
func (e *Engine) Process(ctx context.Context, candidates []Candidate, turn int64, pressuresSummary string, totalLive int) ([]BranchingEvent, error) {
	var eligible []Candidate
	for _, c := range candidates {
		if e.IsEligible(c, totalLive) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	var events []BranchingEvent
	for start := 0; start < len(eligible); start += batchSize {
		end := start + batchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		batch := eligible[start:end]

		entries := make([]BatchRequestEntry, len(batch))
		for i, c := range batch {
			entries[i] = BatchRequestEntry{
				RequestID:               c.Species.LineageCode,
				ParentName:              c.Species.LatinName,
				Habitat:                 string(c.Species.HabitatType),
				PressuresSummary:        pressuresSummary,
				EvolutionaryGenerations: c.Generations,
				SpeciationType:          c.Extraction.IsolationType,
			}
		}

		resp, err := e.invokeBatch(ctx, entries)
		if err != nil {
			e.defer_(entries)
			resp = BatchResponse{}
		}

		resultsByID := make(map[string]BatchResult, len(resp.Results))
		for _, r := range resp.Results {
			resultsByID[r.RequestID] = r
		}

		for _, c := range batch {
			result, ok := resultsByID[c.Species.LineageCode]
			degraded := !ok || len(result.Description) < 80
			if degraded {
				result = e.fallbackResult(c.Species)
			}
			childEvents := e.materialize(c, result, degraded, turn)
			events = append(events, childEvents...)
		}
	}
	return events, nil
}

func (e *Engine) invokeBatch(ctx context.Context, entries []BatchRequestEntry) (BatchResponse, error) {
	if e.router == nil {
		return BatchResponse{}, fmt.Errorf("speciation: no router configured")
	}
	return e.router.Invoke(ctx, "speciation_batch", map[string]any{"entries": entries})
}

func (e *Engine) defer_(entries []BatchRequestEntry) {
	e.deferred = append(e.deferred, entries...)
	if len(e.deferred) > maxDeferred {
		e.deferred = e.deferred[len(e.deferred)-maxDeferred:]
	}
}

// DeferredRequests exposes the bounded retry queue for the next turn.
func (e *Engine) DeferredRequests() []BatchRequestEntry { return e.deferred }

func (e *Engine) fallbackResult(parent *simtypes.Species) BatchResult {
	genus := strings.ToLower(parent.GenusCode)
	if genus == "" {
		genus = "novum"
	}
	epithet := fmt.Sprintf("variant%d", e.rng.Intn(1000))
	return BatchResult{
		LatinName:   fmt.Sprintf("%s %s", capitalize(genus), epithet),
		CommonName:  parent.CommonName + " variant",
		Description: fmt.Sprintf("A descendant lineage of %s, shaped by recent environmental pressure and showing measurable divergence in trait expression across %d generations of selective filtering.", parent.LatinName, 1),
	}
}

func (e *Engine) materialize(c Candidate, result BatchResult, degraded bool, turn int64) []BranchingEvent {
	parent := c.Species
	n := offspringCount(c.Generations, parent.Population, parent.HiddenTraits["evolution_potential"])
	parentPop, childPops := e.splitPopulation(parent.Population, n)
	parent.Population = simtypes.ClampPopulation(parentPop)

	events := make([]BranchingEvent, 0, n)
	for i := 0; i < n; i++ {
		code := e.nextCode(parent.LineageCode, i)
		child := e.buildChild(parent, code, result, childPops[i], turn)
		e.enforceTraitTradeOff(parent, child, result.TraitChanges)
		child.AbstractTraits = simtypes.ValidateAbstractTraits(child.AbstractTraits, parent.AbstractTraits, child.TrophicLevel)
		e.mergeInnovations(child, result.StructuralInnovations)

		events = append(events, BranchingEvent{
			ParentCode:       parent.LineageCode,
			Child:            child,
			DegradedNaming:   degraded,
			EventDescription: result.EventDescription,
		})
	}
	return events
}

func (e *Engine) buildChild(parent *simtypes.Species, code string, result BatchResult, population int64, turn int64) *simtypes.Species {
	child := &simtypes.Species{
		LineageCode:    code,
		LatinName:      result.LatinName,
		CommonName:     result.CommonName,
		Description:    result.Description,
		GenusCode:      parent.GenusCode,
		TaxonomicRank:  simtypes.RankSpecies,
		ParentCode:     parent.LineageCode,
		Status:         simtypes.StatusAlive,
		CreatedTurn:    turn,
		Population:     simtypes.ClampPopulation(population),
		Morphology:     copyFloatMap(parent.Morphology),
		AbstractTraits: copyFloatMap(parent.AbstractTraits),
		HiddenTraits:   copyFloatMap(parent.HiddenTraits),
		HabitatType:    parent.HabitatType,
		TrophicLevel:   simtypes.ClampTrophicLevel(parent.TrophicLevel),
		DietType:       parent.DietType,
		PreySpecies:    copyStringSet(parent.PreySpecies),
		PreyPreferences: copyFloatMap(parent.PreyPreferences),
		Organs:         copyOrgans(parent.Organs),
		Capabilities:   copyStringSet(parent.Capabilities),
		DormantGenes:   simtypes.DormantGenes{Traits: map[string]simtypes.DormantTrait{}, Organs: map[string]simtypes.DormantOrgan{}},
		StressExposure: map[string]*simtypes.StressExposure{},
		GeneDiversityRadius: parent.GeneDiversityRadius * 0.7,
		ExploredDirections:  map[int]int{},
	}
	if result.TrophicLevel != nil {
		child.TrophicLevel = simtypes.ClampTrophicLevel(*result.TrophicLevel)
	}
	if result.HabitatType != "" {
		child.HabitatType = simtypes.HabitatType(result.HabitatType)
	}
	for k, v := range result.MorphologyChanges {
		child.Morphology[k] = child.Morphology[k] + v
	}
	child.Population = clampToBiomassRange(child.Population, child.Morphology["body_length_cm"])
	return child
}

// biomass-scaling constants from the original's PopulationCalculator:
// base_biomass of 1e7 kg distributed across a body-size-appropriate
// population, clamped to a biologically plausible band.
const (
	baseBiomassKg      = 1e7
	minReasonablePop   = 2_000
	maxReasonablePop   = 2_000_000
)

// clampToBiomassRange bounds a newly speciated population to the range a
// log-scale biomass budget can support for the given body length, folding
// in minReasonablePop/maxReasonablePop as the hard floor/ceiling (original:
// calculate_reasonable_population + validate_population).
func clampToBiomassRange(population int64, bodyLengthCM float64) int64 {
	if bodyLengthCM <= 0 {
		bodyLengthCM = 10
	}
	bodyMassKg := math.Pow(bodyLengthCM/10, 3) * 0.01
	if bodyMassKg < 0.001 {
		bodyMassKg = 0.001
	}
	maxByBiomass := int64(baseBiomassKg / bodyMassKg)

	lo := int64(minReasonablePop)
	hi := int64(maxReasonablePop)
	if maxByBiomass < hi {
		hi = maxByBiomass
	}
	if hi < lo {
		hi = lo
	}
	switch {
	case population < lo:
		return lo
	case population > hi:
		return hi
	default:
		return population
	}
}

// enforceTraitTradeOff applies §4.4's trade-off rule: if the proposed
// changes are net-positive, select up to 3 traits with a parent value
// above 3 and no proposed change, decrease them, then apply deterministic
// differentiation noise.
func (e *Engine) enforceTraitTradeOff(parent, child *simtypes.Species, proposed map[string]float64) {
	var sum, decreaseSum, increaseSum float64
	for _, d := range proposed {
		sum += d
		if d < 0 {
			decreaseSum += -d
		} else {
			increaseSum += d
		}
	}
	netPositive := sum > 0 && decreaseSum < 0.3*increaseSum

	for k, d := range proposed {
		child.AbstractTraits[k] = clampRange(child.AbstractTraits[k]+d, 0, 10)
	}

	if netPositive {
		var candidates []string
		for k, v := range parent.AbstractTraits {
			if _, changed := proposed[k]; changed {
				continue
			}
			if v > 3 {
				candidates = append(candidates, k)
			}
		}
		n := len(candidates)
		if n > 3 {
			n = 3
		}
		seed := int64(0)
		for _, r := range child.LineageCode {
			seed += int64(r)
		}
		rng := rand.New(rand.NewSource(seed))
		for i := 0; i < n; i++ {
			idx := rng.Intn(len(candidates))
			k := candidates[idx]
			decrease := increaseSum * 0.3 / float64(n)
			child.AbstractTraits[k] = clampRange(child.AbstractTraits[k]-decrease, 0, 10)
			candidates = append(candidates[:idx], candidates[idx+1:]...)
		}
	}

	lastChar := rune('a')
	if len(child.LineageCode) > 0 {
		lastChar = rune(child.LineageCode[len(child.LineageCode)-1])
	}
	pattern := int(lastChar-'a') % 5
	applyDifferentiationNoise(child, pattern)
}

var differentiationPatterns = [5][2][]string{
	{{"mobility", "aggression"}, {"defense", "sociality"}},
	{{"cold_tolerance", "heat_tolerance"}, {"drought_tolerance", "salinity_tolerance"}},
	{{"reproductive_speed", "sociality"}, {"mobility", "defense"}},
	{{"defense", "aggression"}, {"reproductive_speed", "mobility"}},
	{{"photosynthetic_efficiency", "light_demand"}, {"heat_tolerance", "cold_tolerance"}},
}

func applyDifferentiationNoise(child *simtypes.Species, pattern int) {
	favored := differentiationPatterns[pattern][0]
	disfavored := differentiationPatterns[pattern][1]
	rng := rand.New(rand.NewSource(int64(pattern) + 1))
	for _, t := range favored {
		jitter := rng.Float64()*0.6 - 0.3
		child.AbstractTraits[t] = clampRange(child.AbstractTraits[t]+0.5+jitter, 0, 10)
	}
	for _, t := range disfavored {
		jitter := rng.Float64()*0.6 - 0.3
		child.AbstractTraits[t] = clampRange(child.AbstractTraits[t]-0.5+jitter, 0, 10)
	}
}

func (e *Engine) mergeInnovations(child *simtypes.Species, innovations map[string]string) {
	for category, innovType := range innovations {
		organ, exists := child.Organs[category]
		if exists {
			organ.Type = innovType
			organ.ModifiedTurn = child.CreatedTurn
		} else {
			organ = simtypes.Organ{Type: innovType, AcquiredTurn: child.CreatedTurn, IsActive: true, Maturity: 1}
		}
		child.Organs[category] = organ
	}
	child.Capabilities = capabilitiesFromOrgans(child.Organs)
}

var organCapability = map[string]string{
	"lung": "air_breathing", "gill": "water_breathing", "wing": "flight",
	"claw": "grasping", "shell": "armor", "venom_gland": "venomous",
}

func capabilitiesFromOrgans(organs map[string]simtypes.Organ) map[string]struct{} {
	out := make(map[string]struct{}, len(organs))
	for _, o := range organs {
		if cap, ok := organCapability[o.Type]; ok {
			out[cap] = struct{}{}
		}
	}
	return out
}

// GeneticDistances computes pairwise genetic distance among all living
// siblings in a genus, for the genus's genetic-distance ledger (§4.4
// "Genetic distance update").
func GeneticDistances(siblings []*simtypes.Species) map[[2]string]float64 {
	out := make(map[[2]string]float64)
	for i := 0; i < len(siblings); i++ {
		for j := i + 1; j < len(siblings); j++ {
			d := genetics.GeneticDistance(siblings[i].AbstractTraits, siblings[j].AbstractTraits)
			out[[2]string{siblings[i].LineageCode, siblings[j].LineageCode}] = d
		}
	}
	return out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStringSet(m map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func copyOrgans(m map[string]simtypes.Organ) map[string]simtypes.Organ {
	out := make(map[string]simtypes.Organ, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
