// Package geneactivation implements the GeneActivationService (§2
// component J, §4.6): on high mortality, probabilistically promotes
// dormant traits/organs with dominance, linkage and horizontal-gene-transfer
// effects, gated by reachability in the gene-diversity ball. Grounded on
// the teacher's npc/genetics mutation/trait helpers.
package geneactivation

import (
	"hash/fnv"
	"math"
	"math/rand"

	"chronofauna/internal/simtypes"
)

// Reachability is the subset of GeneDiversityService this package needs.
type Reachability interface {
	IsReachable(speciesVec, targetVec []float64, r float64) bool
	ConsumeOnActivation(radius float64) float64
}

var dominanceFactor = map[string]float64{
	"dominant":   1.0,
	"codominant": 0.6,
	"recessive":  0.3,
}

var organStages = []string{"", "primordium", "primitive", "functional", "mature"}

var turnsPerStage = map[string]int{"primordium": 2, "primitive": 3, "functional": 4}
var failureChance = map[string]float64{"primordium": 0.3, "primitive": 0.15, "functional": 0.05}
var efficiencyByStage = map[string]float64{"functional": 0.6, "mature": 1.0}

const baseActivationPerTurn = 0.05
const minExposure = 2
const activationDeathRateThreshold = 0.2
const harmfulProbabilityDiscount = 0.3

// Result is ActivationResult from §4.6.
type Result struct {
	Traits         map[string]float64
	Organs         map[string]string // category -> new stage
	OrganDevelopment map[string]string
	LinkedEffects  []string
	HarmfulActivated []string
	HGTAcquired    []string
}

// Service implements GeneActivationService.
type Service struct {
	rng   *rand.Rand
	genes Reachability
}

func NewService(genes Reachability, seed int64) *Service {
	return &Service{rng: rand.New(rand.NewSource(seed)), genes: genes}
}

// CheckAndActivate runs §4.6 steps 1-6 for one species under one pressure
// event, returning the activation result for inclusion in the turn report.
func (s *Service) CheckAndActivate(sp *simtypes.Species, deathRate float64, pressureType string, turn int64, nearbyDonors []*simtypes.Species) Result {
	result := Result{
		Traits: map[string]float64{}, Organs: map[string]string{}, OrganDevelopment: map[string]string{},
	}

	exposure := sp.StressExposure[pressureType]
	if exposure == nil {
		exposure = &simtypes.StressExposure{}
		sp.StressExposure[pressureType] = exposure
	}
	exposure.Count++
	if deathRate > exposure.MaxDeathRate {
		exposure.MaxDeathRate = deathRate
	}

	if len(sp.DormantGenes.Traits) == 0 && len(sp.DormantGenes.Organs) == 0 {
		s.bootstrap(sp)
	}

	s.activateTraits(sp, deathRate, pressureType, &result)
	s.developOrgans(sp, pressureType, turn, &result)
	if s.isHGTEligible(sp) {
		s.attemptHGT(sp, nearbyDonors, &result)
	}

	return result
}

// bootstrap seeds dormant_genes when a species has none yet: its top-2
// abstract traits as "enhanced" blueprints, a generic adaptability trait,
// and a 15% chance of one harmful mutation (§4.6 step 2).
func (s *Service) bootstrap(sp *simtypes.Species) {
	top := topTraits(sp.AbstractTraits, 2)
	for _, t := range top {
		sp.DormantGenes.Traits["enhanced_"+t] = simtypes.DormantTrait{
			Potential: 2.0, Dominance: "codominant", TargetTrait: t,
		}
	}
	sp.DormantGenes.Traits["adaptability"] = simtypes.DormantTrait{
		Potential: 1.5, Dominance: "recessive",
	}
	if s.rng.Float64() < 0.15 {
		victim := top[0]
		sp.DormantGenes.Traits["harmful_"+victim] = simtypes.DormantTrait{
			Potential: -1.5, Dominance: "recessive", Harmful: true, TargetTrait: victim,
		}
	}
}

func topTraits(traits map[string]float64, n int) []string {
	type kv struct {
		k string
		v float64
	}
	var all []kv
	for k, v := range traits {
		all = append(all, kv{k, v})
	}
	for i := 0; i < len(all); i++ {
		for j := i + 1; j < len(all); j++ {
			if all[j].v > all[i].v {
				all[i], all[j] = all[j], all[i]
			}
		}
	}
	out := make([]string, 0, n)
	for i := 0; i < n && i < len(all); i++ {
		out = append(out, all[i].k)
	}
	if len(out) == 0 {
		out = append(out, "mobility")
	}
	return out
}

func (s *Service) activateTraits(sp *simtypes.Species, deathRate float64, pressureType string, result *Result) {
	for name, trait := range sp.DormantGenes.Traits {
		trait.Exposure++
		sp.DormantGenes.Traits[name] = trait

		prob := baseActivationPerTurn * (1 + sp.HiddenTraits["evolution_potential"])
		if matchesPressure(trait, pressureType) {
			prob *= 1.5
		}
		if trait.Harmful {
			prob *= harmfulProbabilityDiscount
		}

		if deathRate <= activationDeathRateThreshold || trait.Exposure < minExposure {
			continue
		}
		if s.genes != nil && sp.EcologicalVector != nil {
			pressureVec := pressureVectorFor(pressureType, len(sp.EcologicalVector))
			if !s.genes.IsReachable(sp.EcologicalVector, pressureVec, sp.GeneDiversityRadius) {
				continue
			}
		}
		if s.rng.Float64() >= prob {
			continue
		}

		expressed := trait.Potential * dominanceFactor[trait.Dominance]
		if trait.Harmful {
			target := trait.TargetTrait
			sp.AbstractTraits[target] = clampRange(sp.AbstractTraits[target]+expressed, 0, 10)
			result.HarmfulActivated = append(result.HarmfulActivated, name)
		} else {
			target := name
			if trait.TargetTrait != "" {
				target = trait.TargetTrait
			}
			sp.AbstractTraits[target] = clampRange(sp.AbstractTraits[target]+expressed, 0, 10)
			result.Traits[target] = expressed
		}

		delete(sp.DormantGenes.Traits, name)
		if s.genes != nil {
			sp.GeneDiversityRadius = s.genes.ConsumeOnActivation(sp.GeneDiversityRadius)
		}
		sp.ExploredDirections[int(hashString(pressureType)%10000)]++

		if trait.LinkagePrimary {
			for _, linked := range trait.LinkedTraits {
				sp.AbstractTraits[linked] = clampRange(5+s.rng.Float64()*2-1, 0, 10)
				result.LinkedEffects = append(result.LinkedEffects, linked)
			}
		}
	}
}

func matchesPressure(trait simtypes.DormantTrait, pressureType string) bool {
	for _, p := range trait.PressureTypes {
		if p == pressureType {
			return true
		}
	}
	return false
}

func pressureVectorFor(pressureType string, dim int) []float64 {
	vec := make([]float64, dim)
	h := hashString(pressureType)
	for i := range vec {
		vec[i] = float64((h>>uint(i%32))&0xFF) / 255
	}
	return vec
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

// developOrgans advances the 4-stage organ pipeline (§4.6 step 5).
func (s *Service) developOrgans(sp *simtypes.Species, pressureType string, turn int64, result *Result) {
	for category, organ := range sp.DormantGenes.Organs {
		if organ.Stage == "" {
			discovery := 0.02 * (1 + sp.HiddenTraits["evolution_potential"]*2)
			if s.rng.Float64() < discovery {
				organ.Stage = "primordium"
				organ.StageStartTurn = turn
				sp.DormantGenes.Organs[category] = organ
				result.OrganDevelopment[category] = organ.Stage
			}
			continue
		}

		duration, ok := turnsPerStage[organ.Stage]
		if !ok {
			continue
		}
		accelerated := float64(duration) * (1 - sp.HiddenTraits["evolution_potential"]*0.3)
		elapsed := turn - organ.StageStartTurn
		if float64(elapsed) < accelerated {
			if s.rng.Float64() < failureChance[organ.Stage] {
				organ.Stage = regress(organ.Stage)
				organ.StageStartTurn = turn
				sp.DormantGenes.Organs[category] = organ
			}
			continue
		}

		nextStage := advance(organ.Stage)
		organ.Stage = nextStage
		organ.StageStartTurn = turn
		result.OrganDevelopment[category] = nextStage

		if nextStage == "functional" || nextStage == "mature" {
			sp.Organs[category] = simtypes.Organ{
				Type:             organ.Category,
				IsActive:         true,
				Maturity:         efficiencyByStage[nextStage],
				AcquiredTurn:     turn,
				DevelopmentStage: nextStage,
				StageStartTurn:   organ.StageStartTurn,
			}
			result.Organs[category] = nextStage
			if nextStage == "mature" {
				delete(sp.DormantGenes.Organs, category)
				continue
			}
		}
		sp.DormantGenes.Organs[category] = organ
	}
}

func advance(stage string) string {
	for i, s := range organStages {
		if s == stage && i+1 < len(organStages) {
			return organStages[i+1]
		}
	}
	return stage
}

func regress(stage string) string {
	for i, s := range organStages {
		if s == stage {
			if i == 0 {
				return stage
			}
			return organStages[i-1]
		}
	}
	return stage
}

func (s *Service) isHGTEligible(sp *simtypes.Species) bool {
	return sp.TrophicLevel < 1.5
}

const hgtBaseProbability = 0.01
const hgtSympatricBonus = 0.02

func (s *Service) attemptHGT(sp *simtypes.Species, donors []*simtypes.Species, result *Result) {
	eligible := make([]*simtypes.Species, 0, len(donors))
	for _, d := range donors {
		if d.TrophicLevel < 1.5 && d.LineageCode != sp.LineageCode {
			eligible = append(eligible, d)
		}
	}
	if len(eligible) == 0 {
		return
	}
	prob := hgtBaseProbability + hgtSympatricBonus*math.Min(float64(len(eligible)), 3)/3
	if s.rng.Float64() >= prob {
		return
	}
	donor := eligible[s.rng.Intn(len(eligible))]

	var candidates []string
	for k := range donor.AbstractTraits {
		if _, has := sp.AbstractTraits[k]; has {
			continue
		}
		candidates = append(candidates, k)
	}
	if len(candidates) == 0 {
		return
	}
	trait := candidates[s.rng.Intn(len(candidates))]
	efficiency := 0.3 + s.rng.Float64()*0.4
	transferred := donor.AbstractTraits[trait] * efficiency

	integrationStability := 0.5
	if s.rng.Float64() < integrationStability {
		sp.AbstractTraits[trait] = clampRange(transferred, 0, 10)
		result.HGTAcquired = append(result.HGTAcquired, trait)
	}
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
