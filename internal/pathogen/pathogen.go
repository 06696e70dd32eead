// Package pathogen is a supplemented feature (not named as its own
// component in the core spec, but present in the original implementation's
// ecosystem subsystem): a per-species SIR-style infection model feeding the
// "disease" pressure modifier P_env's special-event term consumes (§4.2).
// Adapted from the teacher's ecosystem/pathogen/simulation.go outbreak
// system, trimmed of its UUID-keyed pathogen library and lore-history
// bookkeeping, kept on the random-outbreak/SIR-step core.
package pathogen

import (
	"math/rand"
)

// PathogenType mirrors the teacher's closed transmission-mode enum.
type PathogenType string

const (
	Airborne PathogenType = "airborne"
	Waterborne PathogenType = "waterborne"
	VectorBorne PathogenType = "vector_borne"
	DirectContact PathogenType = "direct_contact"
)

// Outbreak is an active SIR-style infection on one species.
type Outbreak struct {
	SpeciesCode   string
	Type          PathogenType
	Transmissibility float64 // beta
	Lethality     float64    // gamma fraction that dies vs. recovers
	Susceptible   float64    // fraction of population, starts at 1.0
	Infected      float64
	Recovered     float64
	StartTurn     int64
	IsActive      bool
}

// System manages outbreaks across the world's species, mirroring the
// teacher's DiseaseSystem but keyed by lineage_code instead of UUID.
type System struct {
	Outbreaks          map[string]*Outbreak
	OutbreakBaseChance float64
	ZoonoticChance     float64
	MaxActiveOutbreaks int
	rng                *rand.Rand
}

func NewSystem(seed int64) *System {
	return &System{
		Outbreaks:          map[string]*Outbreak{},
		OutbreakBaseChance: 0.0003,
		ZoonoticChance:     0.001,
		MaxActiveOutbreaks: 10,
		rng:                rand.New(rand.NewSource(seed)),
	}
}

func (s *System) activeCount() int {
	n := 0
	for _, o := range s.Outbreaks {
		if o.IsActive {
			n++
		}
	}
	return n
}

// CheckSpontaneous rolls for a new outbreak on a species, scaled by
// population density and sociality (higher sociality raises transmission
// opportunity, matching the spec's disease-pressure sociality coupling).
func (s *System) CheckSpontaneous(speciesCode string, sociality float64, densityFactor float64, turn int64) *Outbreak {
	if s.activeCount() >= s.MaxActiveOutbreaks {
		return nil
	}
	if _, exists := s.Outbreaks[speciesCode]; exists {
		return nil
	}
	chance := s.OutbreakBaseChance * (1 + sociality/10) * (1 + densityFactor)
	if s.rng.Float64() >= chance {
		return nil
	}
	o := &Outbreak{
		SpeciesCode:      speciesCode,
		Type:             s.randomType(),
		Transmissibility: 0.2 + s.rng.Float64()*0.5,
		Lethality:        s.rng.Float64() * 0.3,
		Susceptible:      0.99,
		Infected:         0.01,
		StartTurn:        turn,
		IsActive:         true,
	}
	s.Outbreaks[speciesCode] = o
	return o
}

func (s *System) randomType() PathogenType {
	types := []PathogenType{Airborne, Waterborne, VectorBorne, DirectContact}
	return types[s.rng.Intn(len(types))]
}

// Step advances the SIR model by one turn, returning the mortality
// fraction the disease pressure term should apply this turn.
func (o *Outbreak) Step() float64 {
	if !o.IsActive {
		return 0
	}
	newInfections := o.Transmissibility * o.Susceptible * o.Infected
	if newInfections > o.Susceptible {
		newInfections = o.Susceptible
	}
	recovering := o.Infected * 0.3

	o.Susceptible -= newInfections
	o.Infected += newInfections - recovering
	o.Recovered += recovering * (1 - o.Lethality)
	mortalityFraction := recovering * o.Lethality

	if o.Infected < 0.001 {
		o.IsActive = false
	}
	return mortalityFraction
}

// DiseasePressureFor returns the per-species disease modifier contribution
// (0 if no active outbreak), to be folded into pressure_modifiers["disease"]
// by the orchestrator before the mortality stage runs.
func (s *System) DiseasePressureFor(speciesCode string) float64 {
	o, ok := s.Outbreaks[speciesCode]
	if !ok || !o.IsActive {
		return 0
	}
	return o.Step() * 10
}
