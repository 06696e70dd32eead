package simtypes

// PressureSpec is a single row of the YAML-templated pressure table (§4.2,
// §5 dependency wiring). The kind/formula indirection lets mortality and
// pressure-event code stay data-driven instead of switch-heavy.
type PressureSpec struct {
	Kind        string             `yaml:"kind" json:"kind"`
	Label       string             `yaml:"label" json:"label,omitempty"`
	Additive    bool               `yaml:"additive" json:"-"`
	Weight      float64            `yaml:"weight" json:"-"`
	Params      map[string]float64 `yaml:"params,omitempty" json:"-"`
	AppliesTo   []HabitatType      `yaml:"applies_to,omitempty" json:"-"`
	Intensity   float64            `yaml:"-" json:"intensity"`
}

// PressureEvent is a transient, world-scoped modifier applied for a
// bounded number of turns (volcanic eruption, cold snap, algal bloom, ...).
type PressureEvent struct {
	ID          int64
	Kind        string
	TileIDs     []int64
	Magnitude   float64
	StartTurn   int64
	DurationTurns int
}

// Active reports whether the event is still in effect at the given turn.
func (e PressureEvent) Active(turn int64) bool {
	return turn >= e.StartTurn && turn < e.StartTurn+int64(e.DurationTurns)
}

// StageReport captures one substage's contribution to the turn report
// (§4.1.3, §6 run_turn response shape).
type StageReport struct {
	Name        string         `json:"name"`
	DurationMS  int64          `json:"duration_ms"`
	Summary     map[string]any `json:"summary,omitempty"`
}

// TurnReport is the full per-turn result returned by run_turn (§6).
type TurnReport struct {
	TurnIndex       int64               `json:"turn_index"`
	Stages          []StageReport       `json:"stages"`
	ExtinctSpecies  []string            `json:"extinct_species"`
	NewSpecies      []string            `json:"new_species"`
	ActivatedTraits map[string][]string `json:"activated_traits,omitempty"`
	TotalPopulation int64               `json:"total_population"`
	DurationMS      int64               `json:"duration_ms"`
	Warnings        []string            `json:"warnings,omitempty"`
	Narrative       string              `json:"narrative,omitempty"`
	DegradedMode    bool                `json:"degraded_mode"`
	SpeciesSnapshots []SpeciesSnapshot  `json:"species_snapshots,omitempty"`

	// PressuresSummary is a short human-readable digest of the active
	// pressure modifiers for the round (§3 TurnReport, §6 run_turn).
	PressuresSummary  string              `json:"pressures_summary"`
	BranchingEvents   []BranchingEventSummary `json:"branching_events,omitempty"`
	ReemergenceEvents []ReemergenceEvent  `json:"reemergence_events,omitempty"`
	MajorEvents       []string            `json:"major_events,omitempty"`
	MapChanges        []string            `json:"map_changes,omitempty"`
	MigrationEvents   []MigrationEvent    `json:"migration_events,omitempty"`

	// Scalar environmental summaries from the tectonic_step collaborator.
	SeaLevel             float64 `json:"sea_level"`
	GlobalAvgTemperature float64 `json:"global_avg_temperature"`
	TectonicStage        string  `json:"tectonic_stage,omitempty"`

	// Ecosystem-wide rollups from the analytics package.
	BiodiversityIndex  float64     `json:"biodiversity_index"`
	EcosystemHealth    float64     `json:"ecosystem_health"`
	TrophicDistribution map[int]int `json:"trophic_distribution,omitempty"`
}

// SpeciesSnapshot records one species' per-turn state: the identity data
// needed for the invariant "Σ deaths + Σ survivors = Σ initial_population"
// (§8.6), plus the full tile-distribution picture from TileMortalityEngine
// (§3 SpeciesSnapshot).
type SpeciesSnapshot struct {
	LineageCode     string  `json:"lineage_code"`
	LatinName       string  `json:"latin_name"`
	CommonName      string  `json:"common_name"`
	Status          string  `json:"status"`
	EcologicalRole  string  `json:"ecological_role"`
	Tier            string  `json:"tier"`

	InitialPopulation int64   `json:"initial_population"`
	Population        int64   `json:"population"`
	PopulationShare   float64 `json:"population_share"`
	Deaths            int64   `json:"deaths"`
	Survivors         int64   `json:"survivors"`
	DeathRate         float64 `json:"death_rate"`
	NicheOverlap      float64 `json:"niche_overlap"`

	TotalTiles         int     `json:"total_tiles"`
	HealthyTiles       int     `json:"healthy_tiles"`
	WarningTiles       int     `json:"warning_tiles"`
	CriticalTiles      int     `json:"critical_tiles"`
	BestTileRate       float64 `json:"best_tile_rate"`
	WorstTileRate      float64 `json:"worst_tile_rate"`
	HasRefuge          bool    `json:"has_refuge"`
	DistributionStatus string  `json:"distribution_status"`
	PopulationTrend    float64 `json:"population_trend"`
}

// DistributionStatus buckets a species' tile-rate mix into the coarse
// label SpeciesSnapshot exposes alongside the raw tile counts.
func DistributionStatus(total, healthy, warning, critical int) string {
	if total == 0 {
		return "unknown"
	}
	switch {
	case critical*2 > total:
		return "critical"
	case warning+critical > 0:
		return "warning"
	default:
		return "healthy"
	}
}

// BranchingEventSummary is the report-facing projection of a
// speciation.BranchingEvent (§4.4), carrying the child's lineage code
// rather than the full Species value.
type BranchingEventSummary struct {
	ParentCode       string `json:"parent_code"`
	ChildCode        string `json:"child_code"`
	DegradedNaming   bool   `json:"degraded_naming"`
	EventDescription string `json:"event_description,omitempty"`
}

// ReemergenceEvent records a dormant trait, organ, or horizontally
// transferred gene re-expressing on a living species (§4.6
// GeneActivationService), surfaced on the turn report as
// reemergence_events distinct from the activated_traits map's
// trait-name-only view.
type ReemergenceEvent struct {
	LineageCode string `json:"lineage_code"`
	Kind        string `json:"kind"` // trait | harmful_trait | linked_trait | organ | hgt
	Name        string `json:"name"`
}

// MigrationEvent records a species gaining or abandoning a tile between
// turns, derived from comparing HabitatManager's prior and current
// per-tile population snapshots (§4.1.3j habitat_snapshot).
type MigrationEvent struct {
	LineageCode string `json:"lineage_code"`
	TileID      int64  `json:"tile_id"`
	Kind        string `json:"kind"` // expanded | abandoned
}

// EcologicalRole classifies a species' coarse trophic/diet role for
// display (§6 /species/list, §3 SpeciesSnapshot).
func EcologicalRole(diet DietType, trophicLevel float64) string {
	switch {
	case diet == DietAutotroph:
		return "producer"
	case trophicLevel >= 4.0:
		return "apex_predator"
	case diet == DietCarnivore:
		return "predator"
	case diet == DietDetritivore:
		return "decomposer"
	default:
		return "consumer"
	}
}
