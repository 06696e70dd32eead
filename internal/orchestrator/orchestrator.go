// Package orchestrator implements TurnOrchestrator / SimulationEngine
// (§2 component N, §4.1): sequences stages b–k under a cancellable
// context, streams named progress events, assembles a TurnReport, and
// schedules autosave. Grounded on the teacher's
// ecosystem/simulation/step.go unified Step() function (shared
// sequencing logic between headless and interactive run modes),
// generalized from its fixed year-tick loop to the turn pipeline's
// eleven-stage sequence and named event emission.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"chronofauna/internal/analytics"
	"chronofauna/internal/apierr"
	"chronofauna/internal/eventbus"
	"chronofauna/internal/extinction"
	"chronofauna/internal/geneactivation"
	"chronofauna/internal/habitat"
	"chronofauna/internal/kincompetition"
	"chronofauna/internal/mortality"
	"chronofauna/internal/niche"
	"chronofauna/internal/pathogen"
	"chronofauna/internal/predation"
	"chronofauna/internal/pressure"
	"chronofauna/internal/reproduction"
	"chronofauna/internal/simtypes"
	"chronofauna/internal/speciation"
	"chronofauna/internal/store"
)

// TurnCommand is the run_turn request payload (§4.1, §6 POST /turns/run).
type TurnCommand struct {
	Rounds    int                     `json:"rounds"`
	Pressures []simtypes.PressureSpec `json:"pressures"`
}

// EnergyStore is the metagame energy collaborator (§4.1 step 1, §9 Open
// Question: "modeled only as the single collaborator method").
type EnergyStore interface {
	Charge(ctx context.Context, cost float64) error
}

// MapCollaborator is the tectonic/climate subsystem (§2 "explicitly out
// of scope... the tectonic/climate subsystem that supplies map and
// environmental deltas"); the orchestrator only calls Advance.
type MapCollaborator interface {
	Advance(ctx context.Context, turn int64) (MapAdvanceResult, error)
}

// MapAdvanceResult is the tectonic_step collaborator's output (§4.1.3b).
type MapAdvanceResult struct {
	MapChanges            []string
	MajorEvents           []string
	SeaLevel              float64
	GlobalAvgTemperature  float64
	TectonicStage         string
}

// RoundCost is the fixed per-round energy charge (§4.1 step 1); a package
// variable rather than a constant, so code in the same process can change
// it. No config or environment setting sets it.
var RoundCost = 1.0

// Orchestrator wires every collaborator the turn pipeline needs.
type Orchestrator struct {
	Species     store.SpeciesStore
	Environment store.EnvironmentStore
	History     store.HistoryStore
	Genera      store.GenusStore
	Energy      EnergyStore
	MapCollab   MapCollaborator
	Bus         *eventbus.Bus

	Pressures     pressure.Table
	NicheAnalyzer *niche.Analyzer
	Predation     *predation.Service
	Pathogen      *pathogen.System
	Mortality     *mortality.Engine
	GeneActivation *geneactivation.Service
	Reproduction  *reproduction.Engine
	Speciation    *speciation.Engine
	Habitat       *habitat.Manager
	KinCalc       *kincompetition.Calculator

	history *analytics.HistoryCache

	skipAIStep atomic.Bool
	turnCounter int64
	autosave    func(ctx context.Context, turn int64) error
}

func New() *Orchestrator {
	return &Orchestrator{history: analytics.NewHistoryCache(100)}
}

// SkipCurrentAIStep stores the orchestrator's skip flag (§4.1 step 2). No
// stage reads this flag, so it does not affect AI requests; the flag the
// router checks is set through router.Router.SkipAIStep.
func (o *Orchestrator) SkipCurrentAIStep(skip bool) {
	o.skipAIStep.Store(skip)
}

// SetAutosave registers the background autosave hook invoked after each
// round per the §4.1.4 "every N rounds" policy; the scheduler itself
// lives in internal/autosave.
func (o *Orchestrator) SetAutosave(fn func(ctx context.Context, turn int64) error) {
	o.autosave = fn
}

// CurrentTurn reports the last completed round index, for wall-clock
// maintenance jobs (e.g. habitat-population retention pruning) that run
// independently of the per-round autosave trigger.
func (o *Orchestrator) CurrentTurn() int64 {
	return atomic.LoadInt64(&o.turnCounter)
}

// RunTurn executes cmd.Rounds rounds end-to-end, returning one
// TurnReport per round (§4.1 "run_turn(command) -> list[TurnReport]").
func (o *Orchestrator) RunTurn(ctx context.Context, cmd TurnCommand) ([]simtypes.TurnReport, error) {
	if cmd.Rounds < 1 || cmd.Rounds > 32 {
		return nil, apierr.NewInvalidInput("rounds", "rounds must be in [1,32], got %d", cmd.Rounds)
	}

	reports := make([]simtypes.TurnReport, 0, cmd.Rounds)
	for i := 0; i < cmd.Rounds; i++ {
		report, err := o.runRound(ctx, cmd.Pressures)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
		if o.autosave != nil {
			if err := o.autosave(ctx, report.TurnIndex); err != nil {
				o.emit(ctx, eventbus.Event{Type: "warning", Message: fmt.Sprintf("autosave failed: %v", err), Category: "autosave"})
			}
		}
	}
	return reports, nil
}

func (o *Orchestrator) runRound(ctx context.Context, pressures []simtypes.PressureSpec) (simtypes.TurnReport, error) {
	turn := atomic.AddInt64(&o.turnCounter, 1)
	start := time.Now()

	// Step 1: energy gate.
	if o.Energy != nil {
		if err := o.Energy.Charge(ctx, RoundCost); err != nil {
			return simtypes.TurnReport{}, apierr.Wrap(apierr.ErrInsufficientEnergy, err.Error(), err)
		}
	}

	o.emit(ctx, eventbus.Event{Type: "start", Message: fmt.Sprintf("turn %d starting", turn)})

	report := simtypes.TurnReport{TurnIndex: turn}
	var stages []simtypes.StageReport
	degraded := false

	stage := func(name string, critical bool, fn func() (map[string]any, error)) bool {
		if err := ctx.Err(); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: cancelled", name))
			return false
		}
		t0 := time.Now()
		summary, err := fn()
		elapsed := time.Since(t0)
		stages = append(stages, simtypes.StageReport{Name: name, DurationMS: elapsed.Milliseconds(), Summary: summary})
		if err != nil {
			if critical {
				o.emit(ctx, eventbus.Event{Type: "error", Message: err.Error(), Category: name})
				return false
			}
			degraded = true
			report.Warnings = append(report.Warnings, fmt.Sprintf("%s: degraded: %v", name, err))
		}
		o.emit(ctx, eventbus.Event{Type: name, Message: fmt.Sprintf("%s complete", name)})
		return true
	}

	// a. pressure_applied
	pressureModifiers := map[string]float64{}
	if !stage("pressure_applied", true, func() (map[string]any, error) {
		pressureModifiers = o.Pressures.Apply(pressureSpecs(pressures))
		return map[string]any{"modifiers": len(pressureModifiers)}, nil
	}) {
		return report, fmt.Errorf("orchestrator: turn %d aborted at pressure_applied", turn)
	}

	// b. tectonic_step (fallback: no map change)
	var mapResult MapAdvanceResult
	stage("tectonic_step", false, func() (map[string]any, error) {
		if o.MapCollab == nil {
			return nil, fmt.Errorf("no map collaborator configured")
		}
		var err error
		mapResult, err = o.MapCollab.Advance(ctx, turn)
		return map[string]any{"tectonic_stage": mapResult.TectonicStage}, err
	})

	live, err := o.Species.ListAlive(ctx)
	if err != nil {
		o.emit(ctx, eventbus.Event{Type: "error", Message: err.Error(), Category: "species_load"})
		return report, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to load live species", err)
	}
	tiles, err := o.Environment.ListTiles(ctx)
	if err != nil {
		return report, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to load tiles", err)
	}
	habitats, err := o.Environment.LatestHabitats(ctx, turn-1)
	if err != nil {
		habitats = nil
		degraded = true
	}

	if len(live) == 0 {
		report.Stages = stages
		report.DurationMS = time.Since(start).Milliseconds()
		o.emit(ctx, eventbus.Event{Type: "complete", Message: "no live species"})
		return report, nil
	}

	// c. niche_evaluated
	var nicheMetrics map[string]niche.Metrics
	stage("niche_evaluated", true, func() (map[string]any, error) {
		var err error
		nicheMetrics, err = o.NicheAnalyzer.Analyze(ctx, live, pressureModifiers)
		return map[string]any{"species": len(nicheMetrics)}, err
	})

	// d. predation_prepared
	var predMatrix *predation.Matrix
	stage("predation_prepared", false, func() (map[string]any, error) {
		predMatrix = o.Predation.BuildPredationMatrix(live)
		return map[string]any{"species": len(live)}, nil
	})

	// pathogen_checked: roll spontaneous outbreaks and fold active ones into
	// pressure_modifiers["disease"] before mortality consumes it.
	if o.Pathogen != nil {
		stage("pathogen_checked", false, func() (map[string]any, error) {
			active := 0
			for _, sp := range live {
				densityFactor := float64(sp.Population) / 1_000_000
				if densityFactor > 1 {
					densityFactor = 1
				}
				o.Pathogen.CheckSpontaneous(sp.LineageCode, sp.AbstractTraits["sociality"], densityFactor, turn)
				if contribution := o.Pathogen.DiseasePressureFor(sp.LineageCode); contribution > 0 {
					pressureModifiers["disease"] += contribution
					active++
				}
			}
			return map[string]any{"active_outbreaks": active}, nil
		})
	}

	// e. mortality_computed (tiered: critical, focus, background merged)
	outcomes := map[string]*mortality.Outcome{}
	stage("mortality_computed", true, func() (map[string]any, error) {
		tiers := tierSpecies(live)
		trophicInteractions := map[string]float64{}
		for name, batch := range tiers {
			if len(batch) == 0 {
				continue
			}
			in := mortality.Input{
				Species:             batch,
				AllSpecies:          live,
				Tiles:               tiles,
				Habitats:            habitats,
				PressureModifiers:   pressureModifiers,
				NicheMetrics:        nicheMetrics,
				Predation:           predMatrix,
				TrophicInteractions: trophicInteractions,
				Tier:                name,
				TurnIndex:           turn,
			}
			for code, outcome := range o.Mortality.Evaluate(in) {
				outcomes[code] = outcome
			}
		}
		return map[string]any{"evaluated": len(outcomes)}, nil
	})

	// f. genes_activated
	activated := map[string][]string{}
	var reemergence []simtypes.ReemergenceEvent
	stage("genes_activated", false, func() (map[string]any, error) {
		total := 0
		for _, sp := range live {
			outcome, ok := outcomes[sp.LineageCode]
			if !ok {
				continue
			}
			result := o.GeneActivation.CheckAndActivate(sp, outcome.DeathRate, dominantPressureKind(pressureModifiers), turn, live)
			var keys []string
			for trait := range result.Traits {
				keys = append(keys, trait)
				reemergence = append(reemergence, simtypes.ReemergenceEvent{LineageCode: sp.LineageCode, Kind: "trait", Name: trait})
			}
			for _, name := range result.HarmfulActivated {
				keys = append(keys, name)
				reemergence = append(reemergence, simtypes.ReemergenceEvent{LineageCode: sp.LineageCode, Kind: "harmful_trait", Name: name})
			}
			for _, linked := range result.LinkedEffects {
				reemergence = append(reemergence, simtypes.ReemergenceEvent{LineageCode: sp.LineageCode, Kind: "linked_trait", Name: linked})
			}
			for category, stageName := range result.Organs {
				reemergence = append(reemergence, simtypes.ReemergenceEvent{LineageCode: sp.LineageCode, Kind: "organ", Name: category + ":" + stageName})
			}
			for _, gene := range result.HGTAcquired {
				reemergence = append(reemergence, simtypes.ReemergenceEvent{LineageCode: sp.LineageCode, Kind: "hgt", Name: gene})
			}
			if len(keys) > 0 {
				activated[sp.LineageCode] = keys
				total += len(keys)
			}
		}
		return map[string]any{"traits_activated": total}, nil
	})
	report.ActivatedTraits = activated
	report.ReemergenceEvents = reemergence
	o.recordGeneDiscoveries(ctx, reemergence, live, turn)

	// g. reproduction_applied
	latestHabitats := simtypes.LatestPerSpecies(habitats)
	tileByID := make(map[int64]simtypes.MapTile, len(tiles))
	for _, t := range tiles {
		tileByID[t.ID] = t
	}
	stage("reproduction_applied", true, func() (map[string]any, error) {
		inputs := make([]reproduction.Input, 0, len(live))
		for _, sp := range live {
			outcome, ok := outcomes[sp.LineageCode]
			if !ok {
				continue
			}
			snapshots := make([]reproduction.HabitatSnapshot, 0)
			for _, rec := range latestHabitats[sp.LineageCode] {
				snapshots = append(snapshots, reproduction.HabitatSnapshot{
					TileID:      rec.TileID,
					Suitability: rec.Suitability,
					Population:  rec.Population,
					Resources:   tileByID[rec.TileID].Resources,
				})
			}
			inputs = append(inputs, reproduction.Input{
				Species:      sp,
				Habitats:     snapshots,
				Niche:        nicheMetrics[sp.LineageCode],
				SurvivalRate: 1 - outcome.DeathRate,
				DeathRate:    outcome.DeathRate,
			})
		}
		newPops := o.Reproduction.Apply(inputs)
		for _, sp := range live {
			if pop, ok := newPops[sp.LineageCode]; ok {
				sp.Population = simtypes.ClampPopulation(pop)
			}
		}
		return map[string]any{"species": len(newPops)}, nil
	})

	// h. extinctions_checked
	var extinct []string
	stage("extinctions_checked", true, func() (map[string]any, error) {
		for _, sp := range live {
			if extinction.Check(sp, outcomes[sp.LineageCode], turn) {
				extinct = append(extinct, sp.LineageCode)
			}
		}
		return map[string]any{"extinct": len(extinct)}, nil
	})
	report.ExtinctSpecies = extinct

	// i. speciation_run
	var branching []speciation.BranchingEvent
	stage("speciation_run", false, func() (map[string]any, error) {
		candidates := make([]speciation.Candidate, 0)
		for _, sp := range live {
			if sp.Status == simtypes.StatusExtinct {
				continue
			}
			outcome, ok := outcomes[sp.LineageCode]
			if !ok {
				continue
			}
			extraction := mortality.ExtractCandidates(outcome, tiles, 10, 0.03, 0.70, 0.1, 4, 2, 3)
			avgPressure := 0.0
			if extraction.MortalityGradient > 0 {
				avgPressure = extraction.MortalityGradient * 10
			}
			c := speciation.Candidate{
				Species:          sp,
				MortalityOutcome: outcome,
				Extraction:       extraction,
				AveragePressure:  avgPressure,
				Generations:      turn - sp.CreatedTurn + 1,
			}
			if o.Speciation.IsEligible(c, len(live)) {
				candidates = append(candidates, c)
			}
		}
		var err error
		branching, err = o.Speciation.Process(ctx, candidates, turn, summarizePressures(pressureModifiers), len(live))
		return map[string]any{"candidates": len(candidates), "branches": len(branching)}, err
	})
	for _, b := range branching {
		if b.Child != nil {
			report.NewSpecies = append(report.NewSpecies, b.Child.LineageCode)
			live = append(live, b.Child)
		}
	}

	// j. habitat_snapshot
	var migrations []simtypes.MigrationEvent
	stage("habitat_snapshot", true, func() (map[string]any, error) {
		inputs := make([]habitat.SnapshotInput, 0, len(live))
		for _, sp := range live {
			if sp.Status == simtypes.StatusExtinct {
				continue
			}
			prior := latestHabitats[sp.LineageCode]
			tilePop := redistributeByShare(sp, prior)
			if len(tilePop) == 0 {
				tilePop = make(map[int64]int64)
				for _, rec := range o.Habitat.AssignInitialHabitat(sp, tiles, turn) {
					tilePop[rec.TileID] = int64(rec.Suitability * float64(sp.Population))
				}
			}
			migrations = append(migrations, migrationEvents(sp.LineageCode, prior, tilePop)...)
			inputs = append(inputs, habitat.SnapshotInput{Species: sp, TilePop: tilePop})
		}
		records := o.Habitat.SnapshotHabitats(inputs, tiles, turn)
		if err := o.Environment.WriteHabitatsBulk(ctx, records); err != nil {
			return map[string]any{"records": len(records)}, err
		}
		return map[string]any{"records": len(records)}, nil
	})
	report.MigrationEvents = migrations

	// k. report_built
	var totalPop int64
	for _, sp := range live {
		totalPop += sp.Population
	}
	for _, sp := range live {
		outcome, ok := outcomes[sp.LineageCode]
		if !ok {
			continue
		}
		var share float64
		if totalPop > 0 {
			share = float64(sp.Population) / float64(totalPop)
		}
		report.SpeciesSnapshots = append(report.SpeciesSnapshots, simtypes.SpeciesSnapshot{
			LineageCode:        sp.LineageCode,
			LatinName:          sp.LatinName,
			CommonName:         sp.CommonName,
			Status:             string(sp.Status),
			EcologicalRole:     simtypes.EcologicalRole(sp.DietType, sp.TrophicLevel),
			Tier:               string(outcome.Tier),
			InitialPopulation:  outcome.InitialPopulation,
			Population:         sp.Population,
			PopulationShare:    share,
			Deaths:             outcome.Deaths,
			Survivors:          outcome.Survivors,
			DeathRate:          outcome.DeathRate,
			NicheOverlap:       outcome.NicheOverlap,
			TotalTiles:         outcome.TotalTiles,
			HealthyTiles:       outcome.HealthyTiles,
			WarningTiles:       outcome.WarningTiles,
			CriticalTiles:      outcome.CriticalTiles,
			BestTileRate:       outcome.BestTileRate,
			WorstTileRate:      outcome.WorstTileRate,
			HasRefuge:          outcome.HasRefuge,
			DistributionStatus: simtypes.DistributionStatus(outcome.TotalTiles, outcome.HealthyTiles, outcome.WarningTiles, outcome.CriticalTiles),
		})
	}

	branchingSummaries := make([]simtypes.BranchingEventSummary, 0, len(branching))
	for _, b := range branching {
		summary := simtypes.BranchingEventSummary{ParentCode: b.ParentCode, DegradedNaming: b.DegradedNaming, EventDescription: b.EventDescription}
		if b.Child != nil {
			summary.ChildCode = b.Child.LineageCode
		}
		branchingSummaries = append(branchingSummaries, summary)
	}

	report.TotalPopulation = totalPop
	report.Stages = stages
	report.DegradedMode = degraded
	report.DurationMS = time.Since(start).Milliseconds()
	report.PressuresSummary = summarizePressures(pressureModifiers)
	report.BranchingEvents = branchingSummaries
	report.MapChanges = mapResult.MapChanges
	report.MajorEvents = mapResult.MajorEvents
	report.SeaLevel = mapResult.SeaLevel
	report.GlobalAvgTemperature = mapResult.GlobalAvgTemperature
	report.TectonicStage = mapResult.TectonicStage

	if o.history != nil {
		o.history.Record(live)
		ecosystem := analytics.Summarize(live)
		report.BiodiversityIndex = ecosystem.BiodiversityIndex
		report.EcosystemHealth = ecosystem.EcosystemHealth
		report.TrophicDistribution = ecosystem.TrophicDistribution
		for i := range report.SpeciesSnapshots {
			report.SpeciesSnapshots[i].PopulationTrend = o.history.Trend(report.SpeciesSnapshots[i].LineageCode, 10)
		}
	}

	if err := o.Species.BulkUpsert(ctx, live); err != nil {
		return report, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to persist species", err)
	}
	if o.History != nil {
		_ = o.History.AppendTurnReport(ctx, report)
		for _, b := range branching {
			if b.Child != nil {
				_ = o.History.AppendLineageEvent(ctx, b.Child.LineageCode, "speciation", b)
			}
		}
	}

	o.emit(ctx, eventbus.Event{Type: "complete", Message: fmt.Sprintf("turn %d complete", turn)})
	return report, nil
}

func (o *Orchestrator) emit(ctx context.Context, evt eventbus.Event) {
	if o.Bus == nil {
		return
	}
	_ = o.Bus.Push(ctx, evt)
}

// recordGeneDiscoveries folds this round's reemergence events into each
// discovering species' genus gene-library audit log (§6 `genera.gene_library`,
// grounded on the original's GeneLibraryService.record_discovery /
// update_activation_count).
func (o *Orchestrator) recordGeneDiscoveries(ctx context.Context, events []simtypes.ReemergenceEvent, live []*simtypes.Species, turn int64) {
	if o.Genera == nil || len(events) == 0 {
		return
	}
	byCode := make(map[string]*simtypes.Species, len(live))
	for _, sp := range live {
		byCode[sp.LineageCode] = sp
	}
	genera := map[string]*simtypes.Genus{}
	for _, evt := range events {
		sp, ok := byCode[evt.LineageCode]
		if !ok || sp.GenusCode == "" {
			continue
		}
		g, ok := genera[sp.GenusCode]
		if !ok {
			var err error
			g, err = o.Genera.Get(ctx, sp.GenusCode)
			if err != nil {
				g = &simtypes.Genus{Code: sp.GenusCode, NameLatin: sp.GenusCode, CreatedTurn: turn}
			}
			genera[sp.GenusCode] = g
		}
		g.RecordDiscovery(evt.Name, evt.Kind, evt.LineageCode, turn)
	}
	for _, g := range genera {
		_ = o.Genera.Upsert(ctx, g)
	}
}

func pressureSpecs(specs []simtypes.PressureSpec) []pressure.Spec {
	out := make([]pressure.Spec, len(specs))
	for i, s := range specs {
		out[i] = pressure.Spec{Kind: s.Kind, Intensity: s.Intensity}
	}
	return out
}

func tierSpecies(live []*simtypes.Species) map[mortality.Tier][]*simtypes.Species {
	tiers := map[mortality.Tier][]*simtypes.Species{
		mortality.TierCritical:   {},
		mortality.TierFocus:      {},
		mortality.TierBackground: {},
	}
	for i, sp := range live {
		switch {
		case sp.IsWatched:
			tiers[mortality.TierCritical] = append(tiers[mortality.TierCritical], sp)
		case i < 20:
			tiers[mortality.TierFocus] = append(tiers[mortality.TierFocus], sp)
		default:
			tiers[mortality.TierBackground] = append(tiers[mortality.TierBackground], sp)
		}
	}
	return tiers
}

func dominantPressureKind(modifiers map[string]float64) string {
	var best string
	var bestVal float64
	for k, v := range modifiers {
		if v > bestVal {
			bestVal = v
			best = k
		}
	}
	return best
}

// redistributeByShare spreads a species' current total population across
// its previously-known tiles using the same suitability^1.5 share rule
// reproduction.Engine uses, since Engine.Apply only returns a new total
// and not a per-tile breakdown.
func redistributeByShare(sp *simtypes.Species, prior []simtypes.HabitatRecord) map[int64]int64 {
	out := make(map[int64]int64, len(prior))
	if len(prior) == 0 || sp.Population <= 0 {
		return out
	}
	total := 0.0
	for _, rec := range prior {
		if rec.Suitability >= 0.25 {
			total += pow15(rec.Suitability)
		}
	}
	if total < 0.01 {
		return out
	}
	for _, rec := range prior {
		if rec.Suitability < 0.25 {
			continue
		}
		share := pow15(rec.Suitability) / total
		out[rec.TileID] = int64(float64(sp.Population) * share)
	}
	return out
}

func pow15(x float64) float64 {
	return math.Pow(x, 1.5)
}

// migrationEvents compares a species' prior and current per-tile
// population split and reports tiles gained ("expanded") or lost
// ("abandoned") between turns (§4.1.3j habitat_snapshot).
func migrationEvents(lineageCode string, prior []simtypes.HabitatRecord, current map[int64]int64) []simtypes.MigrationEvent {
	priorTiles := make(map[int64]bool, len(prior))
	for _, rec := range prior {
		if rec.Population > 0 {
			priorTiles[rec.TileID] = true
		}
	}
	var events []simtypes.MigrationEvent
	for tileID, pop := range current {
		if pop > 0 && !priorTiles[tileID] {
			events = append(events, simtypes.MigrationEvent{LineageCode: lineageCode, TileID: tileID, Kind: "expanded"})
		}
	}
	for tileID := range priorTiles {
		if current[tileID] <= 0 {
			events = append(events, simtypes.MigrationEvent{LineageCode: lineageCode, TileID: tileID, Kind: "abandoned"})
		}
	}
	return events
}

func summarizePressures(modifiers map[string]float64) string {
	if len(modifiers) == 0 {
		return "no active pressures"
	}
	return fmt.Sprintf("%d active pressure modifiers", len(modifiers))
}
