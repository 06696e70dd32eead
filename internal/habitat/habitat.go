// Package habitat implements HabitatManager/DispersalEngine (§2 component
// M, §4.7): initial habitat assignment, per-turn suitability snapshots, and
// neighbor-diffusion dispersal. Grounded on the teacher's
// ecosystem/geography/regions.go isolation clustering, adapted here for
// suitability scoring rather than MUD region naming.
package habitat

import (
	"sort"

	"chronofauna/internal/hexgrid"
	"chronofauna/internal/simtypes"
)

// Suitability implements the canonical scoring function of §4.7.
func Suitability(sp *simtypes.Species, tile simtypes.MapTile) float64 {
	if !simtypes.HabitatCompatible(sp.HabitatType, tile.Biome) {
		return 0
	}

	var tempScore float64
	switch {
	case tile.Temperature > 20:
		tempScore = sp.AbstractTraits["heat_tolerance"] / 10
	case tile.Temperature < 5:
		tempScore = sp.AbstractTraits["cold_tolerance"] / 10
	default:
		tempScore = 0.8
	}

	humScore := 1 - abs(tile.Humidity-(1-sp.AbstractTraits["drought_tolerance"]/10))
	resourceScore := minFloat(1, tile.Resources/500)

	s := 0.4*tempScore + 0.3*humScore + 0.3*resourceScore
	if s < 0 {
		return 0
	}
	return s
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// Manager implements HabitatManager / DispersalEngine.
type Manager struct {
	initialized bool
	mapSeed     int64
}

func NewManager() *Manager { return &Manager{} }

// EnsureInitialized is idempotent: it generates/loads the tile grid once.
// The concrete generation is delegated to the tectonics provider
// (out-of-scope collaborator per §1); this marks the manager ready.
func (m *Manager) EnsureInitialized(mapSeed int64) {
	if m.initialized {
		return
	}
	m.mapSeed = mapSeed
	m.initialized = true
}

// AssignInitialHabitat scores every compatible tile and keeps the top-10
// after normalization (§4.7).
func (m *Manager) AssignInitialHabitat(sp *simtypes.Species, tiles []simtypes.MapTile, turn int64) []simtypes.HabitatRecord {
	type scored struct {
		tile  simtypes.MapTile
		score float64
	}
	var candidates []scored
	for _, t := range tiles {
		s := Suitability(sp, t)
		if s > 0 {
			candidates = append(candidates, scored{t, s})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if len(candidates) > 10 {
		candidates = candidates[:10]
	}

	var total float64
	for _, c := range candidates {
		total += c.score
	}

	records := make([]simtypes.HabitatRecord, 0, len(candidates))
	for _, c := range candidates {
		norm := c.score
		if total > 0 {
			norm = c.score / total
		}
		records = append(records, simtypes.HabitatRecord{
			TileID: c.tile.ID, SpeciesCode: sp.LineageCode, Suitability: norm, TurnIndex: turn,
		})
	}
	return records
}

// SnapshotInput is a per-species set of tile populations from the
// reproduction stage, used to recompute suitability columns.
type SnapshotInput struct {
	Species     *simtypes.Species
	TilePop     map[int64]int64
}

// SnapshotHabitats recomputes per-species suitability columns. When
// force is false, only species whose population changed materially since
// the last snapshot are recomputed (§4.7 incremental mode); this function
// always does the full recompute and leaves incremental change-detection
// to the caller (the store layer tracks last-written population).
func (m *Manager) SnapshotHabitats(inputs []SnapshotInput, tiles []simtypes.MapTile, turn int64) []simtypes.HabitatRecord {
	var records []simtypes.HabitatRecord
	for _, in := range inputs {
		for _, t := range tiles {
			pop, ok := in.TilePop[t.ID]
			if !ok || pop <= 0 {
				continue
			}
			records = append(records, simtypes.HabitatRecord{
				TileID: t.ID, SpeciesCode: in.Species.LineageCode,
				Population: pop, Suitability: Suitability(in.Species, t), TurnIndex: turn,
			})
		}
	}
	return records
}

// Disperse applies the neighbor-average smoothing step of §4.7: each
// tile's population moves a fraction β of the way toward the neighbor
// mean, dampened by habitat-type compatibility across the boundary, then
// clamped to [0, carryingCapacity].
func Disperse(sp *simtypes.Species, tilePop map[int64]int64, tiles []simtypes.MapTile, carryingCapacity map[int64]float64) map[int64]int64 {
	coords := make(map[int64]hexgrid.Coord, len(tiles))
	biomeOf := make(map[int64]simtypes.BiomeType, len(tiles))
	for _, t := range tiles {
		coords[t.ID] = t.Coord
		biomeOf[t.ID] = t.Biome
	}
	adjacency := hexgrid.AdjacencyMap(coords)

	mobility := sp.AbstractTraits["mobility"]
	beta := mobility / 10

	out := make(map[int64]int64, len(tilePop))
	for tid, pop := range tilePop {
		neighbors := adjacency[tid]
		if len(neighbors) == 0 {
			out[tid] = pop
			continue
		}
		var neighborSum float64
		var compatibleCount int
		for _, n := range neighbors {
			if simtypes.HabitatCompatible(sp.HabitatType, biomeOf[n]) {
				neighborSum += float64(tilePop[n])
				compatibleCount++
			}
		}
		if compatibleCount == 0 {
			out[tid] = pop
			continue
		}
		mean := neighborSum / float64(compatibleCount)
		dampening := float64(compatibleCount) / float64(len(neighbors))
		newPop := float64(pop) + beta*dampening*(mean-float64(pop))
		if newPop < 0 {
			newPop = 0
		}
		if cap, ok := carryingCapacity[tid]; ok && newPop > cap {
			newPop = cap
		}
		out[tid] = int64(newPop)
	}
	return out
}
