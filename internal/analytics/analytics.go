// Package analytics implements the ecosystem-health and population-history
// rollups a TurnReport carries alongside the per-species snapshots (§3
// TurnReport "scalar environmental summaries"). Grounded on the original
// Python service pair analytics/ecosystem_metrics.py (Shannon-Wiener
// biodiversity index, 0-1 ecosystem health score, trophic-level
// distribution) and analytics/population_snapshot.py (bounded per-lineage
// population history, growth-trend calculation), ported into the turn
// pipeline's stage shape rather than a standalone service with module-level
// cache state.
package analytics

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"chronofauna/internal/simtypes"
)

// Snapshot is the per-turn ecosystem-wide rollup (§3 TurnReport).
type Snapshot struct {
	BiodiversityIndex  float64       `json:"biodiversity_index"`
	EcosystemHealth    float64       `json:"ecosystem_health"`
	TrophicDistribution map[int]int `json:"trophic_distribution"`
}

// Summarize computes the ecosystem-wide rollup over every living species
// for the round (original: EcosystemMetricsService.calculate_biodiversity_index
// / calculate_ecosystem_health / get_trophic_distribution).
func Summarize(live []*simtypes.Species) Snapshot {
	alive := make([]*simtypes.Species, 0, len(live))
	for _, sp := range live {
		if sp.Alive() {
			alive = append(alive, sp)
		}
	}

	return Snapshot{
		BiodiversityIndex:   biodiversityIndex(alive),
		EcosystemHealth:     ecosystemHealth(alive),
		TrophicDistribution: trophicDistribution(alive),
	}
}

// biodiversityIndex is the Shannon-Wiener index H = -sum(p*ln(p)) over
// each species' share of total population, via gonum/stat.Entropy (natural
// log, matching the original's math.log base).
func biodiversityIndex(alive []*simtypes.Species) float64 {
	if len(alive) == 0 {
		return 0
	}
	var total int64
	for _, sp := range alive {
		total += sp.Population
	}
	if total == 0 {
		return 0
	}
	shares := make([]float64, 0, len(alive))
	for _, sp := range alive {
		if sp.Population <= 0 {
			continue
		}
		shares = append(shares, float64(sp.Population)/float64(total))
	}
	return stat.Entropy(shares)
}

// ecosystemHealth is the original's additive 0-1 score: a 0.5 baseline
// adjusted by species-count tiers, trophic-diversity tiers, and total
// population tiers, clamped to [0,1].
func ecosystemHealth(alive []*simtypes.Species) float64 {
	score := 0.5

	switch n := len(alive); {
	case n >= 10:
		score += 0.2
	case n >= 5:
		score += 0.1
	default:
		score -= 0.1
	}

	levels := map[int]bool{}
	var totalPop int64
	for _, sp := range alive {
		levels[int(sp.TrophicLevel)] = true
		totalPop += sp.Population
	}
	switch len(levels) {
	case 0, 1, 2:
	case 3:
		score += 0.1
	default:
		score += 0.2
	}

	switch {
	case totalPop >= 100_000:
		score += 0.1
	case totalPop < 1_000:
		score -= 0.1
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func trophicDistribution(alive []*simtypes.Species) map[int]int {
	dist := make(map[int]int)
	for _, sp := range alive {
		dist[int(sp.TrophicLevel)]++
	}
	return dist
}

// HistoryCache is a bounded per-lineage population-history ring, mirroring
// the original's module-level _population_history_cache but owned by the
// orchestrator so its lifetime matches the running simulation rather than
// a process-global dict.
type HistoryCache struct {
	maxTurns int
	history  map[string][]int64
}

// NewHistoryCache returns a cache retaining at most maxTurns samples per
// lineage (the original hardcodes 100).
func NewHistoryCache(maxTurns int) *HistoryCache {
	if maxTurns <= 0 {
		maxTurns = 100
	}
	return &HistoryCache{maxTurns: maxTurns, history: map[string][]int64{}}
}

// Record appends this turn's population for every live species.
func (c *HistoryCache) Record(live []*simtypes.Species) {
	for _, sp := range live {
		h := append(c.history[sp.LineageCode], sp.Population)
		if len(h) > c.maxTurns {
			h = h[len(h)-c.maxTurns:]
		}
		c.history[sp.LineageCode] = h
	}
}

// History returns the retained population samples for a lineage, oldest
// first.
func (c *HistoryCache) History(lineageCode string) []int64 {
	return c.history[lineageCode]
}

// Trend is the original's get_population_trend: growth rate over the last
// window samples, (recent[-1]-recent[0])/max(recent[0],1).
func (c *HistoryCache) Trend(lineageCode string, window int) float64 {
	h := c.history[lineageCode]
	if len(h) < 2 {
		return 0
	}
	if window > len(h) {
		window = len(h)
	}
	recent := h[len(h)-window:]
	first := recent[0]
	if first < 1 {
		first = 1
	}
	return float64(recent[len(recent)-1]-recent[0]) / float64(first)
}

// Lineages returns every tracked lineage code, sorted, for deterministic
// iteration by callers building a report digest.
func (c *HistoryCache) Lineages() []string {
	out := make([]string, 0, len(c.history))
	for k := range c.history {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
