// Package extinction implements the extinction check of §4.1.3h
// (extinctions_checked): a species falls below a hard population floor or
// suffers a near-total die-off in a single round. Grounded on the
// original's ExtinctionChecker, which applies the same two numeric
// thresholds (EXTINCTION_POPULATION_THRESHOLD=10,
// EXTINCTION_RATE_THRESHOLD=0.95) and records a human-readable reason
// alongside the extinction turn.
package extinction

import (
	"fmt"

	"chronofauna/internal/mortality"
	"chronofauna/internal/simtypes"
)

const (
	PopulationThreshold = 10
	RateThreshold       = 0.95
)

// Check marks sp extinct in place if it has crossed either threshold this
// round, returning true when it did. outcome may be nil (species absent
// from this round's mortality batch).
func Check(sp *simtypes.Species, outcome *mortality.Outcome, turn int64) bool {
	var reason string
	switch {
	case sp.Population <= PopulationThreshold:
		reason = fmt.Sprintf("population collapsed to %d", sp.Population)
	case outcome != nil && outcome.DeathRate >= RateThreshold:
		reason = fmt.Sprintf("death rate reached %.0f%%", outcome.DeathRate*100)
	default:
		return false
	}

	sp.Status = simtypes.StatusExtinct
	sp.ExtinctionCause = reason
	t := turn
	sp.ExtinctionTurn = &t
	return true
}
