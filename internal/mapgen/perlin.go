// Package mapgen provides a default, in-process implementation of
// orchestrator.MapCollaborator for deployments with no external
// tectonic/climate service configured. Grounded on the teacher's
// worldgen/geography/noise.go PerlinGenerator, generalized from static
// heightmap sampling to per-turn incremental map deltas.
package mapgen

import (
	"context"
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"

	"chronofauna/internal/orchestrator"
)

// alpha/beta/n match the teacher's NewPerlinGenerator defaults: weight
// when octaves sum, harmonic lacunarity, and octave count.
const (
	perlinAlpha = 2.0
	perlinBeta  = 2.0
	perlinOctaves = 3
)

// PerlinProvider is a seed-based MapCollaborator that derives tile
// elevation/resource drift from Perlin noise sampled at the current
// turn index, with no persistent terrain model of its own.
type PerlinProvider struct {
	elevation *perlin.Perlin
	climate   *perlin.Perlin
	seaLevel  float64
	baseTemp  float64
}

// NewPerlinProvider builds a provider from a single seed; the climate
// octaves use seed+1 so elevation and temperature drift independently.
func NewPerlinProvider(seed int64) *PerlinProvider {
	return &PerlinProvider{
		elevation: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed),
		climate:   perlin.NewPerlin(perlinAlpha, perlinBeta, perlinOctaves, seed+1),
		seaLevel:  0.0,
		baseTemp:  14.0,
	}
}

// Advance implements orchestrator.MapCollaborator. It samples the
// elevation field at (0.05·turn, 0) and the climate field at
// (0, 0.05·turn) to produce a small, bounded
// per-turn drift rather than a full terrain regeneration.
func (p *PerlinProvider) Advance(ctx context.Context, turn int64) (orchestrator.MapAdvanceResult, error) {
	t := float64(turn)
	elevationDrift := p.elevation.Noise2D(t*0.05, 0)
	climateDrift := p.climate.Noise2D(0, t*0.05)

	p.seaLevel += elevationDrift * 0.01
	temp := p.baseTemp + climateDrift*0.5

	result := orchestrator.MapAdvanceResult{
		SeaLevel:             p.seaLevel,
		GlobalAvgTemperature: temp,
		TectonicStage:        tectonicStage(turn),
	}
	if math.Abs(elevationDrift) > 0.6 {
		result.MapChanges = append(result.MapChanges, fmt.Sprintf("tile elevation shift at turn %d (drift=%.3f)", turn, elevationDrift))
	}
	if math.Abs(climateDrift) > 0.75 {
		result.MajorEvents = append(result.MajorEvents, fmt.Sprintf("climate anomaly at turn %d (drift=%.3f)", turn, climateDrift))
	}
	return result, nil
}

func tectonicStage(turn int64) string {
	switch {
	case turn%500 == 0:
		return "orogeny"
	case turn%100 == 0:
		return "rifting"
	default:
		return "stable"
	}
}
