package simtypes

import "chronofauna/internal/hexgrid"

// BiomeType is the tile biome classification used for habitat gating.
type BiomeType string

const (
	BiomeOcean       BiomeType = "ocean"
	BiomeDeepSea     BiomeType = "deep_sea"
	BiomeCoast       BiomeType = "coast"
	BiomeFreshwater  BiomeType = "freshwater"
	BiomeGrassland   BiomeType = "grassland"
	BiomeForest      BiomeType = "forest"
	BiomeDesert      BiomeType = "desert"
	BiomeTundra      BiomeType = "tundra"
	BiomeMountain    BiomeType = "mountain"
	BiomeWetland     BiomeType = "wetland"
	BiomeHydrothermal BiomeType = "hydrothermal"
)

// MapTile is a single hex cell of the world grid (§3 Data Model).
type MapTile struct {
	ID      int64
	Coord   hexgrid.Coord // axial (q, r)
	X, Y    int           // legacy Cartesian coordinates, carried for compatibility
	Biome   BiomeType
	Elevation   float64
	Temperature float64
	Humidity    float64
	Salinity    float64
	Resources   float64
	PlateID     int64
	IsLake      bool
}

// HabitatCompatible reports whether a habitat type can ever occupy this
// tile's biome — the binary gate described in §4.7 before suitability
// scoring runs.
func HabitatCompatible(h HabitatType, b BiomeType) bool {
	switch h {
	case HabitatMarine, HabitatDeepSea:
		return b == BiomeOcean || b == BiomeDeepSea || b == BiomeCoast
	case HabitatFreshwater:
		return b == BiomeFreshwater || b == BiomeWetland
	case HabitatCoastal:
		return b == BiomeCoast || b == BiomeOcean || b == BiomeWetland
	case HabitatHydrothermal:
		return b == BiomeHydrothermal || b == BiomeDeepSea
	case HabitatAerial:
		return b != BiomeDeepSea && b != BiomeOcean
	case HabitatAmphibious:
		return b == BiomeWetland || b == BiomeFreshwater || b == BiomeCoast || b == BiomeGrassland || b == BiomeForest
	case HabitatTerrestrial:
		return b != BiomeOcean && b != BiomeDeepSea && b != BiomeHydrothermal
	default:
		return false
	}
}

// HabitatRecord is a per-turn (tile, species) population/suitability pair
// (§3 Data Model). Habitat records are append-only; the latest-turn view
// per species is the canonical distribution.
type HabitatRecord struct {
	TileID      int64
	SpeciesCode string
	Population  int64
	Suitability float64
	TurnIndex   int64
}

// MapState is the singleton per-world environmental summary.
type MapState struct {
	TurnIndex           int64
	StageName           string
	StageProgress       float64
	StageDuration       float64
	SeaLevel            float64
	GlobalAvgTemperature float64
	MapSeed             int64
}

// LatestPerSpecies reduces a batch of habitat records (possibly spanning
// several turns) to the canonical latest-turn distribution per species,
// as required by the HabitatRecord invariant.
func LatestPerSpecies(records []HabitatRecord) map[string][]HabitatRecord {
	latestTurn := make(map[string]int64)
	for _, r := range records {
		if t, ok := latestTurn[r.SpeciesCode]; !ok || r.TurnIndex > t {
			latestTurn[r.SpeciesCode] = r.TurnIndex
		}
	}
	out := make(map[string][]HabitatRecord)
	for _, r := range records {
		if r.TurnIndex == latestTurn[r.SpeciesCode] {
			out[r.SpeciesCode] = append(out[r.SpeciesCode], r)
		}
	}
	return out
}
