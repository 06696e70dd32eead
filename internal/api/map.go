package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"chronofauna/internal/apierr"
	"chronofauna/internal/simtypes"
	"chronofauna/internal/store"
)

// MapHandler implements GET /map (§6).
type MapHandler struct {
	environment store.EnvironmentStore
}

func NewMapHandler(environment store.EnvironmentStore) *MapHandler {
	return &MapHandler{environment: environment}
}

// TileView is one tile row of a MapOverview, with the population overlay
// requested by view_mode/species_code folded in.
type TileView struct {
	TileID      int64   `json:"tile_id"`
	Q           int     `json:"q"`
	R           int     `json:"r"`
	Biome       string  `json:"biome"`
	Elevation   float64 `json:"elevation"`
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Resources   float64 `json:"resources"`
	Population  int64   `json:"population,omitempty"`
}

// MapOverview is the GET /map response shape (§6).
type MapOverview struct {
	TurnIndex            int64      `json:"turn_index"`
	SeaLevel             float64    `json:"sea_level"`
	GlobalAvgTemperature float64    `json:"global_avg_temperature"`
	ViewMode             string     `json:"view_mode"`
	Tiles                []TileView `json:"tiles"`
}

func (h *MapHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	viewMode := q.Get("view_mode")
	if viewMode == "" {
		viewMode = "biome"
	}
	speciesCode := q.Get("species_code")

	limitTiles := 0
	if raw := q.Get("limit_tiles"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			apierr.RespondWithError(w, apierr.NewInvalidInput("limit_tiles", "limit_tiles must be a non-negative integer"))
			return
		}
		limitTiles = n
	}

	mapState, err := h.environment.GetMapState(r.Context())
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to load map state", err))
		return
	}
	tiles, err := h.environment.ListTiles(r.Context())
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to list tiles", err))
		return
	}

	var populationByTile map[int64]int64
	if viewMode == "population" {
		habitats, err := h.environment.LatestHabitats(r.Context(), mapState.TurnIndex)
		if err != nil {
			apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to load habitats", err))
			return
		}
		populationByTile = aggregatePopulation(habitats, speciesCode)
	}

	if limitTiles > 0 && limitTiles < len(tiles) {
		tiles = tiles[:limitTiles]
	}

	out := make([]TileView, 0, len(tiles))
	for _, t := range tiles {
		view := TileView{
			TileID:      t.ID,
			Q:           t.Coord.Q,
			R:           t.Coord.R,
			Biome:       string(t.Biome),
			Elevation:   t.Elevation,
			Temperature: t.Temperature,
			Humidity:    t.Humidity,
			Resources:   t.Resources,
		}
		if populationByTile != nil {
			view.Population = populationByTile[t.ID]
		}
		out = append(out, view)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MapOverview{
		TurnIndex:            mapState.TurnIndex,
		SeaLevel:             mapState.SeaLevel,
		GlobalAvgTemperature: mapState.GlobalAvgTemperature,
		ViewMode:             viewMode,
		Tiles:                out,
	})
}

func aggregatePopulation(records []simtypes.HabitatRecord, speciesCode string) map[int64]int64 {
	out := make(map[int64]int64)
	for _, rec := range records {
		if speciesCode != "" && rec.SpeciesCode != speciesCode {
			continue
		}
		out[rec.TileID] += rec.Population
	}
	return out
}
