package api

import (
	"encoding/json"
	"net/http"

	"chronofauna/internal/apierr"
	"chronofauna/internal/store"
)

// GameHandler implements GET /game/state (§6).
type GameHandler struct {
	species     store.SpeciesStore
	environment store.EnvironmentStore
	sessionID   string
}

func NewGameHandler(species store.SpeciesStore, environment store.EnvironmentStore, sessionID string) *GameHandler {
	return &GameHandler{species: species, environment: environment, sessionID: sessionID}
}

func (h *GameHandler) State(w http.ResponseWriter, r *http.Request) {
	mapState, err := h.environment.GetMapState(r.Context())
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to load map state", err))
		return
	}
	live, err := h.species.ListAlive(r.Context())
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to list species", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"turn_index":         mapState.TurnIndex,
		"species_count":      len(live),
		"sea_level":          mapState.SeaLevel,
		"global_temperature": mapState.GlobalAvgTemperature,
		"backend_session_id": h.sessionID,
	})
}
