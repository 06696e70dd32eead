package api

import (
	"encoding/json"
	"net/http"

	"chronofauna/internal/apierr"
	"chronofauna/internal/saves"
	"chronofauna/internal/validation"
)

// SavesHandler implements /saves/create, /saves/save, /saves/load (§6).
type SavesHandler struct {
	manager      *saves.Manager
	validator    *validation.Validator
	catastrophic *CatastrophicGate
}

func NewSavesHandler(manager *saves.Manager, v *validation.Validator, gate *CatastrophicGate) *SavesHandler {
	return &SavesHandler{manager: manager, validator: v, catastrophic: gate}
}

type createSaveRequest struct {
	SaveName       string   `json:"save_name"`
	Scenario       string   `json:"scenario"`
	SpeciesPrompts []string `json:"species_prompts,omitempty"`
	MapSeed        int64    `json:"map_seed,omitempty"`
}

func (h *SavesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("body", "malformed JSON: %v", err))
		return
	}
	if err := h.validator.ValidateRequired(req.SaveName, "save_name"); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("save_name", "%v", err))
		return
	}

	meta, err := h.manager.Create(r.Context(), req.SaveName, req.Scenario, req.SpeciesPrompts, req.MapSeed)
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrConflict, err.Error(), err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meta)
}

type saveSlotRequest struct {
	SaveName string `json:"save_name"`
}

func (h *SavesHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("body", "malformed JSON: %v", err))
		return
	}
	if err := h.validator.ValidateRequired(req.SaveName, "save_name"); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("save_name", "%v", err))
		return
	}

	dir, turnIndex, err := h.manager.Save(r.Context(), req.SaveName)
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, err.Error(), err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"save_dir":   dir,
		"turn_index": turnIndex,
	})
}

func (h *SavesHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req saveSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("body", "malformed JSON: %v", err))
		return
	}
	if err := h.validator.ValidateRequired(req.SaveName, "save_name"); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("save_name", "%v", err))
		return
	}

	turnIndex, err := h.manager.Load(r.Context(), req.SaveName)
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrSaveSlotNotFound, err.Error(), err))
		return
	}
	if h.catastrophic != nil {
		h.catastrophic.Clear()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success":    true,
		"turn_index": turnIndex,
	})
}
