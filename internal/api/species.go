package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"chronofauna/internal/apierr"
	"chronofauna/internal/simtypes"
	"chronofauna/internal/store"
	"chronofauna/internal/validation"
)

// SpeciesHandler implements /species/list, /species/{code}, /species/edit
// and /watchlist (§6). Watch status is persisted on Species.IsWatched
// rather than tracked separately, so the mortality engine's tiering
// (§4.1.3e) and this handler always agree.
type SpeciesHandler struct {
	species   store.SpeciesStore
	validator *validation.Validator
}

func NewSpeciesHandler(species store.SpeciesStore, v *validation.Validator) *SpeciesHandler {
	return &SpeciesHandler{species: species, validator: v}
}

type speciesListEntry struct {
	LineageCode     string  `json:"lineage_code"`
	LatinName       string  `json:"latin_name"`
	CommonName      string  `json:"common_name"`
	Population      int64   `json:"population"`
	Status          string  `json:"status"`
	EcologicalRole  string  `json:"ecological_role"`
}

// List handles GET /species/list.
func (h *SpeciesHandler) List(w http.ResponseWriter, r *http.Request) {
	live, err := h.species.ListAlive(r.Context())
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to list species", err))
		return
	}
	out := make([]speciesListEntry, 0, len(live))
	for _, sp := range live {
		out = append(out, speciesListEntry{
			LineageCode:    sp.LineageCode,
			LatinName:      sp.LatinName,
			CommonName:     sp.CommonName,
			Population:     sp.Population,
			Status:         string(sp.Status),
			EcologicalRole: simtypes.EcologicalRole(sp.DietType, sp.TrophicLevel),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"species": out})
}

// SpeciesDetail is the full single-species view (§6 GET /species/{code}).
type SpeciesDetail struct {
	*simtypes.Species
	EcologicalRole string `json:"ecological_role"`
}

// Get handles GET /species/{code}.
func (h *SpeciesHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	sp, err := h.species.Get(r.Context(), code)
	if err != nil {
		apierr.RespondWithError(w, apierr.NewNotFound("species %q not found", code))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SpeciesDetail{Species: sp, EcologicalRole: simtypes.EcologicalRole(sp.DietType, sp.TrophicLevel)})
}

// SpeciesEditRequest is the operator-editable subset of a Species (§6
// POST /species/edit): narrative fields and the watch/protect/suppress
// flags, never population or trait arithmetic.
type SpeciesEditRequest struct {
	LineageCode  string  `json:"lineage_code"`
	CommonName   *string `json:"common_name,omitempty"`
	Description  *string `json:"description,omitempty"`
	IsWatched    *bool   `json:"is_watched,omitempty"`
	IsProtected  *bool   `json:"is_protected,omitempty"`
	IsSuppressed *bool   `json:"is_suppressed,omitempty"`
}

// Edit handles POST /species/edit.
func (h *SpeciesHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req SpeciesEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("body", "malformed JSON: %v", err))
		return
	}
	if err := h.validator.ValidateRequired(req.LineageCode, "lineage_code"); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("lineage_code", "%v", err))
		return
	}

	sp, err := h.species.Get(r.Context(), req.LineageCode)
	if err != nil {
		apierr.RespondWithError(w, apierr.NewNotFound("species %q not found", req.LineageCode))
		return
	}

	if req.CommonName != nil {
		sp.CommonName = h.validator.SanitizeString(*req.CommonName)
	}
	if req.Description != nil {
		sp.Description = h.validator.SanitizeString(*req.Description)
	}
	if req.IsWatched != nil {
		sp.IsWatched = *req.IsWatched
	}
	if req.IsProtected != nil {
		sp.IsProtected = *req.IsProtected
	}
	if req.IsSuppressed != nil {
		sp.IsSuppressed = *req.IsSuppressed
	}

	if err := h.species.BulkUpsert(r.Context(), []*simtypes.Species{sp}); err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to save species edit", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SpeciesDetail{Species: sp, EcologicalRole: simtypes.EcologicalRole(sp.DietType, sp.TrophicLevel)})
}

// Watchlist handles POST /watchlist: marks the given lineage codes as
// watched, gating them into the mortality engine's critical tier
// (§4.1.3e).
func (h *SpeciesHandler) Watchlist(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LineageCodes []string `json:"lineage_codes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("body", "malformed JSON: %v", err))
		return
	}

	var watching []string
	for _, code := range req.LineageCodes {
		sp, err := h.species.Get(r.Context(), code)
		if err != nil {
			continue
		}
		sp.IsWatched = true
		if err := h.species.BulkUpsert(r.Context(), []*simtypes.Species{sp}); err != nil {
			continue
		}
		watching = append(watching, code)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"watching": watching})
}
