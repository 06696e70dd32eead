package api

import (
	"encoding/json"
	stdErrors "errors"
	"net/http"

	"chronofauna/internal/apierr"
	"chronofauna/internal/orchestrator"
	"chronofauna/internal/validation"
)

// isStoreCorrupted reports whether err (or a wrapped cause) is the
// store_corrupted kind, which trips the catastrophic gate (§7).
func isStoreCorrupted(err error) bool {
	var appErr *apierr.AppError
	if stdErrors.As(err, &appErr) {
		return appErr.Code == apierr.ErrStoreCorrupted.Code
	}
	return false
}

// TurnsHandler implements POST /turns/run (§6).
type TurnsHandler struct {
	orchestrator *orchestrator.Orchestrator
	validator    *validation.Validator
	catastrophic *CatastrophicGate
}

func NewTurnsHandler(o *orchestrator.Orchestrator, v *validation.Validator, gate *CatastrophicGate) *TurnsHandler {
	return &TurnsHandler{orchestrator: o, validator: v, catastrophic: gate}
}

// RunTurn handles POST /turns/run: {rounds, pressures} -> [TurnReport].
func (h *TurnsHandler) RunTurn(w http.ResponseWriter, r *http.Request) {
	if h.catastrophic != nil && h.catastrophic.Tripped() {
		apierr.RespondWithError(w, apierr.ErrCatastrophic)
		return
	}

	var cmd orchestrator.TurnCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("body", "malformed JSON: %v", err))
		return
	}
	if err := h.validator.ValidateIntRange(cmd.Rounds, "rounds", 1, 32); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("rounds", "%v", err))
		return
	}
	for i, p := range cmd.Pressures {
		if err := h.validator.ValidateFloatRange(p.Intensity, "pressures[].intensity", 0, 10); err != nil {
			apierr.RespondWithError(w, apierr.NewInvalidInput("pressures", "entry %d: %v", i, err))
			return
		}
	}

	reports, err := h.orchestrator.RunTurn(r.Context(), cmd)
	if err != nil {
		if h.catastrophic != nil && isStoreCorrupted(err) {
			h.catastrophic.Trip()
		}
		apierr.RespondWithError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}
