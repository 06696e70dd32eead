package api

import (
	"context"
	"encoding/json"
	"net/http"

	"chronofauna/internal/adminauth"
	"chronofauna/internal/apierr"
)

// Truncator is the single method of the species, environment and history
// stores that the catastrophic-recovery path needs.
type Truncator interface {
	Truncate(ctx context.Context) error
}

// AdminHandler implements POST /admin/drop-database (§7 "the process
// refuses to start the pipeline ... until /admin/drop-database or a
// successful /saves/load is performed"). Routes are mounted behind
// adminauth.TokenManager.Middleware.
type AdminHandler struct {
	species          Truncator
	environment      Truncator
	history          Truncator
	confirmationHash string
	catastrophic     *CatastrophicGate
}

func NewAdminHandler(species, environment, history Truncator, confirmationHash string, gate *CatastrophicGate) *AdminHandler {
	return &AdminHandler{species: species, environment: environment, history: history, confirmationHash: confirmationHash, catastrophic: gate}
}

type dropDatabaseRequest struct {
	Confirm           bool   `json:"confirm"`
	ConfirmationToken string `json:"confirmation_token"`
}

// DropDatabase truncates every store, clearing catastrophic corruption and
// re-opening the pipeline for fresh play (§7). Requires both a valid admin
// JWT (checked by middleware) and an explicit confirm=true; when a
// confirmation hash is configured, the operator's out-of-band
// confirmation token must also match it.
func (h *AdminHandler) DropDatabase(w http.ResponseWriter, r *http.Request) {
	var req dropDatabaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.RespondWithError(w, apierr.NewInvalidInput("body", "malformed JSON: %v", err))
		return
	}
	if !req.Confirm {
		apierr.RespondWithError(w, apierr.ErrConfirmationRequired)
		return
	}
	if h.confirmationHash != "" {
		if err := adminauth.CheckConfirmationToken(h.confirmationHash, req.ConfirmationToken); err != nil {
			apierr.RespondWithError(w, apierr.ErrAdminUnauthorized)
			return
		}
	}

	ctx := r.Context()
	if err := h.species.Truncate(ctx); err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to truncate species", err))
		return
	}
	if err := h.environment.Truncate(ctx); err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to truncate environment", err))
		return
	}
	if err := h.history.Truncate(ctx); err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to truncate history", err))
		return
	}
	if h.catastrophic != nil {
		h.catastrophic.Clear()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"success": true})
}
