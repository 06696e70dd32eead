package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"chronofauna/internal/apierr"
	"chronofauna/internal/store"
)

// HistoryHandler implements GET /history?limit=N (§6).
type HistoryHandler struct {
	history store.HistoryStore
}

func NewHistoryHandler(history store.HistoryStore) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			apierr.RespondWithError(w, apierr.NewInvalidInput("limit", "limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	reports, err := h.history.ListTurnReports(r.Context(), limit)
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to list turn history", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reports)
}
