package api

import (
	"context"
	"encoding/json"
	"net/http"

	"chronofauna/internal/apierr"
	"chronofauna/internal/simtypes"
	"chronofauna/internal/store"
)

// AllSpeciesLister is the superset of store.SpeciesStore the lineage view
// needs: every lineage, alive or extinct, so the phylogenetic tree is
// complete rather than pruned to the living frontier.
type AllSpeciesLister interface {
	store.SpeciesStore
	ListAll(ctx context.Context) ([]*simtypes.Species, error)
}

// LineageHandler implements GET /lineage (§6): the full phylogenetic tree
// reconstructed from each species' parent_code.
type LineageHandler struct {
	species AllSpeciesLister
}

func NewLineageHandler(species AllSpeciesLister) *LineageHandler {
	return &LineageHandler{species: species}
}

// LineageNode is one node of the `{nodes: [LineageNode]}` response.
type LineageNode struct {
	LineageCode string `json:"lineage_code"`
	LatinName   string `json:"latin_name"`
	CommonName  string `json:"common_name"`
	ParentCode  string `json:"parent_code,omitempty"`
	Status      string `json:"status"`
	CreatedTurn int64  `json:"created_turn"`
	Population  int64  `json:"population"`
}

func (h *LineageHandler) Get(w http.ResponseWriter, r *http.Request) {
	all, err := h.species.ListAll(r.Context())
	if err != nil {
		apierr.RespondWithError(w, apierr.Wrap(apierr.ErrStoreUnavailable, "failed to list species", err))
		return
	}

	nodes := make([]LineageNode, 0, len(all))
	for _, sp := range all {
		nodes = append(nodes, LineageNode{
			LineageCode: sp.LineageCode,
			LatinName:   sp.LatinName,
			CommonName:  sp.CommonName,
			ParentCode:  sp.ParentCode,
			Status:      string(sp.Status),
			CreatedTurn: sp.CreatedTurn,
			Population:  sp.Population,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
}
