package simtypes

// GeneDiscovery is one audit-log entry in a Genus's gene_library: the
// first species to express a trait or organ within the genus, and how
// many times it has since been observed reactivating. Populated from
// GeneActivationService results rather than driving inheritance itself —
// the radius-based GeneDiversityService already owns reachability and
// inheritance (§4.5, §4.6).
type GeneDiscovery struct {
	Kind            string `json:"kind"` // trait | organ | harmful_trait | linked_trait | hgt
	DiscoveredBy    string `json:"discovered_by"`
	DiscoveredTurn  int64  `json:"discovered_turn"`
	ActivationCount int    `json:"activation_count"`
}

// Genus groups sibling species under a shared taxonomic root (§6
// `genera` table: code, name_latin, name_common, genetic_distances,
// gene_library, created_turn, updated_turn).
type Genus struct {
	Code       string             `json:"code"`
	NameLatin  string             `json:"name_latin"`
	NameCommon string             `json:"name_common"`

	// GeneticDistances is the pairwise embedding distance between member
	// lineage codes, keyed "codeA|codeB" with codeA < codeB.
	GeneticDistances map[string]float64 `json:"genetic_distances,omitempty"`

	// GeneLibrary is the discovery audit log, keyed by trait/organ name.
	GeneLibrary map[string]GeneDiscovery `json:"gene_library,omitempty"`

	CreatedTurn int64 `json:"created_turn"`
	UpdatedTurn int64 `json:"updated_turn"`
}

// RecordDiscovery adds or bumps a gene-library entry (original:
// GeneLibraryService.record_discovery / update_activation_count).
func (g *Genus) RecordDiscovery(name, kind, lineageCode string, turn int64) {
	if g.GeneLibrary == nil {
		g.GeneLibrary = map[string]GeneDiscovery{}
	}
	entry, ok := g.GeneLibrary[name]
	if !ok {
		g.GeneLibrary[name] = GeneDiscovery{Kind: kind, DiscoveredBy: lineageCode, DiscoveredTurn: turn, ActivationCount: 1}
		g.UpdatedTurn = turn
		return
	}
	entry.ActivationCount++
	g.GeneLibrary[name] = entry
	g.UpdatedTurn = turn
}

// distanceKey orders the pair so GeneticDistances lookups are
// direction-independent.
func distanceKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// RecordDistance stores the pairwise genetic distance between two member
// lineages (original: populated alongside matrix_cache's embedding
// similarity matrix; kept here as the genus's own persisted record rather
// than a recomputed cache).
func (g *Genus) RecordDistance(a, b string, distance float64, turn int64) {
	if g.GeneticDistances == nil {
		g.GeneticDistances = map[string]float64{}
	}
	g.GeneticDistances[distanceKey(a, b)] = distance
	g.UpdatedTurn = turn
}
