// Package saves implements the save-file layout of §6: a directory
// saves/<name>/ holding meta.json, one JSON blob per store, and an
// optional binary embedding-vector index with a {dim, count} header.
// A save bulk-exports the tables listed on Manager.Save; a load restores
// the subset listed on Manager.Load. Grounded on the teacher's eventstore append-only
// envelope for the shape of what gets serialized, generalized here to a
// directory-of-JSON-blobs layout since the spec names files, not a
// database dump format.
package saves

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"chronofauna/internal/simtypes"
	"chronofauna/internal/store"
)

// Meta is saves/<name>/meta.json.
type Meta struct {
	SaveName       string    `json:"save_name"`
	Scenario       string    `json:"scenario"`
	SpeciesPrompts []string  `json:"species_prompts,omitempty"`
	MapSeed        int64     `json:"map_seed"`
	TurnIndex      int64     `json:"turn_index"`
	CreatedAt      time.Time `json:"created_at"`
}

// AllSpeciesStore is the superset of store.SpeciesStore a save needs:
// exporting every species (not only the alive ones ListAlive returns)
// and truncating on load.
type AllSpeciesStore interface {
	store.SpeciesStore
	ListAll(ctx context.Context) ([]*simtypes.Species, error)
	Truncate(ctx context.Context) error
}

// Manager implements /saves/create, /saves/save, /saves/load (§6).
type Manager struct {
	Root        string
	Species     AllSpeciesStore
	Environment store.EnvironmentStore
	History     store.HistoryStore
}

func NewManager(root string, species AllSpeciesStore, env store.EnvironmentStore, history store.HistoryStore) *Manager {
	return &Manager{Root: root, Species: species, Environment: env, History: history}
}

func (m *Manager) dir(name string) string {
	return filepath.Join(m.Root, name)
}

// Create initializes a new save slot's directory and meta.json, without
// yet exporting store contents (§6 POST /saves/create).
func (m *Manager) Create(ctx context.Context, name, scenario string, speciesPrompts []string, mapSeed int64) (Meta, error) {
	dir := m.dir(name)
	if _, err := os.Stat(dir); err == nil {
		return Meta{}, fmt.Errorf("saves: slot %q already exists", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Meta{}, fmt.Errorf("saves: create slot dir: %w", err)
	}
	meta := Meta{
		SaveName:       name,
		Scenario:       scenario,
		SpeciesPrompts: speciesPrompts,
		MapSeed:        mapSeed,
		CreatedAt:      time.Now().UTC(),
	}
	if err := writeJSON(filepath.Join(dir, "meta.json"), meta); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// Save bulk-exports species, map tiles, map state, the latest habitat
// record per species and tile, and (when History is set) turn logs into
// the slot's directory (§6 POST /saves/save). lineage_events and genera
// are not exported. Returns the slot directory and the turn index
// captured.
func (m *Manager) Save(ctx context.Context, name string) (string, int64, error) {
	dir := m.dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("saves: ensure slot dir: %w", err)
	}

	species, err := m.Species.ListAll(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("saves: export species: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, "species.json"), species); err != nil {
		return "", 0, err
	}

	tiles, err := m.Environment.ListTiles(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("saves: export tiles: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, "map_tiles.json"), tiles); err != nil {
		return "", 0, err
	}

	mapState, err := m.Environment.GetMapState(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("saves: export map state: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, "map_state.json"), mapState); err != nil {
		return "", 0, err
	}

	habitats, err := m.Environment.LatestHabitats(ctx, mapState.TurnIndex)
	if err != nil {
		return "", 0, fmt.Errorf("saves: export habitats: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, "habitat_populations.json"), habitats); err != nil {
		return "", 0, err
	}

	if m.History != nil {
		reports, err := m.History.ListTurnReports(ctx, 0)
		if err != nil {
			return "", 0, fmt.Errorf("saves: export turn logs: %w", err)
		}
		if err := writeJSON(filepath.Join(dir, "turn_logs.json"), reports); err != nil {
			return "", 0, err
		}
	}

	metaPath := filepath.Join(dir, "meta.json")
	var meta Meta
	if err := readJSON(metaPath, &meta); err == nil {
		meta.TurnIndex = mapState.TurnIndex
		_ = writeJSON(metaPath, meta)
	}

	return dir, mapState.TurnIndex, nil
}

// Load restores a slot (§6 POST /saves/load): it truncates the species
// table and bulk-inserts species.json, writes map_state.json over the map
// state, and bulk-inserts habitat_populations.json. It does not truncate
// habitat_populations before that insert, and it does not restore
// map_tiles.json or turn_logs.json. Callers should hold the cross-store
// exclusive lock documented in §5 ("Save/load takes an exclusive lock
// covering all three stores").
func (m *Manager) Load(ctx context.Context, name string) (int64, error) {
	dir := m.dir(name)
	if _, err := os.Stat(dir); err != nil {
		return 0, fmt.Errorf("saves: slot %q not found: %w", name, err)
	}

	var species []*simtypes.Species
	if err := readJSON(filepath.Join(dir, "species.json"), &species); err != nil {
		return 0, fmt.Errorf("saves: load species: %w", err)
	}
	if err := m.Species.Truncate(ctx); err != nil {
		return 0, fmt.Errorf("saves: truncate species: %w", err)
	}
	if err := m.Species.BulkUpsert(ctx, species); err != nil {
		return 0, fmt.Errorf("saves: restore species: %w", err)
	}

	var mapState simtypes.MapState
	if err := readJSON(filepath.Join(dir, "map_state.json"), &mapState); err != nil {
		return 0, fmt.Errorf("saves: load map state: %w", err)
	}
	if err := m.Environment.SetMapState(ctx, mapState); err != nil {
		return 0, fmt.Errorf("saves: restore map state: %w", err)
	}

	var habitats []simtypes.HabitatRecord
	if err := readJSON(filepath.Join(dir, "habitat_populations.json"), &habitats); err != nil {
		return 0, fmt.Errorf("saves: load habitats: %w", err)
	}
	if err := m.Environment.WriteHabitatsBulk(ctx, habitats); err != nil {
		return 0, fmt.Errorf("saves: restore habitats: %w", err)
	}

	return mapState.TurnIndex, nil
}

// RollingPolicy keeps at most maxSlots rolling autosave slots, deleting
// the oldest by creation time once the limit is exceeded (§4.1.4
// "every N rounds, keep M rolling slots").
func (m *Manager) RollingPolicy(ctx context.Context, prefix string, maxSlots int) error {
	entries, err := os.ReadDir(m.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("saves: list slots: %w", err)
	}

	type slot struct {
		name    string
		created time.Time
	}
	var slots []slot
	for _, e := range entries {
		if !e.IsDir() || len(e.Name()) < len(prefix) || e.Name()[:len(prefix)] != prefix {
			continue
		}
		var meta Meta
		if err := readJSON(filepath.Join(m.Root, e.Name(), "meta.json"), &meta); err != nil {
			continue
		}
		slots = append(slots, slot{name: e.Name(), created: meta.CreatedAt})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].created.Before(slots[j].created) })

	for len(slots) > maxSlots {
		if err := os.RemoveAll(filepath.Join(m.Root, slots[0].name)); err != nil {
			return fmt.Errorf("saves: prune rolling slot %q: %w", slots[0].name, err)
		}
		slots = slots[1:]
	}
	return nil
}

// WriteEmbeddingIndex serializes a flat set of embedding vectors into the
// optional binary vector file with a {dim, count} header (§6 "Save file
// layout").
func WriteEmbeddingIndex(path string, vectors [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saves: create embedding index: %w", err)
	}
	defer f.Close()

	dim := 0
	if len(vectors) > 0 {
		dim = len(vectors[0])
	}
	header := [2]uint32{uint32(dim), uint32(len(vectors))}
	if err := binary.Write(f, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("saves: write embedding header: %w", err)
	}
	for _, v := range vectors {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("saves: write embedding vector: %w", err)
		}
	}
	return nil
}

// ReadEmbeddingIndex parses the {dim, count} binary vector file back into
// a flat set of vectors.
func ReadEmbeddingIndex(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("saves: open embedding index: %w", err)
	}
	defer f.Close()

	var header [2]uint32
	if err := binary.Read(f, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("saves: read embedding header: %w", err)
	}
	dim, count := int(header[0]), int(header[1])
	out := make([][]float64, count)
	for i := range out {
		v := make([]float64, dim)
		if err := binary.Read(f, binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("saves: read embedding vector %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("saves: create %s: %w", path, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("saves: encode %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("saves: read %s: %w", path, err)
	}
	return json.Unmarshal(data, v)
}
