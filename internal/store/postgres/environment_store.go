package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chronofauna/internal/hexgrid"
	"chronofauna/internal/simtypes"
)

// EnvironmentStore implements store.EnvironmentStore over map_tiles,
// habitat_populations and the map_state singleton (§6 persistence schema).
type EnvironmentStore struct {
	pool       *pgxpool.Pool
	transactor *Transactor
}

func NewEnvironmentStore(pool *pgxpool.Pool) *EnvironmentStore {
	return &EnvironmentStore{pool: pool, transactor: NewTransactor(pool)}
}

func (s *EnvironmentStore) ListTiles(ctx context.Context) ([]simtypes.MapTile, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, q, r, x, y, biome, elevation, temperature, humidity, salinity, resources, plate_id, is_lake
		FROM map_tiles`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tiles: %w", err)
	}
	defer rows.Close()

	var out []simtypes.MapTile
	for rows.Next() {
		var t simtypes.MapTile
		var q, r int
		if err := rows.Scan(&t.ID, &q, &r, &t.X, &t.Y, &t.Biome, &t.Elevation, &t.Temperature,
			&t.Humidity, &t.Salinity, &t.Resources, &t.PlateID, &t.IsLake); err != nil {
			return nil, fmt.Errorf("postgres: scan tile: %w", err)
		}
		t.Coord = hexgrid.Coord{Q: q, R: r}
		out = append(out, t)
	}
	return out, rows.Err()
}

// LatestHabitats returns the latest-turn-per-species canonical view (§3
// invariant: "not the global max-turn").
func (s *EnvironmentStore) LatestHabitats(ctx context.Context, turn int64) ([]simtypes.HabitatRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (species_code, tile_id) tile_id, species_code, population, suitability, turn_index
		FROM habitat_populations
		WHERE turn_index <= $1
		ORDER BY species_code, tile_id, turn_index DESC`, turn)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest habitats: %w", err)
	}
	defer rows.Close()

	var out []simtypes.HabitatRecord
	for rows.Next() {
		var h simtypes.HabitatRecord
		if err := rows.Scan(&h.TileID, &h.SpeciesCode, &h.Population, &h.Suitability, &h.TurnIndex); err != nil {
			return nil, fmt.Errorf("postgres: scan habitat: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// WriteHabitatsBulk chunks inserts at habitatBulkChunkSize rows per commit
// (§5 "Shared resources").
func (s *EnvironmentStore) WriteHabitatsBulk(ctx context.Context, records []simtypes.HabitatRecord) error {
	for start := 0; start < len(records); start += habitatBulkChunkSize {
		end := start + habitatBulkChunkSize
		if end > len(records) {
			end = len(records)
		}
		chunk := records[start:end]
		if err := s.transactor.WithTransaction(ctx, func(tx pgx.Tx) error {
			batch := &pgx.Batch{}
			for _, r := range chunk {
				batch.Queue(`INSERT INTO habitat_populations (tile_id, species_code, population, suitability, turn_index)
					VALUES ($1, $2, $3, $4, $5)`, r.TileID, r.SpeciesCode, r.Population, r.Suitability, r.TurnIndex)
			}
			br := tx.SendBatch(ctx, batch)
			defer br.Close()
			for range chunk {
				if _, err := br.Exec(); err != nil {
					return fmt.Errorf("postgres: bulk habitat insert: %w", err)
				}
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *EnvironmentStore) GetMapState(ctx context.Context) (simtypes.MapState, error) {
	var m simtypes.MapState
	err := s.pool.QueryRow(ctx, `
		SELECT turn_index, stage_name, stage_progress, stage_duration, sea_level, global_avg_temperature, map_seed
		FROM map_state LIMIT 1`).Scan(&m.TurnIndex, &m.StageName, &m.StageProgress, &m.StageDuration,
		&m.SeaLevel, &m.GlobalAvgTemperature, &m.MapSeed)
	if err != nil {
		return simtypes.MapState{}, fmt.Errorf("postgres: get map state: %w", err)
	}
	return m, nil
}

func (s *EnvironmentStore) SetMapState(ctx context.Context, state simtypes.MapState) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE map_state SET turn_index=$1, stage_name=$2, stage_progress=$3, stage_duration=$4,
			sea_level=$5, global_avg_temperature=$6, map_seed=$7`,
		state.TurnIndex, state.StageName, state.StageProgress, state.StageDuration,
		state.SeaLevel, state.GlobalAvgTemperature, state.MapSeed)
	if err != nil {
		return fmt.Errorf("postgres: set map state: %w", err)
	}
	return nil
}

// PruneHabitatsOlderThan bulk-prunes habitat records outside the N-turn
// retention window (§3 Lifecycles).
func (s *EnvironmentStore) PruneHabitatsOlderThan(ctx context.Context, turn int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM habitat_populations WHERE turn_index < $1`, turn)
	if err != nil {
		return fmt.Errorf("postgres: prune habitats: %w", err)
	}
	return nil
}

// Truncate empties map_tiles and habitat_populations and resets map_state
// to its zero value, for the catastrophic-recovery path of §7
// (POST /admin/drop-database).
func (s *EnvironmentStore) Truncate(ctx context.Context) error {
	return s.transactor.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `TRUNCATE TABLE habitat_populations`); err != nil {
			return fmt.Errorf("postgres: truncate habitat_populations: %w", err)
		}
		if _, err := tx.Exec(ctx, `TRUNCATE TABLE map_tiles`); err != nil {
			return fmt.Errorf("postgres: truncate map_tiles: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE map_state SET turn_index=0, stage_name='', stage_progress=0, stage_duration=0,
				sea_level=0, global_avg_temperature=0`); err != nil {
			return fmt.Errorf("postgres: reset map_state: %w", err)
		}
		return nil
	})
}
