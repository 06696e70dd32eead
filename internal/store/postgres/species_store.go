// Package postgres implements SpeciesStore/EnvironmentStore over
// jackc/pgx/v5 pgxpool, following the persistence schema of §6. Grounded
// on the teacher's repository package's bulk-upsert/transactional-scope
// conventions, generalized from the MUD's player/world tables to the
// species/habitat/map_tiles shape.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chronofauna/internal/simtypes"
)

// SpeciesStore implements store.SpeciesStore.
type SpeciesStore struct {
	pool       *pgxpool.Pool
	transactor *Transactor
}

func NewSpeciesStore(pool *pgxpool.Pool) *SpeciesStore {
	return &SpeciesStore{pool: pool, transactor: NewTransactor(pool)}
}

func (s *SpeciesStore) ListAlive(ctx context.Context) ([]*simtypes.Species, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT lineage_code, payload FROM species WHERE status = 'alive'`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list alive species: %w", err)
	}
	defer rows.Close()

	var out []*simtypes.Species
	for rows.Next() {
		var code string
		var payload []byte
		if err := rows.Scan(&code, &payload); err != nil {
			return nil, fmt.Errorf("postgres: scan species row: %w", err)
		}
		sp := &simtypes.Species{}
		if err := json.Unmarshal(payload, sp); err != nil {
			return nil, fmt.Errorf("postgres: decode species %s: %w", code, err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *SpeciesStore) Get(ctx context.Context, lineageCode string) (*simtypes.Species, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM species WHERE lineage_code = $1`, lineageCode).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("postgres: get species %s: %w", lineageCode, err)
	}
	sp := &simtypes.Species{}
	if err := json.Unmarshal(payload, sp); err != nil {
		return nil, fmt.Errorf("postgres: decode species %s: %w", lineageCode, err)
	}
	return sp, nil
}

// BulkUpsert writes species snapshots inside a single transactional scope,
// holding the connection for the duration of the write (§5).
func (s *SpeciesStore) BulkUpsert(ctx context.Context, species []*simtypes.Species) error {
	err := s.transactor.WithTransaction(ctx, func(tx pgx.Tx) error {
		for _, sp := range species {
			payload, err := json.Marshal(sp)
			if err != nil {
				return fmt.Errorf("postgres: encode species %s: %w", sp.LineageCode, err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO species (lineage_code, status, payload)
				VALUES ($1, $2, $3)
				ON CONFLICT (lineage_code) DO UPDATE SET status = $2, payload = $3`,
				sp.LineageCode, sp.Status, payload)
			if err != nil {
				return fmt.Errorf("postgres: upsert species %s: %w", sp.LineageCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	for _, sp := range species {
		s.notifyInvalidation(ctx, sp.LineageCode)
	}
	return nil
}

func (s *SpeciesStore) NextID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT nextval('species_id_seq')`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: next species id: %w", err)
	}
	return id, nil
}

// ListAll returns every species regardless of status, for save-file
// export (§6 "A save captures all database tables by bulk export").
func (s *SpeciesStore) ListAll(ctx context.Context) ([]*simtypes.Species, error) {
	rows, err := s.pool.Query(ctx, `SELECT lineage_code, payload FROM species`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list all species: %w", err)
	}
	defer rows.Close()

	var out []*simtypes.Species
	for rows.Next() {
		var code string
		var payload []byte
		if err := rows.Scan(&code, &payload); err != nil {
			return nil, fmt.Errorf("postgres: scan species row: %w", err)
		}
		sp := &simtypes.Species{}
		if err := json.Unmarshal(payload, sp); err != nil {
			return nil, fmt.Errorf("postgres: decode species %s: %w", code, err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// Truncate empties the species table ahead of a save-file load (§6
// "load truncates and bulk-inserts").
func (s *SpeciesStore) Truncate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE TABLE species`)
	if err != nil {
		return fmt.Errorf("postgres: truncate species: %w", err)
	}
	return nil
}
