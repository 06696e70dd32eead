package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"chronofauna/internal/simtypes"
)

// GenusStore implements store.GenusStore over the `genera` table (§6),
// following SpeciesStore's JSON-payload-blob pattern since a genus's
// genetic_distances/gene_library columns are themselves JSON in the
// schema.
type GenusStore struct {
	pool *pgxpool.Pool
}

func NewGenusStore(pool *pgxpool.Pool) *GenusStore {
	return &GenusStore{pool: pool}
}

func (s *GenusStore) Get(ctx context.Context, code string) (*simtypes.Genus, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM genera WHERE code = $1`, code).Scan(&payload)
	if err != nil {
		return nil, fmt.Errorf("postgres: get genus %s: %w", code, err)
	}
	g := &simtypes.Genus{}
	if err := json.Unmarshal(payload, g); err != nil {
		return nil, fmt.Errorf("postgres: decode genus %s: %w", code, err)
	}
	return g, nil
}

func (s *GenusStore) Upsert(ctx context.Context, genus *simtypes.Genus) error {
	payload, err := json.Marshal(genus)
	if err != nil {
		return fmt.Errorf("postgres: encode genus %s: %w", genus.Code, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO genera (code, name_latin, name_common, created_turn, updated_turn, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			name_latin = $2, name_common = $3, updated_turn = $5, payload = $6`,
		genus.Code, genus.NameLatin, genus.NameCommon, genus.CreatedTurn, genus.UpdatedTurn, payload)
	if err != nil {
		return fmt.Errorf("postgres: upsert genus %s: %w", genus.Code, err)
	}
	return nil
}

func (s *GenusStore) ListAll(ctx context.Context) ([]*simtypes.Genus, error) {
	rows, err := s.pool.Query(ctx, `SELECT payload FROM genera`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list genera: %w", err)
	}
	defer rows.Close()

	var out []*simtypes.Genus
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("postgres: scan genus row: %w", err)
		}
		g := &simtypes.Genus{}
		if err := json.Unmarshal(payload, g); err != nil {
			return nil, fmt.Errorf("postgres: decode genus: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
