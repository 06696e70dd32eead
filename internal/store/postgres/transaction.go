// Package postgres holds the pgx-backed SpeciesStore/EnvironmentStore
// implementations and the transactional-scope helper both share. Adapted
// from the teacher's repository/transaction.go, switched from
// database/sql.Tx to pgx.Tx since the rest of the store layer is built on
// pgxpool (§5 "Shared resources": transactional scopes hold a connection
// for snapshot_habitats / apply_reproduction_writes / persist_speciation_batch).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Transactor executes callbacks within a pgx transaction, rolling back on
// error or panic and committing otherwise.
type Transactor struct {
	pool *pgxpool.Pool
}

func NewTransactor(pool *pgxpool.Pool) *Transactor {
	return &Transactor{pool: pool}
}

// WithTransaction runs fn inside a transaction scoped to the call.
func (t *Transactor) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("postgres: tx error: %w, rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transaction: %w", err)
	}
	return nil
}

// habitatBulkChunkSize is the row count per commit for habitat bulk
// inserts (§5: "Habitat bulk insert is chunked at 5000 rows per commit").
const habitatBulkChunkSize = 5000
