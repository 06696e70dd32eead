package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"chronofauna/internal/simtypes"
	"chronofauna/internal/store/postgres"
)

const testSchema = `
CREATE SEQUENCE species_id_seq;
CREATE TABLE species (
	lineage_code TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	payload JSONB NOT NULL
);
CREATE TABLE map_tiles (
	id BIGINT PRIMARY KEY,
	q INT NOT NULL, r INT NOT NULL,
	x DOUBLE PRECISION NOT NULL, y DOUBLE PRECISION NOT NULL,
	biome TEXT, elevation DOUBLE PRECISION, temperature DOUBLE PRECISION,
	humidity DOUBLE PRECISION, salinity DOUBLE PRECISION,
	resources JSONB, plate_id INT, is_lake BOOLEAN
);
CREATE TABLE habitat_populations (
	tile_id BIGINT NOT NULL,
	species_code TEXT NOT NULL,
	population BIGINT NOT NULL,
	suitability DOUBLE PRECISION NOT NULL,
	turn_index BIGINT NOT NULL
);
CREATE TABLE map_state (
	turn_index BIGINT, stage_name TEXT, stage_progress DOUBLE PRECISION,
	stage_duration DOUBLE PRECISION, sea_level DOUBLE PRECISION,
	global_avg_temperature DOUBLE PRECISION, map_seed BIGINT
);
INSERT INTO map_state (turn_index, stage_name, stage_progress, stage_duration, sea_level, global_avg_temperature, map_seed)
	VALUES (0, '', 0, 0, 0, 0, 0);
`

// newTestPool starts a throwaway Postgres container and applies
// testSchema, skipping the test entirely when Docker isn't available
// (matching the teacher's integration-test convention of skip-not-fail).
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "chronofauna_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skip("Docker not available for integration test")
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://postgres:test@%s:%s/chronofauna_test?sslmode=disable", host, port.Port())

	var pool *pgxpool.Pool
	require.Eventually(t, func() bool {
		pool, err = pgxpool.New(ctx, dsn)
		return err == nil
	}, 15*time.Second, 250*time.Millisecond)

	_, err = pool.Exec(ctx, testSchema)
	require.NoError(t, err)

	t.Cleanup(pool.Close)
	return pool
}

func TestSpeciesStore_BulkUpsertAndListAlive(t *testing.T) {
	pool := newTestPool(t)
	store := postgres.NewSpeciesStore(pool)
	ctx := context.Background()

	sp := &simtypes.Species{LineageCode: "CF-0001", Status: simtypes.StatusAlive, CommonName: "plains runner"}
	require.NoError(t, store.BulkUpsert(ctx, []*simtypes.Species{sp}))

	alive, err := store.ListAlive(ctx)
	require.NoError(t, err)
	require.Len(t, alive, 1)
	require.Equal(t, "CF-0001", alive[0].LineageCode)
}

func TestSpeciesStore_TruncateEmptiesTable(t *testing.T) {
	pool := newTestPool(t)
	store := postgres.NewSpeciesStore(pool)
	ctx := context.Background()

	require.NoError(t, store.BulkUpsert(ctx, []*simtypes.Species{{LineageCode: "CF-0002", Status: simtypes.StatusAlive}}))
	require.NoError(t, store.Truncate(ctx))

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestListener_ReceivesInvalidationOnUpsert(t *testing.T) {
	pool := newTestPool(t)
	store := postgres.NewSpeciesStore(pool)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	invalidated := make(chan string, 1)
	listener := postgres.NewListener(pool.Config().ConnString(), invalidatorFunc(func(_ context.Context, key string) {
		invalidated <- key
	}))
	go listener.Run(ctx)
	time.Sleep(200 * time.Millisecond) // let LISTEN register before NOTIFY fires

	require.NoError(t, store.BulkUpsert(ctx, []*simtypes.Species{{LineageCode: "CF-0003", Status: simtypes.StatusAlive}}))

	select {
	case key := <-invalidated:
		require.Equal(t, "CF-0003", key)
	case <-ctx.Done():
		t.Fatal("timed out waiting for cache invalidation notification")
	}
}

type invalidatorFunc func(ctx context.Context, key string)

func (f invalidatorFunc) Invalidate(ctx context.Context, key string) { f(ctx, key) }
