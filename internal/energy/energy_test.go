package energy_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"chronofauna/internal/energy"
)

func newTestStore(t *testing.T, regenPerHour, cap float64) *energy.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return energy.NewStore(client, "test:energy", regenPerHour, cap)
}

func TestStore_BalanceInitializesAtCap(t *testing.T) {
	store := newTestStore(t, 10, 500)

	bal, err := store.Balance(context.Background())
	require.NoError(t, err)
	require.Equal(t, 500.0, bal)
}

func TestStore_ChargeDeductsFromBalance(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0, 500)

	require.NoError(t, store.Charge(ctx, 1.0))

	bal, err := store.Balance(ctx)
	require.NoError(t, err)
	require.Equal(t, 499.0, bal)
}

func TestStore_ChargeFailsWhenInsufficient(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t, 0, 1)

	require.NoError(t, store.Charge(ctx, 1.0))
	err := store.Charge(ctx, 1.0)
	require.Error(t, err)
}

func TestStore_ChargeNoopWhenRedisNil(t *testing.T) {
	store := energy.NewStore(nil, "unused", 10, 500)
	require.NoError(t, store.Charge(context.Background(), 1_000_000))
}

func TestStore_BalanceDefaultsToCapWhenRedisNil(t *testing.T) {
	store := energy.NewStore(nil, "unused", 10, 500)
	bal, err := store.Balance(context.Background())
	require.NoError(t, err)
	require.Equal(t, 500.0, bal)
}
