// Package energy implements the metagame energy ledger the orchestrator
// gates each round against (§4.1 step 1, §1 "achievement/energy-metagame
// bookkeeping" — named here only insofar as the core calls Charge; the
// metagame's own accrual rules live outside this module). Grounded on
// the teacher's auth.RateLimiter (a Redis-backed counter with a
// replenishment policy), adapted from request-rate limiting to an
// energy balance that regenerates over time and is spent per round.
package energy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store implements orchestrator.EnergyStore against a Redis-held balance
// that regenerates at a fixed rate, so repeated runs don't require an
// external top-up during development.
type Store struct {
	redis        *redis.Client
	key          string
	regenPerHour float64
	cap          float64
}

func NewStore(redisClient *redis.Client, key string, regenPerHour, cap float64) *Store {
	return &Store{redis: redisClient, key: key, regenPerHour: regenPerHour, cap: cap}
}

type balance struct {
	Amount    float64
	UpdatedAt time.Time
}

// Charge deducts cost from the current balance, first crediting whatever
// has regenerated since the last charge. Returns apierr-compatible error
// text the orchestrator wraps into ErrInsufficientEnergy.
func (s *Store) Charge(ctx context.Context, cost float64) error {
	if s.redis == nil {
		return nil // no energy gate configured (local/dev mode)
	}
	current, err := s.peek(ctx)
	if err != nil {
		return err
	}
	if current < cost {
		return fmt.Errorf("need %.2f, have %.2f", cost, current)
	}
	return s.set(ctx, current-cost)
}

// Balance reports the current regenerated balance without spending it.
func (s *Store) Balance(ctx context.Context) (float64, error) {
	if s.redis == nil {
		return s.cap, nil
	}
	return s.peek(ctx)
}

func (s *Store) peek(ctx context.Context) (float64, error) {
	raw, err := s.redis.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return s.cap, s.set(ctx, s.cap)
	}
	if err != nil {
		return 0, fmt.Errorf("energy: read balance: %w", err)
	}
	var b balance
	if err := decodeBalance(raw, &b); err != nil {
		return 0, err
	}
	elapsed := time.Since(b.UpdatedAt).Hours()
	regenerated := b.Amount + elapsed*s.regenPerHour
	if regenerated > s.cap {
		regenerated = s.cap
	}
	return regenerated, nil
}

func (s *Store) set(ctx context.Context, amount float64) error {
	b := balance{Amount: amount, UpdatedAt: time.Now()}
	encoded, err := encodeBalance(b)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, encoded, 0).Err(); err != nil {
		return fmt.Errorf("energy: write balance: %w", err)
	}
	return nil
}

func encodeBalance(b balance) (string, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", fmt.Errorf("energy: encode balance: %w", err)
	}
	return string(data), nil
}

func decodeBalance(raw string, b *balance) error {
	if err := json.Unmarshal([]byte(raw), b); err != nil {
		return fmt.Errorf("energy: decode balance: %w", err)
	}
	return nil
}
