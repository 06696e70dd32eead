// Package eventbus implements the simulation_events MPMC queue of §5:
// stage code pushes progress events, the SSE stream pops them with a
// nonblocking 100ms poll and a 5s heartbeat. Grounded on the teacher's
// pubsub.RedisAdapter (cross-instance publish/subscribe broadcast),
// adapted from character-targeted BroadcastMessage fan-out to a single
// ordered event stream per running turn, multi-producer multi-consumer
// via a Redis list used as a queue (RPUSH/LPOP) rather than pub/sub,
// since events must survive a consumer connecting after they were
// pushed and must preserve FIFO order (§5 "SSE events preserve FIFO
// order within a connection").
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event is one progress/error/narrative item pushed onto the bus
// (§6 "SSE stream of events {type, message, category, timestamp, ...}").
type Event struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Category  string         `json:"category,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

const (
	pollInterval     = 100 * time.Millisecond
	heartbeatInterval = 5 * time.Second
)

// Bus is the MPMC event queue. When redis is nil it falls back to an
// in-process, mutex-guarded slice queue (useful for single-instance tests and
// for deployments without a shared Redis).
type Bus struct {
	redis *redis.Client
	key   string

	mu   sync.Mutex
	local []Event
}

func NewBus(redisClient *redis.Client, runID string) *Bus {
	return &Bus{redis: redisClient, key: "simulation_events:" + runID}
}

// Push enqueues an event (stage code call site, §5 "event queue put").
func (b *Bus) Push(ctx context.Context, evt Event) error {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	encoded, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("eventbus: encode event: %w", err)
	}
	if b.redis == nil {
		b.mu.Lock()
		b.local = append(b.local, evt)
		b.mu.Unlock()
		return nil
	}
	return b.redis.RPush(ctx, b.key, encoded).Err()
}

// PushError is a convenience wrapper for §7's `{type: "error", message,
// category}` propagation policy.
func (b *Bus) PushError(ctx context.Context, message, category string) error {
	return b.Push(ctx, Event{Type: "error", Message: message, Category: category})
}

// Drain pops up to max pending events without blocking (the SSE
// stream's nonblocking poll).
func (b *Bus) Drain(ctx context.Context, max int) ([]Event, error) {
	if b.redis == nil {
		b.mu.Lock()
		defer b.mu.Unlock()
		if len(b.local) == 0 {
			return nil, nil
		}
		n := max
		if n <= 0 || n > len(b.local) {
			n = len(b.local)
		}
		out := append([]Event(nil), b.local[:n]...)
		b.local = b.local[n:]
		return out, nil
	}

	var out []Event
	for i := 0; i < max || max <= 0; i++ {
		raw, err := b.redis.LPop(ctx, b.key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return out, fmt.Errorf("eventbus: drain: %w", err)
		}
		var evt Event
		if err := json.Unmarshal([]byte(raw), &evt); err != nil {
			continue
		}
		out = append(out, evt)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

// Stream runs a polling loop, calling emit for each event drained and
// heartbeat() on the heartbeat interval, until ctx is cancelled —
// the shape an SSE handler wraps directly (§5, §6 SSE frame format).
func (b *Bus) Stream(ctx context.Context, emit func(Event) error, heartbeat func() error) error {
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()
	hbTicker := time.NewTicker(heartbeatInterval)
	defer hbTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hbTicker.C:
			if heartbeat != nil {
				if err := heartbeat(); err != nil {
					return err
				}
			}
		case <-pollTicker.C:
			events, err := b.Drain(ctx, 50)
			if err != nil {
				return err
			}
			for _, evt := range events {
				if err := emit(evt); err != nil {
					return err
				}
			}
		}
	}
}

// Clear removes all pending events (used after a turn finishes or on
// abort, to avoid replaying a stale run's events to a new subscriber).
func (b *Bus) Clear(ctx context.Context) error {
	if b.redis == nil {
		b.mu.Lock()
		b.local = nil
		b.mu.Unlock()
		return nil
	}
	return b.redis.Del(ctx, b.key).Err()
}
