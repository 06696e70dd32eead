// Package autosave schedules the post-turn background save described in
// §4.1.4: every N rounds, as a background task that does not block the
// response, keeping M rolling slots. Grounded on the teacher's
// worldgen/weather periodic-update shape (a counter-gated callback
// invoked once per tick), generalized here from a fixed weather tick to
// an operator-configured round interval; round-count gating has no
// calendar component so this stays on stdlib rather than
// robfig/cron/v3, which the pack only ever uses for wall-clock (@daily)
// schedules.
package autosave

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Saver performs one autosave: export store state into a rolling slot
// and enforce the slot budget.
type Saver interface {
	Save(ctx context.Context, name string) (dir string, turnIndex int64, err error)
	RollingPolicy(ctx context.Context, prefix string, maxSlots int) error
}

// Scheduler runs Saver.Save as a background task every EveryNRounds
// rounds, naming slots with a rolling prefix (§4.1.4).
type Scheduler struct {
	saver         Saver
	everyNRounds  int64
	rollingSlots  int
	slotPrefix    string

	mu      sync.Mutex
	pending sync.WaitGroup
	onError func(error)
}

func NewScheduler(saver Saver, everyNRounds, rollingSlots int, slotPrefix string) *Scheduler {
	if everyNRounds < 1 {
		everyNRounds = 1
	}
	if rollingSlots < 1 {
		rollingSlots = 1
	}
	return &Scheduler{saver: saver, everyNRounds: int64(everyNRounds), rollingSlots: rollingSlots, slotPrefix: slotPrefix}
}

// OnError registers a callback invoked when a background autosave fails;
// autosave failures never fail the turn itself (§4.1.4, §7 "never fatal").
func (s *Scheduler) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// MaybeSchedule launches a background autosave if turnIndex falls on the
// configured interval; it returns immediately ("after response is sent,
// schedule autosave as a background task", §4.1.4).
func (s *Scheduler) MaybeSchedule(ctx context.Context, turnIndex int64) {
	if turnIndex%s.everyNRounds != 0 {
		return
	}
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		slotName := fmt.Sprintf("%sturn-%06d", s.slotPrefix, turnIndex)
		saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, _, err := s.saver.Save(saveCtx, slotName); err != nil {
			s.reportError(fmt.Errorf("autosave: save turn %d: %w", turnIndex, err))
			return
		}
		if err := s.saver.RollingPolicy(saveCtx, s.slotPrefix, s.rollingSlots); err != nil {
			s.reportError(fmt.Errorf("autosave: prune rolling slots: %w", err))
		}
	}()
}

// Wait blocks until all in-flight autosaves finish; used by tests and by
// graceful shutdown so a save is not left half-written.
func (s *Scheduler) Wait() {
	s.pending.Wait()
}

func (s *Scheduler) reportError(err error) {
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}
