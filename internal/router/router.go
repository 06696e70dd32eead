// Package router implements ModelRouter (§2 component D, §5): routes
// named capabilities to configured providers, enforces a process-wide
// concurrency limit with FIFO queueing, per-capability timeouts, and
// returns parsed JSON. Grounded on the teacher's ai/queue worker-pool
// pattern, generalized from a single fixed semaphore-gated dialogue queue
// to a capability-keyed FIFO channel per §5 ("a single FIFO queue" rather
// than the teacher's 4 priority lanes, since the spec names FIFO only).
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Capability timeouts (§5).
var CapabilityTimeouts = map[string]time.Duration{
	"speciation_batch":   120 * time.Second,
	"species_status_eval": 60 * time.Second,
	"narrative":          60 * time.Second,
}

const defaultConcurrencyLimit = 15

// Provider is one configured LLM backend (§6 "LLM provider protocol").
type Provider interface {
	Invoke(ctx context.Context, capability string, payload any) (json.RawMessage, error)
	Name() string
}

// Diagnostics mirrors the router's exposed stats (§5).
type Diagnostics struct {
	ActiveRequests  int64
	QueuedRequests  int64
	TotalRequests   int64
	TotalTimeouts   int64
	LastLatencyMS   int64
}

type queuedRequest struct {
	ctx       context.Context
	capability string
	payload   any
	result    chan result
}

type result struct {
	data json.RawMessage
	err  error
}

// Router implements ModelRouter.
type Router struct {
	providers   map[string][]Provider // capability -> round-robin pool
	rrIndex     map[string]int
	mu          sync.Mutex

	semaphore   chan struct{}
	queue       chan queuedRequest

	active      int64
	totalReqs   int64
	totalTimeouts int64
	lastLatency int64

	skipAIStep  atomic.Bool
}

func NewRouter(concurrencyLimit int) *Router {
	if concurrencyLimit <= 0 {
		concurrencyLimit = defaultConcurrencyLimit
	}
	r := &Router{
		providers: make(map[string][]Provider),
		rrIndex:   make(map[string]int),
		semaphore: make(chan struct{}, concurrencyLimit),
		queue:     make(chan queuedRequest, 4096),
	}
	go r.dispatchLoop()
	return r
}

// RegisterProvider adds a provider to a capability's round-robin pool.
func (r *Router) RegisterProvider(capability string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[capability] = append(r.providers[capability], p)
}

// SkipAIStep sets the flag dispatch checks before handing a request to a
// provider (§4.1 "skip_current_ai_step"): while it is set, every request
// dispatched afterwards fails at once with an "ai step skipped" error.
// Requests already inside a provider call are not interrupted, and no
// HTTP connection pool is closed.
func (r *Router) SkipAIStep(skip bool) {
	r.skipAIStep.Store(skip)
}

// Invoke enqueues a request FIFO and blocks until it is processed or ctx
// is cancelled (§5: "FIFO wait queue for overflow").
func (r *Router) Invoke(ctx context.Context, capability string, payload any) (json.RawMessage, error) {
	timeout, ok := CapabilityTimeouts[capability]
	if !ok {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := queuedRequest{ctx: ctx, capability: capability, payload: payload, result: make(chan result, 1)}
	atomic.AddInt64(&r.totalReqs, 1)

	select {
	case r.queue <- req:
	case <-ctx.Done():
		atomic.AddInt64(&r.totalTimeouts, 1)
		return nil, fmt.Errorf("router: %s: %w", capability, ctx.Err())
	}

	select {
	case res := <-req.result:
		return res.data, res.err
	case <-ctx.Done():
		atomic.AddInt64(&r.totalTimeouts, 1)
		return nil, fmt.Errorf("router: %s: %w", capability, ctx.Err())
	}
}

func (r *Router) dispatchLoop() {
	for req := range r.queue {
		r.semaphore <- struct{}{}
		go func(req queuedRequest) {
			defer func() { <-r.semaphore }()
			atomic.AddInt64(&r.active, 1)
			defer atomic.AddInt64(&r.active, -1)

			start := time.Now()
			data, err := r.dispatch(req)
			atomic.StoreInt64(&r.lastLatency, time.Since(start).Milliseconds())
			req.result <- result{data: data, err: err}
		}(req)
	}
}

func (r *Router) dispatch(req queuedRequest) (json.RawMessage, error) {
	if r.skipAIStep.Load() {
		return nil, fmt.Errorf("router: %s: ai step skipped", req.capability)
	}
	provider := r.pickProvider(req.capability)
	if provider == nil {
		return nil, fmt.Errorf("router: no provider configured for capability %q", req.capability)
	}
	return provider.Invoke(req.ctx, req.capability, req.payload)
}

func (r *Router) pickProvider(capability string) Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	pool := r.providers[capability]
	if len(pool) == 0 {
		return nil
	}
	idx := r.rrIndex[capability] % len(pool)
	r.rrIndex[capability] = idx + 1
	return pool[idx]
}

// Diagnostics returns the router's current counters (§5).
func (r *Router) Diagnostics() Diagnostics {
	return Diagnostics{
		ActiveRequests: atomic.LoadInt64(&r.active),
		QueuedRequests: int64(len(r.queue)),
		TotalRequests:  atomic.LoadInt64(&r.totalReqs),
		TotalTimeouts:  atomic.LoadInt64(&r.totalTimeouts),
		LastLatencyMS:  atomic.LoadInt64(&r.lastLatency),
	}
}

// AbortCurrentTasks drains the wait queue; in-flight requests still
// finish with their fallback (§5 "abort_current_tasks").
func (r *Router) AbortCurrentTasks() int {
	drained := 0
	for {
		select {
		case req := <-r.queue:
			req.result <- result{err: fmt.Errorf("router: aborted")}
			drained++
		default:
			return drained
		}
	}
}
