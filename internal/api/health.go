// Package api implements the HTTP/SSE surface of §6: one handler struct
// per resource group, wired in cmd/simcore-server/main.go onto a chi
// router. Grounded on the teacher's cmd/game-server/api package's
// NewXHandler(deps)/method-per-endpoint convention.
package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// HealthHandler reports liveness/readiness for load balancers and
// orchestration probes. Adapted from the teacher's HealthHandler, dropping
// the MUD's connected-user counter (no player connections here).
type HealthHandler struct {
	startTime time.Time
	isReady   atomic.Bool
}

func NewHealthHandler() *HealthHandler {
	h := &HealthHandler{startTime: time.Now()}
	h.isReady.Store(true)
	return h
}

func (h *HealthHandler) SetReady(ready bool) {
	h.isReady.Store(ready)
}

type healthResponse struct {
	Status     string  `json:"status"`
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
	MemoryMB   float64 `json:"memory_mb"`
}

func (h *HealthHandler) LivenessProbe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}

func (h *HealthHandler) ReadinessProbe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.isReady.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "not_ready"})
		return
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthResponse{
		Status:     "healthy",
		Uptime:     time.Since(h.startTime).String(),
		Goroutines: runtime.NumGoroutine(),
		MemoryMB:   float64(m.Alloc) / 1024 / 1024,
	})
}
