// Package metrics exposes Prometheus instrumentation for the turn
// pipeline and its collaborators (§5 "diagnostics"): turn duration,
// per-stage timing, AI router queue depth, store query latency, and
// embedding cache hit rate. Grounded on the teacher's internal/metrics
// package (http middleware + counters/histograms registered against
// the default Prometheus registry), generalized from HTTP-hub/DB
// counters to turn-pipeline and model-router counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chronofauna_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	turnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chronofauna_turn_duration_seconds",
		Help:    "Full turn pipeline duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chronofauna_stage_duration_seconds",
		Help:    "Per-stage duration within a turn (mortality, reproduction, speciation, ...).",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"stage"})

	aiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chronofauna_ai_requests_total",
		Help: "Total model router invocations by capability and outcome.",
	}, []string{"capability", "outcome"})

	aiQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronofauna_ai_queue_depth",
		Help: "Current queued request count in the model router.",
	})

	activeSpeciesGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chronofauna_active_species",
		Help: "Number of live species as of the last processed turn.",
	})

	storeQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chronofauna_store_query_duration_seconds",
		Help:    "Persistence layer query duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	embeddingCacheHits   = promauto.NewCounter(prometheus.CounterOpts{Name: "chronofauna_embedding_cache_hits_total", Help: "Embedding cache hits."})
	embeddingCacheMisses = promauto.NewCounter(prometheus.CounterOpts{Name: "chronofauna_embedding_cache_misses_total", Help: "Embedding cache misses."})
)

// Handler exposes the default Prometheus registry at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request duration by method/path/status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)
		httpRequestDuration.WithLabelValues(r.Method, r.URL.Path, http.StatusText(ww.statusCode)).Observe(time.Since(start).Seconds())
	})
}

// RecordTurnDuration records the wall-clock time of a full turn.
func RecordTurnDuration(d time.Duration) {
	turnDuration.Observe(d.Seconds())
}

// RecordStageDuration records one stage's (mortality, reproduction, ...)
// duration within a turn.
func RecordStageDuration(stage string, d time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordAIRequest increments the router invocation counter for a
// capability/outcome pair ("ok", "timeout", "error").
func RecordAIRequest(capability, outcome string) {
	aiRequestsTotal.WithLabelValues(capability, outcome).Inc()
}

// SetAIQueueDepth reflects the router's current queued-request count.
func SetAIQueueDepth(depth int64) {
	aiQueueDepth.Set(float64(depth))
}

// SetActiveSpecies reflects the live species count after a turn.
func SetActiveSpecies(n int) {
	activeSpeciesGauge.Set(float64(n))
}

// RecordStoreQuery records persistence layer latency for an operation
// against a table/collection.
func RecordStoreQuery(operation, table string, d time.Duration) {
	storeQueryDuration.WithLabelValues(operation, table).Observe(d.Seconds())
}

// RecordCacheHit / RecordCacheMiss track the embedding cache hit rate.
func RecordCacheHit()  { embeddingCacheHits.Inc() }
func RecordCacheMiss() { embeddingCacheMisses.Inc() }
