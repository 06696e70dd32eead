package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecordTurnDuration(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordTurnDuration(250 * time.Millisecond)
	})
}

func TestRecordStageDuration(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordStageDuration("mortality", 40*time.Millisecond)
	})
}

func TestRecordAIRequest(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordAIRequest("speciation_batch", "ok")
	})
}

func TestSetAIQueueDepth(t *testing.T) {
	assert.NotPanics(t, func() {
		SetAIQueueDepth(3)
	})
}

func TestSetActiveSpecies(t *testing.T) {
	assert.NotPanics(t, func() {
		SetActiveSpecies(42)
	})
}

func TestRecordStoreQuery(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordStoreQuery("select", "species", 5*time.Millisecond)
	})
}

func TestRecordCacheHit(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordCacheHit()
	})
}

func TestRecordCacheMiss(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordCacheMiss()
	})
}
