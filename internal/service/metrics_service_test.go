package service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/certifytrack-api/internal/models"
)

func TestMetricsServiceSnapshotCountsDomainEvents(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/halls", http.StatusOK, 20*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordStatusTransition(models.EventStatusScheduled, models.EventStatusOngoing)
	m.RecordBookingOutcome("approved")
	m.RecordBookingOutcome("conflict")
	m.RecordReconciled(3)
	m.RecordReconciled(0)
	m.ObserveJob("sweep-events", errors.New("boom"), time.Second)

	snap := m.Snapshot()
	assert.Equal(t, uint64(1), snap.RequestsTotal)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(1), snap.StatusTransitions)
	assert.Equal(t, uint64(1), snap.BookingConflicts)
	assert.Equal(t, uint64(3), snap.TransactionsReconciled)
}

func TestMetricsServiceHandlerExposesCollectors(t *testing.T) {
	m := NewMetricsService()
	m.RecordBookingOutcome("pending")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hall_booking_outcomes_total{outcome="pending"} 1`)
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordStatusTransition(models.EventStatusDraft, models.EventStatusScheduled)
	m.RecordNotification("queued")
	assert.Equal(t, models.SystemMetrics{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
