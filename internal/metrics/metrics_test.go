package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/api/health", 200, time.Now())
		m.IncStageTransition("Screening")
		m.IncOutcome("Verified")
		m.IncNotificationQueued()
		m.IncNotificationFailed("deliver")
		m.IncLogin("success")
		m.IncEmail("sent")
	})
}

func TestCountersAndExposition(t *testing.T) {
	m := New()
	m.IncStageTransition("Screening")
	m.IncStageTransition("Screening")
	m.ObserveHTTP("PUT", "/api/document/next-stage/{id}", 403, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageTransitions.WithLabelValues("Screening")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("PUT", "/api/document/next-stage/{id}", "4xx")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "backoffice_document_stage_transitions_total")
}
