package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-scraper/models"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveFetch(&models.RawDocument{Status: models.FetchOK})
	m.ObserveFetch(&models.RawDocument{Status: models.FetchOK, Blocked: true})
	m.ObserveFetch(&models.RawDocument{Status: models.FetchTimeout})
	m.ObserveCandidates(OutcomeExtracted, 3)
	m.ObserveCandidates(OutcomeFiltered, 0)
	m.ObserveReconcile(2, 1)
	m.ObserveRun(1500 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchResults.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchResults.WithLabelValues("blocked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchResults.WithLabelValues("timeout")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Candidates.WithLabelValues(OutcomeExtracted)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ListingsReconcile.WithLabelValues(OutcomeNew)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ListingsReconcile.WithLabelValues(OutcomeUpdated)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.RunDuration))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch(&models.RawDocument{Status: models.FetchOK})
		m.ObserveCandidates(OutcomeExtracted, 1)
		m.ObserveReconcile(1, 1)
		m.ObserveRun(time.Second)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveReconcile(1, 0)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `listings_reconciled_total{outcome="new"} 1`)
}
