package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/contract-shield/internal/application/history"
	"github.com/bryanwahyu/contract-shield/internal/domain/contracts"
)

func TestObserveAnalysis(t *testing.T) {
	m := New("cs", nil)

	m.ObserveAnalysis("success", 2*time.Second)
	m.ObserveAnalysis("success", time.Second)
	m.ObserveAnalysis("quota_exceeded", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalysesTotal.WithLabelValues("quota_exceeded")))
}

func TestObserveHistory(t *testing.T) {
	m := New("cs", nil)

	m.ObserveHistory(history.State{
		Analyses: make([]contracts.ContractAnalysis, 2),
		History: []contracts.StoredContract{
			{ID: "a", IsFavorite: true},
			{ID: "b"},
			{ID: "c", IsFavorite: true},
		},
		Analyzing: true,
	})

	assert.Equal(t, 3.0, testutil.ToFloat64(m.HistoryEntries))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CachedAnalyses))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FavoriteEntries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Analyzing))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New("cs", nil)
	m.RequestStarted()
	m.ObserveRequest(http.MethodGet, "/v1/history", http.StatusOK, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `cs_http_requests_total{method="GET",route="/v1/history",status="200"} 1`)
	assert.Contains(t, body, "cs_http_requests_in_flight 0")
}
