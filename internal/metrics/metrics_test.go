package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveLogin(t *testing.T) {
	before := testutil.ToFloat64(logins.WithLabelValues("success"))
	ObserveLogin("success")
	assert.Equal(t, before+1, testutil.ToFloat64(logins.WithLabelValues("success")))
}

func TestObserveSweepIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(sessionsSwept)
	ObserveSweep(0)
	ObserveSweep(3)
	assert.Equal(t, before+3, testutil.ToFloat64(sessionsSwept))
}

func TestObserveAnalyticsResult(t *testing.T) {
	okBefore := testutil.ToFloat64(analyticsQueries.WithLabelValues("statistics", "ok"))
	errBefore := testutil.ToFloat64(analyticsQueries.WithLabelValues("statistics", "error"))
	ObserveAnalytics("statistics", nil)
	ObserveAnalytics("statistics", errors.New("boom"))
	assert.Equal(t, okBefore+1, testutil.ToFloat64(analyticsQueries.WithLabelValues("statistics", "ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(analyticsQueries.WithLabelValues("statistics", "error")))
}

func TestHandlerServesRegistry(t *testing.T) {
	ObserveOrderCreated()
	ObserveOrderTransition("confirmed")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "market_core_order_created_total")
	assert.Contains(t, rec.Body.String(), `market_core_order_transitions_total{status="confirmed"}`)
}

func TestObservePriceRecorded(t *testing.T) {
	before := testutil.ToFloat64(pricesRecorded)
	ObservePriceRecorded()
	assert.Equal(t, before+1, testutil.ToFloat64(pricesRecorded))
}
