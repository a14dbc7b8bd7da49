package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New("trackgen")

	m.ObserveLookup("hit")
	m.ObserveLookup("hit")
	m.ObserveLookup("miss")
	m.ObserveGenerated(false)
	m.ObserveGenerated(true)
	m.ObserveLostRace()
	m.ObserveRequest("http", "/v1/tracking-number", "200", 3*time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.lookups.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.generated.WithLabelValues("true")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.lostRaces))
	require.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("http", "/v1/tracking-number", "200")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New("trackgen")
	m.ObserveGenerated(false)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), `trackgen_tracking_numbers_generated_total{repaired="false"} 1`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	require.NotPanics(t, func() {
		_ = New("trackgen")
		_ = New("trackgen")
	})
}
