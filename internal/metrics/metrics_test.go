package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.RecordTick("bridge", true, false)
	m.RecordTick("bridge", true, true)
	m.RecordTick("bridge", false, true)
	m.RecordDropped("bridge")
	m.RecordHoldCompleted("bridge")
	m.RecordHoldReset("plank")
	m.RecordRuleUpdate("bridge", "api", "changed")
	m.RecordDetectorError()
	m.SetSessionActive(true)
	m.ObserveTick()()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("bridge", "pass")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TicksTotal.WithLabelValues("bridge", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StableGood.WithLabelValues("bridge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesDropped.WithLabelValues("bridge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HoldsCompleted.WithLabelValues("bridge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HoldResets.WithLabelValues("plank")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RuleUpdates.WithLabelValues("bridge", "api", "changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectorErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsActive))
	assert.Equal(t, 1, testutil.CollectAndCount(m.TickDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordTick("bridge", true, true)
		m.RecordDropped("bridge")
		m.RecordHoldCompleted("bridge")
		m.RecordHoldReset("bridge")
		m.RecordRuleUpdate("bridge", "api", "changed")
		m.RecordDetectorError()
		m.SetSessionActive(true)
		m.ObserveTick()()
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, DefaultPath, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RecordHoldCompleted("plank")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `asana_holds_completed_total{pose="plank"} 1`)
}
