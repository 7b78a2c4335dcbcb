package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

func TestCycleCounters(t *testing.T) {
	r := New("test")

	r.CycleFinished(OutcomeSuccess)
	r.CycleFinished(OutcomeSuccess)
	r.CycleFinished(OutcomeTransient)
	r.TickSkipped()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.cycles.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cycles.WithLabelValues(OutcomeTransient)))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.cycles.WithLabelValues(OutcomePermanent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.skippedTicks))
}

func TestSnapshotGauges(t *testing.T) {
	r := New("test")

	r.SnapshotBuilt(models.Snapshot{
		Processes: make([]models.ProcessRecord, 7),
		Alerts: []models.Alert{
			models.NewAlert(models.AlertHighCPU, "cpu"),
			models.NewAlert(models.AlertLowDisk, "disk"),
		},
	})
	r.SnapshotSent(2048, time.Unix(1714550000, 0))

	assert.Equal(t, 7.0, testutil.ToFloat64(r.processes))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.activeAlerts.WithLabelValues("high-cpu")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.activeAlerts.WithLabelValues("high-memory")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(r.snapshotBytes))
	assert.Equal(t, 1714550000.0, testutil.ToFloat64(r.lastSuccess))

	// A later snapshot without alerts clears them.
	r.SnapshotBuilt(models.Snapshot{})
	assert.Equal(t, 0.0, testutil.ToFloat64(r.activeAlerts.WithLabelValues("high-cpu")))
}

func TestNilReporterIsNoop(t *testing.T) {
	var r *Reporter
	assert.NotPanics(t, func() {
		r.CycleFinished(OutcomeSuccess)
		r.CycleDuration(time.Second)
		r.TickSkipped()
		r.SnapshotBuilt(models.Snapshot{})
		r.SnapshotSent(1, time.Now())
		r.FallbackSaved()
	})
	assert.Nil(t, r.Registry())
}

func TestMetricsEndpoint(t *testing.T) {
	r := New("1.2.3")
	r.FallbackSaved()
	srv := NewServer("127.0.0.1:0", r, func() (string, string) { return "ok", "idle" }, nil)

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "devtrack_fallback_writes_total 1")
	assert.True(t, strings.Contains(body, `devtrack_agent_build_info{goarch=`))
	assert.Contains(t, body, `version="1.2.3"`)
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer("127.0.0.1:0", New("test"), func() (string, string) { return "last snapshot sent", "running" }, nil)

	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "last snapshot sent", resp.Status)
	assert.Equal(t, "running", resp.State)

	stopped := NewServer("127.0.0.1:0", New("test"), func() (string, string) { return "stopped", "stopped" }, nil)
	rec = httptest.NewRecorder()
	stopped.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
