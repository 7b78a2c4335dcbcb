package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

func types(alerts []models.Alert) []models.AlertType {
	out := make([]models.AlertType, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.Type)
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func TestEvaluateHighCPUAndLowDisk(t *testing.T) {
	m := models.SystemMetrics{
		CPU:    models.CPUUsage{OverallUsage: 95},
		Memory: models.MemoryUsage{Percent: 40},
		Disks:  []models.DiskInfo{{Mount: "/", Percent: 99}},
	}

	alerts := New(DefaultThresholds()).Evaluate(m)
	assert.ElementsMatch(t, []models.AlertType{models.AlertHighCPU, models.AlertLowDisk}, types(alerts))
}

func TestEvaluateMemory(t *testing.T) {
	e := New(DefaultThresholds())

	alerts := e.Evaluate(models.SystemMetrics{Memory: models.MemoryUsage{Percent: 95}})
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertHighMemory, alerts[0].Type)
	assert.Equal(t, models.SeverityWarning, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "95.0%")

	assert.Empty(t, e.Evaluate(models.SystemMetrics{Memory: models.MemoryUsage{Percent: 50}}))
}

func TestEvaluateDeterministic(t *testing.T) {
	m := models.SystemMetrics{
		CPU:    models.CPUUsage{OverallUsage: 99},
		Memory: models.MemoryUsage{Percent: 91},
		Disks:  []models.DiskInfo{{Mount: "/", Percent: 95}, {Mount: "/data", Percent: 97}},
	}
	e := New(DefaultThresholds())

	assert.Equal(t, e.Evaluate(m), e.Evaluate(m))
}

func TestEvaluateThresholdBoundaries(t *testing.T) {
	e := New(DefaultThresholds())

	// CPU and memory must exceed the threshold; disk fires at it.
	alerts := e.Evaluate(models.SystemMetrics{
		CPU:    models.CPUUsage{OverallUsage: 90},
		Memory: models.MemoryUsage{Percent: 90},
		Disks:  []models.DiskInfo{{Mount: "/", Percent: 90}},
	})
	assert.Equal(t, []models.AlertType{models.AlertLowDisk}, types(alerts))
	assert.Equal(t, models.SeverityCritical, alerts[0].Severity)
}

func TestEvaluateLowDiskAnyVolume(t *testing.T) {
	alerts := New(DefaultThresholds()).Evaluate(models.SystemMetrics{
		Disk:  &models.DiskInfo{Mount: "/", Percent: 30},
		Disks: []models.DiskInfo{{Mount: "/", Percent: 30}, {Mount: "/var", Percent: 96.5}},
	})
	require.Len(t, alerts, 1)
	assert.Equal(t, "Low disk space: /var 96.5% used", alerts[0].Message)
}

func TestEvaluatePrimaryDiskOnly(t *testing.T) {
	alerts := New(DefaultThresholds()).Evaluate(models.SystemMetrics{
		Disk: &models.DiskInfo{Mount: "C:", Percent: 92},
	})
	assert.Equal(t, []models.AlertType{models.AlertLowDisk}, types(alerts))
}

func TestEvaluateNoAlertsIsEmptyNotNil(t *testing.T) {
	alerts := New(DefaultThresholds()).Evaluate(models.SystemMetrics{})
	assert.NotNil(t, alerts)
	assert.Empty(t, alerts)
}

func TestEvaluateNetworkPredicate(t *testing.T) {
	e := New(DefaultThresholds(), WithNetworkPredicate(RateAbove(1024*1024)))

	quiet := models.SystemMetrics{Network: &models.NetworkCounters{SendRate: ptr(100), RecvRate: ptr(200)}}
	assert.Empty(t, e.Evaluate(quiet))

	busy := models.SystemMetrics{Network: &models.NetworkCounters{SendRate: ptr(5 * 1024 * 1024), RecvRate: ptr(10)}}
	alerts := e.Evaluate(busy)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertNetworkAnomaly, alerts[0].Type)
	assert.Equal(t, "Network send 5.0 MiB/s exceeds 1.0 MiB/s", alerts[0].Message)

	// First sample has no rate.
	assert.Empty(t, e.Evaluate(models.SystemMetrics{Network: &models.NetworkCounters{BytesSent: 1 << 40}}))
}

func TestEvaluateCustomPredicate(t *testing.T) {
	calls := 0
	e := New(DefaultThresholds(), WithNetworkPredicate(func(n models.NetworkCounters) (string, bool) {
		calls++
		return "custom", n.PacketsRecv > 10
	}))

	alerts := e.Evaluate(models.SystemMetrics{Network: &models.NetworkCounters{PacketsRecv: 11}})
	require.Len(t, alerts, 1)
	assert.Equal(t, "custom", alerts[0].Message)

	// No counters, no call.
	e.Evaluate(models.SystemMetrics{})
	assert.Equal(t, 1, calls)
}

func TestRateAboveDisabled(t *testing.T) {
	_, ok := RateAbove(0)(models.NetworkCounters{SendRate: ptr(1e12)})
	assert.False(t, ok)
}
