// Network I/O reader: gathers cumulative byte/packet counters and derives
// per-second rates against the previous sample.
// Uses gopsutil for cross-platform network metrics.
package collector

import (
	"context"
	"errors"
	"sync"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// NetTotals holds OS network counters summed over all interfaces.
type NetTotals struct {
	BytesSent   uint64
	BytesRecv   uint64
	PacketsSent uint64
	PacketsRecv uint64
}

// NetTotals gathers cumulative network counters across all interfaces.
func (h *PsutilHost) NetTotals(ctx context.Context) (NetTotals, error) {
	counters, err := psnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return NetTotals{}, err
	}
	if len(counters) == 0 {
		return NetTotals{}, errors.New("no network counters")
	}
	c := counters[0]
	return NetTotals{
		BytesSent:   c.BytesSent,
		BytesRecv:   c.BytesRecv,
		PacketsSent: c.PacketsSent,
		PacketsRecv: c.PacketsRecv,
	}, nil
}

// rateTracker remembers the previous reading to compute per-second rates.
// The reported counters themselves are never adjusted.
type rateTracker struct {
	mu          sync.Mutex
	last        NetTotals
	lastAt      time.Time
	initialized bool
}

// observe records cur and returns the wire representation. Rates are nil on
// the first observation and whenever a counter went backwards (reboot,
// interface removal, wraparound).
func (t *rateTracker) observe(cur NetTotals, now time.Time) *models.NetworkCounters {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := &models.NetworkCounters{
		Counters:    models.CounterSemantics,
		BytesSent:   cur.BytesSent,
		BytesRecv:   cur.BytesRecv,
		PacketsSent: cur.PacketsSent,
		PacketsRecv: cur.PacketsRecv,
	}

	elapsed := now.Sub(t.lastAt).Seconds()
	if t.initialized && elapsed > 0 &&
		cur.BytesSent >= t.last.BytesSent && cur.BytesRecv >= t.last.BytesRecv {
		sent := float64(cur.BytesSent-t.last.BytesSent) / elapsed
		recv := float64(cur.BytesRecv-t.last.BytesRecv) / elapsed
		out.SendRate = &sent
		out.RecvRate = &recv
	}

	t.last = cur
	t.lastAt = now
	t.initialized = true
	return out
}
