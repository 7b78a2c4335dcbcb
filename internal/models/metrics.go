// Package models defines the snapshot data structures used throughout the agent.
// These structures are serialized to JSON for transmission to the collector.
//
// Fields whose presence depends on the platform or on the agent's privileges
// are pointers or nil-able slices without omitempty: nil is encoded as an
// explicit JSON null, which is never the same thing as zero or empty.
package models

import "time"

// Unknown marks an identity fact that could not be determined.
const Unknown = "unknown"

// CounterSemantics describes how network byte counters are reported.
const CounterSemantics = "cumulative_since_boot"

// SystemMetrics holds the point-in-time system-wide resource readings.
type SystemMetrics struct {
	CPU     CPUUsage         `json:"cpu"`
	Memory  MemoryUsage      `json:"memory"`
	Disk    *DiskInfo        `json:"disk"`
	Disks   []DiskInfo       `json:"disks"`
	Network *NetworkCounters `json:"network"`
}

// CPUUsage holds overall and per-core utilization in percent.
type CPUUsage struct {
	OverallUsage float64   `json:"overall_usage"`
	PerCore      []float64 `json:"per_core"`
}

// MemoryUsage holds physical memory usage.
type MemoryUsage struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Percent float64 `json:"percent"`
}

// DiskInfo represents usage for a single mounted volume.
type DiskInfo struct {
	Mount   string  `json:"mount"`
	Fs      string  `json:"fstype"`
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// NetworkCounters holds OS byte and packet counters summed over all interfaces.
// Byte and packet counts are cumulative since boot, not deltas; consumers
// wanting per-interval values must diff consecutive snapshots. SendRate and
// RecvRate are bytes per second against the previous sample and are nil on
// the first sample or after a counter reset.
type NetworkCounters struct {
	Counters    string   `json:"counters"`
	BytesSent   uint64   `json:"bytes_sent"`
	BytesRecv   uint64   `json:"bytes_recv"`
	PacketsSent uint64   `json:"packets_sent"`
	PacketsRecv uint64   `json:"packets_recv"`
	SendRate    *float64 `json:"send_rate"`
	RecvRate    *float64 `json:"recv_rate"`
}

// Snapshot is one immutable bundle of identity, metrics, processes and alerts
// captured at a single point in time. It must not be modified once built.
type Snapshot struct {
	ID           string          `json:"id"`
	AgentVersion string          `json:"agent_version"`
	CapturedAt   time.Time       `json:"captured_at"`
	Identity     SystemIdentity  `json:"identity"`
	Metrics      SystemMetrics   `json:"metrics"`
	Processes    []ProcessRecord `json:"processes"`
	Alerts       []Alert         `json:"alerts"`
}
