//go:build linux

package collector

import (
	"context"
	"fmt"

	"github.com/prometheus/procfs"
	"golang.org/x/sys/unix"
)

// maxAffinityCPUs is the size of the kernel cpu_set_t in bits.
const maxAffinityCPUs = 1024

// MemoryDetail reads the shared size from /proc/<pid>/statm and the data and
// stack segment sizes (VmData, VmStk) from /proc/<pid>/status.
func (h *psHandle) MemoryDetail(ctx context.Context) (MemoryDetail, error) {
	ex, err := h.proc.MemoryInfoExWithContext(ctx)
	if err != nil {
		return MemoryDetail{}, err
	}
	proc, err := procfs.NewProc(int(h.proc.Pid))
	if err != nil {
		return MemoryDetail{}, err
	}
	status, err := proc.NewStatus()
	if err != nil {
		return MemoryDetail{}, fmt.Errorf("read status: %w", err)
	}
	return MemoryDetail{Shared: ex.Shared, Data: status.VmData, Stack: status.VmStk}, nil
}

// IOChars reads rchar/wchar from /proc/<pid>/io. gopsutil only exposes the
// storage-layer byte counters.
func (h *psHandle) IOChars(ctx context.Context) (uint64, uint64, error) {
	proc, err := procfs.NewProc(int(h.proc.Pid))
	if err != nil {
		return 0, 0, err
	}
	io, err := proc.IO()
	if err != nil {
		return 0, 0, err
	}
	return io.RChar, io.WChar, nil
}

// CPUAffinity returns the CPUs the process may be scheduled on.
func (h *psHandle) CPUAffinity(ctx context.Context) ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(int(h.proc.Pid), &set); err != nil {
		return nil, err
	}
	cpus := make([]int, 0, set.Count())
	for i := 0; i < maxAffinityCPUs && len(cpus) < set.Count(); i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
