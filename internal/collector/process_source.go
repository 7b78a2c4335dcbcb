package collector

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shirou/gopsutil/v3/cpu"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// defaultHandleCacheSize bounds the number of process handles kept between
// sampling passes for CPU percent deltas.
const defaultHandleCacheSize = 4096

// Handle is one enumerated process. Every read may fail independently: the
// process can exit or deny access between enumeration and inspection.
type Handle interface {
	PID() int32
	Name(ctx context.Context) (string, error)
	Status(ctx context.Context) ([]string, error)
	CPUPercent(ctx context.Context) (float64, error)
	MemoryInfo(ctx context.Context) (*process.MemoryInfoStat, error)
	MemoryPercent(ctx context.Context) (float32, error)
	Exe(ctx context.Context) (string, error)
	Cmdline(ctx context.Context) ([]string, error)
	Cwd(ctx context.Context) (string, error)
	Ppid(ctx context.Context) (int32, error)
	CreateTime(ctx context.Context) (int64, error)
	Nice(ctx context.Context) (int32, error)
	Username(ctx context.Context) (string, error)
	Uids(ctx context.Context) ([]int32, error)
	Gids(ctx context.Context) ([]int32, error)
	NumThreads(ctx context.Context) (int32, error)
	Times(ctx context.Context) (*cpu.TimesStat, error)
	IOCounters(ctx context.Context) (*process.IOCountersStat, error)
	NumFDs(ctx context.Context) (int32, error)
	NumCtxSwitches(ctx context.Context) (*process.NumCtxSwitchesStat, error)
	OpenFiles(ctx context.Context) ([]process.OpenFilesStat, error)
	Connections(ctx context.Context) ([]psnet.ConnectionStat, error)
	Threads(ctx context.Context) (map[int32]*cpu.TimesStat, error)
}

// Optional capabilities. A Handle implements these only on platforms where
// the underlying data exists; the sampler type-asserts before reading.
type (
	memoryDetailReader interface {
		MemoryDetail(ctx context.Context) (MemoryDetail, error)
	}
	ioCharReader interface {
		IOChars(ctx context.Context) (read, write uint64, err error)
	}
	affinityReader interface {
		CPUAffinity(ctx context.Context) ([]int, error)
	}
)

// MemoryDetail holds the platform-specific memory breakdown of a process.
type MemoryDetail struct {
	Shared uint64
	Data   uint64
	Stack  uint64
}

// ProcessSource enumerates the processes visible to the agent.
type ProcessSource interface {
	Processes(ctx context.Context) ([]Handle, error)
}

// cachedProcess keeps a gopsutil handle alive across passes so that CPU
// percent can be computed against the previous pass instead of since start.
type cachedProcess struct {
	proc    *process.Process
	created int64
}

// PsutilSource enumerates processes through gopsutil.
// It is not safe for concurrent use; ProcessSampler serializes access.
type PsutilSource struct {
	handles *lru.Cache[int32, cachedProcess]
}

// NewPsutilSource creates a gopsutil-backed process source.
func NewPsutilSource() *PsutilSource {
	cache, err := lru.New[int32, cachedProcess](defaultHandleCacheSize)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &PsutilSource{handles: cache}
}

// Processes lists all processes. Processes that vanish between listing the
// PIDs and opening them are left out.
func (s *PsutilSource) Processes(ctx context.Context) ([]Handle, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, err
	}

	handles := make([]Handle, 0, len(pids))
	for _, pid := range pids {
		fresh, err := process.NewProcessWithContext(ctx, pid)
		if err != nil {
			continue
		}
		created, err := fresh.CreateTimeWithContext(ctx)
		handles = append(handles, s.handleFor(fresh, created, err))
	}
	return handles, nil
}

// handleFor reuses the cached handle for fresh.Pid unless the PID was
// recycled. Without a create time recycling cannot be ruled out, so the
// cache is bypassed and the stale entry dropped.
func (s *PsutilSource) handleFor(fresh *process.Process, created int64, createErr error) *psHandle {
	if createErr != nil {
		s.handles.Remove(fresh.Pid)
		return &psHandle{proc: fresh}
	}
	if cached, ok := s.handles.Get(fresh.Pid); ok && cached.created == created {
		return &psHandle{proc: cached.proc, warm: true}
	}
	s.handles.Add(fresh.Pid, cachedProcess{proc: fresh, created: created})
	return &psHandle{proc: fresh}
}

// psHandle adapts *process.Process to Handle.
type psHandle struct {
	proc *process.Process
	warm bool
}

func (h *psHandle) PID() int32 { return h.proc.Pid }

func (h *psHandle) Name(ctx context.Context) (string, error) { return h.proc.NameWithContext(ctx) }

func (h *psHandle) Status(ctx context.Context) ([]string, error) {
	return h.proc.StatusWithContext(ctx)
}

// CPUPercent returns usage since the previous pass for handles seen before,
// and the lifetime average for processes seen for the first time.
func (h *psHandle) CPUPercent(ctx context.Context) (float64, error) {
	if h.warm {
		return h.proc.PercentWithContext(ctx, 0)
	}
	pct, err := h.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return 0, err
	}
	// Prime the delta baseline for the next pass.
	_, _ = h.proc.PercentWithContext(ctx, 0)
	return pct, nil
}

func (h *psHandle) MemoryInfo(ctx context.Context) (*process.MemoryInfoStat, error) {
	return h.proc.MemoryInfoWithContext(ctx)
}

func (h *psHandle) MemoryPercent(ctx context.Context) (float32, error) {
	return h.proc.MemoryPercentWithContext(ctx)
}

func (h *psHandle) Exe(ctx context.Context) (string, error) { return h.proc.ExeWithContext(ctx) }

func (h *psHandle) Cmdline(ctx context.Context) ([]string, error) {
	return h.proc.CmdlineSliceWithContext(ctx)
}

func (h *psHandle) Cwd(ctx context.Context) (string, error) { return h.proc.CwdWithContext(ctx) }

func (h *psHandle) Ppid(ctx context.Context) (int32, error) { return h.proc.PpidWithContext(ctx) }

func (h *psHandle) CreateTime(ctx context.Context) (int64, error) {
	return h.proc.CreateTimeWithContext(ctx)
}

func (h *psHandle) Nice(ctx context.Context) (int32, error) { return h.proc.NiceWithContext(ctx) }

func (h *psHandle) Username(ctx context.Context) (string, error) {
	return h.proc.UsernameWithContext(ctx)
}

func (h *psHandle) Uids(ctx context.Context) ([]int32, error) { return h.proc.UidsWithContext(ctx) }

func (h *psHandle) Gids(ctx context.Context) ([]int32, error) { return h.proc.GidsWithContext(ctx) }

func (h *psHandle) NumThreads(ctx context.Context) (int32, error) {
	return h.proc.NumThreadsWithContext(ctx)
}

func (h *psHandle) Times(ctx context.Context) (*cpu.TimesStat, error) {
	return h.proc.TimesWithContext(ctx)
}

func (h *psHandle) IOCounters(ctx context.Context) (*process.IOCountersStat, error) {
	return h.proc.IOCountersWithContext(ctx)
}

func (h *psHandle) NumFDs(ctx context.Context) (int32, error) { return h.proc.NumFDsWithContext(ctx) }

func (h *psHandle) NumCtxSwitches(ctx context.Context) (*process.NumCtxSwitchesStat, error) {
	return h.proc.NumCtxSwitchesWithContext(ctx)
}

func (h *psHandle) OpenFiles(ctx context.Context) ([]process.OpenFilesStat, error) {
	return h.proc.OpenFilesWithContext(ctx)
}

func (h *psHandle) Connections(ctx context.Context) ([]psnet.ConnectionStat, error) {
	return h.proc.ConnectionsWithContext(ctx)
}

func (h *psHandle) Threads(ctx context.Context) (map[int32]*cpu.TimesStat, error) {
	return h.proc.ThreadsWithContext(ctx)
}
