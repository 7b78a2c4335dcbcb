// Process sampler: enumerates OS processes and builds normalized records.
// Uses gopsutil for cross-platform process inspection.
package collector

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

// normalizedStatuses maps raw gopsutil status strings to a consistent set of
// values used across all platforms.
var normalizedStatuses = map[string]string{
	"running":               "running",
	"sleeping":              "sleeping",
	"idle":                  "idle",
	"stopped":               "stopped",
	"zombie":                "zombie",
	"wait":                  "sleeping",
	"lock":                  "sleeping",
	"sleep":                 "sleeping",
	"blocked":               "sleeping",
	"disk-sleep":            "sleeping",
	"tracing-stop":          "stopped",
	"stop":                  "stopped",
	"dead":                  "zombie",
	"wake-kill":             "sleeping",
	"waking":                "running",
	"parked":                "idle",
	"idle-interrupt":        "idle",
	"suspended":             "stopped",
	"uninterruptible-sleep": "sleeping",
}

// normalizeStatus maps a raw gopsutil status string to a consistent value.
// Unknown but non-empty statuses are returned lowercased.
func normalizeStatus(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if mapped, ok := normalizedStatuses[key]; ok {
		return mapped
	}
	return key
}

// ProcessSampler produces ProcessRecords for every readable process.
//
// A process that cannot be read at all (it exited, access was denied, or it
// is a zombie) is skipped. A process that is readable but has a sub-resource
// that fails or is unsupported gets that field set to nil.
type ProcessSampler struct {
	source ProcessSource
	logger *zap.Logger
	mu     sync.Mutex
}

// NewProcessSampler creates a sampler over the given source.
func NewProcessSampler(source ProcessSource, logger *zap.Logger) *ProcessSampler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProcessSampler{source: source, logger: logger}
}

// Sample reads every visible process, sorted by CPU usage descending.
func (s *ProcessSampler) Sample(ctx context.Context) ([]models.ProcessRecord, error) {
	return s.sample(ctx, 0)
}

// SampleTop returns at most n records, sorted by CPU usage descending.
// CPU usage is read for every process first; the full record is then read
// only for the busiest ones. A candidate that vanishes during the full read
// is replaced by the next one in line.
func (s *ProcessSampler) SampleTop(ctx context.Context, n int) ([]models.ProcessRecord, error) {
	if n <= 0 {
		return []models.ProcessRecord{}, nil
	}
	return s.sample(ctx, n)
}

type candidate struct {
	handle Handle
	cpu    float64
}

func (s *ProcessSampler) sample(ctx context.Context, limit int) ([]models.ProcessRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles, err := s.source.Processes(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}

	candidates := make([]candidate, 0, len(handles))
	for _, h := range handles {
		pct, err := h.CPUPercent(ctx)
		if err != nil {
			s.logSkip(h, "cpu", err)
			continue
		}
		candidates = append(candidates, candidate{handle: h, cpu: pct})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].cpu != candidates[j].cpu {
			return candidates[i].cpu > candidates[j].cpu
		}
		return candidates[i].handle.PID() < candidates[j].handle.PID()
	})

	capacity := len(candidates)
	if limit > 0 && limit < capacity {
		capacity = limit
	}
	records := make([]models.ProcessRecord, 0, capacity)
	for _, c := range candidates {
		if limit > 0 && len(records) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, ok := s.readRecord(ctx, c.handle, c.cpu)
		if ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// readRecord reads one process. The boolean is false when the process must
// be skipped because its identity or core usage could not be read.
func (s *ProcessSampler) readRecord(ctx context.Context, h Handle, cpuPct float64) (models.ProcessRecord, bool) {
	name, err := h.Name(ctx)
	if err != nil {
		s.logSkip(h, "name", err)
		return models.ProcessRecord{}, false
	}

	rec := models.ProcessRecord{PID: h.PID(), Name: name}

	if statuses, err := h.Status(ctx); err == nil && len(statuses) > 0 {
		status := normalizeStatus(statuses[0])
		if status == process.Zombie {
			s.logger.Debug("Skipping zombie process", zap.Int32("pid", rec.PID))
			return models.ProcessRecord{}, false
		}
		rec.Status = &status
	}

	mem, err := h.MemoryInfo(ctx)
	if err != nil {
		s.logSkip(h, "memory", err)
		return models.ProcessRecord{}, false
	}
	rec.Memory = models.ProcessMemory{RSS: mem.RSS, VMS: mem.VMS}
	rec.CPU = models.ProcessCPU{Percent: cpuPct}

	s.readIdentity(ctx, h, &rec)
	s.readUsage(ctx, h, &rec)
	s.readHandles(ctx, h, &rec)

	return rec, true
}

func (s *ProcessSampler) readIdentity(ctx context.Context, h Handle, rec *models.ProcessRecord) {
	if v, err := h.Exe(ctx); err == nil {
		rec.Exe = &v
	}
	if v, err := h.Cmdline(ctx); err == nil {
		if v == nil {
			v = []string{}
		}
		rec.Cmdline = v
	}
	if v, err := h.Cwd(ctx); err == nil {
		rec.Cwd = &v
	}
	if v, err := h.Ppid(ctx); err == nil {
		rec.ParentPID = &v
	}
	if v, err := h.CreateTime(ctx); err == nil {
		rec.CreateTime = &v
	}
	if v, err := h.Nice(ctx); err == nil {
		rec.Nice = &v
	}
	if v, err := h.Username(ctx); err == nil {
		rec.Username = &v
	}
	if v, err := h.Uids(ctx); err == nil && v != nil {
		rec.Uids = v
	}
	if v, err := h.Gids(ctx); err == nil && v != nil {
		rec.Gids = v
	}
}

func (s *ProcessSampler) readUsage(ctx context.Context, h Handle, rec *models.ProcessRecord) {
	if v, err := h.MemoryPercent(ctx); err == nil {
		pct := float64(v)
		rec.Memory.Percent = &pct
	}
	if r, ok := h.(memoryDetailReader); ok {
		if d, err := r.MemoryDetail(ctx); err == nil {
			rec.Memory.Shared = &d.Shared
			rec.Memory.Data = &d.Data
			rec.Memory.Stack = &d.Stack
		}
	}

	if v, err := h.NumThreads(ctx); err == nil {
		rec.CPU.NumThreads = &v
	}
	if t, err := h.Times(ctx); err == nil && t != nil {
		rec.CPU.Times = &models.CPUTimes{User: t.User, System: t.System, Iowait: t.Iowait}
	}
	if r, ok := h.(affinityReader); ok {
		if v, err := r.CPUAffinity(ctx); err == nil {
			rec.CPU.Affinity = v
		}
	}

	if io, err := h.IOCounters(ctx); err == nil && io != nil {
		rec.IO = &models.ProcessIO{ReadBytes: io.ReadBytes, WriteBytes: io.WriteBytes}
		if r, ok := h.(ioCharReader); ok {
			if read, write, err := r.IOChars(ctx); err == nil {
				rec.IO.ReadChars = &read
				rec.IO.WriteChars = &write
			}
		}
	}

	if v, err := h.NumCtxSwitches(ctx); err == nil && v != nil {
		rec.NumCtxSwitches = &models.CtxSwitches{Voluntary: v.Voluntary, Involuntary: v.Involuntary}
	}
}

func (s *ProcessSampler) readHandles(ctx context.Context, h Handle, rec *models.ProcessRecord) {
	if v, err := h.NumFDs(ctx); err == nil {
		rec.NumFDs = &v
	}

	if files, err := h.OpenFiles(ctx); err == nil {
		paths := make([]string, 0, len(files))
		for _, f := range files {
			paths = append(paths, f.Path)
		}
		rec.OpenFiles = paths
	}

	if conns, err := h.Connections(ctx); err == nil {
		out := make([]models.Connection, 0, len(conns))
		for _, c := range conns {
			out = append(out, models.Connection{
				FD:         c.Fd,
				Family:     familyName(c.Family),
				Type:       socketTypeName(c.Type),
				LocalAddr:  toAddress(c.Laddr.IP, c.Laddr.Port),
				RemoteAddr: toAddress(c.Raddr.IP, c.Raddr.Port),
				Status:     c.Status,
			})
		}
		n := len(out)
		rec.Connections = out
		rec.NumConnections = &n
	}

	if threads, err := h.Threads(ctx); err == nil {
		out := make([]models.ThreadTimes, 0, len(threads))
		for id, t := range threads {
			if t == nil {
				continue
			}
			out = append(out, models.ThreadTimes{ID: id, UserTime: t.User, SystemTime: t.System})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		rec.Threads = out
	}
}

func (s *ProcessSampler) logSkip(h Handle, field string, err error) {
	s.logger.Debug("Skipping process",
		zap.Int32("pid", h.PID()),
		zap.String("field", field),
		zap.String("reason", skipReason(err)),
		zap.Error(err))
}

// toAddress returns nil for an unset endpoint (e.g. the remote side of a
// listening socket).
func toAddress(ip string, port uint32) *models.Address {
	if ip == "" && port == 0 {
		return nil
	}
	return &models.Address{IP: ip, Port: port}
}

// familyName maps an address family number to its conventional name.
// AF_INET6 differs between Linux (10), Windows (23) and macOS (30).
func familyName(family uint32) string {
	switch family {
	case 1:
		return "AF_UNIX"
	case 2:
		return "AF_INET"
	case 10, 23, 30:
		return "AF_INET6"
	default:
		return fmt.Sprintf("AF_%d", family)
	}
}

func socketTypeName(t uint32) string {
	switch t {
	case 1:
		return "SOCK_STREAM"
	case 2:
		return "SOCK_DGRAM"
	case 3:
		return "SOCK_RAW"
	case 5:
		return "SOCK_SEQPACKET"
	default:
		return fmt.Sprintf("SOCK_%d", t)
	}
}
