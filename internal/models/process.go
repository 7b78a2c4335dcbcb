package models

// ProcessRecord is a best-effort, single point-in-time read of one process.
// PID and Name are always set. Any other field is nil when the platform does
// not support it or the agent was not allowed to read it.
type ProcessRecord struct {
	PID            int32         `json:"pid"`
	Name           string        `json:"name"`
	Status         *string       `json:"status"`
	Exe            *string       `json:"exe"`
	Cmdline        []string      `json:"cmdline"`
	Cwd            *string       `json:"cwd"`
	ParentPID      *int32        `json:"parent_pid"`
	CreateTime     *int64        `json:"create_time"` // milliseconds since epoch
	Nice           *int32        `json:"nice"`
	Username       *string       `json:"username"`
	Uids           []int32       `json:"uids"`
	Gids           []int32       `json:"gids"`
	Memory         ProcessMemory `json:"memory"`
	CPU            ProcessCPU    `json:"cpu"`
	IO             *ProcessIO    `json:"io"`
	NumFDs         *int32        `json:"num_fds"`
	NumCtxSwitches *CtxSwitches  `json:"num_ctx_switches"`
	OpenFiles      []string      `json:"open_files"`
	Connections    []Connection  `json:"connections"`
	NumConnections *int          `json:"num_connections"`
	Threads        []ThreadTimes `json:"threads"`
}

// ProcessMemory holds memory usage in bytes. RSS and VMS are always read;
// the remaining fields depend on the platform.
type ProcessMemory struct {
	RSS     uint64   `json:"rss"`
	VMS     uint64   `json:"vms"`
	Percent *float64 `json:"percent"`
	Shared  *uint64  `json:"shared"`
	Data    *uint64  `json:"data"`
	Stack   *uint64  `json:"stack"`
}

// ProcessCPU holds CPU usage. Percent may exceed 100 on multi-core hosts.
type ProcessCPU struct {
	Percent    float64   `json:"percent"`
	NumThreads *int32    `json:"num_threads"`
	Times      *CPUTimes `json:"cpu_times"`
	Affinity   []int     `json:"affinity"`
}

// CPUTimes holds per-mode CPU time in seconds.
type CPUTimes struct {
	User   float64 `json:"user"`
	System float64 `json:"system"`
	Iowait float64 `json:"iowait"`
}

// ProcessIO holds I/O counters. Character counts include reads and writes
// served from the page cache and are only known on some platforms.
type ProcessIO struct {
	ReadBytes  uint64  `json:"read_bytes"`
	WriteBytes uint64  `json:"write_bytes"`
	ReadChars  *uint64 `json:"read_chars"`
	WriteChars *uint64 `json:"write_chars"`
}

// CtxSwitches counts voluntary and involuntary context switches.
type CtxSwitches struct {
	Voluntary   int64 `json:"voluntary"`
	Involuntary int64 `json:"involuntary"`
}

// Connection is one network endpoint owned by a process.
type Connection struct {
	FD         uint32   `json:"fd"`
	Family     string   `json:"family"`
	Type       string   `json:"type"`
	LocalAddr  *Address `json:"laddr"`
	RemoteAddr *Address `json:"raddr"`
	Status     string   `json:"status"`
}

// Address is an IP endpoint.
type Address struct {
	IP   string `json:"ip"`
	Port uint32 `json:"port"`
}

// ThreadTimes holds CPU time for a single thread in seconds.
type ThreadTimes struct {
	ID         int32   `json:"id"`
	UserTime   float64 `json:"user_time"`
	SystemTime float64 `json:"system_time"`
}
