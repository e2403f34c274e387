package container

import "time"

// BindMount maps a host directory to /mnt inside the container, read-write.
type BindMount struct {
	HostPath string
}

// RunOptions configures a streamed container run.
type RunOptions struct {
	Mount          *BindMount
	Command        []string // overrides the image's CMD when set; the entrypoint is kept
	Deadline       time.Duration
	OnLog          func(chunk string)
	OnStat         func(stat Stat)
	LoggingMaxSize string // defaults to "10m"
	LoggingMaxFile string // defaults to "3"

	// ExposedPort, when set (e.g. "8081/tcp"), publishes that container
	// port to an ephemeral host port so a developer can reach a sandbox
	// service such as mitmproxy's web UI while the run is in flight.
	ExposedPort string
}

// Stat is one parsed frame of container resource usage.
type Stat struct {
	CPUPercent float64
	MemUsage   uint64
	MemLimit   uint64
	NetRx      uint64
	NetTx      uint64
}

// RunResult is the outcome of a completed streamed run.
type RunResult struct {
	Logs     string
	ExitCode int
	TimedOut bool
}
