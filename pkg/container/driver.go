// Package container drives image builds and streamed container runs
// through the Docker engine API, surfacing live logs and resource stats
// to the orchestrator while it waits out a deadline.
package container

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLoggingMaxSize = "10m"
	defaultLoggingMaxFile = "3"
	pollInterval          = time.Second
)

// Driver builds images and runs containers against a Docker engine.
type Driver struct {
	cli *client.Client
}

// NewDriver connects to the Docker engine configured by the standard
// DOCKER_HOST/DOCKER_* environment, negotiating the API version.
func NewDriver() (*Driver, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("connect to docker engine: %w", err)
	}
	return &Driver{cli: cli}, nil
}

// Close releases the underlying Docker engine connection.
func (d *Driver) Close() error { return d.cli.Close() }

// BuildImage builds image from the directory at contextPath, with rm=true
// and an explicit linux/amd64 platform. dockerfileRel is relative to
// contextPath; an empty string uses "Dockerfile".
func (d *Driver) BuildImage(ctx context.Context, image, contextPath, dockerfileRel string) error {
	if dockerfileRel == "" {
		dockerfileRel = "Dockerfile"
	}

	buildCtx, err := tarDirectory(contextPath)
	if err != nil {
		return &BuildError{Image: image, Err: fmt.Errorf("tar build context: %w", err)}
	}

	resp, err := d.cli.ImageBuild(ctx, buildCtx, types.ImageBuildOptions{
		Tags:       []string{image},
		Dockerfile: dockerfileRel,
		Remove:     true,
		Platform:   "linux/amd64",
	})
	if err != nil {
		return &BuildError{Image: image, Err: err}
	}
	defer resp.Body.Close()

	// A failing build step does not fail the request; the engine reports it
	// as an "error" message inside the streamed build response.
	decoder := json.NewDecoder(resp.Body)
	for {
		var msg struct {
			Error string `json:"error"`
		}
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return &BuildError{Image: image, Err: fmt.Errorf("read build response: %w", err)}
		}
		if msg.Error != "" {
			return &BuildError{Image: image, Err: fmt.Errorf("%s", msg.Error)}
		}
	}
}

// RunWithStreaming starts image detached, streams its logs and stats to
// opts' callbacks, and waits for it to exit or for the deadline to
// elapse, force-removing the container on every exit path.
func (d *Driver) RunWithStreaming(ctx context.Context, image string, opts RunOptions) (*RunResult, error) {
	log := slog.With("image", image)

	maxSize := opts.LoggingMaxSize
	if maxSize == "" {
		maxSize = defaultLoggingMaxSize
	}
	maxFile := opts.LoggingMaxFile
	if maxFile == "" {
		maxFile = defaultLoggingMaxFile
	}

	hostConfig := &container.HostConfig{
		Privileged: true,
		LogConfig: container.LogConfig{
			Type: "json-file",
			Config: map[string]string{
				"max-size": maxSize,
				"max-file": maxFile,
			},
		},
	}
	if opts.Mount != nil {
		hostConfig.Binds = []string{opts.Mount.HostPath + ":/mnt:rw"}
	}

	cfg := &container.Config{Image: image}
	if len(opts.Command) > 0 {
		cfg.Cmd = opts.Command
	}

	if opts.ExposedPort != "" {
		exposedPorts, portBindings, err := buildPortConfig(opts.ExposedPort)
		if err != nil {
			return nil, &ContainerRunError{Image: image, Err: fmt.Errorf("parse exposed port %q: %w", opts.ExposedPort, err)}
		}
		cfg.ExposedPorts = exposedPorts
		hostConfig.PortBindings = portBindings
	}

	created, err := d.cli.ContainerCreate(ctx, cfg, hostConfig, nil, nil, "")
	if err != nil {
		return nil, &ContainerRunError{Image: image, Err: fmt.Errorf("create container: %w", err)}
	}
	containerID := created.ID

	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := d.cli.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			log.Warn("force-remove container failed", "container_id", containerID, "error", err)
		}
	}()

	if err := d.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, &ContainerRunError{Image: image, Err: fmt.Errorf("start container: %w", err)}
	}

	runCtx := ctx
	var cancelDeadline context.CancelFunc
	if opts.Deadline > 0 {
		runCtx, cancelDeadline = context.WithTimeout(ctx, opts.Deadline)
		defer cancelDeadline()
	}

	var accumulator strings.Builder
	group, groupCtx := errgroup.WithContext(context.Background())
	statsCtx, stopStats := context.WithCancel(groupCtx)
	defer stopStats()

	group.Go(func() error {
		return d.streamLogs(groupCtx, containerID, &accumulator, opts.OnLog)
	})
	group.Go(func() error {
		if err := d.streamStats(statsCtx, containerID, opts.OnStat); err != nil && statsCtx.Err() == nil {
			return err
		}
		return nil
	})

	exitCode, timedOut, pollErr := d.poll(runCtx, containerID)

	// The log stream ends on its own once the container has exited. The
	// stats stream keeps emitting frames for a stopped container until it
	// is removed, which happens only after this function returns, so it is
	// cancelled here before waiting on the observers.
	stopStats()
	if err := group.Wait(); err != nil {
		log.Debug("stream observer exited", "error", err)
	}

	if pollErr != nil {
		return nil, &ContainerRunError{Image: image, Err: pollErr}
	}

	return &RunResult{Logs: accumulator.String(), ExitCode: exitCode, TimedOut: timedOut}, nil
}

// poll reloads the container's status on a ~1-second cadence until it
// reaches exited/dead, or stops it once the deadline (encoded in ctx)
// elapses.
func (d *Driver) poll(ctx context.Context, containerID string) (exitCode int, timedOut bool, err error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			timedOut = true
			code, stopErr := d.stopAndWait(containerID)
			return code, timedOut, stopErr

		case <-ticker.C:
			inspect, inspectErr := d.cli.ContainerInspect(context.Background(), containerID)
			if inspectErr != nil {
				return 0, false, fmt.Errorf("inspect container: %w", inspectErr)
			}
			switch inspect.State.Status {
			case "exited", "dead":
				return inspect.State.ExitCode, false, nil
			}
		}
	}
}

// stopAndWait stops the container and waits for it to settle, returning
// its final exit code.
func (d *Driver) stopAndWait(containerID string) (int, error) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	timeoutSecs := 10
	if err := d.cli.ContainerStop(stopCtx, containerID, container.StopOptions{Timeout: &timeoutSecs}); err != nil {
		return 0, fmt.Errorf("stop container: %w", err)
	}

	inspect, err := d.cli.ContainerInspect(stopCtx, containerID)
	if err != nil {
		return 0, fmt.Errorf("inspect stopped container: %w", err)
	}
	return inspect.State.ExitCode, nil
}

// streamLogs follows the container's log stream, accumulating chunks and
// invoking onLog for each. It falls back to the container-attach stream
// when the configured logging driver refuses streaming reads.
//
// The container runs without a TTY, so both ContainerLogs and the attach
// fallback return a stdcopy-multiplexed stream (an 8-byte frame header
// ahead of each chunk of stdout/stderr); demultiplexing with
// stdcopy.StdCopy is required or the accumulated log text — and the
// section extraction it feeds — is corrupted with binary frame headers.
func (d *Driver) streamLogs(ctx context.Context, containerID string, accumulator *strings.Builder, onLog func(string)) error {
	reader, err := d.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
	})
	if err != nil {
		if isUnsupportedLoggingDriver(err) {
			reader, err = d.attachFallback(ctx, containerID)
			if err != nil {
				return err
			}
		} else {
			return fmt.Errorf("stream container logs: %w", err)
		}
	}
	defer reader.Close()

	w := &logWriter{accumulator: accumulator, onLog: onLog}
	if _, err := stdcopy.StdCopy(w, w, reader); err != nil {
		return err
	}
	return nil
}

// logWriter accumulates demultiplexed log chunks and forwards each write
// to onLog, preserving the chunk boundaries stdcopy.StdCopy produces.
type logWriter struct {
	accumulator *strings.Builder
	onLog       func(string)
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.accumulator.Write(p)
	if w.onLog != nil {
		w.onLog(string(p))
	}
	return len(p), nil
}

// attachFallback streams stdout/stderr via container attach, used when
// the logging driver does not support reading back its own logs.
func (d *Driver) attachFallback(ctx context.Context, containerID string) (io.ReadCloser, error) {
	resp, err := d.cli.ContainerAttach(ctx, containerID, container.AttachOptions{
		Stream: true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("attach to container: %w", err)
	}
	return resp.Conn, nil
}

func isUnsupportedLoggingDriver(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "configured logging driver does not support reading") ||
		strings.Contains(msg, "does not support reading")
}

// streamStats follows the container's stats stream, parsing each JSON
// frame into a Stat and invoking onStat.
func (d *Driver) streamStats(ctx context.Context, containerID string, onStat func(Stat)) error {
	if onStat == nil {
		return nil
	}

	resp, err := d.cli.ContainerStats(ctx, containerID, true)
	if err != nil {
		return fmt.Errorf("stream container stats: %w", err)
	}
	defer resp.Body.Close()

	decoder := json.NewDecoder(resp.Body)
	for {
		var frame container.StatsResponse
		if err := decoder.Decode(&frame); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		onStat(parseStat(frame))
	}
}

// buildPortConfig turns a port spec such as "8081/tcp" into the exposed-port
// set and ephemeral host binding Docker needs to publish it.
func buildPortConfig(spec string) (nat.PortSet, nat.PortMap, error) {
	return nat.ParsePortSpecs([]string{spec})
}

// parseStat computes the derived fields (cpu percent, summed network
// counters) from a raw Docker stats frame.
func parseStat(frame container.StatsResponse) Stat {
	cpuDelta := float64(frame.CPUStats.CPUUsage.TotalUsage) - float64(frame.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(frame.CPUStats.SystemUsage) - float64(frame.PreCPUStats.SystemUsage)

	onlineCPUs := float64(frame.CPUStats.OnlineCPUs)
	if onlineCPUs == 0 {
		onlineCPUs = float64(len(frame.CPUStats.CPUUsage.PercpuUsage))
	}
	if onlineCPUs == 0 {
		onlineCPUs = 1
	}

	var cpuPercent float64
	if systemDelta > 0 && cpuDelta > 0 {
		cpuPercent = (cpuDelta / systemDelta) * onlineCPUs * 100
	}

	var rx, tx uint64
	for _, iface := range frame.Networks {
		rx += iface.RxBytes
		tx += iface.TxBytes
	}

	return Stat{
		CPUPercent: cpuPercent,
		MemUsage:   frame.MemoryStats.Usage,
		MemLimit:   frame.MemoryStats.Limit,
		NetRx:      rx,
		NetTx:      tx,
	}
}

// tarDirectory packs dir into a tar archive suitable for use as a Docker
// build context.
func tarDirectory(dir string) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if relPath == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(relPath)
		if info.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}
