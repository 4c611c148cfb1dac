// Package process manages the lifecycle of listener processes under
// test: building them, spawning them, probing readiness, and tearing
// them down. All liveness bookkeeping goes through an explicit Tracker
// owned by the caller; nothing here keeps global state.
package process

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jowharshamshiri/Janus/errors"
	"github.com/jowharshamshiri/Janus/health"
	"github.com/jowharshamshiri/Janus/metric"
	"github.com/jowharshamshiri/Janus/pkg/retry"
	"github.com/jowharshamshiri/Janus/registry"
)

// Listener state gauge values.
const (
	gaugeDown     = 0
	gaugeStarting = 1
	gaugeReady    = 2
)

// pipeGrace bounds how long Wait may block on output pipes after a
// process exits or is killed. A listener or build that forks a child
// sharing its stdout must not keep the harness waiting for that child.
const pipeGrace = 2 * time.Second

// ManagerConfig carries the lifecycle tunables. Zero values select the
// documented defaults.
type ManagerConfig struct {
	ReadyTimeout time.Duration // bound on readiness polling (default 10s)
	PollInterval time.Duration // readiness probe cadence (default 100ms)
	SettleDelay  time.Duration // wait after socket appears (default 200ms)
	StopGrace    time.Duration // SIGTERM grace before SIGKILL (default 5s)
	BuildTimeout time.Duration // bound on one build invocation (default 5m)

	Logger  *slog.Logger
	Monitor *health.Monitor
	Metrics *metric.Metrics
}

// Manager builds, starts, and stops listener processes. Managers are
// safe for concurrent use across descriptors.
type Manager struct {
	cfg ManagerConfig

	buildMu sync.Mutex
	built   map[string]error
}

// NewManager creates a lifecycle manager with defaults applied.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 200 * time.Millisecond
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 5 * time.Second
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Monitor == nil {
		cfg.Monitor = health.NewMonitor()
	}
	return &Manager{
		cfg:   cfg,
		built: make(map[string]error),
	}
}

// Monitor returns the health monitor lifecycle transitions report to.
func (m *Manager) Monitor() *health.Monitor {
	return m.cfg.Monitor
}

// Build runs the descriptor's build command in its directory. Each
// descriptor builds at most once per Manager; later calls return the
// memoized result. Descriptors without a build step succeed trivially.
func (m *Manager) Build(ctx context.Context, desc *registry.Descriptor) error {
	if !desc.HasBuildStep() {
		return nil
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	if result, ok := m.built[desc.Name]; ok {
		return result
	}

	m.cfg.Logger.Info("building implementation",
		"implementation", desc.Name, "command", strings.Join(desc.BuildArgs, " "))

	buildCtx, cancel := context.WithTimeout(ctx, m.cfg.BuildTimeout)
	defer cancel()

	cmd := exec.CommandContext(buildCtx, desc.BuildArgs[0], desc.BuildArgs[1:]...)
	cmd.Dir = desc.Dir
	cmd.WaitDelay = pipeGrace
	output, err := cmd.CombinedOutput()
	if err != nil && errors.Is(err, exec.ErrWaitDelay) {
		// The build itself exited cleanly; a leftover child held the
		// output pipe past the grace.
		err = nil
	}

	var result error
	if err != nil {
		result = fmt.Errorf("%w: %s: %v\n%s",
			errors.ErrBuildFailed, desc.Name, err, tail(string(output), 2048))
		m.observeBuild(desc.Name, "failure")
		m.cfg.Logger.Error("build failed", "implementation", desc.Name, "error", err)
	} else {
		m.observeBuild(desc.Name, "success")
		m.cfg.Logger.Info("build complete", "implementation", desc.Name)
	}
	m.built[desc.Name] = result
	return result
}

// Start spawns the descriptor's listener and blocks until it is ready to
// accept datagrams or the readiness budget is exhausted. On readiness
// failure the spawned process is terminated before Start returns.
func (m *Manager) Start(ctx context.Context, desc *registry.Descriptor) (*Handle, error) {
	// A socket file left by a previous run would make bind fail in the
	// listener; remove it before spawning.
	if err := os.Remove(desc.SocketPath); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "Manager", "Start", "remove stale socket")
	}

	argv := desc.ListenCommand(desc.SocketPath)
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: %s has empty listen command", errors.ErrSpawnFailed, desc.Name)
	}

	h := &Handle{
		desc:       desc,
		socketPath: desc.SocketPath,
		stdout:     &boundedBuffer{},
		stderr:     &boundedBuffer{},
		done:       make(chan struct{}),
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = desc.Dir
	cmd.WaitDelay = pipeGrace
	cmd.Stdout = h.stdout
	cmd.Stderr = h.stderr
	h.cmd = cmd

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errors.ErrSpawnFailed, desc.Name, err)
	}

	m.cfg.Monitor.Update(desc.Name, health.StateStarting, "")
	m.setListenerGauge(desc.Name, gaugeStarting)
	m.cfg.Logger.Info("listener started",
		"implementation", desc.Name, "pid", cmd.Process.Pid, "socket", desc.SocketPath)

	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	startedAt := time.Now()
	if err := m.awaitReady(ctx, h); err != nil {
		m.terminate(h)
		m.cfg.Monitor.Update(desc.Name, health.StateCrashed, err.Error())
		m.setListenerGauge(desc.Name, gaugeDown)
		return nil, err
	}

	m.cfg.Monitor.Update(desc.Name, health.StateReady, "")
	m.setListenerGauge(desc.Name, gaugeReady)
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.ListenersStarted.Inc()
		m.cfg.Metrics.ReadinessSeconds.Observe(time.Since(startedAt).Seconds())
	}
	return h, nil
}

// awaitReady polls for the listener socket file or the readiness line on
// stdout. A process exit before readiness is a crash, not a timeout.
func (m *Manager) awaitReady(ctx context.Context, h *Handle) error {
	cfg := retry.Poll(m.cfg.PollInterval, m.cfg.ReadyTimeout)
	settled := false

	err := retry.Do(ctx, cfg, func() error {
		if h.Exited() {
			stdout, stderr := h.Output()
			return retry.NonRetryable(fmt.Errorf("%w: %s exited before ready (%v)\nstdout: %s\nstderr: %s",
				errors.ErrProcessCrash, h.desc.Name, h.waitErr,
				tail(stdout, 1024), tail(stderr, 1024)))
		}
		// The readiness line short-circuits the settle delay; the
		// listener told us it is serving.
		if readinessAnnounced(h.stdout.String()) {
			settled = true
			return nil
		}
		if _, err := os.Stat(h.socketPath); err == nil {
			return nil
		}
		return errors.ErrReadinessTimeout
	})
	if err != nil {
		if retry.IsNonRetryable(err) || errors.Is(err, errors.ErrProcessCrash) {
			return err
		}
		return fmt.Errorf("%w: %s not ready within %s",
			errors.ErrReadinessTimeout, h.desc.Name, m.cfg.ReadyTimeout)
	}

	// The socket file appearing does not mean the listener is in its
	// receive loop yet; give it a moment.
	if !settled {
		select {
		case <-time.After(m.cfg.SettleDelay):
		case <-ctx.Done():
			return ctx.Err()
		case <-h.done:
			stdout, stderr := h.Output()
			return fmt.Errorf("%w: %s exited during settle (%v)\nstdout: %s\nstderr: %s",
				errors.ErrProcessCrash, h.desc.Name, h.waitErr,
				tail(stdout, 1024), tail(stderr, 1024))
		}
	}
	return nil
}

func readinessAnnounced(stdout string) bool {
	lowered := strings.ToLower(stdout)
	return strings.Contains(lowered, "listening on") || strings.Contains(lowered, "ready")
}

// Stop terminates the listener and removes its socket file. The first
// call owns the shutdown; later calls return ErrAlreadyStopped.
func (m *Manager) Stop(h *Handle) error {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return errors.ErrAlreadyStopped
	}
	h.stopped = true
	h.mu.Unlock()

	m.terminate(h)

	if err := os.Remove(h.socketPath); err != nil && !os.IsNotExist(err) {
		m.cfg.Logger.Warn("socket removal failed",
			"implementation", h.desc.Name, "socket", h.socketPath, "error", err)
	}

	m.cfg.Monitor.Update(h.desc.Name, health.StateStopped, "")
	m.setListenerGauge(h.desc.Name, gaugeDown)
	m.cfg.Logger.Info("listener stopped", "implementation", h.desc.Name, "pid", h.PID())
	return nil
}

// terminate delivers SIGTERM, waits up to the grace period, then SIGKILL.
func (m *Manager) terminate(h *Handle) {
	if h.Exited() {
		return
	}
	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Process already gone.
		return
	}
	select {
	case <-h.done:
		return
	case <-time.After(m.cfg.StopGrace):
	}
	m.cfg.Logger.Warn("listener ignored SIGTERM, killing",
		"implementation", h.desc.Name, "pid", h.PID())
	h.cmd.Process.Kill()
	// Wait returns within the pipe grace even when an orphaned child
	// keeps the output pipes open; bound the join regardless.
	select {
	case <-h.done:
	case <-time.After(pipeGrace + time.Second):
		m.cfg.Logger.Warn("listener wait did not return after SIGKILL",
			"implementation", h.desc.Name, "pid", h.PID())
	}
}

func (m *Manager) setListenerGauge(name string, value float64) {
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.ListenerState.WithLabelValues(name).Set(value)
	}
}

func (m *Manager) observeBuild(name, status string) {
	if m.cfg.Metrics != nil {
		m.cfg.Metrics.BuildsTotal.WithLabelValues(name, status).Inc()
	}
}

// tail returns the last max bytes of s.
func tail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}
