// Package stress drives sustained traffic at one listener from every
// client implementation, cycling the pattern catalog until a deadline
// and judging the run against a success-rate threshold.
//
// The dispatch loop is sequential by default so runs are reproducible;
// the concurrent-clients mode fans dispatches out over a bounded worker
// pool when configured. Either way, a failed request is a counter
// update, never an abort: the run always plays out to its deadline.
package stress

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jowharshamshiri/Janus/dgram"
	"github.com/jowharshamshiri/Janus/errors"
	"github.com/jowharshamshiri/Janus/metric"
	"github.com/jowharshamshiri/Janus/pattern"
	"github.com/jowharshamshiri/Janus/pkg/worker"
	"github.com/jowharshamshiri/Janus/process"
	"github.com/jowharshamshiri/Janus/registry"
)

// Failure tags for the error breakdown.
const (
	tagTimeout            = "timeout"
	tagTransport          = "transport_error"
	tagProtocol           = "protocol_error"
	tagNonzeroExit        = "nonzero_exit"
	tagValidationMismatch = "validation_mismatch"
	tagCancelled          = "cancelled"
)

// cliExtraTimeout is added on top of the pattern timeout when invoking
// an external sender; the CLI needs time to start and exit around the
// request itself.
const cliExtraTimeout = 5 * time.Second

// cliWaitDelay bounds how long a sender invocation may hold its output
// pipes open after the deadline or its own exit. A sender that leaves a
// background child sharing stdout must not stall the dispatch loop for
// that child's lifetime.
const cliWaitDelay = 2 * time.Second

// Config carries the stress run tunables. Zero values select defaults.
type Config struct {
	RequestTimeout   time.Duration // per-request reply deadline (default 5s)
	SuccessThreshold float64       // pass mark in percent (default 95)
	ProgressInterval time.Duration // progress log cadence (default 30s)

	// Workers >1 enables the concurrent-clients mode: dispatches fan
	// out over a bounded pool instead of the sequential loop.
	Workers int

	Logger  *slog.Logger
	Metrics *metric.Metrics
}

// Orchestrator runs stress tests against listener implementations.
type Orchestrator struct {
	cfg      Config
	mgr      *process.Manager
	tracker  *process.Tracker
	client   *dgram.Client
	patterns []pattern.Pattern
}

// NewOrchestrator creates a stress orchestrator over the full pattern
// catalog.
func NewOrchestrator(mgr *process.Manager, tracker *process.Tracker, client *dgram.Client, cfg Config) *Orchestrator {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 95.0
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		mgr:      mgr,
		tracker:  tracker,
		client:   client,
		patterns: pattern.Catalog(),
	}
}

// dispatchJob is one unit of work for the concurrent-clients pool.
type dispatchJob struct {
	client *registry.Descriptor
	pat    pattern.Pattern
}

// Run stress-tests one server: build and start it, drive requests from
// every client until the duration elapses, stop it, and judge the run.
// Startup failures yield an Error verdict with no requests attempted.
func (o *Orchestrator) Run(ctx context.Context, server *registry.Descriptor, clients []*registry.Descriptor, duration time.Duration) *Statistics {
	stats := NewStatistics(server.Name)
	startedAt := time.Now()

	if len(clients) == 0 {
		stats.Verdict = VerdictError
		stats.Message = "no client implementations to drive traffic"
		return stats
	}

	if err := o.mgr.Build(ctx, server); err != nil {
		stats.Verdict = VerdictError
		stats.Message = "build failed: " + err.Error()
		return stats
	}

	handle, err := o.mgr.Start(ctx, server)
	if err != nil {
		stats.Verdict = VerdictError
		stats.Message = "server failed to start: " + err.Error()
		return stats
	}
	o.tracker.Track(handle)
	defer o.tracker.Stop(handle)

	o.cfg.Logger.Info("stress run starting",
		"server", server.Name, "clients", len(clients), "duration", duration)

	runCtx, cancel := context.WithDeadline(ctx, startedAt.Add(duration))
	defer cancel()

	progressDone := o.logProgress(runCtx, stats, startedAt, duration)

	if o.cfg.Workers > 1 {
		o.runConcurrent(runCtx, handle.SocketPath(), clients, stats)
	} else {
		o.runSequential(runCtx, handle.SocketPath(), clients, stats)
	}

	cancel()
	<-progressDone

	stats.finish(time.Since(startedAt), o.cfg.SuccessThreshold)
	o.logSummary(stats)
	return stats
}

// runSequential is the deterministic dispatch loop: round-robin client,
// cycled pattern, one exchange at a time.
func (o *Orchestrator) runSequential(ctx context.Context, serverSocket string, clients []*registry.Descriptor, stats *Statistics) {
	limiters := make(map[time.Duration]*rate.Limiter)
	idx := 0
	for ctx.Err() == nil {
		for _, client := range clients {
			if ctx.Err() != nil {
				return
			}
			p := o.patterns[idx%len(o.patterns)]
			idx++
			if !o.pace(ctx, limiters, p) {
				return
			}
			o.dispatch(ctx, client, serverSocket, p, stats)
		}
	}
}

// runConcurrent fans dispatches out over a bounded worker pool. The
// submission loop still paces; workers absorb slow exchanges.
func (o *Orchestrator) runConcurrent(ctx context.Context, serverSocket string, clients []*registry.Descriptor, stats *Statistics) {
	pool := worker.NewPool(o.cfg.Workers, 0, func(_ context.Context, job dispatchJob) error {
		// Workers outlive the run deadline to finish in-flight
		// exchanges; dispatch carries its own timeouts.
		o.dispatch(context.WithoutCancel(ctx), job.client, serverSocket, job.pat, stats)
		return nil
	})
	pool.Start(context.WithoutCancel(ctx))

	limiters := make(map[time.Duration]*rate.Limiter)
	idx := 0
submission:
	for ctx.Err() == nil {
		for _, client := range clients {
			if ctx.Err() != nil {
				break submission
			}
			p := o.patterns[idx%len(o.patterns)]
			idx++
			if !o.pace(ctx, limiters, p) {
				break submission
			}
			if err := pool.Submit(ctx, dispatchJob{client: client, pat: p}); err != nil {
				break submission
			}
		}
	}

	// Every in-flight dispatch is bounded by its pattern timeout plus the
	// CLI allowances, so the drain budget covers the slowest pattern.
	budget := o.cfg.RequestTimeout
	for _, p := range o.patterns {
		if t := p.Timeout(o.cfg.RequestTimeout); t > budget {
			budget = t
		}
	}
	if err := pool.Drain(budget + cliExtraTimeout + cliWaitDelay); err != nil {
		o.cfg.Logger.Warn("worker pool drain timed out", "error", err)
	}
}

// pace blocks until the pattern's class limiter admits one exchange.
// Reports false when the run deadline arrived while waiting.
func (o *Orchestrator) pace(ctx context.Context, limiters map[time.Duration]*rate.Limiter, p pattern.Pattern) bool {
	gap := p.Gap()
	lim, ok := limiters[gap]
	if !ok {
		lim = rate.NewLimiter(rate.Every(gap), 1)
		limiters[gap] = lim
	}
	return lim.Wait(ctx) == nil
}

// dispatch performs one exchange and records its outcome. Clients with
// an external sender go through the CLI path; everything else uses the
// in-harness datagram client.
func (o *Orchestrator) dispatch(ctx context.Context, client *registry.Descriptor, serverSocket string, p pattern.Pattern, stats *Statistics) {
	start := time.Now()
	var ok bool
	var tag string
	if client.HasSender() {
		ok, tag = o.dispatchCLI(ctx, client, serverSocket, p)
	} else {
		ok, tag = o.dispatchDgram(ctx, serverSocket, p)
	}
	stats.record(p.Type, client.Name, ok, tag)

	if o.cfg.Metrics != nil {
		status := "success"
		if !ok {
			status = "failure"
		}
		o.cfg.Metrics.RequestsTotal.WithLabelValues(p.Type, client.Name, status).Inc()
		o.cfg.Metrics.RequestDuration.WithLabelValues(p.Type).Observe(time.Since(start).Seconds())
	}
}

// dispatchDgram sends through the in-harness client and judges the
// structured reply. Transport-level errors never satisfy an induced
// fault expectation; only a peer-reported fault does.
func (o *Orchestrator) dispatchDgram(ctx context.Context, serverSocket string, p pattern.Pattern) (bool, string) {
	reply, err := o.client.Request(ctx, serverSocket, p.Command, p.Args(), p.Timeout(o.cfg.RequestTimeout))
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrTransportTimeout):
			return false, tagTimeout
		case errors.Is(err, errors.ErrProtocol):
			return false, tagProtocol
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return false, tagCancelled
		default:
			return false, tagTransport
		}
	}
	if !p.EvaluateReply(reply) {
		return false, tagValidationMismatch
	}
	return true, ""
}

// dispatchCLI invokes the implementation's own sender and judges exit
// status plus output. This is the only opaque path; stdout heuristics
// apply here and nowhere else.
func (o *Orchestrator) dispatchCLI(ctx context.Context, client *registry.Descriptor, serverSocket string, p pattern.Pattern) (bool, string) {
	argv := client.SendCommand(serverSocket, p.Command, p.Message)
	if len(argv) == 0 {
		return false, tagNonzeroExit
	}

	cliCtx, cancel := context.WithTimeout(ctx, p.Timeout(o.cfg.RequestTimeout)+cliExtraTimeout)
	defer cancel()

	cmd := exec.CommandContext(cliCtx, argv[0], argv[1:]...)
	cmd.Dir = client.Dir
	cmd.WaitDelay = cliWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	// ErrWaitDelay means the sender itself exited cleanly but an orphaned
	// child kept the pipes open past the delay; judge the output it wrote.
	exitOK := err == nil || errors.Is(err, exec.ErrWaitDelay)

	if cliCtx.Err() == context.DeadlineExceeded {
		return false, tagTimeout
	}
	if p.EvaluateSendOutput(exitOK, stdout.String(), stderr.String()) {
		return true, ""
	}
	if !exitOK {
		return false, tagNonzeroExit
	}
	return false, tagValidationMismatch
}

// logProgress emits a snapshot line every ProgressInterval until ctx
// ends. The returned channel closes when the logger goroutine exits.
func (o *Orchestrator) logProgress(ctx context.Context, stats *Statistics, startedAt time.Time, duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(o.cfg.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				total, successful, perPattern, perClient := stats.snapshot()
				elapsed := time.Since(startedAt)
				remaining := duration - elapsed
				if remaining < 0 {
					remaining = 0
				}
				successRate := 0.0
				if total > 0 {
					successRate = float64(successful) / float64(total) * 100
				}
				clientCounts := make([]string, 0, len(perClient))
				for name, c := range perClient {
					clientCounts = append(clientCounts, name+":"+strconv.FormatUint(c.Total, 10))
				}
				o.cfg.Logger.Info("stress progress",
					"server", stats.Server,
					"elapsed", elapsed.Round(time.Second),
					"remaining", remaining.Round(time.Second),
					"total_requests", total,
					"success_rate", successRate,
					"top_patterns", strings.Join(topPatterns(perPattern, 3), ", "),
					"client_requests", strings.Join(clientCounts, ", "))
			}
		}
	}()
	return done
}

// logSummary emits the end-of-run breakdown. Counters are read through a
// locked copy; a straggler from a timed-out drain may still be recording.
func (o *Orchestrator) logSummary(stats *Statistics) {
	total, successful, failed, perPattern, perClient, errorTags := stats.breakdown()

	o.cfg.Logger.Info("stress run complete",
		"server", stats.Server,
		"verdict", string(stats.Verdict),
		"duration", stats.Duration.Round(time.Millisecond),
		"total_requests", total,
		"successful", successful,
		"failed", failed,
		"success_rate", stats.SuccessRate(),
		"request_rate", stats.RequestRate())

	for _, name := range topPatterns(perPattern, len(perPattern)) {
		c := perPattern[name]
		o.cfg.Logger.Info("pattern breakdown",
			"pattern", name, "total", c.Total, "success_rate", c.SuccessRate())
	}
	for name, c := range perClient {
		o.cfg.Logger.Info("client breakdown",
			"client", name, "total", c.Total, "success_rate", c.SuccessRate())
	}
	for tag, count := range errorTags {
		o.cfg.Logger.Info("error breakdown", "tag", tag, "count", count)
	}
}

