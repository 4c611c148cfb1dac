// Package matrix runs the full listener × sender cross-product,
// including self-pairs. Every pair gets a fresh listener process, a
// short fixed call sequence, and an orderly teardown; one pair's
// failure never reaches the next.
//
// Pairs can run in parallel up to a bound, with one hard constraint:
// two pairs sharing a listener implementation never overlap, because
// the listener socket path is the mutual-exclusion resource.
package matrix

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jowharshamshiri/Janus/dgram"
	"github.com/jowharshamshiri/Janus/errors"
	"github.com/jowharshamshiri/Janus/outcome"
	"github.com/jowharshamshiri/Janus/pattern"
	"github.com/jowharshamshiri/Janus/process"
	"github.com/jowharshamshiri/Janus/registry"
)

// senderWaitDelay bounds how long a sender invocation may hold its
// output pipes open after its own exit or the call deadline, so a
// forking sender cannot stall the pair sequence.
const senderWaitDelay = 2 * time.Second

// Pair is one listener/sender combination.
type Pair struct {
	Listener *registry.Descriptor
	Sender   *registry.Descriptor
}

// Name renders the conventional pair label.
func (p Pair) Name() string {
	return fmt.Sprintf("%s -> %s", p.Sender.Name, p.Listener.Name)
}

// Config carries the matrix run tunables.
type Config struct {
	RequestTimeout time.Duration // per-call reply deadline (default 5s)

	// Parallel bounds concurrent pair execution. Values below 2 run
	// the matrix sequentially.
	Parallel int

	Logger *slog.Logger
}

// Runner executes the cross-product matrix.
type Runner struct {
	cfg     Config
	mgr     *process.Manager
	tracker *process.Tracker
	client  *dgram.Client
}

// NewRunner creates a matrix runner.
func NewRunner(mgr *process.Manager, tracker *process.Tracker, client *dgram.Client, cfg Config) *Runner {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runner{cfg: cfg, mgr: mgr, tracker: tracker, client: client}
}

// Pairs returns the full cross-product in deterministic order,
// self-pairs included.
func Pairs(reg *registry.Registry) []Pair {
	descriptors := reg.All()
	pairs := make([]Pair, 0, len(descriptors)*len(descriptors))
	for _, listener := range descriptors {
		for _, sender := range descriptors {
			pairs = append(pairs, Pair{Listener: listener, Sender: sender})
		}
	}
	return pairs
}

// Run executes every pair and records one outcome per call into the
// collector. The returned summary reflects the whole matrix.
func (r *Runner) Run(ctx context.Context, reg *registry.Registry, collector *outcome.Collector) outcome.Summary {
	pairs := Pairs(reg)
	r.cfg.Logger.Info("matrix run starting",
		"implementations", reg.Len(), "pairs", len(pairs))

	if r.cfg.Parallel > 1 {
		r.runParallel(ctx, pairs, collector)
	} else {
		for _, pair := range pairs {
			r.runPair(ctx, pair, collector)
		}
	}

	summary := collector.Summarize()
	r.cfg.Logger.Info("matrix run complete",
		"total", summary.Total,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"errors", summary.Errors,
		"timeouts", summary.Timeouts,
		"success", summary.Success())
	return summary
}

// runParallel fans pairs out over an errgroup, serializing pairs that
// share a listener.
func (r *Runner) runParallel(ctx context.Context, pairs []Pair, collector *outcome.Collector) {
	locks := make(map[string]*sync.Mutex)
	for _, pair := range pairs {
		if _, ok := locks[pair.Listener.Name]; !ok {
			locks[pair.Listener.Name] = &sync.Mutex{}
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallel)
	for _, pair := range pairs {
		lock := locks[pair.Listener.Name]
		g.Go(func() error {
			lock.Lock()
			defer lock.Unlock()
			r.runPair(gctx, pair, collector)
			return nil
		})
	}
	g.Wait()
}

// callSpec is one step of the fixed per-pair sequence.
type callSpec struct {
	operation string
	command   string
	message   string
}

func (r *Runner) pairSequence(pair Pair) []callSpec {
	return []callSpec{
		{operation: "discovery", command: "get_info", message: "info_request"},
		{operation: "echo", command: "echo", message: "hello_from_" + pair.Sender.Name},
		{operation: "ping", command: "ping", message: "ping"},
	}
}

// runPair starts the listener, runs the call sequence, and stops the
// listener. Failures become outcomes; nothing propagates.
func (r *Runner) runPair(ctx context.Context, pair Pair, collector *outcome.Collector) {
	if ctx.Err() != nil {
		collector.Add(outcome.Outcome{
			Name:     outcome.PairName(pair.Sender.Name, pair.Listener.Name, "startup"),
			Listener: pair.Listener.Name,
			Sender:   pair.Sender.Name,
			Status:   outcome.StatusSkip,
			Message:  "run cancelled",
		})
		return
	}

	r.cfg.Logger.Info("pair starting", "pair", pair.Name())
	start := time.Now()

	if err := r.mgr.Build(ctx, pair.Listener); err != nil {
		r.recordPairError(collector, pair, "build", start, err)
		return
	}
	if pair.Sender.Name != pair.Listener.Name {
		if err := r.mgr.Build(ctx, pair.Sender); err != nil {
			r.recordPairError(collector, pair, "build", start, err)
			return
		}
	}

	handle, err := r.mgr.Start(ctx, pair.Listener)
	if err != nil {
		r.recordPairError(collector, pair, "startup", start, err)
		return
	}
	r.tracker.Track(handle)
	defer r.tracker.Stop(handle)

	for _, call := range r.pairSequence(pair) {
		collector.Add(r.runCall(ctx, pair, handle.SocketPath(), call))
	}
}

func (r *Runner) recordPairError(collector *outcome.Collector, pair Pair, phase string, start time.Time, err error) {
	r.cfg.Logger.Warn("pair aborted", "pair", pair.Name(), "phase", phase, "error", err)
	collector.Add(outcome.Outcome{
		Name:     outcome.PairName(pair.Sender.Name, pair.Listener.Name, phase),
		Listener: pair.Listener.Name,
		Sender:   pair.Sender.Name,
		Status:   outcome.StatusError,
		Message:  err.Error(),
		Duration: time.Since(start),
	})
}

// runCall performs one exchange of the pair sequence and converts the
// result into an outcome.
func (r *Runner) runCall(ctx context.Context, pair Pair, serverSocket string, call callSpec) outcome.Outcome {
	o := outcome.Outcome{
		Name:     outcome.PairName(pair.Sender.Name, pair.Listener.Name, call.operation),
		Listener: pair.Listener.Name,
		Sender:   pair.Sender.Name,
	}
	start := time.Now()

	p := pattern.Pattern{
		Type:        "matrix_" + call.operation,
		Command:     call.command,
		Message:     call.message,
		ExpectReply: true,
	}

	var ok bool
	var err error
	if pair.Sender.HasSender() {
		ok, err = r.callCLI(ctx, pair.Sender, serverSocket, p)
	} else {
		ok, err = r.callDgram(ctx, serverSocket, p)
	}
	o.Duration = time.Since(start)

	switch {
	case err != nil && errors.Is(err, errors.ErrTransportTimeout):
		o.Status = outcome.StatusTimeout
		o.Message = err.Error()
	case err != nil:
		o.Status = outcome.StatusError
		o.Message = err.Error()
	case !ok:
		o.Status = outcome.StatusFail
		o.Message = fmt.Sprintf("%s reply failed validation", call.command)
	default:
		o.Status = outcome.StatusPass
	}
	return o
}

func (r *Runner) callDgram(ctx context.Context, serverSocket string, p pattern.Pattern) (bool, error) {
	reply, err := r.client.Request(ctx, serverSocket, p.Command, p.Args(), r.cfg.RequestTimeout)
	if err != nil {
		return false, err
	}
	return p.EvaluateReply(reply), nil
}

func (r *Runner) callCLI(ctx context.Context, sender *registry.Descriptor, serverSocket string, p pattern.Pattern) (bool, error) {
	argv := sender.SendCommand(serverSocket, p.Command, p.Message)
	if len(argv) == 0 {
		return false, fmt.Errorf("%w: %s has empty send command", errors.ErrSpawnFailed, sender.Name)
	}

	cliCtx, cancel := context.WithTimeout(ctx, r.cfg.RequestTimeout+5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cliCtx, argv[0], argv[1:]...)
	cmd.Dir = sender.Dir
	cmd.WaitDelay = senderWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if cliCtx.Err() == context.DeadlineExceeded {
		return false, fmt.Errorf("sender %s: %w", sender.Name, errors.ErrTransportTimeout)
	}
	// ErrWaitDelay means the sender exited cleanly but an orphaned child
	// kept the pipes open; judge the output it wrote.
	exitOK := err == nil || errors.Is(err, exec.ErrWaitDelay)
	return p.EvaluateSendOutput(exitOK, stdout.String(), stderr.String()), nil
}
