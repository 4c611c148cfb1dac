package matrix

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jowharshamshiri/Janus/dgram"
	"github.com/jowharshamshiri/Janus/outcome"
	"github.com/jowharshamshiri/Janus/pattern"
	"github.com/jowharshamshiri/Janus/process"
	"github.com/jowharshamshiri/Janus/registry"
	"github.com/jowharshamshiri/Janus/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRunner(t *testing.T, cfg Config) (*Runner, *process.Tracker) {
	t.Helper()
	mgr := process.NewManager(process.ManagerConfig{
		ReadyTimeout: 2 * time.Second,
		PollInterval: 20 * time.Millisecond,
		SettleDelay:  10 * time.Millisecond,
		StopGrace:    time.Second,
		Logger:       quietLogger(),
	})
	tracker := process.NewTracker(mgr)
	t.Cleanup(tracker.CleanupAll)

	// Reply sockets live in the client dir; t.TempDir paths here exceed
	// sun_path for long test names, so use the short-path helper's dir.
	clientDir := filepath.Dir(testutil.SocketPath(t, "client.sock"))
	client, err := dgram.NewClient(clientDir, dgram.WithLogger(quietLogger()))
	require.NoError(t, err)

	if cfg.Logger == nil {
		cfg.Logger = quietLogger()
	}
	return NewRunner(mgr, tracker, client, cfg), tracker
}

// cliImplementation is a descriptor whose listener touches its socket
// path and whose sender prints a conforming success response.
func cliImplementation(t *testing.T, name string) *registry.Descriptor {
	t.Helper()
	send := testutil.WriteScript(t, "send.sh", `
echo "Response: Success=true"
echo "$3"
`)
	return &registry.Descriptor{
		Name:       name,
		Language:   "shell",
		Dir:        t.TempDir(),
		ListenArgs: []string{"/bin/sh", "-c", `touch "{socket}"; trap 'exit 0' TERM; while :; do sleep 1; done`},
		SendArgs:   []string{"/bin/sh", send, "{target}", "{command}", "{message}"},
		SocketPath: testutil.SocketPath(t, name+".sock"),
	}
}

func TestPairsFullCrossProduct(t *testing.T) {
	reg, err := registry.New([]*registry.Descriptor{
		cliImplementation(t, "alpha"),
		cliImplementation(t, "beta"),
		cliImplementation(t, "gamma"),
	})
	require.NoError(t, err)

	pairs := Pairs(reg)
	require.Len(t, pairs, 9)

	selfPairs := 0
	for _, p := range pairs {
		if p.Listener.Name == p.Sender.Name {
			selfPairs++
		}
	}
	assert.Equal(t, 3, selfPairs, "self-pairs must be included")

	// Deterministic: listener-major over name-sorted descriptors.
	assert.Equal(t, "alpha", pairs[0].Listener.Name)
	assert.Equal(t, "alpha", pairs[0].Sender.Name)
	assert.Equal(t, "beta", pairs[1].Sender.Name)
}

func TestRunCallSequenceAgainstReferenceListener(t *testing.T) {
	r, _ := testRunner(t, Config{RequestTimeout: 2 * time.Second})
	listener := testutil.StartListener(t, testutil.SocketPath(t, "ref.sock"))

	pair := Pair{
		Listener: &registry.Descriptor{Name: "ref"},
		Sender:   &registry.Descriptor{Name: "harness"},
	}
	for _, call := range r.pairSequence(pair) {
		o := r.runCall(context.Background(), pair, listener.SocketPath(), call)
		assert.Equal(t, outcome.StatusPass, o.Status,
			"%s: %s", o.Name, o.Message)
		assert.Greater(t, o.Duration, time.Duration(0))
	}
}

func TestRunCallUnreachableListenerIsError(t *testing.T) {
	r, _ := testRunner(t, Config{RequestTimeout: time.Second})
	pair := Pair{
		Listener: &registry.Descriptor{Name: "gone"},
		Sender:   &registry.Descriptor{Name: "harness"},
	}
	o := r.runCall(context.Background(), pair, testutil.SocketPath(t, "gone.sock"),
		callSpec{operation: "ping", command: "ping", message: "x"})
	assert.Equal(t, outcome.StatusError, o.Status)
}

func TestCallCLIForkingSenderReturnsPromptly(t *testing.T) {
	r, _ := testRunner(t, Config{RequestTimeout: 500 * time.Millisecond})
	// Prints a conforming response and exits, leaving a background child
	// holding the stdout pipe open.
	send := testutil.WriteScript(t, "fork.sh", `
sleep 30 &
echo "Response: Success=true"
echo "$3"
`)
	sender := &registry.Descriptor{
		Name:       "forky",
		Dir:        t.TempDir(),
		SendArgs:   []string{"/bin/sh", send, "{target}", "{command}", "{message}"},
		ListenArgs: []string{"/bin/sh", "-c", "sleep 1"},
		SocketPath: testutil.SocketPath(t, "forky.sock"),
	}
	p := pattern.Pattern{Type: "matrix_echo", Command: "echo", Message: "hello_from_forky", ExpectReply: true}

	start := time.Now()
	ok, err := r.callCLI(context.Background(), sender, testutil.SocketPath(t, "srv.sock"), p)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.True(t, ok, "sender exited cleanly with conforming output")
	assert.Less(t, elapsed, 10*time.Second,
		"the call must not wait out the orphaned child")
}

func TestRunMatrixWithCLISenders(t *testing.T) {
	r, tracker := testRunner(t, Config{})
	reg, err := registry.New([]*registry.Descriptor{
		cliImplementation(t, "alpha"),
		cliImplementation(t, "beta"),
	})
	require.NoError(t, err)

	collector := outcome.NewCollector()
	summary := r.Run(context.Background(), reg, collector)

	// 4 pairs of 3 calls each.
	assert.Equal(t, 12, summary.Total)
	assert.Equal(t, 12, summary.Passed)
	assert.True(t, summary.Success())
	assert.Equal(t, 0, tracker.Len(), "all listeners stopped after the run")
}

func TestRunPairFailureDoesNotAbortMatrix(t *testing.T) {
	r, _ := testRunner(t, Config{})
	crasher := cliImplementation(t, "crasher")
	crasher.ListenArgs = []string{"/bin/sh", "-c", `echo "{socket} refused" >&2; exit 3`}

	reg, err := registry.New([]*registry.Descriptor{
		cliImplementation(t, "alpha"),
		crasher,
	})
	require.NoError(t, err)

	collector := outcome.NewCollector()
	summary := r.Run(context.Background(), reg, collector)

	// Pairs with the crashing listener produce one error outcome each;
	// pairs with the healthy listener still pass all three calls.
	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, 6, summary.Passed)
	assert.False(t, summary.Success())
}

func TestRunParallelMatchesSequential(t *testing.T) {
	names := []string{"alpha", "beta", "gamma"}

	build := func(t *testing.T) *registry.Registry {
		descs := make([]*registry.Descriptor, 0, len(names))
		for _, n := range names {
			descs = append(descs, cliImplementation(t, n))
		}
		reg, err := registry.New(descs)
		require.NoError(t, err)
		return reg
	}

	rSeq, _ := testRunner(t, Config{})
	seq := rSeq.Run(context.Background(), build(t), outcome.NewCollector())

	rPar, tracker := testRunner(t, Config{Parallel: 4})
	par := rPar.Run(context.Background(), build(t), outcome.NewCollector())

	assert.Equal(t, seq.Total, par.Total)
	assert.Equal(t, seq.Passed, par.Passed)
	assert.True(t, par.Success())
	assert.Equal(t, 0, tracker.Len())
}

func TestRunCancelledContextSkips(t *testing.T) {
	r, _ := testRunner(t, Config{})
	reg, err := registry.New([]*registry.Descriptor{cliImplementation(t, "alpha")})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	collector := outcome.NewCollector()
	summary := r.Run(ctx, reg, collector)
	assert.Equal(t, summary.Total, summary.Skipped)
}
