package process

import (
	"bytes"
	"os/exec"
	"sync"

	"github.com/jowharshamshiri/Janus/registry"
)

// outputCap bounds captured stdout/stderr per stream. Listeners under
// stress can emit a line per datagram; unbounded capture would grow
// without limit over a long run.
const outputCap = 64 * 1024

// boundedBuffer is a concurrency-safe writer that keeps the most recent
// outputCap bytes. The tail matters for diagnosing a crash; the head
// does not.
type boundedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Write(p)
	if b.buf.Len() > outputCap {
		data := b.buf.Bytes()
		trimmed := make([]byte, outputCap)
		copy(trimmed, data[len(data)-outputCap:])
		b.buf.Reset()
		b.buf.Write(trimmed)
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Handle represents one spawned listener process. Handles are created by
// Manager.Start and must be released with Manager.Stop.
type Handle struct {
	desc       *registry.Descriptor
	socketPath string

	cmd    *exec.Cmd
	stdout *boundedBuffer
	stderr *boundedBuffer

	// done closes when Wait returns; waitErr is valid after that.
	done    chan struct{}
	waitErr error

	mu      sync.Mutex
	stopped bool
}

// Name returns the implementation name this handle belongs to.
func (h *Handle) Name() string {
	return h.desc.Name
}

// Descriptor returns the descriptor the process was started from.
func (h *Handle) Descriptor() *registry.Descriptor {
	return h.desc
}

// SocketPath returns the Unix socket path the listener serves on.
func (h *Handle) SocketPath() string {
	return h.socketPath
}

// PID returns the operating system process id, or 0 before start.
func (h *Handle) PID() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Exited reports whether the process has terminated.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Output returns the captured tail of stdout and stderr.
func (h *Handle) Output() (string, string) {
	return h.stdout.String(), h.stderr.String()
}
