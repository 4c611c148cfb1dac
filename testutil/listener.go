// Package testutil provides in-process test doubles for harness tests:
// a reference listener speaking the full command set over a unixgram
// socket, and helpers for scripted external senders. The reference
// listener doubles as the self-pair baseline: a known-good peer any
// client-side change can be verified against without spawning a
// process.
package testutil

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jowharshamshiri/Janus/protocol"
)

// SlowProcessDelay is how long the reference listener's slow_process
// handler sleeps before replying.
const SlowProcessDelay = 100 * time.Millisecond

// Listener is an in-process datagram listener implementing the standard
// command set: ping, echo, get_info, validate, slow_process. Unknown
// commands get a structured UNKNOWN_COMMAND failure.
type Listener struct {
	socketPath string
	conn       *net.UnixConn
	wg         sync.WaitGroup

	mu       sync.Mutex
	received int
}

// StartListener binds the reference listener on socketPath and serves
// until the test ends.
func StartListener(t *testing.T, socketPath string) *Listener {
	t.Helper()

	os.Remove(socketPath)
	laddr, err := net.ResolveUnixAddr("unixgram", socketPath)
	if err != nil {
		t.Fatalf("resolve %s: %v", socketPath, err)
	}
	conn, err := net.ListenUnixgram("unixgram", laddr)
	if err != nil {
		t.Fatalf("bind %s: %v", socketPath, err)
	}

	l := &Listener{socketPath: socketPath, conn: conn}
	l.wg.Add(1)
	go l.serve()

	t.Cleanup(func() {
		conn.Close()
		os.Remove(socketPath)
		l.wg.Wait()
	})
	return l
}

// SocketPath returns the path the listener is bound on.
func (l *Listener) SocketPath() string {
	return l.socketPath
}

// Received returns how many well-formed requests arrived so far.
func (l *Listener) Received() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.received
}

func (l *Listener) serve() {
	defer l.wg.Done()
	buf := make([]byte, 64*1024)
	for {
		n, _, err := l.conn.ReadFromUnix(buf)
		if err != nil {
			return
		}
		req, err := protocol.DecodeRequest(buf[:n])
		if err != nil || req.ReplyTo == "" {
			continue
		}
		l.mu.Lock()
		l.received++
		l.mu.Unlock()

		reply := l.handle(req)
		data, err := json.Marshal(reply)
		if err != nil {
			continue
		}
		raddr := &net.UnixAddr{Name: req.ReplyTo, Net: "unixgram"}
		l.conn.WriteToUnix(data, raddr)
	}
}

func (l *Listener) handle(req *protocol.RequestEnvelope) map[string]any {
	message, _ := req.Args["message"].(string)

	switch req.Command {
	case "ping":
		return success(map[string]any{"status": "pong"})
	case "echo":
		return success(map[string]any{"echo": message})
	case "get_info":
		return success(map[string]any{
			"implementation": "testutil-reference",
			"version":        "1.0.0",
		})
	case "validate":
		var parsed any
		if err := json.Unmarshal([]byte(message), &parsed); err != nil {
			return success(map[string]any{"valid": false, "reason": "invalid json"})
		}
		return success(map[string]any{"valid": true})
	case "slow_process":
		time.Sleep(SlowProcessDelay)
		return success(map[string]any{"status": "processed", "delay_ms": SlowProcessDelay.Milliseconds()})
	default:
		return map[string]any{
			"success": false,
			"error": map[string]any{
				"code":    "UNKNOWN_COMMAND",
				"message": "no handler for " + req.Command,
			},
		}
	}
}

func success(result any) map[string]any {
	return map[string]any{"success": true, "result": result}
}

// SocketPath returns a short socket path under the system temp dir.
// t.TempDir paths can exceed the sun_path limit on some platforms, so
// this deliberately avoids them.
func SocketPath(t *testing.T, name string) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "janus")
	if err != nil {
		t.Fatalf("mkdtemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, name)
}
