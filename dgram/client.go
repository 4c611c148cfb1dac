// Package dgram implements the datagram RPC client side of the Janus
// protocol over Unix-domain SOCK_DGRAM sockets.
//
// Correlation works by reply address, not by id: every request binds a
// freshly generated, never-reused socket path, names it in reply_to, and
// waits on it for exactly one datagram. Concurrent requests therefore
// need no shared state - each owns its own return address. The price is
// one socket-file create/bind/unlink cycle per request, so the reply
// file must be removed on every exit path or sustained load leaks one
// file per call.
package dgram

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jowharshamshiri/Janus/errors"
	"github.com/jowharshamshiri/Janus/protocol"
)

// maxDatagram is the receive buffer for one reply datagram. Large enough
// for any reply a conforming peer sends; a larger datagram would have
// been rejected by the peer's own transport first.
const maxDatagram = 64 * 1024

// Client issues Janus requests to listener sockets. A Client is
// stateless between calls and safe for concurrent use; every in-flight
// request owns a distinct reply socket.
type Client struct {
	socketDir string
	channelID string
	logger    *slog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithChannel sets the channel id stamped on outgoing requests
func WithChannel(channelID string) Option {
	return func(c *Client) { c.channelID = channelID }
}

// WithLogger sets the client logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a client that places reply sockets under socketDir.
// The directory is created if missing.
func NewClient(socketDir string, opts ...Option) (*Client, error) {
	if socketDir == "" {
		socketDir = os.TempDir()
	}
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "Client", "NewClient", "create socket dir")
	}

	c := &Client{
		socketDir: socketDir,
		channelID: protocol.DefaultChannel,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// replyPath generates a fresh, never-reused reply socket path.
func (c *Client) replyPath() string {
	return filepath.Join(c.socketDir, fmt.Sprintf("reply_%s.sock", uuid.NewString()))
}

// Request sends one request datagram to targetSocket and awaits exactly
// one reply under the timeout.
//
// A reply that is well-formed JSON is returned as a ReplyEnvelope whether
// or not it signals success; the caller inspects Succeeded. The error
// return is reserved for the transport taxonomy:
//
//   - errors.ErrTransportTimeout: no datagram arrived in time
//   - errors.ErrTransport: bind or send failed
//   - errors.ErrProtocol: the reply was not valid JSON
//
// Timeouts are expected outcomes under test, not faults; callers must
// check errors.Is(err, errors.ErrTransportTimeout) before treating the
// error as exceptional.
func (c *Client) Request(ctx context.Context, targetSocket, command string, args map[string]any, timeout time.Duration) (*protocol.ReplyEnvelope, error) {
	replyPath := c.replyPath()

	laddr, err := net.ResolveUnixAddr("unixgram", replyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve reply address: %v", errors.ErrTransport, err)
	}

	conn, err := net.ListenUnixgram("unixgram", laddr)
	if err != nil {
		return nil, fmt.Errorf("%w: bind reply socket: %v", errors.ErrTransport, err)
	}
	// The reply file must disappear on every exit path - success,
	// failure, or timeout.
	defer func() {
		conn.Close()
		os.Remove(replyPath)
	}()

	env := protocol.NewRequest(c.channelID, command, args, replyPath, timeout)
	data, err := env.Encode()
	if err != nil {
		return nil, err
	}

	raddr := &net.UnixAddr{Name: targetSocket, Net: "unixgram"}
	if _, err := conn.WriteToUnix(data, raddr); err != nil {
		return nil, fmt.Errorf("%w: send to %s: %v", errors.ErrTransport, targetSocket, err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("%w: set deadline: %v", errors.ErrTransport, err)
	}

	// Unblock the read when the context is cancelled mid-wait.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetReadDeadline(time.Now())
		case <-watchDone:
		}
	}()

	buf := make([]byte, maxDatagram)
	n, _, err := conn.ReadFromUnix(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("request %q cancelled: %w", command, ctx.Err())
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			c.logger.Debug("request timed out",
				"command", command, "target", targetSocket, "timeout", timeout)
			// Classified transient: the listener may simply be saturated.
			return nil, errors.WrapTransient(
				fmt.Errorf("request %q to %s: %w", command, targetSocket, errors.ErrTransportTimeout),
				"Client", "Request", "await reply")
		}
		return nil, fmt.Errorf("%w: receive reply: %v", errors.ErrTransport, err)
	}

	reply, err := protocol.DecodeReply(buf[:n])
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// Notify sends one request datagram without awaiting a reply. Success is
// the send completing; the reply socket is still created and removed so
// the cleanup invariant holds uniformly across call types.
func (c *Client) Notify(ctx context.Context, targetSocket, command string, args map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	replyPath := c.replyPath()

	laddr, err := net.ResolveUnixAddr("unixgram", replyPath)
	if err != nil {
		return fmt.Errorf("%w: resolve reply address: %v", errors.ErrTransport, err)
	}
	conn, err := net.ListenUnixgram("unixgram", laddr)
	if err != nil {
		return fmt.Errorf("%w: bind reply socket: %v", errors.ErrTransport, err)
	}
	defer func() {
		conn.Close()
		os.Remove(replyPath)
	}()

	env := protocol.NewRequest(c.channelID, command, args, replyPath, 0)
	data, err := env.Encode()
	if err != nil {
		return err
	}

	raddr := &net.UnixAddr{Name: targetSocket, Net: "unixgram"}
	if _, err := conn.WriteToUnix(data, raddr); err != nil {
		return fmt.Errorf("%w: send to %s: %v", errors.ErrTransport, targetSocket, err)
	}
	return nil
}
