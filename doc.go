// Package janus provides a conformance and stress-test harness for
// implementations of the Janus request/reply protocol over Unix-domain
// datagram sockets.
//
// # What the harness does
//
// Independent protocol implementations (different languages, different
// codebases) are treated as opaque build/listen/send artifacts. The harness:
//
//   - Builds and spawns listener processes, probing readiness by socket-file
//     existence or a sentinel stdout line (process package).
//   - Drives the wire protocol directly through an in-harness datagram RPC
//     client that correlates replies by a unique per-request reply socket
//     path (dgram and protocol packages).
//   - Cycles a static catalog of request patterns against a listener for a
//     fixed duration and computes a pass/fail verdict from aggregate
//     statistics (pattern and stress packages).
//   - Pairs every listener implementation against every sender
//     implementation, including self-pairs, and records one outcome per
//     request (matrix package).
//
// # Wire protocol
//
// One UTF-8 JSON object per datagram. A request carries a unique id, a
// channel id, a command name, optional args, a timestamp, and a reply_to
// path naming a not-yet-existing datagram socket owned by the requester.
// Because every request owns a dedicated reply address, the reply is
// unambiguous without in-band id matching; the cost is one socket-file
// create/bind/unlink cycle per request. A reply carries a success marker
// plus either a result payload or a structured error.
//
// Unix-domain SOCK_DGRAM is the only transport. There are no stream
// sockets and no persistent connections.
//
// # Layout
//
//   - registry, config: implementation descriptors and their file format
//   - process: listener lifecycle (build, spawn, readiness, stop, cleanup)
//   - protocol, dgram: wire envelopes and the datagram RPC client
//   - pattern, stress, matrix, outcome, report: test engine and results
//   - errors, health, metric, pkg/retry, pkg/worker: shared infrastructure
//   - cmd/janus: the CLI runner
//
// The harness never implements protocol business logic (echo, ping, custom
// handlers); that lives in the tested artifacts. Test doubles for package
// tests live in testutil.
package janus
