// Package pattern defines the static catalog of traffic patterns the
// stress orchestrator cycles through, and the evaluation rules that
// decide whether one exchange satisfied its pattern's expectations.
//
// Evaluation is two-mode. Structured replies from the in-harness
// datagram client are judged on the reply envelope. Output from an
// implementation's own command-line sender is opaque, so it is judged
// on exit status and stdout markers instead. The orchestrator picks the
// mode; patterns themselves are mode-agnostic.
package pattern

import (
	"strings"
	"time"

	"github.com/jowharshamshiri/Janus/protocol"
)

// Pattern describes one traffic shape: which command to send, with what
// payload, and what outcome counts as success.
type Pattern struct {
	// Type names the traffic class, e.g. "burst" or "large_payload".
	// It keys the per-pattern statistics and selects the pacing gap.
	Type    string
	Command string
	Message string

	// ExpectReply means the exchange must round-trip; without it the
	// send completing is the whole success criterion.
	ExpectReply bool

	// ExpectError inverts the judgment: the exchange succeeds when the
	// peer signals the induced fault.
	ExpectError bool

	// TimeoutSeconds overrides the default per-request timeout when
	// positive. Slow-operation patterns need more headroom.
	TimeoutSeconds float64
}

// Timeout returns the per-request deadline, falling back to def.
func (p Pattern) Timeout(def time.Duration) time.Duration {
	if p.TimeoutSeconds > 0 {
		return time.Duration(p.TimeoutSeconds * float64(time.Second))
	}
	return def
}

// Gap returns the pacing delay inserted after one exchange of this
// pattern. Burst patterns run nearly back-to-back; large payloads get
// extra breathing room.
func (p Pattern) Gap() time.Duration {
	switch p.Type {
	case "burst":
		return time.Millisecond
	case "fire_forget":
		return 5 * time.Millisecond
	case "large_payload":
		return 20 * time.Millisecond
	default:
		return 10 * time.Millisecond
	}
}

// Args returns the request arguments for this pattern.
func (p Pattern) Args() map[string]any {
	return map[string]any{"message": p.Message}
}

// validationFailureMarkers are the strings a conforming validate
// implementation may use to report that its input was not valid JSON.
var validationFailureMarkers = []string{
	`"valid":false`,
	`"valid": false`,
	"valid:false",
	"valid: false",
	"invalid json",
	"json format",
	"parse error",
	"malformed",
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// EvaluateReply judges a structured reply envelope against the pattern.
// A nil reply means no datagram arrived.
func (p Pattern) EvaluateReply(reply *protocol.ReplyEnvelope) bool {
	if p.ExpectError {
		if reply == nil {
			return false
		}
		if p.Command == "validate" && p.Type == "malformed_json" {
			// The exchange itself must complete; the validation must
			// fail. Either a structured failure or a reply carrying a
			// validity-false marker qualifies.
			if !reply.Succeeded() {
				return true
			}
			return containsAny(strings.ToLower(replyText(reply)), validationFailureMarkers)
		}
		return !reply.Succeeded()
	}

	if !p.ExpectReply {
		// Reaching evaluation at all means the send completed.
		return true
	}

	if reply == nil || !reply.Succeeded() {
		return false
	}
	return p.checkMarkers(replyText(reply), reply)
}

// EvaluateSendOutput judges the outcome of an external CLI sender
// invocation: process exit status plus captured output. This is the
// only place stdout heuristics apply.
func (p Pattern) EvaluateSendOutput(exitOK bool, stdout, stderr string) bool {
	if p.ExpectError {
		if p.Command == "validate" && p.Type == "malformed_json" {
			return exitOK && containsAny(strings.ToLower(stdout), validationFailureMarkers)
		}
		return !exitOK
	}

	if !p.ExpectReply {
		return exitOK
	}

	if !exitOK {
		return false
	}
	lowered := strings.ToLower(stdout)
	if !strings.Contains(lowered, "response: success=true") &&
		!strings.Contains(lowered, "success") {
		return false
	}
	return p.checkMarkers(stdout, nil)
}

// checkMarkers applies the per-command structural checks shared by both
// evaluation modes. text is the reply payload rendered as a string.
func (p Pattern) checkMarkers(text string, reply *protocol.ReplyEnvelope) bool {
	lowered := strings.ToLower(text)
	switch p.Command {
	case "ping":
		return strings.Contains(lowered, "pong") || strings.Contains(lowered, "success") ||
			(reply != nil && reply.Succeeded())
	case "echo":
		return strings.Contains(text, p.Message)
	case "get_info":
		return strings.Contains(lowered, "implementation") ||
			strings.Contains(lowered, "version") ||
			strings.Contains(lowered, "success") ||
			(reply != nil && reply.Succeeded())
	case "validate":
		return strings.Contains(lowered, "valid") ||
			strings.Contains(lowered, "true") ||
			strings.Contains(lowered, "success") ||
			(reply != nil && reply.Succeeded())
	case "slow_process":
		return strings.Contains(lowered, "processed") ||
			strings.Contains(lowered, "delay") ||
			strings.Contains(lowered, "success") ||
			(reply != nil && reply.Succeeded())
	default:
		return true
	}
}

// replyText renders the parts of a reply that structural checks inspect.
func replyText(reply *protocol.ReplyEnvelope) string {
	var sb strings.Builder
	sb.WriteString(reply.ResultText())
	if e := reply.Error; e != nil {
		sb.WriteString(" ")
		sb.WriteString(e.Code)
		sb.WriteString(" ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}
