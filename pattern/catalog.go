package pattern

import "strings"

// Catalog returns the full pattern set in its canonical cycling order.
// The orchestrator iterates it round-robin without special-casing any
// entry; everything pattern-specific lives in the Pattern fields.
func Catalog() []Pattern {
	return []Pattern{
		// Standard request-reply over the implemented command set.
		{Type: "request_reply", Command: "ping", Message: "hello", ExpectReply: true},
		{Type: "request_reply", Command: "echo", Message: "test_message", ExpectReply: true},
		{Type: "request_reply", Command: "get_info", Message: "info_request", ExpectReply: true},
		{Type: "request_reply", Command: "validate", Message: `{"test":"data"}`, ExpectReply: true},

		// Large payloads through echo, sized to stay well under any
		// reasonable datagram limit.
		{Type: "large_payload", Command: "echo", Message: "large_" + strings.Repeat("x", 500), ExpectReply: true},
		{Type: "large_payload", Command: "echo", Message: "huge_" + strings.Repeat("y", 1000), ExpectReply: true},

		// Byte-fidelity checks.
		{Type: "special_chars", Command: "echo", Message: "special_!@#$%^&*()", ExpectReply: true},
		{Type: "unicode", Command: "echo", Message: "unicode_测试_🚀_émojis", ExpectReply: true},

		// JSON payloads through validate.
		{Type: "json_payload", Command: "validate", Message: `{"nested":"json","number":42}`, ExpectReply: true},
		{Type: "complex_json", Command: "validate", Message: `{"data":{"user":"test","values":[1,2,3]}}`, ExpectReply: true},

		// Induced faults. These succeed when the peer reports the fault.
		{Type: "invalid_command", Command: "nonexistent_command", Message: "test", ExpectReply: true, ExpectError: true},
		{Type: "malformed_json", Command: "validate", Message: `{"invalid":json}`, ExpectReply: true, ExpectError: true},
		{Type: "empty_message", Command: "echo", Message: "", ExpectReply: true},

		// Rapid fire.
		{Type: "rapid_small", Command: "ping", Message: "quick", ExpectReply: true},
		{Type: "rapid_medium", Command: "echo", Message: "medium_" + strings.Repeat("z", 50), ExpectReply: true},

		// Slow-operation headroom: wider timeout than the default.
		{Type: "potential_timeout", Command: "slow_process", Message: "timeout_test", ExpectReply: true, TimeoutSeconds: 5},

		// Burst patterns, paced nearly back-to-back.
		{Type: "burst", Command: "ping", Message: "burst_1", ExpectReply: true},
		{Type: "burst", Command: "get_info", Message: "burst_2", ExpectReply: true},
		{Type: "burst", Command: "echo", Message: "burst_3", ExpectReply: true},
	}
}
