package pattern

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jowharshamshiri/Janus/protocol"
)

func boolPtr(b bool) *bool { return &b }

func successReply(result any) *protocol.ReplyEnvelope {
	return &protocol.ReplyEnvelope{Success: boolPtr(true), Result: result}
}

func failureReply(code, message string) *protocol.ReplyEnvelope {
	return &protocol.ReplyEnvelope{
		Success: boolPtr(false),
		Error:   &protocol.ReplyError{Code: code, Message: message},
	}
}

func findPattern(t *testing.T, patternType string) Pattern {
	t.Helper()
	for _, p := range Catalog() {
		if p.Type == patternType {
			return p
		}
	}
	t.Fatalf("no pattern of type %q in catalog", patternType)
	return Pattern{}
}

func TestCatalogDeterministicOrder(t *testing.T) {
	a, b := Catalog(), Catalog()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i], b[i], "catalog order differs at %d", i)
	}
	assert.Equal(t, "request_reply", a[0].Type)
	assert.Equal(t, "ping", a[0].Command)
}

func TestCatalogCoversExpectedClasses(t *testing.T) {
	classes := make(map[string]bool)
	for _, p := range Catalog() {
		classes[p.Type] = true
	}
	for _, want := range []string{
		"request_reply", "large_payload", "special_chars", "unicode",
		"json_payload", "complex_json", "invalid_command", "malformed_json",
		"empty_message", "rapid_small", "rapid_medium", "potential_timeout",
		"burst",
	} {
		assert.True(t, classes[want], "missing pattern class %q", want)
	}
}

func TestTimeoutFallback(t *testing.T) {
	def := 2 * time.Second
	slow := findPattern(t, "potential_timeout")
	assert.Equal(t, 5*time.Second, slow.Timeout(def))

	quick := findPattern(t, "rapid_small")
	assert.Equal(t, def, quick.Timeout(def))
}

func TestGapByClass(t *testing.T) {
	assert.Equal(t, time.Millisecond, Pattern{Type: "burst"}.Gap())
	assert.Equal(t, 20*time.Millisecond, Pattern{Type: "large_payload"}.Gap())
	assert.Equal(t, 10*time.Millisecond, Pattern{Type: "request_reply"}.Gap())
}

func TestEvaluateReplyPing(t *testing.T) {
	p := findPattern(t, "rapid_small")
	assert.True(t, p.EvaluateReply(successReply("pong")))
	assert.True(t, p.EvaluateReply(successReply(map[string]any{"status": "ok"})))
	assert.False(t, p.EvaluateReply(failureReply("INTERNAL", "boom")))
	assert.False(t, p.EvaluateReply(nil))
}

func TestEvaluateReplyEchoRequiresPayload(t *testing.T) {
	p := Pattern{Type: "request_reply", Command: "echo", Message: "round_trip_me", ExpectReply: true}
	assert.True(t, p.EvaluateReply(successReply("echo: round_trip_me")))
	assert.True(t, p.EvaluateReply(successReply(map[string]any{"echo": "round_trip_me"})))
	assert.False(t, p.EvaluateReply(successReply("something else entirely")))
}

func TestEvaluateReplyEchoUnicode(t *testing.T) {
	p := findPattern(t, "unicode")
	assert.True(t, p.EvaluateReply(successReply(p.Message)))
	assert.False(t, p.EvaluateReply(successReply("unicode_mangled")))
}

func TestEvaluateReplyInvalidCommand(t *testing.T) {
	p := findPattern(t, "invalid_command")
	// A peer that rejects the unknown command passes the pattern.
	assert.True(t, p.EvaluateReply(failureReply("UNKNOWN_COMMAND", "no handler")))
	// A peer that claims success for a nonexistent command fails it.
	assert.False(t, p.EvaluateReply(successReply("ok")))
	assert.False(t, p.EvaluateReply(nil))
}

func TestEvaluateReplyMalformedJSON(t *testing.T) {
	p := findPattern(t, "malformed_json")
	// Structured rejection of the malformed input passes.
	assert.True(t, p.EvaluateReply(failureReply("PARSE_ERROR", "invalid json")))
	// Success carrying an explicit validity-false marker also passes.
	assert.True(t, p.EvaluateReply(successReply(map[string]any{"valid": false})))
	// Accepting the malformed input as valid fails the pattern.
	assert.False(t, p.EvaluateReply(successReply(map[string]any{"valid": true})))
}

func TestEvaluateReplyLegacyStatus(t *testing.T) {
	p := findPattern(t, "rapid_small")
	reply := &protocol.ReplyEnvelope{Status: "pong"}
	assert.True(t, p.EvaluateReply(reply))
}

func TestEvaluateSendOutputHappyPath(t *testing.T) {
	p := Pattern{Type: "request_reply", Command: "echo", Message: "cli_payload", ExpectReply: true}
	stdout := "Response: Success=true\nResult: cli_payload"
	assert.True(t, p.EvaluateSendOutput(true, stdout, ""))
	assert.False(t, p.EvaluateSendOutput(false, stdout, ""))
	assert.False(t, p.EvaluateSendOutput(true, "Response: Success=true\nResult: other", ""))
}

func TestEvaluateSendOutputExpectError(t *testing.T) {
	p := findPattern(t, "invalid_command")
	assert.True(t, p.EvaluateSendOutput(false, "", "error: unknown command"))
	assert.False(t, p.EvaluateSendOutput(true, "Response: Success=true", ""))

	malformed := findPattern(t, "malformed_json")
	assert.True(t, malformed.EvaluateSendOutput(true, `Response: Success=true valid:false`, ""))
	assert.False(t, malformed.EvaluateSendOutput(true, `Response: Success=true valid:true`, ""))
}

func TestEvaluateSendOutputFireAndForget(t *testing.T) {
	p := Pattern{Type: "fire_forget", Command: "ping", Message: "x"}
	assert.True(t, p.EvaluateSendOutput(true, "", ""))
	assert.False(t, p.EvaluateSendOutput(false, "", ""))
}

func TestLargePayloadSizes(t *testing.T) {
	var sizes []int
	for _, p := range Catalog() {
		if p.Type == "large_payload" {
			sizes = append(sizes, len(p.Message))
		}
	}
	require.Len(t, sizes, 2)
	assert.Greater(t, sizes[0], 500)
	assert.Greater(t, sizes[1], 1000)
	for _, p := range Catalog() {
		assert.False(t, strings.Contains(p.Message, "\n"), "%s payload contains newline", p.Type)
	}
}
