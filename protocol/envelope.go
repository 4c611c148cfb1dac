// Package protocol defines the wire envelopes for the Janus datagram
// request/reply protocol.
//
// Every message is a single UTF-8 JSON object carried in one datagram.
// A request names a reply_to socket path that must not exist yet; the
// path is bound by the requester before the send and is the sole
// correlation mechanism between request and reply. No in-band id
// matching is required or performed.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jowharshamshiri/Janus/errors"
)

// DefaultChannel is the channel id used when the caller does not care
// about channel routing.
const DefaultChannel = "system"

// RequestEnvelope is one request datagram. Created per request and
// discarded after one round trip; envelopes are never reused.
type RequestEnvelope struct {
	ID        string         `json:"id"`
	ChannelID string         `json:"channelId"`
	Command   string         `json:"command"`
	Args      map[string]any `json:"args,omitempty"`
	ReplyTo   string         `json:"reply_to"`
	Timeout   float64        `json:"timeout,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

// ReplyError is the structured error carried by a failed reply.
type ReplyError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *ReplyError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ReplyEnvelope is one reply datagram. It correlates 1:1 with exactly one
// RequestEnvelope by virtue of arriving on that request's reply socket.
//
// Peer implementations disagree on the success sentinel. The structured
// Success boolean is canonical for this harness; Status values such as
// "pong"/"ok"/"success" and a bare textual pong marker inside the result
// are accepted as legacy compatibility cases (see Succeeded).
type ReplyEnvelope struct {
	Success *bool       `json:"success,omitempty"`
	Status  string      `json:"status,omitempty"`
	Result  any         `json:"result,omitempty"`
	Error   *ReplyError `json:"error,omitempty"`
}

// NewRequest builds a request envelope with a fresh unique id and the
// current timestamp. replyTo must be an absolute path to a datagram
// socket that does not exist yet.
func NewRequest(channelID, command string, args map[string]any, replyTo string, timeout time.Duration) *RequestEnvelope {
	if channelID == "" {
		channelID = DefaultChannel
	}
	return &RequestEnvelope{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Command:   command,
		Args:      args,
		ReplyTo:   replyTo,
		Timeout:   timeout.Seconds(),
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}
}

// Encode serializes the request for the wire.
func (r *RequestEnvelope) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, errors.WrapInvalid(err, "RequestEnvelope", "Encode", "marshal request")
	}
	return data, nil
}

// DecodeRequest parses a request datagram. Used by in-process test
// listeners; the harness itself only sends requests.
func DecodeRequest(data []byte) (*RequestEnvelope, error) {
	var req RequestEnvelope
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrProtocol, err)
	}
	if req.Command == "" {
		return nil, fmt.Errorf("%w: request missing command", errors.ErrProtocol)
	}
	return &req, nil
}

// DecodeReply parses a reply datagram. Non-JSON or truncated content is a
// protocol error, distinct from a well-formed reply that signals failure.
func DecodeReply(data []byte) (*ReplyEnvelope, error) {
	var reply ReplyEnvelope
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrProtocol, err)
	}
	return &reply, nil
}

// legacy success values accepted in the status field
var legacyStatusValues = map[string]bool{
	"pong":    true,
	"ok":      true,
	"success": true,
}

// Succeeded reports whether the reply signals protocol success.
//
// An explicit Success boolean always wins. Without one, a legacy status
// value or a textual pong marker in the result is accepted. A reply with
// no recognizable marker at all is a failure: success must be explicit.
func (r *ReplyEnvelope) Succeeded() bool {
	if r.Success != nil {
		return *r.Success
	}
	if legacyStatusValues[strings.ToLower(r.Status)] {
		return true
	}
	if s, ok := r.Result.(string); ok && strings.Contains(strings.ToLower(s), "pong") {
		return true
	}
	return false
}

// ResultText renders the reply result as text for structural checks
// (e.g. "echo reply must contain the original payload").
func (r *ReplyEnvelope) ResultText() string {
	switch v := r.Result.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// Err returns the structured error of a failed reply, synthesizing one
// when the peer omitted the error object.
func (r *ReplyEnvelope) Err() *ReplyError {
	if r.Succeeded() {
		return nil
	}
	if r.Error != nil {
		return r.Error
	}
	return &ReplyError{Code: "UNSPECIFIED", Message: "reply carried no success marker and no error object"}
}
