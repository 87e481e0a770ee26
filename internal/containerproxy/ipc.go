// Package containerproxy implements the containerized agent proxy + IPC
// (C8): per-request subprocess/container spawning with a framed
// stdin/stdout JSON exchange.
//
// ipc.go is ported from original_source/src/gateway/ipc.rs — the
// teacher has no equivalent framing protocol, so the Rust original is
// the direct grounding source, re-expressed in Go idiom (struct tags
// instead of serde derives, a tagged-union AgentResult emulated via a
// discriminated Go struct since Go has no enum-with-payload) rather
// than transliterated.
package containerproxy

import (
	"encoding/json"
	"strings"

	"github.com/haasonsaas/nexus/pkg/models"
)

const (
	// ResponseStartMarker opens a framed agent response in container
	// stdout.
	ResponseStartMarker = "<<<AGENT_RESPONSE_START>>>"
	// ResponseEndMarker closes a framed agent response in container
	// stdout.
	ResponseEndMarker = "<<<AGENT_RESPONSE_END>>>"
)

// AgentRequest is written to the container's stdin as a single JSON
// line.
type AgentRequest struct {
	RequestID    string                 `json:"request_id"`
	Message      models.InboundMessage  `json:"message"`
	AgentConfig  map[string]any         `json:"agent_config"`
	Session      *models.Session        `json:"session,omitempty"`
}

// AgentResponse is read back from the container's stdout, framed
// between ResponseStartMarker and ResponseEndMarker.
type AgentResponse struct {
	RequestID string      `json:"request_id"`
	Result    AgentResult `json:"result"`
}

// AgentResult is a tagged union: exactly one of Success/Error is
// populated, mirroring the Rust original's AgentResult enum. Go has no
// enum-with-payload, so the tag is carried implicitly by which pointer
// is non-nil.
type AgentResult struct {
	Success *AgentSuccess `json:"Success,omitempty"`
	Error   *AgentError   `json:"Error,omitempty"`
}

// AgentSuccess is the payload of a successful AgentResult.
type AgentSuccess struct {
	Content string          `json:"content"`
	Session *models.Session `json:"session,omitempty"`
}

// AgentError is the payload of a failed AgentResult.
type AgentError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// NewSuccessResponse builds a success AgentResponse.
func NewSuccessResponse(requestID, content string, session *models.Session) AgentResponse {
	return AgentResponse{
		RequestID: requestID,
		Result:    AgentResult{Success: &AgentSuccess{Content: content, Session: session}},
	}
}

// NewErrorResponse builds an error AgentResponse.
func NewErrorResponse(requestID, message, code string) AgentResponse {
	return AgentResponse{
		RequestID: requestID,
		Result:    AgentResult{Error: &AgentError{Message: message, Code: code}},
	}
}

// ToMarkedJSON formats the response with markers for reliable parsing
// from stdout alongside arbitrary log output.
func (r AgentResponse) ToMarkedJSON() string {
	body, err := json.Marshal(r)
	if err != nil {
		body = []byte("{}")
	}
	return ResponseStartMarker + "\n" + string(body) + "\n" + ResponseEndMarker
}

// ParseMarkedResponse extracts and decodes the AgentResponse framed by
// the last occurrence of ResponseStartMarker in stdout, tolerating
// arbitrary log output before or after it and more than one framed
// response in the stream (only the last is returned). Returns ok=false
// if no complete, well-formed frame is found.
func ParseMarkedResponse(stdout string) (AgentResponse, bool) {
	start := strings.LastIndex(stdout, ResponseStartMarker)
	if start < 0 {
		return AgentResponse{}, false
	}
	jsonStart := start + len(ResponseStartMarker)
	rel := strings.Index(stdout[jsonStart:], ResponseEndMarker)
	if rel < 0 {
		return AgentResponse{}, false
	}
	end := jsonStart + rel
	payload := strings.TrimSpace(stdout[jsonStart:end])

	var resp AgentResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return AgentResponse{}, false
	}
	return resp, true
}
