package models

import "time"

// InboundMessage is published by a channel driver onto the message bus's
// inbound stream. Immutable after publication.
type InboundMessage struct {
	Channel    ChannelType    `json:"channel"`
	UserID     string         `json:"user_id"`
	SessionKey string         `json:"session_key"`
	Content    string         `json:"content"`
	ArrivedAt  time.Time      `json:"ts"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// OutboundMessage is published by the agent loop or container proxy onto
// the bus's outbound stream for delivery by a channel driver. Immutable
// after publication.
type OutboundMessage struct {
	Channel  ChannelType `json:"channel"`
	ChatID   string      `json:"chat_id"`
	Content  string      `json:"content"`
	ReplyTo  string      `json:"reply_to,omitempty"`
}

// ToolDefinition is exposed to the LLM as part of a chat request's tool
// catalog.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolContext is the request-scoped bundle passed to every tool
// execution.
type ToolContext struct {
	Channel      ChannelType
	ChatID       string
	WorkspaceDir string
	// ApprovalResponder, if non-nil, is invoked by the approval gate when
	// the tool requires approval. It must not be called more than once
	// per tool call.
	ApprovalResponder func() ApprovalDecision
	// Feedback, if non-nil, receives lifecycle events (Starting/Done/Failed)
	// for the running tool call.
	Feedback func(ToolEvent)
}

// ApprovalDecision is the result of consulting the approval responder.
type ApprovalDecision struct {
	Approved bool
	Denied   bool
	TimedOut bool
	Reason   string
}

// ToolEvent is a lifecycle notification for a tool call in progress.
type ToolEvent struct {
	ToolCallID string
	ToolName   string
	Phase      string // "starting", "done", "failed"
	Elapsed    time.Duration
	Error      string
}

// FinishReason is why an LLMResponse stopped generating.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// Usage carries token counters from a single LLM call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// LLMResponse is the result of a blocking provider.Chat call: either a
// textual reply or a set of tool calls (never both populated
// meaningfully — FinishReason disambiguates).
type LLMResponse struct {
	Content      string       `json:"content,omitempty"`
	ToolCalls    []ToolCall   `json:"tool_calls,omitempty"`
	FinishReason FinishReason `json:"finish_reason"`
	Usage        Usage        `json:"usage"`
}

// StreamEventKind discriminates StreamEvent variants.
type StreamEventKind string

const (
	StreamDelta     StreamEventKind = "delta"
	StreamToolCalls StreamEventKind = "tool_calls"
	StreamDone      StreamEventKind = "done"
	StreamError     StreamEventKind = "error"
)

// StreamEvent is one ordered item from a provider.ChatStream. Exactly one
// of the payload fields is meaningful, selected by Kind.
type StreamEvent struct {
	Kind         StreamEventKind
	Delta        string
	ToolCalls    []ToolCall
	FinishReason FinishReason
	Usage        Usage
	ErrorKind    string
}

// OutputFormatKind selects how a provider should shape its response.
type OutputFormatKind string

const (
	OutputText       OutputFormatKind = "text"
	OutputJSON       OutputFormatKind = "json"
	OutputJSONSchema OutputFormatKind = "json_schema"
)

// OutputFormat configures structured-output behavior for a chat call.
type OutputFormat struct {
	Kind   OutputFormatKind
	Name   string
	Schema map[string]any
	Strict bool
}

// ChatOptions carries per-call generation parameters.
type ChatOptions struct {
	Temperature  *float64
	TopP         *float64
	MaxTokens    int
	OutputFormat OutputFormat
}

// RuntimeProviderSelection is the result of resolving a configured
// provider to concrete, ready-to-use connection details.
type RuntimeProviderSelection struct {
	ProviderID     string
	Credential     string
	Endpoint       string
	BackendFamily  string
}

// ProviderHealth is the circuit-breaker record rotation keeps per
// provider.
type ProviderHealth struct {
	ConsecutiveFailures int
	OpenedUntil         time.Time
}
