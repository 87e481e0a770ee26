// Package provider implements the provider abstraction (C5): a uniform
// chat/chat_stream contract over heterogeneous LLM backends, plus
// rotation with a per-provider circuit breaker and a registry for
// resolving a runtime provider from configuration.
//
// Grounded on the teacher's internal/agent.LLMProvider interface and its
// real SDK-backed implementations under internal/agent/providers/
// (anthropic, openai, bedrock, google, azure, ollama, openrouter,
// copilot_proxy) — this package wraps those implementations behind the
// specification's narrower Chat/ChatStream contract rather than
// reimplementing provider wiring from scratch.
package provider

import (
	"context"

	"github.com/haasonsaas/nexus/pkg/models"
)

// ChatRequest is the input to a single provider call.
type ChatRequest struct {
	Model    string
	System   string
	Messages []models.Message
	Tools    []models.ToolDefinition
	Options  models.ChatOptions
}

// Provider is the specification's uniform LLM contract: a blocking Chat
// call and a streaming ChatStream call, both over the same request
// shape.
type Provider interface {
	// Name identifies the provider for logging, rotation state, and
	// cost-table lookups.
	Name() string

	// Chat performs a single blocking completion.
	Chat(ctx context.Context, req ChatRequest) (models.LLMResponse, error)

	// ChatStream performs a streaming completion. The returned channel is
	// closed after a StreamDone or StreamError event.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan models.StreamEvent, error)
}
