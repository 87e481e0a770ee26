package provider

import (
	"context"
	"encoding/json"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Adapter implements Provider on top of an existing agent.LLMProvider,
// reusing the teacher's real SDK wiring (auth, retries, request
// shaping) while presenting the specification's Chat/ChatStream
// contract.
type Adapter struct {
	inner agent.LLMProvider
}

// Wrap returns a Provider backed by inner.
func Wrap(inner agent.LLMProvider) *Adapter {
	return &Adapter{inner: inner}
}

func (a *Adapter) Name() string { return a.inner.Name() }

func (a *Adapter) Chat(ctx context.Context, req ChatRequest) (models.LLMResponse, error) {
	chunks, err := a.inner.Complete(ctx, toCompletionRequest(req))
	if err != nil {
		return models.LLMResponse{}, zerrors.ClassifyProviderError(err)
	}

	var resp models.LLMResponse
	var content []byte
	for chunk := range chunks {
		if chunk.Error != nil {
			return models.LLMResponse{}, zerrors.ClassifyProviderError(chunk.Error)
		}
		if chunk.Text != "" {
			content = append(content, chunk.Text...)
		}
		if chunk.ToolCall != nil {
			resp.ToolCalls = append(resp.ToolCalls, *chunk.ToolCall)
		}
		if chunk.Done {
			resp.Usage.InputTokens = int64(chunk.InputTokens)
			resp.Usage.OutputTokens = int64(chunk.OutputTokens)
		}
	}
	resp.Content = string(content)
	if len(resp.ToolCalls) > 0 {
		resp.FinishReason = models.FinishToolCalls
	} else {
		resp.FinishReason = models.FinishStop
	}
	if resp.FinishReason == models.FinishStop {
		if err := validateOutputFormat(resp.Content, req.Options.OutputFormat); err != nil {
			return models.LLMResponse{}, err
		}
	}
	return resp, nil
}

func (a *Adapter) ChatStream(ctx context.Context, req ChatRequest) (<-chan models.StreamEvent, error) {
	chunks, err := a.inner.Complete(ctx, toCompletionRequest(req))
	if err != nil {
		return nil, zerrors.ClassifyProviderError(err)
	}

	out := make(chan models.StreamEvent)
	go func() {
		defer close(out)
		var toolCalls []models.ToolCall
		var content []byte
		for chunk := range chunks {
			select {
			case <-ctx.Done():
				out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.Cancelled)}
				return
			default:
			}
			switch {
			case chunk.Error != nil:
				out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.ClassifyProviderError(chunk.Error).Kind)}
				return
			case chunk.ToolCall != nil:
				toolCalls = append(toolCalls, *chunk.ToolCall)
			case chunk.Text != "":
				content = append(content, chunk.Text...)
				out <- models.StreamEvent{Kind: models.StreamDelta, Delta: chunk.Text}
			case chunk.Done:
				reason := finishReason(toolCalls)
				if len(toolCalls) > 0 {
					out <- models.StreamEvent{Kind: models.StreamToolCalls, ToolCalls: toolCalls}
				} else if err := validateOutputFormat(string(content), req.Options.OutputFormat); err != nil {
					out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.KindOf(err))}
					return
				}
				out <- models.StreamEvent{
					Kind:         models.StreamDone,
					FinishReason: reason,
					Usage: models.Usage{
						InputTokens:  int64(chunk.InputTokens),
						OutputTokens: int64(chunk.OutputTokens),
					},
				}
			}
		}
	}()
	return out, nil
}

func finishReason(toolCalls []models.ToolCall) models.FinishReason {
	if len(toolCalls) > 0 {
		return models.FinishToolCalls
	}
	return models.FinishStop
}

func toCompletionRequest(req ChatRequest) *agent.CompletionRequest {
	messages := make([]agent.CompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, agent.CompletionMessage{
			Role:        string(m.Role),
			Content:     m.Content,
			ToolCalls:   m.ToolCalls,
			ToolResults: m.ToolResults,
			Attachments: m.Attachments,
		})
	}

	tools := make([]agent.Tool, 0, len(req.Tools))
	for _, t := range req.Tools {
		schema, _ := json.Marshal(t.Parameters)
		tools = append(tools, &definitionTool{def: t, schema: schema})
	}

	return &agent.CompletionRequest{
		Model:     req.Model,
		System:    req.System,
		Messages:  messages,
		Tools:     tools,
		MaxTokens: req.Options.MaxTokens,
	}
}

// definitionTool adapts a models.ToolDefinition to agent.Tool so the
// provider request can carry tool schemas without depending on the
// tool-registry's execution path.
type definitionTool struct {
	def    models.ToolDefinition
	schema json.RawMessage
}

func (d *definitionTool) Name() string            { return d.def.Name }
func (d *definitionTool) Description() string     { return d.def.Description }
func (d *definitionTool) Schema() json.RawMessage  { return d.schema }
func (d *definitionTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return nil, zerrors.New(zerrors.Config, "definitionTool is schema-only and must never be executed directly")
}
