package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/haasonsaas/nexus/internal/core/tools"
	"github.com/haasonsaas/nexus/internal/cost"
	"github.com/haasonsaas/nexus/internal/provider"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/pkg/models"
)

type scriptedChatter struct {
	responses []models.LLMResponse
	errs      []error
	calls     int
}

func (c *scriptedChatter) Chat(_ context.Context, _ provider.ChatRequest) (models.LLMResponse, error) {
	i := c.calls
	c.calls++
	if i < len(c.errs) && c.errs[i] != nil {
		return models.LLMResponse{}, c.errs[i]
	}
	if i >= len(c.responses) {
		return c.responses[len(c.responses)-1], nil
	}
	return c.responses[i], nil
}

func (c *scriptedChatter) ChatStream(_ context.Context, _ provider.ChatRequest) (<-chan models.StreamEvent, error) {
	return nil, errors.New("not used in these tests")
}

type echoTool struct{}

func (echoTool) Name() string               { return "echo" }
func (echoTool) Description() string        { return "echoes its input" }
func (echoTool) Parameters() map[string]any { return map[string]any{} }
func (echoTool) Execute(_ context.Context, args json.RawMessage, _ *models.ToolContext) (string, error) {
	return "echoed:" + string(args), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLoop(t *testing.T, chat Chatter, cfg Config) (*Loop, sessions.Store) {
	t.Helper()
	store := sessions.NewMemoryStore()
	registry := tools.NewRegistry()
	if err := registry.Register(echoTool{}); err != nil {
		t.Fatalf("register echo tool: %v", err)
	}
	loop := New(store, registry, chat, nil, nil, nil, nil, cfg, testLogger())
	return loop, store
}

func TestRunReturnsFinalAssistantTextWhenNoToolCalls(t *testing.T) {
	chat := &scriptedChatter{responses: []models.LLMResponse{
		{Content: "hello there", FinishReason: models.FinishStop},
	}}
	loop, _ := newTestLoop(t, chat, DefaultConfig())

	text, err := loop.Run(context.Background(), models.InboundMessage{
		Channel: models.ChannelTelegram, UserID: "u1", SessionKey: "s1", Content: "hi",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "hello there" {
		t.Fatalf("text = %q, want %q", text, "hello there")
	}
	if chat.calls != 1 {
		t.Fatalf("expected exactly 1 provider call, got %d", chat.calls)
	}
}

func TestRunDispatchesToolCallThenTerminates(t *testing.T) {
	chat := &scriptedChatter{responses: []models.LLMResponse{
		{ToolCalls: []models.ToolCall{{ID: "call-1", Name: "echo", Input: json.RawMessage(`"x"`)}}, FinishReason: models.FinishToolCalls},
		{Content: "done", FinishReason: models.FinishStop},
	}}
	loop, store := newTestLoop(t, chat, DefaultConfig())

	text, err := loop.Run(context.Background(), models.InboundMessage{
		Channel: models.ChannelTelegram, UserID: "u2", SessionKey: "s2", Content: "run echo",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if text != "done" {
		t.Fatalf("text = %q, want %q", text, "done")
	}
	if chat.calls != 2 {
		t.Fatalf("expected 2 provider calls (one per AssemblingContext pass), got %d", chat.calls)
	}

	session, err := store.GetByKey(context.Background(), "s2")
	if err != nil {
		t.Fatalf("GetByKey: %v", err)
	}
	history, err := store.GetHistory(context.Background(), session.ID, 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	var sawToolResult bool
	for _, m := range history {
		if m.Role == models.RoleTool && len(m.ToolResults) == 1 && m.ToolResults[0].Content == `echoed:"x"` {
			sawToolResult = true
		}
	}
	if !sawToolResult {
		t.Fatalf("expected a tool-result message with the echoed content, got history %+v", history)
	}
}

func TestModelCommandShortCircuitsWithoutCallingProvider(t *testing.T) {
	chat := &scriptedChatter{responses: []models.LLMResponse{{Content: "should not be reached"}}}
	cfg := DefaultConfig()
	cfg.DefaultModel = "claude-sonnet-4-5-20250929"
	loop, _ := newTestLoop(t, chat, cfg)

	text, err := loop.Run(context.Background(), models.InboundMessage{
		Channel: models.ChannelTelegram, UserID: "u3", SessionKey: "s3", Content: "/model",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if chat.calls != 0 {
		t.Fatalf("expected /model to short-circuit without calling the provider, got %d calls", chat.calls)
	}
	want := "Current: claude-sonnet-4-5-20250929 (default)"
	if text != want {
		t.Fatalf("text = %q, want %q", text, want)
	}
}

func TestModelCommandSetThenShowReflectsOverride(t *testing.T) {
	chat := &scriptedChatter{responses: []models.LLMResponse{{Content: "unused"}}}
	loop, _ := newTestLoop(t, chat, DefaultConfig())
	ctx := context.Background()
	msg := models.InboundMessage{Channel: models.ChannelTelegram, UserID: "u4", SessionKey: "s4"}

	msg.Content = "/model openai:gpt-5.1"
	if _, err := loop.Run(ctx, msg); err != nil {
		t.Fatalf("Run (set): %v", err)
	}

	msg.Content = "/model"
	text, err := loop.Run(ctx, msg)
	if err != nil {
		t.Fatalf("Run (show): %v", err)
	}
	if text != "Current: openai:gpt-5.1 (override)\nDefault: " {
		t.Fatalf("unexpected show output: %q", text)
	}
}

func TestIterationLimitTerminatesWithoutInfiniteLoop(t *testing.T) {
	call := models.LLMResponse{
		ToolCalls:    []models.ToolCall{{ID: "call-x", Name: "echo", Input: json.RawMessage(`"x"`)}},
		FinishReason: models.FinishToolCalls,
	}
	chat := &scriptedChatter{responses: []models.LLMResponse{call}}
	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	loop, _ := newTestLoop(t, chat, cfg)

	text, err := loop.Run(context.Background(), models.InboundMessage{
		Channel: models.ChannelTelegram, UserID: "u5", SessionKey: "s5", Content: "loop forever",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if chat.calls != 2 {
		t.Fatalf("expected exactly MaxIterations provider calls, got %d", chat.calls)
	}
	if text != "Stopping: iteration limit reached" {
		t.Fatalf("unexpected termination text: %q", text)
	}
}

func TestBudgetExceededTerminatesBeforeCallingProvider(t *testing.T) {
	chat := &scriptedChatter{responses: []models.LLMResponse{{Content: "unreachable"}}}
	store := sessions.NewMemoryStore()
	registry := tools.NewRegistry()
	budget := cost.NewTokenBudget(10)
	budget.Record(10, 0)

	loop := New(store, registry, chat, nil, nil, budget, nil, DefaultConfig(), testLogger())
	text, err := loop.Run(context.Background(), models.InboundMessage{
		Channel: models.ChannelTelegram, UserID: "u6", SessionKey: "s6", Content: "hi",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if chat.calls != 0 {
		t.Fatalf("expected budget exhaustion to short-circuit before any provider call, got %d calls", chat.calls)
	}
	if text != "Stopping: token budget exceeded" {
		t.Fatalf("unexpected termination text: %q", text)
	}
}
