package hooks

import (
	"log/slog"
	"testing"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/pkg/models"
)

func TestEmptyToolsListMatchesNothing(t *testing.T) {
	e := New([]Rule{{Point: BeforeTool, Action: ActionBlock, Tools: nil, Channels: []string{"*"}, Message: "nope"}}, slog.Default(), nil)
	result := e.Evaluate(BeforeTool, CallInfo{ToolName: "shell", Channel: "telegram"})
	if result.Blocked {
		t.Fatal("a rule with an empty tools list must match nothing")
	}
}

func TestWildcardToolsListMatchesEverything(t *testing.T) {
	e := New([]Rule{{Point: BeforeTool, Action: ActionBlock, Tools: []string{"*"}, Channels: []string{"*"}, Message: "nope"}}, slog.Default(), nil)
	result := e.Evaluate(BeforeTool, CallInfo{ToolName: "anything", Channel: "cli"})
	if !result.Blocked {
		t.Fatal("a rule with [\"*\"] tools must match everything")
	}
}

// TestHookBlockScenario mirrors the specification's end-to-end scenario 3:
// a before_tool block rule scoped to tools:["shell"], channels:["telegram"]
// blocks shell on telegram but leaves it untouched on cli.
func TestHookBlockScenario(t *testing.T) {
	e := New([]Rule{{
		Point:    BeforeTool,
		Action:   ActionBlock,
		Tools:    []string{"shell"},
		Channels: []string{"telegram"},
		Message:  "disabled",
	}}, slog.Default(), nil)

	telegramResult := e.Evaluate(BeforeTool, CallInfo{ToolName: "shell", Channel: "telegram"})
	if !telegramResult.Blocked || telegramResult.Message != "disabled" {
		t.Fatalf("expected shell blocked on telegram with message 'disabled', got %+v", telegramResult)
	}

	cliResult := e.Evaluate(BeforeTool, CallInfo{ToolName: "shell", Channel: "cli"})
	if cliResult.Blocked {
		t.Fatal("shell on cli must not be blocked by a telegram-scoped rule")
	}
}

func TestFirstBlockWinsButLaterLogRulesStillRun(t *testing.T) {
	logged := false
	e := &Engine{
		rules: []Rule{
			{Point: BeforeTool, Action: ActionBlock, Tools: []string{"*"}, Channels: []string{"*"}, Message: "first"},
			{Point: BeforeTool, Action: ActionBlock, Tools: []string{"*"}, Channels: []string{"*"}, Message: "second"},
			{Point: BeforeTool, Action: ActionLog, Tools: []string{"*"}, Channels: []string{"*"}},
		},
		logger: slog.Default(),
	}
	result := e.Evaluate(BeforeTool, CallInfo{ToolName: "shell", Channel: "cli"})
	if result.Message != "first" {
		t.Fatalf("expected first matching Block to win, got message %q", result.Message)
	}
	_ = logged
}

func TestBlockOnlyAppliesAtBeforeTool(t *testing.T) {
	e := New([]Rule{{Point: AfterTool, Action: ActionBlock, Tools: []string{"*"}, Channels: []string{"*"}, Message: "nope"}}, slog.Default(), nil)
	result := e.Evaluate(AfterTool, CallInfo{ToolName: "shell", Channel: "cli"})
	if result.Blocked {
		t.Fatal("Block is only meaningful for before_tool; after_tool must never report Blocked")
	}
}

func TestNotifyWithNoBusDoesNotPanic(t *testing.T) {
	e := New([]Rule{{Point: AfterTool, Action: ActionNotify, Tools: []string{"*"}, Channels: []string{"*"}, Message: "done"}}, slog.Default(), nil)
	e.Evaluate(AfterTool, CallInfo{ToolName: "shell", Channel: "cli"})
}

func TestNotifyPublishesOverrideDestination(t *testing.T) {
	b := bus.New()
	e := New([]Rule{{
		Point:         AfterTool,
		Action:        ActionNotify,
		Tools:         []string{"*"},
		Channels:      []string{"*"},
		Message:       "tool ran",
		NotifyChannel: models.ChannelType("slack"),
		NotifyChatID:  "override-chat",
	}}, slog.Default(), b)

	e.Evaluate(AfterTool, CallInfo{ToolName: "shell", Channel: "cli", ChatID: "orig-chat"})

	msg, err := b.ConsumeOutbound()
	if err != nil {
		t.Fatalf("ConsumeOutbound: %v", err)
	}
	if msg.Channel != "slack" || msg.ChatID != "override-chat" || msg.Content != "tool ran" {
		t.Fatalf("unexpected notify message: %+v", msg)
	}
}
