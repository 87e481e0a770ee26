package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// maxDelegateIterations bounds a child agent's turn independently of the
// parent's MaxIterations: a delegated subtask is meant to be narrow, and
// a runaway child must not be able to out-run the parent's own budget.
const maxDelegateIterations = 6

// DelegateTool is a built-in tool that spins up a child agent sharing
// the parent's provider, session store, and tool catalog (minus
// "delegate" itself) to work a focused subtask in an isolated session,
// returning the child's final answer as the tool result.
//
// Grounded on the teacher's AgenticRuntime (internal/agent.Runtime),
// which lets a caller start an independent Process() against a shared
// LLMProvider; this is the Go realization of spec §9's design note on
// reference-counted provider sharing for sub-agents.
type DelegateTool struct {
	parent *Loop
}

// NewDelegateTool returns a delegate tool whose children share parent's
// provider, store, and tool registry.
func NewDelegateTool(parent *Loop) *DelegateTool {
	return &DelegateTool{parent: parent}
}

func (t *DelegateTool) Name() string { return "delegate" }

func (t *DelegateTool) Description() string {
	return "Spin up a child agent sharing this agent's provider and tools to work a focused subtask, then return its final answer. Use for a self-contained piece of work that would otherwise consume many iterations of the parent conversation."
}

func (t *DelegateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"task": map[string]any{
				"type":        "string",
				"description": "The subtask for the child agent to complete, stated as a self-contained instruction.",
			},
		},
		"required": []string{"task"},
	}
}

type delegateParams struct {
	Task string `json:"task"`
}

func (t *DelegateTool) Execute(ctx context.Context, args json.RawMessage, tc *models.ToolContext) (string, error) {
	var params delegateParams
	if err := json.Unmarshal(args, &params); err != nil {
		return "", zerrors.Wrap(zerrors.Tool, "invalid delegate arguments", err)
	}
	if strings.TrimSpace(params.Task) == "" {
		return "", zerrors.New(zerrors.Tool, "delegate requires a non-empty task")
	}

	parent := t.parent
	child := New(parent.store, parent.registry.Without("delegate"), parent.chat, parent.approval, parent.hooks, parent.budget, parent.costs, Config{
		AgentID:             parent.cfg.AgentID + "/delegate",
		DefaultModel:        parent.cfg.DefaultModel,
		DefaultSystem:       "You are a focused subagent completing one delegated task for another agent. Answer directly and concisely; you have no knowledge of the parent conversation beyond the task given to you.",
		MaxIterations:       maxDelegateIterations,
		MaxToolCalls:        parent.cfg.MaxToolCalls,
		MaxWallTime:         parent.cfg.MaxWallTime,
		ConfiguredProviders: parent.cfg.ConfiguredProviders,
	}, parent.logger)

	sessionKey := fmt.Sprintf("delegate:%s:%s:%d", tc.ChatID, parent.cfg.AgentID, time.Now().UnixNano())
	result, err := child.Run(ctx, models.InboundMessage{
		Channel:    tc.Channel,
		UserID:     tc.ChatID,
		SessionKey: sessionKey,
		Content:    params.Task,
		ArrivedAt:  time.Now(),
	})
	if err != nil {
		return "", zerrors.Wrap(zerrors.Tool, "delegated subtask failed", err)
	}
	return result, nil
}
