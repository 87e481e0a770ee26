package agentloop

import (
	"context"
	"errors"
	"time"

	"github.com/haasonsaas/nexus/internal/core/hooks"
	"github.com/haasonsaas/nexus/pkg/models"
)

// dispatchTools implements the DispatchingTools transition: tool calls
// are executed sequentially in the LLM's emission order (spec §4.5's
// ordering guarantee), each passing through before_tool hooks, the
// approval gate, execution (or a dry-run stub), and after_tool/on_error
// hooks in turn.
func (l *Loop) dispatchTools(ctx context.Context, msg models.InboundMessage, calls []models.ToolCall) []models.ToolResult {
	results := make([]models.ToolResult, 0, len(calls))
	var totalToolCalls int

	for _, call := range calls {
		if l.cfg.MaxToolCalls > 0 && totalToolCalls >= l.cfg.MaxToolCalls {
			results = append(results, models.ToolResult{ToolCallID: call.ID, Content: "tool call limit reached for this turn", IsError: true})
			continue
		}
		totalToolCalls++

		info := hooks.CallInfo{ToolName: call.Name, Channel: msg.Channel, ChatID: msg.UserID}

		if l.hooks != nil {
			before := l.hooks.Evaluate(hooks.BeforeTool, info)
			if before.Blocked {
				results = append(results, models.ToolResult{ToolCallID: call.ID, Content: before.Message, IsError: true})
				continue
			}
		}

		toolCtx := &models.ToolContext{Channel: msg.Channel, ChatID: msg.UserID, Feedback: l.cfg.Feedback}

		if l.approval != nil {
			decision := l.approval.Check(call.Name, toolCtx)
			if decision.Denied || decision.TimedOut {
				reason := decision.Reason
				if reason == "" {
					reason = "approval denied"
				}
				results = append(results, models.ToolResult{ToolCallID: call.ID, Content: reason, IsError: true})
				l.evaluateOnError(info, reason)
				continue
			}
		}

		if toolCtx.Feedback != nil {
			toolCtx.Feedback(models.ToolEvent{ToolCallID: call.ID, ToolName: call.Name, Phase: "starting"})
		}

		if l.cfg.DryRun {
			results = append(results, models.ToolResult{ToolCallID: call.ID, Content: "[dry-run] would execute " + call.Name})
			continue
		}

		started := time.Now()
		toolTimeoutCtx, cancel := context.WithTimeout(ctx, l.cfg.ToolTimeout)
		output, err := l.registry.Execute(toolTimeoutCtx, call.Name, call.Input, toolCtx)
		cancel()
		elapsed := time.Since(started)

		if err != nil {
			info.Elapsed = elapsed
			l.evaluateOnError(info, err.Error())
			if toolCtx.Feedback != nil {
				toolCtx.Feedback(models.ToolEvent{ToolCallID: call.ID, ToolName: call.Name, Phase: "failed", Elapsed: elapsed, Error: err.Error()})
			}
			results = append(results, models.ToolResult{ToolCallID: call.ID, Content: err.Error(), IsError: true})
			continue
		}

		info.Elapsed = elapsed
		if l.hooks != nil {
			l.hooks.Evaluate(hooks.AfterTool, info)
		}
		if toolCtx.Feedback != nil {
			toolCtx.Feedback(models.ToolEvent{ToolCallID: call.ID, ToolName: call.Name, Phase: "done", Elapsed: elapsed})
		}
		results = append(results, models.ToolResult{ToolCallID: call.ID, Content: output})
	}

	return results
}

func (l *Loop) evaluateOnError(info hooks.CallInfo, reason string) {
	if l.hooks == nil {
		return
	}
	info.Err = errors.New(reason)
	l.hooks.Evaluate(hooks.OnError, info)
}
