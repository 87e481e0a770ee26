package agentloop

import (
	"context"
	"time"

	"github.com/haasonsaas/nexus/internal/provider"
	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// RunStream is the streaming counterpart of Run (spec §4.5's streaming
// variant): Delta events are forwarded as they arrive; a ToolCalls
// event drains the stream, runs DispatchingTools, and re-enters
// streaming with the updated transcript. The returned channel is
// closed once a terminal Done or Error event has been emitted.
func (l *Loop) RunStream(ctx context.Context, msg models.InboundMessage) (<-chan models.StreamEvent, error) {
	session, err := l.store.GetOrCreate(ctx, msg.SessionKey, l.cfg.AgentID, msg.Channel, msg.UserID)
	if err != nil {
		return nil, zerrors.Wrap(zerrors.Config, "session lookup failed", err)
	}

	if err := l.store.AppendMessage(ctx, session.ID, &models.Message{
		SessionID: session.ID,
		Channel:   msg.Channel,
		Direction: models.DirectionInbound,
		Role:      models.RoleUser,
		Content:   msg.Content,
		CreatedAt: msg.ArrivedAt,
	}); err != nil {
		return nil, zerrors.Wrap(zerrors.Config, "append user message failed", err)
	}

	out := make(chan models.StreamEvent, 1)

	if cmd, ok := parseModelCommand(msg.Content); ok {
		text, err := l.handleModelCommand(ctx, session, cmd)
		go func() {
			defer close(out)
			if err != nil {
				out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.KindOf(err))}
				return
			}
			out <- models.StreamEvent{Kind: models.StreamDelta, Delta: text}
			out <- models.StreamEvent{Kind: models.StreamDone, FinishReason: models.FinishStop}
		}()
		return out, nil
	}

	go l.streamLoop(ctx, session, msg, out)
	return out, nil
}

func (l *Loop) streamLoop(ctx context.Context, session *models.Session, msg models.InboundMessage, out chan<- models.StreamEvent) {
	defer close(out)
	start := time.Now()

	for iteration := 0; ; iteration++ {
		if l.cfg.MaxWallTime > 0 && time.Since(start) > l.cfg.MaxWallTime {
			l.emitTerminal(ctx, session, msg, out, "maximum run time exceeded")
			return
		}
		if iteration >= l.cfg.MaxIterations {
			l.emitTerminal(ctx, session, msg, out, "iteration limit reached")
			return
		}
		if l.budget != nil && l.budget.IsExceeded() {
			l.emitTerminal(ctx, session, msg, out, "token budget exceeded")
			return
		}

		history, err := l.store.GetHistory(ctx, session.ID, l.cfg.ContextLimit)
		if err != nil {
			out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.Config)}
			return
		}
		system, err := l.assembleSystem(ctx, session)
		if err != nil {
			out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.Config)}
			return
		}

		model := l.resolveModel(session.Key)
		stream, err := l.chat.ChatStream(ctx, provider.ChatRequest{
			Model:    model,
			System:   system,
			Messages: history,
			Tools:    l.registry.Catalog(l.cfg.ToolWhitelist),
		})
		if err != nil {
			l.logger.Error("agentloop: provider stream failed", "session", session.ID, "error", err)
			l.emitTerminal(ctx, session, msg, out, "the model provider is unavailable")
			return
		}

		var content string
		var toolCalls []models.ToolCall
		var usage models.Usage
		var streamErr bool

		for ev := range stream {
			switch ev.Kind {
			case models.StreamDelta:
				content += ev.Delta
				out <- ev
			case models.StreamToolCalls:
				toolCalls = ev.ToolCalls
			case models.StreamError:
				streamErr = true
				out <- ev
			case models.StreamDone:
				usage = ev.Usage
			}
		}
		if streamErr {
			return
		}

		if l.budget != nil {
			l.budget.Record(uint64(usage.InputTokens), uint64(usage.OutputTokens))
		}
		if l.costs != nil {
			l.costs.Record(l.providerNameFor(session.Key), model, uint64(usage.InputTokens), uint64(usage.OutputTokens))
		}

		if len(toolCalls) == 0 {
			if err := l.appendAssistant(ctx, session, msg.Channel, content, nil); err != nil {
				out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.Config)}
				return
			}
			out <- models.StreamEvent{Kind: models.StreamDone, FinishReason: models.FinishStop, Usage: usage}
			return
		}

		toolResults := l.dispatchTools(ctx, msg, toolCalls)

		if err := l.appendAssistant(ctx, session, msg.Channel, content, toolCalls); err != nil {
			out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.Config)}
			return
		}
		for _, tr := range toolResults {
			if err := l.store.AppendMessage(ctx, session.ID, &models.Message{
				SessionID:   session.ID,
				Channel:     msg.Channel,
				Direction:   models.DirectionOutbound,
				Role:        models.RoleTool,
				Content:     tr.Content,
				ToolResults: []models.ToolResult{tr},
			}); err != nil {
				out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.Config)}
				return
			}
		}
		// loop back to AssemblingContext by re-entering chat_stream above.
	}
}

func (l *Loop) emitTerminal(ctx context.Context, session *models.Session, msg models.InboundMessage, out chan<- models.StreamEvent, reason string) {
	text := "Stopping: " + reason
	if err := l.appendAssistant(ctx, session, msg.Channel, text, nil); err != nil {
		out <- models.StreamEvent{Kind: models.StreamError, ErrorKind: string(zerrors.Config)}
		return
	}
	out <- models.StreamEvent{Kind: models.StreamDelta, Delta: text}
	out <- models.StreamEvent{Kind: models.StreamDone, FinishReason: models.FinishStop}
}
