// Package hooks implements the config-driven tool hook engine (C4): rules
// evaluated at before_tool, after_tool, and on_error that can log, block,
// or notify.
//
// Grounded on the teacher's internal/hooks (EventType/Handler/Priority
// registry, in-order dispatch) but replaces the teacher's general
// pub-sub event bus with the specification's narrower, declaratively
// configured rule set scoped to the three tool-execution points.
package hooks

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Point identifies where in tool execution a rule fires.
type Point string

const (
	BeforeTool Point = "before_tool"
	AfterTool  Point = "after_tool"
	OnError    Point = "on_error"
)

// Action is what a matching rule does.
type Action string

const (
	ActionLog    Action = "log"
	ActionBlock  Action = "block"
	ActionNotify Action = "notify"
)

// Rule is one hook rule, matching SPEC_FULL.md's hook rule config shape.
type Rule struct {
	Point    Point
	Action   Action
	Tools    []string
	Channels []string
	Level    slog.Level
	Message  string

	// NotifyChannel/NotifyChatID override the destination of a Notify
	// action's synthesized outbound message; if empty, the current
	// channel/chat is used.
	NotifyChannel models.ChannelType
	NotifyChatID  string
}

// CallInfo describes the tool call a rule is evaluated against.
type CallInfo struct {
	ToolName string
	Channel  models.ChannelType
	ChatID   string
	Elapsed  time.Duration
	Err      error
}

// Result is the outcome of evaluating all rules for a point.
type Result struct {
	Blocked bool
	Message string
}

// Engine evaluates hook rules in order.
type Engine struct {
	rules  []Rule
	logger *slog.Logger
	bus    *bus.Bus
}

// New creates a hook engine. bus may be nil; Notify actions become no-ops
// (beyond logging a warning) if so, matching try_publish_outbound's
// never-block contract.
func New(rules []Rule, logger *slog.Logger, b *bus.Bus) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{rules: rules, logger: logger, bus: b}
}

// Evaluate runs every rule registered for point against info, in
// registration order. The first Block wins and short-circuits further
// Block consideration, but Log and Notify actions on subsequent matching
// rules still run.
func (e *Engine) Evaluate(point Point, info CallInfo) Result {
	var result Result
	for _, r := range e.rules {
		if r.Point != point {
			continue
		}
		if !matchesTool(r.Tools, info.ToolName) || !matchesChannel(r.Channels, info.Channel) {
			continue
		}
		switch r.Action {
		case ActionLog:
			e.logRule(r, info)
		case ActionBlock:
			if point == BeforeTool && !result.Blocked {
				result.Blocked = true
				result.Message = r.Message
			}
		case ActionNotify:
			e.notify(r, info)
		}
	}
	return result
}

func (e *Engine) logRule(r Rule, info CallInfo) {
	level := r.Level
	msg := r.Message
	if msg == "" {
		msg = "tool hook fired"
	}
	e.logger.Log(context.Background(), level, msg,
		"tool", info.ToolName,
		"channel", info.Channel,
		"elapsed", info.Elapsed,
	)
}

func (e *Engine) notify(r Rule, info CallInfo) {
	if e.bus == nil {
		e.logger.Warn("hook notify has no bus wired, dropping", "tool", info.ToolName)
		return
	}
	channel := r.NotifyChannel
	if channel == "" {
		channel = info.Channel
	}
	chatID := r.NotifyChatID
	if chatID == "" {
		chatID = info.ChatID
	}
	content := r.Message
	if content == "" {
		content = "tool " + info.ToolName + " hook notification"
	}
	if err := e.bus.TryPublishOutbound(models.OutboundMessage{
		Channel: channel,
		ChatID:  chatID,
		Content: content,
	}); err != nil {
		e.logger.Warn("hook notify dropped: bus closed", "tool", info.ToolName)
	}
}

// matchesTool implements the specification's boundary behavior exactly:
// an empty list matches nothing, ["*"] (or any "*" entry) matches
// everything, otherwise exact or glob-suffix match against listed names.
func matchesTool(patterns []string, name string) bool {
	return matchesList(patterns, name)
}

func matchesChannel(patterns []string, channel models.ChannelType) bool {
	return matchesList(patterns, string(channel))
}

func matchesList(patterns []string, value string) bool {
	if len(patterns) == 0 {
		return false
	}
	for _, p := range patterns {
		if p == "*" {
			return true
		}
		if strings.HasSuffix(p, "*") && strings.HasPrefix(value, strings.TrimSuffix(p, "*")) {
			return true
		}
		if p == value {
			return true
		}
	}
	return false
}
