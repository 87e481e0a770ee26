// Package approval implements the tool approval gate (C4): a policy that
// decides whether a tool call must pause for human sign-off before
// executing.
//
// Grounded on the teacher's internal/agent.ApprovalChecker/ApprovalPolicy
// (pattern-matched allow/deny lists, a default decision, a request TTL)
// but narrowed to the four-policy enum the specification names
// (AlwaysAllow, AlwaysRequire, RequireForTools, RequireForDangerous)
// rather than the teacher's richer allowlist/denylist/skill-allowlist
// policy — the extra knobs are a superset the specification's core
// does not call for.
package approval

import (
	"strings"
	"time"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Policy selects how the gate decides requires_approval.
type Policy string

const (
	AlwaysAllow         Policy = "always_allow"
	AlwaysRequire       Policy = "always_require"
	RequireForTools     Policy = "require_for_tools"
	RequireForDangerous Policy = "require_for_dangerous"
)

// Config configures the approval gate, matching the wire shape in
// SPEC_FULL.md's Approval config.
type Config struct {
	Enabled              bool
	PolicyKind           Policy
	RequireFor           []string
	DangerousTools       []string
	AutoApproveTimeout   time.Duration // 0 = no deadline
}

// Gate evaluates tool calls against a Config.
type Gate struct {
	cfg Config
}

// New creates a Gate. A zero-value Config disables approval entirely.
func New(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// RequiresApproval reports whether toolName must pause for approval
// under the gate's policy.
func (g *Gate) RequiresApproval(toolName string) bool {
	if !g.cfg.Enabled {
		return false
	}
	switch g.cfg.PolicyKind {
	case AlwaysAllow:
		return false
	case AlwaysRequire:
		return true
	case RequireForTools:
		return matchesAny(g.cfg.RequireFor, toolName)
	case RequireForDangerous:
		return matchesAny(g.cfg.DangerousTools, toolName)
	default:
		return false
	}
}

// Check consults the responder from tc (if RequiresApproval is true),
// applying the auto-approve deadline. If tc or its responder is nil and
// approval is required, the call is denied — a tool must never run
// unattended past a required approval gate.
func (g *Gate) Check(toolName string, tc *models.ToolContext) models.ApprovalDecision {
	if !g.RequiresApproval(toolName) {
		return models.ApprovalDecision{Approved: true}
	}
	if tc == nil || tc.ApprovalResponder == nil {
		return models.ApprovalDecision{Denied: true, Reason: "no approval responder available"}
	}

	if g.cfg.AutoApproveTimeout <= 0 {
		return tc.ApprovalResponder()
	}

	result := make(chan models.ApprovalDecision, 1)
	go func() { result <- tc.ApprovalResponder() }()
	select {
	case d := <-result:
		return d
	case <-time.After(g.cfg.AutoApproveTimeout):
		return models.ApprovalDecision{Approved: true, TimedOut: true, Reason: "auto-approved after timeout"}
	}
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if matchPattern(p, name) {
			return true
		}
	}
	return false
}

// matchPattern supports "*" (match all), "prefix*", "*suffix", and exact
// match, mirroring the tool-pattern matching used by hooks (C4) and
// provider-tool filtering elsewhere in the teacher.
func matchPattern(pattern, name string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(name, strings.TrimSuffix(pattern, "*"))
	}
	if strings.HasPrefix(pattern, "*") {
		return strings.HasSuffix(name, strings.TrimPrefix(pattern, "*"))
	}
	return pattern == name
}
