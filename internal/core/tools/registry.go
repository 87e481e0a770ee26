// Package tools implements the tool registry and execution contract (C4):
// registration, lookup, and dispatch of named, schema-described
// capabilities exposed to the LLM.
//
// Grounded on the teacher's internal/agent.ToolRegistry (thread-safe
// RWMutex-guarded map, name/size validation before dispatch) but
// generalized: the teacher silently overwrites a tool registered under
// an existing name, while the specification requires registration to
// fail with DuplicateName so a plugin cannot shadow a built-in tool by
// accident.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Tool limits mirror the teacher's resource-exhaustion guards
// (internal/agent/tool_registry.go).
const (
	MaxNameLength  = 256
	MaxParamsBytes = 10 << 20
)

// Tool is a named, callable capability exposed to the LLM.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args json.RawMessage, tc *models.ToolContext) (string, error)
}

// Registry holds named tools with thread-safe registration and lookup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool to the registry. Returns a DuplicateName error if a
// tool with the same name is already registered — built-in tools and
// plugin tools share one namespace and must not silently shadow one
// another.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return zerrors.New(zerrors.Config, fmt.Sprintf("duplicate tool name: %s", t.Name()))
	}
	r.tools[t.Name()] = t
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Without returns a shallow copy of the registry with the named tools
// omitted. Used to hand a child agent (see agentloop.DelegateTool) the
// parent's tool catalog minus "delegate" itself, so delegation cannot
// recurse without bound.
func (r *Registry) Without(names ...string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exclude := make(map[string]bool, len(names))
	for _, n := range names {
		exclude[n] = true
	}
	out := NewRegistry()
	for name, t := range r.tools {
		if exclude[name] {
			continue
		}
		out.tools[name] = t
	}
	return out
}

// Catalog returns the tool definitions for every registered tool, for
// inclusion in a provider chat request. whitelist, if non-empty,
// restricts the catalog to the named tools.
func (r *Registry) Catalog(whitelist []string) []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allow map[string]bool
	if len(whitelist) > 0 {
		allow = make(map[string]bool, len(whitelist))
		for _, n := range whitelist {
			allow[n] = true
		}
	}

	defs := make([]models.ToolDefinition, 0, len(r.tools))
	for name, t := range r.tools {
		if allow != nil && !allow[name] {
			continue
		}
		defs = append(defs, models.ToolDefinition{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}

// Execute runs a tool by name with validated arguments, returning the
// result text or an error_kind-classified error. Never panics: an
// unknown tool or oversized input is reported as an error rather than
// a fatal condition, since tool errors are never fatal to the agent
// loop.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage, tc *models.ToolContext) (string, error) {
	if len(name) > MaxNameLength {
		return "", zerrors.New(zerrors.Tool, "tool name exceeds maximum length")
	}
	if len(args) > MaxParamsBytes {
		return "", zerrors.New(zerrors.Tool, "tool parameters exceed maximum size")
	}

	t, ok := r.Get(name)
	if !ok {
		return "", zerrors.New(zerrors.NotFound, "tool not found: "+name)
	}

	result, err := t.Execute(ctx, args, tc)
	if err != nil {
		if ctx.Err() != nil {
			return "", zerrors.Wrap(zerrors.Cancelled, "tool execution cancelled", err)
		}
		return "", zerrors.ClassifyToolError(err)
	}
	return result, nil
}
