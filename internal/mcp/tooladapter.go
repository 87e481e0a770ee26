package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/haasonsaas/nexus/internal/core/tools"
	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// ToolAdapter exposes one tool discovered on a connected MCP server as a
// tools.Tool (C4), bridging the Model Context Protocol's CallTool
// contract to the registry's Execute contract. One adapter is
// registered per server-reported tool.
type ToolAdapter struct {
	manager  *Manager
	serverID string
	tool     *MCPTool
}

// NewToolAdapter wraps an MCP-server tool for registration with a
// tools.Registry.
func NewToolAdapter(manager *Manager, serverID string, tool *MCPTool) *ToolAdapter {
	return &ToolAdapter{manager: manager, serverID: serverID, tool: tool}
}

func (a *ToolAdapter) Name() string        { return a.tool.Name }
func (a *ToolAdapter) Description() string { return a.tool.Description }

func (a *ToolAdapter) Parameters() map[string]any {
	var schema map[string]any
	if len(a.tool.InputSchema) > 0 {
		_ = json.Unmarshal(a.tool.InputSchema, &schema)
	}
	if schema == nil {
		schema = map[string]any{"type": "object"}
	}
	return schema
}

func (a *ToolAdapter) Execute(ctx context.Context, args json.RawMessage, _ *models.ToolContext) (string, error) {
	var arguments map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return "", zerrors.Wrap(zerrors.Tool, "invalid arguments for MCP tool "+a.tool.Name, err)
		}
	}

	result, err := a.manager.CallTool(ctx, a.serverID, a.tool.Name, arguments)
	if err != nil {
		return "", zerrors.ClassifyToolError(err)
	}

	var sb strings.Builder
	for _, c := range result.Content {
		sb.WriteString(c.Text)
	}
	if result.IsError {
		return "", zerrors.New(zerrors.Tool, sb.String())
	}
	return sb.String(), nil
}

// RegisterAll registers an adapter for every tool exposed by every
// connected server in manager. A registration failure (typically a name
// collision with a built-in or plugin tool) is skipped, not fatal —
// an MCP server is an operator-configured, potentially untrusted
// extension and must not be able to take down startup by reusing a
// reserved tool name. Returns the names actually registered.
func RegisterAll(registry *tools.Registry, manager *Manager) []string {
	var names []string
	for serverID, list := range manager.AllTools() {
		for _, t := range list {
			if err := registry.Register(NewToolAdapter(manager, serverID, t)); err == nil {
				names = append(names, t.Name)
			}
		}
	}
	return names
}
