package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/haasonsaas/nexus/internal/zerrors"
)

func TestToolAdapterExposesNameDescriptionAndSchema(t *testing.T) {
	tool := &MCPTool{
		Name:        "search",
		Description: "search the index",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"q":{"type":"string"}}}`),
	}
	a := NewToolAdapter(NewManager(nil, nil), "server1", tool)

	if a.Name() != "search" {
		t.Fatalf("Name() = %q", a.Name())
	}
	if a.Description() != "search the index" {
		t.Fatalf("Description() = %q", a.Description())
	}
	params := a.Parameters()
	if params["type"] != "object" {
		t.Fatalf("Parameters() = %+v, want the tool's own input schema", params)
	}
}

func TestToolAdapterDefaultsToObjectSchemaWhenMissing(t *testing.T) {
	tool := &MCPTool{Name: "noop"}
	a := NewToolAdapter(NewManager(nil, nil), "server1", tool)

	params := a.Parameters()
	if params["type"] != "object" {
		t.Fatalf("expected a default object schema, got %+v", params)
	}
}

func TestToolAdapterExecuteFailsForDisconnectedServer(t *testing.T) {
	tool := &MCPTool{Name: "search"}
	a := NewToolAdapter(NewManager(nil, nil), "server1", tool)

	_, err := a.Execute(context.Background(), json.RawMessage(`{}`), nil)
	if zerrors.KindOf(err) != zerrors.Tool {
		t.Fatalf("expected a Tool-kind error for an unconnected server, got %v", err)
	}
}

func TestRegisterAllSkipsNothingWhenNoServersConnected(t *testing.T) {
	names := RegisterAll(nil, NewManager(nil, nil))
	if len(names) != 0 {
		t.Fatalf("expected no tools registered with no connected servers, got %v", names)
	}
}
