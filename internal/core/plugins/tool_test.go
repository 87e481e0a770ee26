package plugins

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestRenderCommandSubstitutesAndEscapesParams(t *testing.T) {
	rendered, err := renderCommand("curl {{city}}", map[string]any{"city": "New York"})
	if err != nil {
		t.Fatalf("renderCommand: %v", err)
	}
	if rendered != "curl 'New York'" {
		t.Fatalf("unexpected rendering: %q", rendered)
	}
}

func TestRenderCommandErrorsOnMissingParameter(t *testing.T) {
	if _, err := renderCommand("curl {{city}}", map[string]any{}); err == nil {
		t.Fatal("expected error for missing parameter")
	}
}

func TestRenderCommandEscapesDangerousParamValue(t *testing.T) {
	// The template itself passed discovery-time validation (no bare
	// metacharacters); a malicious VALUE supplied at call time must not
	// be able to break out of the single-quoted argument.
	rendered, err := renderCommand("curl {{city}}", map[string]any{"city": "x; rm -rf /"})
	if err != nil {
		t.Fatalf("renderCommand: %v", err)
	}
	want := "curl 'x; rm -rf /'"
	if rendered != want {
		t.Fatalf("expected escaped value %q, got %q", want, rendered)
	}
}

func TestShellQuoteEscapesEmbeddedSingleQuotes(t *testing.T) {
	got := shellQuote("it's")
	want := `'it'\''s'`
	if got != want {
		t.Fatalf("shellQuote(%q) = %q, want %q", "it's", want)
	}
}

func TestToolDelegateExecuteRunsRenderedCommand(t *testing.T) {
	entry := ToolManifestEntry{Name: "echo", Command: "echo -n {{word}}"}
	delegate := NewToolDelegate("greeter", entry, t.TempDir())

	args, _ := json.Marshal(map[string]any{"word": "hello"})
	out, err := delegate.Execute(context.Background(), args, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "hello" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestToolDelegateExecuteReportsCommandFailure(t *testing.T) {
	entry := ToolManifestEntry{Name: "fail", Command: "exit 1"}
	delegate := NewToolDelegate("greeter", entry, t.TempDir())

	_, err := delegate.Execute(context.Background(), json.RawMessage(`{}`), nil)
	if err == nil {
		t.Fatal("expected error for a failing command")
	}
	if !strings.Contains(err.Error(), "greeter") || !strings.Contains(err.Error(), "fail") {
		t.Fatalf("expected error to name plugin and tool, got %v", err)
	}
}

func TestToolDelegateNameDescriptionParameters(t *testing.T) {
	entry := ToolManifestEntry{
		Name:        "forecast",
		Description: "get forecast",
		Parameters:  map[string]any{"city": "string"},
		Command:     "curl {{city}}",
	}
	delegate := NewToolDelegate("weather", entry, t.TempDir())

	if delegate.Name() != "forecast" {
		t.Fatalf("unexpected name: %s", delegate.Name())
	}
	if delegate.Description() != "get forecast" {
		t.Fatalf("unexpected description: %s", delegate.Description())
	}
	if delegate.Parameters()["city"] != "string" {
		t.Fatalf("unexpected parameters: %+v", delegate.Parameters())
	}
}
