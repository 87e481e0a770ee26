package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"

	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// placeholderPattern matches a {{param}} template placeholder.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// ToolDelegate adapts a plugin's command template into a
// tools.Tool: each call renders the template against the call's
// arguments and runs it as a subprocess. The template itself was
// already checked for shell metacharacters at discovery time
// (validateCommandTemplate); every substituted argument value is
// additionally single-quote-escaped here, so a malicious argument
// value can't reintroduce the injection the template-level check
// rejected.
type ToolDelegate struct {
	pluginName string
	entry      ToolManifestEntry
	dir        string
}

// NewToolDelegate builds a tools.Tool for one ToolManifestEntry from a
// plugin already validated by DiscoverToolPlugins.
func NewToolDelegate(pluginName string, entry ToolManifestEntry, dir string) *ToolDelegate {
	return &ToolDelegate{pluginName: pluginName, entry: entry, dir: dir}
}

func (d *ToolDelegate) Name() string               { return d.entry.Name }
func (d *ToolDelegate) Description() string         { return d.entry.Description }
func (d *ToolDelegate) Parameters() map[string]any { return d.entry.Parameters }

// Execute renders the command template against args and runs it in
// the plugin's directory.
func (d *ToolDelegate) Execute(ctx context.Context, args json.RawMessage, _ *models.ToolContext) (string, error) {
	var params map[string]any
	if len(args) > 0 {
		if err := json.Unmarshal(args, &params); err != nil {
			return "", zerrors.Wrap(zerrors.Tool, "invalid tool arguments", err)
		}
	}

	rendered, err := renderCommand(d.entry.Command, params)
	if err != nil {
		return "", zerrors.Wrap(zerrors.Tool, "render command template", err)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", rendered)
	cmd.Dir = d.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", zerrors.Wrap(zerrors.Tool, fmt.Sprintf("plugin %s tool %s failed: %s", d.pluginName, d.entry.Name, strings.TrimSpace(stderr.String())), err)
	}
	return stdout.String(), nil
}

// renderCommand substitutes every {{param}} placeholder in template
// with its single-quote-escaped value from params. An unresolved
// placeholder is an error rather than being left in the rendered
// string verbatim.
func renderCommand(template string, params map[string]any) (string, error) {
	var missing error
	rendered := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := params[name]
		if !ok {
			missing = fmt.Errorf("missing required parameter %q", name)
			return match
		}
		return shellQuote(fmt.Sprint(value))
	})
	if missing != nil {
		return "", missing
	}
	return rendered, nil
}

// shellQuote wraps s in single quotes, escaping any single quote it
// contains per the standard '\'' POSIX idiom.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
