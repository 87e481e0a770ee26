// Package plugins implements plugin manifest discovery (C4/C7's
// plugin surface, spec §4.3's final two paragraphs): external
// directories of tool and channel plugins, validated before any of
// their content is ever passed to a shell or exec'd as a subprocess.
//
// Grounded on internal/plugins/discovery.go's directory-walk and
// manifest-cache shape, paired with this repository's own manifest
// schema — the teacher's pkg/pluginsdk.Manifest is a config-schema-only
// marketplace descriptor with no tool-definition or shell-command-
// template fields, so it has no home for spec §4.3's dangerous-pattern
// rejection; the manifest types below are purpose-built for that
// contract instead.
package plugins

import (
	"encoding/json"
	"fmt"
	"os"
)

// ToolManifestFilename is the file discovery looks for in a tool
// plugin's directory.
const ToolManifestFilename = "nexus-tool.plugin.json"

// ChannelManifestFilename is the file discovery looks for in a channel
// plugin's directory.
const ChannelManifestFilename = "nexus-channel.plugin.json"

// ToolManifest describes a tool plugin: a named package of one or more
// tool definitions, each delegating to a subprocess invocation built
// from a shell-command template (spec §4.3).
type ToolManifest struct {
	Name    string         `json:"name"`
	Version string         `json:"version"`
	Tools   []ToolManifestEntry `json:"tools"`
}

// ToolManifestEntry is one tool exposed by a ToolManifest.
type ToolManifestEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	// Command is a shell-command template with {{param}} placeholders
	// substituted from the tool call's arguments at execution time.
	Command string `json:"command"`
}

// ChannelManifest describes a channel plugin: a long-running child
// process started at channel start, spoken to over stdin with JSON-RPC
// 2.0 requests, and killed at channel stop (spec §4.3).
type ChannelManifest struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	// Binary is the path to the plugin's executable, resolved relative
	// to the manifest's own directory. Must not contain parent-directory
	// components (spec §4.3).
	Binary string `json:"binary"`
}

func decodeToolManifest(path string) (*ToolManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tool manifest: %w", err)
	}
	var m ToolManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode tool manifest %s: %w", path, err)
	}
	return &m, nil
}

func decodeChannelManifest(path string) (*ChannelManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channel manifest: %w", err)
	}
	var m ChannelManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode channel manifest %s: %w", path, err)
	}
	return &m, nil
}
