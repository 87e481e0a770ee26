package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigParsesFullExample(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zeptoclaw.yaml")
	content := `
agent_id: assistant-1
default_model: claude-sonnet-4-5-20250929
max_iterations: 8
max_wall_time: 120000000000
token_budget: 100000
providers:
  - kind: anthropic
    api_key: sk-ant-test
  - kind: openai
    api_key: sk-test
discord:
  enabled: true
  token: bot-token
  allowed_users: ["123", "456"]
tool_plugin_paths:
  - /opt/zeptoclaw/tools
channel_plugin_paths:
  - /opt/zeptoclaw/channels
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.AgentID != "assistant-1" {
		t.Errorf("unexpected agent id: %s", cfg.AgentID)
	}
	if cfg.MaxWallTime != 2*time.Minute {
		t.Errorf("unexpected max wall time: %v", cfg.MaxWallTime)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0].Kind != "anthropic" {
		t.Fatalf("unexpected providers: %+v", cfg.Providers)
	}
	if !cfg.Discord.Enabled || cfg.Discord.Token != "bot-token" || len(cfg.Discord.AllowedUsers) != 2 {
		t.Fatalf("unexpected discord config: %+v", cfg.Discord)
	}
	if len(cfg.ToolPluginPaths) != 1 || len(cfg.ChannelPluginPaths) != 1 {
		t.Fatalf("unexpected plugin paths: %+v / %+v", cfg.ToolPluginPaths, cfg.ChannelPluginPaths)
	}
}

func TestLoadConfigErrorsOnMissingFile(t *testing.T) {
	if _, err := loadConfig("/no/such/zeptoclaw.yaml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadConfigErrorsOnMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("agent_id: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected an error for malformed YAML")
	}
}
