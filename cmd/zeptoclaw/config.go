package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/nexus/internal/containerproxy"
	"github.com/haasonsaas/nexus/internal/core/approval"
	"github.com/haasonsaas/nexus/internal/core/hooks"
	"github.com/haasonsaas/nexus/internal/provider"
)

// Config is the runtime's own, purpose-built configuration shape — the
// teacher's internal/config.Config is a ~40-field descriptor for its own
// gateway/skills/marketplace/RAG surface, most of which has no
// counterpart here; rather than force-fit that type, this mirrors the
// teacher's decoding idiom (gopkg.in/yaml.v3, flat nested structs with
// yaml tags) over a schema scoped to the runtime's own components.
type Config struct {
	AgentID       string `yaml:"agent_id"`
	DefaultModel  string `yaml:"default_model"`
	DefaultSystem string `yaml:"default_system"`

	MaxIterations int           `yaml:"max_iterations"`
	MaxToolCalls  int           `yaml:"max_tool_calls"`
	MaxWallTime   time.Duration `yaml:"max_wall_time"`
	TokenBudget   uint64        `yaml:"token_budget"`

	// BudgetResetCron, if set, is a standard 5-field cron expression
	// (robfig/cron/v3) on which the token budget is zeroed — e.g. "0 0
	// * * *" for a daily reset. Empty disables the scheduled reset.
	BudgetResetCron string `yaml:"budget_reset_cron"`

	// SessionStorePath selects the session store backend: empty uses
	// the in-process MemoryStore, anything else is opened as a
	// modernc.org/sqlite database file (":memory:" for an ephemeral
	// SQLite-backed store).
	SessionStorePath string `yaml:"session_store_path"`

	Providers []ProviderConfig `yaml:"providers"`
	Approval  approval.Config  `yaml:"approval"`
	Hooks     []hooks.Rule     `yaml:"hooks"`

	Discord DiscordChannelConfig `yaml:"discord"`

	ToolPluginPaths    []string `yaml:"tool_plugin_paths"`
	ChannelPluginPaths []string `yaml:"channel_plugin_paths"`

	ContainerProxy *containerproxy.Config `yaml:"container_proxy"`
}

// ProviderConfig names one configured LLM backend in rotation order.
type ProviderConfig struct {
	Kind    string `yaml:"kind"` // "anthropic", "openai"
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// DiscordChannelConfig configures the built-in Discord adapter.
type DiscordChannelConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Token         string   `yaml:"token"`
	AllowedUsers  []string `yaml:"allowed_users"`
	DenyByDefault bool     `yaml:"deny_by_default"`
}

// RotationStrategy returns the provider.Strategy this config implies.
// Only priority ordering is exposed at config level for now; round-robin
// is available to callers that construct a provider.RotationConfig
// directly.
func (c Config) RotationStrategy() provider.Strategy {
	return provider.StrategyPriority
}

func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
