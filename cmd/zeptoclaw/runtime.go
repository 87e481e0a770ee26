package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/haasonsaas/nexus/internal/agent/providers"
	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/internal/containerproxy"
	"github.com/haasonsaas/nexus/internal/core/agentloop"
	"github.com/haasonsaas/nexus/internal/core/approval"
	"github.com/haasonsaas/nexus/internal/core/channels"
	"github.com/haasonsaas/nexus/internal/core/hooks"
	"github.com/haasonsaas/nexus/internal/core/plugins"
	"github.com/haasonsaas/nexus/internal/core/tools"
	"github.com/haasonsaas/nexus/internal/cost"
	"github.com/haasonsaas/nexus/internal/provider"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/internal/stuck"
	"github.com/haasonsaas/nexus/pkg/models"
)

// runtime wires together every C1-C10 component into one running
// process: the bus (C2), a session store (C3), the tool registry plus
// discovered plugin tools (C4), a provider rotator (C5), the agent loop
// (C6), the channel manager plus Discord and channel plugins (C7), the
// container proxy as an alternative consumer (C8), a shared token
// budget and cost tracker (C9), and a stuck detector fed from the
// loop's tool-dispatch feedback (C10).
//
// Grounded on cmd/nexus/handlers_serve.go's runServe, which performs
// the same load-config/construct-components/start-background-loops
// sequence against the teacher's own gateway.NewManagedServer.
type runtime struct {
	bus      *bus.Bus
	channels *channels.Manager
	proxy    *containerproxy.Proxy
	logger   *slog.Logger

	pluginRunners []*plugins.ChannelRunner

	mu     sync.Mutex
	detect *stuck.Detector

	budget     *cost.TokenBudget
	resetCron  *cron.Cron
	sessionDB  *sessions.SQLiteStore
}

func newRuntime(cfg Config, logger *slog.Logger) (*runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := bus.New()

	rt := &runtime{bus: b, logger: logger, detect: stuck.New()}

	var store sessions.Store
	if cfg.SessionStorePath == "" {
		store = sessions.NewMemoryStore()
	} else {
		sqliteStore, err := sessions.NewSQLiteStore(cfg.SessionStorePath)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		rt.sessionDB = sqliteStore
		store = sqliteStore
	}

	chatter, providerNames, err := buildProviderRotator(cfg)
	if err != nil {
		return nil, err
	}

	registry := tools.NewRegistry()
	if err := registerPluginTools(registry, cfg.ToolPluginPaths, logger); err != nil {
		return nil, err
	}

	approvalGate := approval.New(cfg.Approval)
	hookEngine := hooks.New(cfg.Hooks, logger, b)
	budget := cost.NewTokenBudget(cfg.TokenBudget)
	costs := cost.NewTracker()
	rt.budget = budget

	if cfg.BudgetResetCron != "" {
		sched := cron.New()
		if _, err := sched.AddFunc(cfg.BudgetResetCron, func() {
			budget.Reset()
			logger.Info("token budget reset", "cron", cfg.BudgetResetCron)
		}); err != nil {
			return nil, fmt.Errorf("parse budget_reset_cron %q: %w", cfg.BudgetResetCron, err)
		}
		rt.resetCron = sched
	}

	loop := agentloop.New(store, registry, chatter, approvalGate, hookEngine, budget, costs, agentloop.Config{
		AgentID:             cfg.AgentID,
		DefaultModel:        cfg.DefaultModel,
		DefaultSystem:       cfg.DefaultSystem,
		MaxIterations:       cfg.MaxIterations,
		MaxToolCalls:        cfg.MaxToolCalls,
		MaxWallTime:         cfg.MaxWallTime,
		ConfiguredProviders: providerNames,
		Feedback:            rt.observeToolFeedback,
	}, logger)

	if err := registry.Register(agentloop.NewDelegateTool(loop)); err != nil {
		return nil, fmt.Errorf("register delegate tool: %w", err)
	}

	manager := channels.New(b, logger)
	if cfg.Discord.Enabled {
		manager.Register(channels.NewDiscordAdapter(channels.DiscordConfig{
			Token:         cfg.Discord.Token,
			AllowedUsers:  cfg.Discord.AllowedUsers,
			DenyByDefault: cfg.Discord.DenyByDefault,
			Logger:        logger,
		}, b, nil))
	}
	runners, err := registerPluginChannels(manager, cfg.ChannelPluginPaths, logger)
	if err != nil {
		return nil, err
	}
	rt.pluginRunners = runners
	rt.channels = manager

	if cfg.ContainerProxy != nil {
		proxy, err := containerproxy.New(*cfg.ContainerProxy, store, b, logger)
		if err != nil {
			return nil, fmt.Errorf("container proxy: %w", err)
		}
		rt.proxy = proxy
	} else {
		go rt.dispatchLoop(loop, b)
	}

	return rt, nil
}

// dispatchLoop is the in-process alternative to the container proxy
// (spec §4.7's "Non-goals" leave routing between the two to the
// operator): every inbound message runs one agent-loop turn and the
// final text is published outbound under the sending user's chat ID,
// mirroring containerproxy.Proxy.publishResult's convention.
func (rt *runtime) dispatchLoop(loop *agentloop.Loop, b *bus.Bus) {
	for {
		msg, err := b.ConsumeInbound()
		if err != nil {
			return
		}
		go func(msg models.InboundMessage) {
			text, err := loop.Run(context.Background(), msg)
			if err != nil {
				rt.logger.Error("agentloop: run failed", "error", err)
				return
			}
			if err := b.PublishOutbound(models.OutboundMessage{
				Channel: msg.Channel,
				ChatID:  msg.UserID,
				Content: text,
			}); err != nil {
				rt.logger.Warn("agentloop: publish outbound failed", "error", err)
			}
		}(msg)
	}
}

// observeToolFeedback feeds every completed tool call into the stuck
// detector (C10) as an action observation, logging any alert it raises.
// The detector is process-wide rather than per-session: spec §4.5's
// loop has no per-call session handle in its Feedback signature, so a
// single shared detector is the finest granularity available here —
// adequate for flagging a single agent turn that repeats the same tool
// call or thrashes between a small set of tools.
func (rt *runtime) observeToolFeedback(ev models.ToolEvent) {
	if ev.Phase != "done" || ev.ToolName == "" {
		return
	}
	rt.mu.Lock()
	alerts := rt.detect.ObserveAction(ev.ToolName)
	rt.mu.Unlock()
	for _, a := range alerts {
		rt.logger.Warn("stuck detector alert", "kind", a.Kind, "message", a.Message)
	}
}

func (rt *runtime) Start(ctx context.Context) {
	if rt.resetCron != nil {
		rt.resetCron.Start()
	}
	rt.channels.StartAll(ctx)
	go rt.channels.Run(ctx)
	for _, r := range rt.pluginRunners {
		if err := r.Start(ctx); err != nil {
			rt.logger.Error("channel plugin failed to start", "plugin", r.Name(), "error", err)
		}
	}
	if rt.proxy != nil {
		go rt.proxy.Run(ctx)
	}
}

func (rt *runtime) Stop(ctx context.Context) {
	if rt.resetCron != nil {
		<-rt.resetCron.Stop().Done()
	}
	for _, r := range rt.pluginRunners {
		if err := r.Stop(ctx); err != nil {
			rt.logger.Warn("channel plugin failed to stop cleanly", "plugin", r.Name(), "error", err)
		}
	}
	rt.channels.StopAll(ctx)
	rt.bus.Close()
	if rt.sessionDB != nil {
		if err := rt.sessionDB.Close(); err != nil {
			rt.logger.Warn("session store close failed", "error", err)
		}
	}
}

// buildProviderRotator constructs a provider.Rotator from cfg's
// configured backends, wrapping each in provider.Adapter over the
// teacher's real SDK-backed agent/providers implementations
// (internal/agent/providers/anthropic.go, openai.go) rather than
// reimplementing provider wiring.
func buildProviderRotator(cfg Config) (*provider.Rotator, []string, error) {
	var backends []provider.Provider
	var names []string
	for _, pc := range cfg.Providers {
		switch pc.Kind {
		case "anthropic":
			p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{APIKey: pc.APIKey, BaseURL: pc.BaseURL})
			if err != nil {
				return nil, nil, fmt.Errorf("anthropic provider: %w", err)
			}
			backends = append(backends, provider.Wrap(p))
		case "openai":
			backends = append(backends, provider.Wrap(providers.NewOpenAIProvider(pc.APIKey)))
		case "azure":
			p, err := providers.NewAzureOpenAIProvider(providers.AzureOpenAIConfig{Endpoint: pc.BaseURL, APIKey: pc.APIKey})
			if err != nil {
				return nil, nil, fmt.Errorf("azure provider: %w", err)
			}
			backends = append(backends, provider.Wrap(p))
		case "bedrock":
			p, err := providers.NewBedrockProvider(providers.BedrockConfig{Region: pc.BaseURL})
			if err != nil {
				return nil, nil, fmt.Errorf("bedrock provider: %w", err)
			}
			backends = append(backends, provider.Wrap(p))
		case "google":
			p, err := providers.NewGoogleProvider(providers.GoogleConfig{APIKey: pc.APIKey})
			if err != nil {
				return nil, nil, fmt.Errorf("google provider: %w", err)
			}
			backends = append(backends, provider.Wrap(p))
		case "openrouter":
			p, err := providers.NewOpenRouterProvider(providers.OpenRouterConfig{APIKey: pc.APIKey})
			if err != nil {
				return nil, nil, fmt.Errorf("openrouter provider: %w", err)
			}
			backends = append(backends, provider.Wrap(p))
		case "ollama":
			backends = append(backends, provider.Wrap(providers.NewOllamaProvider(providers.OllamaConfig{BaseURL: pc.BaseURL})))
		case "copilot-proxy":
			p, err := providers.NewCopilotProxyProvider(providers.CopilotProxyConfig{BaseURL: pc.BaseURL})
			if err != nil {
				return nil, nil, fmt.Errorf("copilot-proxy provider: %w", err)
			}
			backends = append(backends, provider.Wrap(p))
		default:
			return nil, nil, fmt.Errorf("unknown provider kind %q", pc.Kind)
		}
		names = append(names, pc.Kind)
	}
	return provider.NewRotator(backends, provider.RotationConfig{Strategy: cfg.RotationStrategy()}), names, nil
}

// registerPluginTools discovers tool plugins under paths and registers
// a plugins.ToolDelegate for every declared tool. A discovery error
// (an individual rejected plugin) is logged, not fatal; registration
// failures (a genuine name collision with a built-in tool) abort
// startup since that indicates a misconfigured plugin directory.
func registerPluginTools(registry *tools.Registry, paths []string, logger *slog.Logger) error {
	infos, errs := plugins.DiscoverToolPlugins(paths)
	for _, err := range errs {
		logger.Warn("tool plugin rejected", "error", err)
	}
	for _, info := range infos {
		for _, entry := range info.Manifest.Tools {
			if err := registry.Register(plugins.NewToolDelegate(info.Manifest.Name, entry, info.Dir)); err != nil {
				return fmt.Errorf("register plugin tool %s/%s: %w", info.Manifest.Name, entry.Name, err)
			}
		}
	}
	return nil
}

// registerPluginChannels discovers channel plugins under paths and
// registers a plugins.ChannelRunner for each with the channel manager.
// Returns the runners so the caller can Start/Stop them alongside
// channel lifecycle.
func registerPluginChannels(manager *channels.Manager, paths []string, logger *slog.Logger) ([]*plugins.ChannelRunner, error) {
	infos, errs := plugins.DiscoverChannelPlugins(paths)
	for _, err := range errs {
		logger.Warn("channel plugin rejected", "error", err)
	}
	runners := make([]*plugins.ChannelRunner, 0, len(infos))
	for _, info := range infos {
		r := plugins.NewChannelRunner(info, logger)
		manager.Register(r)
		runners = append(runners, r)
	}
	return runners, nil
}
