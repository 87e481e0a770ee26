package agentloop

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/haasonsaas/nexus/internal/core/approval"
	"github.com/haasonsaas/nexus/internal/core/hooks"
	"github.com/haasonsaas/nexus/internal/core/tools"
	"github.com/haasonsaas/nexus/internal/cost"
	"github.com/haasonsaas/nexus/internal/provider"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/internal/zerrors"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Chatter is the subset of provider.Provider the loop needs. Both
// provider.Adapter and provider.Rotator satisfy it; the loop is
// indifferent to whether it's talking to one provider or a rotation.
type Chatter interface {
	Chat(ctx context.Context, req provider.ChatRequest) (models.LLMResponse, error)
	ChatStream(ctx context.Context, req provider.ChatRequest) (<-chan models.StreamEvent, error)
}

// Config configures a Loop. Grounded on internal/agent.LoopConfig,
// narrowed to the fields SPEC_FULL.md's agent loop actually names.
type Config struct {
	AgentID       string
	DefaultModel  string
	DefaultSystem string

	MaxIterations int           // default 10
	MaxToolCalls  int           // 0 = unlimited
	MaxWallTime   time.Duration // 0 = unlimited
	ContextLimit  int           // messages fetched per AssemblingContext pass
	ToolTimeout   time.Duration // per-tool deadline; default 30s

	ToolWhitelist []string // empty = full catalog

	// DryRun, when set, never actually executes a tool: each call is
	// recorded and reported back to the LLM as a synthesized result
	// describing what would have run.
	DryRun bool

	// ConfiguredProviders feeds `/model list`'s configured/unconfigured
	// marker; normally sourced from a provider.Registry at wiring time.
	ConfiguredProviders []string

	// ContextProviders supply additional system-prompt material (skill
	// instructions, long-term-memory injections) assembled alongside
	// DefaultSystem in AssemblingContext.
	ContextProviders []func(ctx context.Context, session *models.Session) (string, error)

	// Feedback, if set, receives tool lifecycle events (starting, done,
	// failed) for every dispatched tool call.
	Feedback func(models.ToolEvent)
}

// DefaultConfig returns the loop's default configuration.
func DefaultConfig() Config {
	return Config{
		AgentID:       "default",
		MaxIterations: 10,
		ContextLimit:  50,
		ToolTimeout:   30 * time.Second,
	}
}

func sanitize(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.AgentID == "" {
		cfg.AgentID = defaults.AgentID
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = defaults.ContextLimit
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaults.ToolTimeout
	}
	if cfg.MaxToolCalls < 0 {
		cfg.MaxToolCalls = 0
	}
	if cfg.MaxWallTime < 0 {
		cfg.MaxWallTime = 0
	}
	return cfg
}

// Loop implements the agent loop state machine described in spec §4.5:
// Begin -> AssemblingContext -> CallingLLM -> DispatchingTools ->
// WaitingForToolResults -> AssemblingContext, until a final assistant
// message, an iteration/wall-time/tool-call limit, or token budget
// exhaustion ends the turn.
type Loop struct {
	store    sessions.Store
	registry *tools.Registry
	chat     Chatter
	approval *approval.Gate
	hooks    *hooks.Engine
	budget   *cost.TokenBudget
	costs    *cost.Tracker
	cfg      Config
	logger   *slog.Logger

	overrides *overrideStore
}

// New builds a Loop. approvalGate, hookEngine, budget, and costs may be
// nil: a nil approval gate never requires approval, a nil hook engine
// evaluates to a no-op, a nil budget is treated as unlimited, and a nil
// cost tracker simply isn't recorded to.
func New(store sessions.Store, registry *tools.Registry, chat Chatter, approvalGate *approval.Gate, hookEngine *hooks.Engine, budget *cost.TokenBudget, costs *cost.Tracker, cfg Config, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Loop{
		store:     store,
		registry:  registry,
		chat:      chat,
		approval:  approvalGate,
		hooks:     hookEngine,
		budget:    budget,
		costs:     costs,
		cfg:       sanitize(cfg),
		logger:    logger,
		overrides: newOverrideStore(),
	}
}

// Run executes one full turn for msg and returns the final assistant
// text (spec §4.5's non-streaming contract).
func (l *Loop) Run(ctx context.Context, msg models.InboundMessage) (string, error) {
	session, err := l.store.GetOrCreate(ctx, msg.SessionKey, l.cfg.AgentID, msg.Channel, msg.UserID)
	if err != nil {
		return "", zerrors.Wrap(zerrors.Config, "session lookup failed", err)
	}

	if err := l.store.AppendMessage(ctx, session.ID, &models.Message{
		SessionID: session.ID,
		Channel:   msg.Channel,
		Direction: models.DirectionInbound,
		Role:      models.RoleUser,
		Content:   msg.Content,
		CreatedAt: msg.ArrivedAt,
	}); err != nil {
		return "", zerrors.Wrap(zerrors.Config, "append user message failed", err)
	}

	if cmd, ok := parseModelCommand(msg.Content); ok {
		return l.handleModelCommand(ctx, session, cmd)
	}

	start := time.Now()
	for iteration := 0; ; iteration++ {
		if l.cfg.MaxWallTime > 0 && time.Since(start) > l.cfg.MaxWallTime {
			return l.terminate(ctx, session, msg, "maximum run time exceeded")
		}
		if iteration >= l.cfg.MaxIterations {
			return l.terminate(ctx, session, msg, "iteration limit reached")
		}
		if l.budget != nil && l.budget.IsExceeded() {
			return l.terminate(ctx, session, msg, "token budget exceeded")
		}

		history, err := l.store.GetHistory(ctx, session.ID, l.cfg.ContextLimit)
		if err != nil {
			return "", zerrors.Wrap(zerrors.Config, "load session history failed", err)
		}

		system, err := l.assembleSystem(ctx, session)
		if err != nil {
			return "", err
		}

		model := l.resolveModel(session.Key)
		resp, err := l.callLLM(ctx, provider.ChatRequest{
			Model:    model,
			System:   system,
			Messages: history,
			Tools:    l.registry.Catalog(l.cfg.ToolWhitelist),
		})
		if err != nil {
			l.logger.Error("agentloop: provider call failed", "session", session.ID, "error", err)
			return l.terminate(ctx, session, msg, "the model provider is unavailable")
		}

		if l.budget != nil {
			l.budget.Record(uint64(resp.Usage.InputTokens), uint64(resp.Usage.OutputTokens))
		}
		if l.costs != nil {
			l.costs.Record(l.providerNameFor(session.Key), model, uint64(resp.Usage.InputTokens), uint64(resp.Usage.OutputTokens))
		}

		if len(resp.ToolCalls) == 0 {
			if err := l.appendAssistant(ctx, session, msg.Channel, resp.Content, nil); err != nil {
				return "", err
			}
			return resp.Content, nil
		}

		toolResults := l.dispatchTools(ctx, msg, resp.ToolCalls)

		if err := l.appendAssistant(ctx, session, msg.Channel, resp.Content, resp.ToolCalls); err != nil {
			return "", err
		}
		for _, tr := range toolResults {
			if err := l.store.AppendMessage(ctx, session.ID, &models.Message{
				SessionID:   session.ID,
				Channel:     msg.Channel,
				Direction:   models.DirectionOutbound,
				Role:        models.RoleTool,
				Content:     tr.Content,
				ToolResults: []models.ToolResult{tr},
			}); err != nil {
				return "", zerrors.Wrap(zerrors.Config, "append tool message failed", err)
			}
		}
	}
}

// callLLM performs the CallingLLM transition's error classification:
// a provider_transient error is retried exactly once; a
// provider_terminal error (or an exhausted retry) surfaces directly.
func (l *Loop) callLLM(ctx context.Context, req provider.ChatRequest) (models.LLMResponse, error) {
	resp, err := l.chat.Chat(ctx, req)
	if err == nil {
		return resp, nil
	}
	if errKind(err) != zerrors.ProviderTransient {
		return models.LLMResponse{}, err
	}
	return l.chat.Chat(ctx, req)
}

func errKind(err error) zerrors.Kind {
	if k := zerrors.KindOf(err); k != "" {
		return k
	}
	return zerrors.ClassifyProviderError(err).Kind
}

func (l *Loop) assembleSystem(ctx context.Context, session *models.Session) (string, error) {
	system := l.cfg.DefaultSystem
	for _, provide := range l.cfg.ContextProviders {
		extra, err := provide(ctx, session)
		if err != nil {
			return "", zerrors.Wrap(zerrors.Config, "context provider failed", err)
		}
		if extra != "" {
			if system != "" {
				system += "\n\n"
			}
			system += extra
		}
	}
	return system, nil
}

func (l *Loop) appendAssistant(ctx context.Context, session *models.Session, channel models.ChannelType, content string, toolCalls []models.ToolCall) error {
	return l.store.AppendMessage(ctx, session.ID, &models.Message{
		SessionID: session.ID,
		Channel:   channel,
		Direction: models.DirectionOutbound,
		Role:      models.RoleAssistant,
		Content:   content,
		ToolCalls: toolCalls,
	})
}

func (l *Loop) terminate(ctx context.Context, session *models.Session, msg models.InboundMessage, reason string) (string, error) {
	text := "Stopping: " + reason
	if err := l.appendAssistant(ctx, session, msg.Channel, text, nil); err != nil {
		return "", err
	}
	return text, nil
}

func (l *Loop) handleModelCommand(ctx context.Context, session *models.Session, cmd modelCommand) (string, error) {
	var text string
	switch cmd.kind {
	case modelCmdShow:
		current, ok := l.overrides.get(session.Key)
		if ok {
			text = formatCurrentModel(&current, l.cfg.DefaultModel)
		} else {
			text = formatCurrentModel(nil, l.cfg.DefaultModel)
		}
	case modelCmdReset:
		l.overrides.reset(session.Key)
		text = "Model override cleared. Using default: " + l.cfg.DefaultModel
	case modelCmdList:
		current, ok := l.overrides.get(session.Key)
		if ok {
			text = formatModelList(l.cfg.ConfiguredProviders, &current)
		} else {
			text = formatModelList(l.cfg.ConfiguredProviders, nil)
		}
	case modelCmdSet:
		l.overrides.set(session.Key, cmd.override)
		text = "Model set to " + cmd.override.Model
		if cmd.override.Provider != "" {
			text = "Model set to " + cmd.override.Provider + ":" + cmd.override.Model
		}
	default:
		return "", errors.New("agentloop: unreachable model command kind")
	}

	if err := l.appendAssistant(ctx, session, session.Channel, text, nil); err != nil {
		return "", err
	}
	return text, nil
}

func (l *Loop) resolveModel(sessionKey string) string {
	if ov, ok := l.overrides.get(sessionKey); ok {
		return ov.Model
	}
	return l.cfg.DefaultModel
}

func (l *Loop) providerNameFor(sessionKey string) string {
	if ov, ok := l.overrides.get(sessionKey); ok && ov.Provider != "" {
		return ov.Provider
	}
	return "default"
}
