package channels

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/pkg/models"
)

// DiscordConfig configures the Discord channel driver.
type DiscordConfig struct {
	Token         string
	AllowedUsers  []string // empty = allow all, unless DenyByDefault
	DenyByDefault bool
	Logger        *slog.Logger
}

// discordSession is the subset of *discordgo.Session the adapter uses,
// narrowed for testability. Grounded on
// internal/channels/discord/adapter.go's discordSession interface.
type discordSession interface {
	Open() error
	Close() error
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// DiscordAdapter is the C7 Discord driver: it bridges discordgo's
// MessageCreate events onto the bus's inbound stream and delivers
// outbound messages back via ChannelMessageSend. Grounded on
// internal/channels/discord/adapter.go, stripped of the teacher's
// rate limiter/metrics/degraded-mode machinery (no SPEC_FULL.md
// component names them for C7) and rewired directly against this
// repo's bus instead of a per-adapter Messages() channel.
type DiscordAdapter struct {
	runState

	cfg       DiscordConfig
	allowlist Allowlist
	bus       *bus.Bus
	logger    *slog.Logger

	session discordSession
	cancel  context.CancelFunc
}

// NewDiscordAdapter builds a Discord adapter. session may be nil, in
// which case Start constructs a real *discordgo.Session from cfg.Token
// (nil is only ever overridden in tests, which inject a fake session).
func NewDiscordAdapter(cfg DiscordConfig, b *bus.Bus, session discordSession) *DiscordAdapter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordAdapter{
		cfg:       cfg,
		allowlist: NewAllowlist(cfg.AllowedUsers, cfg.DenyByDefault),
		bus:       b,
		logger:    logger.With("channel", "discord"),
		session:   session,
	}
}

func (a *DiscordAdapter) Name() string { return string(models.ChannelDiscord) }

func (a *DiscordAdapter) IsRunning() bool { return a.runState.get() }

func (a *DiscordAdapter) IsAllowed(userID string) bool { return a.allowlist.IsAllowed(userID) }

// Start opens the Discord session and registers the message handler.
func (a *DiscordAdapter) Start(ctx context.Context) error {
	if a.session == nil {
		dg, err := discordgo.New("Bot " + a.cfg.Token)
		if err != nil {
			return err
		}
		a.session = dg
	}

	a.session.AddHandler(a.handleMessageCreate)

	if err := a.session.Open(); err != nil {
		return err
	}

	_, a.cancel = context.WithCancel(ctx)
	a.runState.set(true)
	a.logger.Info("discord adapter started")
	return nil
}

// Stop closes the Discord session. Safe to call even if Start never
// succeeded.
func (a *DiscordAdapter) Stop(ctx context.Context) error {
	if !a.runState.get() {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.runState.set(false)
	if a.session == nil {
		return nil
	}
	return a.session.Close()
}

// Send delivers an outbound message to the Discord channel named by
// msg.ChatID.
func (a *DiscordAdapter) Send(_ context.Context, msg models.OutboundMessage) error {
	_, err := a.session.ChannelMessageSend(msg.ChatID, msg.Content)
	return err
}

func (a *DiscordAdapter) handleMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	if !a.IsAllowed(m.Author.ID) {
		a.logger.Warn("discord: message from disallowed user dropped", "user_id", m.Author.ID)
		return
	}

	if err := a.bus.PublishInbound(models.InboundMessage{
		Channel:    models.ChannelDiscord,
		UserID:     m.Author.ID,
		SessionKey: "discord:" + m.ChannelID,
		Content:    m.Content,
		ArrivedAt:  time.Now(),
	}); err != nil {
		a.logger.Warn("discord: publish inbound failed, bus closed", "user_id", m.Author.ID)
	}
}
