package channels

import (
	"context"
	"log/slog"
	"sync"

	"github.com/haasonsaas/nexus/internal/bus"
	"github.com/haasonsaas/nexus/pkg/models"
)

// Manager holds a set of channels keyed by name and multiplexes the
// bus's outbound stream across them (spec §4.6). Grounded on
// internal/channels/channel.go's Registry, narrowed to the manager
// shape SPEC_FULL.md names rather than the teacher's multi-map
// capability aggregation.
type Manager struct {
	mu       sync.RWMutex
	channels map[string]Adapter
	bus      *bus.Bus
	logger   *slog.Logger
}

// New builds a Manager dispatching against b.
func New(b *bus.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		channels: make(map[string]Adapter),
		bus:      b,
		logger:   logger,
	}
}

// Register adds a channel to the manager, keyed by its Name().
func (m *Manager) Register(a Adapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[a.Name()] = a
}

// Get returns a registered channel by name.
func (m *Manager) Get(name string) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.channels[name]
	return a, ok
}

// snapshot copies the channel map under lock, so StartAll/StopAll/the
// dispatch loop never hold m.mu while calling into adapter code.
func (m *Manager) snapshot() map[string]Adapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Adapter, len(m.channels))
	for name, a := range m.channels {
		out[name] = a
	}
	return out
}

// StartAll starts every registered channel. A failure to start one
// channel is logged but does not prevent the others from starting
// (spec §4.6).
func (m *Manager) StartAll(ctx context.Context) {
	for name, a := range m.snapshot() {
		if err := a.Start(ctx); err != nil {
			m.logger.Error("channels: failed to start adapter", "channel", name, "error", err)
		}
	}
}

// StopAll stops every registered channel. Errors are logged, not
// propagated (spec §4.6).
func (m *Manager) StopAll(ctx context.Context) {
	for name, a := range m.snapshot() {
		if err := a.Stop(ctx); err != nil {
			m.logger.Error("channels: failed to stop adapter", "channel", name, "error", err)
		}
	}
}

// Run is the single background task that consumes the bus's outbound
// stream and dispatches each message to channels[msg.Channel].Send.
// An unknown channel produces a warning, never a panic. Run returns
// once the bus is closed.
func (m *Manager) Run(ctx context.Context) {
	for {
		msg, err := m.bus.ConsumeOutbound()
		if err != nil {
			return
		}

		a, ok := m.Get(string(msg.Channel))
		if !ok {
			m.logger.Warn("channels: outbound message for unregistered channel", "channel", msg.Channel)
			continue
		}

		go func(a Adapter, msg models.OutboundMessage) {
			if err := a.Send(ctx, msg); err != nil {
				m.logger.Error("channels: send failed", "channel", msg.Channel, "error", err)
			}
		}(a, msg)
	}
}
