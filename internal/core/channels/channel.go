// Package channels implements the channel abstraction and manager (C7):
// the contract every channel driver must satisfy, and the dispatcher
// that multiplexes the bus's outbound stream across them, per spec
// §4.6.
//
// Grounded on internal/channels/channel.go's Adapter/Registry split,
// narrowed to the exact contract spec.md names (name, start, stop,
// send, is_running, is_allowed) rather than the teacher's richer
// capability-interface aggregation (LifecycleAdapter/OutboundAdapter/
// InboundAdapter/HealthAdapter), since SPEC_FULL.md's C7 scope doesn't
// carry the teacher's health/metrics/reaction surface.
package channels

import (
	"context"
	"strings"
	"sync"

	"github.com/haasonsaas/nexus/pkg/models"
)

// Adapter is the contract every channel driver must satisfy (spec
// §4.6). Implementations own their own connection lifecycle and are
// responsible for publishing inbound messages onto the bus themselves
// (typically from a goroutine started in Start).
type Adapter interface {
	// Name identifies the channel ("telegram", "discord", "slack", ...).
	Name() string

	// Start begins consuming from the underlying platform. It must
	// return once the adapter is ready to receive, and report a
	// connection failure as an error rather than retrying forever.
	Start(ctx context.Context) error

	// Stop ends the connection. It must be safe to call on an adapter
	// that was never started or already stopped.
	Stop(ctx context.Context) error

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg models.OutboundMessage) error

	// IsRunning reports whether Start has succeeded and Stop has not
	// yet been called.
	IsRunning() bool

	// IsAllowed reports whether userID is permitted to interact with
	// this adapter, per its allowlist configuration.
	IsAllowed(userID string) bool
}

// Allowlist implements the is_allowed semantics spec §4.6 describes:
// an empty list means allow-all unless the channel is configured
// deny-by-default, in which case an empty list denies everyone.
// Adapters embed or hold one of these rather than reimplementing the
// membership check.
type Allowlist struct {
	ids           map[string]struct{}
	denyByDefault bool
}

// NewAllowlist builds an Allowlist from a set of user IDs. Comparison
// is exact; callers normalize (lowercase, trim) before constructing.
func NewAllowlist(ids []string, denyByDefault bool) Allowlist {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[strings.TrimSpace(id)] = struct{}{}
	}
	return Allowlist{ids: set, denyByDefault: denyByDefault}
}

// IsAllowed reports whether userID passes this allowlist.
func (a Allowlist) IsAllowed(userID string) bool {
	if len(a.ids) == 0 {
		return !a.denyByDefault
	}
	_, ok := a.ids[userID]
	return ok
}

// runState is a small helper adapters can embed for the IsRunning
// bookkeeping Start/Stop need to do anyway.
type runState struct {
	mu      sync.RWMutex
	running bool
}

func (r *runState) set(running bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = running
}

func (r *runState) get() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}
